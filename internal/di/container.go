package di

import (
	"context"
	"fmt"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/internal/handler"
	"github.com/imanidev/VacayStay/internal/repository"
	"github.com/imanidev/VacayStay/internal/service"
	"github.com/imanidev/VacayStay/internal/worker"
	"github.com/imanidev/VacayStay/pkg/config"
	"github.com/imanidev/VacayStay/pkg/database"
	"github.com/imanidev/VacayStay/pkg/kafka"
	"github.com/imanidev/VacayStay/pkg/logger"
	pkgredis "github.com/imanidev/VacayStay/pkg/redis"
	"github.com/imanidev/VacayStay/pkg/retry"
	"go.uber.org/zap"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Container holds all dependencies for the booking service
type Container struct {
	// Infrastructure
	DB       *database.PostgresDB
	Redis    *pkgredis.Client
	Producer *kafka.Producer

	// Repositories
	Spots  repository.SpotRepository
	Store  repository.IntervalStore
	Outbox repository.OutboxRepository

	// Services
	BookingService service.BookingService
	OutboxWorker   *worker.OutboxWorker

	// Handlers
	HealthHandler  *handler.HealthHandler
	BookingHandler *handler.BookingHandler

	spotWriter repository.SpotWriter
}

// NewContainer wires every component from cfg. Call Close when done.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	log := logger.Get()
	c := &Container{}

	if cfg.Booking.Store == StorePostgres {
		db, err := database.NewPostgres(ctx, database.ConfigFrom(cfg.Database, cfg.OTel.Enabled))
		if err != nil {
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		c.DB = db
		log.Info("Database connected", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

		if cfg.Database.AutoMigrate {
			if err := repository.Migrate(ctx, db.Pool()); err != nil {
				c.Close()
				return nil, fmt.Errorf("migration failed: %w", err)
			}
			log.Info("Database schema migrated")
		}

		store := repository.NewPostgresIntervalStore(db.Pool(), cfg.Booking.LockTimeout)
		spots := repository.NewPostgresSpotRepository(db.Pool())
		c.Store, c.Outbox, c.Spots, c.spotWriter = store, store.Outbox(), spots, spots
	} else {
		store := repository.NewMemoryIntervalStore(cfg.Booking.LockTimeout, nil)
		spots := repository.NewMemorySpotRepository()
		c.Store, c.Outbox, c.Spots, c.spotWriter = store, store.Outbox(), spots, spots
	}

	if cfg.Redis.Enabled {
		client, err := pkgredis.NewClient(ctx, pkgredis.ConfigFrom(cfg.Redis))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		c.Redis = client
		c.Spots = repository.NewCachedSpotRepository(c.Spots, client, cfg.Booking.SpotCacheTTL)
		if cfg.Booking.SpotLock {
			c.Store = repository.NewLockingStore(c.Store, client, cfg.Booking.SpotLockTTL)
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()), zap.Bool("spot_lock", cfg.Booking.SpotLock))
	}

	var publisher worker.Publisher = worker.NewLogPublisher()
	var dlq retry.DLQPublisher = retry.NoOpDLQPublisher{}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			log.Warn("Kafka connection failed, events will be logged only", zap.Error(err))
		} else {
			c.Producer = producer
			publisher = producer
			dlq = retry.NewKafkaDLQPublisher(producer, &retry.DLQConfig{Source: cfg.App.Name})
			log.Info("Kafka producer connected", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	}

	boundary, err := domain.ParseBoundaryPolicy(cfg.Booking.BoundaryPolicy)
	if err != nil {
		c.Close()
		return nil, err
	}
	auth, err := domain.ParseAuthorizationPolicy(cfg.Booking.AuthPolicy)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.BookingService = service.NewBookingService(c.Spots, c.Store, &service.BookingServiceConfig{
		BoundaryPolicy: boundary,
		AuthPolicy:     auth,
		MaxRetries:     cfg.Booking.MaxTxRetries,
		EventsTopic:    cfg.Booking.EventsTopic,
	})
	c.OutboxWorker = worker.NewOutboxWorker(c.Outbox, publisher, dlq, &worker.OutboxWorkerConfig{
		PollInterval:         cfg.Booking.OutboxPollInterval,
		CleanupRetentionDays: cfg.Booking.OutboxRetentionDays,
	})

	var dbCheck, redisCheck handler.HealthChecker
	if c.DB != nil {
		dbCheck = c.DB
	}
	if c.Redis != nil {
		redisCheck = c.Redis
	}
	c.HealthHandler = handler.NewHealthHandler(dbCheck, redisCheck, cfg.Booking.Store)
	c.BookingHandler = handler.NewBookingHandler(c.BookingService, service.SystemClock)

	log.Info("Booking service wired",
		zap.String("store", cfg.Booking.Store),
		zap.String("boundary_policy", string(boundary)),
		zap.String("auth_policy", string(auth)),
	)
	return c, nil
}

// SeedDemo loads the demo spots and bookings
func (c *Container) SeedDemo(ctx context.Context) error {
	return repository.Seed(ctx, c.spotWriter, c.Store, service.SystemClock.Now())
}

// Close releases infrastructure in reverse order of creation
func (c *Container) Close() {
	if c.Producer != nil {
		c.Producer.Close()
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Get().Warn("Failed to close redis", zap.Error(err))
		}
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
