package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/imanidev/VacayStay/pkg/logger"
	"github.com/imanidev/VacayStay/pkg/response"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader is the header clients use to make a mutation replay-safe
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// IdempotencyReplayHeader is set on responses served from the record
	IdempotencyReplayHeader = "Idempotent-Replayed"

	idempotencyKeyPrefix = "idempotency:"
)

type idempotencyStatus string

const (
	statusProcessing idempotencyStatus = "processing"
	statusCompleted  idempotencyStatus = "completed"
)

type idempotencyRecord struct {
	Status       idempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code,omitempty"`
	ResponseBody string            `json:"response_body,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// IdempotencyStore is the subset of Redis commands the middleware needs
type IdempotencyStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	Store IdempotencyStore
	// TTL of a completed record
	TTL time.Duration
	// ProcessingTTL bounds how long a crashed request blocks its key
	ProcessingTTL time.Duration
	Methods       []string
}

// DefaultIdempotencyConfig returns default configuration
func DefaultIdempotencyConfig(store IdempotencyStore) *IdempotencyConfig {
	return &IdempotencyConfig{
		Store:         store,
		TTL:           24 * time.Hour,
		ProcessingTTL: 30 * time.Second,
		Methods:       []string{http.MethodPost, http.MethodPut, http.MethodDelete},
	}
}

// Idempotency replays the stored response for a repeated X-Idempotency-Key.
// Requests without the header pass through. Redis failures fail open.
func Idempotency(cfg *IdempotencyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" || !slices.Contains(cfg.Methods, c.Request.Method) {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		userID, _ := GetUserID(c)
		hash := requestHash(c.Request.Method, c.Request.URL.Path, userID, body)
		redisKey := idempotencyKeyPrefix + userID + ":" + key
		ctx := c.Request.Context()

		record := &idempotencyRecord{Status: statusProcessing, RequestHash: hash, CreatedAt: time.Now().UTC()}
		acquired, err := setRecordNX(ctx, cfg.Store, redisKey, record, cfg.ProcessingTTL)
		if err != nil {
			logger.Get().Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !acquired {
			existing, err := getRecord(ctx, cfg.Store, redisKey)
			if err != nil {
				logger.Get().Warn("idempotency record unreadable", zap.Error(err))
				c.Next()
				return
			}
			switch {
			case existing.RequestHash != hash:
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, response.Err("IDEMPOTENCY_KEY_REUSED", "Idempotency key already used with a different request"))
			case existing.Status == statusProcessing:
				c.AbortWithStatusJSON(http.StatusConflict, response.Err("REQUEST_IN_PROGRESS", "A request with this idempotency key is already being processed"))
			default:
				c.Header(IdempotencyReplayHeader, "true")
				c.Data(existing.ResponseCode, "application/json; charset=utf-8", []byte(existing.ResponseBody))
				c.Abort()
			}
			return
		}

		rw := &capturingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rw
		c.Next()

		// 5xx is not a final answer; let the client retry with the same key.
		if rw.Status() >= http.StatusInternalServerError {
			cfg.Store.Del(ctx, redisKey)
			return
		}

		record.Status = statusCompleted
		record.ResponseCode = rw.Status()
		record.ResponseBody = rw.body.String()
		if err := setRecord(ctx, cfg.Store, redisKey, record, cfg.TTL); err != nil {
			logger.Get().Warn("failed to store idempotency record", zap.Error(err))
		}
	}
}

type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

func requestHash(method, path, userID string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write([]byte(userID))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func getRecord(ctx context.Context, store IdempotencyStore, key string) (*idempotencyRecord, error) {
	raw, err := store.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.New("idempotency record expired")
		}
		return nil, err
	}
	var rec idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func setRecordNX(ctx context.Context, store IdempotencyStore, key string, rec *idempotencyRecord, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, err
	}
	return store.SetNX(ctx, key, data, ttl).Result()
}

func setRecord(ctx context.Context, store IdempotencyStore, key string, rec *idempotencyRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, data, ttl).Err()
}
