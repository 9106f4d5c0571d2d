package repository

import (
	"errors"
	"fmt"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/pkg/retry"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// classifyPgError maps Postgres failures of a unit of work onto domain errors.
// Lock waits, serialization failures and deadlocks become retryable contention;
// an exclusion violation means the storage-level no-overlap backstop fired.
func classifyPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.LockNotAvailable, pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return retry.Retryable(fmt.Errorf("%w: %s", domain.ErrContention, pgErr.Message))
	case pgerrcode.ExclusionViolation:
		return &domain.ConflictError{}
	case pgerrcode.ForeignKeyViolation:
		return domain.ErrSpotNotFound
	}
	return err
}

// IsContention reports whether err came from a busy spot and may be retried
func IsContention(err error) bool {
	return errors.Is(err, domain.ErrContention)
}
