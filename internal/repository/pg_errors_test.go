package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/pkg/retry"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestClassifyPgError(t *testing.T) {
	pg := func(code string) error {
		return fmt.Errorf("exec: %w", &pgconn.PgError{Code: code, Message: "msg"})
	}

	tests := []struct {
		name       string
		err        error
		contention bool
		conflict   bool
		notFound   bool
	}{
		{"lock timeout", pg(pgerrcode.LockNotAvailable), true, false, false},
		{"serialization", pg(pgerrcode.SerializationFailure), true, false, false},
		{"deadlock", pg(pgerrcode.DeadlockDetected), true, false, false},
		{"exclusion", pg(pgerrcode.ExclusionViolation), false, true, false},
		{"foreign key", pg(pgerrcode.ForeignKeyViolation), false, false, true},
		{"syntax", pg(pgerrcode.SyntaxError), false, false, false},
		{"plain", errors.New("boom"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyPgError(tt.err)
			assert.Equal(t, tt.contention, IsContention(got))
			assert.Equal(t, tt.contention, retry.IsRetryable(got))
			assert.Equal(t, tt.conflict, domain.IsConflictError(got))
			assert.Equal(t, tt.notFound, domain.IsNotFoundError(got))
		})
	}

	assert.NoError(t, classifyPgError(nil))
}
