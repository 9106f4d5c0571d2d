package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Idempotent(t *testing.T) {
	require.NoError(t, Init())
	require.NoError(t, Init())
	assert.NotNil(t, BookingsCreated)
	assert.NotNil(t, OutboxDeadLetter)
	assert.NotNil(t, AdmissionDuration)
	assert.NotNil(t, ActiveBookings)
}

func TestRecorders_DoNotPanic(t *testing.T) {
	require.NoError(t, Init())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		RecordCreated(ctx, "spot-1")
		RecordRescheduled(ctx, "spot-1")
		RecordCancelled(ctx, "spot-1")
		RecordRejected(ctx, "create", ReasonConflict)
		RecordRetry(ctx, "create")
		RecordDuration(ctx, "create", 3*time.Millisecond)
		RecordOutboxPublished(ctx, "booking.created")
		RecordOutboxFailed(ctx, "booking.created")
		RecordOutboxDeadLetter(ctx, "booking.created")
	})
}
