package dto

import (
	"testing"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  BookingRequest
		want map[string]string
	}{
		{"valid", BookingRequest{StartDate: "2024-09-10", EndDate: "2024-09-15"}, nil},
		{"missing both", BookingRequest{}, map[string]string{
			"startDate": domain.MsgStartRequired,
			"endDate":   domain.MsgEndRequired,
		}},
		{"bad format", BookingRequest{StartDate: "10/09/2024", EndDate: "2024-09-15"}, map[string]string{
			"startDate": "startDate must be a date formatted YYYY-MM-DD",
		}},
		{"not a date", BookingRequest{StartDate: "2024-09-10", EndDate: "2024-02-30"}, map[string]string{
			"endDate": "endDate must be a date formatted YYYY-MM-DD",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(&tt.req))
		})
	}
}

func TestBookingRequest_Range(t *testing.T) {
	req := BookingRequest{StartDate: "2024-09-10", EndDate: "2024-09-15"}
	r, err := req.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC), r.End)

	_, err = (&BookingRequest{StartDate: "x", EndDate: "2024-09-15"}).Range()
	assert.Error(t, err)
}

func TestProjections(t *testing.T) {
	now := time.Date(2024, 9, 12, 8, 0, 0, 0, time.UTC)
	b := &domain.Booking{
		ID:        "b1",
		SpotID:    "spot-1",
		UserID:    "guest",
		StartDate: time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC),
	}

	full := FromDomain(b, now)
	assert.Equal(t, "2024-09-10", full.StartDate)
	assert.Equal(t, "2024-09-15", full.EndDate)
	assert.Equal(t, string(domain.LifecycleActiveOrPast), full.Status)

	public := PublicFromDomainList([]*domain.Booking{b})
	require.Len(t, public, 1)
	assert.Equal(t, PublicBookingResponse{SpotID: "spot-1", StartDate: "2024-09-10", EndDate: "2024-09-15"}, *public[0])

	assert.Empty(t, FromDomainList(nil, now))
	assert.NotNil(t, FromDomainList(nil, now))
	assert.Equal(t, []ConflictResponse{{StartDate: "2024-09-10", EndDate: "2024-09-15"}}, ConflictsFromDomain([]*domain.Booking{b}))
}
