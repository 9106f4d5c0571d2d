package domain

import (
	"testing"
	"time"
)

func d(s string) time.Time {
	t, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func r(start, end string) DateRange {
	return DateRange{Start: d(start), End: d(end)}
}

func TestDateRange_Overlaps(t *testing.T) {
	existing := r("2024-09-10", "2024-09-15")

	tests := []struct {
		name      string
		candidate DateRange
		halfOpen  bool
		inclusive bool
	}{
		{"partial overlap right", r("2024-09-12", "2024-09-18"), true, true},
		{"partial overlap left", r("2024-09-08", "2024-09-11"), true, true},
		{"contained", r("2024-09-11", "2024-09-13"), true, true},
		{"contains", r("2024-09-01", "2024-09-30"), true, true},
		{"identical", r("2024-09-10", "2024-09-15"), true, true},
		{"touching after", r("2024-09-15", "2024-09-20"), false, true},
		{"touching before", r("2024-09-05", "2024-09-10"), false, true},
		{"disjoint after", r("2024-09-16", "2024-09-20"), false, false},
		{"disjoint before", r("2024-09-01", "2024-09-09"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.candidate.Overlaps(existing, BoundaryHalfOpen); got != tt.halfOpen {
				t.Errorf("half-open Overlaps() = %v, want %v", got, tt.halfOpen)
			}
			if got := existing.Overlaps(tt.candidate, BoundaryHalfOpen); got != tt.halfOpen {
				t.Errorf("half-open Overlaps() not symmetric: %v", got)
			}
			if got := tt.candidate.Overlaps(existing, BoundaryInclusive); got != tt.inclusive {
				t.Errorf("inclusive Overlaps() = %v, want %v", got, tt.inclusive)
			}
		})
	}
}

func TestDateRange_IsValid(t *testing.T) {
	if !r("2024-09-10", "2024-09-11").IsValid() {
		t.Error("one-night range should be valid")
	}
	if r("2024-09-10", "2024-09-10").IsValid() {
		t.Error("zero-length range should be invalid")
	}
	if r("2024-09-10", "2024-09-09").IsValid() {
		t.Error("reversed range should be invalid")
	}
}

func TestNormalizeDate(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	in := time.Date(2024, 9, 10, 23, 30, 0, 0, loc)
	got := NormalizeDate(in)
	want := time.Date(2024, 9, 10, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NormalizeDate() = %v, want %v", got, want)
	}
}

func TestBooking_Lifecycle(t *testing.T) {
	b := &Booking{StartDate: d("2024-09-10"), EndDate: d("2024-09-15")}

	tests := []struct {
		name string
		now  time.Time
		want Lifecycle
	}{
		{"day before", time.Date(2024, 9, 9, 23, 59, 0, 0, time.UTC), LifecyclePendingFuture},
		{"start day", time.Date(2024, 9, 10, 0, 0, 1, 0, time.UTC), LifecycleActiveOrPast},
		{"after end", time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), LifecycleActiveOrPast},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.LifecycleAt(tt.now); got != tt.want {
				t.Errorf("LifecycleAt() = %v, want %v", got, tt.want)
			}
			if got := b.IsImmutableAt(tt.now); got != (tt.want == LifecycleActiveOrPast) {
				t.Errorf("IsImmutableAt() = %v", got)
			}
		})
	}
}

func TestAuthorizationPolicy_Allows(t *testing.T) {
	b := &Booking{UserID: "guest"}
	spot := &Spot{ID: "s1", OwnerID: "host"}

	tests := []struct {
		name      string
		policy    AuthorizationPolicy
		requester string
		want      bool
	}{
		{"owner policy, guest", AuthBookingOwner, "guest", true},
		{"owner policy, host", AuthBookingOwner, "host", false},
		{"owner policy, stranger", AuthBookingOwner, "other", false},
		{"either policy, guest", AuthBookingOrSpotOwner, "guest", true},
		{"either policy, host", AuthBookingOrSpotOwner, "host", true},
		{"either policy, stranger", AuthBookingOrSpotOwner, "other", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Allows(b, spot, tt.requester); got != tt.want {
				t.Errorf("Allows() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePolicies(t *testing.T) {
	if p, err := ParseBoundaryPolicy(""); err != nil || p != BoundaryHalfOpen {
		t.Errorf("default boundary = %v, %v", p, err)
	}
	if p, err := ParseBoundaryPolicy(" Inclusive "); err != nil || p != BoundaryInclusive {
		t.Errorf("inclusive boundary = %v, %v", p, err)
	}
	if _, err := ParseBoundaryPolicy("closed"); err == nil {
		t.Error("expected error for unknown boundary policy")
	}
	if p, err := ParseAuthorizationPolicy(""); err != nil || p != AuthBookingOwner {
		t.Errorf("default auth = %v, %v", p, err)
	}
	if p, err := ParseAuthorizationPolicy("booking_or_spot_owner"); err != nil || p != AuthBookingOrSpotOwner {
		t.Errorf("auth = %v, %v", p, err)
	}
	if _, err := ParseAuthorizationPolicy("anyone"); err == nil {
		t.Error("expected error for unknown auth policy")
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2024-13-01"); err == nil {
		t.Error("expected error for invalid month")
	}
	if got := d(" 2024-09-10 "); got.Format(DateLayout) != "2024-09-10" {
		t.Errorf("ParseDate() = %v", got)
	}
}

func TestDateRange_ConflictWindowMatchesOverlaps(t *testing.T) {
	existing := r("2024-09-10", "2024-09-15")
	candidates := []DateRange{
		r("2024-09-15", "2024-09-20"),
		r("2024-09-16", "2024-09-20"),
		r("2024-09-05", "2024-09-10"),
		r("2024-09-05", "2024-09-09"),
		r("2024-09-12", "2024-09-13"),
	}

	for _, policy := range []BoundaryPolicy{BoundaryHalfOpen, BoundaryInclusive} {
		for _, c := range candidates {
			want := c.Overlaps(existing, policy)
			got := c.ConflictWindow(policy).Overlaps(existing, BoundaryHalfOpen)
			if got != want {
				t.Errorf("%s %s: window overlap = %v, want %v", policy, c, got, want)
			}
		}
	}
}
