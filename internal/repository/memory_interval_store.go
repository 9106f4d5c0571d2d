package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/imanidev/VacayStay/internal/domain"
	"github.com/imanidev/VacayStay/pkg/retry"
)

// MemoryIntervalStore keeps every spot's bookings in a slice sorted by start
// date. Writers on a spot are serialized by that spot's lock; readers see the
// last committed slice.
type MemoryIntervalStore struct {
	lockTimeout time.Duration
	outbox      *MemoryOutboxRepository

	mu    sync.RWMutex
	spots map[string]*spotIntervals
	index map[string]string // booking id -> spot id
}

type spotIntervals struct {
	// writer holds a token while a unit of work is open
	writer chan struct{}

	mu       sync.RWMutex
	bookings []*domain.Booking
}

// NewMemoryIntervalStore creates an empty store. lockTimeout bounds how long a
// writer waits for a busy spot before failing with domain.ErrContention.
func NewMemoryIntervalStore(lockTimeout time.Duration, outbox *MemoryOutboxRepository) *MemoryIntervalStore {
	if outbox == nil {
		outbox = NewMemoryOutboxRepository()
	}
	return &MemoryIntervalStore{
		lockTimeout: lockTimeout,
		outbox:      outbox,
		spots:       make(map[string]*spotIntervals),
		index:       make(map[string]string),
	}
}

// Outbox returns the outbox the store appends to
func (s *MemoryIntervalStore) Outbox() *MemoryOutboxRepository {
	return s.outbox
}

func (s *MemoryIntervalStore) spot(spotID string, create bool) *spotIntervals {
	s.mu.RLock()
	sp, ok := s.spots[spotID]
	s.mu.RUnlock()
	if ok || !create {
		return sp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sp, ok = s.spots[spotID]; !ok {
		sp = &spotIntervals{writer: make(chan struct{}, 1)}
		s.spots[spotID] = sp
	}
	return sp
}

func (sp *spotIntervals) snapshot() []*domain.Booking {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	return sp.bookings
}

// GetBooking returns a copy of the booking with id
func (s *MemoryIntervalStore) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	s.mu.RLock()
	spotID, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrBookingNotFound
	}

	sp := s.spot(spotID, false)
	if sp == nil {
		return nil, domain.ErrBookingNotFound
	}
	for _, b := range sp.snapshot() {
		if b.ID == id {
			return b.Clone(), nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

// ListBySpot returns the spot's bookings ordered by start date
func (s *MemoryIntervalStore) ListBySpot(ctx context.Context, spotID string) ([]*domain.Booking, error) {
	sp := s.spot(spotID, false)
	if sp == nil {
		return []*domain.Booking{}, nil
	}
	return cloneAll(sp.snapshot()), nil
}

// ListByUser returns the user's bookings ordered by start date
func (s *MemoryIntervalStore) ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	s.mu.RLock()
	all := make([]*spotIntervals, 0, len(s.spots))
	for _, sp := range s.spots {
		all = append(all, sp)
	}
	s.mu.RUnlock()

	out := []*domain.Booking{}
	for _, sp := range all {
		for _, b := range sp.snapshot() {
			if b.UserID == userID {
				out = append(out, b.Clone())
			}
		}
	}
	sortBookings(out)
	return out, nil
}

// FindConflicts searches the committed set of spotID
func (s *MemoryIntervalStore) FindConflicts(ctx context.Context, spotID string, r domain.DateRange, excludeID string) ([]*domain.Booking, error) {
	sp := s.spot(spotID, false)
	if sp == nil {
		return []*domain.Booking{}, nil
	}
	return findConflicts(sp.snapshot(), r, excludeID), nil
}

// WithinSpot stages changes on a private copy of the spot's slice and
// publishes it in one swap when fn succeeds
func (s *MemoryIntervalStore) WithinSpot(ctx context.Context, spotID string, fn func(ctx context.Context, tx SpotTx) error) error {
	sp := s.spot(spotID, true)

	if err := s.acquire(ctx, sp); err != nil {
		return err
	}
	defer func() { <-sp.writer }()

	tx := &memorySpotTx{
		spotID:   spotID,
		bookings: slices.Clone(sp.snapshot()),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	sp.mu.Lock()
	sp.bookings = tx.bookings
	sp.mu.Unlock()

	s.mu.Lock()
	for _, id := range tx.removed {
		delete(s.index, id)
	}
	for _, id := range tx.inserted {
		s.index[id] = spotID
	}
	s.mu.Unlock()

	for _, msg := range tx.outbox {
		s.outbox.add(msg)
	}
	return nil
}

func (s *MemoryIntervalStore) acquire(ctx context.Context, sp *spotIntervals) error {
	var timeout <-chan time.Time
	if s.lockTimeout > 0 {
		t := time.NewTimer(s.lockTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case sp.writer <- struct{}{}:
		return nil
	case <-timeout:
		return retry.Retryable(fmt.Errorf("%w: lock wait exceeded %s", domain.ErrContention, s.lockTimeout))
	case <-ctx.Done():
		return ctx.Err()
	}
}

type memorySpotTx struct {
	spotID   string
	bookings []*domain.Booking
	inserted []string
	removed  []string
	outbox   []*domain.OutboxMessage
}

func (tx *memorySpotTx) SpotID() string { return tx.spotID }

func (tx *memorySpotTx) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	if i := tx.indexOf(id); i >= 0 {
		return tx.bookings[i].Clone(), nil
	}
	return nil, domain.ErrBookingNotFound
}

func (tx *memorySpotTx) FindConflicts(ctx context.Context, r domain.DateRange, excludeID string) ([]*domain.Booking, error) {
	return findConflicts(tx.bookings, r, excludeID), nil
}

func (tx *memorySpotTx) Insert(ctx context.Context, booking *domain.Booking) error {
	if booking.SpotID != tx.spotID {
		return fmt.Errorf("booking for spot %s inserted under spot %s", booking.SpotID, tx.spotID)
	}
	stored := booking.Clone()
	i := sort.Search(len(tx.bookings), func(i int) bool { return !lessBooking(tx.bookings[i], stored) })
	tx.bookings = slices.Insert(tx.bookings, i, stored)
	tx.inserted = append(tx.inserted, stored.ID)
	return nil
}

func (tx *memorySpotTx) Remove(ctx context.Context, id string) error {
	i := tx.indexOf(id)
	if i < 0 {
		return domain.ErrBookingNotFound
	}
	tx.bookings = slices.Delete(tx.bookings, i, i+1)
	tx.removed = append(tx.removed, id)
	return nil
}

func (tx *memorySpotTx) Replace(ctx context.Context, id string, r domain.DateRange, updatedAt time.Time) (*domain.Booking, error) {
	i := tx.indexOf(id)
	if i < 0 {
		return nil, domain.ErrBookingNotFound
	}
	updated := tx.bookings[i].Clone()
	updated.StartDate = r.Start
	updated.EndDate = r.End
	updated.UpdatedAt = updatedAt

	tx.bookings = slices.Delete(tx.bookings, i, i+1)
	j := sort.Search(len(tx.bookings), func(k int) bool { return !lessBooking(tx.bookings[k], updated) })
	tx.bookings = slices.Insert(tx.bookings, j, updated)
	return updated.Clone(), nil
}

func (tx *memorySpotTx) AppendOutbox(ctx context.Context, msg *domain.OutboxMessage) error {
	tx.outbox = append(tx.outbox, msg)
	return nil
}

func (tx *memorySpotTx) indexOf(id string) int {
	for i, b := range tx.bookings {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// findConflicts relies on committed intervals being pairwise disjoint, which
// makes end dates ascend along with start dates. The first candidate is the
// first booking ending after r.Start; the scan stops at the first booking
// starting at or after r.End.
func findConflicts(bookings []*domain.Booking, r domain.DateRange, excludeID string) []*domain.Booking {
	out := []*domain.Booking{}
	first := sort.Search(len(bookings), func(i int) bool { return bookings[i].EndDate.After(r.Start) })
	for _, b := range bookings[first:] {
		if !b.StartDate.Before(r.End) {
			break
		}
		if b.ID == excludeID {
			continue
		}
		if b.Range().Overlaps(r, domain.BoundaryHalfOpen) {
			out = append(out, b.Clone())
		}
	}
	return out
}

func lessBooking(a, b *domain.Booking) bool {
	if !a.StartDate.Equal(b.StartDate) {
		return a.StartDate.Before(b.StartDate)
	}
	return a.ID < b.ID
}

func sortBookings(bs []*domain.Booking) {
	sort.Slice(bs, func(i, j int) bool { return lessBooking(bs[i], bs[j]) })
}

func cloneAll(bs []*domain.Booking) []*domain.Booking {
	out := make([]*domain.Booking, len(bs))
	for i, b := range bs {
		out[i] = b.Clone()
	}
	return out
}
