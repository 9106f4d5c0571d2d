package repository

import (
	"context"
	"sync"

	"github.com/imanidev/VacayStay/internal/domain"
)

// MemorySpotRepository is a fixed spot directory for the memory store and tests
type MemorySpotRepository struct {
	mu    sync.RWMutex
	spots map[string]domain.Spot
}

func NewMemorySpotRepository(spots ...domain.Spot) *MemorySpotRepository {
	r := &MemorySpotRepository{spots: make(map[string]domain.Spot, len(spots))}
	for _, s := range spots {
		r.spots[s.ID] = s
	}
	return r
}

// AddSpot registers or replaces a spot
func (r *MemorySpotRepository) AddSpot(spot domain.Spot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spots[spot.ID] = spot
}

func (r *MemorySpotRepository) GetSpot(ctx context.Context, id string) (*domain.Spot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.spots[id]
	if !ok {
		return nil, domain.ErrSpotNotFound
	}
	return &s, nil
}

// UpsertSpot satisfies SpotWriter
func (r *MemorySpotRepository) UpsertSpot(ctx context.Context, spot domain.Spot) error {
	r.AddSpot(spot)
	return nil
}
