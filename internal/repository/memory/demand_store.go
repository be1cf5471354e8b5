package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bitfantasy/nimo-demand/internal/model/entity"
	"github.com/bitfantasy/nimo-demand/internal/repository"
)

// DemandStore provides in-memory demand storage with the same contract as the
// gorm repository: assigned ids and timestamps, a unique SKU index, hard
// deletes. Used by unit tests and as a database-free storage backend.
type DemandStore struct {
	mu      sync.Mutex
	demands []entity.Demand
	nextID  uint
	clock   func() time.Time
}

// NewDemandStore creates an empty in-memory demand store
func NewDemandStore() *DemandStore {
	return &DemandStore{nextID: 1, clock: time.Now}
}

// SetClock overrides the timestamp source, for tests
func (s *DemandStore) SetClock(clock func() time.Time) {
	s.clock = clock
}

// List returns all demands ordered by creation time descending,
// insertion order breaking ties
func (s *DemandStore) List(ctx context.Context) ([]entity.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.Demand, len(s.demands))
	copy(out, s.demands)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindByID returns the demand with the given id or repository.ErrNotFound
func (s *DemandStore) FindByID(ctx context.Context, id uint) (*entity.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.demands {
		if s.demands[i].ID == id {
			d := s.demands[i]
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

// FindBySKU returns the demand with the given sku or repository.ErrNotFound
func (s *DemandStore) FindBySKU(ctx context.Context, sku string) (*entity.Demand, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.demands {
		if s.demands[i].SKU == sku {
			d := s.demands[i]
			return &d, nil
		}
	}
	return nil, repository.ErrNotFound
}

// Create assigns id and timestamps and persists the record;
// duplicate sku returns repository.ErrDuplicateSKU
func (s *DemandStore) Create(ctx context.Context, demand *entity.Demand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.demands {
		if s.demands[i].SKU == demand.SKU {
			return repository.ErrDuplicateSKU
		}
	}

	now := s.clock()
	demand.ID = s.nextID
	s.nextID++
	demand.CreatedAt = now
	demand.UpdatedAt = now
	s.demands = append(s.demands, *demand)
	return nil
}

// Update replaces the stored record with a fresh updated_at;
// unknown id returns repository.ErrNotFound
func (s *DemandStore) Update(ctx context.Context, demand *entity.Demand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.demands {
		if s.demands[i].ID == demand.ID {
			demand.UpdatedAt = s.clock()
			s.demands[i] = *demand
			return nil
		}
	}
	return repository.ErrNotFound
}

// Delete removes the record; a second delete of the same id fails
func (s *DemandStore) Delete(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.demands {
		if s.demands[i].ID == id {
			s.demands = append(s.demands[:i], s.demands[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// Seed inserts a record as-is without assigning id or timestamps,
// bypassing the unique index. Test helper for pre-populating state.
func (s *DemandStore) Seed(demand entity.Demand) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if demand.ID >= s.nextID {
		s.nextID = demand.ID + 1
	}
	s.demands = append(s.demands, demand)
}
