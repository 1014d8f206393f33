package geocache

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/restaurant-dispatch-service/internal/domain"
)

// Entry is one cached geocoding outcome. An Unresolved coordinate is a
// negative entry.
type Entry struct {
	Address    string            `json:"address"`
	Coordinate domain.Coordinate `json:"coordinate"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Store persists cache entries keyed by address.
type Store interface {
	// Get returns the entries that exist for the given addresses. Addresses
	// without an entry are absent from the result.
	Get(ctx context.Context, addresses []string) (map[string]Entry, error)
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, address string) error
}

// MemoryStore is an unbounded, process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Get(_ context.Context, addresses []string) (map[string]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]Entry, len(addresses))
	for _, addr := range addresses {
		if e, ok := s.entries[addr]; ok {
			found[addr] = e
		}
	}
	return found, nil
}

func (s *MemoryStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Address] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, address)
	return nil
}
