package repositories

import (
	"context"
	"maps"
	"sync"

	"github.com/leonovk/wg-rest-api/models"
)

// InMemoryStatStore keeps statistics and events for the life of the process.
type InMemoryStatStore struct {
	mu     sync.RWMutex
	stats  map[string]models.PeerStat
	events map[string]models.EventKind
}

func NewInMemoryStatStore() *InMemoryStatStore {
	return &InMemoryStatStore{
		stats:  make(map[string]models.PeerStat),
		events: make(map[string]models.EventKind),
	}
}

func (s *InMemoryStatStore) LoadStats(_ context.Context) (map[string]models.PeerStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.PeerStat, len(s.stats))
	for k, v := range s.stats {
		out[k] = copyStat(v)
	}
	return out, nil
}

func (s *InMemoryStatStore) SaveStats(_ context.Context, stats map[string]models.PeerStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range stats {
		s.stats[k] = copyStat(v)
	}
	return nil
}

func (s *InMemoryStatStore) LoadEvents(_ context.Context) (map[string]models.EventKind, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.events), nil
}

func (s *InMemoryStatStore) SaveEvents(_ context.Context, events map[string]models.EventKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.events, events)
	return nil
}

func copyStat(stat models.PeerStat) models.PeerStat {
	if stat.Traffic != nil {
		traffic := *stat.Traffic
		stat.Traffic = &traffic
	}
	return stat
}
