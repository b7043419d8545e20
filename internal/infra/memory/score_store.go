package memory

import (
	"context"
	"sync"

	"narvalo-quiz/internal/domain"
)

// ScoreStore keeps score records in a map; useful for tests and ephemeral servers.
type ScoreStore struct {
	mu      sync.RWMutex
	records map[string]domain.ScoreRecord
}

func NewScoreStore() *ScoreStore {
	return &ScoreStore{records: make(map[string]domain.ScoreRecord)}
}

func (s *ScoreStore) Load(_ context.Context, key string) domain.ScoreRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[key]
}

func (s *ScoreStore) Save(_ context.Context, key string, record domain.ScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = record.Sanitize()
	return nil
}
