package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"narvalo-quiz/internal/domain"
)

// DefaultNamespace prefixes every score key.
const DefaultNamespace = "narvalo_scores"

// ScoreStore keeps each score record as one JSON string:
//
//	SET {namespace}:{key} {"high_score":..,"last_score":..}
//
// A single SET replaces both fields at once.
type ScoreStore struct {
	client    *redis.Client
	namespace string
}

func NewScoreStore(client *redis.Client, namespace string) *ScoreStore {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &ScoreStore{client: client, namespace: namespace}
}

func (s *ScoreStore) Load(ctx context.Context, key string) domain.ScoreRecord {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		return domain.ScoreRecord{}
	}
	var record domain.ScoreRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return domain.ScoreRecord{}
	}
	return record.Sanitize()
}

func (s *ScoreStore) Save(ctx context.Context, key string, record domain.ScoreRecord) error {
	data, err := json.Marshal(record.Sanitize())
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	if err := s.client.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("save scores: %w", err)
	}
	return nil
}

func (s *ScoreStore) key(key string) string {
	return s.namespace + ":" + key
}
