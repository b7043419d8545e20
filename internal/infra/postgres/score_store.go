package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"narvalo-quiz/internal/domain"
)

// ScoreStore keeps score records as JSONB rows keyed by (namespace, key).
type ScoreStore struct {
	pool      *pgxpool.Pool
	namespace string
}

func NewScoreStore(pool *pgxpool.Pool, namespace string) *ScoreStore {
	if namespace == "" {
		namespace = "narvalo_scores"
	}
	return &ScoreStore{pool: pool, namespace: namespace}
}

func (s *ScoreStore) Load(ctx context.Context, key string) domain.ScoreRecord {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM scores WHERE namespace=$1 AND key=$2`, s.namespace, key).Scan(&raw)
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO scores (namespace, key, data, updated_at) VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (namespace, key) DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at`,
		s.namespace, key, string(data))
	if err != nil {
		return fmt.Errorf("save scores: %w", err)
	}
	return nil
}
