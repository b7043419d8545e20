package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // driver: sqlite
	"narvalo-quiz/internal/domain"
)

const schema = `CREATE TABLE IF NOT EXISTS scores (
	namespace TEXT NOT NULL,
	key       TEXT NOT NULL,
	data      TEXT NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// ScoreStore is the local, single-file score store used by the terminal client.
type ScoreStore struct {
	db        *sql.DB
	namespace string
}

// Open opens (or creates) the database at path and ensures the schema exists.
func Open(ctx context.Context, path, namespace string) (*ScoreStore, error) {
	if path == "" {
		path = "narvalo.db"
	}
	if namespace == "" {
		namespace = "narvalo_scores"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &ScoreStore{db: db, namespace: namespace}, nil
}

func (s *ScoreStore) Close() error { return s.db.Close() }

func (s *ScoreStore) Load(ctx context.Context, key string) domain.ScoreRecord {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM scores WHERE namespace=? AND key=?`, s.namespace, key).Scan(&raw)
	if err != nil {
		return domain.ScoreRecord{}
	}
	var record domain.ScoreRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return domain.ScoreRecord{}
	}
	return record.Sanitize()
}

func (s *ScoreStore) Save(ctx context.Context, key string, record domain.ScoreRecord) error {
	data, err := json.Marshal(record.Sanitize())
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scores (namespace, key, data) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET data=excluded.data`,
		s.namespace, key, string(data))
	if err != nil {
		return fmt.Errorf("save scores: %w", err)
	}
	return nil
}
