package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"narvalo-quiz/internal/domain"
)

func TestScoreStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewScoreStore(newClient(mr), "")
	ctx := context.Background()

	if got := store.Load(ctx, "scores_data"); got != (domain.ScoreRecord{}) {
		t.Fatalf("expected default record, got %+v", got)
	}

	if err := store.Save(ctx, "scores_data", domain.ScoreRecord{HighScore: 500, LastScore: 300}); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := mr.Get("narvalo_scores:scores_data")
	if err != nil {
		t.Fatalf("expected key to be written: %v", err)
	}
	if raw != `{"high_score":500,"last_score":300}` {
		t.Fatalf("unexpected stored payload %s", raw)
	}

	if got := store.Load(ctx, "scores_data"); got != (domain.ScoreRecord{HighScore: 500, LastScore: 300}) {
		t.Fatalf("expected {500 300}, got %+v", got)
	}
}

func TestScoreStoreCorruptRecordFallsBack(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	if err := mr.Set("narvalo_scores:p1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	store := NewScoreStore(newClient(mr), "")
	if got := store.Load(context.Background(), "p1"); got != (domain.ScoreRecord{}) {
		t.Fatalf("expected default record for corrupt data, got %+v", got)
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
