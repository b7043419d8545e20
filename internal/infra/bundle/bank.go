package bundle

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"narvalo-quiz/internal/domain"
)

//go:embed questions.json
var embeddedQuestions []byte

// Bank is the local question set used for the bundled difficulty.
type Bank struct {
	questions []domain.Question

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewEmbedded loads the question set shipped with the binary.
func NewEmbedded() (*Bank, error) {
	return Parse(embeddedQuestions)
}

// Open loads a question set from path, falling back to the embedded set when path is empty.
func Open(path string) (*Bank, error) {
	if path == "" {
		return NewEmbedded()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON array of questions and drops entries breaking the question invariant.
func Parse(data []byte) (*Bank, error) {
	var raw []domain.Question
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	questions := make([]domain.Question, 0, len(raw))
	for _, q := range raw {
		if q.Valid() {
			questions = append(questions, q)
		}
	}
	return &Bank{
		questions: questions,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Len returns the number of usable questions.
func (b *Bank) Len() int { return len(b.questions) }

// Draw returns up to n distinct questions in random order.
func (b *Bank) Draw(n int) ([]domain.Question, error) {
	if len(b.questions) == 0 {
		return nil, domain.ErrEmptyBank
	}
	shuffled := make([]domain.Question, len(b.questions))
	copy(shuffled, b.questions)

	b.mu.Lock()
	for i := len(shuffled) - 1; i > 0; i-- {
		j := b.rnd.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	b.mu.Unlock()

	if n <= 0 || n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n], nil
}
