package app

import (
	"context"
	"log/slog"

	"narvalo-quiz/internal/domain"
)

// SessionRepository abstracts where live sessions are tracked (in-memory, Redis, etc).
type SessionRepository interface {
	GetOrCreate(playerID string, create func() *Session) *Session
	Get(playerID string) (*Session, bool)
	Delete(playerID string)
}

// QuizService hands out one session per player and wires it to the shared loader and score store.
type QuizService struct {
	sessions SessionRepository
	loader   QuestionLoader
	scores   ScoreStore
	logger   *slog.Logger
}

func NewQuizService(store SessionRepository, loader QuestionLoader, scores ScoreStore, logger *slog.Logger) *QuizService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizService{sessions: store, loader: loader, scores: scores, logger: logger}
}

// Open returns the player's session, creating it (and loading their scores) on first use.
func (s *QuizService) Open(ctx context.Context, playerID string) *Session {
	return s.sessions.GetOrCreate(playerID, func() *Session {
		return NewSession(ctx, playerID, s.loader, s.scores, s.logger)
	})
}

// Session looks up an already opened session.
func (s *QuizService) Session(playerID string) (*Session, error) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Close cancels the player's pending load and forgets the session.
func (s *QuizService) Close(playerID string) {
	session, ok := s.sessions.Get(playerID)
	if !ok {
		return
	}
	session.Close()
	s.sessions.Delete(playerID)
}
