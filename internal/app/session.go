package app

import (
	"context"
	"log/slog"
	"sync"

	"narvalo-quiz/internal/domain"
)

// QuestionLoader obtains a batch of questions for a difficulty.
type QuestionLoader interface {
	FetchBatch(ctx context.Context, d domain.Difficulty) ([]domain.Question, error)
}

// ScoreStore persists the high/last score record. Load never fails; missing or
// corrupt data yields the zero record.
type ScoreStore interface {
	Load(ctx context.Context, key string) domain.ScoreRecord
	Save(ctx context.Context, key string, record domain.ScoreRecord) error
}

// Session is one player's quiz: the load state machine plus progress of the current attempt.
// Mutations are serialized by mu; loads run outside the lock and are tagged with a generation
// so that only the latest one is applied.
type Session struct {
	key    string
	loader QuestionLoader
	scores ScoreStore
	logger *slog.Logger

	mu          sync.RWMutex
	generation  uint64
	cancelLoad  context.CancelFunc
	difficulty  domain.Difficulty
	state       domain.QuizState
	progress    domain.Progress
	record      domain.ScoreRecord
	saved       bool
	closed      bool
	subscribers map[chan domain.Snapshot]struct{}
}

// NewSession loads the score record for key once and starts in the loading state.
func NewSession(ctx context.Context, key string, loader QuestionLoader, scores ScoreStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		key:         key,
		loader:      loader,
		scores:      scores,
		logger:      logger.With("session", key),
		state:       domain.Loading(),
		record:      scores.Load(ctx, key),
		subscribers: make(map[chan domain.Snapshot]struct{}),
	}
}

// LoadQuestions resets progress, enters loading and fetches a new batch. A call that is
// overtaken by a newer one returns ErrSuperseded and its result is dropped.
func (s *Session) LoadQuestions(ctx context.Context, d domain.Difficulty) (domain.QuizState, error) {
	s.mu.Lock()
	if s.cancelLoad != nil {
		s.cancelLoad()
	}
	s.generation++
	gen := s.generation
	loadCtx, cancel := context.WithCancel(ctx)
	s.cancelLoad = cancel
	s.difficulty = d
	s.progress = domain.Progress{}
	s.state = domain.Loading()
	s.saved = false
	s.broadcastLocked()
	s.mu.Unlock()

	questions, err := s.loader.FetchBatch(loadCtx, d)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.closed {
		s.logger.Debug("discarding stale load", "generation", gen, "current", s.generation)
		return s.state, domain.ErrSuperseded
	}
	s.cancelLoad = nil
	if err != nil {
		s.state = domain.Failed(err.Error())
	} else {
		s.state = domain.Ready(questions)
	}
	s.logger.Info("questions loaded",
		"difficulty", d.String(),
		"status", string(s.state.Status),
		"count", len(s.state.Questions),
	)
	s.broadcastLocked()
	return s.state, nil
}

// AnswerQuestion awards 100*multiplier points when answer matches. Calling it twice for
// the same question counts twice; callers gate repeated answers.
func (s *Session) AnswerQuestion(answer, correctAnswer string, multiplier int) bool {
	if answer != correctAnswer {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.Score += 100 * multiplier
	s.progress.CorrectCount++
	s.broadcastLocked()
	return true
}

// NextQuestion advances the index and returns it. An index past the last question means
// the quiz is over.
func (s *Session) NextQuestion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress.CurrentIndex++
	s.broadcastLocked()
	return s.progress.CurrentIndex
}

// ResetQuiz zeroes progress and keeps the loaded questions.
func (s *Session) ResetQuiz() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = domain.Progress{}
	s.saved = false
	s.broadcastLocked()
}

// FinishQuiz persists the score record once per completed attempt.
func (s *Session) FinishQuiz(ctx context.Context) (domain.ScoreRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.completedLocked() {
		return s.record, domain.ErrQuizInProgress
	}
	if s.saved {
		return s.record, nil
	}
	next := s.record.Next(s.progress.Score)
	if err := s.scores.Save(ctx, s.key, next); err != nil {
		return s.record, err
	}
	s.record = next
	s.saved = true
	s.broadcastLocked()
	return next, nil
}

// ResetScores overwrites the persisted record with zeros.
func (s *Session) ResetScores(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.scores.Save(ctx, s.key, domain.ScoreRecord{}); err != nil {
		return err
	}
	s.record = domain.ScoreRecord{}
	s.broadcastLocked()
	return nil
}

// Completed reports whether the current index has moved past the last loaded question.
func (s *Session) Completed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.completedLocked()
}

func (s *Session) completedLocked() bool {
	return s.state.Status == domain.StatusReady && s.progress.CurrentIndex >= len(s.state.Questions)
}

// CurrentQuestion returns the question at the current index while the quiz is running.
func (s *Session) CurrentQuestion() (domain.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Status != domain.StatusReady || s.progress.CurrentIndex >= len(s.state.Questions) {
		return domain.Question{}, false
	}
	return s.state.Questions[s.progress.CurrentIndex], true
}

func (s *Session) State() domain.QuizState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Progress() domain.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

func (s *Session) Scores() domain.ScoreRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record
}

func (s *Session) Difficulty() domain.Difficulty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.difficulty
}

// Snapshot returns the current observable state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives the latest snapshot immediately and after
// every change. The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Close cancels any in-flight load and closes all subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelLoad != nil {
		s.cancelLoad()
		s.cancelLoad = nil
	}
	s.closed = true
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot so a slow reader never blocks mutations.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		Generation: s.generation,
		Difficulty: s.difficulty,
		State:      s.state,
		Progress:   s.progress,
		Scores:     s.record,
	}
}
