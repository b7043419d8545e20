package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned when no quiz session is open for a player.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrSuperseded is returned by a load whose result was discarded because a newer load started.
	ErrSuperseded = errors.New("quiz load superseded by a newer request")
	// ErrQuizInProgress is returned when scores are saved before the last question was passed.
	ErrQuizInProgress = errors.New("quiz not completed")
	// ErrUnknownDifficulty indicates a difficulty string outside the known tiers.
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	// ErrDifficultyLocked is returned when a tier is requested before the player's high score unlocks it.
	ErrDifficultyLocked = errors.New("difficulty locked: reach a high score of 3000 to unlock it")
	// ErrEmptyBank indicates the bundled question bank has no questions.
	ErrEmptyBank = errors.New("bundled question bank is empty")
)

// FailureKind classifies why a question batch could not be loaded.
type FailureKind string

const (
	FailureRateLimited        FailureKind = "rate_limited"
	FailureTransport          FailureKind = "transport"
	FailureNotEnoughQuestions FailureKind = "not_enough_questions"
	FailureUnknownCode        FailureKind = "unknown_code"
)

// Retryable reports whether the loader keeps trying after a failure of this kind.
func (k FailureKind) Retryable() bool {
	return k != FailureNotEnoughQuestions
}

// LoadError is the terminal outcome of a question fetch. Its message is user facing.
type LoadError struct {
	Kind     FailureKind
	Attempts int
	Code     int
	Err      error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case FailureRateLimited:
		return fmt.Sprintf("too many requests after %d attempts", e.Attempts)
	case FailureNotEnoughQuestions:
		return "not enough questions available for this difficulty"
	case FailureUnknownCode:
		return fmt.Sprintf("error while loading questions (code: %d)", e.Code)
	default:
		if e.Err != nil {
			return "network error: " + e.Err.Error()
		}
		return "network error"
	}
}

func (e *LoadError) Unwrap() error { return e.Err }
