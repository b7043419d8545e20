package trivia

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"

	"narvalo-quiz/internal/domain"
	"narvalo-quiz/internal/infra/opentdb"
)

const (
	DefaultAmount         = 10
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = time.Second
	questionType          = "multiple"
)

// Source performs a single request against the remote question API.
type Source interface {
	Fetch(ctx context.Context, q opentdb.Query) (opentdb.Response, error)
}

// Bank draws questions from the bundled set.
type Bank interface {
	Draw(n int) ([]domain.Question, error)
}

// Loader produces a batch of questions for a difficulty, retrying transient failures
// with exponential backoff.
type Loader struct {
	source         Source
	bank           Bank
	amount         int
	maxAttempts    int
	initialBackoff time.Duration
	newTimer       func() backoff.Timer
	logger         *slog.Logger
}

// Option customizes a Loader.
type Option func(*Loader)

// WithAmount sets the batch size requested from both sources.
func WithAmount(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.amount = n
		}
	}
}

// WithRetry sets the attempt budget and the first wait; each further wait doubles.
func WithRetry(maxAttempts int, initial time.Duration) Option {
	return func(l *Loader) {
		if maxAttempts > 0 {
			l.maxAttempts = maxAttempts
		}
		if initial > 0 {
			l.initialBackoff = initial
		}
	}
}

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(newTimer func() backoff.Timer) Option {
	return func(l *Loader) { l.newTimer = newTimer }
}

// WithLogger sets the logger used for retry notifications.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLoader(source Source, bank Bank, opts ...Option) *Loader {
	l := &Loader{
		source:         source,
		bank:           bank,
		amount:         DefaultAmount,
		maxAttempts:    DefaultMaxAttempts,
		initialBackoff: DefaultInitialBackoff,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// FetchBatch returns questions for d or a *domain.LoadError once the failure is terminal.
func (l *Loader) FetchBatch(ctx context.Context, d domain.Difficulty) ([]domain.Question, error) {
	if d.Bundled() {
		return l.fromBank()
	}

	query := opentdb.Query{Amount: l.amount, Difficulty: string(d), Type: questionType}
	var (
		attempts  int
		last      *domain.LoadError
		questions []domain.Question
	)

	operation := func() error {
		attempts++
		resp, err := l.source.Fetch(ctx, query)
		if err != nil {
			last = &domain.LoadError{Kind: domain.FailureTransport, Err: err}
			if ctx.Err() != nil {
				return backoff.Permanent(last)
			}
			return last
		}
		switch resp.ResponseCode {
		case opentdb.CodeSuccess:
			questions = toQuestions(resp.Results)
			if len(questions) > 0 {
				return nil
			}
			last = &domain.LoadError{Kind: domain.FailureNotEnoughQuestions, Code: resp.ResponseCode}
		case opentdb.CodeNoResults:
			last = &domain.LoadError{Kind: domain.FailureNotEnoughQuestions, Code: resp.ResponseCode}
		case opentdb.CodeRateLimit:
			last = &domain.LoadError{Kind: domain.FailureRateLimited, Code: resp.ResponseCode}
		default:
			last = &domain.LoadError{Kind: domain.FailureUnknownCode, Code: resp.ResponseCode}
		}
		if !last.Kind.Retryable() {
			return backoff.Permanent(last)
		}
		return last
	}

	notify := func(err error, wait time.Duration) {
		l.logger.WarnContext(ctx, "question fetch failed, retrying",
			"difficulty", d.String(),
			"attempt", attempts,
			"max_attempts", l.maxAttempts,
			"backoff", wait,
			"error", err,
		)
	}

	var timer backoff.Timer
	if l.newTimer != nil {
		timer = l.newTimer()
	}
	err := backoff.RetryNotifyWithTimer(operation, l.policy(ctx), notify, timer)
	if err == nil {
		return questions, nil
	}

	// Anything but a LoadError is the context ending between attempts.
	if !errors.As(err, &last) {
		last = &domain.LoadError{Kind: domain.FailureTransport, Err: err}
	}
	last.Attempts = attempts
	l.logger.ErrorContext(ctx, "question fetch failed",
		"difficulty", d.String(),
		"attempts", attempts,
		"kind", string(last.Kind),
		"error", last,
	)
	return nil, last
}

func (l *Loader) fromBank() ([]domain.Question, error) {
	if l.bank == nil {
		return nil, &domain.LoadError{Kind: domain.FailureNotEnoughQuestions, Err: domain.ErrEmptyBank}
	}
	questions, err := l.bank.Draw(l.amount)
	if err != nil {
		return nil, &domain.LoadError{Kind: domain.FailureNotEnoughQuestions, Err: err}
	}
	return questions, nil
}

// policy waits initialBackoff, then doubles, without jitter, for maxAttempts-1 waits.
func (l *Loader) policy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = l.initialBackoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = time.Duration(math.MaxInt64)
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(l.maxAttempts-1)), ctx)
}
