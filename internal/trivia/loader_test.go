package trivia

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"narvalo-quiz/internal/domain"
	"narvalo-quiz/internal/infra/opentdb"
)

// scriptedSource replays one outcome per call; the last outcome repeats.
type scriptedSource struct {
	mu       sync.Mutex
	outcomes []outcome
	queries  []opentdb.Query
}

type outcome struct {
	resp opentdb.Response
	err  error
}

func (s *scriptedSource) Fetch(_ context.Context, q opentdb.Query) (opentdb.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	o := s.outcomes[min(len(s.queries), len(s.outcomes))-1]
	return o.resp, o.err
}

func (s *scriptedSource) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

// instantTimer fires immediately and records the requested waits.
type instantTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c <- time.Now()
}

func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

func (t *instantTimer) total() time.Duration {
	var sum time.Duration
	for _, w := range t.waits {
		sum += w
	}
	return sum
}

func code(c int) outcome {
	return outcome{resp: opentdb.Response{ResponseCode: c}}
}

func success(n int) outcome {
	results := make([]opentdb.Result, n)
	for i := range results {
		results[i] = opentdb.Result{
			Category:         "General Knowledge",
			Type:             "multiple",
			Difficulty:       "medium",
			Question:         "Question &quot;" + string(rune('A'+i)) + "&quot;?",
			CorrectAnswer:    "Right",
			IncorrectAnswers: []string{"Wrong 1", "Wrong 2", "Wrong 3"},
		}
	}
	return outcome{resp: opentdb.Response{ResponseCode: opentdb.CodeSuccess, Results: results}}
}

func newTestLoader(src Source, bank Bank) (*Loader, *instantTimer) {
	timer := newInstantTimer()
	return NewLoader(src, bank, WithTimer(func() backoff.Timer { return timer })), timer
}

func TestRateLimitedThenSuccess(t *testing.T) {
	src := &scriptedSource{outcomes: []outcome{code(5), code(5), code(5), code(5), success(10)}}
	loader, timer := newTestLoader(src, nil)

	questions, err := loader.FetchBatch(context.Background(), domain.DifficultyMedium)
	require.NoError(t, err)

	assert.Len(t, questions, 10)
	assert.Equal(t, 5, src.calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, timer.waits)
	assert.GreaterOrEqual(t, timer.total(), 15*time.Second)
}

func TestRateLimitedExhaustsAttempts(t *testing.T) {
	src := &scriptedSource{outcomes: []outcome{code(5)}}
	loader, timer := newTestLoader(src, nil)

	_, err := loader.FetchBatch(context.Background(), domain.DifficultyHard)

	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, domain.FailureRateLimited, loadErr.Kind)
	assert.Equal(t, 5, loadErr.Attempts)
	assert.Equal(t, "too many requests after 5 attempts", loadErr.Error())
	assert.Equal(t, 5, src.calls())
	assert.Len(t, timer.waits, 4)
}

func TestNotEnoughQuestionsIsTerminal(t *testing.T) {
	src := &scriptedSource{outcomes: []outcome{code(1)}}
	loader, timer := newTestLoader(src, nil)

	_, err := loader.FetchBatch(context.Background(), domain.DifficultyEasy)

	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, domain.FailureNotEnoughQuestions, loadErr.Kind)
	assert.Equal(t, 1, src.calls())
	assert.Empty(t, timer.waits)
}

func TestTransportAndUnknownCodeMessages(t *testing.T) {
	boom := errors.New("connection refused")
	src := &scriptedSource{outcomes: []outcome{{err: boom}}}
	loader, _ := newTestLoader(src, nil)

	_, err := loader.FetchBatch(context.Background(), domain.DifficultyAny)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "network error: connection refused", err.Error())
	assert.Equal(t, 5, src.calls())

	src = &scriptedSource{outcomes: []outcome{code(2)}}
	loader, _ = newTestLoader(src, nil)
	_, err = loader.FetchBatch(context.Background(), domain.DifficultyAny)
	assert.Equal(t, "error while loading questions (code: 2)", err.Error())
	assert.Equal(t, 5, src.calls())
}

func TestLastFailureKindWins(t *testing.T) {
	src := &scriptedSource{outcomes: []outcome{code(5), {err: errors.New("reset")}, code(5), code(5), code(5)}}
	loader, _ := newTestLoader(src, nil)

	_, err := loader.FetchBatch(context.Background(), domain.DifficultyMedium)

	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, domain.FailureRateLimited, loadErr.Kind)
}

func TestRequestShapeAndNormalization(t *testing.T) {
	src := &scriptedSource{outcomes: []outcome{{resp: opentdb.Response{Results: []opentdb.Result{{
		Question:         "Who said &ldquo;I&rsquo;ll be back&rdquo; &amp; left?",
		CorrectAnswer:    "&quot;Arnold&quot;",
		IncorrectAnswers: []string{"Tom &lt;3", "Bob &gt; 2", "Ann&#039;s"},
	}}}}}}
	loader, _ := newTestLoader(src, nil)

	questions, err := loader.FetchBatch(context.Background(), domain.DifficultyHard)
	require.NoError(t, err)
	require.Len(t, questions, 1)

	assert.Equal(t, opentdb.Query{Amount: 10, Difficulty: "hard", Type: "multiple"}, src.queries[0])
	q := questions[0]
	assert.Equal(t, `Who said "I'll be back" & left?`, q.Prompt)
	assert.Equal(t, `"Arnold"`, q.CorrectAnswer)
	assert.Equal(t, []string{"Tom <3", "Bob > 2", "Ann's"}, q.IncorrectAnswers)
}

type stubBank struct {
	questions []domain.Question
	err       error
	asked     int
}

func (b *stubBank) Draw(n int) ([]domain.Question, error) {
	b.asked = n
	return b.questions, b.err
}

func TestBundledDifficultySkipsNetwork(t *testing.T) {
	src := &scriptedSource{outcomes: []outcome{code(5)}}
	bank := &stubBank{questions: []domain.Question{{Prompt: "local", CorrectAnswer: "a", IncorrectAnswers: []string{"b", "c", "d"}}}}
	loader, timer := newTestLoader(src, bank)

	questions, err := loader.FetchBatch(context.Background(), domain.DifficultyEmilien)
	require.NoError(t, err)

	assert.Equal(t, bank.questions, questions)
	assert.Equal(t, 10, bank.asked)
	assert.Zero(t, src.calls())
	assert.Empty(t, timer.waits)

	bank.err = domain.ErrEmptyBank
	_, err = loader.FetchBatch(context.Background(), domain.DifficultyEmilien)
	assert.ErrorIs(t, err, domain.ErrEmptyBank)
}

func TestCancelStopsBackoffWait(t *testing.T) {
	src := &scriptedSource{outcomes: []outcome{code(5)}}
	loader := NewLoader(src, nil, WithRetry(5, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := loader.FetchBatch(ctx, domain.DifficultyEasy)
		done <- err
	}()

	require.Eventually(t, func() bool { return src.calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "loader did not return after cancel")
	}
	assert.Equal(t, 1, src.calls())
}

// blockingSource waits for the caller's context and fails like the HTTP client does.
type blockingSource struct {
	started chan struct{}
}

func (s blockingSource) Fetch(ctx context.Context, _ opentdb.Query) (opentdb.Response, error) {
	s.started <- struct{}{}
	<-ctx.Done()
	return opentdb.Response{}, fmt.Errorf("request questions: %w", ctx.Err())
}

func TestCancelDuringFetchKeepsSingleError(t *testing.T) {
	src := blockingSource{started: make(chan struct{}, 1)}
	loader, timer := newTestLoader(src, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := loader.FetchBatch(ctx, domain.DifficultyMedium)
		done <- err
	}()
	<-src.started
	cancel()

	err := <-done
	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, domain.FailureTransport, loadErr.Kind)
	assert.Equal(t, 1, loadErr.Attempts)
	assert.Equal(t, "network error: request questions: context canceled", err.Error())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, timer.waits)
}

func TestDecodedDuplicateAnswerIsDropped(t *testing.T) {
	src := &scriptedSource{outcomes: []outcome{{resp: opentdb.Response{Results: []opentdb.Result{
		{Question: "Whose book?", CorrectAnswer: "Ann's", IncorrectAnswers: []string{"Ann&rsquo;s", "Bob's", "Tim's"}},
		{Question: "Valid?", CorrectAnswer: "Yes", IncorrectAnswers: []string{"No", "Maybe", "Never"}},
	}}}}}
	loader, _ := newTestLoader(src, nil)

	questions, err := loader.FetchBatch(context.Background(), domain.DifficultyEasy)
	require.NoError(t, err)
	require.Len(t, questions, 1)
	assert.Equal(t, "Valid?", questions[0].Prompt)
}

func TestOnlyInvalidQuestionsIsNotEnough(t *testing.T) {
	src := &scriptedSource{outcomes: []outcome{{resp: opentdb.Response{Results: []opentdb.Result{
		{Question: "Q", CorrectAnswer: "A", IncorrectAnswers: []string{"A", "B", "C"}},
	}}}}}
	loader, timer := newTestLoader(src, nil)

	_, err := loader.FetchBatch(context.Background(), domain.DifficultyEasy)
	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, domain.FailureNotEnoughQuestions, loadErr.Kind)
	assert.Equal(t, 1, src.calls())
	assert.Empty(t, timer.waits)
}
