package domain

import (
	"errors"
	"slices"
	"testing"
)

func TestAllAnswersIsPermutation(t *testing.T) {
	q := Question{
		Prompt:           "Capital of France?",
		CorrectAnswer:    "Paris",
		IncorrectAnswers: []string{"Lyon", "Nice", "Lille"},
	}

	for i := 0; i < 50; i++ {
		answers := q.AllAnswers()
		if len(answers) != 4 {
			t.Fatalf("expected 4 answers, got %d", len(answers))
		}
		count := 0
		for _, a := range answers {
			if a == "Paris" {
				count++
			}
		}
		if count != 1 {
			t.Fatalf("expected correct answer exactly once, got %d in %v", count, answers)
		}
		sorted := slices.Clone(answers)
		slices.Sort(sorted)
		if !slices.Equal(sorted, []string{"Lille", "Lyon", "Nice", "Paris"}) {
			t.Fatalf("unexpected answer set %v", answers)
		}
	}

	if !slices.Equal(q.IncorrectAnswers, []string{"Lyon", "Nice", "Lille"}) {
		t.Fatalf("shuffle mutated the question: %v", q.IncorrectAnswers)
	}
}

func TestQuestionValid(t *testing.T) {
	ok := Question{Prompt: "p", CorrectAnswer: "a", IncorrectAnswers: []string{"b", "c", "d"}}
	if !ok.Valid() {
		t.Fatalf("expected valid question")
	}
	dup := Question{Prompt: "p", CorrectAnswer: "a", IncorrectAnswers: []string{"a", "c", "d"}}
	if dup.Valid() {
		t.Fatalf("expected correct answer among incorrect ones to be invalid")
	}
	if !ok.IsCorrect("a") || ok.IsCorrect("A") {
		t.Fatalf("expected exact answer match")
	}
}

func TestParseDifficultyAndMultiplier(t *testing.T) {
	cases := []struct {
		raw  string
		want Difficulty
		mult int
	}{
		{"", DifficultyAny, 1},
		{"any", DifficultyAny, 1},
		{"Easy", DifficultyEasy, 1},
		{"medium", DifficultyMedium, 3},
		{" HARD ", DifficultyHard, 5},
		{"emilien", DifficultyEmilien, 100},
	}
	for _, tc := range cases {
		got, err := ParseDifficulty(tc.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tc.raw, err)
		}
		if got != tc.want || got.Multiplier() != tc.mult {
			t.Fatalf("parse %q: got %q x%d, want %q x%d", tc.raw, got, got.Multiplier(), tc.want, tc.mult)
		}
	}

	if _, err := ParseDifficulty("legendary"); !errors.Is(err, ErrUnknownDifficulty) {
		t.Fatalf("expected unknown difficulty error, got %v", err)
	}
	if !DifficultyEmilien.Bundled() || DifficultyHard.Bundled() {
		t.Fatalf("only emilien is bundled")
	}
}

func TestScoreRecordNext(t *testing.T) {
	rec := ScoreRecord{HighScore: 500, LastScore: 100}

	if got := rec.Next(300); got != (ScoreRecord{HighScore: 500, LastScore: 300}) {
		t.Fatalf("expected high kept, got %+v", got)
	}
	if got := rec.Next(900); got != (ScoreRecord{HighScore: 900, LastScore: 900}) {
		t.Fatalf("expected new high, got %+v", got)
	}
	if got := (ScoreRecord{HighScore: -4, LastScore: 7}).Sanitize(); got != (ScoreRecord{LastScore: 7}) {
		t.Fatalf("expected negative clamped, got %+v", got)
	}
}

func TestLoadErrorMessages(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	cases := []struct {
		err  *LoadError
		want string
	}{
		{&LoadError{Kind: FailureRateLimited, Attempts: 5, Code: 5}, "too many requests after 5 attempts"},
		{&LoadError{Kind: FailureNotEnoughQuestions, Code: 1}, "not enough questions available for this difficulty"},
		{&LoadError{Kind: FailureUnknownCode, Code: 3}, "error while loading questions (code: 3)"},
		{&LoadError{Kind: FailureTransport, Err: cause}, "network error: dial tcp: timeout"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("kind %s: got %q, want %q", tc.err.Kind, got, tc.want)
		}
	}
	if !errors.Is(cases[3].err, cause) {
		t.Fatalf("expected transport error to unwrap to its cause")
	}
	if FailureNotEnoughQuestions.Retryable() || !FailureRateLimited.Retryable() {
		t.Fatalf("unexpected retry classification")
	}
}

func TestEmilienUnlocksAtThreshold(t *testing.T) {
	if DifficultyEmilien.Unlocked(EmilienUnlockScore - 1) {
		t.Fatalf("expected emilien locked below %d", EmilienUnlockScore)
	}
	if !DifficultyEmilien.Unlocked(EmilienUnlockScore) {
		t.Fatalf("expected emilien unlocked at %d", EmilienUnlockScore)
	}
	for _, d := range []Difficulty{DifficultyAny, DifficultyEasy, DifficultyMedium, DifficultyHard} {
		if !d.Unlocked(0) {
			t.Fatalf("expected %s always unlocked", d)
		}
	}
}
