package domain

import (
	"math/rand"
	"slices"
	"strings"
)

// Difficulty filters the remote question source. The zero value means "any".
type Difficulty string

const (
	DifficultyAny    Difficulty = ""
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	// DifficultyEmilien selects the bundled question bank instead of the remote API.
	DifficultyEmilien Difficulty = "emilien"
)

// ParseDifficulty accepts the tier names case-insensitively; "" and "any" map to DifficultyAny.
func ParseDifficulty(raw string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case DifficultyAny, DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyEmilien:
		return d, nil
	case "any":
		return DifficultyAny, nil
	default:
		return "", ErrUnknownDifficulty
	}
}

// Multiplier is the factor applied to the flat 100 points of a correct answer.
func (d Difficulty) Multiplier() int {
	switch d {
	case DifficultyMedium:
		return 3
	case DifficultyHard:
		return 5
	case DifficultyEmilien:
		return 100
	default:
		return 1
	}
}

// EmilienUnlockScore is the high score a player needs before the bundled tier opens.
const EmilienUnlockScore = 3000

// Bundled reports whether questions for d come from the local bank.
func (d Difficulty) Bundled() bool { return d == DifficultyEmilien }

// Unlocked reports whether a player whose best score is highScore may play d.
func (d Difficulty) Unlocked(highScore int) bool {
	return d != DifficultyEmilien || highScore >= EmilienUnlockScore
}

func (d Difficulty) String() string {
	if d == DifficultyAny {
		return "any"
	}
	return string(d)
}

// Question models a multiple-choice question with exactly one correct answer.
type Question struct {
	Category         string   `json:"category"`
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Prompt           string   `json:"question"`
	CorrectAnswer    string   `json:"correctAnswer"`
	IncorrectAnswers []string `json:"incorrectAnswers"`
}

// AllAnswers returns the correct answer and the incorrect ones in a new random order on every call.
func (q Question) AllAnswers() []string {
	answers := make([]string, 0, len(q.IncorrectAnswers)+1)
	answers = append(answers, q.IncorrectAnswers...)
	answers = append(answers, q.CorrectAnswer)
	rand.Shuffle(len(answers), func(i, j int) {
		answers[i], answers[j] = answers[j], answers[i]
	})
	return answers
}

// IsCorrect reports whether answer matches the correct answer exactly.
func (q Question) IsCorrect(answer string) bool {
	return answer == q.CorrectAnswer
}

// Valid checks the question invariant: the correct answer is never among the incorrect ones.
func (q Question) Valid() bool {
	return q.Prompt != "" && q.CorrectAnswer != "" && !slices.Contains(q.IncorrectAnswers, q.CorrectAnswer)
}

// Status is the tag of QuizState.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// QuizState is a tagged union: Questions is set for ready, Message for failed.
type QuizState struct {
	Status    Status     `json:"status"`
	Questions []Question `json:"questions,omitempty"`
	Message   string     `json:"message,omitempty"`
}

func Loading() QuizState { return QuizState{Status: StatusLoading} }

func Ready(questions []Question) QuizState {
	return QuizState{Status: StatusReady, Questions: questions}
}

func Failed(message string) QuizState {
	return QuizState{Status: StatusFailed, Message: message}
}

// Progress is the mutable part of one quiz attempt.
type Progress struct {
	CurrentIndex int `json:"currentIndex"`
	Score        int `json:"score"`
	CorrectCount int `json:"correctCount"`
}

// ScoreRecord is the persisted pair of scores, always written as a whole.
type ScoreRecord struct {
	HighScore int `json:"high_score"`
	LastScore int `json:"last_score"`
}

// Next returns the record to persist after a quiz finished with final points.
func (r ScoreRecord) Next(final int) ScoreRecord {
	return ScoreRecord{HighScore: max(r.HighScore, final), LastScore: final}
}

// Sanitize clamps negative values that can only come from corrupt data.
func (r ScoreRecord) Sanitize() ScoreRecord {
	return ScoreRecord{HighScore: max(r.HighScore, 0), LastScore: max(r.LastScore, 0)}
}

// Snapshot is what session observers receive on every change.
type Snapshot struct {
	Generation uint64      `json:"generation"`
	Difficulty Difficulty  `json:"difficulty"`
	State      QuizState   `json:"state"`
	Progress   Progress    `json:"progress"`
	Scores     ScoreRecord `json:"scores"`
}
