package trivia

import (
	"strings"

	"narvalo-quiz/internal/domain"
	"narvalo-quiz/internal/infra/opentdb"
)

// entityReplacer decodes the entities the API emits. Curly quotes map to ASCII quotes
// so answers typed in the terminal compare equal.
var entityReplacer = strings.NewReplacer(
	"&quot;", `"`,
	"&#039;", "'",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&rsquo;", "'",
	"&ldquo;", `"`,
	"&rdquo;", `"`,
)

// DecodeEntities replaces the HTML entities found in API text with literal characters.
func DecodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

func toQuestion(r opentdb.Result) domain.Question {
	incorrect := make([]string, len(r.IncorrectAnswers))
	for i, a := range r.IncorrectAnswers {
		incorrect[i] = DecodeEntities(a)
	}
	return domain.Question{
		Category:         r.Category,
		Type:             r.Type,
		Difficulty:       r.Difficulty,
		Prompt:           DecodeEntities(r.Question),
		CorrectAnswer:    DecodeEntities(r.CorrectAnswer),
		IncorrectAnswers: incorrect,
	}
}

func toQuestions(results []opentdb.Result) []domain.Question {
	questions := make([]domain.Question, 0, len(results))
	for _, r := range results {
		// Decoding can make an incorrect answer equal the correct one; such questions are dropped.
		if q := toQuestion(r); q.Valid() {
			questions = append(questions, q)
		}
	}
	return questions
}
