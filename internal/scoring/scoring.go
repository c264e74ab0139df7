package scoring

import (
	"math"
	"strings"

	"github.com/smarttest/smarttest-backend/internal/model"
)

// NoAnswer is recorded for a question the student left blank or answered
// with something outside its options.
const NoAnswer = "No Answer"

// Report is the outcome of grading an objective attempt.
type Report struct {
	Score      int                   `json:"score"`
	Total      int                   `json:"total"`
	Percentage float64               `json:"percentage"`
	Breakdown  []model.BreakdownItem `json:"breakdown"`
}

// ResolveOption matches a raw answer against the persisted options of a
// question and returns the option's own text.
func ResolveOption(options []string, raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	want := Normalize(raw)
	for _, opt := range options {
		if Normalize(opt) == want {
			return opt, true
		}
	}
	return "", false
}

// OptionAt returns the option at position i, or false when i is out of range.
func OptionAt(options []string, i int) (string, bool) {
	if i < 0 || i >= len(options) {
		return "", false
	}
	return options[i], true
}

// Score grades answers against questions. Questions without options are
// free-text items and are skipped. answers is indexed like questions; a
// missing slot counts as no answer.
func Score(questions []model.SessionQuestion, answers []string) Report {
	r := Report{Breakdown: make([]model.BreakdownItem, 0, len(questions))}

	for i, q := range questions {
		if len(q.Options) == 0 {
			continue
		}
		r.Total++

		raw := ""
		if i < len(answers) {
			raw = answers[i]
		}

		yours, ok := ResolveOption(q.Options, raw)
		correct := ok && Equal(yours, q.CorrectAnswer)
		if !ok {
			yours = NoAnswer
		}
		if correct {
			r.Score++
		}

		r.Breakdown = append(r.Breakdown, model.BreakdownItem{
			QuestionID:    q.ID,
			QuestionText:  q.Text,
			YourAnswer:    yours,
			CorrectAnswer: q.CorrectAnswer,
			IsCorrect:     correct,
		})
	}

	r.Percentage = Percentage(r.Score, r.Total)
	return r
}

// Percentage returns score/total*100 rounded to two decimals, or 0 when total is 0.
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(score)/float64(total)*10000) / 100
}
