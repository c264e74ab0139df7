package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smarttest/smarttest-backend/internal/model"
)

func threeQuestions() []model.SessionQuestion {
	return []model.SessionQuestion{
		{ID: 1, Text: "Capital of France?", Options: []string{"London", "Paris", "Rome"}, CorrectAnswer: "Paris"},
		{ID: 2, Text: "2 + 2?", Options: []string{"3", "4", "5"}, CorrectAnswer: "4"},
		{ID: 3, Text: "Colour of blood?", Options: []string{"Blue", "Green", "Red"}, CorrectAnswer: "Red"},
	}
}

func TestScoreExample(t *testing.T) {
	r := Score(threeQuestions(), []string{"Paris", "5", "red"})

	assert.Equal(t, 2, r.Score)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 66.67, r.Percentage)

	require.Len(t, r.Breakdown, 3)
	assert.True(t, r.Breakdown[0].IsCorrect)
	assert.False(t, r.Breakdown[1].IsCorrect)
	assert.Equal(t, "5", r.Breakdown[1].YourAnswer)
	assert.True(t, r.Breakdown[2].IsCorrect)
	assert.Equal(t, "Red", r.Breakdown[2].YourAnswer)
}

func TestScoreBreakdownKeepsQuestionOrder(t *testing.T) {
	r := Score(threeQuestions(), []string{"", "", ""})

	ids := make([]int64, len(r.Breakdown))
	for i, b := range r.Breakdown {
		ids[i] = b.QuestionID
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestScoreUnresolvedAnswers(t *testing.T) {
	r := Score(threeQuestions(), []string{"", "Berlin", "Red"})

	assert.Equal(t, 1, r.Score)
	assert.Equal(t, NoAnswer, r.Breakdown[0].YourAnswer)
	assert.Equal(t, NoAnswer, r.Breakdown[1].YourAnswer)
	assert.False(t, r.Breakdown[1].IsCorrect)
}

func TestScoreShortAnswersSlice(t *testing.T) {
	r := Score(threeQuestions(), []string{"Paris"})

	assert.Equal(t, 1, r.Score)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, NoAnswer, r.Breakdown[2].YourAnswer)
}

func TestScoreSkipsFreeTextItems(t *testing.T) {
	qs := append(threeQuestions(), model.SessionQuestion{ID: 4, Text: "Explain photosynthesis.", Marks: 5})

	r := Score(qs, []string{"Paris", "4", "Red", "plants make food"})

	assert.Equal(t, 3, r.Score)
	assert.Equal(t, 3, r.Total)
	assert.Len(t, r.Breakdown, 3)
	assert.Equal(t, 100.0, r.Percentage)
}

func TestScoreEmpty(t *testing.T) {
	r := Score(nil, nil)

	assert.Zero(t, r.Total)
	assert.Zero(t, r.Percentage)
	assert.Empty(t, r.Breakdown)
}

func TestScoreIsDeterministic(t *testing.T) {
	answers := []string{"Paris", "5", "red"}

	a, err := json.Marshal(Score(threeQuestions(), answers))
	require.NoError(t, err)
	b, err := json.Marshal(Score(threeQuestions(), answers))
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestScoreUsesSymbolEquivalents(t *testing.T) {
	qs := []model.SessionQuestion{
		{ID: 1, Text: "Area unit", Options: []string{"m²", "m", "m³"}, CorrectAnswer: "m²"},
		{ID: 2, Text: "Water", Options: []string{"H₂O", "CO₂"}, CorrectAnswer: "H₂O"},
	}

	r := Score(qs, []string{"M^2", "h2o"})

	assert.Equal(t, 2, r.Score)
}

func TestResolveOption(t *testing.T) {
	opts := []string{"Paris", "New York"}

	got, ok := ResolveOption(opts, "  new   york ")
	assert.True(t, ok)
	assert.Equal(t, "New York", got)

	_, ok = ResolveOption(opts, "Berlin")
	assert.False(t, ok)

	_, ok = ResolveOption(opts, "   ")
	assert.False(t, ok)
}

func TestOptionAt(t *testing.T) {
	opts := []string{"a", "b"}

	got, ok := OptionAt(opts, 1)
	assert.True(t, ok)
	assert.Equal(t, "b", got)

	_, ok = OptionAt(opts, 2)
	assert.False(t, ok)
	_, ok = OptionAt(opts, -1)
	assert.False(t, ok)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(0, 0))
	assert.Equal(t, 33.33, Percentage(1, 3))
	assert.Equal(t, 100.0, Percentage(5, 5))
}
