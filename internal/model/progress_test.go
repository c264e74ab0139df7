package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProgress() *Progress {
	return &Progress{
		AttemptID: uuid.New(),
		StudentID: 7,
		SubjectID: 3,
		SchoolID:  1,
		TestType:  TestTypeObjective,
		Questions: []SessionQuestion{
			{ID: 1, Text: "q1", Options: []string{"a", "b"}, CorrectAnswer: "a"},
			{ID: 2, Text: "q2", Options: []string{"c", "d"}, CorrectAnswer: "d"},
		},
		Answers:         []string{"", ""},
		StartTime:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		DurationSeconds: 3600,
	}
}

func TestProgressRemainingAndExpired(t *testing.T) {
	p := sampleProgress()

	assert.Equal(t, 3600, p.RemainingSeconds(p.StartTime))
	assert.Equal(t, 100, p.RemainingSeconds(p.StartTime.Add(3500*time.Second)))
	assert.False(t, p.Expired(p.StartTime.Add(3599*time.Second)))

	late := p.StartTime.Add(3700 * time.Second)
	assert.Zero(t, p.RemainingSeconds(late))
	assert.True(t, p.Expired(late))
	assert.True(t, p.Expired(p.Deadline()))
}

func TestProgressValidate(t *testing.T) {
	p := sampleProgress()
	require.NoError(t, p.Validate())

	p.Answers = []string{""}
	assert.ErrorIs(t, p.Validate(), ErrAnswerCountMismatch)

	p = sampleProgress()
	p.Questions[1].Options = nil
	assert.ErrorIs(t, p.Validate(), ErrMissingOptions)

	p = sampleProgress()
	p.CurrentIndex = 2
	assert.ErrorIs(t, p.Validate(), ErrIndexOutOfRange)

	p = sampleProgress()
	p.Marked = []int{5}
	assert.ErrorIs(t, p.Validate(), ErrIndexOutOfRange)
}

func TestProgressValidateSubjectiveWithoutOptions(t *testing.T) {
	p := sampleProgress()
	p.TestType = TestTypeSubjective
	p.Questions = []SessionQuestion{{ID: 9, Text: "explain", Marks: 5}}
	p.Answers = []string{""}

	assert.NoError(t, p.Validate())
}

func TestProgressToggleMark(t *testing.T) {
	p := sampleProgress()

	assert.True(t, p.ToggleMark(1))
	assert.True(t, p.ToggleMark(0))
	assert.Equal(t, []int{0, 1}, p.Marked)

	assert.False(t, p.ToggleMark(1))
	assert.Equal(t, []int{0}, p.Marked)
}

func TestNormalizeMarked(t *testing.T) {
	assert.Equal(t, []int{}, NormalizeMarked(nil))
	assert.Equal(t, []int{0, 2, 3}, NormalizeMarked([]int{3, 0, 2, 3, 0}))
}

func TestProgressViewHidesAnswerKey(t *testing.T) {
	p := sampleProgress()

	v := p.View(p.StartTime.Add(time.Minute))

	require.Len(t, v.Questions, 2)
	assert.Equal(t, []string{"a", "b"}, v.Questions[0].Options)
	assert.Equal(t, 3540, v.RemainingSeconds)
	assert.Equal(t, []int{}, v.Marked)
}

func TestProgressKeyRetakeKey(t *testing.T) {
	k := ProgressKey{StudentID: 1, SubjectID: 2, SchoolID: 3, TestType: TestTypeSubjective}

	assert.Equal(t, RetakeKey{StudentID: 1, SubjectID: 2, SchoolID: 3}, k.RetakeKey())
	assert.True(t, k.TestType.Valid())
	assert.False(t, TestType("essay").Valid())
}
