package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	workday   = CollegeWindow{Start: 540, End: 1020}
	lunchTime = []BreakWindow{{Day: AllDays, Start: 720, End: 780}}
)

func TestGenerateSlotsStaysInsideWindow(t *testing.T) {
	u, err := GenerateSlots(workday, lunchTime, []int{60, 90}, nil)
	require.NoError(t, err)

	require.NotEmpty(t, u.Labels)
	for _, label := range u.Labels {
		assert.Less(t, label.Start, label.End)
		assert.GreaterOrEqual(t, label.Start, workday.Start)
		assert.LessOrEqual(t, label.End, workday.End)
	}
	for _, slot := range u.Week() {
		assert.False(t, OverlapsBreak(slot, lunchTime), slot.String())
	}
	assert.Equal(t, DefaultWeek, u.Days)
}

func TestGenerateSlotsSingleDuration(t *testing.T) {
	u, err := GenerateSlots(workday, lunchTime, []int{60}, nil)
	require.NoError(t, err)

	labels := make([]string, 0, len(u.Labels))
	for _, l := range u.Labels {
		labels = append(labels, l.Label())
	}
	assert.Equal(t, []string{
		"09:00-10:00", "10:00-11:00", "11:00-12:00",
		"13:00-14:00", "14:00-15:00", "15:00-16:00", "16:00-17:00",
	}, labels)
	assert.Equal(t, 7*6, u.Available())
}

func TestGenerateSlotsMixedDurations(t *testing.T) {
	u, err := GenerateSlots(workday, lunchTime, []int{90, 60}, nil)
	require.NoError(t, err)

	assert.Len(t, u.LabelsOfDuration(60), 7)
	assert.Len(t, u.LabelsOfDuration(90), 4)
	idx, ok := u.LabelIndex(630, 720)
	require.True(t, ok)
	assert.Equal(t, 90, u.Labels[idx].Duration())
}

func TestGenerateSlotsBlocksPerDayBreaks(t *testing.T) {
	mondayOnly := []BreakWindow{{Day: Monday, Start: 720, End: 780}}
	u, err := GenerateSlots(workday, mondayOnly, []int{60}, []Day{Monday, Tuesday})
	require.NoError(t, err)

	idx, ok := u.LabelIndex(720, 780)
	require.True(t, ok, "label stays in the shared universe")
	assert.True(t, u.Blocked(0, idx))
	assert.False(t, u.Blocked(1, idx))
	assert.Equal(t, 8*2-1, u.Available())
}

func TestGenerateSlotsIsDeterministic(t *testing.T) {
	first, err := GenerateSlots(workday, lunchTime, []int{45, 60, 90}, nil)
	require.NoError(t, err)
	second, err := GenerateSlots(workday, lunchTime, []int{45, 60, 90}, nil)
	require.NoError(t, err)

	assert.Equal(t, first.Labels, second.Labels)
	assert.Equal(t, first.Available(), second.Available())
	assert.Equal(t, first.Week(), second.Week())
}

func TestGenerateSlotsNoValidSlots(t *testing.T) {
	_, err := GenerateSlots(CollegeWindow{Start: 540, End: 600}, nil, []int{120}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoValidSlots)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = GenerateSlots(CollegeWindow{Start: 720, End: 780}, lunchTime, []int{60}, nil)
	assert.ErrorIs(t, err, ErrNoValidSlots)
}

func TestGenerateSlotsRejectsBadWindow(t *testing.T) {
	_, err := GenerateSlots(CollegeWindow{Start: 600, End: 540}, nil, []int{60}, nil)
	assert.ErrorIs(t, err, ErrValidation)
}
