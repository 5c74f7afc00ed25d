package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func window(day Day, start, end int) TimeSlot {
	return TimeSlot{Day: day, Start: start, End: end}
}

func mathRequest(availability ...TimeSlot) *Request {
	return &Request{
		Subjects: []Subject{{
			Name:            "Math",
			Duration:        60,
			SessionsPerWeek: 1,
			Faculty:         []Faculty{{ID: "f-ada", Name: "Ada", Availability: availability}},
		}},
		Breaks:  lunchTime,
		College: workday,
		Rooms:   []string{"R101"},
		Seed:    42,
	}
}

func TestGenerateSingleFeasibleSession(t *testing.T) {
	res, err := New(Options{}).Generate(context.Background(), mathRequest(window(Monday, 540, 600)))
	require.NoError(t, err)

	require.Len(t, res.Assignments, 1)
	a := res.Assignments[0]
	assert.Equal(t, "Math", a.Subject)
	assert.Equal(t, Monday, a.Day)
	assert.Equal(t, 540, a.Start)
	assert.Equal(t, 600, a.End)
	assert.Equal(t, "R101", a.RoomID)
	assert.Equal(t, 0, res.Fitness)
	assert.Empty(t, res.UnassignedSessions)
	assert.Equal(t, AlgorithmGreedy, res.Algorithm)
	assert.Equal(t, int64(42), res.Seed)
}

func TestGenerateAvailabilityInsideBreak(t *testing.T) {
	res, err := New(Options{}).Generate(context.Background(), mathRequest(window(Monday, 720, 780)))
	require.NoError(t, err)

	assert.Empty(t, res.Assignments)
	require.Len(t, res.UnassignedSessions, 1)
	assert.Equal(t, "Math", res.UnassignedSessions[0].Subject)
	assert.Greater(t, res.Fitness, 0)
}

func TestGenerateSharedFacultySingleWindow(t *testing.T) {
	ada := Faculty{ID: "f-ada", Name: "Ada", Availability: []TimeSlot{window(Monday, 540, 600)}}
	req := &Request{
		Subjects: []Subject{
			{Name: "Math", Duration: 60, SessionsPerWeek: 1, Faculty: []Faculty{ada}},
			{Name: "Logic", Duration: 60, SessionsPerWeek: 1, Faculty: []Faculty{ada}},
		},
		Breaks:  lunchTime,
		College: workday,
		Rooms:   []string{"R101", "R102"},
		Seed:    7,
	}
	res, err := New(Options{}).Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Assignments, 1)
	require.Len(t, res.UnassignedSessions, 1)
	assert.NotEqual(t, res.Assignments[0].Subject, res.UnassignedSessions[0].Subject)
	assert.Equal(t, 0, PairwiseConflicts(res.Assignments, req.Breaks))
	assert.Equal(t, unmetPenalty, res.Fitness)
}

// utilizationRequest yields 20 non-break cells of which exactly 15 can hold a
// real session: Mon-Thu, 09:00-14:00, one room.
func utilizationRequest() *Request {
	var morning []TimeSlot
	for _, day := range []Day{Monday, Tuesday, Wednesday, Thursday} {
		morning = append(morning, window(day, 540, 720))
	}
	return &Request{
		Subjects: []Subject{
			{
				Name: "Chemistry", Duration: 60, SessionsPerWeek: 12,
				Faculty: []Faculty{{ID: "f-marie", Name: "Marie", Availability: morning}},
			},
			{
				Name: "Biology", Duration: 60, SessionsPerWeek: 3,
				Faculty: []Faculty{{ID: "f-gregor", Name: "Gregor", Availability: []TimeSlot{
					window(Monday, 720, 840),
					window(Tuesday, 720, 780),
				}}},
			},
		},
		College:     CollegeWindow{Start: 540, End: 840},
		Rooms:       []string{"LAB-1"},
		WorkingDays: []Day{Monday, Tuesday, Wednesday, Thursday},
		Seed:        99,
	}
}

func TestUtilizationWithoutPlaceholders(t *testing.T) {
	res, err := New(Options{}).Generate(context.Background(), utilizationRequest())
	require.NoError(t, err)

	assert.Len(t, res.Assignments, 15)
	assert.Equal(t, 75.0, res.UtilizationPercentage)
	assert.Equal(t, 75.0, res.FilledPercentage)
	assert.Len(t, res.UnassignedSlots, 5)
	assert.Contains(t, res.UnassignedSlots, "TUESDAY 13:00-14:00")
	assert.Equal(t, 0, res.Fitness)
}

func TestUtilizationPlaceholdersAreDistinguishable(t *testing.T) {
	req := utilizationRequest()
	req.FillPlaceholders = true

	res, err := New(Options{}).Generate(context.Background(), req)
	require.NoError(t, err)

	var realCount, filler int
	for _, a := range res.Assignments {
		if a.Placeholder {
			filler++
			assert.Equal(t, PlaceholderFacultyID, a.FacultyID)
			assert.Equal(t, 0, a.PreferenceScore)
			continue
		}
		realCount++
		assert.NotEqual(t, PlaceholderFacultyID, a.FacultyID)
	}
	assert.Equal(t, 15, realCount)
	assert.Equal(t, 5, filler)
	assert.Equal(t, 5, res.Fill.Placeholders)
	assert.Empty(t, res.UnassignedSlots)

	kinds := map[CellKind]int{}
	for _, day := range res.Grid.Days {
		for _, cell := range day.Cells {
			kinds[cell.Kind]++
		}
	}
	assert.Equal(t, 15, kinds[CellAssigned])
	assert.Equal(t, 5, kinds[CellPlaceholder])

	assert.Equal(t, 75.0, res.UtilizationPercentage, "placeholders are not utilization by default")
	assert.Equal(t, 100.0, res.FilledPercentage)
	assert.Equal(t, 0, res.Fitness)

	req.CountPlaceholders = true
	res, err = New(Options{}).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.UtilizationPercentage)
}

func TestGenerateGridMarksBreaks(t *testing.T) {
	req := mathRequest(window(Monday, 540, 600))
	req.Breaks = []BreakWindow{{Day: Friday, Start: 720, End: 780}}

	res, err := New(Options{}).Generate(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.Grid.Days, len(DefaultWeek))
	friday := res.Grid.Days[4]
	assert.Equal(t, Friday, friday.Day)
	var breaks int
	for _, cell := range friday.Cells {
		if cell.Kind == CellBreak {
			breaks++
			assert.Equal(t, "12:00-13:00", cell.Label)
		}
	}
	assert.Equal(t, 1, breaks)
	assert.Equal(t, CellAssigned, res.Grid.Days[0].Cells[0].Kind)
}

func TestGenerateGeneticIsConflictFreeAndReproducible(t *testing.T) {
	week := []TimeSlot{
		window(Monday, 540, 1020), window(Tuesday, 540, 1020), window(Wednesday, 540, 1020),
	}
	req := &Request{
		Subjects: []Subject{
			{Name: "Math", Duration: 60, SessionsPerWeek: 3, Faculty: []Faculty{{ID: "f1", Name: "Ada", Availability: week}}},
			{Name: "Physics", Duration: 90, SessionsPerWeek: 2, Faculty: []Faculty{
				{ID: "f2", Name: "Lise", Availability: week},
				{ID: "f1", Name: "Ada", Availability: week},
			}},
			{Name: "Art", Duration: 60, SessionsPerWeek: 2, IsSpecial: true, Faculty: []Faculty{{ID: "f3", Name: "Frida", Availability: week[:1]}}},
		},
		Breaks:      lunchTime,
		College:     workday,
		Rooms:       []string{"R1", "R2"},
		WorkingDays: []Day{Monday, Tuesday, Wednesday},
		UseGenetic:  true,
		Seed:        2024,
	}
	eng := New(Options{Genetic: GeneticConfig{Population: 12, Generations: 6}, Workers: 3})

	first, err := eng.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, AlgorithmGenetic, first.Algorithm)
	assert.Equal(t, 0, PairwiseConflicts(first.Assignments, req.Breaks))
	assert.Equal(t, 0, first.Fitness)
	assert.Empty(t, first.UnassignedSessions)

	second, err := eng.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.Assignments, second.Assignments)
}

func TestGenerateValidationErrors(t *testing.T) {
	eng := New(Options{})
	ctx := context.Background()

	noRooms := mathRequest(window(Monday, 540, 600))
	noRooms.Rooms = nil
	_, err := eng.Generate(ctx, noRooms)
	assert.ErrorIs(t, err, ErrValidation)

	badPriority := mathRequest(window(Monday, 540, 600))
	badPriority.Subjects[0].Preferences = []Preference{{Day: AllDays, Start: 540, End: 600, Priority: 9}}
	_, err = eng.Generate(ctx, badPriority)
	assert.ErrorIs(t, err, ErrValidation)

	noFaculty := mathRequest()
	noFaculty.Subjects[0].Faculty = nil
	_, err = eng.Generate(ctx, noFaculty)
	assert.ErrorIs(t, err, ErrValidation)

	tooShort := mathRequest(window(Monday, 540, 600))
	tooShort.Subjects[0].Duration = MinSubjectDuration - 1
	_, err = eng.Generate(ctx, tooShort)
	assert.ErrorIs(t, err, ErrValidation)

	tooLong := mathRequest(window(Monday, 540, 600))
	tooLong.Subjects[0].Duration = 600
	_, err = eng.Generate(ctx, tooLong)
	assert.ErrorIs(t, err, ErrNoValidSlots)
	assert.True(t, IsValidation(err))
}

func TestValidateBoundsDistinctDurations(t *testing.T) {
	req := mathRequest(window(Monday, 540, 600))
	base := req.Subjects[0]
	for i := 1; len(req.Durations()) < MaxDistinctDurations; i++ {
		extra := base
		extra.Name = base.Name + string(rune('A'+i))
		extra.Duration = base.Duration + i
		req.Subjects = append(req.Subjects, extra)
	}
	require.NoError(t, Validate(req))

	extra := base
	extra.Name = "Overflow"
	extra.Duration = base.Duration + MaxDistinctDurations
	req.Subjects = append(req.Subjects, extra)
	err := Validate(req)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "distinct session durations")
}

func TestGenerateWithoutSubjectsHasNoSlots(t *testing.T) {
	req := mathRequest()
	req.Subjects = nil
	_, err := New(Options{}).Generate(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoValidSlots)
}

func TestFingerprintTracksSeedAndOptions(t *testing.T) {
	eng := New(Options{})
	req := mathRequest(window(Monday, 540, 600))

	first, ok, err := eng.Fingerprint(req)
	require.NoError(t, err)
	require.True(t, ok)
	again, _, _ := eng.Fingerprint(mathRequest(window(Monday, 540, 600)))
	assert.Equal(t, first, again)

	req.Seed = 43
	other, _, _ := eng.Fingerprint(req)
	assert.NotEqual(t, first, other)

	req.UseGenetic = true
	genetic, _, _ := eng.Fingerprint(req)
	tuned, _, _ := New(Options{Genetic: GeneticConfig{Population: 10}}).Fingerprint(req)
	assert.NotEqual(t, genetic, tuned)

	req.Seed = 0
	_, ok, err = eng.Fingerprint(req)
	require.NoError(t, err)
	assert.False(t, ok)
}
