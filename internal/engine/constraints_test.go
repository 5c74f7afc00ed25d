package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceScoreIsAdditive(t *testing.T) {
	slot := window(Monday, 540, 600)
	subjectPrefs := []Preference{
		{Day: AllDays, Start: 540, End: 720, Priority: 1},
		{Day: Tuesday, Start: 540, End: 720, Priority: 1},
	}
	facultyPrefs := []Preference{
		{Day: Monday, Start: 540, End: 600, Priority: 3},
		{Day: Monday, Start: 570, End: 660, Priority: 1},
	}
	// 5*10 for the ALL_DAYS subject window, 3*5 for the exact faculty window.
	assert.Equal(t, 65, PreferenceScore(slot, subjectPrefs, facultyPrefs))
	assert.Equal(t, 0, PreferenceScore(window(Friday, 900, 960), subjectPrefs[1:], facultyPrefs))
}

func TestFitnessScoreWeights(t *testing.T) {
	score := FitnessScore{Unmet: 2, Conflicts: 3, BreakViolations: 1, Unfilled: 4}
	assert.Equal(t, 2*1000+4*100, score.Value())
	assert.Equal(t, 2*1000+4*100+4*5000, score.Objective())
	assert.Equal(t, 0, FitnessScore{Unfilled: 9}.Value())
}

func sampleEngine(t *testing.T) *ConstraintEngine {
	t.Helper()
	week := []TimeSlot{window(Monday, 540, 1020), window(Tuesday, 540, 1020)}
	req := &Request{
		Subjects: []Subject{
			{Name: "Math", Duration: 60, SessionsPerWeek: 2, Faculty: []Faculty{
				{ID: "f1", Availability: week},
				{ID: "f2", Availability: week[:1]},
			}},
			{Name: "History", Duration: 90, SessionsPerWeek: 1, Faculty: []Faculty{
				{ID: "f2", Availability: week},
			}},
		},
		Breaks:      lunchTime,
		College:     workday,
		Rooms:       []string{"R1", "R2"},
		WorkingDays: []Day{Monday, Tuesday},
	}
	u, err := GenerateSlots(req.College, req.Breaks, req.Durations(), req.Days())
	require.NoError(t, err)
	return NewConstraintEngine(req, u)
}

func TestIsAssignmentValid(t *testing.T) {
	c := sampleEngine(t)
	l := newLedger(c)
	nine, ok := c.universe.LabelIndex(540, 600)
	require.True(t, ok)
	ninety, ok := c.universe.LabelIndex(540, 630)
	require.True(t, ok)

	g := gene{subject: 0, faculty: 0, day: 0, label: nine, room: 0}
	require.True(t, c.isAssignmentValid(l, g))
	l.book(g)

	assert.False(t, c.isAssignmentValid(l, g), "faculty and room taken")
	assert.True(t, c.isAssignmentValid(l, gene{subject: 0, faculty: 1, day: 0, label: nine, room: 1}))
	assert.False(t, c.isAssignmentValid(l, gene{subject: 0, faculty: 1, day: 0, label: nine, room: 0}), "room taken")
	assert.False(t, c.isAssignmentValid(l, gene{subject: 0, faculty: 1, day: 1, label: nine, room: 1}), "f2 unavailable on Tuesday for Math")
	assert.False(t, c.isAssignmentValid(l, gene{subject: 1, faculty: 0, day: 0, label: nine, room: 1}), "duration mismatch")
	assert.False(t, c.isAssignmentValid(l, gene{subject: 1, faculty: 0, day: 0, label: ninety, room: 0}), "overlaps booked room")
	assert.True(t, c.isAssignmentValid(l, gene{subject: 1, faculty: 0, day: 0, label: ninety, room: 1}))
	assert.False(t, c.isAssignmentValid(l, gene{subject: 0, faculty: 0, day: 0, label: nine, room: 5}), "unknown room")
}

func TestLedgerMatchesPairwiseOracle(t *testing.T) {
	c := sampleEngine(t)
	rng := rand.New(rand.NewSource(11))

	for round := 0; round < 50; round++ {
		genes := make([]gene, rng.Intn(30))
		for i := range genes {
			s := rng.Intn(len(c.subjects))
			genes[i] = gene{
				subject: s,
				faculty: rng.Intn(len(c.subjects[s].Faculty)),
				day:     rng.Intn(len(c.universe.Days)),
				label:   rng.Intn(len(c.universe.Labels)),
				room:    rng.Intn(len(c.rooms)),
			}
		}
		score, err := c.Evaluate(genes)
		require.NoError(t, err)

		assignments := make([]Assignment, len(genes))
		for i, g := range genes {
			assignments[i] = c.toAssignment(g)
		}
		assert.Equal(t, PairwiseConflicts(assignments, c.breaks), score.Conflicts+score.BreakViolations, "round %d", round)
	}
}

func TestLedgerReleaseRestoresState(t *testing.T) {
	c := sampleEngine(t)
	l := newLedger(c)
	nine, _ := c.universe.LabelIndex(540, 600)
	a := gene{subject: 0, faculty: 0, day: 0, label: nine, room: 0}
	b := gene{subject: 0, faculty: 0, day: 0, label: nine, room: 1}

	assert.Equal(t, 0, l.book(a))
	assert.Equal(t, 1, l.book(b), "same faculty, different room")
	assert.Equal(t, 1, l.conflicts)

	l.release(b)
	assert.Equal(t, 0, l.conflicts)
	assert.Equal(t, 1, l.sessions[0])
	l.release(a)
	assert.False(t, l.occupied(0, nine))
}

func TestEvaluateRejectsCorruptGenes(t *testing.T) {
	c := sampleEngine(t)
	_, err := c.Evaluate([]gene{{subject: 7}})
	assert.ErrorIs(t, err, ErrCorruptIndividual)
}

func TestEvaluateCountsRequirementsAndCoverage(t *testing.T) {
	c := sampleEngine(t)
	score, err := c.Evaluate(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, score.Unmet)
	assert.Equal(t, c.universe.Available(), score.Unfilled)
	assert.Equal(t, 3000, score.Value())
}
