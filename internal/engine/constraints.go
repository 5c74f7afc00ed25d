package engine

import (
	"fmt"
	"sort"
)

const (
	unmetPenalty    = 1000
	conflictPenalty = 100
	unfilledPenalty = 5000

	subjectPreferenceWeight = 10
	facultyPreferenceWeight = 5
)

// candidate is a statically feasible cell for one faculty member of a subject:
// duration matches, no break, and the slot sits inside an availability window.
type candidate struct {
	faculty int
	day     int
	label   int
	score   int
}

// ConstraintEngine checks placements against the hard constraints of one
// request and scores candidate schedules.
type ConstraintEngine struct {
	universe *Universe
	subjects []Subject
	breaks   []BreakWindow
	rooms    []string

	facultyKey   [][]int
	facultyIDs   []string
	facultyCount int
	candidates   [][]candidate
	// byCell lists, per cell, every (subject, candidate) pair placeable there.
	byCell [][]placement
}

type placement struct {
	subject int
	cand    candidate
}

// NewConstraintEngine indexes the request against the slot universe.
func NewConstraintEngine(req *Request, universe *Universe) *ConstraintEngine {
	c := &ConstraintEngine{
		universe:   universe,
		subjects:   req.Subjects,
		breaks:     req.Breaks,
		rooms:      req.Rooms,
		facultyKey: make([][]int, len(req.Subjects)),
		candidates: make([][]candidate, len(req.Subjects)),
		byCell:     make([][]placement, universe.CellCount()),
	}

	keys := make(map[string]int)
	for s, subject := range req.Subjects {
		c.facultyKey[s] = make([]int, len(subject.Faculty))
		for f, faculty := range subject.Faculty {
			key, ok := keys[faculty.ID]
			if !ok {
				key = len(c.facultyIDs)
				keys[faculty.ID] = key
				c.facultyIDs = append(c.facultyIDs, faculty.ID)
			}
			c.facultyKey[s][f] = key
		}
	}
	c.facultyCount = len(c.facultyIDs)

	for s := range req.Subjects {
		subject := &req.Subjects[s]
		for f := range subject.Faculty {
			faculty := &subject.Faculty[f]
			for d := range universe.Days {
				for _, l := range universe.LabelsOfDuration(subject.Duration) {
					if universe.Blocked(d, l) {
						continue
					}
					slot := universe.Slot(d, l)
					if !faculty.AvailableFor(slot) {
						continue
					}
					cand := candidate{
						faculty: f,
						day:     d,
						label:   l,
						score:   PreferenceScore(slot, subject.Preferences, faculty.Preferences),
					}
					c.candidates[s] = append(c.candidates[s], cand)
					cell := universe.cell(d, l)
					c.byCell[cell] = append(c.byCell[cell], placement{subject: s, cand: cand})
				}
			}
		}
	}
	return c
}

// PreferenceScore adds (6 - priority) * weight for every matching preference
// whose window contains slot. Subject preferences weigh 10, faculty ones 5.
func PreferenceScore(slot TimeSlot, subjectPrefs, facultyPrefs []Preference) int {
	score := 0
	for _, p := range subjectPrefs {
		if p.Covers(slot) {
			score += (6 - p.Priority) * subjectPreferenceWeight
		}
	}
	for _, p := range facultyPrefs {
		if p.Covers(slot) {
			score += (6 - p.Priority) * facultyPreferenceWeight
		}
	}
	return score
}

// isAssignmentValid checks a placement against availability, breaks, the
// subject duration, the room list and the bookings already in l.
func (c *ConstraintEngine) isAssignmentValid(l *ledger, g gene) bool {
	if !c.inRange(g) {
		return false
	}
	subject := &c.subjects[g.subject]
	if c.universe.Blocked(g.day, g.label) {
		return false
	}
	slot := c.universe.Slot(g.day, g.label)
	if slot.Duration() != subject.Duration {
		return false
	}
	if !subject.Faculty[g.faculty].AvailableFor(slot) {
		return false
	}
	if OverlapsBreak(slot, c.breaks) {
		return false
	}
	key := c.facultyKey[g.subject][g.faculty]
	return l.facultyFree(key, g.day, g.label) && l.roomFree(g.room, g.day, g.label)
}

// free is the dynamic half of isAssignmentValid for statically feasible cells.
func (c *ConstraintEngine) free(l *ledger, subject int, cand candidate, room int) bool {
	key := c.facultyKey[subject][cand.faculty]
	return l.facultyFree(key, cand.day, cand.label) && l.roomFree(room, cand.day, cand.label)
}

func (c *ConstraintEngine) inRange(g gene) bool {
	if g.subject < 0 || g.subject >= len(c.subjects) {
		return false
	}
	if g.faculty < 0 || g.faculty >= len(c.subjects[g.subject].Faculty) {
		return false
	}
	if g.day < 0 || g.day >= len(c.universe.Days) || g.label < 0 || g.label >= len(c.universe.Labels) {
		return false
	}
	return g.room >= 0 && g.room < len(c.rooms)
}

// FitnessScore breaks down the penalty of a schedule. Lower is better.
type FitnessScore struct {
	Unmet           int `json:"unmetRequirements"`
	Conflicts       int `json:"conflicts"`
	BreakViolations int `json:"breakViolations"`
	Unfilled        int `json:"unfilledSlots"`
	Preference      int `json:"preferenceTotal"`
}

// Value is the reported fitness: zero iff there are no hard violations and
// every weekly requirement is met.
func (f FitnessScore) Value() int {
	return f.Unmet*unmetPenalty + (f.Conflicts+f.BreakViolations)*conflictPenalty
}

// Objective adds the coverage term the genetic search minimizes.
func (f FitnessScore) Objective() int {
	return f.Value() + f.Unfilled*unfilledPenalty
}

// Evaluate scores a candidate on a fresh ledger.
func (c *ConstraintEngine) Evaluate(genes []gene) (FitnessScore, error) {
	l := newLedger(c)
	var score FitnessScore
	for i, g := range genes {
		if !c.inRange(g) {
			return FitnessScore{}, fmt.Errorf("%w: gene %d out of range", ErrCorruptIndividual, i)
		}
		l.book(g)
		score.Preference += c.scoreOf(g)
	}
	score.Conflicts = l.conflicts
	score.BreakViolations = l.breaks
	score.Unmet = c.unmet(l)
	score.Unfilled = c.unfilled(l)
	return score, nil
}

func (c *ConstraintEngine) unmet(l *ledger) int {
	total := 0
	for s, subject := range c.subjects {
		if missing := subject.SessionsPerWeek - l.sessions[s]; missing > 0 {
			total += missing
		}
	}
	return total
}

func (c *ConstraintEngine) unfilled(l *ledger) int {
	n := 0
	for d := range c.universe.Days {
		for label := range c.universe.Labels {
			if !c.universe.Blocked(d, label) && !l.occupied(d, label) {
				n++
			}
		}
	}
	return n
}

func (c *ConstraintEngine) scoreOf(g gene) int {
	subject := &c.subjects[g.subject]
	return PreferenceScore(c.universe.Slot(g.day, g.label), subject.Preferences, subject.Faculty[g.faculty].Preferences)
}

// ranked returns the candidates of a subject for one faculty member, best
// preference first, then least loaded day, then grid order.
func (c *ConstraintEngine) ranked(l *ledger, subject, faculty int) []candidate {
	var out []candidate
	for _, cand := range c.candidates[subject] {
		if cand.faculty == faculty {
			out = append(out, cand)
		}
	}
	key := c.facultyKey[subject][faculty]
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		li, lj := l.load(key, out[i].day), l.load(key, out[j].day)
		if li != lj {
			return li < lj
		}
		return c.universe.cell(out[i].day, out[i].label) < c.universe.cell(out[j].day, out[j].label)
	})
	return out
}

func (c *ConstraintEngine) toAssignment(g gene) Assignment {
	subject := &c.subjects[g.subject]
	faculty := &subject.Faculty[g.faculty]
	slot := c.universe.Slot(g.day, g.label)
	return Assignment{
		Subject:         subject.Name,
		FacultyID:       faculty.ID,
		FacultyName:     faculty.Name,
		Day:             slot.Day,
		Start:           slot.Start,
		End:             slot.End,
		RoomID:          c.rooms[g.room],
		IsSpecial:       subject.IsSpecial,
		PreferenceScore: c.scoreOf(g),
	}
}

// PairwiseConflicts is the O(n²) reference count: one per faculty overlap and
// one per room overlap between any two assignments, plus one per assignment
// that overlaps a break. Placeholders are ignored.
func PairwiseConflicts(assignments []Assignment, breaks []BreakWindow) int {
	n := 0
	for i := range assignments {
		a := assignments[i]
		if a.Placeholder {
			continue
		}
		if OverlapsBreak(a.Slot(), breaks) {
			n++
		}
		for j := i + 1; j < len(assignments); j++ {
			b := assignments[j]
			if b.Placeholder || !Overlaps(a.Slot(), b.Slot()) {
				continue
			}
			if a.FacultyID == b.FacultyID {
				n++
			}
			if a.RoomID == b.RoomID {
				n++
			}
		}
	}
	return n
}
