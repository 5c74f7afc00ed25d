package engine

import (
	"math/rand"
	"sort"

	"go.uber.org/zap"
)

const reasonNoFeasibleSlot = "no feasible faculty, slot and room combination"

// GreedyAssigner places sessions one at a time on the first feasible
// (faculty, slot, room) tuple, without backtracking.
type GreedyAssigner struct {
	constraints *ConstraintEngine
	rng         *rand.Rand
	logger      *zap.Logger
}

// NewGreedyAssigner builds an assigner around a run's constraint engine.
func NewGreedyAssigner(constraints *ConstraintEngine, rng *rand.Rand, logger *zap.Logger) *GreedyAssigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GreedyAssigner{constraints: constraints, rng: rng, logger: logger}
}

// subjectOrder sorts subject positions by scheduling difficulty: special
// classes, fewer eligible faculty, more sessions, longer sessions, then name.
func subjectOrder(subjects []Subject) []int {
	order := make([]int, len(subjects))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := &subjects[order[i]], &subjects[order[j]]
		if a.IsSpecial != b.IsSpecial {
			return a.IsSpecial
		}
		if len(a.Faculty) != len(b.Faculty) {
			return len(a.Faculty) < len(b.Faculty)
		}
		if a.SessionsPerWeek != b.SessionsPerWeek {
			return a.SessionsPerWeek > b.SessionsPerWeek
		}
		if a.Duration != b.Duration {
			return a.Duration > b.Duration
		}
		return a.Name < b.Name
	})
	return order
}

// Assign runs the construction and returns the committed genes, the ledger
// holding them and the sessions that could not be placed.
func (g *GreedyAssigner) Assign() ([]gene, *ledger, []UnassignedSession) {
	c := g.constraints
	l := newLedger(c)
	var (
		genes      []gene
		unassigned []UnassignedSession
	)
	for _, s := range subjectOrder(c.subjects) {
		subject := &c.subjects[s]
		for session := 1; session <= subject.SessionsPerWeek; session++ {
			placed, ok := g.placeSession(l, s)
			if !ok {
				unassigned = append(unassigned, UnassignedSession{
					Subject: subject.Name,
					Session: session,
					Reason:  reasonNoFeasibleSlot,
				})
				continue
			}
			l.book(placed)
			genes = append(genes, placed)
		}
	}
	g.logger.Debug("greedy construction finished",
		zap.Int("placed", len(genes)),
		zap.Int("unassigned", len(unassigned)),
	)
	return genes, l, unassigned
}

func (g *GreedyAssigner) placeSession(l *ledger, subject int) (gene, bool) {
	return searchPlacement(g.constraints, l, g.rng, subject, nil)
}

// searchPlacement tries faculty in random order and, for each, the cells
// ranked by preference. skip rejects placements the caller does not want.
func searchPlacement(c *ConstraintEngine, l *ledger, rng *rand.Rand, subject int, skip func(gene) bool) (gene, bool) {
	for _, f := range rng.Perm(len(c.subjects[subject].Faculty)) {
		for _, cand := range c.ranked(l, subject, f) {
			for room := range c.rooms {
				placed := gene{subject: subject, faculty: f, day: cand.day, label: cand.label, room: room}
				if skip != nil && skip(placed) {
					continue
				}
				if c.free(l, subject, cand, room) {
					return placed, true
				}
			}
		}
	}
	return gene{}, false
}
