package engine

import (
	"sort"

	"go.uber.org/zap"
)

// FillReport counts what each slot-fill pass added.
type FillReport struct {
	BestFit      int `json:"bestFit"`
	AnyFit       int `json:"anyFit"`
	Placeholders int `json:"placeholders"`
}

// SlotFillEngine raises grid utilization after the primary schedule is built.
type SlotFillEngine struct {
	constraints  *ConstraintEngine
	placeholders bool
	logger       *zap.Logger
}

// NewSlotFillEngine builds a fill engine. placeholders enables the final pass
// that marks still-empty cells with synthetic assignments.
func NewSlotFillEngine(constraints *ConstraintEngine, placeholders bool, logger *zap.Logger) *SlotFillEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotFillEngine{constraints: constraints, placeholders: placeholders, logger: logger}
}

// Fill runs the best-fit, any-fit and placeholder passes over every empty,
// non-break cell. It books into l and returns the extended gene list plus the
// cells that received placeholders.
func (f *SlotFillEngine) Fill(genes []gene, l *ledger) ([]gene, []int, FillReport) {
	var report FillReport
	c := f.constraints

	for _, cell := range f.emptyCells(l) {
		if f.occupied(l, cell) {
			continue
		}
		options := f.bestFitOptions(l, cell)
		if g, ok := f.firstFree(l, options); ok {
			l.book(g)
			genes = append(genes, g)
			report.BestFit++
		}
	}

	for _, cell := range f.emptyCells(l) {
		if f.occupied(l, cell) {
			continue
		}
		if g, ok := f.firstFree(l, c.byCell[cell]); ok {
			l.book(g)
			genes = append(genes, g)
			report.AnyFit++
		}
	}

	var placeholders []int
	if f.placeholders {
		marked := make([]bool, c.universe.CellCount())
		for _, cell := range f.emptyCells(l) {
			if f.overlapsMarked(marked, cell) {
				continue
			}
			marked[cell] = true
			placeholders = append(placeholders, cell)
		}
		report.Placeholders = len(placeholders)
	}

	f.logger.Debug("slot fill finished",
		zap.Int("best_fit", report.BestFit),
		zap.Int("any_fit", report.AnyFit),
		zap.Int("placeholders", report.Placeholders),
	)
	return genes, placeholders, report
}

// emptyCells lists non-break cells with no overlapping booking, in grid order.
func (f *SlotFillEngine) emptyCells(l *ledger) []int {
	u := f.constraints.universe
	var out []int
	for d := range u.Days {
		for label := range u.Labels {
			if u.Blocked(d, label) || l.occupied(d, label) {
				continue
			}
			out = append(out, u.cell(d, label))
		}
	}
	return out
}

func (f *SlotFillEngine) occupied(l *ledger, cell int) bool {
	labels := len(f.constraints.universe.Labels)
	return l.occupied(cell/labels, cell%labels)
}

func (f *SlotFillEngine) overlapsMarked(marked []bool, cell int) bool {
	u := f.constraints.universe
	labels := len(u.Labels)
	day, label := cell/labels, cell%labels
	for _, other := range u.overlap[label] {
		if marked[u.cell(day, other)] {
			return true
		}
	}
	return false
}

// bestFitOptions keeps pairs that still owe sessions or score a preference and
// ranks them by remaining requirement, then preference.
func (f *SlotFillEngine) bestFitOptions(l *ledger, cell int) []placement {
	c := f.constraints
	remaining := func(s int) int {
		return c.subjects[s].SessionsPerWeek - l.sessions[s]
	}
	var out []placement
	for _, opt := range c.byCell[cell] {
		if remaining(opt.subject) > 0 || opt.cand.score > 0 {
			out = append(out, opt)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := remaining(out[i].subject), remaining(out[j].subject)
		if ri != rj {
			return ri > rj
		}
		return out[i].cand.score > out[j].cand.score
	})
	return out
}

func (f *SlotFillEngine) firstFree(l *ledger, options []placement) (gene, bool) {
	c := f.constraints
	for _, opt := range options {
		for room := range c.rooms {
			if c.free(l, opt.subject, opt.cand, room) {
				return gene{subject: opt.subject, faculty: opt.cand.faculty, day: opt.cand.day, label: opt.cand.label, room: room}, true
			}
		}
	}
	return gene{}, false
}
