package engine

import (
	"math"
	"sort"
)

// CellKind classifies one (day, label) cell of the weekly grid.
type CellKind string

const (
	CellBreak       CellKind = "BREAK"
	CellAssigned    CellKind = "ASSIGNED"
	CellCovered     CellKind = "COVERED"
	CellPlaceholder CellKind = "PLACEHOLDER"
	CellUnassigned  CellKind = "UNASSIGNED"
)

// Placeholder assignments carry these identities.
const (
	PlaceholderSubject     = "Open Slot"
	PlaceholderFacultyName = "Unassigned"
)

// Cell is one grid position. Assignments holds sessions starting on exactly
// this label; COVERED cells are overlapped by a session on another label.
type Cell struct {
	Label       string       `json:"label"`
	Start       int          `json:"startMinute"`
	End         int          `json:"endMinute"`
	Kind        CellKind     `json:"kind"`
	Assignments []Assignment `json:"assignments,omitempty"`
}

// DaySchedule is one row of the grid.
type DaySchedule struct {
	Day   Day    `json:"day"`
	Cells []Cell `json:"cells"`
}

// Grid is the day by slot-label view of a schedule.
type Grid struct {
	Labels []string      `json:"labels"`
	Days   []DaySchedule `json:"days"`
}

// Result is the outcome of one scheduling run.
type Result struct {
	Grid                  Grid                `json:"grid"`
	Assignments           []Assignment        `json:"assignments"`
	UnassignedSlots       []string            `json:"unassignedSlots"`
	UnassignedSessions    []UnassignedSession `json:"unassignedSessions"`
	Fitness               int                 `json:"fitness"`
	Score                 FitnessScore        `json:"score"`
	UtilizationPercentage float64             `json:"utilizationPercentage"`
	FilledPercentage      float64             `json:"filledPercentage"`
	AveragePreference     float64             `json:"averagePreference"`
	Fill                  FillReport          `json:"fill"`
	Algorithm             string              `json:"algorithm"`
	Seed                  int64               `json:"seed"`
}

// ScheduleAssembler folds assignments into the weekly grid and computes the
// summary metrics.
type ScheduleAssembler struct {
	constraints       *ConstraintEngine
	countPlaceholders bool
}

// NewScheduleAssembler builds an assembler. countPlaceholders makes
// placeholder cells count as utilized.
func NewScheduleAssembler(constraints *ConstraintEngine, countPlaceholders bool) *ScheduleAssembler {
	return &ScheduleAssembler{constraints: constraints, countPlaceholders: countPlaceholders}
}

// Assemble builds the result for genes plus placeholder cells.
func (a *ScheduleAssembler) Assemble(genes []gene, placeholders []int) (*Result, error) {
	c := a.constraints
	u := c.universe

	score, err := c.Evaluate(genes)
	if err != nil {
		return nil, err
	}

	assignments := make([]Assignment, 0, len(genes)+len(placeholders))
	for _, g := range genes {
		assignments = append(assignments, c.toAssignment(g))
	}
	labels := len(u.Labels)
	for _, cell := range placeholders {
		slot := u.Slot(cell/labels, cell%labels)
		assignments = append(assignments, Assignment{
			Subject:     PlaceholderSubject,
			FacultyID:   PlaceholderFacultyID,
			FacultyName: PlaceholderFacultyName,
			Day:         slot.Day,
			Start:       slot.Start,
			End:         slot.End,
			Placeholder: true,
		})
	}
	sortAssignments(assignments)

	grid := Grid{Labels: make([]string, labels), Days: make([]DaySchedule, len(u.Days))}
	for l, label := range u.Labels {
		grid.Labels[l] = label.Label()
	}

	var (
		realCells, fillerCells int
		unassigned             = []string{}
	)
	for d, day := range u.Days {
		row := DaySchedule{Day: day, Cells: make([]Cell, labels)}
		for l := range u.Labels {
			slot := u.Slot(d, l)
			cell := Cell{Label: slot.Label(), Start: slot.Start, End: slot.End}
			cell.Kind = a.classify(slot, u.Blocked(d, l), assignments, &cell)
			switch cell.Kind {
			case CellAssigned, CellCovered:
				realCells++
			case CellPlaceholder:
				fillerCells++
			case CellUnassigned:
				unassigned = append(unassigned, slot.String())
			}
			row.Cells[l] = cell
		}
		grid.Days[d] = row
	}

	result := &Result{
		Grid:            grid,
		Assignments:     assignments,
		UnassignedSlots: unassigned,
		Fitness:         score.Value(),
		Score:           score,
	}
	if available := u.Available(); available > 0 {
		utilized := realCells
		if a.countPlaceholders {
			utilized += fillerCells
		}
		result.UtilizationPercentage = percentage(utilized, available)
		result.FilledPercentage = percentage(realCells+fillerCells, available)
	}
	if len(genes) > 0 {
		result.AveragePreference = round2(float64(score.Preference) / float64(len(genes)))
	}
	return result, nil
}

func (a *ScheduleAssembler) classify(slot TimeSlot, blocked bool, assignments []Assignment, cell *Cell) CellKind {
	if blocked {
		return CellBreak
	}
	var (
		covered bool
		filled  bool
		fillers []Assignment
	)
	for _, as := range assignments {
		if !Overlaps(slot, as.Slot()) {
			continue
		}
		exact := as.Start == slot.Start && as.End == slot.End
		switch {
		case as.Placeholder:
			filled = true
			if exact {
				fillers = append(fillers, as)
			}
		case exact:
			cell.Assignments = append(cell.Assignments, as)
		default:
			covered = true
		}
	}
	switch {
	case len(cell.Assignments) > 0:
		return CellAssigned
	case covered:
		return CellCovered
	case filled:
		cell.Assignments = fillers
		return CellPlaceholder
	default:
		return CellUnassigned
	}
}

func sortAssignments(assignments []Assignment) {
	sort.SliceStable(assignments, func(i, j int) bool {
		a, b := assignments[i], assignments[j]
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.RoomID != b.RoomID {
			return a.RoomID < b.RoomID
		}
		return a.Subject < b.Subject
	})
}

func percentage(part, whole int) float64 {
	return round2(float64(part) * 100 / float64(whole))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
