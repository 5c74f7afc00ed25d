package engine

import (
	"fmt"
	"sort"
)

// Universe is the slot grid of one run: a shared label set replicated across
// the working days, with break-overlapping cells blocked per day.
type Universe struct {
	Labels []TimeSlot
	Days   []Day

	blocked    [][]bool
	overlap    [][]int
	byDuration map[int][]int
	available  int
}

// GenerateSlots tiles the college window once per distinct duration, starting
// at the window start, and keeps every label that is free of breaks on at
// least one working day. The result depends only on its inputs.
func GenerateSlots(college CollegeWindow, breaks []BreakWindow, durations []int, days []Day) (*Universe, error) {
	if college.Start < 0 || college.End > LastMinute || college.Start >= college.End {
		return nil, fmt.Errorf("%w: college window %s-%s", ErrValidation, FormatMinutes(college.Start), FormatMinutes(college.End))
	}
	if len(days) == 0 {
		days = DefaultWeek
	}

	seen := make(map[[2]int]bool)
	var labels []TimeSlot
	for _, duration := range durations {
		if duration <= 0 {
			continue
		}
		for start := college.Start; start+duration <= college.End; start += duration {
			key := [2]int{start, start + duration}
			if seen[key] {
				continue
			}
			seen[key] = true
			labels = append(labels, TimeSlot{Start: start, End: start + duration})
		}
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Start != labels[j].Start {
			return labels[i].Start < labels[j].Start
		}
		return labels[i].End < labels[j].End
	})

	// Drop labels that are blocked on every working day.
	kept := labels[:0]
	for _, label := range labels {
		for _, day := range days {
			slot := TimeSlot{Day: day, Start: label.Start, End: label.End}
			if !OverlapsBreak(slot, breaks) {
				kept = append(kept, label)
				break
			}
		}
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrNoValidSlots)
	}

	u := &Universe{
		Labels:     kept,
		Days:       append([]Day(nil), days...),
		blocked:    make([][]bool, len(days)),
		overlap:    make([][]int, len(kept)),
		byDuration: make(map[int][]int),
	}
	for d, day := range days {
		u.blocked[d] = make([]bool, len(kept))
		for l, label := range kept {
			blocked := OverlapsBreak(TimeSlot{Day: day, Start: label.Start, End: label.End}, breaks)
			u.blocked[d][l] = blocked
			if !blocked {
				u.available++
			}
		}
	}
	for i, a := range kept {
		u.byDuration[a.Duration()] = append(u.byDuration[a.Duration()], i)
		for j, b := range kept {
			if a.Start < b.End && b.Start < a.End {
				u.overlap[i] = append(u.overlap[i], j)
			}
		}
	}
	return u, nil
}

// Slot returns the concrete slot for a (day, label) cell.
func (u *Universe) Slot(day, label int) TimeSlot {
	l := u.Labels[label]
	return TimeSlot{Day: u.Days[day], Start: l.Start, End: l.End}
}

// Blocked reports whether the cell overlaps a break.
func (u *Universe) Blocked(day, label int) bool {
	return u.blocked[day][label]
}

// Available returns the number of non-break cells in the week.
func (u *Universe) Available() int {
	return u.available
}

// CellCount returns the number of cells in the week, breaks included.
func (u *Universe) CellCount() int {
	return len(u.Days) * len(u.Labels)
}

// Week lists every non-break slot, day-major in label order.
func (u *Universe) Week() []TimeSlot {
	out := make([]TimeSlot, 0, u.available)
	for d := range u.Days {
		for l := range u.Labels {
			if !u.blocked[d][l] {
				out = append(out, u.Slot(d, l))
			}
		}
	}
	return out
}

// LabelsOfDuration returns the label indexes whose length is minutes.
func (u *Universe) LabelsOfDuration(minutes int) []int {
	return u.byDuration[minutes]
}

// DayIndex resolves a weekday to its position in the grid.
func (u *Universe) DayIndex(day Day) (int, bool) {
	for i, d := range u.Days {
		if d == day {
			return i, true
		}
	}
	return 0, false
}

// LabelIndex resolves a start/end pair to its label position.
func (u *Universe) LabelIndex(start, end int) (int, bool) {
	i := sort.Search(len(u.Labels), func(i int) bool {
		l := u.Labels[i]
		return l.Start > start || (l.Start == start && l.End >= end)
	})
	if i < len(u.Labels) && u.Labels[i].Start == start && u.Labels[i].End == end {
		return i, true
	}
	return 0, false
}

func (u *Universe) cell(day, label int) int {
	return day*len(u.Labels) + label
}
