package engine

import "sort"

// Preference is a preferred window for a subject or faculty member. Priority
// runs from 1 (strongest) to 5 (weakest).
type Preference struct {
	Day      Day `json:"day"`
	Start    int `json:"startMinute"`
	End      int `json:"endMinute"`
	Priority int `json:"priority"`
}

// Covers reports whether the preference window contains slot.
func (p Preference) Covers(slot TimeSlot) bool {
	return p.Day.Matches(slot.Day) && p.Start <= slot.Start && slot.End <= p.End
}

// Faculty is a teacher eligible for one or more subjects.
type Faculty struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Availability []TimeSlot   `json:"availability"`
	Preferences  []Preference `json:"preferredSlots,omitempty"`
}

// AvailableFor reports whether slot lies inside one of the availability windows.
func (f *Faculty) AvailableFor(slot TimeSlot) bool {
	for _, window := range f.Availability {
		if window.Contains(slot) {
			return true
		}
	}
	return false
}

// Subject is a course that needs SessionsPerWeek sessions of Duration minutes.
type Subject struct {
	Name            string    `json:"name"`
	Duration        int       `json:"durationMinutes"`
	SessionsPerWeek int       `json:"sessionsPerWeek"`
	Faculty         []Faculty `json:"eligibleFaculty"`
	IsSpecial       bool      `json:"isSpecial"`
	// RequiresConsecutive is carried through but not enforced by the engine.
	RequiresConsecutive bool         `json:"requiresConsecutive"`
	Preferences         []Preference `json:"preferredSlots,omitempty"`
}

// CollegeWindow bounds every generated slot.
type CollegeWindow struct {
	Start int `json:"startMinute"`
	End   int `json:"endMinute"`
}

// PlaceholderFacultyID identifies synthetic filler assignments.
const PlaceholderFacultyID = "__placeholder__"

// Assignment is one scheduled session. Values are never mutated once built.
type Assignment struct {
	Subject         string `json:"subject"`
	FacultyID       string `json:"facultyId"`
	FacultyName     string `json:"facultyName"`
	Day             Day    `json:"day"`
	Start           int    `json:"startMinute"`
	End             int    `json:"endMinute"`
	RoomID          string `json:"roomId"`
	IsSpecial       bool   `json:"isSpecial"`
	PreferenceScore int    `json:"preferenceScore"`
	Placeholder     bool   `json:"placeholder"`
}

// Slot returns the assignment's time slot.
func (a Assignment) Slot() TimeSlot {
	return TimeSlot{Day: a.Day, Start: a.Start, End: a.End}
}

// Request is the complete input of one scheduling run.
type Request struct {
	Subjects    []Subject
	Breaks      []BreakWindow
	College     CollegeWindow
	Rooms       []string
	WorkingDays []Day
	UseGenetic  bool
	// Seed drives every random choice of the run. Zero picks a time-based seed.
	Seed int64
	// FillPlaceholders enables the final filler pass of the slot-fill stage.
	FillPlaceholders bool
	// CountPlaceholders makes placeholders count towards UtilizationPercentage.
	CountPlaceholders bool
}

// Days returns the working days of the request, defaulting to DefaultWeek.
func (r *Request) Days() []Day {
	if len(r.WorkingDays) == 0 {
		return DefaultWeek
	}
	return r.WorkingDays
}

// Durations returns the distinct subject durations in ascending order.
func (r *Request) Durations() []int {
	seen := make(map[int]bool, len(r.Subjects))
	var out []int
	for _, subject := range r.Subjects {
		if subject.Duration <= 0 || seen[subject.Duration] {
			continue
		}
		seen[subject.Duration] = true
		out = append(out, subject.Duration)
	}
	sort.Ints(out)
	return out
}

// UnassignedSession records a required session that could not be placed.
type UnassignedSession struct {
	Subject string `json:"subject"`
	Session int    `json:"session"`
	Reason  string `json:"reason"`
}
