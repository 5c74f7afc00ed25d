package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/engine"
)

// TimeWindowRequest is a day plus a clock range such as "09:00"-"10:30" or "9:00 AM"-"10:30 AM".
type TimeWindowRequest struct {
	Day   string `json:"day" yaml:"day" validate:"required"`
	Start string `json:"start" yaml:"start" validate:"required"`
	End   string `json:"end" yaml:"end" validate:"required"`
}

// PreferenceRequest is a preferred window. An empty day means every day.
type PreferenceRequest struct {
	Day      string `json:"day,omitempty" yaml:"day,omitempty"`
	Start    string `json:"start" yaml:"start" validate:"required"`
	End      string `json:"end" yaml:"end" validate:"required"`
	Priority int    `json:"priority" yaml:"priority" validate:"required,min=1,max=5"`
}

// FacultyRequest describes one eligible teacher of a subject.
type FacultyRequest struct {
	ID             string              `json:"id" yaml:"id" validate:"required"`
	Name           string              `json:"name" yaml:"name"`
	Availability   []TimeWindowRequest `json:"availability" yaml:"availability" validate:"dive"`
	PreferredSlots []PreferenceRequest `json:"preferredSlots,omitempty" yaml:"preferredSlots,omitempty" validate:"dive"`
}

// SubjectRequest captures the weekly demand of a subject.
type SubjectRequest struct {
	Name                string              `json:"name" yaml:"name" validate:"required"`
	DurationMinutes     int                 `json:"durationMinutes" yaml:"durationMinutes" validate:"required,min=5,max=1440"`
	SessionsPerWeek     int                 `json:"sessionsPerWeek" yaml:"sessionsPerWeek" validate:"min=0,max=64"`
	IsSpecial           bool                `json:"isSpecial" yaml:"isSpecial"`
	RequiresConsecutive bool                `json:"requiresConsecutive" yaml:"requiresConsecutive"`
	EligibleFaculty     []FacultyRequest    `json:"eligibleFaculty" yaml:"eligibleFaculty" validate:"required,min=1,dive"`
	PreferredSlots      []PreferenceRequest `json:"preferredSlots,omitempty" yaml:"preferredSlots,omitempty" validate:"dive"`
}

// BreakRequest is a break window. An empty or ALL_DAYS day applies to the whole week.
type BreakRequest struct {
	Day   string `json:"day,omitempty" yaml:"day,omitempty"`
	Start string `json:"start" yaml:"start" validate:"required"`
	End   string `json:"end" yaml:"end" validate:"required"`
}

// CollegeTimeRequest bounds the teaching day.
type CollegeTimeRequest struct {
	Start string `json:"start" yaml:"start" validate:"required"`
	End   string `json:"end" yaml:"end" validate:"required"`
}

// GenerateScheduleRequest is the wire form of a scheduling run.
type GenerateScheduleRequest struct {
	Subjects          []SubjectRequest   `json:"subjects" yaml:"subjects" validate:"required,min=1,dive"`
	Breaks            []BreakRequest     `json:"breaks" yaml:"breaks" validate:"dive"`
	CollegeTime       CollegeTimeRequest `json:"collegeTime" yaml:"collegeTime"`
	Rooms             []string           `json:"rooms" yaml:"rooms" validate:"required,min=1,dive,required"`
	WorkingDays       []string           `json:"workingDays,omitempty" yaml:"workingDays,omitempty"`
	UseGenetic        bool               `json:"useGenetic" yaml:"useGenetic"`
	Seed              int64              `json:"seed,omitempty" yaml:"seed,omitempty"`
	FillPlaceholders  *bool              `json:"fillPlaceholders,omitempty" yaml:"fillPlaceholders,omitempty"`
	CountPlaceholders bool               `json:"countPlaceholders,omitempty" yaml:"countPlaceholders,omitempty"`
}

// ToEngine parses every clock string and day name into the engine's request.
// Failures wrap engine.ErrInvalidTimeFormat or engine.ErrValidation and name
// the offending field.
func (r GenerateScheduleRequest) ToEngine(fillDefault bool) (*engine.Request, error) {
	out := &engine.Request{
		Rooms:             make([]string, len(r.Rooms)),
		UseGenetic:        r.UseGenetic,
		Seed:              r.Seed,
		FillPlaceholders:  fillDefault,
		CountPlaceholders: r.CountPlaceholders,
	}
	if r.FillPlaceholders != nil {
		out.FillPlaceholders = *r.FillPlaceholders
	}
	for i, room := range r.Rooms {
		out.Rooms[i] = strings.TrimSpace(room)
	}

	var err error
	if out.College.Start, err = engine.ParseMinutes(r.CollegeTime.Start); err != nil {
		return nil, fmt.Errorf("collegeTime.start: %w", err)
	}
	if out.College.End, err = engine.ParseMinutes(r.CollegeTime.End); err != nil {
		return nil, fmt.Errorf("collegeTime.end: %w", err)
	}

	for i, name := range r.WorkingDays {
		day, err := engine.ParseDay(name)
		if err != nil {
			return nil, fmt.Errorf("workingDays[%d]: %w", i, err)
		}
		out.WorkingDays = append(out.WorkingDays, day)
	}

	for i, b := range r.Breaks {
		window, err := parseWindow(b.Day, b.Start, b.End)
		if err != nil {
			return nil, fmt.Errorf("breaks[%d]: %w", i, err)
		}
		out.Breaks = append(out.Breaks, engine.BreakWindow{Day: window.Day, Start: window.Start, End: window.End})
	}

	out.Subjects = make([]engine.Subject, 0, len(r.Subjects))
	for i, s := range r.Subjects {
		subject, err := s.toEngine()
		if err != nil {
			return nil, fmt.Errorf("subjects[%d]: %w", i, err)
		}
		out.Subjects = append(out.Subjects, subject)
	}
	return out, nil
}

func (s SubjectRequest) toEngine() (engine.Subject, error) {
	subject := engine.Subject{
		Name:                strings.TrimSpace(s.Name),
		Duration:            s.DurationMinutes,
		SessionsPerWeek:     s.SessionsPerWeek,
		IsSpecial:           s.IsSpecial,
		RequiresConsecutive: s.RequiresConsecutive,
	}
	prefs, err := parsePreferences(s.PreferredSlots)
	if err != nil {
		return subject, fmt.Errorf("preferredSlots%w", err)
	}
	subject.Preferences = prefs

	for i, f := range s.EligibleFaculty {
		faculty := engine.Faculty{ID: strings.TrimSpace(f.ID), Name: f.Name}
		if faculty.Name == "" {
			faculty.Name = faculty.ID
		}
		for j, a := range f.Availability {
			window, err := parseWindow(a.Day, a.Start, a.End)
			if err != nil {
				return subject, fmt.Errorf("eligibleFaculty[%d].availability[%d]: %w", i, j, err)
			}
			faculty.Availability = append(faculty.Availability, window)
		}
		if faculty.Preferences, err = parsePreferences(f.PreferredSlots); err != nil {
			return subject, fmt.Errorf("eligibleFaculty[%d].preferredSlots%w", i, err)
		}
		subject.Faculty = append(subject.Faculty, faculty)
	}
	return subject, nil
}

func parsePreferences(in []PreferenceRequest) ([]engine.Preference, error) {
	var out []engine.Preference
	for i, p := range in {
		window, err := parseWindow(p.Day, p.Start, p.End)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, engine.Preference{Day: window.Day, Start: window.Start, End: window.End, Priority: p.Priority})
	}
	return out, nil
}

func parseWindow(dayName, start, end string) (engine.TimeSlot, error) {
	var (
		slot engine.TimeSlot
		err  error
	)
	if strings.TrimSpace(dayName) != "" {
		if slot.Day, err = engine.ParseDay(dayName); err != nil {
			return slot, err
		}
	}
	if slot.Start, err = engine.ParseMinutes(start); err != nil {
		return slot, fmt.Errorf("start: %w", err)
	}
	if slot.End, err = engine.ParseMinutes(end); err != nil {
		return slot, fmt.Errorf("end: %w", err)
	}
	return slot, nil
}

// ScheduleResponse wraps an engine result with its storage metadata.
type ScheduleResponse struct {
	ID                string     `json:"id,omitempty"`
	ProposalID        string     `json:"proposalId,omitempty"`
	ProposalExpiresAt *time.Time `json:"proposalExpiresAt,omitempty"`
	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	Persisted         bool       `json:"persisted"`
	Cached            bool       `json:"cached,omitempty"`
	Warnings          []string   `json:"warnings,omitempty"`
	*engine.Result
}

// ValidationIssue points at one problem in a request.
type ValidationIssue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationReport is the outcome of checking a request without generating.
type ValidationReport struct {
	Valid            bool              `json:"valid"`
	Errors           []ValidationIssue `json:"errors,omitempty"`
	Warnings         []ValidationIssue `json:"warnings,omitempty"`
	SlotLabels       []string          `json:"slotLabels,omitempty"`
	AvailableCells   int               `json:"availableCells"`
	RequiredSessions int               `json:"requiredSessions"`
}

// ScheduleListQuery captures list filters for stored schedules.
type ScheduleListQuery struct {
	Algorithm string `form:"algorithm" validate:"omitempty,oneof=greedy genetic"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// JobStatus enumerates the lifecycle of an asynchronous generation.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// JobResponse reports the state of an asynchronous generation.
type JobResponse struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	ScheduleID  string     `json:"scheduleId,omitempty"`
	Error       string     `json:"error,omitempty"`
	Attempts    int        `json:"attempts"`
	SubmittedAt time.Time  `json:"submittedAt"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}
