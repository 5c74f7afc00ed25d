package engine

import (
	"fmt"
	"strings"
	"time"
)

// Day is a weekday. The zero value means "every day" for breaks and preferences.
type Day int

const (
	AllDays Day = iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

// LastMinute is the latest representable minute of a day (23:59).
const LastMinute = 24*60 - 1

// DefaultWeek is the six-day teaching week used when a request does not narrow it.
var DefaultWeek = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

var dayNames = map[Day]string{
	AllDays:   "ALL_DAYS",
	Monday:    "MONDAY",
	Tuesday:   "TUESDAY",
	Wednesday: "WEDNESDAY",
	Thursday:  "THURSDAY",
	Friday:    "FRIDAY",
	Saturday:  "SATURDAY",
	Sunday:    "SUNDAY",
}

var dayAliases = map[string]Day{
	"ALL_DAYS":  AllDays,
	"ANY_DAY":   AllDays,
	"ALL":       AllDays,
	"*":         AllDays,
	"MONDAY":    Monday,
	"MON":       Monday,
	"TUESDAY":   Tuesday,
	"TUE":       Tuesday,
	"WEDNESDAY": Wednesday,
	"WED":       Wednesday,
	"THURSDAY":  Thursday,
	"THU":       Thursday,
	"FRIDAY":    Friday,
	"FRI":       Friday,
	"SATURDAY":  Saturday,
	"SAT":       Saturday,
	"SUNDAY":    Sunday,
	"SUN":       Sunday,
}

// ParseDay accepts full or three-letter English day names in any case, plus
// ALL_DAYS / ANY_DAY for the wildcard.
func ParseDay(raw string) (Day, error) {
	day, ok := dayAliases[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown day %q", ErrValidation, raw)
	}
	return day, nil
}

func (d Day) String() string {
	if name, ok := dayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("DAY(%d)", int(d))
}

// Valid reports whether d is a concrete weekday.
func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

// Matches reports whether a day-scoped rule for d applies on other.
func (d Day) Matches(other Day) bool {
	return d == AllDays || d == other
}

// MarshalText implements encoding.TextMarshaler.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM"}

// ParseMinutes converts "HH:MM" (24-hour) or "HH:MM AM/PM" into minutes after midnight.
func ParseMinutes(text string) (int, error) {
	normalized := strings.ToUpper(strings.TrimSpace(text))
	if normalized == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidTimeFormat)
	}
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, normalized)
		if err != nil {
			continue
		}
		// time.Parse lets a 12-hour clock read hour 0 as midnight.
		if strings.HasSuffix(layout, "PM") && strings.Trim(normalized[:strings.Index(normalized, ":")], "0") == "" {
			break
		}
		return parsed.Hour()*60 + parsed.Minute(), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, text)
}

// FormatMinutes renders minutes after midnight as 24-hour "HH:MM".
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// TimeSlot is a half-open [Start, End) interval on one day, in minutes after midnight.
type TimeSlot struct {
	Day   Day `json:"day"`
	Start int `json:"startMinute"`
	End   int `json:"endMinute"`
}

// Duration returns the slot length in minutes.
func (s TimeSlot) Duration() int {
	return s.End - s.Start
}

// Label renders the day-independent "HH:MM-HH:MM" label.
func (s TimeSlot) Label() string {
	return FormatMinutes(s.Start) + "-" + FormatMinutes(s.End)
}

func (s TimeSlot) String() string {
	return s.Day.String() + " " + s.Label()
}

// Valid checks 0 <= Start < End <= LastMinute.
func (s TimeSlot) Valid() bool {
	return s.Start >= 0 && s.Start < s.End && s.End <= LastMinute
}

// Contains reports window containment: same day and inner lies fully inside s.
func (s TimeSlot) Contains(inner TimeSlot) bool {
	return s.Day == inner.Day && s.Start <= inner.Start && inner.End <= s.End
}

// Overlaps reports half-open overlap of two slots on the same day. Touching
// endpoints do not conflict.
func Overlaps(a, b TimeSlot) bool {
	if a.Day != b.Day {
		return false
	}
	return a.Start < b.End && b.Start < a.End
}

// BreakWindow blocks scheduling on Day, or on every day when Day is AllDays.
type BreakWindow struct {
	Day   Day `json:"day"`
	Start int `json:"startMinute"`
	End   int `json:"endMinute"`
}

// On projects the break onto a concrete day.
func (b BreakWindow) On(day Day) TimeSlot {
	return TimeSlot{Day: day, Start: b.Start, End: b.End}
}

// OverlapsBreak reports whether slot overlaps any break that applies to its day.
func OverlapsBreak(slot TimeSlot, breaks []BreakWindow) bool {
	for _, b := range breaks {
		if !b.Day.Matches(slot.Day) {
			continue
		}
		if Overlaps(slot, b.On(slot.Day)) {
			return true
		}
	}
	return false
}
