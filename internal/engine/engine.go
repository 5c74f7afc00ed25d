// Package engine builds weekly class schedules: slot generation, constraint
// checks, greedy and genetic construction, slot filling and grid assembly.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

const (
	AlgorithmGreedy  = "greedy"
	AlgorithmGenetic = "genetic"
)

const (
	// MinSubjectDuration is the shortest session length a subject may declare.
	MinSubjectDuration = 5
	// MaxDistinctDurations bounds the slot label set, whose overlap table grows
	// quadratically with the number of distinct session lengths.
	MaxDistinctDurations = 16
)

// Options configure an Engine for every run it performs.
type Options struct {
	Genetic GeneticConfig
	// Workers bounds parallel fitness evaluation. Zero uses one per CPU.
	Workers int
	Logger  *zap.Logger
}

// Engine runs scheduling requests. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	opts   Options
	logger *zap.Logger
}

// New constructs an Engine.
func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Genetic = opts.Genetic.withDefaults()
	return &Engine{opts: opts, logger: logger}
}

// Validate checks the structure of a request without scheduling it.
func Validate(req *Request) error {
	if len(req.Rooms) == 0 {
		return fmt.Errorf("%w: at least one room is required", ErrValidation)
	}
	seenRoom := make(map[string]bool, len(req.Rooms))
	for _, room := range req.Rooms {
		if room == "" {
			return fmt.Errorf("%w: room id must not be empty", ErrValidation)
		}
		if seenRoom[room] {
			return fmt.Errorf("%w: duplicate room %q", ErrValidation, room)
		}
		seenRoom[room] = true
	}
	if req.College.Start < 0 || req.College.End > LastMinute || req.College.Start >= req.College.End {
		return fmt.Errorf("%w: college window must satisfy start < end", ErrValidation)
	}
	for _, day := range req.WorkingDays {
		if !day.Valid() {
			return fmt.Errorf("%w: working day %s", ErrValidation, day)
		}
	}
	for i, b := range req.Breaks {
		if b.Day != AllDays && !b.Day.Valid() {
			return fmt.Errorf("%w: break %d has invalid day", ErrValidation, i)
		}
		if !(TimeSlot{Day: Monday, Start: b.Start, End: b.End}).Valid() {
			return fmt.Errorf("%w: break %d window %s-%s", ErrValidation, i, FormatMinutes(b.Start), FormatMinutes(b.End))
		}
	}

	if n := len(req.Durations()); n > MaxDistinctDurations {
		return fmt.Errorf("%w: %d distinct session durations exceed the limit of %d", ErrValidation, n, MaxDistinctDurations)
	}

	seenSubject := make(map[string]bool, len(req.Subjects))
	for _, subject := range req.Subjects {
		if subject.Name == "" {
			return fmt.Errorf("%w: subject name must not be empty", ErrValidation)
		}
		if seenSubject[subject.Name] {
			return fmt.Errorf("%w: duplicate subject %q", ErrValidation, subject.Name)
		}
		seenSubject[subject.Name] = true
		if subject.Duration < MinSubjectDuration {
			return fmt.Errorf("%w: subject %q needs a duration of at least %d minutes", ErrValidation, subject.Name, MinSubjectDuration)
		}
		if subject.SessionsPerWeek < 0 {
			return fmt.Errorf("%w: subject %q has negative sessions per week", ErrValidation, subject.Name)
		}
		if len(subject.Faculty) == 0 {
			return fmt.Errorf("%w: subject %q has no eligible faculty", ErrValidation, subject.Name)
		}
		if err := validatePreferences(subject.Name, subject.Preferences); err != nil {
			return err
		}
		for _, faculty := range subject.Faculty {
			if faculty.ID == "" {
				return fmt.Errorf("%w: subject %q lists faculty without id", ErrValidation, subject.Name)
			}
			if faculty.ID == PlaceholderFacultyID {
				return fmt.Errorf("%w: faculty id %q is reserved", ErrValidation, faculty.ID)
			}
			for _, window := range faculty.Availability {
				if !window.Day.Valid() || !window.Valid() {
					return fmt.Errorf("%w: faculty %q has invalid availability %s", ErrValidation, faculty.ID, window)
				}
			}
			if err := validatePreferences(faculty.ID, faculty.Preferences); err != nil {
				return err
			}
		}
	}
	return nil
}

func validatePreferences(owner string, prefs []Preference) error {
	for _, p := range prefs {
		if p.Priority < 1 || p.Priority > 5 {
			return fmt.Errorf("%w: %q preference priority %d outside 1-5", ErrValidation, owner, p.Priority)
		}
		if p.Day != AllDays && !p.Day.Valid() {
			return fmt.Errorf("%w: %q preference has invalid day", ErrValidation, owner)
		}
		if !(TimeSlot{Day: Monday, Start: p.Start, End: p.End}).Valid() {
			return fmt.Errorf("%w: %q preference window %s-%s", ErrValidation, owner, FormatMinutes(p.Start), FormatMinutes(p.End))
		}
	}
	return nil
}

// Slots validates the request and returns its slot universe.
func Slots(req *Request) (*Universe, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	return GenerateSlots(req.College, req.Breaks, req.Durations(), req.Days())
}

// Generate computes a full schedule for req. Infeasible sessions are reported
// in the result; only malformed requests and internal defects return errors.
// ctx is observed between fitness evaluations of the genetic search.
func (e *Engine) Generate(ctx context.Context, req *Request) (*Result, error) {
	started := time.Now()
	universe, err := Slots(req)
	if err != nil {
		return nil, err
	}

	seed := req.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	constraints := NewConstraintEngine(req, universe)

	e.logger.Debug("slot universe generated",
		zap.Int("labels", len(universe.Labels)),
		zap.Int("days", len(universe.Days)),
		zap.Int("available_cells", universe.Available()),
	)

	var (
		genes     []gene
		book      *ledger
		algorithm = AlgorithmGreedy
	)
	if req.UseGenetic {
		algorithm = AlgorithmGenetic
		optimizer := NewGeneticOptimizer(constraints, e.opts.Genetic, rng, e.opts.Workers, e.logger)
		genes, _, err = optimizer.Optimize(ctx)
		if err != nil {
			return nil, fmt.Errorf("genetic search: %w", err)
		}
		book = newLedger(constraints)
		for _, g := range genes {
			book.book(g)
		}
	} else {
		genes, book, _ = NewGreedyAssigner(constraints, rng, e.logger).Assign()
	}

	genes, placeholders, fill := NewSlotFillEngine(constraints, req.FillPlaceholders, e.logger).Fill(genes, book)
	unassigned := missingSessions(constraints, book)

	result, err := NewScheduleAssembler(constraints, req.CountPlaceholders).Assemble(genes, placeholders)
	if err != nil {
		return nil, fmt.Errorf("assemble schedule: %w", err)
	}
	result.UnassignedSessions = unassigned
	result.Fill = fill
	result.Algorithm = algorithm
	result.Seed = seed

	e.logger.Info("schedule generated",
		zap.String("algorithm", algorithm),
		zap.Int64("seed", seed),
		zap.Int("assignments", len(genes)),
		zap.Int("placeholders", len(placeholders)),
		zap.Int("unassigned_sessions", len(unassigned)),
		zap.Int("fitness", result.Fitness),
		zap.Float64("utilization", result.UtilizationPercentage),
		zap.Duration("duration", time.Since(started)),
	)
	return result, nil
}

// missingSessions lists, per subject, the sessions still owed after a run.
func missingSessions(c *ConstraintEngine, l *ledger) []UnassignedSession {
	out := []UnassignedSession{}
	for s, subject := range c.subjects {
		for session := l.sessions[s] + 1; session <= subject.SessionsPerWeek; session++ {
			out = append(out, UnassignedSession{Subject: subject.Name, Session: session, Reason: reasonNoFeasibleSlot})
		}
	}
	return out
}
