package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/engine"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type scheduleRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, record *models.ScheduleRecord) error
	FindByID(ctx context.Context, id string) (*models.ScheduleRecord, error)
	Latest(ctx context.Context) (*models.ScheduleRecord, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleSummary, int, error)
	Delete(ctx context.Context, id string) error
}

type scheduleEngine interface {
	Generate(ctx context.Context, req *engine.Request) (*engine.Result, error)
	Fingerprint(req *engine.Request) (string, bool, error)
}

const (
	scheduleCachePrefix     = "schedules:"
	scheduleFingerprintKey  = scheduleCachePrefix + "fp:"
	scheduleRecordKeyPrefix = scheduleCachePrefix + "id:"
	scheduleLatestKey       = scheduleCachePrefix + "latest"
	consecutiveWarning      = "requiresConsecutive is recorded but not enforced"
)

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	MaxSubjects      int
	FillPlaceholders bool
	Timeout          time.Duration
	ProposalTTL      time.Duration
	CacheTTL         time.Duration
}

// GenerateOptions controls what happens with a generated schedule.
type GenerateOptions struct {
	Persist   bool
	CreatedBy string
}

// ScheduleGeneratorService runs the scheduling engine and keeps the generated history.
type ScheduleGeneratorService struct {
	engine    scheduleEngine
	repo      scheduleRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ScheduleGeneratorConfig
	store     *proposalStore
}

// NewScheduleGeneratorService wires scheduler dependencies.
func NewScheduleGeneratorService(
	eng scheduleEngine,
	repo scheduleRepository,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if eng == nil {
		eng = engine.New(engine.Options{Logger: logger})
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSubjects <= 0 {
		cfg.MaxSubjects = 128
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	return &ScheduleGeneratorService{
		engine:    eng,
		repo:      repo,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		store:     newProposalStore(cfg.ProposalTTL),
	}
}

// Generate validates the request, runs the engine and, when asked, stores the outcome.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateScheduleRequest, opts GenerateOptions) (*dto.ScheduleResponse, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	engineReq, err := req.ToEngine(s.cfg.FillPlaceholders)
	if err != nil {
		return nil, mapEngineError(err)
	}

	result, cached, err := s.run(ctx, engineReq)
	if err != nil {
		return nil, err
	}

	resp := &dto.ScheduleResponse{Result: result, Cached: cached, Warnings: requestWarnings(engineReq)}
	if !opts.Persist {
		proposal := s.store.Save(req, result)
		expires := proposal.RequestedAt.Add(s.cfg.ProposalTTL)
		resp.ProposalID = proposal.ID
		resp.ProposalExpiresAt = &expires
		return resp, nil
	}

	record, err := s.persist(ctx, req, result, opts.CreatedBy)
	if err != nil {
		return nil, err
	}
	resp.ID = record.ID
	resp.CreatedAt = &record.CreatedAt
	resp.Persisted = true
	s.cacheRecord(ctx, resp)
	return resp, nil
}

// Save stores a previously previewed schedule.
func (s *ScheduleGeneratorService) Save(ctx context.Context, proposalID, createdBy string) (*dto.ScheduleResponse, error) {
	proposal, ok := s.store.Get(proposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	record, err := s.persist(ctx, proposal.Request, proposal.Result, createdBy)
	if err != nil {
		return nil, err
	}
	s.store.Delete(proposalID)

	resp := &dto.ScheduleResponse{
		ID:        record.ID,
		CreatedAt: &record.CreatedAt,
		Persisted: true,
		Result:    proposal.Result,
	}
	s.cacheRecord(ctx, resp)
	return resp, nil
}

// Validate reports structural problems and warnings without running the optimizer.
func (s *ScheduleGeneratorService) Validate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.ValidationReport, error) {
	report := &dto.ValidationReport{}
	if err := s.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate request")
		}
		for _, fe := range fieldErrs {
			report.Errors = append(report.Errors, dto.ValidationIssue{Field: fe.Namespace(), Message: describeFieldError(fe)})
		}
	}
	if len(req.Subjects) > s.cfg.MaxSubjects {
		report.Errors = append(report.Errors, dto.ValidationIssue{
			Field:   "subjects",
			Message: fmt.Sprintf("at most %d subjects are allowed", s.cfg.MaxSubjects),
		})
	}
	if len(report.Errors) > 0 {
		return report, nil
	}

	engineReq, err := req.ToEngine(s.cfg.FillPlaceholders)
	if err != nil {
		report.Errors = append(report.Errors, dto.ValidationIssue{Message: err.Error()})
		return report, nil
	}
	universe, err := engine.Slots(engineReq)
	if err != nil {
		if !engine.IsValidation(err) {
			return nil, mapEngineError(err)
		}
		report.Errors = append(report.Errors, dto.ValidationIssue{Message: err.Error()})
		return report, nil
	}

	report.Valid = true
	report.AvailableCells = universe.Available()
	for _, label := range universe.Labels {
		report.SlotLabels = append(report.SlotLabels, label.Label())
	}
	report.Warnings = capacityWarnings(engineReq, universe)
	for _, subject := range engineReq.Subjects {
		report.RequiredSessions += subject.SessionsPerWeek
	}
	return report, nil
}

// Get loads a stored schedule, preferring the cache.
func (s *ScheduleGeneratorService) Get(ctx context.Context, id string) (*dto.ScheduleResponse, error) {
	var cached dto.ScheduleResponse
	if hit, _ := s.cache.Get(ctx, scheduleRecordKeyPrefix+id, &cached); hit && cached.Result != nil {
		cached.Cached = true
		return &cached, nil
	}

	start := time.Now()
	record, err := s.repo.FindByID(ctx, id)
	s.metrics.ObserveDBQuery("schedules.find_by_id", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	resp, err := responseFromRecord(record)
	if err != nil {
		return nil, err
	}
	s.cacheRecord(ctx, resp)
	return resp, nil
}

// Latest returns the most recently stored schedule.
func (s *ScheduleGeneratorService) Latest(ctx context.Context) (*dto.ScheduleResponse, error) {
	var cached dto.ScheduleResponse
	if hit, _ := s.cache.Get(ctx, scheduleLatestKey, &cached); hit && cached.Result != nil {
		cached.Cached = true
		return &cached, nil
	}

	start := time.Now()
	record, err := s.repo.Latest(ctx)
	s.metrics.ObserveDBQuery("schedules.latest", time.Since(start))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no schedule has been generated yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load latest schedule")
	}
	resp, err := responseFromRecord(record)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, scheduleLatestKey, resp, s.cfg.CacheTTL)
	return resp, nil
}

// List returns stored schedule summaries, newest first.
func (s *ScheduleGeneratorService) List(ctx context.Context, query dto.ScheduleListQuery) ([]models.ScheduleSummary, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule query")
	}
	filter := models.ScheduleFilter{
		Algorithm: models.ScheduleAlgorithm(query.Algorithm),
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	start := time.Now()
	items, total, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("schedules.list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	if items == nil {
		items = []models.ScheduleSummary{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Delete removes a stored schedule and its cache entry.
func (s *ScheduleGeneratorService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete schedule")
	}
	_ = s.cache.Delete(ctx, scheduleRecordKeyPrefix+id)
	_ = s.cache.Invalidate(ctx, scheduleLatestKey+"*")
	return nil
}

func (s *ScheduleGeneratorService) checkRequest(req dto.GenerateScheduleRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	if len(req.Subjects) > s.cfg.MaxSubjects {
		return appErrors.Clone(appErrors.ErrTooManySubjects, fmt.Sprintf("subjects exceeds maximum of %d", s.cfg.MaxSubjects))
	}
	return nil
}

// run executes the engine, reusing a cached result for reproducible requests.
func (s *ScheduleGeneratorService) run(ctx context.Context, req *engine.Request) (*engine.Result, bool, error) {
	fingerprint, reproducible, err := s.engine.Fingerprint(req)
	if err != nil {
		s.logger.Warn("schedule fingerprint failed", zap.Error(err))
		reproducible = false
	}
	if reproducible {
		var cached engine.Result
		if hit, _ := s.cache.Get(ctx, scheduleFingerprintKey+fingerprint, &cached); hit {
			return &cached, true, nil
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	algorithm := engine.AlgorithmGreedy
	if req.UseGenetic {
		algorithm = engine.AlgorithmGenetic
	}
	start := time.Now()
	result, err := s.engine.Generate(runCtx, req)
	run := ScheduleRun{Algorithm: algorithm, Duration: time.Since(start), Err: err}
	if err != nil {
		s.metrics.ObserveScheduleRun(run)
		s.logger.Warn("schedule generation failed", zap.String("algorithm", algorithm), zap.Error(err))
		return nil, false, mapEngineError(err)
	}
	run.Fitness = result.Fitness
	run.Utilization = result.UtilizationPercentage
	run.Unassigned = len(result.UnassignedSessions)
	run.Placeholders = result.Fill.Placeholders
	s.metrics.ObserveScheduleRun(run)

	if reproducible {
		_ = s.cache.Set(ctx, scheduleFingerprintKey+fingerprint, result, s.cfg.CacheTTL)
	}
	return result, false, nil
}

func (s *ScheduleGeneratorService) persist(ctx context.Context, req dto.GenerateScheduleRequest, result *engine.Result, createdBy string) (*models.ScheduleRecord, error) {
	if s.repo == nil {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "schedule storage is not configured")
	}
	requestJSON, err := json.Marshal(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule request")
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode schedule result")
	}

	record := &models.ScheduleRecord{
		Algorithm:          models.ScheduleAlgorithm(result.Algorithm),
		Fitness:            result.Fitness,
		Utilization:        result.UtilizationPercentage,
		UnassignedSessions: len(result.UnassignedSessions),
		Seed:               result.Seed,
		Request:            types.JSONText(requestJSON),
		Result:             types.JSONText(resultJSON),
	}
	if engineReq, err := req.ToEngine(s.cfg.FillPlaceholders); err == nil {
		engineReq.Seed = result.Seed
		record.Fingerprint, _, _ = s.engine.Fingerprint(engineReq)
	}
	if createdBy != "" {
		record.CreatedBy = &createdBy
	}

	start := time.Now()
	err = s.repo.Create(ctx, nil, record)
	s.metrics.ObserveDBQuery("schedules.create", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store schedule")
	}
	_ = s.cache.Invalidate(ctx, scheduleLatestKey+"*")
	s.logger.Info("schedule stored",
		zap.String("schedule_id", record.ID),
		zap.String("algorithm", string(record.Algorithm)),
		zap.Int("fitness", record.Fitness),
	)
	return record, nil
}

func (s *ScheduleGeneratorService) cacheRecord(ctx context.Context, resp *dto.ScheduleResponse) {
	if resp == nil || resp.ID == "" {
		return
	}
	stored := *resp
	stored.Cached = false
	stored.Warnings = nil
	_ = s.cache.Set(ctx, scheduleRecordKeyPrefix+resp.ID, stored, s.cfg.CacheTTL)
}

func responseFromRecord(record *models.ScheduleRecord) (*dto.ScheduleResponse, error) {
	var result engine.Result
	if err := json.Unmarshal(record.Result, &result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored schedule is unreadable")
	}
	createdAt := record.CreatedAt
	return &dto.ScheduleResponse{
		ID:        record.ID,
		CreatedAt: &createdAt,
		Persisted: true,
		Result:    &result,
	}, nil
}

// mapEngineError translates engine failures into API errors.
func mapEngineError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrInvalidTimeFormat):
		return appErrors.Wrap(err, appErrors.ErrInvalidTimeFormat.Code, appErrors.ErrInvalidTimeFormat.Status, err.Error())
	case errors.Is(err, engine.ErrNoValidSlots):
		return appErrors.Wrap(err, appErrors.ErrNoValidSlots.Code, appErrors.ErrNoValidSlots.Status, err.Error())
	case errors.Is(err, engine.ErrValidation):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "schedule generation failed")
	}
}

func requestWarnings(req *engine.Request) []string {
	var out []string
	for _, subject := range req.Subjects {
		if subject.RequiresConsecutive {
			out = append(out, fmt.Sprintf("%s: %s", subject.Name, consecutiveWarning))
		}
	}
	return out
}

func capacityWarnings(req *engine.Request, universe *engine.Universe) []dto.ValidationIssue {
	var warnings []dto.ValidationIssue
	required := 0
	for i, subject := range req.Subjects {
		field := fmt.Sprintf("subjects[%d]", i)
		required += subject.SessionsPerWeek
		if subject.RequiresConsecutive {
			warnings = append(warnings, dto.ValidationIssue{Field: field, Message: consecutiveWarning})
		}
		if subject.SessionsPerWeek == 0 {
			warnings = append(warnings, dto.ValidationIssue{Field: field, Message: "subject requires no sessions"})
		}
		if len(universe.LabelsOfDuration(subject.Duration)) == 0 {
			warnings = append(warnings, dto.ValidationIssue{Field: field, Message: fmt.Sprintf("no %d-minute slot fits the college window", subject.Duration)})
		}
		for j, faculty := range subject.Faculty {
			if !reachable(faculty, subject.Duration, universe) {
				warnings = append(warnings, dto.ValidationIssue{
					Field:   fmt.Sprintf("%s.eligibleFaculty[%d]", field, j),
					Message: fmt.Sprintf("faculty %s has no availability covering a %d-minute slot", faculty.ID, subject.Duration),
				})
			}
		}
	}
	if capacity := universe.Available() * len(req.Rooms); required > capacity {
		warnings = append(warnings, dto.ValidationIssue{
			Field:   "subjects",
			Message: fmt.Sprintf("%d sessions requested but only %d room slots exist", required, capacity),
		})
	}
	return warnings
}

func reachable(faculty engine.Faculty, duration int, universe *engine.Universe) bool {
	for _, label := range universe.LabelsOfDuration(duration) {
		for d := range universe.Days {
			if universe.Blocked(d, label) {
				continue
			}
			if faculty.AvailableFor(universe.Slot(d, label)) {
				return true
			}
		}
	}
	return false
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

type scheduleProposal struct {
	ID          string
	Request     dto.GenerateScheduleRequest
	Result      *engine.Result
	RequestedAt time.Time
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]scheduleProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]scheduleProposal),
	}
}

func (s *proposalStore) Save(req dto.GenerateScheduleRequest, result *engine.Result) scheduleProposal {
	proposal := scheduleProposal{
		ID:          uuid.NewString(),
		Request:     req,
		Result:      result,
		RequestedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpired()
	s.items[proposal.ID] = proposal
	return proposal
}

func (s *proposalStore) Get(id string) (scheduleProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return scheduleProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return scheduleProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// evictExpired must be called with mu held.
func (s *proposalStore) evictExpired() {
	for id, proposal := range s.items {
		if time.Since(proposal.RequestedAt) > s.ttl {
			delete(s.items, id)
		}
	}
}
