package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

const scheduleJobType = "schedule.generate"

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest, opts GenerateOptions) (*dto.ScheduleResponse, error)
}

// ScheduleJobConfig tunes the background generation queue.
type ScheduleJobConfig struct {
	Workers    int
	Retries    int
	BufferSize int
	RetryDelay time.Duration
	ResultTTL  time.Duration
}

type scheduleJobPayload struct {
	Request   dto.GenerateScheduleRequest
	CreatedBy string
}

// ScheduleJobService runs persisted generations in the background so large
// genetic searches do not hold an HTTP request open.
type ScheduleJobService struct {
	generator scheduleGenerator
	queue     *jobs.Queue
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	resultTTL time.Duration

	mu     sync.RWMutex
	states map[string]*dto.JobResponse
}

// NewScheduleJobService builds the service and its queue. Call Start before Submit.
func NewScheduleJobService(generator scheduleGenerator, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg ScheduleJobConfig) *ScheduleJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = time.Hour
	}
	svc := &ScheduleJobService{
		generator: generator,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		resultTTL: cfg.ResultTTL,
		states:    make(map[string]*dto.JobResponse),
	}
	svc.queue = jobs.NewQueue("schedules", svc.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDead:     svc.fail,
	})
	return svc
}

// Start launches the queue workers.
func (s *ScheduleJobService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers. Jobs still queued are abandoned.
func (s *ScheduleJobService) Stop() {
	s.queue.Stop()
}

// Submit validates req and queues it for generation.
func (s *ScheduleJobService) Submit(_ context.Context, req dto.GenerateScheduleRequest, createdBy string) (*dto.JobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	s.evictFinished()

	state := &dto.JobResponse{
		ID:          uuid.NewString(),
		Status:      dto.JobStatusQueued,
		SubmittedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.states[state.ID] = state
	s.mu.Unlock()

	err := s.queue.TryEnqueue(jobs.Job{
		ID:      state.ID,
		Type:    scheduleJobType,
		Payload: scheduleJobPayload{Request: req, CreatedBy: createdBy},
	})
	if err != nil {
		s.mu.Lock()
		delete(s.states, state.ID)
		s.mu.Unlock()
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "schedule queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "schedule queue is not running")
	}
	s.metrics.JobQueued()
	s.logger.Info("schedule job queued", zap.String("job_id", state.ID), zap.Int("pending", s.queue.Pending()))
	return s.snapshot(state.ID)
}

// Status reports the state of a submitted job.
func (s *ScheduleJobService) Status(_ context.Context, id string) (*dto.JobResponse, error) {
	return s.snapshot(id)
}

func (s *ScheduleJobService) handle(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(scheduleJobPayload)
	if !ok {
		return jobs.Permanent(errors.New("unexpected schedule job payload"))
	}
	s.update(job.ID, func(state *dto.JobResponse) {
		state.Status = dto.JobStatusRunning
		state.Attempts = job.Attempt + 1
	})

	resp, err := s.generator.Generate(ctx, payload.Request, GenerateOptions{Persist: true, CreatedBy: payload.CreatedBy})
	if err != nil {
		if !appErrors.Retryable(err) {
			return jobs.Permanent(err)
		}
		return err
	}

	now := time.Now().UTC()
	s.update(job.ID, func(state *dto.JobResponse) {
		state.Status = dto.JobStatusSucceeded
		state.ScheduleID = resp.ID
		state.Error = ""
		state.FinishedAt = &now
	})
	s.metrics.JobFinished()
	s.logger.Info("schedule job finished", zap.String("job_id", job.ID), zap.String("schedule_id", resp.ID))
	return nil
}

func (s *ScheduleJobService) fail(job jobs.Job, err error) {
	now := time.Now().UTC()
	s.update(job.ID, func(state *dto.JobResponse) {
		state.Status = dto.JobStatusFailed
		state.Error = appErrors.FromError(err).Message
		state.Attempts = job.Attempt
		state.FinishedAt = &now
	})
	s.metrics.JobFinished()
}

func (s *ScheduleJobService) update(id string, fn func(*dto.JobResponse)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.states[id]; ok {
		fn(state)
	}
}

func (s *ScheduleJobService) snapshot(id string) (*dto.JobResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	copied := *state
	return &copied, nil
}

func (s *ScheduleJobService) evictFinished() {
	cutoff := time.Now().Add(-s.resultTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, state := range s.states {
		if state.FinishedAt != nil && state.FinishedAt.Before(cutoff) {
			delete(s.states, id)
		}
	}
}
