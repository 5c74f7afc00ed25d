package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest, opts service.GenerateOptions) (*dto.ScheduleResponse, error)
	Save(ctx context.Context, proposalID, createdBy string) (*dto.ScheduleResponse, error)
	Validate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.ValidationReport, error)
	Get(ctx context.Context, id string) (*dto.ScheduleResponse, error)
	Latest(ctx context.Context) (*dto.ScheduleResponse, error)
	List(ctx context.Context, query dto.ScheduleListQuery) ([]models.ScheduleSummary, *models.Pagination, error)
	Delete(ctx context.Context, id string) error
}

type scheduleExporter interface {
	Export(ctx context.Context, id string, format service.ExportFormat, view service.ExportView) (*service.ExportResult, error)
}

type scheduleJobRunner interface {
	Submit(ctx context.Context, req dto.GenerateScheduleRequest, createdBy string) (*dto.JobResponse, error)
	Status(ctx context.Context, id string) (*dto.JobResponse, error)
}

// ScheduleGeneratorHandler exposes scheduler endpoints.
type ScheduleGeneratorHandler struct {
	service scheduleGenerator
	exports scheduleExporter
	jobs    scheduleJobRunner
}

// NewScheduleGeneratorHandler constructs the handler. jobs may be nil when
// asynchronous generation is disabled.
func NewScheduleGeneratorHandler(svc *service.ScheduleGeneratorService, exports *service.ExportService, jobs *service.ScheduleJobService) *ScheduleGeneratorHandler {
	h := &ScheduleGeneratorHandler{service: svc}
	if exports != nil {
		h.exports = exports
	}
	if jobs != nil {
		h.jobs = jobs
	}
	return h
}

// Generate godoc
// @Summary Generate a weekly schedule
// @Description Runs the greedy or genetic scheduler. With persist=false the result is returned as a proposal that can be saved later.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generate schedule payload"
// @Param persist query bool false "Store the result (default true)"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	persist, err := boolQuery(c, "persist", true)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.service.Generate(c.Request.Context(), req, service.GenerateOptions{Persist: persist, CreatedBy: currentUserID(c)})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	status := http.StatusOK
	if result.Persisted {
		status = http.StatusCreated
	}
	response.JSON(c, status, result, nil, middleware.ExtractMeta(c))
}

// SaveProposal godoc
// @Summary Store a previewed schedule
// @Tags Scheduler
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/proposals/{id} [post]
func (h *ScheduleGeneratorHandler) SaveProposal(c *gin.Context) {
	result, err := h.service.Save(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Validate godoc
// @Summary Check a schedule request without generating
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generate schedule payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/validate [post]
func (h *ScheduleGeneratorHandler) Validate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid validate payload"))
		return
	}
	report, err := h.service.Validate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Get godoc
// @Summary Get a stored schedule
// @Tags Scheduler
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleGeneratorHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Latest godoc
// @Summary Get the most recently generated schedule
// @Tags Scheduler
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/latest [get]
func (h *ScheduleGeneratorHandler) Latest(c *gin.Context) {
	result, err := h.service.Latest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// List godoc
// @Summary List stored schedules
// @Tags Scheduler
// @Produce json
// @Param algorithm query string false "greedy or genetic"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleGeneratorHandler) List(c *gin.Context) {
	var query dto.ScheduleListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Delete godoc
// @Summary Delete a stored schedule
// @Tags Scheduler
// @Param id path string true "Schedule ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id} [delete]
func (h *ScheduleGeneratorHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Download a stored schedule
// @Tags Scheduler
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Schedule ID"
// @Param format query string false "csv (default) or pdf"
// @Param view query string false "grid (default) or list"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id}/export [get]
func (h *ScheduleGeneratorHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "export is not configured"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	view := service.ExportView(c.DefaultQuery("view", string(service.ExportViewGrid)))
	out, err := h.exports.Export(c.Request.Context(), c.Param("id"), format, view)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, out.Filename, out.ContentType, out.Payload)
}

// SubmitJob godoc
// @Summary Queue a schedule generation
// @Description The result is stored like a synchronous generation; poll the job for its schedule id.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generate schedule payload"
// @Success 202 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /schedules/jobs [post]
func (h *ScheduleGeneratorHandler) SubmitJob(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "asynchronous generation is disabled"))
		return
	}
	var req dto.GenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	job, err := h.jobs.Submit(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job, fmt.Sprintf("%s/%s", c.FullPath(), job.ID))
}

// JobStatus godoc
// @Summary Poll a queued schedule generation
// @Tags Scheduler
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/jobs/{id} [get]
func (h *ScheduleGeneratorHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "asynchronous generation is disabled"))
		return
	}
	job, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

func boolQuery(c *gin.Context, key string, fallback bool) (bool, error) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a boolean", key))
	}
	return v, nil
}
