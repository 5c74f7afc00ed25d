package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const scheduleColumns = `id, algorithm, fitness, utilization, unassigned_sessions, seed, fingerprint, created_by, request, result, created_at`

const scheduleSummaryColumns = `id, algorithm, fitness, utilization, unassigned_sessions, seed, created_by, created_at`

// ScheduleRepository persists generated timetables in the schedules table.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create stores a generated schedule. Missing id and timestamps are filled in.
func (r *ScheduleRepository) Create(ctx context.Context, exec sqlx.ExtContext, record *models.ScheduleRecord) error {
	if record == nil {
		return fmt.Errorf("schedule payload is nil")
	}
	if record.Algorithm == "" {
		return fmt.Errorf("algorithm is required")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if len(record.Request) == 0 {
		record.Request = types.JSONText(`{}`)
	}
	if len(record.Result) == 0 {
		record.Result = types.JSONText(`{}`)
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO schedules (id, algorithm, fitness, utilization, unassigned_sessions, seed, fingerprint, created_by, request, result, created_at)
VALUES (:id, :algorithm, :fitness, :utilization, :unassigned_sessions, :seed, :fingerprint, :created_by, :request, :result, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, record); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// FindByID loads a schedule with its payloads.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleRecord, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	var record models.ScheduleRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// Latest returns the most recently generated schedule.
func (r *ScheduleRepository) Latest(ctx context.Context) (*models.ScheduleRecord, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at DESC LIMIT 1`
	var record models.ScheduleRecord
	if err := r.db.GetContext(ctx, &record, query); err != nil {
		return nil, err
	}
	return &record, nil
}

// List returns schedule summaries newest first together with the total count.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleSummary, int, error) {
	base := "FROM schedules"
	var args []interface{}
	if filter.Algorithm != "" {
		base += " WHERE algorithm = $1"
		args = append(args, filter.Algorithm)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", scheduleSummaryColumns, base, size, offset)
	var summaries []models.ScheduleSummary
	if err := r.db.SelectContext(ctx, &summaries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return summaries, total, nil
}

// Delete removes a stored schedule.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM schedules WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("schedule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
