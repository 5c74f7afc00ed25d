package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/engine"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// ExportFormat selects the rendered file type.
type ExportFormat string

// ExportView selects the table layout.
type ExportView string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"

	// ExportViewGrid renders one row per slot label and one column per day.
	ExportViewGrid ExportView = "grid"
	// ExportViewList renders one row per assignment.
	ExportViewList ExportView = "list"
)

type scheduleSource interface {
	Get(ctx context.Context, id string) (*dto.ScheduleResponse, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult is a rendered schedule ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders stored schedules as CSV or PDF timetables.
type ExportService struct {
	schedules scheduleSource
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(schedules scheduleSource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{schedules: schedules, csv: csv, pdf: pdf, logger: logger}
}

// Export loads schedule id and renders it.
func (s *ExportService) Export(ctx context.Context, id string, format ExportFormat, view ExportView) (*ExportResult, error) {
	schedule, err := s.schedules.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Render(schedule, format, view)
}

// Render converts an already loaded schedule.
func (s *ExportService) Render(schedule *dto.ScheduleResponse, format ExportFormat, view ExportView) (*ExportResult, error) {
	if schedule == nil || schedule.Result == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule has no result")
	}
	if view == "" {
		view = ExportViewGrid
	}

	var dataset export.Dataset
	switch view {
	case ExportViewGrid:
		dataset = GridDataset(schedule.Result)
	case ExportViewList:
		dataset = AssignmentDataset(schedule.Result)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export view %q", view))
	}

	var (
		payload     []byte
		contentType string
		err         error
	)
	switch format {
	case ExportFormatCSV, "":
		format = ExportFormatCSV
		contentType = "text/csv"
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		contentType = "application/pdf"
		payload, err = s.pdf.Render(dataset, scheduleTitle(schedule))
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}

	s.logger.Debug("schedule exported",
		zap.String("schedule_id", schedule.ID),
		zap.String("format", string(format)),
		zap.String("view", string(view)),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		Filename:    exportFilename(schedule, format, view),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

// GridDataset lays the timetable out with slot labels as rows and days as columns.
func GridDataset(result *engine.Result) export.Dataset {
	headers := []string{"Time"}
	for _, day := range result.Grid.Days {
		headers = append(headers, day.Day.String())
	}
	rows := make([]map[string]string, 0, len(result.Grid.Labels))
	for i, label := range result.Grid.Labels {
		row := map[string]string{"Time": label}
		for _, day := range result.Grid.Days {
			if i < len(day.Cells) {
				row[day.Day.String()] = describeCell(day.Cells[i])
			}
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows, Notes: resultNotes(result)}
}

// AssignmentDataset lists each scheduled session on its own row.
func AssignmentDataset(result *engine.Result) export.Dataset {
	headers := []string{"Day", "Start", "End", "Subject", "Faculty", "Room", "Special", "Preference"}
	rows := make([]map[string]string, 0, len(result.Assignments))
	for _, a := range result.Assignments {
		rows = append(rows, map[string]string{
			"Day":        a.Day.String(),
			"Start":      engine.FormatMinutes(a.Start),
			"End":        engine.FormatMinutes(a.End),
			"Subject":    a.Subject,
			"Faculty":    a.FacultyName,
			"Room":       a.RoomID,
			"Special":    yesNo(a.IsSpecial),
			"Preference": fmt.Sprintf("%d", a.PreferenceScore),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows, Notes: resultNotes(result)}
}

func describeCell(cell engine.Cell) string {
	switch cell.Kind {
	case engine.CellBreak:
		return "BREAK"
	case engine.CellCovered:
		return "(continued)"
	case engine.CellUnassigned:
		return "-"
	}
	parts := make([]string, 0, len(cell.Assignments))
	for _, a := range cell.Assignments {
		if a.Placeholder {
			parts = append(parts, engine.PlaceholderSubject)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s) @%s", a.Subject, a.FacultyName, a.RoomID))
	}
	return strings.Join(parts, "; ")
}

func resultNotes(result *engine.Result) []string {
	notes := []string{fmt.Sprintf(
		"Algorithm %s, seed %d, fitness %d, utilization %.2f%%, filled %.2f%%.",
		result.Algorithm, result.Seed, result.Fitness, result.UtilizationPercentage, result.FilledPercentage,
	)}
	for _, missing := range result.UnassignedSessions {
		notes = append(notes, fmt.Sprintf("Unassigned: %s session %d (%s)", missing.Subject, missing.Session, missing.Reason))
	}
	return notes
}

func scheduleTitle(schedule *dto.ScheduleResponse) string {
	if schedule.CreatedAt != nil {
		return fmt.Sprintf("Weekly Timetable %s", schedule.CreatedAt.UTC().Format("2006-01-02"))
	}
	return "Weekly Timetable"
}

func exportFilename(schedule *dto.ScheduleResponse, format ExportFormat, view ExportView) string {
	id := schedule.ID
	if id == "" {
		id = "preview"
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("timetable_%s_%s_%s.%s", id, view, time.Now().UTC().Format("20060102"), format)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
