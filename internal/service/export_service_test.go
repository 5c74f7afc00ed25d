package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/engine"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type scheduleSourceStub map[string]*dto.ScheduleResponse

func (s scheduleSourceStub) Get(_ context.Context, id string) (*dto.ScheduleResponse, error) {
	if schedule, ok := s[id]; ok {
		return schedule, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
}

func sampleStoredSchedule() *dto.ScheduleResponse {
	math := engine.Assignment{Subject: "Math", FacultyID: "f-ada", FacultyName: "Ada", Day: engine.Monday, Start: 540, End: 600, RoomID: "R101"}
	created := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	return &dto.ScheduleResponse{
		ID:        "sch-12345678-abcd",
		CreatedAt: &created,
		Persisted: true,
		Result: &engine.Result{
			Grid: engine.Grid{
				Labels: []string{"09:00-10:00", "12:00-13:00"},
				Days: []engine.DaySchedule{
					{Day: engine.Monday, Cells: []engine.Cell{
						{Label: "09:00-10:00", Kind: engine.CellAssigned, Assignments: []engine.Assignment{math}},
						{Label: "12:00-13:00", Kind: engine.CellBreak},
					}},
					{Day: engine.Tuesday, Cells: []engine.Cell{
						{Label: "09:00-10:00", Kind: engine.CellUnassigned},
						{Label: "12:00-13:00", Kind: engine.CellBreak},
					}},
				},
			},
			Assignments:        []engine.Assignment{math},
			UnassignedSessions: []engine.UnassignedSession{{Subject: "Math", Session: 2, Reason: "no feasible slot"}},
			Algorithm:          engine.AlgorithmGreedy,
			Seed:               9,
		},
	}
}

func readCSV(t *testing.T, payload []byte) [][]string {
	t.Helper()
	records, err := csv.NewReader(bytes.NewReader(payload)).ReadAll()
	require.NoError(t, err)
	return records
}

func TestExportServiceGridCSV(t *testing.T) {
	svc := NewExportService(scheduleSourceStub{"sch-1": sampleStoredSchedule()}, zap.NewNop(), nil, nil)

	out, err := svc.Export(context.Background(), "sch-1", ExportFormatCSV, ExportViewGrid)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", out.ContentType)
	assert.Contains(t, out.Filename, "timetable_sch-1234_grid_")

	records := readCSV(t, out.Payload)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Time", "MONDAY", "TUESDAY"}, records[0])
	assert.Equal(t, []string{"09:00-10:00", "Math (Ada) @R101", "-"}, records[1])
	assert.Equal(t, []string{"12:00-13:00", "BREAK", "BREAK"}, records[2])
}

func TestExportServiceListCSV(t *testing.T) {
	svc := NewExportService(scheduleSourceStub{}, zap.NewNop(), nil, nil)

	out, err := svc.Render(sampleStoredSchedule(), ExportFormatCSV, ExportViewList)
	require.NoError(t, err)
	records := readCSV(t, out.Payload)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"MONDAY", "09:00", "10:00", "Math", "Ada", "R101", "no", "0"}, records[1])
}

func TestExportServicePDF(t *testing.T) {
	svc := NewExportService(scheduleSourceStub{}, zap.NewNop(), nil, nil)

	out, err := svc.Render(sampleStoredSchedule(), ExportFormatPDF, ExportViewGrid)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, bytes.HasPrefix(out.Payload, []byte("%PDF")))
}

func TestExportServiceRejectsUnknownOptions(t *testing.T) {
	svc := NewExportService(scheduleSourceStub{}, zap.NewNop(), nil, nil)

	_, err := svc.Render(sampleStoredSchedule(), "xlsx", ExportViewGrid)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Render(sampleStoredSchedule(), ExportFormatCSV, "calendar")
	require.Error(t, err)

	_, err = svc.Export(context.Background(), "missing", ExportFormatCSV, ExportViewGrid)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGridDatasetNotesUnassigned(t *testing.T) {
	dataset := GridDataset(sampleStoredSchedule().Result)
	require.Len(t, dataset.Notes, 2)
	assert.Contains(t, dataset.Notes[1], "Math session 2")
}
