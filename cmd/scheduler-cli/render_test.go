package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/engine"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

func TestLoadRequestYAML(t *testing.T) {
	req, err := loadRequest(filepath.Join("testdata", "week.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "09:00", req.CollegeTime.Start)
	assert.Equal(t, []string{"R101", "R102"}, req.Rooms)
	require.Len(t, req.Subjects, 2)
	assert.Equal(t, 120, req.Subjects[1].DurationMinutes)
	assert.True(t, req.Subjects[1].IsSpecial)
	assert.Equal(t, 5, req.Subjects[0].EligibleFaculty[0].PreferredSlots[0].Priority)
	assert.Equal(t, int64(7), req.Seed)
}

func TestLoadRequestJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "req.json")
	body := `{"collegeTime":{"start":"08:00","end":"10:00"},"rooms":["A"],"useGenetic":true,
"subjects":[{"name":"Art","durationMinutes":60,"sessionsPerWeek":1,"eligibleFaculty":[{"id":"f1"}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	req, err := loadRequest(path)
	require.NoError(t, err)
	assert.True(t, req.UseGenetic)
	assert.Equal(t, "f1", req.Subjects[0].EligibleFaculty[0].ID)
}

func TestLoadRequestErrors(t *testing.T) {
	_, err := loadRequest("")
	require.Error(t, err)

	_, err = loadRequest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("subjects: [\n"), 0o600))
	_, err = loadRequest(bad)
	require.Error(t, err)
}

func generateSample(t *testing.T) *dto.ScheduleResponse {
	t.Helper()
	req, err := loadRequest(filepath.Join("testdata", "week.yaml"))
	require.NoError(t, err)
	svc := service.NewScheduleGeneratorService(engine.New(engine.Options{}), nil, nil, nil, nil, nil, service.ScheduleGeneratorConfig{})
	resp, err := svc.Generate(context.Background(), *req, service.GenerateOptions{})
	require.NoError(t, err)
	return resp
}

func TestPrintGridAndSummary(t *testing.T) {
	resp := generateSample(t)

	var out bytes.Buffer
	printGrid(&out, resp.Result)
	printSummary(&out, resp, 15*time.Millisecond)

	text := out.String()
	assert.Contains(t, text, "Time")
	assert.Contains(t, text, "MONDAY")
	assert.Contains(t, text, "BREAK")
	assert.Contains(t, text, "Mathematics (Ada Lovelace)")
	assert.Contains(t, text, "Algorithm:    greedy (seed 7)")
}

func TestPrintSlots(t *testing.T) {
	req, err := loadRequest(filepath.Join("testdata", "week.yaml"))
	require.NoError(t, err)
	engineReq, err := req.ToEngine(false)
	require.NoError(t, err)
	universe, err := engine.Slots(engineReq)
	require.NoError(t, err)

	var out bytes.Buffer
	printSlots(&out, universe)

	rows := make(map[string]string)
	for _, line := range strings.Split(out.String(), "\n") {
		if fields := strings.Fields(line); len(fields) > 0 {
			rows[fields[0]] = line
		}
	}
	require.Contains(t, rows, "MONDAY")
	require.Contains(t, rows, "WEDNESDAY")
	assert.Contains(t, rows["MONDAY"], "09:00-10:00")
	assert.Contains(t, rows["MONDAY"], "12:00-13:00")
	assert.NotContains(t, rows["WEDNESDAY"], "12:00-13:00")
	assert.Contains(t, rows["WEDNESDAY"], "13:00-14:00")
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &dto.ValidationReport{
		Errors: []dto.ValidationIssue{{Field: "rooms", Message: "is required"}},
	})
	assert.Contains(t, out.String(), "Request is invalid")
	assert.Contains(t, out.String(), "error: rooms: is required")
}

func TestWriteResult(t *testing.T) {
	resp := generateSample(t)
	exports := service.NewExportService(nil, nil, export.NewCSVExporter(), export.NewPDFExporter())
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, writeResult(exports, resp, jsonPath, service.ExportViewGrid))
	raw, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"algorithm": "greedy"`)

	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, writeResult(exports, resp, csvPath, service.ExportViewList))
	raw, err = os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Day,Start,End,Subject")

	require.Error(t, writeResult(exports, resp, filepath.Join(dir, "out.txt"), service.ExportViewGrid))
}
