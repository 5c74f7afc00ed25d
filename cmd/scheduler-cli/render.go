package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/engine"
	"github.com/noah-isme/sma-timetable-api/internal/service"
)

// loadRequest reads a YAML or JSON request. JSON is valid YAML, so one
// decoder serves both.
func loadRequest(path string) (*dto.GenerateScheduleRequest, error) {
	if path == "" {
		return nil, fmt.Errorf("a request file is required (-f)")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	var req dto.GenerateScheduleRequest
	if err := yaml.Unmarshal(raw, &req); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &req, nil
}

func printGrid(w io.Writer, result *engine.Result) {
	data := service.GridDataset(result)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(data.Headers, "\t"))
	for _, row := range data.Rows {
		cols := make([]string, len(data.Headers))
		for i, h := range data.Headers {
			cols[i] = row[h]
		}
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	_ = tw.Flush()
}

func printSummary(w io.Writer, resp *dto.ScheduleResponse, elapsed time.Duration) {
	r := resp.Result
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Algorithm:    %s (seed %d)\n", r.Algorithm, r.Seed)
	fmt.Fprintf(w, "Fitness:      %d (unmet %d, conflicts %d)\n", r.Fitness, r.Score.Unmet, r.Score.Conflicts)
	fmt.Fprintf(w, "Assignments:  %d\n", len(r.Assignments))
	fmt.Fprintf(w, "Utilization:  %.2f%% (filled %.2f%%)\n", r.UtilizationPercentage, r.FilledPercentage)
	fmt.Fprintf(w, "Preference:   %.2f average\n", r.AveragePreference)
	fmt.Fprintf(w, "Fill passes:  best-fit %d, any-fit %d, placeholders %d\n", r.Fill.BestFit, r.Fill.AnyFit, r.Fill.Placeholders)
	fmt.Fprintf(w, "Elapsed:      %s\n", elapsed.Round(time.Millisecond))

	if len(r.UnassignedSessions) > 0 {
		fmt.Fprintf(w, "\nUnassigned sessions (%d):\n", len(r.UnassignedSessions))
		for _, s := range r.UnassignedSessions {
			fmt.Fprintf(w, "  - %s #%d: %s\n", s.Subject, s.Session, s.Reason)
		}
	}
	if len(r.UnassignedSlots) > 0 {
		fmt.Fprintf(w, "\nEmpty slots: %d\n", len(r.UnassignedSlots))
	}
	for _, warning := range resp.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}

func printReport(w io.Writer, report *dto.ValidationReport) {
	if report.Valid {
		fmt.Fprintln(w, "Request is valid")
		fmt.Fprintf(w, "Slots:     %s\n", strings.Join(report.SlotLabels, ", "))
		fmt.Fprintf(w, "Capacity:  %d cells for %d sessions\n", report.AvailableCells, report.RequiredSessions)
	} else {
		fmt.Fprintln(w, "Request is invalid")
	}
	for _, issue := range report.Errors {
		fmt.Fprintf(w, "  error: %s\n", describeIssue(issue))
	}
	for _, issue := range report.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", describeIssue(issue))
	}
}

func describeIssue(issue dto.ValidationIssue) string {
	if issue.Field == "" {
		return issue.Message
	}
	return issue.Field + ": " + issue.Message
}

func printSlots(w io.Writer, universe *engine.Universe) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for d, day := range universe.Days {
		labels := make([]string, 0, len(universe.Labels))
		for l, label := range universe.Labels {
			if universe.Blocked(d, l) {
				continue
			}
			labels = append(labels, label.Label())
		}
		fmt.Fprintf(tw, "%s\t%s\n", day, strings.Join(labels, " "))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d labels, %d bookable cells\n", len(universe.Labels), universe.Available())
}

func writeResult(exports *service.ExportService, resp *dto.ScheduleResponse, path string, view service.ExportView) error {
	var payload []byte
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		encoded, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		payload = append(encoded, '\n')
	case ".csv", ".pdf":
		out, err := exports.Render(resp, service.ExportFormat(strings.TrimPrefix(ext, ".")), view)
		if err != nil {
			return err
		}
		payload = out.Payload
	default:
		return fmt.Errorf("unsupported output extension %q, use .json, .csv or .pdf", ext)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
