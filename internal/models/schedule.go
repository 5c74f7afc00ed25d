package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScheduleAlgorithm names the assigner that produced a stored schedule.
type ScheduleAlgorithm string

const (
	ScheduleAlgorithmGreedy  ScheduleAlgorithm = "greedy"
	ScheduleAlgorithmGenetic ScheduleAlgorithm = "genetic"
)

// ScheduleRecord is one generated timetable kept in the schedules table.
type ScheduleRecord struct {
	ID                 string            `db:"id" json:"id"`
	Algorithm          ScheduleAlgorithm `db:"algorithm" json:"algorithm"`
	Fitness            int               `db:"fitness" json:"fitness"`
	Utilization        float64           `db:"utilization" json:"utilization"`
	UnassignedSessions int               `db:"unassigned_sessions" json:"unassigned_sessions"`
	Seed               int64             `db:"seed" json:"seed"`
	Fingerprint        string            `db:"fingerprint" json:"fingerprint"`
	CreatedBy          *string           `db:"created_by" json:"created_by,omitempty"`
	Request            types.JSONText    `db:"request" json:"request"`
	Result             types.JSONText    `db:"result" json:"result"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
}

// ScheduleSummary is the list projection of a record without its payloads.
type ScheduleSummary struct {
	ID                 string            `db:"id" json:"id"`
	Algorithm          ScheduleAlgorithm `db:"algorithm" json:"algorithm"`
	Fitness            int               `db:"fitness" json:"fitness"`
	Utilization        float64           `db:"utilization" json:"utilization"`
	UnassignedSessions int               `db:"unassigned_sessions" json:"unassigned_sessions"`
	Seed               int64             `db:"seed" json:"seed"`
	CreatedBy          *string           `db:"created_by" json:"created_by,omitempty"`
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
}

// ScheduleFilter captures list options for stored schedules.
type ScheduleFilter struct {
	Algorithm ScheduleAlgorithm
	Page      int
	PageSize  int
}
