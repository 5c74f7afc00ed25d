package models

import "time"

// SystemMetrics is a point-in-time summary of the service instrumentation.
type SystemMetrics struct {
	CacheHitRatio             float64   `json:"cache_hit_ratio"`
	CacheHits                 uint64    `json:"cache_hits"`
	CacheMisses               uint64    `json:"cache_misses"`
	RequestsTotal             uint64    `json:"requests_total"`
	AverageRequestDurationMs  float64   `json:"average_request_duration_ms"`
	DBQueryCount              uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs  float64   `json:"average_db_query_duration_ms"`
	SchedulerRuns             uint64    `json:"scheduler_runs"`
	SchedulerFailures         uint64    `json:"scheduler_failures"`
	AverageSchedulerRunMs     float64   `json:"average_scheduler_run_ms"`
	LastFitness               int       `json:"last_fitness"`
	LastUtilizationPercentage float64   `json:"last_utilization_percentage"`
	Goroutines                int       `json:"goroutines"`
	GeneratedAt               time.Time `json:"generated_at"`
}
