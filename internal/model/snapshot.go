package model

import "time"

// Station health, derived from the most recent evaluation.
const (
	StationOK       = "ok"
	StationWarning  = "warning"
	StationCritical = "critical"
)

// StationState is the latest-known in-memory snapshot for one station. It is
// owned by the ingestion pipeline, overwritten in place on each accepted
// reading, and never persisted.
type StationState struct {
	StationID       int       `json:"station_id"`
	AssayID         string    `json:"assay_id"`
	LastPressure    float64   `json:"last_pressure"`
	LastTemperature float64   `json:"last_temperature"`
	LastObservedAt  time.Time `json:"last_observed_at"`
	ReliefCount     int       `json:"relief_count"`
	Status          string    `json:"status"`
}
