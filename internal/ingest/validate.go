package ingest

import (
	"fmt"
	"math"

	"rumen-monitor/internal/model"
)

// Hard plausibility bounds, distinct from the softer configurable alerting
// thresholds. A sealed flask physically cannot leave this envelope; values
// outside it are sensor faults, not process conditions.
const (
	PressureMinValid = 0.5 // bar absolute
	PressureMaxValid = 2.0 // bar absolute

	// TemperatureTolerance widens the configured alerting band for
	// validation so readings that should fire temperature_extreme alerts
	// still pass the plausibility gate.
	TemperatureTolerance = 5.0 // °C
)

// Rejection reasons.
const (
	ReasonMissingField = "missing_field"
	ReasonOutOfRange   = "out_of_range"
)

// RejectError names the field that failed validation and why.
type RejectError struct {
	Field  string
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("reading rejected: %s %s", e.Field, e.Reason)
}

func missing(field string) error {
	return &RejectError{Field: field, Reason: ReasonMissingField}
}

func outOfRange(field string) error {
	return &RejectError{Field: field, Reason: ReasonOutOfRange}
}

// Validate enforces required fields and physically-plausible ranges. Rejected
// readings are dropped by the caller and never reach persistence, alerting or
// broadcast.
func Validate(r model.Reading, cfg model.AlertSettings) error {
	if r.MessageID == "" {
		return missing("msg_id")
	}
	if r.AssayID == "" {
		return missing("assay_id")
	}
	if r.StationID <= 0 {
		return missing("flask_id")
	}
	if r.ObservedAt.IsZero() {
		return missing("ts")
	}
	if math.IsNaN(r.PressureAbs) {
		return missing("P_bar_abs")
	}
	if math.IsNaN(r.Temperature) {
		return missing("T_C")
	}

	if r.PressureAbs < PressureMinValid || r.PressureAbs > PressureMaxValid {
		return outOfRange("P_bar_abs")
	}

	lo := cfg.TemperatureMin - TemperatureTolerance
	hi := cfg.TemperatureMax + TemperatureTolerance
	if r.Temperature < lo || r.Temperature > hi {
		return outOfRange("T_C")
	}

	return nil
}
