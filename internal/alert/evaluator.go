package alert

import (
	"fmt"

	"rumen-monitor/internal/model"
)

// PressureHardCeiling escalates a high_pressure alert to critical. It is a
// compile-time constant, not part of AlertSettings: the relief valve opens at
// the configurable threshold, but a flask approaching 1.8 bar is a safety
// problem no operator should be able to tune away.
const PressureHardCeiling = 1.8 // bar absolute

// Evaluate inspects one reading against the current settings and returns
// zero or more alerts. Rules are independent; each only appends to the
// result, so evaluation order does not affect the outcome. Comparisons are
// strict (>) to match the documented thresholds exactly.
func Evaluate(r model.Reading, cfg model.AlertSettings) []model.Alert {
	var alerts []model.Alert

	if r.PressureAbs > cfg.PressureReliefThreshold {
		severity := model.SeverityWarning
		if r.PressureAbs > PressureHardCeiling {
			severity = model.SeverityCritical
		}
		alerts = append(alerts, model.Alert{
			StationID: r.StationID,
			AssayID:   r.AssayID,
			Kind:      model.KindHighPressure,
			Severity:  severity,
			Message: fmt.Sprintf("flask %d pressure %.3f bar above relief threshold %.3f bar",
				r.StationID, r.PressureAbs, cfg.PressureReliefThreshold),
		})
	}

	if r.Temperature < cfg.TemperatureMin || r.Temperature > cfg.TemperatureMax {
		alerts = append(alerts, model.Alert{
			StationID: r.StationID,
			AssayID:   r.AssayID,
			Kind:      model.KindTemperatureExtreme,
			Severity:  model.SeverityWarning,
			Message: fmt.Sprintf("flask %d temperature %.1f °C outside [%.1f, %.1f]",
				r.StationID, r.Temperature, cfg.TemperatureMin, cfg.TemperatureMax),
		})
	}

	if r.Event == model.EventRelief {
		alerts = append(alerts, model.Alert{
			StationID: r.StationID,
			AssayID:   r.AssayID,
			Kind:      model.KindPressureRelief,
			Severity:  model.SeverityInfo,
			Message: fmt.Sprintf("flask %d relief valve opened at %.3f bar (count %d)",
				r.StationID, r.PressureAbs, r.ReliefCount),
		})
	}

	return alerts
}
