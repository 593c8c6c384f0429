package ingest

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"rumen-monitor/internal/model"
)

// CodecError marks a payload that is not parseable as structured data.
// Missing fields are not a codec concern; they surface to the validator as
// NaN / zero values instead.
type CodecError struct {
	cause error
}

func (e *CodecError) Error() string { return "codec: " + e.cause.Error() }
func (e *CodecError) Unwrap() error { return e.cause }

// rawReading accepts every field spelling the fleet has ever published.
// Aliases exist because firmware revisions renamed keys without bumping the
// schema version.
type rawReading struct {
	SchemaVersion int    `json:"schema_version"`
	MsgID         string `json:"msg_id"`
	AssayID       string `json:"assay_id"`

	// station: flask_id > station_id
	FlaskID   *int `json:"flask_id"`
	StationID *int `json:"station_id"`

	// observation time: ts > timestamp
	TS        string `json:"ts"`
	Timestamp string `json:"timestamp"`

	// absolute pressure: P_bar_abs > pressure_bar
	PBarAbs     *float64 `json:"P_bar_abs"`
	PressureBar *float64 `json:"pressure_bar"`

	// temperature: T_C > temp_C > temperature
	TC          *float64 `json:"T_C"`
	TempC       *float64 `json:"temp_C"`
	Temperature *float64 `json:"temperature"`

	PBarStd      *float64 `json:"P_bar_std"`
	AccumBarPerH *float64 `json:"accum_bar_per_h"`
	ReliefCount  *int     `json:"relief_count"`
	Event        *string  `json:"event"`
}

// Normalize parses an inbound telemetry payload into one canonical Reading.
// Aliases resolve in the fixed priority order documented on rawReading.
// Absent required numerics come out as NaN (zero time, zero station) so the
// validator can name the missing field; optional fields get safe defaults:
// relief_count 0, event "none".
func Normalize(payload []byte) (model.Reading, error) {
	var raw rawReading
	if err := json.Unmarshal(payload, &raw); err != nil {
		return model.Reading{}, &CodecError{cause: err}
	}

	r := model.Reading{
		MessageID:   raw.MsgID,
		AssayID:     raw.AssayID,
		StationID:   firstInt(0, raw.FlaskID, raw.StationID),
		PressureAbs: firstFloat(raw.PBarAbs, raw.PressureBar),
		Temperature: firstFloat(raw.TC, raw.TempC, raw.Temperature),
		ReliefCount: firstInt(0, raw.ReliefCount),
		Event:       model.EventNone,
	}

	if ts := firstString(raw.TS, raw.Timestamp); ts != "" {
		if t, err := parseTime(ts); err == nil {
			r.ObservedAt = t
		}
	}

	if raw.PBarStd != nil {
		r.PressureNorm = *raw.PBarStd
	}
	if raw.AccumBarPerH != nil {
		r.AccumRate = *raw.AccumBarPerH
	}
	if raw.Event != nil && *raw.Event != "" {
		r.Event = *raw.Event
	}

	return r, nil
}

// parseTime supports RFC3339 or a Unix timestamp in seconds.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

func firstFloat(vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return math.NaN()
}

func firstInt(def int, vals ...*int) int {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return def
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
