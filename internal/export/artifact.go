package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"rumen-monitor/internal/model"
)

// WriteCSV writes one batch of readings to a CSV artifact.
// Columns: msg_id,assay_id,flask_id,observed_at,pressure_abs,temperature,
// pressure_norm,accum_rate,relief_count,event
func WriteCSV(path string, readings []model.Reading) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"msg_id", "assay_id", "flask_id", "observed_at",
		"pressure_abs", "temperature", "pressure_norm",
		"accum_rate", "relief_count", "event",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range readings {
		rec := []string{
			r.MessageID,
			r.AssayID,
			strconv.Itoa(r.StationID),
			r.ObservedAt.UTC().Format(time.RFC3339Nano),
			fmt.Sprintf("%g", r.PressureAbs),
			fmt.Sprintf("%g", r.Temperature),
			fmt.Sprintf("%g", r.PressureNorm),
			fmt.Sprintf("%g", r.AccumRate),
			strconv.Itoa(r.ReliefCount),
			r.Event,
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}
