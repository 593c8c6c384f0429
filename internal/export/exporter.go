// Package export periodically extracts not-yet-exported readings into CSV
// batch artifacts. Windows are contiguous and non-overlapping by
// construction: each tick exports [watermark, now) and advances the
// watermark to now, so a missed tick yields one wider catch-up window rather
// than a gap.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"rumen-monitor/internal/model"
)

// ReadingSource supplies persisted readings for a half-open time window.
type ReadingSource interface {
	ReadingsBetween(ctx context.Context, from, to time.Time) ([]model.Reading, error)
}

type Exporter struct {
	source   ReadingSource
	dir      string
	interval time.Duration
	logger   *zap.Logger

	mu        sync.Mutex
	watermark time.Time
}

// NewExporter initializes the watermark to now minus one interval, so the
// first tick exports a full window.
func NewExporter(source ReadingSource, dir string, interval time.Duration, logger *zap.Logger) (*Exporter, error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Exporter{
		source:    source,
		dir:       dir,
		interval:  interval,
		logger:    logger,
		watermark: time.Now().UTC().Add(-interval),
	}, nil
}

// Run ticks until ctx is cancelled.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RunOnce(ctx, time.Now().UTC())
		}
	}
}

// RunOnce exports the window [watermark, now) and advances the watermark to
// now regardless of whether the window held any readings; an empty window
// produces no artifact but still moves the bound.
func (e *Exporter) RunOnce(ctx context.Context, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	from, to := e.watermark, now
	if !to.After(from) {
		return
	}

	rows, err := e.source.ReadingsBetween(ctx, from, to)
	if err != nil {
		// watermark stays put; the next tick retries this window wider
		e.logger.Error("window read failed",
			zap.Time("from", from),
			zap.Time("to", to),
			zap.Error(err),
		)
		return
	}

	if len(rows) > 0 {
		path := e.artifactPath(from, to)
		if err := WriteCSV(path, rows); err != nil {
			e.logger.Error("export failed", zap.String("path", path), zap.Error(err))
			return
		}
		e.logger.Info("window exported",
			zap.String("path", path),
			zap.Int("readings", len(rows)),
			zap.Time("from", from),
			zap.Time("to", to),
		)
	}

	e.watermark = to
}

// Watermark returns the exclusive upper bound of already-exported data.
func (e *Exporter) Watermark() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.watermark
}

func (e *Exporter) artifactPath(from, to time.Time) string {
	const stamp = "20060102T150405Z"
	name := fmt.Sprintf("readings_%s_%s.csv", from.UTC().Format(stamp), to.UTC().Format(stamp))
	return filepath.Join(e.dir, name)
}
