package alert

import (
	"context"
	"fmt"
	"sync/atomic"

	"rumen-monitor/internal/db"
	"rumen-monitor/internal/model"
)

// ConfigHolder is the single-writer-many-readers home of the current alert
// settings. Readers always see the latest committed value; writers replace
// the whole value, never mutate fields in place.
type ConfigHolder struct {
	store *db.Store
	v     atomic.Value // model.AlertSettings
}

// NewConfigHolder loads the persisted settings (seeding defaults on first
// start) and wraps them in an atomically-swapped holder.
func NewConfigHolder(ctx context.Context, store *db.Store) (*ConfigHolder, error) {
	settings, err := store.LoadSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load alert settings: %w", err)
	}
	h := &ConfigHolder{store: store}
	h.v.Store(settings)
	return h, nil
}

// Current returns the committed settings at the moment of use.
func (h *ConfigHolder) Current() model.AlertSettings {
	return h.v.Load().(model.AlertSettings)
}

// Replace persists the new settings and then swaps them in. The swap happens
// after the durable write so a restart never resurrects an older version than
// the one readers last observed.
func (h *ConfigHolder) Replace(ctx context.Context, settings model.AlertSettings) error {
	if settings.TemperatureMin >= settings.TemperatureMax {
		return fmt.Errorf("temperature_min %.1f must be below temperature_max %.1f",
			settings.TemperatureMin, settings.TemperatureMax)
	}
	if settings.PressureReliefThreshold <= 0 {
		return fmt.Errorf("pressure_relief_threshold must be positive")
	}
	settings.ID = 1
	if err := h.store.ReplaceSettings(ctx, settings); err != nil {
		return err
	}
	h.v.Store(settings)
	return nil
}
