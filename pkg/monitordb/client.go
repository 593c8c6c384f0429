// Package monitordb is a read-side client for a monitor database, intended
// for offline tooling (exports, stats) against a SQLite file the service
// produced.
package monitordb

import (
	"context"
	"encoding/json"
	"time"

	"rumen-monitor/internal/db"
	"rumen-monitor/internal/model"
)

// Client wraps the store for external consumers.
type Client struct {
	store *db.Store
}

// Open opens the SQLite database at path and runs migrations.
func Open(path string) (*Client, error) {
	store, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	return &Client{store: store}, nil
}

func (c *Client) Close() error { return c.store.Close() }

// ListReadings returns readings with observation time in [from, to).
func (c *Client) ListReadings(ctx context.Context, from, to time.Time) ([]model.Reading, error) {
	return c.store.ReadingsBetween(ctx, from, to)
}

// RecentAlerts returns up to limit alerts newest-first.
func (c *Client) RecentAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	return c.store.RecentAlerts(ctx, limit)
}

// SessionHistory returns up to limit capture sessions newest-first.
func (c *Client) SessionHistory(ctx context.Context, limit int) ([]model.CaptureSession, error) {
	return c.store.SessionHistory(ctx, limit)
}

// Stats aggregates row counts and recent activity for ops tooling.
type Stats struct {
	ReadingCount int64                  `json:"reading_count"`
	AlertCount   int                    `json:"alert_count"`
	Alerts       []model.Alert          `json:"alerts"`
	Sessions     []model.CaptureSession `json:"sessions"`
}

func (c *Client) Stats(ctx context.Context, limit int) (Stats, error) {
	readings, err := c.store.CountReadings(ctx)
	if err != nil {
		return Stats{}, err
	}
	alerts, err := c.store.RecentAlerts(ctx, limit)
	if err != nil {
		return Stats{}, err
	}
	sessions, err := c.store.SessionHistory(ctx, limit)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		ReadingCount: readings,
		AlertCount:   len(alerts),
		Alerts:       alerts,
		Sessions:     sessions,
	}, nil
}

// StatsJSON returns the aggregate as JSON.
func (c *Client) StatsJSON(ctx context.Context, limit int) ([]byte, error) {
	st, err := c.Stats(ctx, limit)
	if err != nil {
		return nil, err
	}
	return json.Marshal(st)
}
