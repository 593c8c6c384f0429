package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"rumen-monitor/internal/alert"
	"rumen-monitor/internal/db"
	"rumen-monitor/internal/model"
)

// CaptureGate answers the only question the pipeline asks the session
// controller: are we recording right now.
type CaptureGate interface {
	Enabled() bool
}

// EventSink receives accepted readings for live fan-out.
type EventSink interface {
	BroadcastTelemetry(model.Reading)
}

// Pipeline drives codec → validator → capture gate → persistence → alert
// evaluation → broadcast for every inbound message. All per-message failures
// are local: a malformed, duplicate or unpersistable message never affects
// the next one.
//
// Pipeline also owns the per-station state map. It is the single writer;
// the admin API and the hub snapshot read through Stations.
type Pipeline struct {
	store    *db.Store
	capture  CaptureGate
	config   *alert.ConfigHolder
	notifier *alert.Notifier
	sink     EventSink
	logger   *zap.Logger

	mu       sync.RWMutex
	stations map[int]*model.StationState
}

func NewPipeline(
	store *db.Store,
	capture CaptureGate,
	config *alert.ConfigHolder,
	notifier *alert.Notifier,
	sink EventSink,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		store:    store,
		capture:  capture,
		config:   config,
		notifier: notifier,
		sink:     sink,
		logger:   logger,
		stations: make(map[int]*model.StationState),
	}
}

// Handle processes one inbound telemetry message to completion.
func (p *Pipeline) Handle(ctx context.Context, topic string, payload []byte) {
	r, err := Normalize(payload)
	if err != nil {
		p.logger.Warn("dropping unparseable message",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}

	cfg := p.config.Current()

	if err := Validate(r, cfg); err != nil {
		var rej *RejectError
		if errors.As(err, &rej) {
			p.logger.Warn("rejecting reading",
				zap.String("msg_id", r.MessageID),
				zap.String("field", rej.Field),
				zap.String("reason", rej.Reason),
			)
		} else {
			p.logger.Warn("rejecting reading", zap.String("msg_id", r.MessageID), zap.Error(err))
		}
		return
	}

	if p.capture.Enabled() {
		switch err := p.store.SaveReading(ctx, &r); {
		case errors.Is(err, db.ErrDuplicate):
			// success no-op: no second row, no re-fired alerts, no events
			p.logger.Debug("duplicate message", zap.String("msg_id", r.MessageID))
			return
		case err != nil:
			// storage outage: skip persistence but keep live observers fed
			p.logger.Error("reading not persisted",
				zap.String("msg_id", r.MessageID),
				zap.Error(err),
			)
		}
	}

	alerts := alert.Evaluate(r, cfg)
	p.updateStation(r, alerts)

	if p.sink != nil {
		p.sink.BroadcastTelemetry(r)
	}
	for i := range alerts {
		if err := p.notifier.Raise(ctx, &alerts[i]); err != nil {
			p.logger.Error("alert not persisted",
				zap.String("kind", alerts[i].Kind),
				zap.Int("station_id", alerts[i].StationID),
				zap.Error(err),
			)
		}
	}
}

func (p *Pipeline) updateStation(r model.Reading, alerts []model.Alert) {
	status := model.StationOK
	for _, a := range alerts {
		switch a.Severity {
		case model.SeverityCritical:
			status = model.StationCritical
		case model.SeverityWarning:
			if status != model.StationCritical {
				status = model.StationWarning
			}
		}
	}

	p.mu.Lock()
	p.stations[r.StationID] = &model.StationState{
		StationID:       r.StationID,
		AssayID:         r.AssayID,
		LastPressure:    r.PressureAbs,
		LastTemperature: r.Temperature,
		LastObservedAt:  r.ObservedAt,
		ReliefCount:     r.ReliefCount,
		Status:          status,
	}
	p.mu.Unlock()
}

// Stations returns a copy of the current per-station snapshots ordered by
// station id.
func (p *Pipeline) Stations() []model.StationState {
	p.mu.RLock()
	out := make([]model.StationState, 0, len(p.stations))
	for _, st := range p.stations {
		out = append(out, *st)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StationID < out[j].StationID })
	return out
}
