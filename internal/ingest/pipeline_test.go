package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rumen-monitor/internal/alert"
	"rumen-monitor/internal/db"
	"rumen-monitor/internal/model"
)

// stubGate is a fixed capture gate.
type stubGate struct{ enabled bool }

func (g *stubGate) Enabled() bool { return g.enabled }

// stubSink records every fan-out event; it stands in for the websocket hub
// and the outbound broker publisher.
type stubSink struct {
	mu        sync.Mutex
	telemetry []model.Reading
	alerts    []model.Alert
	published []model.Alert
}

func (s *stubSink) BroadcastTelemetry(r model.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.telemetry = append(s.telemetry, r)
}

func (s *stubSink) BroadcastAlert(a model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
}

func (s *stubSink) PublishAlert(a model.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, a)
	return nil
}

func newTestPipeline(t *testing.T, captureEnabled bool) (*Pipeline, *db.Store, *stubSink) {
	t.Helper()
	ctx := context.Background()

	store, err := db.Open(filepath.Join(t.TempDir(), "pipeline_test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	holder, err := alert.NewConfigHolder(ctx, store)
	require.NoError(t, err)

	sink := &stubSink{}
	logger := zap.NewNop()
	notifier := alert.NewNotifier(store, sink, sink, logger)
	p := NewPipeline(store, &stubGate{enabled: captureEnabled}, holder, notifier, sink, logger)
	return p, store, sink
}

func telemetryPayload(msgID string, pressure, temperature float64) []byte {
	return []byte(fmt.Sprintf(
		`{"msg_id":%q,"assay_id":"X","flask_id":1,"ts":"2024-01-01T00:00:00Z","P_bar_abs":%g,"T_C":%g}`,
		msgID, pressure, temperature,
	))
}

const topic = "rumen/X/1/telemetry"

func TestPipelineEndToEnd(t *testing.T) {
	// relief threshold 1.5, capture enabled, P=1.6: one persisted reading,
	// one warning alert, one telemetry broadcast, one new_alert broadcast
	ctx := context.Background()
	p, store, sink := newTestPipeline(t, true)

	p.Handle(ctx, topic, []byte(
		`{"msg_id":"a","assay_id":"X","flask_id":1,"ts":"2024-01-01T00:00:00Z","P_bar_abs":1.6,"T_C":39.0}`,
	))

	n, err := store.CountReadings(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	alerts, err := store.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.KindHighPressure, alerts[0].Kind)
	assert.Equal(t, model.SeverityWarning, alerts[0].Severity)

	require.Len(t, sink.telemetry, 1)
	assert.Equal(t, "a", sink.telemetry[0].MessageID)
	require.Len(t, sink.alerts, 1)
	assert.Equal(t, model.KindHighPressure, sink.alerts[0].Kind)
	require.Len(t, sink.published, 1)
}

func TestPipelineIdempotence(t *testing.T) {
	ctx := context.Background()
	p, store, sink := newTestPipeline(t, true)

	payload := telemetryPayload("dup", 1.6, 39.0)
	p.Handle(ctx, topic, payload)
	p.Handle(ctx, topic, payload)

	n, err := store.CountReadings(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "second ingestion must not create a second row")

	alerts, err := store.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, alerts, 1, "second ingestion must not re-fire alerts")

	assert.Len(t, sink.telemetry, 1, "duplicates are invisible to subscribers")
	assert.Len(t, sink.alerts, 1)
}

func TestPipelineCaptureGating(t *testing.T) {
	ctx := context.Background()
	p, store, sink := newTestPipeline(t, false)

	const n = 5
	for i := 0; i < n; i++ {
		p.Handle(ctx, topic, telemetryPayload(fmt.Sprintf("m%d", i), 1.1, 39.0))
	}

	count, err := store.CountReadings(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count, "disabled capture persists nothing")

	assert.Len(t, sink.telemetry, n, "all readings still broadcast")

	stations := p.Stations()
	require.Len(t, stations, 1)
	assert.Equal(t, 1, stations[0].StationID)
	assert.Equal(t, 1.1, stations[0].LastPressure)
	assert.Equal(t, model.StationOK, stations[0].Status)
}

func TestPipelineAlertsWhileNotCapturing(t *testing.T) {
	// observation continues while recording is off
	ctx := context.Background()
	p, store, sink := newTestPipeline(t, false)

	p.Handle(ctx, topic, telemetryPayload("hot", 1.9, 39.0))

	count, err := store.CountReadings(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	alerts, err := store.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, model.SeverityCritical, alerts[0].Severity)
	assert.Len(t, sink.alerts, 1)
}

func TestPipelineRejectedReadingIsInvisible(t *testing.T) {
	ctx := context.Background()
	p, store, sink := newTestPipeline(t, true)

	// temperature far outside the tolerance band
	p.Handle(ctx, topic, telemetryPayload("bad", 1.1, 60.0))

	count, err := store.CountReadings(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	alerts, err := store.RecentAlerts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.Empty(t, sink.telemetry)
	assert.Empty(t, sink.alerts)
	assert.Empty(t, p.Stations())
}

func TestPipelineUnparseableIsDropped(t *testing.T) {
	ctx := context.Background()
	p, store, sink := newTestPipeline(t, true)

	p.Handle(ctx, topic, []byte("garbage"))

	count, err := store.CountReadings(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
	assert.Empty(t, sink.telemetry)
}

func TestPipelineStationStateTracksLatest(t *testing.T) {
	ctx := context.Background()
	p, _, _ := newTestPipeline(t, true)

	p.Handle(ctx, topic, telemetryPayload("s1", 1.0, 39.0))
	p.Handle(ctx, topic, telemetryPayload("s2", 1.2, 39.5))
	p.Handle(ctx, "rumen/X/2/telemetry", []byte(
		`{"msg_id":"s3","assay_id":"X","flask_id":2,"ts":"2024-01-01T01:00:00Z","P_bar_abs":1.7,"T_C":39.0}`,
	))

	stations := p.Stations()
	require.Len(t, stations, 2)
	assert.Equal(t, 1.2, stations[0].LastPressure)
	assert.Equal(t, model.StationOK, stations[0].Status)
	assert.Equal(t, 2, stations[1].StationID)
	assert.Equal(t, model.StationWarning, stations[1].Status)
}

func TestParseTelemetryTopic(t *testing.T) {
	assay, station, ok := ParseTelemetryTopic("rumen/SAQ0505/3/telemetry")
	require.True(t, ok)
	assert.Equal(t, "SAQ0505", assay)
	assert.Equal(t, 3, station)

	_, _, ok = ParseTelemetryTopic("rumen/SAQ0505/3/alert")
	assert.False(t, ok)
	_, _, ok = ParseTelemetryTopic("rumen/SAQ0505/notanumber/telemetry")
	assert.False(t, ok)
	_, _, ok = ParseTelemetryTopic("too/short")
	assert.False(t, ok)
}
