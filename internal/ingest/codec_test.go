package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rumen-monitor/internal/model"
)

func TestNormalizeCanonicalPayload(t *testing.T) {
	payload := []byte(`{
		"schema_version": 1,
		"msg_id": "msg_t001_f2",
		"assay_id": "SAQ0505",
		"flask_id": 2,
		"ts": "2024-01-01T00:15:00Z",
		"P_bar_abs": 1.12,
		"T_C": 39.2,
		"P_bar_std": 1.04,
		"accum_bar_per_h": 0.08,
		"relief_count": 3,
		"event": "relief"
	}`)

	r, err := Normalize(payload)
	require.NoError(t, err)

	assert.Equal(t, "msg_t001_f2", r.MessageID)
	assert.Equal(t, "SAQ0505", r.AssayID)
	assert.Equal(t, 2, r.StationID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC), r.ObservedAt.UTC())
	assert.Equal(t, 1.12, r.PressureAbs)
	assert.Equal(t, 39.2, r.Temperature)
	assert.Equal(t, 1.04, r.PressureNorm)
	assert.Equal(t, 0.08, r.AccumRate)
	assert.Equal(t, 3, r.ReliefCount)
	assert.Equal(t, model.EventRelief, r.Event)
}

func TestNormalizeAliases(t *testing.T) {
	payload := []byte(`{
		"msg_id": "m1",
		"assay_id": "X",
		"station_id": 4,
		"timestamp": "2024-01-01T00:00:00Z",
		"pressure_bar": 1.0,
		"temperature": 38.5
	}`)

	r, err := Normalize(payload)
	require.NoError(t, err)
	assert.Equal(t, 4, r.StationID)
	assert.Equal(t, 1.0, r.PressureAbs)
	assert.Equal(t, 38.5, r.Temperature)
	assert.False(t, r.ObservedAt.IsZero())
}

func TestNormalizeAliasPriority(t *testing.T) {
	// canonical key wins over every alias
	payload := []byte(`{
		"msg_id": "m1",
		"flask_id": 1,
		"station_id": 9,
		"T_C": 39.0,
		"temp_C": 10.0,
		"temperature": 20.0,
		"P_bar_abs": 1.2,
		"pressure_bar": 0.6
	}`)

	r, err := Normalize(payload)
	require.NoError(t, err)
	assert.Equal(t, 1, r.StationID)
	assert.Equal(t, 39.0, r.Temperature)
	assert.Equal(t, 1.2, r.PressureAbs)
}

func TestNormalizeDefaults(t *testing.T) {
	payload := []byte(`{"msg_id": "m1", "assay_id": "X", "flask_id": 1, "ts": "2024-01-01T00:00:00Z", "P_bar_abs": 1.0, "T_C": 39.0}`)

	r, err := Normalize(payload)
	require.NoError(t, err)
	assert.Equal(t, 0, r.ReliefCount)
	assert.Equal(t, model.EventNone, r.Event)
	assert.Zero(t, r.PressureNorm)
	assert.Zero(t, r.AccumRate)
}

func TestNormalizeNullEvent(t *testing.T) {
	payload := []byte(`{"msg_id": "m1", "flask_id": 1, "event": null}`)

	r, err := Normalize(payload)
	require.NoError(t, err)
	assert.Equal(t, model.EventNone, r.Event)
}

func TestNormalizeMissingNumericsAreNaN(t *testing.T) {
	payload := []byte(`{"msg_id": "m1", "assay_id": "X", "flask_id": 1}`)

	r, err := Normalize(payload)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(r.PressureAbs))
	assert.True(t, math.IsNaN(r.Temperature))
	assert.True(t, r.ObservedAt.IsZero())
}

func TestNormalizeUnixTimestamp(t *testing.T) {
	payload := []byte(`{"msg_id": "m1", "flask_id": 1, "ts": "1704067200"}`)

	r, err := Normalize(payload)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.ObservedAt)
}

func TestNormalizeUnparseable(t *testing.T) {
	_, err := Normalize([]byte("not json at all"))
	require.Error(t, err)

	var codecErr *CodecError
	assert.ErrorAs(t, err, &codecErr)
}
