package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"rumen-monitor/internal/model"
)

func recvEnvelope(t *testing.T, ch chan []byte) Envelope {
	t.Helper()
	select {
	case msg := <-ch:
		var env Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("invalid envelope: %v", err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for envelope")
		return Envelope{}
	}
}

func TestHubDeliversInitialStateThenEvents(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.SetSnapshot(func() ([]model.StationState, []model.Alert) {
		return []model.StationState{{StationID: 1, Status: model.StationOK}},
			[]model.Alert{{ID: 7, Kind: model.KindHighPressure}}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{hub: hub, send: make(chan []byte, sendQueue), remote: "test"}
	hub.Register(client)

	env := recvEnvelope(t, client.send)
	if env.Type != EventInitialState {
		t.Fatalf("expected initial_state first, got %q", env.Type)
	}

	hub.BroadcastTelemetry(model.Reading{MessageID: "m1", StationID: 1})
	env = recvEnvelope(t, client.send)
	if env.Type != EventTelemetry {
		t.Fatalf("expected telemetry, got %q", env.Type)
	}

	hub.BroadcastAlert(model.Alert{ID: 8, Kind: model.KindPressureRelief})
	env = recvEnvelope(t, client.send)
	if env.Type != EventNewAlert {
		t.Fatalf("expected new_alert, got %q", env.Type)
	}
	if env.Alert == nil {
		t.Fatalf("new_alert envelope must carry the alert field")
	}

	hub.BroadcastControl("capture_start", nil)
	env = recvEnvelope(t, client.send)
	if env.Type != EventControl {
		t.Fatalf("expected control, got %q", env.Type)
	}
}

func TestHubSlowSubscriberDropsOldest(t *testing.T) {
	hub := NewHub(zap.NewNop())

	// a client that never drains, with a tiny queue
	slow := &Client{hub: hub, send: make(chan []byte, 2), remote: "slow"}

	hub.offer(slow, []byte(`1`))
	hub.offer(slow, []byte(`2`))
	hub.offer(slow, []byte(`3`)) // overflow: 1 is dropped

	if got := string(<-slow.send); got != "2" {
		t.Fatalf("expected oldest (1) dropped, head is %q", got)
	}
	if got := string(<-slow.send); got != "3" {
		t.Fatalf("expected newest kept, got %q", got)
	}
}

func TestHubSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	slow := &Client{hub: hub, send: make(chan []byte, 1), remote: "slow"}
	fast := &Client{hub: hub, send: make(chan []byte, sendQueue), remote: "fast"}
	hub.Register(slow)
	hub.Register(fast)

	// far more events than the slow client's queue can hold
	for i := 0; i < 32; i++ {
		hub.BroadcastTelemetry(model.Reading{StationID: i})
	}

	// the fast client still receives events; delivery never wedged on slow
	received := 0
	deadline := time.After(2 * time.Second)
	for received < 16 {
		select {
		case <-fast.send:
			received++
		case <-deadline:
			t.Fatalf("fast subscriber starved after %d events", received)
		}
	}
}
