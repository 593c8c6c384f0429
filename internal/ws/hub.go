// Package ws fans pipeline events out to live dashboard subscribers. Every
// subscriber gets its own bounded delivery queue; a slow or dead connection
// loses its own oldest events and never delays ingestion or other
// subscribers.
package ws

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"rumen-monitor/internal/model"
)

// Event kinds carried in the envelope type field.
const (
	EventTelemetry    = "telemetry"
	EventNewAlert     = "new_alert"
	EventInitialState = "initial_state"
	EventControl      = "control"
)

// Envelope is the JSON frame sent to subscribers. Telemetry, initial_state
// and control events use Data; alerts use Alert.
type Envelope struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Alert any    `json:"alert,omitempty"`
}

// InitialState is delivered once to every new subscriber so a late joiner is
// consistent without re-deriving history.
type InitialState struct {
	Stations []model.StationState `json:"stations"`
	Alerts   []model.Alert        `json:"alerts"`
}

// ControlEvent echoes an administrative command to subscribers.
type ControlEvent struct {
	Action  string `json:"action"`
	Payload any    `json:"payload,omitempty"`
}

// SnapshotFunc supplies the current station snapshot and bounded alert
// history for initial_state frames.
type SnapshotFunc func() ([]model.StationState, []model.Alert)

// Hub maintains the set of active clients and broadcasts envelopes to them.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	snapshot   SnapshotFunc
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		logger:     logger,
	}
}

// SetSnapshot installs the initial_state supplier. Must be called before Run.
func (h *Hub) SetSnapshot(fn SnapshotFunc) { h.snapshot = fn }

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("subscriber connected", zap.String("remote", client.remote))
			h.sendInitialState(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("subscriber disconnected", zap.String("remote", client.remote))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				h.offer(client, message)
			}
		}
	}
}

// offer enqueues without blocking, dropping the client's oldest queued event
// on overflow. Back-pressure stops at the subscriber's own queue.
func (h *Hub) offer(c *Client, msg []byte) {
	select {
	case c.send <- msg:
		return
	default:
	}
	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (h *Hub) sendInitialState(c *Client) {
	if h.snapshot == nil {
		return
	}
	stations, alerts := h.snapshot()
	msg, err := json.Marshal(Envelope{
		Type: EventInitialState,
		Data: InitialState{Stations: stations, Alerts: alerts},
	})
	if err != nil {
		h.logger.Error("marshal initial_state", zap.Error(err))
		return
	}
	h.offer(c, msg)
}

// Register hands a new client to the hub loop.
func (h *Hub) Register(c *Client) { h.register <- c }

// BroadcastTelemetry publishes one accepted reading to all subscribers.
func (h *Hub) BroadcastTelemetry(r model.Reading) {
	h.publish(Envelope{Type: EventTelemetry, Data: r})
}

// BroadcastAlert publishes one new alert to all subscribers.
func (h *Hub) BroadcastAlert(a model.Alert) {
	h.publish(Envelope{Type: EventNewAlert, Alert: a})
}

// BroadcastControl echoes an administrative action to all subscribers.
func (h *Hub) BroadcastControl(action string, payload any) {
	h.publish(Envelope{Type: EventControl, Data: ControlEvent{Action: action, Payload: payload}})
}

func (h *Hub) publish(env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("marshal broadcast", zap.String("type", env.Type), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// hub loop is wedged; losing a frame beats blocking ingestion
		h.logger.Warn("broadcast queue full, dropping event", zap.String("type", env.Type))
	}
}
