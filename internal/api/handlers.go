package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rumen-monitor/internal/alert"
	"rumen-monitor/internal/capture"
	"rumen-monitor/internal/db"
	"rumen-monitor/internal/ingest"
	"rumen-monitor/internal/model"
	"rumen-monitor/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler carries the collaborators the admin surface drives.
type Handler struct {
	store    *db.Store
	capture  *capture.Controller
	config   *alert.ConfigHolder
	pipeline *ingest.Pipeline
	notifier *alert.Notifier
	hub      *ws.Hub
	logger   *zap.Logger
}

func NewHandler(
	store *db.Store,
	captureCtl *capture.Controller,
	config *alert.ConfigHolder,
	pipeline *ingest.Pipeline,
	notifier *alert.Notifier,
	hub *ws.Hub,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		store:    store,
		capture:  captureCtl,
		config:   config,
		pipeline: pipeline,
		notifier: notifier,
		hub:      hub,
		logger:   logger,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func limitParam(r *http.Request, def int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// GetCapture returns the current capture status and open session.
func (h *Handler) GetCapture(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.capture.Status(),
		"session": h.capture.Current(),
	})
}

func (h *Handler) GetCaptureHistory(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.capture.History(r.Context(), limitParam(r, 20))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

type captureRequest struct {
	Trigger string `json:"trigger"`
	AssayID string `json:"assay_id"`
}

func (h *Handler) StartCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Trigger == "" {
		req.Trigger = "manual"
	}
	sess, err := h.capture.Open(r.Context(), req.Trigger, req.AssayID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.hub.BroadcastControl("capture_start", sess)
	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) StopCapture(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Trigger == "" {
		req.Trigger = "manual"
	}
	sess, err := h.capture.Close(r.Context(), req.Trigger)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.hub.BroadcastControl("capture_stop", sess)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.capture.Status(),
		"session": sess,
	})
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.config.Current())
}

// ReplaceConfig atomically replaces the whole alert configuration; partial
// merges are not supported.
func (h *Handler) ReplaceConfig(w http.ResponseWriter, r *http.Request) {
	var settings model.AlertSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if err := h.config.Replace(r.Context(), settings); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.hub.BroadcastControl("config_update", h.config.Current())
	writeJSON(w, http.StatusOK, h.config.Current())
}

func (h *Handler) GetStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipeline.Stations())
}

func (h *Handler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.store.RecentAlerts(r.Context(), limitParam(r, 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

type manualAlertRequest struct {
	StationID int    `json:"station_id"`
	AssayID   string `json:"assay_id"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
}

// CreateAlert raises a manually-created alert through the same
// persist+broadcast path evaluator-fired alerts take.
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req manualAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.Kind == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "kind and message are required")
		return
	}
	switch req.Severity {
	case model.SeverityInfo, model.SeverityWarning, model.SeverityCritical:
	case "":
		req.Severity = model.SeverityInfo
	default:
		writeError(w, http.StatusBadRequest, "unknown severity")
		return
	}

	a := model.Alert{
		StationID: req.StationID,
		AssayID:   req.AssayID,
		Kind:      req.Kind,
		Message:   req.Message,
		Severity:  req.Severity,
	}
	if err := h.notifier.Raise(r.Context(), &a); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}
	if err := h.store.AcknowledgeAlert(r.Context(), uint(id)); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

// ServeWS upgrades the connection and registers it as a fan-out subscriber.
// The hub queues an initial_state frame before any live events.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := ws.NewClient(h.hub, conn, h.logger)
	h.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}
