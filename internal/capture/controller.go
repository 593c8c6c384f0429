// Package capture gates whether validated readings are persisted. The
// pipeline always observes; this state machine decides whether it records.
package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"rumen-monitor/internal/db"
	"rumen-monitor/internal/model"
)

// Controller is the capture session state machine. Two states: disabled
// (initial) and enabled. At most one session is enabled at any time.
//
// The enabled flag is read by the ingestion loop on every message, so it is
// an atomic rather than a lock; transitions themselves are serialized by mu.
type Controller struct {
	store  *db.Store
	logger *zap.Logger

	mu      sync.Mutex
	enabled atomic.Bool
	current atomic.Pointer[model.CaptureSession]
}

// NewController restores the controller from the store: if an open session
// survived a restart, capture resumes enabled.
func NewController(ctx context.Context, store *db.Store, logger *zap.Logger) (*Controller, error) {
	c := &Controller{store: store, logger: logger}
	sess, err := store.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		c.current.Store(sess)
		c.enabled.Store(true)
		logger.Info("resuming open capture session",
			zap.String("session_id", sess.ID),
			zap.String("assay_id", sess.AssayID),
		)
	}
	return c, nil
}

// Enabled reports whether readings are currently being persisted.
func (c *Controller) Enabled() bool { return c.enabled.Load() }

// Current returns the open session, or nil while capture is disabled.
func (c *Controller) Current() *model.CaptureSession { return c.current.Load() }

// Open starts a new enabled session. Any currently open session is closed
// first (its StoppedAt set), so two sessions are never enabled at once.
// Calling Open while already enabled supersedes the running session and still
// reports success.
func (c *Controller) Open(ctx context.Context, trigger, assayID string) (*model.CaptureSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := &model.CaptureSession{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Trigger:   trigger,
		AssayID:   assayID,
	}
	if err := c.store.OpenSession(ctx, sess); err != nil {
		return nil, err
	}

	if prev := c.current.Load(); prev != nil {
		c.logger.Info("capture session superseded",
			zap.String("previous", prev.ID),
			zap.String("session_id", sess.ID),
		)
	}
	c.current.Store(sess)
	c.enabled.Store(true)

	c.logger.Info("capture session opened",
		zap.String("session_id", sess.ID),
		zap.String("trigger", trigger),
		zap.String("assay_id", assayID),
	)
	return sess, nil
}

// Close stops the current session. Closing while already disabled is a no-op
// that reports success with a nil session.
func (c *Controller) Close(ctx context.Context, trigger string) (*model.CaptureSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled.Load() {
		return nil, nil
	}

	closed, err := c.store.CloseSession(ctx, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	c.enabled.Store(false)
	c.current.Store(nil)

	if closed != nil {
		c.logger.Info("capture session closed",
			zap.String("session_id", closed.ID),
			zap.String("trigger", trigger),
		)
	}
	return closed, nil
}

// LastClosed returns the most recently stopped session, or nil.
func (c *Controller) LastClosed(ctx context.Context) (*model.CaptureSession, error) {
	return c.store.LastClosedSession(ctx)
}

// History returns up to limit past sessions, newest-first.
func (c *Controller) History(ctx context.Context, limit int) ([]model.CaptureSession, error) {
	return c.store.SessionHistory(ctx, limit)
}

// Status returns the current state name for the admin surface.
func (c *Controller) Status() string {
	if c.enabled.Load() {
		return model.SessionEnabled
	}
	return model.SessionDisabled
}
