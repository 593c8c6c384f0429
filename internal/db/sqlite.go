package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"rumen-monitor/internal/model"
)

// ErrDuplicate is returned by SaveReading when a row with the same msg_id
// already exists. Callers treat it as a success no-op.
var ErrDuplicate = errors.New("duplicate message")

// Store wraps the SQLite connection and owns all durable state: readings,
// alerts, capture sessions and alert settings.
type Store struct {
	ORM *gorm.DB
}

// Open opens the SQLite database using GORM and runs migrations.
func Open(path string) (*Store, error) {
	g, err := openORM(path)
	if err != nil {
		return nil, err
	}
	if err := migrateORM(g); err != nil {
		_ = closeORM(g)
		return nil, err
	}
	return &Store{ORM: g}, nil
}

func (s *Store) Close() error { return closeORM(s.ORM) }

// SaveReading inserts one reading. The msg_id uniqueness constraint is the
// single source of truth for idempotence: a retried or concurrently delivered
// message surfaces as ErrDuplicate here instead of a second row.
func (s *Store) SaveReading(ctx context.Context, r *model.Reading) error {
	if err := insertReading(ctx, s.ORM, r); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// ReadingsBetween returns readings with observed_at in [from, to), ordered by
// observation time. The half-open interval matches the exporter's window
// contract.
func (s *Store) ReadingsBetween(ctx context.Context, from, to time.Time) ([]model.Reading, error) {
	var rows []model.Reading
	err := s.ORM.WithContext(ctx).
		Where("observed_at >= ? AND observed_at < ?", from, to).
		Order("observed_at, station_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) CountReadings(ctx context.Context) (int64, error) {
	var n int64
	err := s.ORM.WithContext(ctx).Model(&model.Reading{}).Count(&n).Error
	return n, err
}

// SaveAlert persists a new alert; the row id and creation time are assigned
// here.
func (s *Store) SaveAlert(ctx context.Context, a *model.Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return insertAlert(ctx, s.ORM, a)
}

// RecentAlerts returns up to limit alerts newest-first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.Alert
	err := s.ORM.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AcknowledgeAlert marks an alert acknowledged. Acknowledgement is monotonic;
// acknowledging twice is a no-op.
func (s *Store) AcknowledgeAlert(ctx context.Context, id uint) error {
	res := s.ORM.WithContext(ctx).
		Model(&model.Alert{}).
		Where("id = ?", id).
		Update("acknowledged", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// OpenSession closes any currently open session and creates sess as the new
// enabled one, in a single transaction so no reader ever observes two enabled
// rows.
func (s *Store) OpenSession(ctx context.Context, sess *model.CaptureSession) error {
	return s.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := sess.StartedAt
		if now.IsZero() {
			now = time.Now().UTC()
			sess.StartedAt = now
		}
		err := tx.Model(&model.CaptureSession{}).
			Where("status = ?", model.SessionEnabled).
			Updates(map[string]any{
				"status":     model.SessionDisabled,
				"stopped_at": now,
			}).Error
		if err != nil {
			return err
		}
		sess.Status = model.SessionEnabled
		return tx.Create(sess).Error
	})
}

// CloseSession stops the currently open session, if any, and returns it.
// Returns (nil, nil) when no session is open.
func (s *Store) CloseSession(ctx context.Context, at time.Time) (*model.CaptureSession, error) {
	var closed *model.CaptureSession
	err := s.ORM.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess model.CaptureSession
		err := tx.Where("status = ?", model.SessionEnabled).First(&sess).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		sess.Status = model.SessionDisabled
		sess.StoppedAt = &at
		if err := tx.Save(&sess).Error; err != nil {
			return err
		}
		closed = &sess
		return nil
	})
	return closed, err
}

// CurrentSession returns the open session, or (nil, nil) when capture is
// disabled.
func (s *Store) CurrentSession(ctx context.Context) (*model.CaptureSession, error) {
	var sess model.CaptureSession
	err := s.ORM.WithContext(ctx).
		Where("status = ?", model.SessionEnabled).
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// LastClosedSession returns the most recently stopped session, or (nil, nil).
func (s *Store) LastClosedSession(ctx context.Context) (*model.CaptureSession, error) {
	var sess model.CaptureSession
	err := s.ORM.WithContext(ctx).
		Where("status = ?", model.SessionDisabled).
		Order("stopped_at DESC").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// SessionHistory returns up to limit sessions newest-first.
func (s *Store) SessionHistory(ctx context.Context, limit int) ([]model.CaptureSession, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []model.CaptureSession
	err := s.ORM.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// LoadSettings returns the persisted alert settings, seeding the defaults row
// on first start.
func (s *Store) LoadSettings(ctx context.Context) (model.AlertSettings, error) {
	settings := model.DefaultAlertSettings()
	err := s.ORM.WithContext(ctx).
		Where(model.AlertSettings{ID: 1}).
		Attrs(settings).
		FirstOrCreate(&settings).Error
	return settings, err
}

// ReplaceSettings replaces the whole settings row; there are no partial
// merges.
func (s *Store) ReplaceSettings(ctx context.Context, settings model.AlertSettings) error {
	settings.ID = 1
	return s.ORM.WithContext(ctx).Save(&settings).Error
}
