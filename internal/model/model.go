package model

import "time"

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert kinds produced by the evaluator.
const (
	KindHighPressure       = "high_pressure"
	KindTemperatureExtreme = "temperature_extreme"
	KindPressureRelief     = "pressure_relief"
)

// Reading event tags.
const (
	EventNone   = "none"
	EventRelief = "relief"
)

// Capture session statuses.
const (
	SessionEnabled  = "enabled"
	SessionDisabled = "disabled"
)

// Reading is one normalized sensor sample from one station.
// Rows are immutable once persisted; msg_id carries the producer-assigned
// identity and is unique across the whole table.
type Reading struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	MessageID    string    `gorm:"column:msg_id;uniqueIndex" json:"msg_id"`
	AssayID      string    `gorm:"column:assay_id;index" json:"assay_id"`
	StationID    int       `gorm:"column:station_id;index" json:"flask_id"`
	ObservedAt   time.Time `gorm:"column:observed_at;index" json:"ts"`
	PressureAbs  float64   `gorm:"column:pressure_abs" json:"P_bar_abs"`
	Temperature  float64   `gorm:"column:temperature" json:"T_C"`
	PressureNorm float64   `gorm:"column:pressure_norm" json:"P_bar_std"`
	AccumRate    float64   `gorm:"column:accum_rate" json:"accum_bar_per_h"`
	ReliefCount  int       `gorm:"column:relief_count" json:"relief_count"`
	Event        string    `gorm:"column:event" json:"event"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"-"`
}

func (Reading) TableName() string { return "readings" }

// Alert is a detected rule violation. Acknowledged is monotonic: once set it
// never reverts.
type Alert struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	StationID    int       `gorm:"column:station_id;index" json:"station_id"`
	AssayID      string    `gorm:"column:assay_id" json:"assay_id"`
	Kind         string    `gorm:"column:kind" json:"kind"`
	Message      string    `gorm:"column:message" json:"message"`
	Severity     string    `gorm:"column:severity" json:"severity"`
	Acknowledged bool      `gorm:"column:acknowledged" json:"acknowledged"`
	CreatedAt    time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (Alert) TableName() string { return "alerts" }

// CaptureSession is a bounded interval during which readings are persisted.
// StoppedAt is nil iff the session is the currently open one.
type CaptureSession struct {
	ID        string     `gorm:"column:id;primaryKey" json:"id"`
	Status    string     `gorm:"column:status;index" json:"status"`
	StartedAt time.Time  `gorm:"column:started_at;index" json:"started_at"`
	StoppedAt *time.Time `gorm:"column:stopped_at" json:"stopped_at"`
	Trigger   string     `gorm:"column:trigger" json:"trigger"`
	AssayID   string     `gorm:"column:assay_id" json:"assay_id"`
}

func (CaptureSession) TableName() string { return "capture_sessions" }

// AlertSettings is the single current alerting configuration. Exactly one row
// (id=1) exists; updates replace the whole row.
type AlertSettings struct {
	ID                       uint    `gorm:"column:id;primaryKey" json:"-"`
	PressureReliefThreshold  float64 `gorm:"column:pressure_relief_threshold" json:"pressure_relief_threshold"`
	PressureWarningThreshold float64 `gorm:"column:pressure_warning_threshold" json:"pressure_warning_threshold"`
	TemperatureMin           float64 `gorm:"column:temperature_min" json:"temperature_min"`
	TemperatureMax           float64 `gorm:"column:temperature_max" json:"temperature_max"`
}

func (AlertSettings) TableName() string { return "alert_settings" }

// DefaultAlertSettings mirrors the thresholds of the reference rig: relief
// valve at 1.5 bar, incubation held around 39 °C.
func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		ID:                       1,
		PressureReliefThreshold:  1.5,
		PressureWarningThreshold: 1.3,
		TemperatureMin:           38.0,
		TemperatureMax:           40.0,
	}
}
