package models

import "time"

// AlertKind identifies which metric crossed its threshold
type AlertKind string

const (
	AlertKindCPU    AlertKind = "CPU"
	AlertKindMemory AlertKind = "MEMORY"
)

// Severity of an alert. Threshold breaches are always HIGH.
type Severity string

const SeverityHigh Severity = "HIGH"

// Alert is a persisted threshold breach. Rows map onto the alerts table:
// alerts(id, type, message, value, threshold, severity, timestamp, acknowledged).
type Alert struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Kind         AlertKind `json:"type" gorm:"column:type;type:text;not null;index"`
	Message      string    `json:"message" gorm:"not null"`
	Value        float64   `json:"value" gorm:"not null"`
	Threshold    float64   `json:"threshold" gorm:"not null"`
	Severity     Severity  `json:"severity" gorm:"type:text;not null"`
	Timestamp    time.Time `json:"timestamp" gorm:"not null;index"`
	Acknowledged bool      `json:"acknowledged" gorm:"default:false"`
}

// TableName pins the table name regardless of gorm's pluralization rules
func (Alert) TableName() string {
	return "alerts"
}
