package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hostwatch/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultRecentAlerts is used when Recent is called without a positive limit
const DefaultRecentAlerts = 10

// AlertStore is the append-only alert log. A successful Store is visible to
// every later TotalCount, BreakdownByKind and Recent call.
type AlertStore interface {
	Store(ctx context.Context, alert *models.Alert) error
	TotalCount(ctx context.Context) (int64, error)
	BreakdownByKind(ctx context.Context) (map[models.AlertKind]int64, error)
	Recent(ctx context.Context, limit int) ([]models.Alert, error)
}

// SQLAlertStore keeps alerts in a SQLite database through gorm
type SQLAlertStore struct {
	db *gorm.DB
}

var _ AlertStore = (*SQLAlertStore)(nil)

// OpenAlertStore opens (creating if needed) the database at path and
// migrates the alerts table. WAL mode lets readers proceed during a write.
func OpenAlertStore(path string, log logrus.FieldLogger) (*SQLAlertStore, error) {
	if path == "" {
		return nil, errors.New("alert store path not set")
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}

	cfg := &gorm.Config{
		Logger: gormlogger.New(log, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open alert store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&models.Alert{}); err != nil {
		return nil, fmt.Errorf("failed to migrate alerts table: %w", err)
	}
	return &SQLAlertStore{db: db}, nil
}

// Store appends alert and fills in its ID
func (s *SQLAlertStore) Store(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return errors.New("nil alert")
	}
	if err := s.db.WithContext(ctx).Create(alert).Error; err != nil {
		return fmt.Errorf("failed to store alert: %w", err)
	}
	return nil
}

// TotalCount returns the number of stored alerts
func (s *SQLAlertStore) TotalCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Alert{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// BreakdownByKind returns the alert count per kind. Kinds with no alerts are absent.
func (s *SQLAlertStore) BreakdownByKind(ctx context.Context) (map[models.AlertKind]int64, error) {
	var rows []struct {
		Kind  models.AlertKind
		Count int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Alert{}).
		Select("type AS kind, COUNT(*) AS count").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group alerts: %w", err)
	}

	breakdown := make(map[models.AlertKind]int64, len(rows))
	for _, r := range rows {
		breakdown[r.Kind] = r.Count
	}
	return breakdown, nil
}

// Recent returns up to limit alerts, newest first
func (s *SQLAlertStore) Recent(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		limit = DefaultRecentAlerts
	}
	alerts := []models.Alert{}
	err := s.db.WithContext(ctx).
		Order("timestamp DESC").
		Order("id DESC").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent alerts: %w", err)
	}
	return alerts, nil
}

// Close releases the underlying connection pool
func (s *SQLAlertStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
