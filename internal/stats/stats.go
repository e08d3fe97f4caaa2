// Package stats persists non-sensitive usage counters. No credential,
// phone number or session material ever reaches this store.
package stats

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// WizardRun records one session generation flow reaching a terminal
// state.
type WizardRun struct {
	ID        uint      `gorm:"primaryKey"`
	ChatID    int64     `gorm:"index"`
	Provider  string    `gorm:"size:16"`
	Outcome   string    `gorm:"size:32;index"`
	CreatedAt time.Time `gorm:"index"`
}

// Download records one media fetch reaching a terminal state.
type Download struct {
	ID        uint      `gorm:"primaryKey"`
	ChatID    int64     `gorm:"index"`
	MediaType string    `gorm:"size:8"`
	Outcome   string    `gorm:"size:32;index"`
	SizeBytes int64
	CreatedAt time.Time `gorm:"index"`
}

// Summary aggregates the counters for the status endpoint.
type Summary struct {
	WizardRuns      int64 `json:"wizard_runs"`
	WizardCompleted int64 `json:"wizard_completed"`
	Downloads       int64 `json:"downloads"`
	DownloadsOK     int64 `json:"downloads_completed"`
	BytesDelivered  int64 `json:"bytes_delivered"`
}

// Repository stores usage counters in a local sqlite database.
type Repository struct {
	db *gorm.DB
}

// Open opens (or creates) the sqlite database at path and migrates the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Repository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open stats db: %w", err)
	}
	if err := db.AutoMigrate(&WizardRun{}, &Download{}); err != nil {
		return nil, fmt.Errorf("migrate stats db: %w", err)
	}
	return &Repository{db: db}, nil
}

// RecordWizardRun appends a wizard outcome.
func (r *Repository) RecordWizardRun(chatID int64, provider, outcome string) error {
	return r.db.Create(&WizardRun{ChatID: chatID, Provider: provider, Outcome: outcome}).Error
}

// RecordDownload appends a download outcome.
func (r *Repository) RecordDownload(chatID int64, mediaType, outcome string, sizeBytes int64) error {
	return r.db.Create(&Download{ChatID: chatID, MediaType: mediaType, Outcome: outcome, SizeBytes: sizeBytes}).Error
}

// Summarize aggregates the counters.
func (r *Repository) Summarize() (*Summary, error) {
	var s Summary
	if err := r.db.Model(&WizardRun{}).Count(&s.WizardRuns).Error; err != nil {
		return nil, fmt.Errorf("count wizard runs: %w", err)
	}
	if err := r.db.Model(&WizardRun{}).Where("outcome = ?", "completed").Count(&s.WizardCompleted).Error; err != nil {
		return nil, fmt.Errorf("count completed wizard runs: %w", err)
	}
	if err := r.db.Model(&Download{}).Count(&s.Downloads).Error; err != nil {
		return nil, fmt.Errorf("count downloads: %w", err)
	}
	if err := r.db.Model(&Download{}).Where("outcome = ?", "completed").Count(&s.DownloadsOK).Error; err != nil {
		return nil, fmt.Errorf("count completed downloads: %w", err)
	}
	var bytes *int64
	if err := r.db.Model(&Download{}).Where("outcome = ?", "completed").
		Select("SUM(size_bytes)").Scan(&bytes).Error; err != nil {
		return nil, fmt.Errorf("sum delivered bytes: %w", err)
	}
	if bytes != nil {
		s.BytesDelivered = *bytes
	}
	return &s, nil
}
