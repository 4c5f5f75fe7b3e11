// Package audit keeps a local log of the writes this server relayed upstream.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sujalbistaa/careerboard/internal/models"
)

// Anonymous is recorded when a write arrives without a valid session.
const Anonymous = "anonymous"

type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(db *gorm.DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, logger: logger, now: time.Now}
}

// Migrate creates or updates the audit table.
func (r *Recorder) Migrate() error {
	return r.db.AutoMigrate(&models.AuditEntry{})
}

// Record stores one relayed write. A failure is logged and returned but
// never affects the response already relayed to the caller.
func (r *Recorder) Record(ctx context.Context, e models.AuditEntry) error {
	if e.Operator == "" {
		e.Operator = Anonymous
	}
	if e.Source == "" {
		e.Source = "api"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now()
	}

	if err := r.db.WithContext(ctx).Create(&e).Error; err != nil {
		r.logger.Error("failed to record audit entry",
			zap.String("action", e.Action),
			zap.String("posting_id", e.PostingID),
			zap.Error(err))
		return err
	}
	return nil
}

// Recent returns the latest entries, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Order("id desc").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
