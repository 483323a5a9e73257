// Package audit persists an append-only history of admin-gated tenant
// config writes, grounded on internal/store's gorm upsert idiom but
// write-only here: every Record call is a plain insert, never an update.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketwatch/internal/models"
)

// Recorder appends AuditEntry rows for tenant config writes (put/ban/unban).
type Recorder struct {
	db     *gorm.DB
	logger *zap.Logger
}

func New(db *gorm.DB, logger *zap.Logger) *Recorder {
	return &Recorder{db: db, logger: logger}
}

// Record inserts one audit row. Record clears cfg.AdminToken before
// serializing, so the stored snapshot never carries the token. Failures are
// logged and swallowed: an audit-log outage must never block a tenant config
// write.
func (r *Recorder) Record(ctx context.Context, tenantID, action string, cfg models.TenantConfig) {
	if r == nil || r.db == nil {
		return
	}
	cfg.AdminToken = ""
	b, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	entry := models.AuditEntry{
		TenantID:  tenantID,
		Action:    action,
		Snapshot:  b,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(tctx).Create(&entry).Error; err != nil && r.logger != nil {
		r.logger.Warn("audit record failed", zap.String("tenant", tenantID), zap.Error(err))
	}
}

// History returns the most recent n audit rows for a tenant, newest first.
func (r *Recorder) History(ctx context.Context, tenantID string, n int) ([]models.AuditEntry, error) {
	tctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var rows []models.AuditEntry
	q := r.db.WithContext(tctx).Where("tenant_id = ?", tenantID).Order("created_at DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
