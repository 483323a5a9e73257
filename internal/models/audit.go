package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEntry records one admin-gated write against a tenant's configuration,
// grounded on original_source/discord-bot/cogs/admin.py's audit-log cog
// (which keeps a flat history of who changed what). Snapshot carries the
// full TenantConfig as posted, with admin_token cleared by audit.Recorder's
// Record before insert, so an operator can diff what a given write actually
// changed.
type AuditEntry struct {
	ID        uint64         `gorm:"primaryKey;autoIncrement"`
	TenantID  string         `gorm:"column:tenant_id;index:idx_audit_tenant"`
	Action    string         `gorm:"column:action"`
	Snapshot  datatypes.JSON `gorm:"column:snapshot"`
	CreatedAt time.Time      `gorm:"column:created_at;index:idx_audit_tenant"`
}

func (AuditEntry) TableName() string { return "tenant_config_audit" }
