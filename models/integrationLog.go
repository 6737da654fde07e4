package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/dashboard_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Log sources. "integration" covers cross-system actions such as bulk syncs
// that touch both sides.
const (
	LogSourceSaleor      = "saleor"
	LogSourceErpnext     = "erpnext"
	LogSourceN8n         = "n8n"
	LogSourceIntegration = "integration"
)

const (
	LogStatusSuccess = "success"
	LogStatusError   = "error"
	LogStatusPending = "pending"
)

// IntegrationLog is an append-only audit record of every cross-system
// interaction. Rows are never updated after insert.
type IntegrationLog struct {
	ID           string          `gorm:"primary_key;size:36" json:"id"`
	TenantId     string          `gorm:"size:36;index;not null" json:"tenantId"`
	Source       string          `gorm:"size:20;not null" json:"source"`
	Action       string          `gorm:"size:100;not null" json:"action"`
	Status       string          `gorm:"size:20;not null" json:"status"`
	Payload      json.RawMessage `gorm:"type:json" json:"payload,omitempty"`
	ErrorMessage string          `gorm:"type:text" json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (l *IntegrationLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// AppendIntegrationLog writes one audit row. Failures are reported to the
// caller but callers treat logging as best-effort.
func AppendIntegrationLog(ctx context.Context, tenantId string, source string, action string, status string, payload any, errorMessage string) error {
	db := config.GetDB()
	if db == nil {
		return gorm.ErrInvalidDB
	}
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err == nil {
			raw = b
		}
	}
	entry := IntegrationLog{
		TenantId:     tenantId,
		Source:       source,
		Action:       action,
		Status:       status,
		Payload:      raw,
		ErrorMessage: errorMessage,
	}
	return db.WithContext(ctx).Create(&entry).Error
}

// ListIntegrationLogs returns a tenant's most recent log rows, newest first.
// Limit is clamped to keep responses bounded.
func ListIntegrationLogs(ctx context.Context, tenantId string, source string, limit int) ([]IntegrationLog, error) {
	db := config.GetDB()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := db.WithContext(ctx).Where("tenant_id = ?", tenantId)
	if source != "" {
		q = q.Where("source = ?", source)
	}
	var logs []IntegrationLog
	if err := q.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// LogSink is the audit writer handed to the sync engine. It swallows write
// errors so audit problems never break reconciliation.
type LogSink struct {
	TenantId string
}

func (s *LogSink) Append(ctx context.Context, source string, action string, status string, payload any, errorMessage string) {
	if err := AppendIntegrationLog(ctx, s.TenantId, source, action, status, payload, errorMessage); err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "models", "LogSink.Append", "Failed to write integration log", action, err)
	}
}
