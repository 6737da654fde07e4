package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/dashboard_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SyncStatus records the last observed sync state for one remote source of a
// tenant. One row per (tenant, source).
type SyncStatus struct {
	ID          string     `gorm:"primary_key;size:36" json:"id"`
	TenantId    string     `gorm:"size:36;not null;uniqueIndex:idx_sync_status_tenant_source" json:"tenantId"`
	Source      string     `gorm:"size:20;not null;uniqueIndex:idx_sync_status_tenant_source" json:"source"`
	LastSyncAt  *time.Time `json:"lastSyncAt"`
	RecordCount int        `gorm:"not null;default:0" json:"recordCount"`
	IsActive    *bool      `gorm:"not null;default:true" json:"isActive"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (s *SyncStatus) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// UpsertSyncStatus records a completed sync against (tenant, source),
// inserting the row on first sync.
func UpsertSyncStatus(ctx context.Context, tenantId string, source string, lastSyncAt time.Time, recordCount int) error {
	db := config.GetDB()
	if db == nil {
		return gorm.ErrInvalidDB
	}
	active := true
	row := SyncStatus{
		TenantId:    tenantId,
		Source:      source,
		LastSyncAt:  &lastSyncAt,
		RecordCount: recordCount,
		IsActive:    &active,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_sync_at", "record_count", "is_active", "updated_at"}),
	}).Create(&row).Error
}

func GetSyncStatus(ctx context.Context, tenantId string, source string) (*SyncStatus, error) {
	db := config.GetDB()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var status SyncStatus
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND source = ?", tenantId, source).
		Take(&status).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &status, nil
}

func ListSyncStatuses(ctx context.Context, tenantId string) ([]SyncStatus, error) {
	db := config.GetDB()
	if db == nil {
		return nil, gorm.ErrInvalidDB
	}
	var statuses []SyncStatus
	if err := db.WithContext(ctx).Where("tenant_id = ?", tenantId).Find(&statuses).Error; err != nil {
		return nil, err
	}
	return statuses, nil
}

// StatusStore is the persistence handle the sync engine uses to record run
// completion times.
type StatusStore struct {
	TenantId string
}

func (s *StatusStore) Record(ctx context.Context, source string, at time.Time, recordCount int) error {
	return UpsertSyncStatus(ctx, s.TenantId, source, at, recordCount)
}

func (s *StatusStore) Last(ctx context.Context, source string) (*time.Time, int, error) {
	status, err := GetSyncStatus(ctx, s.TenantId, source)
	if err != nil || status == nil {
		return nil, 0, err
	}
	return status.LastSyncAt, status.RecordCount, nil
}
