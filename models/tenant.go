package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/dashboard_backend/config"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tenant is one business unit with its own remote-system credentials and
// dashboard view. Created at seed time, rarely mutated, never deleted during
// normal operation.
type Tenant struct {
	ID               string    `gorm:"primary_key;size:36" json:"id"`
	Name             string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Slug             string    `gorm:"size:100;uniqueIndex;not null" json:"slug" binding:"required"`
	Description      string    `gorm:"type:text" json:"description"`
	ErpnextUrl       string    `gorm:"size:255" json:"erpnextUrl"`
	ErpnextApiKey    string    `gorm:"size:255" json:"erpnextApiKey"`
	ErpnextApiSecret string    `gorm:"size:255" json:"erpnextApiSecret"`
	SaleorUrl        string    `gorm:"size:255" json:"saleorUrl"`
	SaleorToken      string    `gorm:"size:255" json:"saleorToken"`
	WebhookSecret    string    `gorm:"size:255" json:"webhookSecret"`
	IsActive         *bool     `gorm:"not null;default:true" json:"isActive"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewTenant struct {
	Name             string `json:"name" binding:"required"`
	Slug             string `json:"slug" binding:"required"`
	Description      string `json:"description"`
	ErpnextUrl       string `json:"erpnextUrl"`
	ErpnextApiKey    string `json:"erpnextApiKey"`
	ErpnextApiSecret string `json:"erpnextApiSecret"`
	SaleorUrl        string `json:"saleorUrl"`
	SaleorToken      string `json:"saleorToken"`
	WebhookSecret    string `json:"webhookSecret"`
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// HasErpnext reports whether the tenant has ERP connection info configured.
func (t *Tenant) HasErpnext() bool {
	return t != nil && strings.TrimSpace(t.ErpnextUrl) != ""
}

// HasSaleor reports whether the tenant has e-commerce connection info configured.
func (t *Tenant) HasSaleor() bool {
	return t != nil && strings.TrimSpace(t.SaleorUrl) != ""
}

func tenantCacheKey(slug string) string {
	return "Tenant:" + slug
}

// GetTenantBySlug resolves a tenant, preferring the Redis cache. Tenant
// records change rarely so a short TTL is enough to absorb webhook bursts.
func GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.New("slug is required")
	}

	var cached Tenant
	exists, err := config.GetRedisObject(tenantCacheKey(slug), &cached)
	if err == nil && exists && cached.ID != "" {
		return &cached, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}

	var tenant Tenant
	// Tenants are the tenancy root; lookup by slug must not be tenant-scoped.
	scopeFree := config.SkipTenantScope(ctx)
	if err := db.WithContext(scopeFree).Where("slug = ?", slug).Take(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	_ = config.SetRedisObject(tenantCacheKey(slug), tenant, 5*time.Minute)
	return &tenant, nil
}

func ListTenants(ctx context.Context) ([]Tenant, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	var tenants []Tenant
	scopeFree := config.SkipTenantScope(ctx)
	if err := db.WithContext(scopeFree).Order("name").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func CreateTenant(ctx context.Context, input *NewTenant) (*Tenant, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}

	tenant := Tenant{
		Name:             input.Name,
		Slug:             input.Slug,
		Description:      input.Description,
		ErpnextUrl:       input.ErpnextUrl,
		ErpnextApiKey:    input.ErpnextApiKey,
		ErpnextApiSecret: input.ErpnextApiSecret,
		SaleorUrl:        input.SaleorUrl,
		SaleorToken:      input.SaleorToken,
		WebhookSecret:    input.WebhookSecret,
	}
	if err := db.WithContext(ctx).Create(&tenant).Error; err != nil {
		return nil, err
	}
	_ = config.RemoveRedisKey(tenantCacheKey(tenant.Slug))
	return &tenant, nil
}
