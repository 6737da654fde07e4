// seed-tenants creates the demo tenants plus the dashboard admin user.
// Existing records are left untouched, so reruns are safe.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-tenants
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/dashboard_backend/config"
	"bitbucket.org/mmdatafocus/dashboard_backend/models"
	"bitbucket.org/mmdatafocus/dashboard_backend/utils"
	"gorm.io/gorm"
)

const (
	adminUsername = "dashboardAdmin"
	adminPassword = "D@$hboardAdmin"
)

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if err := models.MigrateTable(); err != nil {
		fmt.Fprintf(os.Stderr, "auto-migrate failed: %v\n", err)
		os.Exit(1)
	}

	ctx = utils.SetUsernameInContext(ctx, adminUsername)
	ctx = utils.SetIsAdminInContext(ctx, true)
	ctx = utils.SetSkipTenantScopeInContext(ctx, true)

	tenants := []models.NewTenant{
		{
			Name:             "Acme Retail",
			Slug:             "acme-retail",
			Description:      "Demo tenant with both remotes configured",
			ErpnextUrl:       envOr("SEED_ERPNEXT_URL", "http://localhost:8001"),
			ErpnextApiKey:    envOr("SEED_ERPNEXT_API_KEY", "demo-key"),
			ErpnextApiSecret: envOr("SEED_ERPNEXT_API_SECRET", "demo-secret"),
			SaleorUrl:        envOr("SEED_SALEOR_URL", "http://localhost:8000"),
			SaleorToken:      envOr("SEED_SALEOR_TOKEN", "demo-token"),
		},
		{
			Name:        "Beta Traders",
			Slug:        "beta-traders",
			Description: "ERP-only tenant",
			ErpnextUrl:  envOr("SEED_ERPNEXT_URL", "http://localhost:8001"),
		},
		{
			Name:        "Gamma Goods",
			Slug:        "gamma-goods",
			Description: "Unconfigured tenant for onboarding flows",
		},
	}

	for _, input := range tenants {
		existing, err := models.GetTenantBySlug(ctx, input.Slug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to lookup tenant %s: %v\n", input.Slug, err)
			os.Exit(1)
		}
		if existing != nil {
			fmt.Printf("tenant %s already exists; skipping\n", input.Slug)
			continue
		}
		tenant, err := models.CreateTenant(ctx, &input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create tenant %s: %v\n", input.Slug, err)
			os.Exit(1)
		}
		fmt.Printf("created tenant %s (%s)\n", tenant.Slug, tenant.ID)
	}

	_, err := models.GetUserByUsername(ctx, adminUsername)
	switch {
	case err == nil:
		fmt.Printf("user %s already exists; skipping\n", adminUsername)
	case errors.Is(err, utils.ErrorRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound):
		acme, err := models.GetTenantBySlug(ctx, "acme-retail")
		if err != nil || acme == nil {
			fmt.Fprintln(os.Stderr, "acme-retail tenant missing; cannot seed admin user")
			os.Exit(1)
		}
		user, err := models.CreateUser(ctx, adminUsername, adminPassword, "admin", acme.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %s (%s)\n", user.Username, user.ID)
	default:
		fmt.Fprintf(os.Stderr, "failed to lookup admin user: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("seed complete")
}
