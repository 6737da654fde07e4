package models

import "bitbucket.org/mmdatafocus/dashboard_backend/config"

// MigrateTable runs gorm auto-migration for every model in dependency order.
func MigrateTable() error {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Tenant{},
		&User{},
		&IntegrationLog{},
		&SyncStatus{},
	)
	if err != nil {
		return err
	}

	return nil
}
