package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/domain"
)

// AutoMigrateAll creates or updates every table, then adds Postgres-only indexes.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	stmts := []string{
		`CREATE INDEX IF NOT EXISTS idx_policy_user_updated ON "policy" (user_id, updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_user_created ON "payment" (user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_resource ON "audit_log" (resource_type, resource_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_email_lower ON "user" (lower(email))`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func (s *PostgresService) AutoMigrateAll() error {
	return AutoMigrateAll(s.db)
}
