package database

import (
	"fmt"

	"gorm.io/gorm"
)

// AddIndexes adds the lookup indexes that are not expressed in model tags.
func AddIndexes(db *gorm.DB) error {
	indexes := []struct {
		table   string
		name    string
		columns string
	}{
		// Active invite code for an organization
		{"org_join_codes", "idx_org_join_codes_org_expires", "org_id, expires_at"},

		// Member listing on the dashboard
		{"user_organizations", "idx_user_organizations_org_joined", "organization_id, joined_at"},
	}

	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(idx.table, idx.name) {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}
