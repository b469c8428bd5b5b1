package db

import (
	"fmt"
)

// Migrate tworzy/aktualizuje schemat bazy.
func (h *Handle) Migrate() error {
	gdb := h.DB

	if err := gdb.AutoMigrate(
		&InventoryItem{},
		&SyncLogEntry{},
		&SyncIssue{},
		&SyncStateRow{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}

	// starsze bazy mogły nie mieć indeksu unikalnego z tagów
	if !gdb.Migrator().HasIndex(&SyncIssue{}, "uniq_issue_key") {
		if err := gdb.Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS uniq_issue_key
			ON sync_issues(external_id, reason);
		`).Error; err != nil {
			return fmt.Errorf("create index uniq_issue_key: %w", err)
		}
	}

	return nil
}
