package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: lookup indexes for the request listings and the pending count.
	`CREATE INDEX IF NOT EXISTS idx_requests_item ON transaction_requests(item_id)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_owner_status ON transaction_requests(owner_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_requester ON transaction_requests(requester_id)`,

	// Migration 2: browsing filters on active items.
	`CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_items_type_status ON items(transaction_type, status)`,

	// Migration 3: conversation lookup by participants and message paging.
	`CREATE INDEX IF NOT EXISTS idx_conversations_users ON conversations(user1_id, user2_id)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,

	// Migration 4: appointment lookups by participant and reminder sweeps.
	`CREATE INDEX IF NOT EXISTS idx_appointments_requester ON appointments(requester_id)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_owner ON appointments(owner_id)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_due ON appointments(status, reminder_sent, appointment_time)`,
}

// Migrate ensures the schema and applies all migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
