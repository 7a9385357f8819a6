package repository

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database with hand-written DDL,
// since the postgres column defaults in the domain tags do not exist there.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	db.Exec(`CREATE TABLE user_presences (
		user_id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL,
		user_role TEXT,
		current_page TEXT NOT NULL,
		current_section TEXT,
		is_active BOOLEAN NOT NULL DEFAULT true,
		session_id TEXT,
		metadata TEXT,
		last_activity DATETIME NOT NULL
	)`)

	db.Exec(`CREATE TABLE collaboration_activities (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL,
		activity_type TEXT NOT NULL,
		target_entity TEXT NOT NULL,
		target_id TEXT,
		description TEXT,
		metadata TEXT,
		created_at DATETIME NOT NULL
	)`)

	db.Exec(`CREATE TABLE collaboration_notifications (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		payload TEXT,
		is_read BOOLEAN NOT NULL DEFAULT false,
		read_at DATETIME,
		created_at DATETIME NOT NULL
	)`)

	return db
}
