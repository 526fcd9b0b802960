package storage

import (
	"database/sql"
	"fmt"
)

// InitDB initializes the database schema.
// The tables mirror the subset of the wiki schema the notifier reads:
// accounts, their preferences, watchlists and page category links.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS user (
		user_id INTEGER PRIMARY KEY,
		user_name TEXT NOT NULL UNIQUE,
		user_real_name TEXT NOT NULL DEFAULT '',
		user_email TEXT NOT NULL DEFAULT '',
		user_email_authenticated TEXT
	);

	CREATE TABLE IF NOT EXISTS user_properties (
		up_user INTEGER NOT NULL,
		up_property TEXT NOT NULL,
		up_value TEXT,
		PRIMARY KEY (up_user, up_property),
		FOREIGN KEY (up_user) REFERENCES user(user_id)
	);

	CREATE TABLE IF NOT EXISTS watchlist (
		wl_user INTEGER NOT NULL,
		wl_namespace INTEGER NOT NULL DEFAULT 0,
		wl_title TEXT NOT NULL,
		PRIMARY KEY (wl_user, wl_namespace, wl_title),
		FOREIGN KEY (wl_user) REFERENCES user(user_id)
	);

	CREATE INDEX IF NOT EXISTS idx_watchlist_title ON watchlist (wl_namespace, wl_title);

	CREATE TABLE IF NOT EXISTS categorylinks (
		cl_from INTEGER NOT NULL,
		cl_to TEXT NOT NULL,
		cl_sortkey TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (cl_from, cl_to)
	);

	CREATE INDEX IF NOT EXISTS idx_categorylinks_sortkey ON categorylinks (cl_from, cl_sortkey);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}
