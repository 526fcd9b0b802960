package watchlist

import (
	"context"
	"fmt"

	"categorywatch/internal/adapters/storage"
	domain "categorywatch/internal/domain/watch"
	"categorywatch/internal/domain/wikititle"
)

// SQLiteStore implements Store over the wiki's watchlist table.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new watchlist store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// FindWatchers returns the IDs of users watching (namespace, title), ascending.
// PRE: title is a title or DB key; it is normalised before the lookup
// POST: Returns an empty slice when nobody watches the title
func (s *SQLiteStore) FindWatchers(ctx context.Context, namespace int, title string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT wl_user FROM watchlist WHERE wl_namespace = ? AND wl_title = ? ORDER BY wl_user",
		namespace, wikititle.DBKey(title),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchers of %d:%s: %w", namespace, title, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan watcher: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IsWatching reports whether the entry exists.
func (s *SQLiteStore) IsWatching(ctx context.Context, entry domain.Entry) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM watchlist WHERE wl_user = ? AND wl_namespace = ? AND wl_title = ?",
		entry.UserID, entry.Namespace, wikititle.DBKey(entry.Title),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check watchlist: %w", err)
	}
	return n > 0, nil
}

// Watch adds the entry. Watching an already-watched title is a no-op.
// PRE: entry passes Validate
// POST: The entry exists exactly once
func (s *SQLiteStore) Watch(ctx context.Context, entry domain.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO watchlist (wl_user, wl_namespace, wl_title) VALUES (?, ?, ?)",
		entry.UserID, entry.Namespace, wikititle.DBKey(entry.Title),
	)
	if err != nil {
		return fmt.Errorf("failed to watch %d:%s for user %d: %w", entry.Namespace, entry.Title, entry.UserID, err)
	}
	return nil
}

// Unwatch removes the entry if present.
// PRE: entry passes Validate
// POST: The entry no longer exists
func (s *SQLiteStore) Unwatch(ctx context.Context, entry domain.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM watchlist WHERE wl_user = ? AND wl_namespace = ? AND wl_title = ?",
		entry.UserID, entry.Namespace, wikititle.DBKey(entry.Title),
	)
	if err != nil {
		return fmt.Errorf("failed to unwatch %d:%s for user %d: %w", entry.Namespace, entry.Title, entry.UserID, err)
	}
	return nil
}
