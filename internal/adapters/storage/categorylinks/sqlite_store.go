package categorylinks

import (
	"context"
	"fmt"

	"categorywatch/internal/adapters/storage"
	"categorywatch/internal/domain/category"
	"categorywatch/internal/domain/wikititle"
)

// SQLiteStore implements Store over the wiki's categorylinks table.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new categorylinks store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// CategoriesForPage returns the DB keys of the categories pageID belongs to, ordered by sort key.
// PRE: none
// POST: Returns an empty slice for pages without categories
func (s *SQLiteStore) CategoriesForPage(ctx context.Context, pageID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT cl_to FROM categorylinks WHERE cl_from = ? ORDER BY cl_sortkey, cl_to",
		pageID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories of page %d: %w", pageID, err)
	}
	defer rows.Close()

	cats := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// Replace sets the page's categories to exactly the given set.
// PRE: pageID > 0
// POST: categorylinks rows for pageID equal the normalised, deduplicated categories
func (s *SQLiteStore) Replace(ctx context.Context, pageID int64, sortKey string, categories []string) error {
	if pageID <= 0 {
		return fmt.Errorf("invalid page id %d", pageID)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM categorylinks WHERE cl_from = ?", pageID); err != nil {
		return fmt.Errorf("failed to clear categories of page %d: %w", pageID, err)
	}
	for _, name := range category.NewSet(categories...).Sorted() {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO categorylinks (cl_from, cl_to, cl_sortkey) VALUES (?, ?, ?)",
			pageID, wikititle.DBKey(name), sortKey,
		)
		if err != nil {
			return fmt.Errorf("failed to link page %d to %s: %w", pageID, name, err)
		}
	}
	return tx.Commit()
}
