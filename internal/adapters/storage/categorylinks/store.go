package categorylinks

import "context"

// Store is the page → category membership source.
type Store interface {
	CategoriesForPage(ctx context.Context, pageID int64) ([]string, error)
	Replace(ctx context.Context, pageID int64, sortKey string, categories []string) error
}
