package watchlist

import (
	"context"

	domain "categorywatch/internal/domain/watch"
)

// Store reads and maintains watchlist entries.
type Store interface {
	FindWatchers(ctx context.Context, namespace int, title string) ([]int64, error)
	IsWatching(ctx context.Context, entry domain.Entry) (bool, error)
	Watch(ctx context.Context, entry domain.Entry) error
	Unwatch(ctx context.Context, entry domain.Entry) error
}
