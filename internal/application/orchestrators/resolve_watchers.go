package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"categorywatch/internal/domain/notification"
	"categorywatch/internal/domain/user"
	"categorywatch/internal/domain/wikititle"
)

// WatcherFinder lists the users watching a title.
type WatcherFinder interface {
	FindWatchers(ctx context.Context, namespace int, title string) ([]int64, error)
}

// UserDirectory loads accounts with their notification preferences.
type UserDirectory interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

// ResolveWatchersInput names the category whose audience is wanted.
type ResolveWatchersInput struct {
	Category string
	EditorID int64 // 0 for anonymous editors
}

// ResolveWatchersDeps holds dependencies for ResolveWatchers.
type ResolveWatchersDeps struct {
	Watchlist               WatcherFinder
	Users                   UserDirectory
	NotifyEditorOfOwnChange bool
}

// ExecuteResolveWatchers returns the users who should be mailed about a change to a category.
// Watchers are kept only if they want watchlist mail and have a confirmed address.
// Watchers whose account no longer exists are skipped.
// PRE: input.Category is a category name without namespace prefix
// POST: Returns recipients in watchlist order (possibly none), or an error wrapping notification.ErrLookupFailure
func ExecuteResolveWatchers(ctx context.Context, input ResolveWatchersInput, deps ResolveWatchersDeps) ([]user.User, error) {
	title, err := wikititle.Category(input.Category)
	if err != nil {
		return nil, fmt.Errorf("%w: category %q: %v", notification.ErrLookupFailure, input.Category, err)
	}

	ids, err := deps.Watchlist.FindWatchers(ctx, title.Namespace, title.DBKey())
	if err != nil {
		return nil, fmt.Errorf("%w: watchers of %s: %w", notification.ErrLookupFailure, title, err)
	}

	recipients := make([]user.User, 0, len(ids))
	for _, id := range ids {
		if !deps.NotifyEditorOfOwnChange && input.EditorID != 0 && id == input.EditorID {
			continue
		}
		u, err := deps.Users.GetByID(ctx, id)
		if errors.Is(err, user.ErrNotFound) {
			slog.Debug("catwatch_event", "event", "watcher_missing", "user_id", id, "category", title.Text)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: watcher %d of %s: %w", notification.ErrLookupFailure, id, title, err)
		}
		if !u.CanReceiveWatchNotification() {
			continue
		}
		recipients = append(recipients, u)
	}
	return recipients, nil
}
