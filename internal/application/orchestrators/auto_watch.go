package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"categorywatch/internal/adapters/messages"
	"categorywatch/internal/domain/watch"
	"categorywatch/internal/domain/wikititle"
)

const msgAutoCategory = "categorywatch-autocat"

// WatchlistWriter maintains watchlist entries.
type WatchlistWriter interface {
	IsWatching(ctx context.Context, entry watch.Entry) (bool, error)
	Watch(ctx context.Context, entry watch.Entry) error
}

// EnsureAutoWatchInput identifies the editor.
type EnsureAutoWatchInput struct {
	EditorID int64
}

// EnsureAutoWatchDeps holds dependencies for EnsureAutoWatch.
type EnsureAutoWatchDeps struct {
	Users       UserDirectory
	Watchlist   WatchlistWriter
	Messages    MessageCatalog
	Locale      string
	UseRealName bool
}

// EnsureAutoWatchResult reports the personal category and whether it was newly watched.
type EnsureAutoWatchResult struct {
	Category wikititle.Title
	Added    bool
}

// ExecuteEnsureAutoWatch makes a registered editor watch their personal category,
// e.g. "Category:Watched by Ada". Anonymous editors are skipped.
// PRE: none
// POST: The editor watches their personal category exactly once
func ExecuteEnsureAutoWatch(ctx context.Context, input EnsureAutoWatchInput, deps EnsureAutoWatchDeps) (EnsureAutoWatchResult, error) {
	if input.EditorID == 0 {
		return EnsureAutoWatchResult{}, nil
	}
	editor, err := deps.Users.GetByID(ctx, input.EditorID)
	if err != nil {
		return EnsureAutoWatchResult{}, fmt.Errorf("auto-watch: load editor %d: %w", input.EditorID, err)
	}

	name, err := deps.Messages.Render(msgAutoCategory, deps.Locale, messages.Params(editor.DisplayName(deps.UseRealName)))
	if err != nil {
		return EnsureAutoWatchResult{}, fmt.Errorf("auto-watch: %w", err)
	}
	title, err := wikititle.Category(name)
	if err != nil {
		return EnsureAutoWatchResult{}, fmt.Errorf("auto-watch: category %q: %w", name, err)
	}

	entry := watch.ForCategory(editor.ID, title)
	watching, err := deps.Watchlist.IsWatching(ctx, entry)
	if err != nil {
		return EnsureAutoWatchResult{}, fmt.Errorf("auto-watch: %w", err)
	}
	if watching {
		return EnsureAutoWatchResult{Category: title}, nil
	}
	if err := deps.Watchlist.Watch(ctx, entry); err != nil {
		return EnsureAutoWatchResult{}, fmt.Errorf("auto-watch: %w", err)
	}
	slog.Info("catwatch_event", "event", "auto_watch_added", "user_id", editor.ID, "category", title.Text)
	return EnsureAutoWatchResult{Category: title, Added: true}, nil
}
