package orchestrators

import (
	"context"
	"fmt"
	"log/slog"

	"categorywatch/internal/domain/user"
	"categorywatch/internal/domain/watch"
	"categorywatch/internal/domain/wikititle"
)

// DemoWikiSeedDeps holds stores needed for demo data seeding.
type DemoWikiSeedDeps struct {
	Users      demoUserStore
	Watchlist  demoWatchlistStore
	Categories demoCategoryStore
}

type demoUserStore interface {
	Save(ctx context.Context, u user.User) error
}

type demoWatchlistStore interface {
	Watch(ctx context.Context, entry watch.Entry) error
}

type demoCategoryStore interface {
	Replace(ctx context.Context, pageID int64, sortKey string, categories []string) error
}

// DemoPageID is the page seeded into "Birds of prey" for local testing of the edit hook.
const DemoPageID = 1

func demoUsers() []user.User {
	return []user.User{
		{ID: 1, Name: "Ada", RealName: "Ada Lovelace", Email: "ada@example.org", EmailConfirmed: true, NotifyOnWatchedChange: true, RevealAddress: true},
		{ID: 2, Name: "Grace", RealName: "Grace Hopper", Email: "grace@example.org", EmailConfirmed: true, NotifyOnWatchedChange: true, TimeCorrection: "ZoneInfo|60|Europe/Berlin"},
		{ID: 3, Name: "Linus", Email: "linus@example.org", NotifyOnWatchedChange: true},
	}
}

// ExecuteSeedDemoWiki fills an empty development database with a few users, watches and one categorised page.
// It is idempotent: users are upserted, watches ignored if present, links replaced.
// PRE: Schema is initialised; development mode only
// POST: Users 1-3 exist; Ada and Grace watch "Birds of prey" and "Falcons"; page 1 is in "Birds of prey"
func ExecuteSeedDemoWiki(ctx context.Context, deps DemoWikiSeedDeps) error {
	for _, u := range demoUsers() {
		if err := deps.Users.Save(ctx, u); err != nil {
			return fmt.Errorf("seed demo user %s: %w", u.Name, err)
		}
	}

	for _, userID := range []int64{1, 2} {
		for _, name := range []string{"Birds of prey", "Falcons"} {
			title, err := wikititle.Category(name)
			if err != nil {
				return err
			}
			if err := deps.Watchlist.Watch(ctx, watch.ForCategory(userID, title)); err != nil {
				return fmt.Errorf("seed demo watch %d/%s: %w", userID, name, err)
			}
		}
	}

	if err := deps.Categories.Replace(ctx, DemoPageID, "Peregrine falcon", []string{"Birds of prey"}); err != nil {
		return fmt.Errorf("seed demo page: %w", err)
	}

	slog.Info("catwatch_event", "event", "demo_wiki_seeded", "users", len(demoUsers()))
	return nil
}
