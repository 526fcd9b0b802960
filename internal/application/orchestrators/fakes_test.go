package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	emailAdapter "categorywatch/internal/adapters/email"
	"categorywatch/internal/adapters/messages"
	"categorywatch/internal/adapters/render"
	"categorywatch/internal/domain/notification"
	"categorywatch/internal/domain/user"
	"categorywatch/internal/domain/watch"
	"categorywatch/internal/domain/wikititle"
)

// --- Fake watchlist ---

type fakeWatchlist struct {
	mu       sync.Mutex
	watchers map[string][]int64 // keyed by category DB key
	errs     map[string]error
	entries  map[watch.Entry]bool
	calls    int
}

func newFakeWatchlist() *fakeWatchlist {
	return &fakeWatchlist{
		watchers: make(map[string][]int64),
		errs:     make(map[string]error),
		entries:  make(map[watch.Entry]bool),
	}
}

// FindWatchers returns the configured watchers of a title.
func (f *fakeWatchlist) FindWatchers(_ context.Context, namespace int, title string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if namespace != wikititle.NSCategory {
		return nil, fmt.Errorf("unexpected namespace %d", namespace)
	}
	if err := f.errs[title]; err != nil {
		return nil, err
	}
	return f.watchers[title], nil
}

// IsWatching reports whether Watch was called for entry.
func (f *fakeWatchlist) IsWatching(_ context.Context, entry watch.Entry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[entry], nil
}

// Watch records entry.
func (f *fakeWatchlist) Watch(_ context.Context, entry watch.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[entry] = true
	return nil
}

func (f *fakeWatchlist) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- Fake user directory ---

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]user.User
	errs  map[int64]error
	calls int
}

func newFakeUsers(users ...user.User) *fakeUsers {
	f := &fakeUsers{users: make(map[int64]user.User), errs: make(map[int64]error)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

// GetByID returns a configured user or user.ErrNotFound.
func (f *fakeUsers) GetByID(_ context.Context, id int64) (user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[id]; err != nil {
		return user.User{}, err
	}
	u, ok := f.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) lookups() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// --- Fake category source ---

type fakeCategories struct {
	pages map[int64][]string
	err   error
	calls int
}

// CategoriesForPage returns the configured categories of a page.
func (f *fakeCategories) CategoriesForPage(_ context.Context, pageID int64) ([]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[pageID], nil
}

// --- Fake mail sender ---

type fakeSender struct {
	mu      sync.Mutex
	sent    []emailAdapter.SendRequest
	failFor map[string]error // keyed by substring of the To address
	block   bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]error)}
}

// Send records the request, fails for configured recipients, or blocks until ctx is done.
func (f *fakeSender) Send(ctx context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error) {
	if f.block {
		<-ctx.Done()
		return emailAdapter.SendResult{}, ctx.Err()
	}
	for needle, err := range f.failFor {
		if strings.Contains(req.To[0], needle) {
			return emailAdapter.SendResult{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return emailAdapter.SendResult{MessageID: fmt.Sprintf("m%d", len(f.sent)), SentAt: time.Now()}, nil
}

func (f *fakeSender) requests() []emailAdapter.SendRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]emailAdapter.SendRequest(nil), f.sent...)
}

func (f *fakeSender) recipients() []string {
	var out []string
	for _, r := range f.requests() {
		out = append(out, r.To...)
	}
	return out
}

// --- Fake limiter ---

type fakeLimiter struct {
	mu    sync.Mutex
	waits int
	err   error
}

// Wait counts calls and returns the configured error.
func (f *fakeLimiter) Wait(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waits++
	return f.err
}

// --- Fixtures ---

var errBoom = errors.New("boom")

var testNow = time.Date(2026, 3, 2, 14, 5, 0, 0, time.UTC)

func testLinker() wikititle.Linker {
	return wikititle.Linker{BaseURL: "https://wiki.example.org", ArticlePath: "/wiki/$1", ScriptPath: "/index.php"}
}

func testComposeDeps(t *testing.T) ComposeDeps {
	t.Helper()
	catalog, err := messages.Load()
	require.NoError(t, err)
	return ComposeDeps{
		Messages:       catalog,
		Transformer:    render.NewTransformer(),
		Linker:         testLinker(),
		Locale:         "en",
		SiteName:       "Example Wiki",
		HelpPageURL:    "https://wiki.example.org/wiki/Help:Contents",
		ServerLocation: time.UTC,
	}
}

func testPolicy() notification.SenderPolicy {
	return notification.SenderPolicy{
		RevealEditorAddress: true,
		SystemAddress:       "wiki@example.org",
		SystemName:          "Example Wiki",
		NoReplyAddress:      "noreply@example.org",
	}
}

func watcher(id int64, name string) user.User {
	return user.User{
		ID:                    id,
		Name:                  name,
		Email:                 strings.ToLower(name) + "@example.org",
		EmailConfirmed:        true,
		NotifyOnWatchedChange: true,
	}
}

func mustTitle(t *testing.T, ns int, text string) wikititle.Title {
	t.Helper()
	title, err := wikititle.New(ns, text)
	require.NoError(t, err)
	return title
}

// flat collapses all whitespace so assertions ignore line wrapping.
func flat(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
