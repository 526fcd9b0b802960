package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	emailAdapter "categorywatch/internal/adapters/email"
	"categorywatch/internal/domain/category"
	"categorywatch/internal/domain/notification"
	"categorywatch/internal/domain/user"
	"categorywatch/internal/domain/wikititle"
)

// CategorySource returns a page's current category membership.
type CategorySource interface {
	CategoriesForPage(ctx context.Context, pageID int64) ([]string, error)
}

// MailSender delivers one message. email.Sender implementations satisfy it.
type MailSender interface {
	Send(ctx context.Context, req emailAdapter.SendRequest) (emailAdapter.SendResult, error)
}

// SendLimiter throttles outgoing mail. *rate.Limiter satisfies it.
type SendLimiter interface {
	Wait(ctx context.Context) error
}

// NotifyCategoryChangeInput describes one saved edit.
type NotifyCategoryChangeInput struct {
	PageID     int64
	Page       wikititle.Title
	EditorID   int64 // 0 for anonymous editors
	EditorName string
	Before     []string // nil: read from Categories; empty: the page had no categories
	After      []string
	Summary    string
	Minor      bool
	Timestamp  time.Time // zero: Now()
}

// NotifyCategoryChangeDeps holds dependencies for NotifyCategoryChange.
type NotifyCategoryChangeDeps struct {
	Categories              CategorySource
	Watchlist               WatcherFinder
	Users                   UserDirectory
	Sender                  MailSender
	Limiter                 SendLimiter // optional
	Compose                 ComposeDeps
	Policy                  notification.SenderPolicy
	NotifyEditorOfOwnChange bool
	SendTimeout             time.Duration // 0: no per-send timeout
	MaxParallelCategories   int           // <= 1: categories are processed one after another
	GenerateID              func() string
	Now                     func() time.Time
}

// ExecuteNotifyCategoryChange mails the watchers of every category an edit added the page to.
// A 1:1 category swap is a move and notifies only the destination's watchers.
// Failures are collected per category and recipient; they never abort sibling work.
// PRE: input.Page is the edited page; deps collaborators are non-nil except Limiter
// POST: Returns a report of what was sent and every failure; no change means no lookups and no mail
func ExecuteNotifyCategoryChange(ctx context.Context, input NotifyCategoryChangeInput, deps NotifyCategoryChangeDeps) notification.Report {
	report := notification.Report{DispatchID: deps.GenerateID()}

	before := input.Before
	if before == nil && deps.Categories != nil && input.PageID > 0 {
		loaded, err := deps.Categories.CategoriesForPage(ctx, input.PageID)
		if err != nil {
			report.Failures = append(report.Failures, notification.Failure{
				Stage: notification.StageLoadingCategories,
				Err:   fmt.Errorf("%w: categories of page %d: %w", notification.ErrLookupFailure, input.PageID, err),
			})
			logReport(report)
			return report
		}
		before = loaded
	}

	change := category.Classify(category.Diff(before, input.After))
	report.Change = change.Kind
	if change.Kind == category.NoChange {
		slog.Debug("catwatch_event", "event", "no_category_change", "dispatch_id", report.DispatchID, "page", input.Page.PrefixedText())
		return report
	}

	editor, err := resolveEditor(ctx, input, deps.Users)
	if err != nil {
		report.Failures = append(report.Failures, notification.Failure{Stage: notification.StageResolvingEditor, Err: err})
		logReport(report)
		return report
	}

	timestamp := input.Timestamp
	if timestamp.IsZero() {
		timestamp = deps.Now()
	}
	nctx := notification.Context{
		DispatchID: report.DispatchID,
		Editor:     editor,
		Page:       input.Page,
		PageURL:    deps.Compose.Linker.FullURL(input.Page),
		Summary:    input.Summary,
		Minor:      input.Minor,
		Timestamp:  timestamp,
		Sender:     deps.Policy.Resolve(editor),
		Change:     change,
	}

	slog.Info("catwatch_event",
		"event", "category_change_detected",
		"dispatch_id", report.DispatchID,
		"page", input.Page.PrefixedText(),
		"kind", change.Kind.String(),
		"editor", editor.Name,
	)

	targets := change.Targets()
	outcomes := make([]notification.CategoryOutcome, len(targets))
	failures := make([][]notification.Failure, len(targets))

	workers := deps.MaxParallelCategories
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, target := range targets {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i], failures[i] = notifyCategory(ctx, nctx, target, deps)
		}(i, target)
	}
	wg.Wait()

	report.Categories = outcomes
	for _, f := range failures {
		report.Failures = append(report.Failures, f...)
	}
	logReport(report)
	return report
}

// resolveEditor loads the editing account, or builds the anonymous identity.
func resolveEditor(ctx context.Context, input NotifyCategoryChangeInput, users UserDirectory) (user.User, error) {
	if input.EditorID == 0 {
		return user.Anonymous(input.EditorName), nil
	}
	editor, err := users.GetByID(ctx, input.EditorID)
	if err != nil {
		return user.User{}, fmt.Errorf("%w: editor %d: %w", notification.ErrLookupFailure, input.EditorID, err)
	}
	return editor, nil
}

// notifyCategory runs resolve → compose → dispatch for one affected category.
func notifyCategory(ctx context.Context, nctx notification.Context, target string, deps NotifyCategoryChangeDeps) (notification.CategoryOutcome, []notification.Failure) {
	outcome := notification.CategoryOutcome{Category: target}
	var failures []notification.Failure

	recipients, err := ExecuteResolveWatchers(ctx, ResolveWatchersInput{
		Category: target,
		EditorID: nctx.Editor.ID,
	}, ResolveWatchersDeps{
		Watchlist:               deps.Watchlist,
		Users:                   deps.Users,
		NotifyEditorOfOwnChange: deps.NotifyEditorOfOwnChange,
	})
	if err != nil {
		return outcome, append(failures, notification.Failure{Category: target, Stage: notification.StageResolvingWatchers, Err: err})
	}
	outcome.Recipients = len(recipients)
	if len(recipients) == 0 {
		return outcome, nil
	}

	notice, err := BuildCategoryNotice(nctx, target, deps.Compose)
	if err != nil {
		return outcome, append(failures, notification.Failure{Category: target, Stage: notification.StageComposing, Err: err})
	}

	for _, recipient := range recipients {
		msg, err := notice.ComposeFor(recipient)
		if err != nil {
			failures = append(failures, notification.Failure{Category: target, RecipientID: recipient.ID, Stage: notification.StageComposing, Err: err})
			continue
		}
		if err := deliver(ctx, msg, deps); err != nil {
			slog.Warn("catwatch_event",
				"event", "notification_failed",
				"dispatch_id", nctx.DispatchID,
				"category", target,
				"recipient_id", recipient.ID,
				"error", err,
			)
			failures = append(failures, notification.Failure{Category: target, RecipientID: recipient.ID, Stage: notification.StageDispatching, Err: err})
			continue
		}
		outcome.Sent++
		slog.Info("catwatch_event",
			"event", "notification_sent",
			"dispatch_id", nctx.DispatchID,
			"category", target,
			"recipient_id", recipient.ID,
			"html", msg.HasHTML(),
		)
	}
	return outcome, failures
}

// deliver hands one message to the transport, waiting for the limiter first.
// The send timeout covers the transport call only.
func deliver(ctx context.Context, msg notification.OutboundMessage, deps NotifyCategoryChangeDeps) error {
	if deps.Limiter != nil {
		if err := deps.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: throttled: %w", notification.ErrDeliveryFailure, err)
		}
	}
	sendCtx := ctx
	if deps.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, deps.SendTimeout)
		defer cancel()
	}
	_, err := deps.Sender.Send(sendCtx, emailAdapter.SendRequest{
		To:      []string{msg.To},
		From:    msg.From,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", notification.ErrDeliveryFailure, err)
	}
	return nil
}

func logReport(r notification.Report) {
	level := slog.LevelInfo
	if len(r.Failures) > 0 {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "catwatch_event",
		"event", "dispatch_complete",
		"dispatch_id", r.DispatchID,
		"kind", r.Change.String(),
		"categories", len(r.Categories),
		"sent", r.Sent(),
		"failures", len(r.Failures),
	)
}
