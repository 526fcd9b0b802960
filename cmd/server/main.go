package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // recipients' zone preferences on hosts without a zoneinfo database

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	emailPkg "categorywatch/internal/adapters/email"
	web "categorywatch/internal/adapters/http"
	"categorywatch/internal/adapters/http/perf"
	"categorywatch/internal/adapters/messages"
	"categorywatch/internal/adapters/render"
	"categorywatch/internal/adapters/storage"
	categoryStore "categorywatch/internal/adapters/storage/categorylinks"
	userStore "categorywatch/internal/adapters/storage/user"
	watchlistStore "categorywatch/internal/adapters/storage/watchlist"
	"categorywatch/internal/application/orchestrators"
	"categorywatch/internal/config"
	"categorywatch/internal/domain/notification"
	"categorywatch/internal/domain/wikititle"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load(os.Getenv("CATWATCH_CONFIG"))
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	slog.SetDefault(setupLogger(cfg))
	for _, w := range cfg.Warnings() {
		slog.Warn("config_warning", "warning", w)
	}

	// WAL mode, foreign keys and busy timeout on every pooled connection
	dsn := cfg.Database.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.Ping(); err != nil {
		log.Fatalf("database unreachable: %v", err)
	}
	if err := storage.InitDB(db); err != nil {
		log.Fatalf("failed to initialise schema: %v", err)
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	timedDB := storage.NewTimedDB(db, collector)

	users := userStore.NewSQLiteStore(timedDB)
	watchlist := watchlistStore.NewSQLiteStore(timedDB)
	links := categoryStore.NewSQLiteStore(timedDB)

	if cfg.Database.SeedDemo && !cfg.IsProduction() {
		seedDeps := orchestrators.DemoWikiSeedDeps{Users: users, Watchlist: watchlist, Categories: links}
		if err := orchestrators.ExecuteSeedDemoWiki(context.Background(), seedDeps); err != nil {
			log.Fatalf("failed to seed demo wiki: %v", err)
		}
		slog.Info("demo_wiki_seeded", "page_id", orchestrators.DemoPageID)
	}

	catalog, err := messages.Load()
	if err != nil {
		log.Fatalf("failed to load message catalogs: %v", err)
	}

	policy := notification.SenderPolicy{
		RevealEditorAddress:      cfg.Notifications.RevealEditorAddress,
		FromIsEditorWhenRevealed: cfg.Notifications.FromIsEditorWhenRevealed,
		SystemAddress:            cfg.Mail.SystemSenderAddress,
		SystemName:               cfg.Mail.SystemSenderName,
		NoReplyAddress:           cfg.Mail.NoReplyAddress,
	}

	notifyDeps := orchestrators.NotifyCategoryChangeDeps{
		Categories: links,
		Watchlist:  watchlist,
		Users:      users,
		Sender:     emailPkg.NewTimedSender(newSender(cfg), collector),
		Compose: orchestrators.ComposeDeps{
			Messages:    catalog,
			Transformer: render.NewTransformer(),
			Linker: wikititle.Linker{
				BaseURL:     cfg.Wiki.BaseURL,
				ArticlePath: cfg.Wiki.ArticlePath,
				ScriptPath:  cfg.Wiki.ScriptPath,
			},
			Locale:         cfg.Wiki.ContentLanguage,
			SiteName:       cfg.Wiki.SiteName,
			HelpPageURL:    cfg.Wiki.HelpPageURL,
			ServerLocation: cfg.Location(),
			UseRealName:    cfg.Notifications.UseRealNameInNotification,
		},
		Policy:                  policy,
		NotifyEditorOfOwnChange: cfg.Notifications.NotifyEditorOfOwnChange,
		SendTimeout:             cfg.Mail.SendTimeout,
		MaxParallelCategories:   cfg.Notifications.MaxParallelCategories,
		GenerateID:              uuid.NewString,
		Now:                     time.Now,
	}
	if cfg.Mail.SendRatePerSecond > 0 {
		notifyDeps.Limiter = rate.NewLimiter(rate.Limit(cfg.Mail.SendRatePerSecond), max(cfg.Mail.SendBurst, 1))
	}

	var autoWatch *orchestrators.EnsureAutoWatchDeps
	if cfg.Notifications.UseAutoWatchCategory {
		autoWatch = &orchestrators.EnsureAutoWatchDeps{
			Users:       users,
			Watchlist:   watchlist,
			Messages:    catalog,
			Locale:      cfg.Wiki.ContentLanguage,
			UseRealName: cfg.Notifications.AutoWatchUseRealName,
		}
	}

	handler := web.NewRouter(web.Deps{
		DB:             timedDB,
		Collector:      collector,
		Notify:         notifyDeps,
		AutoWatch:      autoWatch,
		HookSecret:     cfg.HTTP.HookSecret,
		HookRateLimit:  cfg.HTTP.HookRateLimit,
		HookRateWindow: cfg.HTTP.HookRateWindow,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown_failed", "error", err)
		}
	}()

	slog.Info("categorywatch_starting",
		"version", version,
		"addr", cfg.HTTP.Addr,
		"env", cfg.Env,
		"wiki", cfg.Wiki.BaseURL,
		"auto_watch", cfg.Notifications.UseAutoWatchCategory,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
	slog.Info("categorywatch_stopped")
}

// newSender picks Resend when an API key is configured and the no-op sender otherwise.
func newSender(cfg config.Config) emailPkg.Sender {
	from := fmt.Sprintf("%q <%s>", cfg.Mail.SystemSenderName, cfg.Mail.SystemSenderAddress)
	if cfg.Mail.ResendAPIKey != "" {
		slog.Info("email_sender_configured", "provider", "resend")
		return emailPkg.NewResendSender(cfg.Mail.ResendAPIKey, from)
	}
	if cfg.IsProduction() {
		slog.Warn("email_sender_configured", "provider", "noop", "warning", "CATWATCH_RESEND_KEY is not set; mail delivery is disabled")
	} else {
		slog.Info("email_sender_configured", "provider", "noop")
	}
	return emailPkg.NewNoopSender()
}

// setupLogger returns a JSON logger in production and a text logger elsewhere.
func setupLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
