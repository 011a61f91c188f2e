package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/jask/finbridge/internal/config"
	"github.com/jask/finbridge/internal/database"
	"github.com/jask/finbridge/internal/database/repository"
	"github.com/jask/finbridge/internal/notify"
	"github.com/jask/finbridge/internal/secrets"
	"github.com/jask/finbridge/internal/service"
	"github.com/jask/finbridge/internal/simplefin"
	"github.com/jask/finbridge/internal/target"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app holds the wiring shared by every command.
type app struct {
	cfg      config.Config
	db       *sql.DB
	logger   *log.Logger
	secrets  *secrets.Store
	resolver config.Resolver
	notifier *notify.Dispatcher

	settings      *repository.SettingRepo
	accounts      *repository.AccountRepo
	linkages      *repository.LinkageRepo
	categories    *repository.CategoryRepo
	rules         *repository.RuleRepo
	notifications *repository.BudgetNotificationRepo
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log.Level)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := database.SeedDefaults(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed defaults: %w", err)
	}

	store, err := secrets.Default()
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("secrets: %w", err)
	}
	settings := repository.NewSettingRepo(db)

	channels := []notify.Channel{notify.LogChannel{Logger: logger}}
	if url := strings.TrimSpace(cfg.Notify.WebhookURL); url != "" {
		channels = append(channels, &notify.Webhook{
			URL:    url,
			Secret: cfg.Notify.WebhookSecret,
			Client: &http.Client{Timeout: cfg.Notify.Timeout},
		})
	}

	return &app{
		cfg:           cfg,
		db:            db,
		logger:        logger,
		secrets:       store,
		resolver:      config.Resolver{Settings: settings, Secrets: store},
		notifier:      notify.NewDispatcher(logger, cfg.Notify.Timeout, channels...),
		settings:      settings,
		accounts:      repository.NewAccountRepo(db),
		linkages:      repository.NewLinkageRepo(db),
		categories:    repository.NewCategoryRepo(db),
		rules:         repository.NewRuleRepo(db),
		notifications: repository.NewBudgetNotificationRepo(db),
	}, nil
}

func (a *app) Close() error { return a.db.Close() }

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func (a *app) openSource(ctx context.Context) (service.Source, error) {
	c, err := simplefin.NewFromSettings(ctx, a.resolver, a.cfg.Source, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (a *app) openTarget(ctx context.Context) (*target.Store, error) {
	return target.OpenFromSettings(ctx, a.resolver, a.cfg.Target)
}

func (a *app) syncService() *service.SyncService {
	return &service.SyncService{
		Linkages:      a.linkages,
		Accounts:      a.accounts,
		Categories:    a.categories,
		Rules:         a.rules,
		Settings:      a.settings,
		Notifications: a.notifications,
		OpenSource:    a.openSource,
		OpenTarget:    a.openTarget,
		Notifier:      a.notifier,
		Guard:         service.NewRunGuard(),
		Logger:        a.logger,
		Config:        a.cfg.Sync,
	}
}

func (a *app) accountService() *service.AccountService {
	return &service.AccountService{
		Accounts:   a.accounts,
		Linkages:   a.linkages,
		OpenSource: a.openSource,
		OpenTarget: a.openTarget,
		Logger:     a.logger,
	}
}

// withApp runs fn with a fully wired app and closes it afterwards.
func withApp(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, args)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "finbridge",
		Short:        "Sync SimpleFIN accounts into a Maybe ledger",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newSyncCmd(),
		newStatusCmd(),
		newBudgetsCmd(),
		newAccountsCmd(),
		newLinkCmd(),
		newLinkagesCmd(),
		newSetupTokenCmd(),
		newCategoriesCmd(),
		newRulesCmd(),
		newSettingsCmd(),
		newResetCmd(),
	)
	return root
}
