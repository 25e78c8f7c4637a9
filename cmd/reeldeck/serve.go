package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/reeldeck/reeldeck/internal/config"
	"github.com/reeldeck/reeldeck/internal/errors"
	"github.com/reeldeck/reeldeck/internal/server"
	"github.com/reeldeck/reeldeck/pkg/catalog"
	"github.com/reeldeck/reeldeck/pkg/identity"
	"github.com/reeldeck/reeldeck/pkg/session"
	"github.com/reeldeck/reeldeck/pkg/userdata"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the reeldeck server",
		Long: `Start the HTTP and WebSocket server.

Configuration is read from reeldeck.json in the current directory
unless --config points elsewhere. Secrets and per-deployment settings
can be overridden with REELDECK_* environment variables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.ConfigFileName, "Path to reeldeck.json")

	return cmd
}

func runServe(configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	stateDir, err := cfg.StateDirPath()
	if err != nil {
		return err
	}
	markers, err := identity.NewFileStorage(stateDir)
	if err != nil {
		return errors.New("E110").Wrap(err)
	}
	guestID, err := identity.AnonymousID(markers)
	if err != nil {
		return errors.New("E110").Wrap(err)
	}

	adapter, cleanup, err := buildAdapter(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	guestAdapter, guestCleanup, err := buildGuestAdapter(stateDir)
	if err != nil {
		return err
	}
	defer guestCleanup()

	var metrics *session.Metrics
	if cfg.Metrics.Enabled {
		metrics = session.NewMetrics(
			session.WithMetricsNamespace(cfg.Metrics.Namespace))
	}

	guestStore := userdata.NewStore(userdata.ScopeGuest, guestAdapter,
		userdata.WithStoreLogger(logger),
		userdata.WithSaveTimeout(cfg.SaveTimeout()),
		userdata.WithSaveFailureHook(func() { metrics.RecordPersistFailure("guest") }))
	accountStore := userdata.NewStore(userdata.ScopeAccount, adapter,
		userdata.WithStoreLogger(logger),
		userdata.WithSaveTimeout(cfg.SaveTimeout()),
		userdata.WithSaveFailureHook(func() { metrics.RecordPersistFailure("account") }))

	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}

	observer := identity.NewObserver(provider, identity.NewCache(markers),
		identity.WithConfirmTimeout(cfg.ConfirmTimeout()),
		identity.WithObserverLogger(logger))

	syncs := session.NewSyncManager(
		session.WithSyncLogger(logger),
		session.WithSyncMetrics(metrics))

	coord := session.NewCoordinator(session.CoordinatorConfig{
		GuestStore:   guestStore,
		AccountStore: accountStore,
		GuestID:      guestID,
		Observer:     observer,
		Syncs:        syncs,
	},
		session.WithCoordinatorLogger(logger),
		session.WithCoordinatorMetrics(metrics),
		session.WithSyncTimeout(cfg.SyncTimeout()))

	var titles *catalog.Client
	if cfg.Catalog.APIKey != "" {
		titles = catalog.NewClient(cfg.Catalog.APIKey,
			catalog.WithBaseURL(cfg.Catalog.BaseURL),
			catalog.WithRateLimit(rate.Limit(cfg.Catalog.RateLimit), cfg.Catalog.Burst),
			catalog.WithClientLogger(logger))
	} else {
		logger.Warn("no catalog API key configured, catalog routes disabled")
	}

	srv := server.New(server.Config{
		Addr:        cfg.Address(),
		Coordinator: coord,
		Provider:    provider,
		Catalog:     titles,
	},
		server.WithLogger(logger),
		server.WithMetrics(cfg.Metrics.Enabled))

	observer.Start()
	coord.Start()

	printBanner()
	success("reeldeck %s", version)
	info("listening on http://%s", cfg.Address())
	info("storage backend: %s", cfg.Storage.Backend)
	info("device identity: %s", guestID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown incomplete", "error", err)
	}
	if err := coord.Shutdown(shutdownCtx); err != nil {
		logger.Warn("session shutdown incomplete", "error", err)
	}
	observer.Close()
	return nil
}

// buildGuestAdapter opens the SQLite database that persists guest data in
// the state directory.
func buildGuestAdapter(stateDir string) (userdata.Adapter, func(), error) {
	path := filepath.Join(stateDir, "guest.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, func() {}, errors.New("E210").
			WithDetail("Could not open guest database " + path).
			Wrap(err)
	}

	adapter := userdata.NewSQLAdapter(db,
		userdata.WithSQLDialect(userdata.DialectSQLite))
	if err := adapter.CreateTable(context.Background()); err != nil {
		db.Close()
		return nil, func() {}, errors.New("E210").
			WithDetail("Could not prepare guest database " + path).
			Wrap(err)
	}
	return adapter, func() { db.Close() }, nil
}

// buildAdapter constructs the account persistence backend. The returned
// cleanup closes whatever connection the backend holds.
func buildAdapter(cfg *config.Config, logger *slog.Logger) (userdata.Adapter, func(), error) {
	nop := func() {}

	switch cfg.Storage.Backend {
	case "memory":
		return userdata.NewMemoryAdapter(), nop, nil

	case "postgres", "sqlite":
		driver, dialect := "postgres", userdata.DialectPostgreSQL
		if cfg.Storage.Backend == "sqlite" {
			driver, dialect = "sqlite3", userdata.DialectSQLite
		}

		db, err := sql.Open(driver, cfg.Storage.DSN)
		if err != nil {
			return nil, nop, errors.New("E210").
				WithDetail("Could not open " + cfg.Storage.Backend + " connection").
				Wrap(err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nop, errors.New("E210").
				WithDetail("Could not reach the " + cfg.Storage.Backend + " database").
				Wrap(err)
		}

		adapter := userdata.NewSQLAdapter(db,
			userdata.WithSQLDialect(dialect),
			userdata.WithSQLTableName(cfg.Storage.Table))
		if err := adapter.CreateTable(context.Background()); err != nil {
			db.Close()
			return nil, nop, errors.New("E210").
				WithDetail("Could not create table " + cfg.Storage.Table).
				Wrap(err)
		}
		return adapter, func() { db.Close() }, nil

	case "s3":
		client := s3.New(s3.Options{
			Region: os.Getenv("AWS_REGION"),
			Credentials: aws.CredentialsProviderFunc(
				func(ctx context.Context) (aws.Credentials, error) {
					return aws.Credentials{
						AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
						SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
						SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
					}, nil
				}),
		})
		adapter := userdata.NewS3Adapter(client, cfg.Storage.Bucket,
			userdata.WithS3Prefix(cfg.Storage.Prefix))
		return adapter, nop, nil

	case "redis":
		return nil, nop, errors.New("E103").
			WithDetail("The redis adapter is library-only; embed it with a go-redis client").
			WithSuggestion("Use the postgres, sqlite, s3, or memory backend")

	default:
		return nil, nop, errors.New("E103").
			WithDetail("Unknown backend " + cfg.Storage.Backend)
	}
}

// buildProvider constructs the identity provider. Without an issuer the
// server runs guest-only.
func buildProvider(cfg *config.Config, logger *slog.Logger) (identity.Provider, error) {
	if cfg.Identity.IssuerURL == "" {
		logger.Warn("no identity issuer configured, running guest-only")
		return identity.NewNopProvider(), nil
	}

	oidcProvider, err := identity.NewOIDCProvider(context.Background(), identity.OIDCConfig{
		IssuerURL:    cfg.Identity.IssuerURL,
		ClientID:     cfg.Identity.ClientID,
		ClientSecret: cfg.Identity.ClientSecret,
		RedirectURL:  cfg.Identity.RedirectURL,
		Logger:       logger,
	})
	if err != nil {
		return nil, errors.New("E300").
			WithDetail("Could not discover issuer " + cfg.Identity.IssuerURL).
			Wrap(err)
	}
	return identity.NewTokenSession(oidcProvider, ""), nil
}
