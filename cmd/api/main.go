package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/duelpit/duelpit/internal/api"
	"github.com/duelpit/duelpit/internal/auth"
	"github.com/duelpit/duelpit/internal/config"
	"github.com/duelpit/duelpit/internal/infra/logging"
	"github.com/duelpit/duelpit/internal/infra/pgutils"
	"github.com/duelpit/duelpit/internal/jobs"
	"github.com/duelpit/duelpit/internal/notify"
	"github.com/duelpit/duelpit/internal/provision"
	accountspg "github.com/duelpit/duelpit/internal/repos/accounts/postgres"
	ledgertxpg "github.com/duelpit/duelpit/internal/repos/ledgertx/postgres"
	matchespg "github.com/duelpit/duelpit/internal/repos/matches/postgres"
	wagerspg "github.com/duelpit/duelpit/internal/repos/wagers/postgres"
	"github.com/duelpit/duelpit/internal/services/ledger"
	"github.com/duelpit/duelpit/internal/services/match"
	"github.com/duelpit/duelpit/internal/services/registry"
	"github.com/duelpit/duelpit/internal/services/settlement"
	"github.com/duelpit/duelpit/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Missing .env is fine outside local development.
	_ = godotenv.Load()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, err := pgutils.OpenDB(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Close database pool")
		return db.Close()
	})

	accountsRepo := accountspg.New(db)
	entriesRepo := ledgertxpg.New(db)
	wagersRepo := wagerspg.New(db)
	matchesRepo := matchespg.New(db)

	notifier := notify.FromConfig(cfg.NotifyWebhookURL)
	gateway := provision.NewHTTPGateway(cfg.ProvisionerURL, cfg.ProvisionerTimeout)

	// --- Services ---
	ledgerSvc := ledger.New(accountsRepo, entriesRepo)

	registrySvc := registry.New(db, registry.Config{
		Expiry:       cfg.WagerExpiry,
		LocationPool: cfg.LocationPool,
		MapPool:      cfg.MapPool,
	}, wagersRepo, matchesRepo, accountsRepo, ledgerSvc, notifier)

	settlementSvc := settlement.New(db, cfg.FeePercent, wagersRepo, accountsRepo, ledgerSvc, entriesRepo, notifier)

	matchSvc := match.New(db, match.Config{
		MaxProvisionAttempts: cfg.ProvisionerAttempts,
		ProvisionClaimTTL:    cfg.ProvisionerClaimTTL,
	}, matchesRepo, wagersRepo, settlementSvc, gateway, notifier)

	// --- Background jobs ---
	sched := jobs.NewScheduler(registrySvc, matchSvc)

	err = sched.Start(ctx)
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	shutdownqueue.Add(func(context.Context) error {
		slog.Info("Stop scheduler")
		sched.Stop()
		return nil
	})

	// --- HTTP server ---
	verifier := auth.NewTokenVerifier(cfg.JWTSecret)
	router := api.NewRouter(verifier, registrySvc, matchSvc, settlementSvc, ledgerSvc)
	srv := api.NewServer(cfg.Port, router)

	shutdownqueue.Add(func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "env", cfg.AppEnv)

	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}
