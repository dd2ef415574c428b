package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/traveal-app/traveal-api/internal/adapters/httpapi"
	memnotificationrepo "github.com/traveal-app/traveal-api/internal/adapters/memory/notificationrepo"
	memtokenrepo "github.com/traveal-app/traveal-api/internal/adapters/memory/tokenrepo"
	memtriprepo "github.com/traveal-app/traveal-api/internal/adapters/memory/triprepo"
	memuserrepo "github.com/traveal-app/traveal-api/internal/adapters/memory/userrepo"
	"github.com/traveal-app/traveal-api/internal/adapters/postgres"
	pgnotificationrepo "github.com/traveal-app/traveal-api/internal/adapters/postgres/notificationrepo"
	pgtokenrepo "github.com/traveal-app/traveal-api/internal/adapters/postgres/tokenrepo"
	pgtriprepo "github.com/traveal-app/traveal-api/internal/adapters/postgres/triprepo"
	pguserrepo "github.com/traveal-app/traveal-api/internal/adapters/postgres/userrepo"
	"github.com/traveal-app/traveal-api/internal/app/auth"
	"github.com/traveal-app/traveal-api/internal/app/authz"
	"github.com/traveal-app/traveal-api/internal/app/notifications"
	"github.com/traveal-app/traveal-api/internal/app/trips"
	"github.com/traveal-app/traveal-api/internal/platform/auth/tokens"
	platformclock "github.com/traveal-app/traveal-api/internal/platform/clock"
	"github.com/traveal-app/traveal-api/internal/platform/config"
	notificationrepoport "github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
	tokenrepoport "github.com/traveal-app/traveal-api/internal/ports/out/tokenrepo"
	triprepoport "github.com/traveal-app/traveal-api/internal/ports/out/triprepo"
	userrepoport "github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.Env == "development" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	clk := platformclock.NewSystemClock()

	var (
		userRepo  userrepoport.Repository
		tripRepo  triprepoport.Repository
		tokenRepo tokenrepoport.Repository
		notifRepo notificationrepoport.Repository
		cleanup   func()
	)
	switch cfg.StorageBackend {
	case "postgres":
		pool, err := postgres.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			slog.Error("postgres setup failed", "error", err)
			os.Exit(1)
		}
		if err := postgres.EnsureSchema(context.Background(), pool); err != nil {
			pool.Close()
			slog.Error("schema migration failed", "error", err)
			os.Exit(1)
		}
		cleanup = pool.Close

		userRepo = pguserrepo.NewRepo(pool)
		tripRepo = pgtriprepo.NewRepo(pool)
		tokenRepo = pgtokenrepo.NewRepo(pool)
		notifRepo = pgnotificationrepo.NewRepo(pool)
	default:
		userRepo = memuserrepo.NewRepo()
		tripRepo = memtriprepo.NewRepo()
		tokenRepo = memtokenrepo.NewRepo()
		notifRepo = memnotificationrepo.NewRepo()
	}
	if cleanup != nil {
		defer cleanup()
	}

	tokenSvc := tokens.NewService(tokens.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.JWTRefreshTTL,
	}, clk)
	gate := authz.NewGate(tokenSvc, userRepo)

	authSvc := auth.NewService(userRepo, tokenRepo, tripRepo, notifRepo, tokenSvc, clk)
	tripSvc := trips.NewService(tripRepo, notifRepo, clk, trips.Limits{
		AccuracyThresholdMeters: cfg.LocationAccuracyThreshold,
		MinDuration:             cfg.TripMinDuration,
		MinPoints:               cfg.TripMinPoints,
		MaxSpeedKmh:             cfg.TripMaxSpeedKmh,
	})
	notifSvc := notifications.NewService(notifRepo)

	handler := httpapi.NewRouter(
		cfg,
		httpapi.NewAuthMiddleware(gate),
		httpapi.NewAuthHandlers(authSvc, gate),
		httpapi.NewTripHandlers(tripSvc),
		httpapi.NewNotificationHandlers(notifSvc),
	)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadTimeout:       cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Background sweep of expired refresh token records.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweepExpiredTokens(sweepCtx, tokenRepo, clk)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("api listening", "port", cfg.ServerPort, "backend", cfg.StorageBackend, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
}

func sweepExpiredTokens(ctx context.Context, repo tokenrepoport.Repository, clk interface{ Now() time.Time }) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx, clk.Now())
			if err != nil {
				slog.Warn("refresh token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired refresh tokens removed", "count", n)
			}
		}
	}
}
