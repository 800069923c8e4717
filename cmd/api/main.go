package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	server "bookingsync/internal/adapters/http_server"
	"bookingsync/internal/adapters/observability"
	"bookingsync/internal/adapters/provider"
	redisad "bookingsync/internal/adapters/redis"
	"bookingsync/internal/app"
	"bookingsync/internal/shared"
	mysqlrepo "bookingsync/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// db
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("database connection ok")

	// deps
	repo := mysqlrepo.New(db)
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	client, err := provider.New(provider.Config{
		BaseURL:     cfg.ProviderBase,
		Token:       cfg.ProviderToken,
		MaxRequests: cfg.RateLimitMax,
		Window:      cfg.RateLimitWindow,
		MaxRetries:  cfg.RetryMax,
		RetryBase:   cfg.RetryBase,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider client")
	}

	names := app.NewPropertyNames(client, cache, int(cfg.CacheTTL.Seconds()))
	orch := app.NewOrchestrator(client, repo, names, cfg.SyncCooldown)
	syncSvc := app.NewSyncService(client, orch, cfg.BatchDelay, cfg.RateCooldown)
	deb := app.NewDebouncer(ctx, cfg.DebounceWindow, func(ctx context.Context, id string, latest map[string]any) {
		orch.SyncFromWebhook(ctx, id, latest)
	})
	defer deb.Stop()

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Debounce: deb,
		Sync:     syncSvc,
		Provider: client,
		DB:       db,
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		// drain pending webhook work before the listener goes away
		deb.Flush()
		return httpSrv.Shutdown(shutCtx)
	})

	// periodic incremental sync; catches changes webhooks missed
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		last := time.Now().Add(-cfg.SyncInterval)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				since := last
				last = time.Now()
				stats, err := syncSvc.IncrementalSync(gctx, since)
				if err != nil {
					log.Error().Err(err).Msg("incremental sync finished with errors")
				}
				log.Info().
					Time("since", since).
					Int("processed", stats.Processed).
					Int("created", stats.Created).
					Int("updated", stats.Updated).
					Int("errors", stats.Errors).
					Msg("incremental sync done")
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("shutdown complete")
}
