package main

import (
	"context"
	"database/sql"
	"flag"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"bookingsync/internal/adapters/observability"
	"bookingsync/internal/adapters/provider"
	redisad "bookingsync/internal/adapters/redis"
	"bookingsync/internal/app"
	"bookingsync/internal/shared"
	mysqlrepo "bookingsync/internal/storage/mysql"
)

const dateLayout = "2006-01-02"

func main() {
	var (
		mode  = flag.String("mode", "range", "sync mode: range | incremental | one")
		from  = flag.String("from", "", "range start, YYYY-MM-DD (default today)")
		to    = flag.String("to", "", "range end, YYYY-MM-DD (default from + 1 year)")
		since = flag.String("since", "", "incremental cutoff, RFC3339 (default 24h ago)")
		id    = flag.String("id", "", "booking id for -mode one")
	)
	flag.Parse()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv)

	ctx := context.Background()

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}

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
	svc := app.NewSyncService(client, orch, cfg.BatchDelay, cfg.RateCooldown)

	start := time.Now()
	switch *mode {
	case "range":
		f := time.Now().Truncate(24 * time.Hour)
		t := f.AddDate(1, 0, 0)
		if *from != "" {
			if f, err = time.Parse(dateLayout, *from); err != nil {
				log.Fatal().Err(err).Msg("bad -from")
			}
		}
		if *to != "" {
			if t, err = time.Parse(dateLayout, *to); err != nil {
				log.Fatal().Err(err).Msg("bad -to")
			}
		}
		stats, err := svc.RangeSync(ctx, f, t)
		report(stats.Processed, stats.Created, stats.Updated, stats.Skipped, stats.Errors, start, err)

	case "incremental":
		cutoff := time.Now().Add(-24 * time.Hour)
		if *since != "" {
			if cutoff, err = time.Parse(time.RFC3339, *since); err != nil {
				log.Fatal().Err(err).Msg("bad -since")
			}
		}
		stats, err := svc.IncrementalSync(ctx, cutoff)
		report(stats.Processed, stats.Created, stats.Updated, stats.Skipped, stats.Errors, start, err)

	case "one":
		if *id == "" {
			log.Fatal().Msg("-mode one requires -id")
		}
		res := svc.SyncOne(ctx, *id)
		log.Info().
			Str("id", *id).
			Bool("success", res.Success).
			Str("action", res.Action).
			Str("target", res.Target).
			Strs("warnings", res.Warnings).
			Dur("took", time.Since(start)).
			Msg("sync done")
		if !res.Success {
			log.Fatal().Msg("sync failed")
		}

	default:
		log.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

func report(processed, created, updated, skipped, errs int, start time.Time, err error) {
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.
		Int("processed", processed).
		Int("created", created).
		Int("updated", updated).
		Int("skipped", skipped).
		Int("errors", errs).
		Dur("took", time.Since(start)).
		Msg("sync run finished")
}
