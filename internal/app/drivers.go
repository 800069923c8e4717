package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"bookingsync/internal/domain"
)

// Provider status groups. Cancelled bookings live behind a different
// upstream filter than active/lead/confirmed ones, so a full sync runs
// both queries.
var (
	cancelledStatuses = []string{"cancelled", "black"}
	activeStatuses    = []string{"new", "confirmed", "tentative"}
)

const (
	// DefaultRateCooldown is how long a driver pauses after the provider
	// answers 429 before retrying the same batch.
	DefaultRateCooldown = 6 * time.Minute
	// maxFetchAttempts bounds rate-limit retries for one batch.
	maxFetchAttempts = 5
	// recordBurst is how many records are processed between smoothing
	// delays.
	recordBurst = 25
)

// SyncService drives range, incremental and single-entity syncs. All
// work is sequential against the provider's shared rate limiter; the
// inter-batch delay smooths the call rate on top of that.
type SyncService struct {
	provider     domain.ProviderClient
	orch         *Orchestrator
	batchDelay   time.Duration
	rateCooldown time.Duration
	sleep        func(context.Context, time.Duration) error
}

func NewSyncService(p domain.ProviderClient, orch *Orchestrator, batchDelay, rateCooldown time.Duration) *SyncService {
	if rateCooldown <= 0 {
		rateCooldown = DefaultRateCooldown
	}
	return &SyncService{
		provider:     p,
		orch:         orch,
		batchDelay:   batchDelay,
		rateCooldown: rateCooldown,
		sleep:        sleepCtx,
	}
}

// RangeSync fetches by arrival-date window, cancelled group first, then
// the active group, running every record through the orchestrator. A
// failed record bumps the error counter; it never aborts the run.
func (s *SyncService) RangeSync(ctx context.Context, from, to time.Time) (domain.RangeStats, error) {
	log.Info().Time("from", from).Time("to", to).Msg("range sync starting")

	var stats domain.RangeStats
	var errs []error
	for _, group := range [][]string{cancelledStatuses, activeStatuses} {
		groupStats, err := s.runFilter(ctx, domain.BookingFilter{
			Statuses:    group,
			ArrivalFrom: from,
			ArrivalTo:   to,
		})
		stats.Merge(groupStats)
		if err != nil {
			errs = append(errs, err)
		}
		if err := s.sleep(ctx, s.batchDelay); err != nil {
			return stats, err
		}
	}

	log.Info().
		Int("processed", stats.Processed).
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("skipped", stats.Skipped).
		Int("errors", stats.Errors).
		Msg("range sync completed")
	return stats, errors.Join(errs...)
}

// IncrementalSync is the frequent re-run variant, filtered by the
// provider's modified-since timestamp.
func (s *SyncService) IncrementalSync(ctx context.Context, since time.Time) (domain.RangeStats, error) {
	log.Info().Time("since", since).Msg("incremental sync starting")
	stats, err := s.runFilter(ctx, domain.BookingFilter{ModifiedSince: since})
	log.Info().
		Int("processed", stats.Processed).
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("errors", stats.Errors).
		Msg("incremental sync completed")
	return stats, err
}

// SyncOne is the single-entity path used by webhooks and manual
// re-syncs.
func (s *SyncService) SyncOne(ctx context.Context, externalID string) domain.SyncResult {
	return s.orch.SyncByID(ctx, externalID)
}

func (s *SyncService) runFilter(ctx context.Context, f domain.BookingFilter) (domain.RangeStats, error) {
	var stats domain.RangeStats
	payloads, err := s.fetchWithCooldown(ctx, f)
	if err != nil {
		return stats, err
	}

	for i, payload := range payloads {
		stats.Add(s.orch.SyncPayload(ctx, payload))

		if stats.Processed%100 == 0 {
			log.Info().
				Int("processed", stats.Processed).
				Int("total", len(payloads)).
				Int("errors", stats.Errors).
				Msg("sync progress")
		}
		// Smooth the write rate between record bursts.
		if (i+1)%recordBurst == 0 {
			if err := s.sleep(ctx, s.batchDelay); err != nil {
				return stats, err
			}
		}
	}
	return stats, nil
}

// fetchWithCooldown retries the same batch after the fixed rate-limit
// cooldown instead of abandoning it. Other errors surface immediately.
func (s *SyncService) fetchWithCooldown(ctx context.Context, f domain.BookingFilter) ([]map[string]any, error) {
	for attempt := 1; ; attempt++ {
		payloads, err := s.provider.ListBookings(ctx, f)
		if err == nil {
			log.Info().Int("count", len(payloads)).Strs("statuses", f.Statuses).Msg("fetched bookings")
			return payloads, nil
		}
		if !errors.Is(err, domain.ErrRateLimited) {
			return nil, err
		}
		if attempt >= maxFetchAttempts {
			return nil, err
		}
		log.Warn().
			Int("attempt", attempt).
			Dur("cooldown", s.rateCooldown).
			Msg("provider rate limit hit, cooling down before retrying batch")
		if err := s.sleep(ctx, s.rateCooldown); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
