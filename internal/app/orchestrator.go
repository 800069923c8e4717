package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"bookingsync/internal/adapters/observability"
	"bookingsync/internal/domain"
)

// TestIDPrefix marks synthetic booking ids used by monitoring probes;
// syncing one is always a no-op.
const TestIDPrefix = "TEST-"

// DefaultSyncCooldown is the recency-guard window: a booking synced more
// recently than this is not re-processed.
const DefaultSyncCooldown = 2 * time.Minute

// Orchestrator turns one upstream payload into a persisted booking:
// extract, classify, validate, merge message history, then an idempotent
// upsert guarded by the recency check. It never lets an error escape its
// boundary; failures come back inside the SyncResult.
type Orchestrator struct {
	provider domain.ProviderClient
	repo     domain.BookingRepository
	names    *PropertyNames
	cooldown time.Duration
	now      func() time.Time
}

func NewOrchestrator(p domain.ProviderClient, r domain.BookingRepository, names *PropertyNames, cooldown time.Duration) *Orchestrator {
	if cooldown <= 0 {
		cooldown = DefaultSyncCooldown
	}
	return &Orchestrator{provider: p, repo: r, names: names, cooldown: cooldown, now: time.Now}
}

// SyncPayload processes one raw booking payload end to end.
func (o *Orchestrator) SyncPayload(ctx context.Context, payload map[string]any) domain.SyncResult {
	externalID := ExternalID(payload)
	st, classified := Classify(lookupStr(payload, "status"))
	target := targetFor(st, classified)
	if externalID == "" {
		log.Warn().Msg("booking payload missing id, skipped")
		return o.report(domain.SyncResult{Success: false, Action: domain.ActionSkipped, Target: target,
			Warnings: []string{"missing external id"}})
	}

	// Load the persisted record; a load failure degrades to syncing
	// without history rather than failing the record.
	existing, findErr := o.repo.FindByExternalID(ctx, externalID)
	found := findErr == nil
	if findErr != nil && !errors.Is(findErr, domain.ErrNotFound) {
		log.Error().Err(findErr).Str("bookingId", externalID).Msg("load persisted booking failed, syncing without history")
	}

	// Recency guard: suppress duplicate processing from near-simultaneous
	// webhook/poll races. Not a lock; it only covers the cooldown window.
	if found {
		if age := o.now().Sub(existing.LastSyncedAt); age < o.cooldown {
			log.Debug().Str("bookingId", externalID).Dur("age", age).Msg("synced recently, skipping")
			return o.report(domain.SyncResult{Success: true, Action: domain.ActionSkippedRecent, Target: target})
		}
	}

	b, warnings := o.buildBooking(ctx, externalID, payload, st, classified)
	if found {
		b.Messages = MergeMessages(existing.Messages, b.Messages)
	}

	persistErrs := PersistErrors(b)
	warnings = append(warnings, persistErrs...)

	// Best-effort persist: validation failures surface as a failed sync,
	// but the record is still written when it has an identity at all.
	created, err := o.repo.Upsert(ctx, b)
	if err != nil {
		log.Error().Err(err).
			Str("bookingId", externalID).
			Str("status", b.Status).
			Str("target", target).
			Msg("booking upsert failed")
		return o.report(domain.SyncResult{Success: false, Action: domain.ActionSkipped, Target: target, Warnings: warnings})
	}

	action := domain.ActionUpdated
	if created {
		action = domain.ActionCreated
	}
	res := domain.SyncResult{Success: len(persistErrs) == 0, Action: action, Target: target, Warnings: warnings}
	log.Debug().Str("bookingId", externalID).Str("action", action).Str("target", target).Msg("booking synced")
	return o.report(res)
}

// SyncByID fetches one booking from the provider and syncs it. Used by
// the webhook and manual paths.
func (o *Orchestrator) SyncByID(ctx context.Context, externalID string) domain.SyncResult {
	if strings.HasPrefix(externalID, TestIDPrefix) {
		return domain.SyncResult{Success: true, Action: domain.ActionSkipped, Target: domain.TargetBooking}
	}
	payload, err := o.provider.GetBooking(ctx, externalID)
	if err != nil {
		log.Warn().Err(err).Str("bookingId", externalID).Msg("fetch booking failed")
		return o.report(domain.SyncResult{Success: false, Action: domain.ActionSkipped, Target: domain.TargetBooking,
			Warnings: []string{err.Error()}})
	}
	return o.SyncPayload(ctx, payload)
}

// webhookRetryDelays staggers the webhook processing pass: immediate,
// then 10s/20s/30s before giving up.
var webhookRetryDelays = []time.Duration{0, 10 * time.Second, 20 * time.Second, 30 * time.Second}

// SyncFromWebhook is the processing pass behind the debouncer. The
// provider is the source of truth; the webhook payload is only a
// fallback for bookings the provider no longer returns (brand-new or
// already purged). A booking that disappeared upstream but exists
// locally is marked cancelled rather than deleted.
func (o *Orchestrator) SyncFromWebhook(ctx context.Context, externalID string, latest map[string]any) domain.SyncResult {
	if strings.HasPrefix(externalID, TestIDPrefix) {
		return domain.SyncResult{Success: true, Action: domain.ActionSkipped, Target: domain.TargetBooking}
	}

	var lastErr error
	for attempt, delay := range webhookRetryDelays {
		if delay > 0 {
			log.Info().Str("bookingId", externalID).Int("attempt", attempt+1).Dur("delay", delay).Msg("webhook retry waiting")
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return domain.SyncResult{Success: false, Action: domain.ActionSkipped, Target: domain.TargetBooking,
					Warnings: []string{ctx.Err().Error()}}
			case <-t.C:
			}
		}

		payload, err := o.provider.GetBooking(ctx, externalID)
		switch {
		case err == nil:
			return o.SyncPayload(ctx, payload)
		case errors.Is(err, domain.ErrNotFound):
			if latest != nil {
				if inner, ok := latest["booking"].(map[string]any); ok {
					latest = inner
				}
				log.Info().Str("bookingId", externalID).Msg("not in provider, using webhook payload")
				return o.SyncPayload(ctx, latest)
			}
			return o.markMissing(ctx, externalID)
		default:
			lastErr = err
			log.Warn().Err(err).Str("bookingId", externalID).Int("attempt", attempt+1).Msg("webhook processing attempt failed")
		}
	}

	log.Error().Err(lastErr).Str("bookingId", externalID).Int("attempts", len(webhookRetryDelays)).Msg("webhook processing failed")
	return o.report(domain.SyncResult{Success: false, Action: domain.ActionSkipped, Target: domain.TargetBooking,
		Warnings: []string{lastErr.Error()}})
}

// markMissing flags a booking the provider stopped returning. The engine
// never deletes; the record is kept and marked cancelled.
func (o *Orchestrator) markMissing(ctx context.Context, externalID string) domain.SyncResult {
	existing, err := o.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn().Str("bookingId", externalID).Msg("booking not found in provider or store")
		} else {
			log.Error().Err(err).Str("bookingId", externalID).Msg("lookup for missing booking failed")
		}
		return domain.SyncResult{Success: false, Action: domain.ActionSkipped, Target: domain.TargetBooking}
	}

	now := o.now()
	existing.Status = "cancelled"
	existing.BusinessStatus = "not-found-in-provider"
	existing.ModifiedDate = &now
	existing.LastSyncedAt = now
	if _, err := o.repo.Upsert(ctx, existing); err != nil {
		log.Error().Err(err).Str("bookingId", externalID).Msg("mark missing booking cancelled failed")
		return o.report(domain.SyncResult{Success: false, Action: domain.ActionSkipped, Target: domain.TargetCancelled})
	}
	log.Info().Str("bookingId", externalID).Msg("booking marked cancelled, gone from provider")
	return o.report(domain.SyncResult{Success: true, Action: domain.ActionUpdated, Target: domain.TargetCancelled})
}

// buildBooking assembles the canonical record from the raw payload.
func (o *Orchestrator) buildBooking(ctx context.Context, externalID string, payload map[string]any, st domain.BusinessStatus, classified bool) (domain.Booking, []string) {
	v := &Validator{}
	money := ExtractMoney(payload)

	arrival := v.Date(lookupAny(payload, "arrival"), "arrivalDate")
	if arrival == nil {
		arrival = v.Date(lookupAny(payload, "arrivalDate"), "arrivalDate")
	}
	departure := v.Date(lookupAny(payload, "departure"), "departureDate")
	if departure == nil {
		departure = v.Date(lookupAny(payload, "departureDate"), "departureDate")
	}

	// An unclassified status is resolved to the documented default here,
	// at the persistence boundary only.
	businessStatus := domain.DefaultBusinessStatus
	if classified {
		businessStatus = string(st)
	}

	b := domain.Booking{
		ExternalID:     externalID,
		GuestName:      v.String(ExtractGuestName(payload), "guestName", 100, "Guest Unknown"),
		Phone:          v.Phone(ExtractPhone(payload)),
		Email:          v.Email(ExtractEmail(payload)),
		Status:         v.String(lookupStr(payload, "status"), "status", 50, "confirmed"),
		BusinessStatus: v.String(businessStatus, "businessStatus", 50, domain.DefaultBusinessStatus),
		ArrivalDate:    arrival,
		DepartureDate:  departure,
		NumNights:      Nights(arrival, departure),
		TotalPersons:   TotalPersons(payload),
		TotalCharges:   v.Monetary(money.TotalCharges, "totalCharges"),
		TotalPayments:  v.Monetary(money.TotalPayments, "totalPayments"),
		Balance:        v.Monetary(money.Balance, "balance"),
		Channel:        v.String(ExtractChannel(payload), "channel", 50, "Unknown"),
		Charges:        money.Charges,
		Payments:       money.Payments,
		Messages:       ExtractMessages(payload),
		InfoItems:      ExtractInfoItems(payload),
		LastSyncedAt:   o.now(),
	}

	if s := strings.TrimSpace(lookupStr(payload, "price")); s != "" {
		price := v.Monetary(s, "basePrice")
		b.BasePrice = &price
	}
	if s := strings.TrimSpace(lookupStr(payload, "apiReference")); s != "" {
		b.APIReference = &s
	}
	if s := strings.TrimSpace(lookupStr(payload, "comments")); s != "" {
		b.Notes = &s
	}
	if s := firstAlias(payload, "notes"); s != "" {
		b.InternalNotes = &s
	}
	b.BookingDate = firstDate(v, payload, "bookingDate", "bookingTime", "created")
	b.ModifiedDate = firstDate(v, payload, "modifiedDate", "modifiedTime", "modified")

	if name := strings.TrimSpace(lookupStr(payload, "propertyName")); name != "" {
		b.PropertyName = &name
	} else if o.names != nil {
		if propID := firstAlias(payload, "propertyID"); propID != "" {
			if name := o.names.Resolve(ctx, propID); name != "" {
				b.PropertyName = &name
			}
		}
	}

	// Cross-check a declared balance against the computed one.
	if declared, ok := payload["balance"]; ok {
		v.CheckBalance(externalID, money.TotalCharges, money.TotalPayments, SanitizeAmount(declared))
	}

	if raw, err := json.Marshal(payload); err == nil {
		b.RawJSON = raw
	} else {
		log.Error().Err(err).Str("bookingId", externalID).Msg("marshal raw payload failed")
	}

	return b, v.Warnings
}

func firstDate(v *Validator, payload map[string]any, field string, paths ...string) *time.Time {
	for _, p := range paths {
		if raw := lookupAny(payload, p); raw != nil {
			if t := v.Date(raw, field); t != nil {
				return t
			}
		}
	}
	return nil
}

func (o *Orchestrator) report(r domain.SyncResult) domain.SyncResult {
	observability.ObserveSync(r.Action, r.Success)
	return r
}
