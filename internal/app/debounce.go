package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"bookingsync/internal/adapters/observability"
)

// DefaultDebounceWindow is how long a booking's timer runs without a new
// webhook before the single processing pass fires.
const DefaultDebounceWindow = time.Minute

// ProcessFunc is the single pass executed when a timer expires.
type ProcessFunc func(ctx context.Context, externalID string, latestPayload map[string]any)

type pendingWebhook struct {
	timer      *time.Timer
	latest     map[string]any
	receivedAt time.Time
	debounces  int
	gen        uint64 // invalidates a timer that fired during a reset
}

// Debouncer collapses bursts of webhooks for the same booking into one
// processing pass. Each new event cancels and reschedules the entity's
// timer (last write wins); only an undisturbed expiry triggers the
// process function, exactly once.
type Debouncer struct {
	mu      sync.Mutex
	pending map[string]*pendingWebhook
	window  time.Duration
	process ProcessFunc
	ctx     context.Context

	received  int64
	debounced int64
	processed int64
}

func NewDebouncer(ctx context.Context, window time.Duration, process ProcessFunc) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	// The processing context must survive the parent being cancelled:
	// Flush runs during shutdown, after the signal context is already
	// dead, and a pass that has started is never aborted mid-record.
	return &Debouncer{
		pending: make(map[string]*pendingWebhook),
		window:  window,
		process: process,
		ctx:     context.WithoutCancel(ctx),
	}
}

// Handle registers a webhook for externalID, starting or resetting its
// timer. The latest payload wins.
func (d *Debouncer) Handle(externalID string, payload map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.received++
	observability.WebhookEvents.WithLabelValues("received").Inc()

	if existing, ok := d.pending[externalID]; ok {
		existing.timer.Stop()
		d.debounced++
		observability.WebhookEvents.WithLabelValues("debounced").Inc()
		log.Info().
			Str("bookingId", externalID).
			Int("debounces", existing.debounces+1).
			Dur("sinceFirst", time.Since(existing.receivedAt)).
			Msg("webhook debounced, timer reset")

		existing.latest = payload
		existing.debounces++
		existing.gen++
		gen := existing.gen
		existing.timer = time.AfterFunc(d.window, func() { d.fire(externalID, gen) })
		return
	}

	d.pending[externalID] = &pendingWebhook{
		timer:      time.AfterFunc(d.window, func() { d.fire(externalID, 0) }),
		latest:     payload,
		receivedAt: time.Now(),
	}
	log.Info().
		Str("bookingId", externalID).
		Dur("window", d.window).
		Int("pending", len(d.pending)).
		Msg("webhook scheduled")
}

// fire runs when a timer elapses without being reset. A timer that
// raced with a reset sees a newer generation and does nothing; once the
// generation check passes the pass cannot be cancelled anymore.
func (d *Debouncer) fire(externalID string, gen uint64) {
	d.mu.Lock()
	p, ok := d.pending[externalID]
	if !ok || p.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, externalID)
	d.processed++
	observability.WebhookEvents.WithLabelValues("processed").Inc()
	latest := p.latest
	waited := time.Since(p.receivedAt)
	debounces := p.debounces
	d.mu.Unlock()

	log.Info().
		Str("bookingId", externalID).
		Int("debouncesSaved", debounces).
		Dur("waited", waited).
		Msg("processing debounced webhook")
	d.process(d.ctx, externalID, latest)
}

// Status is the operational snapshot used to verify collapsing behavior.
type Status struct {
	Pending        int      `json:"pending"`
	PendingIDs     []string `json:"pendingBookings"`
	ReceivedTotal  int64    `json:"receivedTotal"`
	DebouncedTotal int64    `json:"debouncedTotal"`
	ProcessedTotal int64    `json:"processedTotal"`
	WindowMS       int64    `json:"debounceWindowMs"`
}

func (d *Debouncer) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, 0, len(d.pending))
	for id := range d.pending {
		ids = append(ids, id)
	}
	return Status{
		Pending:        len(d.pending),
		PendingIDs:     ids,
		ReceivedTotal:  d.received,
		DebouncedTotal: d.debounced,
		ProcessedTotal: d.processed,
		WindowMS:       d.window.Milliseconds(),
	}
}

// Flush processes everything still pending, for graceful shutdown.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	gens := make(map[string]uint64, len(d.pending))
	for id, p := range d.pending {
		p.timer.Stop()
		gens[id] = p.gen
	}
	d.mu.Unlock()

	for id, gen := range gens {
		d.fire(id, gen)
	}
}

// Stop cancels all pending timers without processing them.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, id)
		log.Info().Str("bookingId", id).Msg("pending webhook cancelled on shutdown")
	}
}
