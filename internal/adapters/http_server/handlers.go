package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"bookingsync/internal/adapters/observability"
	"bookingsync/internal/app"
	"bookingsync/internal/domain"
)

// Pinger is what we need from *sql.DB for readiness checks.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handlers struct {
	Debounce *app.Debouncer
	Sync     *app.SyncService
	Provider domain.ProviderClient
	DB       Pinger
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/readyz", h.ready)
	s.mux.Post("/v1/webhooks/bookings", h.webhook)
	s.mux.Get("/v1/sync/status", h.syncStatus)
	s.mux.Post("/v1/sync/run", h.runSync)
	s.mux.Post("/v1/sync/bookings/{id}", h.syncBooking)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// webhookPayloads normalizes the delivery shapes the provider sends:
// a flat booking object, {"booking": {...}}, or {"bookings": [...]}.
func webhookPayloads(body map[string]any) []map[string]any {
	if arr, ok := body["bookings"].([]any); ok {
		out := make([]map[string]any, 0, len(arr))
		for _, it := range arr {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	if m, ok := body["booking"].(map[string]any); ok {
		return []map[string]any{m}
	}
	return []map[string]any{body}
}

func (h *Handlers) webhook(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		observability.WebhookEvents.WithLabelValues("invalid").Inc()
		writeProblem(w, http.StatusBadRequest, "Invalid webhook", "body must be a JSON object")
		return
	}

	accepted := 0
	for _, p := range webhookPayloads(body) {
		id := app.ExternalID(p)
		if id == "" {
			continue
		}
		h.Debounce.Handle(id, p)
		accepted++
	}
	if accepted == 0 {
		observability.WebhookEvents.WithLabelValues("invalid").Inc()
		writeProblem(w, http.StatusBadRequest, "Invalid webhook", "no booking id found in payload")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": accepted})
}

func (h *Handlers) syncStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Debounce.Status())
}

type runSyncRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

const dateLayout = "2006-01-02"

// runSync kicks off a full range sync in the background. The run can
// take minutes under rate limiting, so the handler only acknowledges.
func (h *Handlers) runSync(w http.ResponseWriter, r *http.Request) {
	var req runSyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid request", "body must be a JSON object")
			return
		}
	}

	from := time.Now().Truncate(24 * time.Hour)
	to := from.AddDate(1, 0, 0)
	if req.From != "" {
		t, err := time.Parse(dateLayout, req.From)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid request", "from must be YYYY-MM-DD")
			return
		}
		from = t
	}
	if req.To != "" {
		t, err := time.Parse(dateLayout, req.To)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid request", "to must be YYYY-MM-DD")
			return
		}
		to = t
	}
	if to.Before(from) {
		writeProblem(w, http.StatusBadRequest, "Invalid request", "to must not precede from")
		return
	}

	go func() {
		stats, err := h.Sync.RangeSync(context.Background(), from, to)
		if err != nil {
			log.Error().Err(err).Msg("manual range sync finished with errors")
		}
		log.Info().
			Int("processed", stats.Processed).
			Int("created", stats.Created).
			Int("updated", stats.Updated).
			Int("skipped", stats.Skipped).
			Int("errors", stats.Errors).
			Msg("manual range sync done")
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"from":   from.Format(dateLayout),
		"to":     to.Format(dateLayout),
	})
}

func (h *Handlers) syncBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res := h.Sync.SyncOne(r.Context(), id)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{
		"bookingId": id,
		"success":   res.Success,
		"action":    res.Action,
		"target":    res.Target,
		"warnings":  res.Warnings,
	})
}

func (h *Handlers) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			writeProblem(w, http.StatusServiceUnavailable, "Not ready", "database unreachable")
			return
		}
	}
	if h.Provider != nil {
		// Prefer the composite probe (credential check + trial fetch)
		// when the client offers one.
		if hc, ok := h.Provider.(interface{ HealthCheck(context.Context) error }); ok {
			if err := hc.HealthCheck(ctx); err != nil {
				writeProblem(w, http.StatusServiceUnavailable, "Not ready", "provider unreachable")
				return
			}
		} else if ok, err := h.Provider.ValidateCredentials(ctx); err != nil || !ok {
			writeProblem(w, http.StatusServiceUnavailable, "Not ready", "provider credentials rejected")
			return
		}
	}
	w.WriteHeader(200)
	_, _ = w.Write([]byte("ready"))
}
