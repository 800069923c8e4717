package provider

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"bookingsync/internal/adapters/observability"
	"bookingsync/internal/domain"
)

// APIError is an application-level failure reported by the provider:
// either an explicit success=false envelope or an HTTP error status. It
// carries the upstream code and body for diagnostics.
type APIError struct {
	Code int
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Body)
}

type Config struct {
	BaseURL     string
	Token       string
	MaxRequests int           // sliding-window size, default 100
	Window      time.Duration // trailing window, default 60s
	MaxRetries  int           // default 3
	RetryBase   time.Duration // backoff base, default 1s
}

// Client talks to the reservation provider. Every call passes the
// sliding-window limiter before going out.
type Client struct {
	base       string
	token      string
	hc         *http.Client
	limiter    *SlidingWindow
	maxRetries int
	retryBase  time.Duration
}

func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("provider token is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	return &Client{
		base:       strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		hc:         &http.Client{Timeout: 30 * time.Second},
		limiter:    NewSlidingWindow(cfg.MaxRequests, cfg.Window),
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase,
	}, nil
}

// Limiter exposes the shared admission limiter, so batch drivers and the
// webhook path throttle against the same window.
func (c *Client) Limiter() *SlidingWindow { return c.limiter }

// ---- Typed operations ----

const dateLayout = "2006-01-02"

func (c *Client) ListBookings(ctx context.Context, f domain.BookingFilter) ([]map[string]any, error) {
	q := url.Values{}
	if len(f.Statuses) > 0 {
		q.Set("status", strings.Join(f.Statuses, ","))
	}
	if !f.ArrivalFrom.IsZero() {
		q.Set("arrivalFrom", f.ArrivalFrom.Format(dateLayout))
	}
	if !f.ArrivalTo.IsZero() {
		q.Set("arrivalTo", f.ArrivalTo.Format(dateLayout))
	}
	if !f.ModifiedSince.IsZero() {
		q.Set("modifiedFrom", f.ModifiedSince.Format(time.RFC3339))
	}
	q.Set("includeInvoiceItems", "true")
	q.Set("includeInfoItems", "true")
	q.Set("includeMessages", "true")
	page := f.Page
	if page <= 0 {
		page = 1
	}

	// Follow provider paging; each page passes the limiter.
	var all []map[string]any
	for {
		q.Set("page", strconv.Itoa(page))
		env, err := c.call(ctx, "/bookings", q)
		if err != nil {
			return nil, err
		}
		all = append(all, env.Data...)
		if env.Pages == nil || !env.Pages.NextPageExists {
			return all, nil
		}
		page++
	}
}

func (c *Client) GetBooking(ctx context.Context, externalID string) (map[string]any, error) {
	q := url.Values{}
	q.Set("includeInvoiceItems", "true")
	q.Set("includeInfoItems", "true")
	q.Set("includeMessages", "true")
	env, err := c.call(ctx, "/bookings/"+url.PathEscape(externalID), q)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 {
		return nil, domain.ErrNotFound
	}
	return env.Data[0], nil
}

func (c *Client) ListProperties(ctx context.Context) ([]map[string]any, error) {
	env, err := c.call(ctx, "/properties", nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) ListRooms(ctx context.Context) ([]map[string]any, error) {
	env, err := c.call(ctx, "/properties/rooms", nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// ValidateCredentials checks that the configured token is accepted.
func (c *Client) ValidateCredentials(ctx context.Context) (bool, error) {
	env, err := c.call(ctx, "/authentication/details", nil)
	if err != nil {
		return false, err
	}
	return env.ValidToken != nil && *env.ValidToken, nil
}

// HealthCheck is the composite probe for external monitoring: credential
// validation plus a trial one-page fetch.
func (c *Client) HealthCheck(ctx context.Context) error {
	ok, err := c.ValidateCredentials(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	// Single-envelope trial fetch; never follow paging here.
	q := url.Values{}
	q.Set("page", "1")
	_, err = c.call(ctx, "/bookings", q)
	return err
}

// ---- Internals ----

type pageInfo struct {
	NextPageExists bool   `json:"nextPageExists"`
	NextPageLink   string `json:"nextPageLink"`
}

// envelope is the provider's per-call success/error wrapper.
type envelope struct {
	Success    bool             `json:"success"`
	Type       string           `json:"type"`
	Count      int              `json:"count"`
	Pages      *pageInfo        `json:"pages"`
	Data       []map[string]any `json:"data"`
	Code       int              `json:"code"`
	Error      string           `json:"error"`
	ValidToken *bool            `json:"validToken"`
}

// call performs a rate-limited GET with retries and decodes the
// envelope. 401/403 fail immediately; 429 surfaces ErrRateLimited for
// the caller's cooldown handling; transient failures (network, 5xx,
// success=false) retry with exponential backoff.
func (c *Client) call(ctx context.Context, path string, q url.Values) (*envelope, error) {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.WaitIfNeeded(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("token", c.token)
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			observability.ObserveExternal("provider", path, 0, time.Since(start))
			lastErr = err
			log.Warn().Err(err).Int("attempt", attempt).Str("url", u).Msg("provider request failed")
			if attempt < c.maxRetries {
				if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		observability.ObserveExternal("provider", path, resp.StatusCode, time.Since(start))

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			drain(resp)
			return nil, fmt.Errorf("%w: status %d", domain.ErrUnauthorized, resp.StatusCode)

		case resp.StatusCode == http.StatusTooManyRequests:
			drain(resp)
			return nil, domain.ErrRateLimited

		case resp.StatusCode == http.StatusNotFound:
			drain(resp)
			return nil, domain.ErrNotFound

		case resp.StatusCode >= 500:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = &APIError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}

		case resp.StatusCode >= 400:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &APIError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}

		default:
			var env envelope
			err := json.NewDecoder(resp.Body).Decode(&env)
			resp.Body.Close()
			if err != nil {
				lastErr = fmt.Errorf("decode envelope: %w", err)
				break
			}
			// Credential probes report validToken instead of success.
			if env.Success || env.ValidToken != nil {
				return &env, nil
			}
			lastErr = &APIError{Code: env.Code, Body: env.Error}
		}

		log.Warn().Err(lastErr).Int("attempt", attempt).Str("url", u).Msg("provider call failed, retrying")
		if attempt < c.maxRetries {
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// backoff returns base × 2^(attempt-1) plus up to one second of jitter.
// crypto/rand keeps the jitter concurrency-safe.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryBase * time.Duration(1<<(attempt-1))
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return d
	}
	return d + time.Duration(float64(b[0])/255.0*float64(time.Second))
}
