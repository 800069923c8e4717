package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound means the store (or provider) has no record for the id.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized covers 401/403 from the provider; never retried.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited is a provider 429; callers wait out the cooldown and
	// retry, it is never a permanent failure.
	ErrRateLimited = errors.New("rate limited")
)

// BookingFilter narrows a provider bookings query. Zero fields are
// omitted from the request.
type BookingFilter struct {
	Statuses      []string // provider status groups, e.g. "cancelled","black"
	ArrivalFrom   time.Time
	ArrivalTo     time.Time
	ModifiedSince time.Time
	Page          int
}

// ProviderClient is the outbound surface to the reservation system.
// Implementations rate-limit and retry; payloads stay untyped maps until
// the extractors convert them.
type ProviderClient interface {
	ListBookings(ctx context.Context, f BookingFilter) ([]map[string]any, error)
	GetBooking(ctx context.Context, externalID string) (map[string]any, error)
	ListProperties(ctx context.Context) ([]map[string]any, error)
	ListRooms(ctx context.Context) ([]map[string]any, error)
	ValidateCredentials(ctx context.Context) (bool, error)
}

// BookingRepository is the persisted store. Upsert must be atomic per
// record; concurrent writers for the same external id are safe given
// that guarantee.
type BookingRepository interface {
	FindByExternalID(ctx context.Context, externalID string) (Booking, error)
	// Upsert inserts or fully updates (everything except the internal PK)
	// by external id. Reports whether the record was created.
	Upsert(ctx context.Context, b Booking) (created bool, err error)
	// Delete is administrative only; the sync engine never calls it.
	Delete(ctx context.Context, externalID string) error
}

// Cache is a small read-through cache, used by the property-name
// resolver.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
