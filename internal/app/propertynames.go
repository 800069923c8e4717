package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"bookingsync/internal/domain"
)

// PropertyNames resolves provider property ids to display names:
// cache first, then one provider listing (which warms the cache for every
// property), then a static fallback for when both are unavailable.
type PropertyNames struct {
	provider domain.ProviderClient
	cache    domain.Cache
	ttlSec   int
	fallback map[string]string
}

func NewPropertyNames(p domain.ProviderClient, cache domain.Cache, ttlSec int) *PropertyNames {
	if ttlSec <= 0 {
		ttlSec = 900
	}
	return &PropertyNames{provider: p, cache: cache, ttlSec: ttlSec, fallback: map[string]string{}}
}

// SetFallback installs a static id→name map used when the provider is
// unreachable.
func (r *PropertyNames) SetFallback(m map[string]string) {
	for k, v := range m {
		r.fallback[k] = v
	}
}

func propertyKey(id string) string { return fmt.Sprintf("property:%s:name", id) }

// Resolve returns the property name for id, or "" when nothing knows it.
// Never fails: resolution trouble degrades to the fallback map.
func (r *PropertyNames) Resolve(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if r.cache != nil {
		var name string
		if ok, _ := r.cache.Get(ctx, propertyKey(id), &name); ok {
			return name
		}
	}

	props, err := r.provider.ListProperties(ctx)
	if err != nil {
		log.Warn().Err(err).Str("propertyId", id).Msg("list properties failed, using fallback name")
		return r.fallback[id]
	}

	found := ""
	for _, p := range props {
		pid := lookupStr(p, "id")
		if pid == "" {
			pid = lookupStr(p, "propId")
		}
		name := lookupStr(p, "name")
		if name == "" {
			name = lookupStr(p, "propertyName")
		}
		if pid == "" || name == "" {
			continue
		}
		if r.cache != nil {
			_ = r.cache.Set(ctx, propertyKey(pid), name, r.ttlSec)
		}
		if pid == id {
			found = name
		}
	}
	if found == "" {
		return r.fallback[id]
	}
	return found
}
