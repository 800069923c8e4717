package app

import (
	"fmt"
	"sort"

	"bookingsync/internal/domain"
)

// The provider only returns the last few days of conversation per fetch,
// so the persisted set is merged with each incoming window instead of
// being replaced. A merge never removes a message.

// messageKey is the merge identity: the explicit id, or a synthetic
// timestamp+origin key when the provider omitted one.
func messageKey(m domain.Message) string {
	if m.ID != "" {
		return m.ID
	}
	return fmt.Sprintf("%d_%s", m.Timestamp.UnixNano(), m.Origin)
}

// MergeMessages combines the persisted history with an incoming fetch
// window. For a known key the stored text/timestamp/origin are kept and
// only the read flag is taken from the incoming copy (content for a
// given id is immutable upstream; read-state is not). Unknown keys are
// inserted as-is. The result is sorted ascending by timestamp and is
// always a superset of the persisted set.
func MergeMessages(persisted, incoming []domain.Message) []domain.Message {
	merged := make(map[string]domain.Message, len(persisted)+len(incoming))
	order := make([]string, 0, len(persisted)+len(incoming))

	for _, m := range persisted {
		k := messageKey(m)
		if _, seen := merged[k]; !seen {
			order = append(order, k)
		}
		merged[k] = m
	}
	for _, m := range incoming {
		k := messageKey(m)
		if existing, ok := merged[k]; ok {
			existing.Read = m.Read
			merged[k] = existing
			continue
		}
		merged[k] = m
		order = append(order, k)
	}

	out := make([]domain.Message, 0, len(merged))
	for _, k := range order {
		out = append(out, merged[k])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// HasNewMessages reports whether any incoming message key is previously
// unseen.
func HasNewMessages(persisted, incoming []domain.Message) bool {
	seen := make(map[string]struct{}, len(persisted))
	for _, m := range persisted {
		seen[messageKey(m)] = struct{}{}
	}
	for _, m := range incoming {
		if _, ok := seen[messageKey(m)]; !ok {
			return true
		}
	}
	return false
}

// MessageStats summarizes a booking's stored history.
type MessageStats struct {
	Total    int
	Unread   int
	ByOrigin map[string]int
}

func StatsFor(messages []domain.Message) MessageStats {
	st := MessageStats{ByOrigin: map[string]int{}}
	for _, m := range messages {
		st.Total++
		if !m.Read {
			st.Unread++
		}
		st.ByOrigin[m.Origin]++
	}
	return st
}
