package app

import (
	"testing"
	"time"

	"bookingsync/internal/domain"
)

func msg(id, text string, at time.Time, read bool) domain.Message {
	return domain.Message{ID: id, Text: text, Timestamp: at, Origin: "guest", Read: read}
}

func TestMergeMessages_WindowedFetch(t *testing.T) {
	base := time.Date(2025, 10, 1, 9, 0, 0, 0, time.UTC)

	persisted := []domain.Message{
		msg("1", "first", base, true),
		msg("2", "second", base.Add(time.Hour), false),
	}
	// the provider's window only covers the tail of the conversation
	incoming := []domain.Message{
		msg("2", "second", base.Add(time.Hour), true), // read flag flipped upstream
		msg("3", "third", base.Add(2*time.Hour), false),
	}

	got := MergeMessages(persisted, incoming)
	if len(got) != 3 {
		t.Fatalf("merged %d messages, want 3", len(got))
	}
	if got[0].ID != "1" || got[1].ID != "2" || got[2].ID != "3" {
		t.Fatalf("not sorted by timestamp: %+v", got)
	}
	if !got[1].Read {
		t.Fatal("read flag should be taken from incoming copy")
	}
	if got[0].Text != "first" {
		t.Fatal("older message must survive a window that no longer contains it")
	}
}

func TestMergeMessages_ContentImmutable(t *testing.T) {
	base := time.Now().UTC()
	persisted := []domain.Message{msg("7", "original", base, false)}
	incoming := []domain.Message{msg("7", "edited???", base.Add(time.Minute), true)}

	got := MergeMessages(persisted, incoming)
	if len(got) != 1 {
		t.Fatalf("got %d messages", len(got))
	}
	if got[0].Text != "original" || !got[0].Timestamp.Equal(base) {
		t.Fatalf("stored content must win for a known id: %+v", got[0])
	}
	if !got[0].Read {
		t.Fatal("only the read flag should update")
	}
}

func TestMergeMessages_SyntheticKey(t *testing.T) {
	at := time.Date(2025, 10, 2, 12, 0, 0, 0, time.UTC)
	noID := domain.Message{Text: "anon", Timestamp: at, Origin: "host"}

	got := MergeMessages([]domain.Message{noID}, []domain.Message{noID})
	if len(got) != 1 {
		t.Fatalf("same timestamp+origin must merge, got %d", len(got))
	}
}

func TestMergeMessages_Idempotent(t *testing.T) {
	base := time.Now().UTC()
	persisted := []domain.Message{msg("1", "a", base, false), msg("2", "b", base.Add(time.Minute), true)}
	incoming := []domain.Message{msg("2", "b", base.Add(time.Minute), true)}

	once := MergeMessages(persisted, incoming)
	twice := MergeMessages(once, incoming)
	if len(once) != len(twice) {
		t.Fatalf("merge not idempotent: %d then %d", len(once), len(twice))
	}
	// never shrinks
	if len(twice) < len(persisted) {
		t.Fatal("merge must never drop persisted messages")
	}
}

func TestHasNewMessages(t *testing.T) {
	base := time.Now().UTC()
	persisted := []domain.Message{msg("1", "a", base, false)}
	if HasNewMessages(persisted, []domain.Message{msg("1", "a", base, true)}) {
		t.Fatal("known key is not new")
	}
	if !HasNewMessages(persisted, []domain.Message{msg("2", "b", base, false)}) {
		t.Fatal("unknown key is new")
	}
}

func TestStatsFor(t *testing.T) {
	base := time.Now().UTC()
	st := StatsFor([]domain.Message{
		msg("1", "a", base, true),
		msg("2", "b", base, false),
		{ID: "3", Text: "c", Timestamp: base, Origin: "host", Read: false},
	})
	if st.Total != 3 || st.Unread != 2 {
		t.Fatalf("stats = %+v", st)
	}
	if st.ByOrigin["guest"] != 2 || st.ByOrigin["host"] != 1 {
		t.Fatalf("by origin = %+v", st.ByOrigin)
	}
}
