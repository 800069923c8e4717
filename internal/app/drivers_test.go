package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookingsync/internal/domain"
)

func newTestSyncService(prov *fakeProvider, repo *fakeRepo) (*SyncService, *[]time.Duration) {
	orch := NewOrchestrator(prov, repo, nil, time.Minute)
	s := NewSyncService(prov, orch, 0, 6*time.Minute)
	var slept []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return s, &slept
}

func TestRangeSync_BothStatusGroups(t *testing.T) {
	prov := &fakeProvider{
		listQueue: []listResult{
			{payloads: []map[string]any{cancelledPayload("601")}}, // cancelled group
			{payloads: []map[string]any{validPayload("602"), validPayload("603")}}, // active group
		},
	}
	repo := newFakeRepo()
	s, _ := newTestSyncService(prov, repo)

	stats, err := s.RangeSync(context.Background(),
		time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if prov.listCalls != 2 {
		t.Fatalf("expected one list per status group, got %d", prov.listCalls)
	}
	if stats.Processed != 3 || stats.Created != 3 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, ok := repo.get("601"); !ok {
		t.Fatal("cancelled group booking not persisted")
	}
}

func cancelledPayload(id string) map[string]any {
	p := validPayload(id)
	p["status"] = "cancelled"
	return p
}

func TestRangeSync_BadRecordDoesNotAbort(t *testing.T) {
	broken := validPayload("611")
	delete(broken, "arrival")
	prov := &fakeProvider{
		listQueue: []listResult{
			{payloads: nil},
			{payloads: []map[string]any{broken, validPayload("612")}},
		},
	}
	repo := newFakeRepo()
	s, _ := newTestSyncService(prov, repo)

	stats, err := s.RangeSync(context.Background(), time.Now(), time.Now().AddDate(0, 1, 0))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stats.Errors != 1 || stats.Created != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, ok := repo.get("612"); !ok {
		t.Fatal("good record after the bad one must still sync")
	}
}

func TestFetchWithCooldown_RetriesAfter429(t *testing.T) {
	prov := &fakeProvider{
		listQueue: []listResult{
			{err: domain.ErrRateLimited},
			{err: domain.ErrRateLimited},
			{payloads: []map[string]any{validPayload("621")}},
		},
	}
	repo := newFakeRepo()
	s, slept := newTestSyncService(prov, repo)

	stats, err := s.IncrementalSync(context.Background(), time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stats.Created != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if prov.listCalls != 3 {
		t.Fatalf("expected 3 fetch attempts, got %d", prov.listCalls)
	}
	cooldowns := 0
	for _, d := range *slept {
		if d == 6*time.Minute {
			cooldowns++
		}
	}
	if cooldowns != 2 {
		t.Fatalf("expected 2 cooldown sleeps, got %v", *slept)
	}
}

func TestFetchWithCooldown_GivesUpEventually(t *testing.T) {
	prov := &fakeProvider{}
	for i := 0; i < maxFetchAttempts+2; i++ {
		prov.listQueue = append(prov.listQueue, listResult{err: domain.ErrRateLimited})
	}
	repo := newFakeRepo()
	s, _ := newTestSyncService(prov, repo)

	_, err := s.IncrementalSync(context.Background(), time.Now())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if prov.listCalls != maxFetchAttempts {
		t.Fatalf("attempts = %d, want %d", prov.listCalls, maxFetchAttempts)
	}
}

func TestFetchWithCooldown_OtherErrorsSurface(t *testing.T) {
	boom := errors.New("provider exploded")
	prov := &fakeProvider{listQueue: []listResult{{err: boom}}}
	repo := newFakeRepo()
	s, slept := newTestSyncService(prov, repo)

	_, err := s.IncrementalSync(context.Background(), time.Now())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(*slept) != 0 {
		t.Fatalf("no cooldown for non-429 errors, slept %v", *slept)
	}
}

func TestSyncOne_DelegatesToOrchestrator(t *testing.T) {
	prov := &fakeProvider{bookings: map[string]map[string]any{"631": validPayload("631")}}
	repo := newFakeRepo()
	s, _ := newTestSyncService(prov, repo)

	res := s.SyncOne(context.Background(), "631")
	if !res.Success || res.Action != domain.ActionCreated {
		t.Fatalf("got %+v", res)
	}
}
