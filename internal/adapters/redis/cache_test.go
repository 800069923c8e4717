package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	redisad "bookingsync/internal/adapters/redis"
)

func TestCache_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	if ok, err := c.Get(ctx, "property:1:name", new(string)); err != nil || ok {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	if err := c.Set(ctx, "property:1:name", "Seaside Villa", 60); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var name string
	ok, err := c.Get(ctx, "property:1:name", &name)
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if name != "Seaside Villa" {
		t.Fatalf("got %q", name)
	}

	if err := c.Del(ctx, "property:1:name"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if ok, _ := c.Get(ctx, "property:1:name", &name); ok {
		t.Fatal("key should be gone after Del")
	}
}

func TestCache_TTLExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	c := redisad.New(mr.Addr(), "", 0)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	mr.FastForward(11 * time.Second)

	var v string
	if ok, _ := c.Get(ctx, "k", &v); ok {
		t.Fatal("key should have expired")
	}
}
