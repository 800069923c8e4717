package provider

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// safetyMargin is added to the computed wait so the oldest timestamp is
// guaranteed to have left the window when we re-check.
const safetyMargin = 100 * time.Millisecond

// SlidingWindow admits at most max request starts within any trailing
// window. It never rejects: WaitIfNeeded blocks until admission is safe.
// Admission is serialized, so it is safe for concurrent callers.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	starts []time.Time
	now    func() time.Time
	sleep  func(context.Context, time.Duration) error
}

func NewSlidingWindow(max int, window time.Duration) *SlidingWindow {
	if max <= 0 {
		max = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindow{
		max:    max,
		window: window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// WaitIfNeeded blocks until starting a request keeps the trailing window
// under the limit, then records the start. Returns early only when ctx
// is cancelled.
func (s *SlidingWindow) WaitIfNeeded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune(s.now())
	for len(s.starts) >= s.max {
		wait := s.window - s.now().Sub(s.starts[0]) + safetyMargin
		log.Debug().Dur("wait", wait).Int("inFlight", len(s.starts)).Msg("rate limit window full, waiting")
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
		s.prune(s.now())
	}
	s.starts = append(s.starts, s.now())
	return nil
}

// prune drops starts older than the window. Caller holds the lock.
func (s *SlidingWindow) prune(now time.Time) {
	cut := 0
	for cut < len(s.starts) && now.Sub(s.starts[cut]) >= s.window {
		cut++
	}
	if cut > 0 {
		s.starts = append(s.starts[:0], s.starts[cut:]...)
	}
}

// Pending reports how many starts are currently inside the window.
func (s *SlidingWindow) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(s.now())
	return len(s.starts)
}

// sleepCtx waits for d or returns the context error if ctx is done first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
