// Package ticket paces the bounded polling loop spec.md's mutex array
// requires ("Implementations MUST avoid unbounded polling by inserting
// transport progress calls between spins"). It repurposes the teacher's
// catrate sliding-window rate limiter as a spin pacer: catrate.Limiter.Allow
// already computes "how long until the next event may occur," which is
// exactly the backoff duration a ticket-lock waiter needs between polls of
// the target's now_serving counter.
package ticket

import (
	"context"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/jonboulle/clockwork"
)

// Pacer bounds how often a waiter is allowed to poll a single mutex's
// now_serving counter.
type Pacer struct {
	limiter *catrate.Limiter
	clock   clockwork.Clock
}

// NewPacer builds a Pacer allowing at most maxPerWindow polls per window,
// per mutex index (the category passed to Poll).
func NewPacer(window time.Duration, maxPerWindow int, clock clockwork.Clock) *Pacer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Pacer{
		limiter: catrate.NewLimiter(map[time.Duration]int{window: maxPerWindow}),
		clock:   clock,
	}
}

// Wait blocks until polling mutex is permitted again, or ctx is done. It
// always allows at least one immediate poll per mutex per window before
// backing off, satisfying "bounded polling" without starving progress.
func (p *Pacer) Wait(ctx context.Context, mutex int) error {
	next, allowed := p.limiter.Allow(mutex)
	if allowed {
		return nil
	}
	d := next.Sub(p.clock.Now())
	if d <= 0 {
		return nil
	}
	timer := p.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
