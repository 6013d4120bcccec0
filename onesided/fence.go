package onesided

import (
	"context"
	"fmt"
)

// Fence is spec.md 4.G's fence(proc): "blocks until every one-sided
// operation this participant has issued against proc has completed." Every
// Get/Put/Acc/RMW call in this module already blocks for remote completion
// before returning (transport.Fabric.Send waits for its reply), so Fence
// has nothing left to wait for; it exists for API parity and to reset this
// participant's own per-process scaled-accumulate scratch arena, per the
// Design Notes. Resetting only p.scratch (never another participant's) is
// what keeps one goroutine's Fence from reclaiming bytes a different
// goroutine's in-flight Acc just staged.
func (p *Participant) Fence(ctx context.Context, proc int) error {
	p.scratch.Reset()
	return nil
}

// AllFence is spec.md 4.G's all_fence(): Fence against every participant at
// once, still only touching this participant's own scratch arena.
func (p *Participant) AllFence(ctx context.Context) error {
	p.scratch.Reset()
	return nil
}

// Barrier is spec.md 4.G's barrier(): a collective synchronization point
// over this participant's default group, every caller blocking until every
// member has arrived. Matched by program order on the group's Gather, the
// same way every other collective in this module is.
func (p *Participant) Barrier(ctx context.Context) error {
	return p.BarrierGroup(ctx, p.defaultGroup)
}

// BarrierGroup is Barrier scoped to an arbitrary group g rather than the
// default one, letting disjoint groups barrier independently of each
// other, per spec.md §3's "Groups ... are created collectively by all
// members of the chosen parent" — once created, a group's own collectives
// are fully independent of its siblings'.
func (p *Participant) BarrierGroup(ctx context.Context, g *Group) error {
	myLocal := g.LocalRank(p.rank)
	if myLocal < 0 {
		return p.fail("Barrier", GroupMismatch, fmt.Errorf("rank %d is not a member of group", p.rank))
	}
	if _, err := g.gather.Do(ctx, myLocal, struct{}{}); err != nil {
		return p.fail("Barrier", GroupMismatch, err)
	}
	return nil
}
