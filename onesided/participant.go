package onesided

import (
	"context"
	"fmt"

	"github.com/joeycumines/go-onesided/internal/epoch"
	"github.com/joeycumines/go-onesided/internal/scratch"
)

// Participant is the per-process handle spec.md's API surface is defined
// against: everything in section 6 ("External Interfaces") that isn't a
// job-wide constructor is a method on *Participant. It is bound to exactly
// one world rank for its lifetime, by Runtime.Init.
type Participant struct {
	rt           *Runtime
	rank         int
	world        *Group
	defaultGroup *Group
	argv         []string
	recover      bool

	// scratch is this participant's own scaled-accumulate staging arena
	// (see Acc in transfer.go), reset at this participant's own
	// Fence/AllFence boundaries only — never shared with another
	// participant's goroutine, per spec.md's Design Notes.
	scratch *scratch.Arena

	finalized bool
}

// Rank returns this participant's world rank.
func (p *Participant) Rank() int { return p.rank }

// epochMgr returns this participant's access-epoch manager (spec.md 4.C:
// "on a given initiator").
func (p *Participant) epochMgr() *epoch.Manager {
	p.rt.mu.Lock()
	defer p.rt.mu.Unlock()
	return p.rt.epochs[p.rank]
}

// fail reports err through this module's error taxonomy. By default (per
// spec.md §7) this aborts the job via Error; WithRecover opts a Runtime out
// of aborting, returning the typed *Error to the caller instead.
func (p *Participant) fail(op string, kind Kind, err error) error {
	e := newError(op, p.rank, kind, err)
	p.rt.log.Error().Str("op", op).Int("rank", p.rank).Str("kind", kind.String()).Err(err).Msg("onesided: error")
	if p.recover {
		return e
	}
	p.Error(e.Error(), int(kind))
	return e // unreachable: Error panics
}

// Error is spec.md §6/§7's abort sink: "aborts the job via the transport's
// abort primitive with the supplied exit code." This simulation cannot
// literally terminate the OS process on behalf of every simulated
// participant goroutine, so it panics with a value carrying the message and
// code instead — the closest same-process analogue of "abort the job."
func (p *Participant) Error(msg string, code int) {
	panic(&AbortError{Message: msg, Code: code, Rank: p.rank})
}

// AbortError is the panic value Participant.Error raises. Non-Recover-mode
// Runtimes are expected to let this propagate (matching spec.md's
// fatal-by-default convention); Recover-mode Runtimes never reach this path
// for ordinary data errors, since fail() returns the typed *Error instead.
type AbortError struct {
	Message string
	Code    int
	Rank    int
}

func (e *AbortError) Error() string { return fmt.Sprintf("onesided: abort: rank %d: %s", e.Rank, e.Message) }

// Finalize releases this participant's slot, per spec.md 4.I: "releases
// the world group and the registries" (scoped, in this simulation, to just
// this participant's epoch manager; its transport endpoint stays joined to
// the Fabric, and the Registry and
// World group are shared job-wide state — see internal/registry's doc
// comment on why a single shared Registry is the correct simulation of
// "every participant holds the full table").
func (p *Participant) Finalize(ctx context.Context) error {
	if p.finalized {
		return fmt.Errorf("onesided: Finalize: already finalized")
	}
	p.finalized = true
	p.rt.mu.Lock()
	delete(p.rt.epochs, p.rank)
	p.rt.mu.Unlock()
	return nil
}

// Cleanup is distinct from Finalize per spec.md §9's Open Question ("cleanup
// is distinct from finalize; whether it is legal after finalize, before
// init, or idempotent is unspecified"). This module resolves that question
// (see DESIGN.md): Cleanup does nothing and always returns nil, so it is
// safe to call at any point in the lifecycle, any number of times,
// including after Finalize. It frees no allocations; those are released
// only by Free/FreeGroup/DestroyMutexes.
func (p *Participant) Cleanup(ctx context.Context) error {
	return nil
}
