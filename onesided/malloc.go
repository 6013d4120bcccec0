package onesided

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-onesided/internal/registry"
)

// addrGap pads between synthesized slice base addresses so that distinct
// slices never bracket each other's ranges even for zero-size allocations.
const addrGap = 64

// sliceInfo is one participant's contribution to a collective allocation,
// gathered and shared verbatim with every member (see MallocGroup).
type sliceInfo struct {
	base uintptr
	size int
	buf  []byte
}

// MallocGroup is spec.md 4.B's malloc_group: a collective allocation over
// group, each caller contributing its own size (zero permitted). Every
// caller receives the full base-address table, indexed by group-local rank.
func (p *Participant) MallocGroup(ctx context.Context, size int, g *Group) ([]uintptr, error) {
	if size < 0 {
		return nil, p.fail("MallocGroup", BadSize, fmt.Errorf("negative size"))
	}
	if g == nil || !g.active {
		return nil, p.fail("MallocGroup", GroupMismatch, fmt.Errorf("group is not active"))
	}
	myLocal := g.LocalRank(p.rank)
	if myLocal < 0 {
		return nil, p.fail("MallocGroup", GroupMismatch, fmt.Errorf("rank %d is not a member of group", p.rank))
	}

	buf := make([]byte, size)
	base := uintptr(atomic.AddUint64(&p.rt.nextBase, uint64(size)+addrGap) - uint64(size))

	round1, err := g.gather.Do(ctx, myLocal, sliceInfo{base: base, size: size, buf: buf})
	if err != nil {
		return nil, p.fail("MallocGroup", OutOfMemory, err)
	}
	slices := make([]registry.Slice, len(round1))
	basePtrs := make([]uintptr, len(round1))
	for i, v := range round1 {
		si := v.(sliceInfo)
		slices[i] = registry.Slice{Base: si.base, Size: si.size, Bytes: si.buf}
		basePtrs[i] = si.base
	}

	isLeader := myLocal == 0
	var insertErr error
	if isLeader {
		_, insertErr = p.rt.reg.Insert(g.window, g.members, slices)
	}
	round2, err := g.gather.Do(ctx, myLocal, insertErr)
	if err != nil {
		return nil, p.fail("MallocGroup", OutOfMemory, err)
	}
	for _, v := range round2 {
		if e, _ := v.(error); e != nil {
			return nil, p.fail("MallocGroup", OutOfMemory, e)
		}
	}

	return basePtrs, nil
}

// FreeGroup destroys the allocation record anyLocalBase belongs to,
// collectively over group, per spec.md 4.B's free_group. anyLocalBase is
// resolved against the caller's own slice first and, failing that (e.g. a
// member whose own slice is empty), against every other member's slice.
func (p *Participant) FreeGroup(ctx context.Context, anyLocalBase uintptr, g *Group) error {
	if g == nil || !g.active {
		return p.fail("FreeGroup", GroupMismatch, fmt.Errorf("group is not active"))
	}
	myLocal := g.LocalRank(p.rank)
	if myLocal < 0 {
		return p.fail("FreeGroup", GroupMismatch, fmt.Errorf("rank %d is not a member of group", p.rank))
	}
	rec, ok := p.rt.reg.Lookup(anyLocalBase, p.rank)
	for i := 0; !ok && i < len(g.members); i++ {
		rec, ok = p.rt.reg.Lookup(anyLocalBase, g.members[i])
	}
	if !ok {
		return p.fail("FreeGroup", InvalidAddress, fmt.Errorf("address %#x not registered", anyLocalBase))
	}

	round1, err := g.gather.Do(ctx, myLocal, rec.ID)
	if err != nil {
		return p.fail("FreeGroup", GroupMismatch, err)
	}
	first := round1[0].(uint64)
	for _, v := range round1[1:] {
		if v.(uint64) != first {
			return p.fail("FreeGroup", GroupMismatch, fmt.Errorf("participants named different allocations"))
		}
	}

	if myLocal == 0 {
		p.rt.reg.Remove(rec)
	}
	if _, err := g.gather.Do(ctx, myLocal, struct{}{}); err != nil {
		return p.fail("FreeGroup", GroupMismatch, err)
	}
	return nil
}

// Malloc is MallocGroup over this participant's current default group,
// matching spec.md §6's malloc (documented there as "collective over
// default group").
func (p *Participant) Malloc(ctx context.Context, size int) ([]uintptr, error) {
	return p.MallocGroup(ctx, size, p.defaultGroup)
}

// Free is FreeGroup over the default group.
func (p *Participant) Free(ctx context.Context, ptr uintptr) error {
	return p.FreeGroup(ctx, ptr, p.defaultGroup)
}

// MallocLocal is spec.md 4.B's local scratch allocator: "a thin wrapper
// over the process heap ... it participates in no registry." No
// translation to a registry address is possible or needed; the returned
// buffer is only ever dereferenced directly by this participant.
func (p *Participant) MallocLocal(size int) ([]byte, error) {
	if size < 0 {
		return nil, p.fail("MallocLocal", BadSize, fmt.Errorf("negative size"))
	}
	return make([]byte, size), nil
}

// FreeLocal is a no-op: Go's garbage collector reclaims MallocLocal
// buffers once unreferenced. Kept as a named call for API parity with
// spec.md §6's free_local.
func (p *Participant) FreeLocal(buf []byte) {}
