package onesided

import (
	"context"
	"fmt"

	"github.com/joeycumines/go-onesided/internal/transport"
)

// Group is spec.md §3's Group: "An ordered, immutable subset of
// participants with a bound transport communicator." Every collective call
// scoped to a Group (GroupCreate of a child, MallocGroup, Barrier, Reduce,
// mutex array create/destroy) is matched across callers by program order on
// the Group's internal Gather, the same way MPI matches the Nth collective
// on a communicator — see internal/transport.Gather's doc comment.
type Group struct {
	rt      *Runtime
	window  *transport.Window
	members []int // world ranks, in group-local order
	gather  *transport.Gather
	active  bool
	parent  *Group
}

// active groups always report true; GroupCreate returns an inactive
// sentinel (zero window/members, active=false) to parent members not named
// in the child's membership list, per spec.md 4.A.
func (g *Group) Active() bool { return g != nil && g.active }

// Size returns the number of members, per spec.md 4.A's group_size.
func (g *Group) Size() int {
	if g == nil {
		return 0
	}
	return len(g.members)
}

// LocalRank returns worldRank's position in this group, or -1 if absent.
func (g *Group) LocalRank(worldRank int) int {
	if g == nil {
		return -1
	}
	for i, m := range g.members {
		if m == worldRank {
			return i
		}
	}
	return -1
}

// AbsoluteID translates a group-local rank to its world rank, per spec.md
// 4.A's absolute_id.
func (g *Group) AbsoluteID(localRank int) (int, bool) {
	if g == nil || localRank < 0 || localRank >= len(g.members) {
		return 0, false
	}
	return g.members[localRank], true
}

// GetWorld returns the implicit root group containing every participant.
func (p *Participant) GetWorld() *Group { return p.world }

// GetDefault returns this participant's current default group (spec.md
// 4.A's get_default).
func (p *Participant) GetDefault() *Group { return p.defaultGroup }

// SetDefault changes this participant's default group for allocations that
// do not name one (spec.md 4.A's set_default). Purely local: it is not
// itself a collective call.
func (p *Participant) SetDefault(g *Group) { p.defaultGroup = g }

// GroupRank returns p's local rank within g, failing with GroupMismatch if
// p is not a member.
func (p *Participant) GroupRank(g *Group) (int, error) {
	r := g.LocalRank(p.rank)
	if r < 0 {
		return 0, p.fail("GroupRank", GroupMismatch, fmt.Errorf("rank %d is not a member of this group", p.rank))
	}
	return r, nil
}

// GroupSize returns g's member count.
func (p *Participant) GroupSize(g *Group) int { return g.Size() }

// GroupCreate derives a child group from parent's membership, per spec.md
// 4.A: collective over every member of parent, memberRanks given as
// parent-local ranks, identical across every caller. Callers not named in
// memberRanks still must call this (parent is fully collective) and
// receive an inactive sentinel group, not an error.
func (p *Participant) GroupCreate(ctx context.Context, parent *Group, memberRanks []int) (*Group, error) {
	if parent == nil || !parent.active {
		return nil, p.fail("GroupCreate", GroupMismatch, fmt.Errorf("parent group is not active"))
	}
	myLocal := parent.LocalRank(p.rank)
	if myLocal < 0 {
		return nil, p.fail("GroupCreate", GroupMismatch, fmt.Errorf("rank %d is not a member of parent", p.rank))
	}

	listCopy := append([]int(nil), memberRanks...)
	round1, err := parent.gather.Do(ctx, myLocal, listCopy)
	if err != nil {
		return nil, p.fail("GroupCreate", GroupMismatch, err)
	}
	list := round1[0].([]int)
	for i := 1; i < len(round1); i++ {
		if !intsEqual(list, round1[i].([]int)) {
			return nil, p.fail("GroupCreate", GroupMismatch, fmt.Errorf("member_ranks differ across callers"))
		}
	}
	for _, r := range list {
		if r < 0 || r >= parent.Size() {
			return nil, p.fail("GroupCreate", GroupMismatch, fmt.Errorf("member rank %d not in parent", r))
		}
	}

	isLeader := myLocal == list[0]
	isMember := intsIndex(list, myLocal) >= 0

	var proposal *transport.Window
	var proposalGather *transport.Gather
	if isLeader {
		worldMembers := make([]int, len(list))
		for i, lr := range list {
			worldMembers[i] = parent.members[lr]
		}
		proposal = transport.NewWindow(parent.window.Fabric, worldMembers)
		proposalGather = transport.NewGather(len(list))
	}

	round2, err := parent.gather.Do(ctx, myLocal, childProposal{window: proposal, gather: proposalGather})
	if err != nil {
		return nil, p.fail("GroupCreate", GroupMismatch, err)
	}
	var win *transport.Window
	var gath *transport.Gather
	for _, v := range round2 {
		cp := v.(childProposal)
		if cp.window != nil {
			win, gath = cp.window, cp.gather
			break
		}
	}

	if !isMember {
		return &Group{rt: p.rt, active: false, parent: parent}, nil
	}
	return &Group{rt: p.rt, window: win, members: win.Members, gather: gath, active: true, parent: parent}, nil
}

type childProposal struct {
	window *transport.Window
	gather *transport.Gather
}

// GroupCreateChild is an alias for GroupCreate matching spec.md §6's naming
// (group_create vs group_create_child are the same operation in this
// module: spec.md does not distinguish their semantics, only that both
// exist in the external surface).
func (p *Participant) GroupCreateChild(ctx context.Context, parent *Group, memberRanks []int) (*Group, error) {
	return p.GroupCreate(ctx, parent, memberRanks)
}

// GroupFree destroys a group, collectively over its own members, per
// spec.md §3: "Groups ... are created collectively by all members of the
// chosen parent and destroyed collectively." It is a purely local
// bookkeeping no-op beyond exclusivity/synchronization in this module since
// Group carries no resources that outlive garbage collection; the
// collective round still runs, so GroupMismatch across callers is caught.
func (p *Participant) GroupFree(ctx context.Context, g *Group) error {
	if g == nil || !g.active {
		return nil
	}
	myLocal := g.LocalRank(p.rank)
	if myLocal < 0 {
		return p.fail("GroupFree", GroupMismatch, fmt.Errorf("rank %d is not a member of group", p.rank))
	}
	if _, err := g.gather.Do(ctx, myLocal, struct{}{}); err != nil {
		return p.fail("GroupFree", GroupMismatch, err)
	}
	return nil
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func intsIndex(s []int, v int) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
