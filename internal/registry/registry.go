// Package registry implements spec.md's memory-region registry (component
// B): it maps a (local address, owner rank) pair to the allocation record
// whose slice at that rank brackets the address. Addresses are represented
// as uintptr per spec.md's Design Notes ("a local address can be translated
// into (owner, window, offset) at any participant"), but every data-movement
// call converts them to a (record, offset) pair at the API boundary and
// never dereferences a remote one, per the same Design Notes section's
// "safer realization."
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/joeycumines/go-onesided/internal/transport"
)

// Slice is one participant's contribution to an allocation record.
type Slice struct {
	Base uintptr
	Size int
	// Bytes is the actual storage, present for every rank in this
	// single-process simulation (see SPEC_FULL.md §0): reads/writes to a
	// non-owning rank's Bytes must still go through transport.Fabric.Send
	// so they serialize on the owning Endpoint's goroutine.
	Bytes []byte
}

// Record is spec.md's "allocation record" / memory region.
type Record struct {
	ID     uint64
	Window *transport.Window
	// Members holds the world rank at each local group rank, mirroring
	// Window.Members (kept alongside it so records remain self-describing
	// after a group is freed).
	Members []int
	Slices  []Slice // indexed by local rank, len(Slices) == len(Members)
}

// LocalIndex returns the local rank index for a world rank, or -1.
func (r *Record) LocalIndex(worldRank int) int {
	for i, m := range r.Members {
		if m == worldRank {
			return i
		}
	}
	return -1
}

// Contains reports whether [addr, addr+size) lies entirely within the
// slice this record holds for worldRank.
func (r *Record) Contains(worldRank int, addr uintptr, size int) (local int, offset uintptr, ok bool) {
	local = r.LocalIndex(worldRank)
	if local < 0 {
		return -1, 0, false
	}
	s := r.Slices[local]
	if size < 0 || addr < s.Base || addr-s.Base > uintptr(s.Size) {
		return -1, 0, false
	}
	offset = addr - s.Base
	if uintptr(size) > uintptr(s.Size)-offset {
		return -1, 0, false
	}
	return local, offset, true
}

// entry is a registry row used for interval lookup: one per (rank, record).
type entry struct {
	base uintptr
	size int
	rec  *Record
}

// Registry is the per-process container of every live allocation record.
// Despite being "per-process" per spec.md, this simulation keeps exactly one
// shared Registry, since every simulated participant is a goroutine in the
// same OS process (see SPEC_FULL.md §0); this does not change lookup
// semantics, since every participant's registry holds the identical table in
// a real deployment anyway (spec.md §3: "Every participant holds the full
// table").
type Registry struct {
	mu      sync.RWMutex
	byRank  map[int][]entry // sorted by base, per rank
	nextID  uint64
	records map[uint64]*Record
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		byRank:  make(map[int][]entry),
		records: make(map[uint64]*Record),
	}
}

// Insert adds a newly created allocation record, per spec.md 4.B step 4
// ("The record is inserted into every member's registry"). Overlapping
// slices for the same rank are rejected, per spec.md 4.B's correctness
// requirement.
func (g *Registry) Insert(window *transport.Window, members []int, slices []Slice) (*Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextID++
	rec := &Record{ID: g.nextID, Window: window, Members: append([]int(nil), members...), Slices: slices}

	// validate no overlap, for every rank contributing non-zero bytes.
	for i, rank := range members {
		s := slices[i]
		if s.Size == 0 {
			continue
		}
		existing := g.byRank[rank]
		idx := sort.Search(len(existing), func(j int) bool { return existing[j].base >= s.Base })
		if idx > 0 {
			prev := existing[idx-1]
			if prev.base+uintptr(prev.size) > s.Base {
				return nil, fmt.Errorf("registry: overlapping slice at rank %d", rank)
			}
		}
		if idx < len(existing) && existing[idx].base < s.Base+uintptr(s.Size) {
			return nil, fmt.Errorf("registry: overlapping slice at rank %d", rank)
		}
	}

	for i, rank := range members {
		s := slices[i]
		if s.Size == 0 {
			continue
		}
		existing := g.byRank[rank]
		idx := sort.Search(len(existing), func(j int) bool { return existing[j].base >= s.Base })
		existing = append(existing, entry{})
		copy(existing[idx+1:], existing[idx:])
		existing[idx] = entry{base: s.Base, size: s.Size, rec: rec}
		g.byRank[rank] = existing
	}

	g.records[rec.ID] = rec
	return rec, nil
}

// Remove tears down a record, per spec.md 4.B: "All references from the
// registry are removed on destruction."
func (g *Registry) Remove(rec *Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, rank := range rec.Members {
		if rec.Slices[i].Size == 0 {
			continue
		}
		existing := g.byRank[rank]
		for j, e := range existing {
			if e.rec == rec {
				g.byRank[rank] = append(existing[:j], existing[j+1:]...)
				break
			}
		}
	}
	delete(g.records, rec.ID)
}

// Lookup resolves (addr, rank) to its allocation record, per spec.md 4.B:
// "Lookup takes (address, participant_rank) and returns the allocation
// record whose slice at that rank contains the address, or none."
func (g *Registry) Lookup(addr uintptr, worldRank int) (*Record, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	existing := g.byRank[worldRank]
	idx := sort.Search(len(existing), func(j int) bool { return existing[j].base+uintptr(existing[j].size) > addr })
	if idx >= len(existing) {
		return nil, false
	}
	e := existing[idx]
	if addr < e.base || addr >= e.base+uintptr(e.size) {
		return nil, false
	}
	return e.rec, true
}
