// Package scratch implements the bump allocator spec.md's Design Notes
// permit for scaled accumulate: "Implementations may use a per-process bump
// allocator reset at all_fence boundaries; the public contract fixes only
// the arithmetic result." Grounded on the teacher's microbatch package
// (_examples/joeycumines-go-utilpkg/microbatch/microbatch.go): where a
// Batcher accumulates jobs until a flush boundary then hands them to a
// processor in one shot, Arena accumulates scaled-accumulate scratch bytes
// until an AllFence boundary and resets in one call, avoiding a heap
// allocation on the common scaled-accumulate path.
package scratch

import "sync"

// Arena is a bump allocator reset wholesale at fence boundaries.
type Arena struct {
	mu     sync.Mutex
	buf    []byte
	offset int
}

// New creates an empty Arena.
func New() *Arena { return &Arena{} }

// Alloc returns an n-byte slice from the arena, growing the backing buffer
// if needed. The returned slice is only valid until the next Reset.
func (a *Arena) Alloc(n int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.offset+n > len(a.buf) {
		grown := make([]byte, a.offset+n)
		copy(grown, a.buf)
		a.buf = grown
	}
	out := a.buf[a.offset : a.offset+n]
	a.offset += n
	return out
}

// Reset reclaims all bytes handed out since the last Reset, without
// releasing the backing array. Called at every all_fence / AllFence
// boundary, per spec.md's Design Notes.
func (a *Arena) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.offset = 0
}
