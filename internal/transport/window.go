package transport

// Window is a transport-level handle spanning the union of a group's member
// slices, per spec.md's glossary: "the transport-level object providing
// one-sided access to the union of slices." It carries nothing but the
// Fabric and the world ranks participating in the window; the actual bytes
// and slice table live in the registry record that owns the Window.
type Window struct {
	Fabric  *Fabric
	Members []int // world ranks, in group-local order
}

// NewWindow constructs a Window over the given Fabric for the supplied
// world ranks (already ordered by local group rank).
func NewWindow(f *Fabric, members []int) *Window {
	m := make([]int, len(members))
	copy(m, members)
	return &Window{Fabric: f, Members: m}
}

// Target translates a group-local rank to a world rank.
func (w *Window) Target(localRank int) (int, bool) {
	if localRank < 0 || localRank >= len(w.Members) {
		return 0, false
	}
	return w.Members[localRank], true
}
