// Package epoch implements spec.md's access-epoch manager (component C): a
// (window, target, mode) exclusivity tracker, with at most one epoch open
// per (window, target) on a given initiator at a time.
package epoch

import (
	"fmt"
	"sync"
)

// Mode is the kind of epoch: local (direct dereference of the caller's own
// slice) or remote (bracketing a one-sided call against a target).
type Mode int

const (
	Local Mode = iota
	Remote
)

// key identifies one (window, target) pair, scoped to the window's identity
// (a *transport.Window pointer, passed in as an any to avoid an import
// cycle with the transport package, which does not need to know about
// epochs).
type key struct {
	window any
	target int
}

// Manager tracks open epochs for one initiator (spec.md 4.C: "on a given
// initiator"). Each simulated participant owns exactly one Manager.
type Manager struct {
	mu   sync.Mutex
	open map[key]Mode
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{open: make(map[key]Mode)}
}

// ErrEpochBusy is returned when an epoch is opened against an already-open
// (window, target) pair, per spec.md §7's EpochBusy error kind.
var ErrEpochBusy = fmt.Errorf("epoch: busy")

// Begin opens an epoch. It fails with ErrEpochBusy if one is already open
// for this (window, target).
func (m *Manager) Begin(window any, target int, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{window: window, target: target}
	if _, ok := m.open[k]; ok {
		return ErrEpochBusy
	}
	m.open[k] = mode
	return nil
}

// End closes an epoch. Per spec.md 4.C, closing guarantees remote
// completion of everything issued inside it; in this module that guarantee
// is actually provided by transport.Fabric.Send blocking for its reply, so
// End here only needs to release the exclusivity slot.
func (m *Manager) End(window any, target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{window: window, target: target}
	if _, ok := m.open[k]; !ok {
		return fmt.Errorf("epoch: end without matching begin for target %d", target)
	}
	delete(m.open, k)
	return nil
}

// WithRemote opens a remote epoch against target, runs fn, and closes the
// epoch whether or not fn errors — the shape every transfer/RMW primitive
// in this module uses to bracket its one-sided call (spec.md 4.D step 3-5).
func (m *Manager) WithRemote(window any, target int, fn func() error) error {
	if err := m.Begin(window, target, Remote); err != nil {
		return err
	}
	defer func() { _ = m.End(window, target) }()
	return fn()
}

// WithLocal brackets a direct local dereference (AccessStart/AccessEnd),
// per spec.md 4.C: "Any direct local load/store to a registered region must
// be bracketed by a local epoch."
func (m *Manager) WithLocal(window any, selfRank int, fn func() error) error {
	if err := m.Begin(window, selfRank, Local); err != nil {
		return err
	}
	defer func() { _ = m.End(window, selfRank) }()
	return fn()
}
