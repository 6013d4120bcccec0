package onesided

import (
	"fmt"

	"github.com/joeycumines/go-onesided/internal/epoch"
)

// AccessStart opens a local access epoch on ptr, spec.md 4.C: "access_start
// / access_end bracket a direct local load or store against the caller's
// own registered memory, excluding it against a concurrent remote epoch
// initiated by this same participant against itself." ptr is looked up in
// the registry at this participant's own rank to find its owning record;
// the exclusivity key is that record's window and this participant's own
// rank, matching the key a remote epoch against self would use.
func (p *Participant) AccessStart(ptr uintptr) error {
	rec, ok := p.rt.reg.Lookup(ptr, p.rank)
	if !ok {
		return p.fail("AccessStart", InvalidAddress, fmt.Errorf("address %#x not registered to rank %d", ptr, p.rank))
	}
	if err := p.epochMgr().Begin(rec.Window, p.rank, epoch.Local); err != nil {
		return p.fail("AccessStart", EpochBusy, err)
	}
	return nil
}

// AccessEnd closes the local access epoch opened by AccessStart against
// ptr's record.
func (p *Participant) AccessEnd(ptr uintptr) error {
	rec, ok := p.rt.reg.Lookup(ptr, p.rank)
	if !ok {
		return p.fail("AccessEnd", InvalidAddress, fmt.Errorf("address %#x not registered to rank %d", ptr, p.rank))
	}
	if err := p.epochMgr().End(rec.Window, p.rank); err != nil {
		return p.fail("AccessEnd", EpochBusy, err)
	}
	return nil
}
