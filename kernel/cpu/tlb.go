package cpu

import (
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
)

// NumTLBEntries is the size of the simulated TLB. A real MIPS TLB has
// between 16 and 64 entries; 32 is a representative middle ground.
const NumTLBEntries = 32

// Entry is one TLB slot: a mapping from (virtual page, ASID) to a physical
// frame and its permission bits, as last installed by Refill.
type Entry struct {
	VPN   uint32
	ASID  uint8
	Frame pmm.Frame
	Perm  vmm.PTEFlag
	Valid bool
}

// TLB is the kernel's single software-managed translation lookaside
// buffer. There is exactly one; kernel/trap refills it on a miss and
// invalidates entries on unmap.
var TLB = newTLB()

type tlbState struct {
	entries    [NumTLBEntries]Entry
	nextVictim int
}

func newTLB() *tlbState {
	return &tlbState{}
}

// Probe returns the entry mapping va under asid, if the TLB currently holds
// one.
func (t *tlbState) Probe(va uint32, asid uint8) (Entry, bool) {
	vpn := vmm.PageFromAddress(va)
	for i := range t.entries {
		e := &t.entries[i]
		if e.Valid && e.ASID == asid && e.VPN == uint32(vpn) {
			return *e, true
		}
	}
	return Entry{}, false
}

// Refill installs a new mapping at the next round-robin victim index,
// overwriting whatever was there.
func (t *tlbState) Refill(va uint32, asid uint8, frame pmm.Frame, perm vmm.PTEFlag) {
	idx := t.nextVictim
	t.nextVictim = (t.nextVictim + 1) % NumTLBEntries

	t.entries[idx] = Entry{
		VPN:   uint32(vmm.PageFromAddress(va)),
		ASID:  asid,
		Frame: frame,
		Perm:  perm,
		Valid: true,
	}
}

// SetDirty marks the TLB entry mapping va under asid as having its dirty
// bit set, used by the TLB-modified exception handler when a store hits a
// clean-but-writable page.
func (t *tlbState) SetDirty(va uint32, asid uint8) bool {
	vpn := vmm.PageFromAddress(va)
	for i := range t.entries {
		e := &t.entries[i]
		if e.Valid && e.ASID == asid && e.VPN == uint32(vpn) {
			e.Perm |= vmm.FlagDirty
			return true
		}
	}
	return false
}

// Invalidate removes the entry mapping va under asid, if present. This is
// the operation the page-table engine calls after every Insert/Remove so a
// stale translation cannot outlive its page-table entry.
func (t *tlbState) Invalidate(va uint32, asid uint8) {
	vpn := vmm.PageFromAddress(va)
	for i := range t.entries {
		e := &t.entries[i]
		if e.Valid && e.ASID == asid && e.VPN == uint32(vpn) {
			*e = Entry{}
			return
		}
	}
}

// Reset clears every TLB entry and returns the round-robin victim index
// to slot 0.
func (t *tlbState) Reset() {
	*t = tlbState{}
}
