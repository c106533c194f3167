package vmm

import (
	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
)

// ErrInvalidMapping is returned when looking up a virtual address that has
// no present mapping.
var ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page", Kind: kernel.KindInvalidEnv}

// PTEFlag describes a permission or status bit carried by a page-table
// entry. Values mirror the V/R/W/U/D bits named by the platform: valid,
// readable, writable, user-accessible, dirty.
type PTEFlag uint32

const (
	FlagValid PTEFlag = 1 << iota
	FlagRead
	FlagWrite
	FlagUser
	FlagDirty
)

const ptePhysPageMask = uint32(0xFFFFF000)

// pte is a single page-table or page-directory entry: a frame number packed
// with permission bits in the low 12 bits normally occupied by the page
// offset, since frame addresses are always page-aligned.
type pte uint32

// HasFlags returns true if every bit in flags is set on this entry.
func (p pte) HasFlags(flags PTEFlag) bool {
	return uint32(p)&uint32(flags) == uint32(flags)
}

// HasAnyFlag returns true if at least one bit in flags is set on this entry.
func (p pte) HasAnyFlag(flags PTEFlag) bool {
	return uint32(p)&uint32(flags) != 0
}

// SetFlags ORs flags into this entry.
func (p *pte) SetFlags(flags PTEFlag) {
	*p = pte(uint32(*p) | uint32(flags))
}

// ClearFlags clears flags from this entry.
func (p *pte) ClearFlags(flags PTEFlag) {
	*p = pte(uint32(*p) &^ uint32(flags))
}

// Frame returns the physical frame this entry currently points to.
func (p pte) Frame() pmm.Frame {
	return pmm.Frame((uint32(p) & ptePhysPageMask) >> mem.PageShift)
}

// SetFrame updates the frame this entry points to, preserving flag bits.
func (p *pte) SetFrame(f pmm.Frame) {
	*p = pte((uint32(*p) &^ ptePhysPageMask) | (uint32(f) << mem.PageShift))
}
