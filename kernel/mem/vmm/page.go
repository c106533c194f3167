package vmm

import "github.com/HollowLamp/cse-os/kernel/mem"

// Page describes a virtual memory page index.
type Page uint32

// Address returns the virtual address at the start of this page.
func (p Page) Address() uint32 {
	return uint32(p) << mem.PageShift
}

// PageFromAddress returns the Page containing virtAddr, rounding down if
// virtAddr is not itself page-aligned.
func PageFromAddress(virtAddr uint32) Page {
	return Page(mem.PageAlignDown(virtAddr) >> mem.PageShift)
}
