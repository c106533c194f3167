package mem

// Platform layout constants for the 32-bit, two-level software-walked page
// table described by the core. These mirror the PDX/PTX split used by
// mm/pmap.c in the original source: a virtual address is split into a
// 10-bit directory index, a 10-bit table index and a 12-bit page offset.
const (
	// NPTEntries is the number of entries in a page directory or page
	// table page (1024, matching a 4-byte PTE packed into a 4KiB page).
	NPTEntries = 1 << PDXShift

	// PDXShift/PTXShift are the bit widths of the directory and table
	// indices that make up a 32-bit virtual address.
	PDXShift = 10
	PTXShift = 10

	// LOG2NENV is the base-2 log of the number of environment table
	// slots; Env ids reserve LOG2NENV+1 low bits for the slot index.
	LOG2NENV = 10
	NENV     = 1 << LOG2NENV

	// UserTop is the first virtual address past the end of user space.
	// Shared-page attachments and the initial heap bump pointer start
	// here and grow upward, one page per attachment.
	UserTop = uintptr(0xEFFFF000)

	// UserStackTop is the highest address of the user stack region; the
	// first stack page is mapped at UserStackTop-PageSize.
	UserStackTop = UserTop

	// KernelReservedBase marks the start of the kernel-only virtual
	// region; a user-mode fault at or above this address is always
	// fatal to the faulting environment.
	KernelReservedBase = uintptr(0xF0000000)
)

// PDX extracts the page-directory index (bits 31:22) from a virtual address.
func PDX(va uint32) uint32 {
	return (va >> (PTXShift + PageShift)) & (NPTEntries - 1)
}

// PTX extracts the page-table index (bits 21:12) from a virtual address.
func PTX(va uint32) uint32 {
	return (va >> PageShift) & (NPTEntries - 1)
}

// PageOffset extracts the in-page byte offset (bits 11:0) from a virtual address.
func PageOffset(va uint32) uint32 {
	return va & uint32(PageSize-1)
}

// PageAlignDown rounds va down to the start of its containing page.
func PageAlignDown(va uint32) uint32 {
	return va &^ uint32(PageSize-1)
}

// PageAlignUp rounds va up to the start of the next page, unless va is
// already page-aligned.
func PageAlignUp(va uint32) uint32 {
	return PageAlignDown(va+uint32(PageSize)-1)
}
