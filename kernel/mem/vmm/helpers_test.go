package vmm

import "github.com/HollowLamp/cse-os/kernel/mem/pmm"

// testAllocator returns a frame allocator backed by enough simulated
// physical memory for the page-table engine tests, with no frames
// reserved for a kernel image.
func testAllocator() *pmm.Allocator {
	a := pmm.Init(256, 0)
	a.InitFreeList()
	return a
}
