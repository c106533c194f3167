package vmm

import (
	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
)

// Translate resolves a virtual address to its backing physical address
// inside pd, or ErrInvalidMapping if va has no present mapping.
func Translate(pd *PageDirectory, va uint32, alloc *pmm.Allocator) (uintptr, *kernel.Error) {
	frame, _, ok := Lookup(pd, va, alloc)
	if !ok {
		return 0, ErrInvalidMapping
	}
	return frame.Address() + uintptr(mem.PageOffset(va)), nil
}
