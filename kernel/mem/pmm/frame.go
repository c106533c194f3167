// Package pmm manages the system's physical memory frames: a bootstrap bump
// allocator used before the frame table exists, and a reference-counted
// free-list allocator used for everything after.
package pmm

import (
	"math"

	"github.com/HollowLamp/cse-os/kernel/mem"
)

// Frame describes a physical memory page index.
type Frame uint32

// InvalidFrame is returned by allocators when they fail to reserve a frame
// and is used as the free-list terminator.
const InvalidFrame = Frame(math.MaxUint32)

// Valid returns true if this is not the sentinel InvalidFrame value.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the address, inside the allocator's backing store, of the
// physical memory represented by this frame. It panics if called before the
// owning Allocator's Init.
func (f Frame) Address() uintptr {
	if storeBase == 0 {
		panic("pmm: frame store not initialized")
	}
	return storeBase + uintptr(f)<<mem.PageShift
}
