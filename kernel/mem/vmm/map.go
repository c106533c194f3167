package vmm

import (
	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
)

const permMask = FlagRead | FlagWrite | FlagUser | FlagDirty

// Insert maps va to frame inside pd with the given permission bits. If va
// was already mapped to a different frame, that mapping's reference is
// dropped first. If va already mapped to frame, only the permission bits
// change. The caller is responsible for holding a reference on frame
// (normally by having just allocated it, or via an explicit IncRef) before
// calling Insert; Insert never increments a frame's reference count itself,
// only decrements the count of a mapping it displaces.
func Insert(pd *PageDirectory, va uint32, frame pmm.Frame, perm PTEFlag, alloc *pmm.Allocator) *kernel.Error {
	entry, err := Walk(pd, va, true, alloc)
	if err != nil {
		return err
	}

	if entry.HasFlags(FlagValid) {
		if entry.Frame() == frame {
			entry.ClearFlags(permMask)
			entry.SetFlags(perm)
			invalidateTLBFn(va)
			return nil
		}
		alloc.FreeFrame(entry.Frame())
	}

	*entry = 0
	entry.SetFrame(frame)
	entry.SetFlags(FlagValid | perm)
	invalidateTLBFn(va)
	return nil
}

// Remove clears va's mapping inside pd, if any, decrementing the mapped
// frame's reference count. It is a no-op if va is unmapped.
func Remove(pd *PageDirectory, va uint32, alloc *pmm.Allocator) {
	entry, _ := Walk(pd, va, false, alloc)
	if entry == nil || !entry.HasFlags(FlagValid) {
		return
	}

	f := entry.Frame()
	*entry = 0
	alloc.FreeFrame(f)
	invalidateTLBFn(va)
}

// Lookup returns the frame mapped at va inside pd, if present.
func Lookup(pd *PageDirectory, va uint32, alloc *pmm.Allocator) (pmm.Frame, PTEFlag, bool) {
	entry, _ := Walk(pd, va, false, alloc)
	if entry == nil || !entry.HasFlags(FlagValid) {
		return pmm.InvalidFrame, 0, false
	}
	return entry.Frame(), PTEFlag(*entry) & permMask, true
}
