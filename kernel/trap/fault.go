package trap

import (
	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/cpu"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
	"github.com/HollowLamp/cse-os/kernel/proc"
)

// Intent records which direction the faulting access went, derived from
// the cause code rather than decoded out of the faulting instruction.
type Intent uint8

const (
	IntentRead Intent = iota
	IntentWrite
)

// panicFn escalates an OutOfMemory hit inside the fault path to a kernel
// halt: the faulting instruction has no frame to retry with. It is
// swapped out in tests, since the real implementation never returns.
var panicFn = kernel.Panic

// HandlePageFault services a TLB-miss or TLB-modified trap for e. A fault
// at or above the kernel-reserved region is always fatal to the faulting
// environment. Otherwise the current mapping is consulted: if one already
// exists with permission adequate for intent, the refill can simply be
// retried against it. Otherwise a fresh zeroed frame is installed with
// permission derived from intent -- always user-readable, plus writable
// and dirty when the fault was a write.
func HandlePageFault(e *proc.Env, faultVA uint32, intent Intent, alloc *pmm.Allocator) (terminate bool, err error) {
	if faultVA >= uint32(mem.KernelReservedBase) {
		return true, nil
	}

	pd := e.PageDirectory()

	if frame, perm, ok := vmm.Lookup(pd, faultVA, alloc); ok {
		adequate := perm&vmm.FlagRead != 0
		if intent == IntentWrite {
			adequate = adequate && perm&vmm.FlagWrite != 0
		}
		if adequate {
			cpu.TLB.Refill(faultVA, e.ASID(), frame, perm)
			return false, nil
		}
	}

	perm := vmm.FlagRead | vmm.FlagUser
	if intent == IntentWrite {
		perm |= vmm.FlagWrite | vmm.FlagDirty
	}

	frame, ferr := alloc.AllocFrame(true)
	if ferr != nil {
		panicFn(ferr)
		return true, ferr
	}

	if ierr := vmm.Insert(pd, faultVA, frame, perm, alloc); ierr != nil {
		return true, ierr
	}

	cpu.TLB.Refill(faultVA, e.ASID(), frame, perm)
	return false, nil
}
