// Package trap decodes the cause register the core reports on every trap
// into the kernel's page-fault, syscall and fatal-fault handling, the way
// the teacher's irq package dispatched x86 exception/IRQ vectors to
// registered handlers.
package trap

import (
	"github.com/HollowLamp/cse-os/kernel/cpu"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/proc"
)

// Cause enumerates the values the simulated cause register can report.
// These mirror the MIPS exception codes this design's trap frame is
// modeled on: the two TLB-miss variants are split by access direction so
// the page-fault handler can derive the right intent without decoding the
// faulting instruction itself.
type Cause uint8

const (
	CauseTLBLoad Cause = iota
	CauseTLBStore
	CauseTLBModified
	CauseAddressError
	CauseSyscall
	CauseIllegalInstruction
)

// Dispatch services one trapped cause for e, the environment that was
// running when the trap fired. faultVA is only meaningful for the three
// TLB causes and the address-error cause. A fault at proc.ExitTrampoline
// is a return off the end of the entry function and is serviced as a
// SysExit call. Dispatch reports whether e must be terminated as a result.
func Dispatch(cause Cause, e *proc.Env, table *proc.Table, alloc *pmm.Allocator, faultVA uint32) bool {
	if faultVA == proc.ExitTrampoline && cause <= CauseAddressError {
		e.TrapFrame().GPR[proc.RegV0] = uint32(SysExit)
		return Syscall(e, table)
	}

	switch cause {
	case CauseTLBLoad:
		terminate, _ := HandlePageFault(e, faultVA, IntentRead, alloc)
		return terminate

	case CauseTLBStore:
		terminate, _ := HandlePageFault(e, faultVA, IntentWrite, alloc)
		return terminate

	case CauseTLBModified:
		if cpu.TLB.SetDirty(faultVA, e.ASID()) {
			return false
		}
		// No live TLB entry to mark dirty: the entry must have been
		// evicted since the original load. Re-run the ordinary fault
		// path, which will refill it with write permission.
		terminate, _ := HandlePageFault(e, faultVA, IntentWrite, alloc)
		return terminate

	case CauseAddressError:
		return true

	case CauseSyscall:
		return Syscall(e, table)

	case CauseIllegalInstruction:
		return true

	default:
		return true
	}
}
