package proc

import (
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
)

// Status describes where an environment sits in its lifecycle.
type Status uint8

const (
	StatusFree Status = iota
	StatusRunnable
)

// ExitTrampoline is the sentinel return address planted into the ra
// register of a freshly allocated environment. A program that falls off
// the end of its entry function jumps here instead of into unmapped
// memory; the trap dispatcher recognizes a fault at this address and
// turns it into a clean exit instead of terminating the environment for
// an illegal access.
const ExitTrampoline = uint32(0xFFFFFFFC)

// Env is a single process-like execution context. It owns an address
// space, a saved register file, and a position on exactly one of the
// owning table's free list or runnable ring.
type Env struct {
	id       uint32
	parentID uint32
	priority uint32
	status   Status

	pgdir *vmm.PageDirectory
	cr3   uintptr

	trapFrame TrapFrame
	runs      uint32

	timeSliceRemaining uint32

	link *Env

	heapPC uint32

	slot int
}

// ID returns the environment's slot-and-generation identifier.
func (e *Env) ID() uint32 { return e.id }

// ParentID returns the id of the environment that created this one.
func (e *Env) ParentID() uint32 { return e.parentID }

// Status reports whether this environment is free or runnable.
func (e *Env) Status() Status { return e.status }

// PageDirectory returns the environment's address space.
func (e *Env) PageDirectory() *vmm.PageDirectory { return e.pgdir }

// CR3 returns the physical directory address to install into the MMU
// context register when this environment is scheduled.
func (e *Env) CR3() uintptr { return e.cr3 }

// ASID returns the 8-bit TLB address-space tag derived from this
// environment's id.
func (e *Env) ASID() uint8 { return uint8(e.id) }

// TrapFrame returns a pointer to the environment's saved register file.
func (e *Env) TrapFrame() *TrapFrame { return &e.trapFrame }

// Runs reports how many times this environment has been dispatched.
func (e *Env) Runs() uint32 { return e.runs }

// MarkDispatched increments the dispatch counter and recharges the
// remaining time slice from Priority. The scheduler calls this once, at
// the moment it installs e as the running environment.
func (e *Env) MarkDispatched() {
	e.runs++
	e.timeSliceRemaining = e.priority
}

// TimeSliceRemaining reports how many ticks remain before this
// environment's quantum expires.
func (e *Env) TimeSliceRemaining() uint32 { return e.timeSliceRemaining }

// TickTimeSlice decrements the remaining time slice by one and reports
// whether it has now been exhausted. Calling this when the remaining
// slice is already zero is a scheduler bug; it saturates at zero rather
// than underflowing.
func (e *Env) TickTimeSlice() (expired bool) {
	if e.timeSliceRemaining == 0 {
		return true
	}
	e.timeSliceRemaining--
	return e.timeSliceRemaining == 0
}

// Priority reports the environment's time-slice length in ticks.
func (e *Env) Priority() uint32 { return e.priority }

// Slot returns the environment's fixed index into the owning table.
func (e *Env) Slot() int { return e.slot }

// HeapPC returns the environment's current shared-attachment bump
// pointer.
func (e *Env) HeapPC() uint32 { return e.heapPC }
