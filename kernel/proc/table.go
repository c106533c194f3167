package proc

import (
	"sync"

	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
)

// ErrNoFreeEnv is returned when every table slot is in use.
var ErrNoFreeEnv = &kernel.Error{Module: "proc", Message: "environment table exhausted", Kind: kernel.KindNoFreeEnv}

// ErrBadEnv is returned when an id does not name a live environment.
var ErrBadEnv = &kernel.Error{Module: "proc", Message: "envid lookup failed", Kind: kernel.KindBadEnv}

// envIDMask isolates the slot-index bits of an id: the low LOG2NENV+1
// bits, one more than strictly required to number NENV slots, matching
// the layout this design's id encoding specifies.
const envIDMask = uint32(1)<<(mem.LOG2NENV+1) - 1

// Table owns every environment slot, the free list threading unused ones,
// and the runnable ring threading scheduled ones.
type Table struct {
	mu sync.Mutex

	envs       []Env
	generation []uint32

	freeHead *Env

	runnableHead *Env
	runnableTail *Env

	alloc    *pmm.Allocator
	bootDir  *vmm.PageDirectory
	registry *vmm.SharedRegistry
}

// NewTable allocates the fixed-size environment table and links every slot
// onto the free list in high-to-low order, so slot 0 is handed out first.
// bootDir supplies the kernel-space entries every new address space starts
// from; registry backs attach-shared requests made through Create.
func NewTable(alloc *pmm.Allocator, bootDir *vmm.PageDirectory, registry *vmm.SharedRegistry) *Table {
	t := &Table{
		envs:       make([]Env, mem.NENV),
		generation: make([]uint32, mem.NENV),
		alloc:      alloc,
		bootDir:    bootDir,
		registry:   registry,
	}
	for i := mem.NENV - 1; i >= 0; i-- {
		t.envs[i].slot = i
		t.envs[i].status = StatusFree
		t.envs[i].heapPC = uint32(mem.UserTop)
		t.envs[i].link = t.freeHead
		t.freeHead = &t.envs[i]
	}
	return t
}

func (t *Table) idFor(slot int) uint32 {
	return (t.generation[slot] << (mem.LOG2NENV + 1)) | uint32(slot)
}

// Lookup returns the environment named by id, if it is currently live.
func (t *Table) Lookup(id uint32) (*Env, *kernel.Error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := int(id & envIDMask)
	if slot >= len(t.envs) {
		return nil, ErrBadEnv
	}
	e := &t.envs[slot]
	if e.status == StatusFree || e.id != id {
		return nil, ErrBadEnv
	}
	return e, nil
}

// RunnableHead returns the current head of the runnable ring, or nil if
// the system is idle.
func (t *Table) RunnableHead() *Env {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runnableHead
}

// NextRunnable returns the environment that follows after on the runnable
// ring, or the ring's head if after is nil. It returns nil if the ring is
// empty. The scheduler uses this to advance its cursor without reaching
// into the ring's internal linkage directly.
func (t *Table) NextRunnable(after *Env) *Env {
	t.mu.Lock()
	defer t.mu.Unlock()
	if after == nil {
		return t.runnableHead
	}
	return after.link
}

func (t *Table) pushFree(e *Env) {
	t.mu.Lock()
	t.pushFreeLocked(e)
	t.mu.Unlock()
}

func (t *Table) pushFreeLocked(e *Env) {
	e.link = t.freeHead
	t.freeHead = e
}
