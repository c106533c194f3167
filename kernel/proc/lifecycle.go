package proc

import (
	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/cpu"
	"github.com/HollowLamp/cse-os/kernel/elf"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
)

// errFreeNotCurrent is returned by Free when asked to tear down an
// environment other than the one currently running. Freeing another live
// environment would leave its ASID's TLB entries stale with nothing to
// invalidate them; this design only emits that invalidation for the
// environment giving up the CPU.
var errFreeNotCurrent = &kernel.Error{Module: "proc", Message: "env_free is only safe for the currently running environment", Kind: kernel.KindBadEnv}

// Alloc pops a free slot and brings up a fresh address space for it: a new
// page directory with the boot directory's kernel entries copied in, a
// stack pointer at the top of user space, and an exit trampoline planted
// into the saved return address. It does not splice the environment onto
// the runnable ring; Create and ThreadCreate do that once the environment
// is ready to run.
func (t *Table) Alloc(parentID uint32) (*Env, *kernel.Error) {
	t.mu.Lock()
	if t.freeHead == nil {
		t.mu.Unlock()
		return nil, ErrNoFreeEnv
	}
	e := t.freeHead
	t.freeHead = e.link
	e.link = nil
	t.mu.Unlock()

	pd, err := vmm.NewPageDirectory(t.alloc)
	if err != nil {
		t.pushFree(e)
		return nil, err
	}
	pd.CopyKernelEntries(t.bootDir, t.alloc)

	e.id = t.idFor(e.slot)
	e.parentID = parentID
	e.status = StatusRunnable
	e.pgdir = pd
	e.cr3 = pd.Frame().Address()
	e.trapFrame = TrapFrame{}
	e.trapFrame.GPR[RegSP] = uint32(mem.UserStackTop)
	e.trapFrame.GPR[RegRA] = ExitTrampoline
	e.runs = 0
	e.heapPC = uint32(mem.UserTop)

	return e, nil
}

// AllocArg is Alloc plus planting arg0/arg1 into the saved a0/a1
// registers, the convention thread_create uses to pass a thread its
// function argument.
func (t *Table) AllocArg(parentID, arg0, arg1 uint32) (*Env, *kernel.Error) {
	e, err := t.Alloc(parentID)
	if err != nil {
		return nil, err
	}
	e.trapFrame.GPR[RegA0] = arg0
	e.trapFrame.GPR[RegA1] = arg1
	return e, nil
}

// LoadProgram maps a fresh user stack page and installs image's segments
// into e's address space via the ELF loader. The active MMU context is
// temporarily switched to e's directory and ASID around the call, since a
// real TLB refill taken while installing segments must resolve against
// e's tables rather than the caller's.
func (t *Table) LoadProgram(e *Env, image []byte, resolveLib elf.ResolveLibFn) *kernel.Error {
	stackFrame, err := t.alloc.AllocFrame(true)
	if err != nil {
		return err
	}
	stackVA := uint32(mem.UserStackTop) - uint32(mem.PageSize)
	if err := vmm.Insert(e.pgdir, stackVA, stackFrame, vmm.FlagRead|vmm.FlagWrite|vmm.FlagUser, t.alloc); err != nil {
		return err
	}

	prevCR3, prevASID := cpu.ActiveContext()
	cpu.SwitchContext(e.cr3, e.ASID())
	entry, lerr := elf.Load(e.pgdir, t.alloc, image, resolveLib)
	cpu.SwitchContext(prevCR3, prevASID)
	if lerr != nil {
		return lerr
	}

	e.trapFrame.PC = entry
	e.trapFrame.GPR[RegT9] = entry
	return nil
}

// Create allocates a new environment, loads image into it, assigns
// priority, and splices it onto the tail of the runnable ring. arg, if
// non-nil, seeds the a0/a1 registers. sharedKey, if non-nil, attaches the
// registry's shared page at the new environment's heap pointer.
func (t *Table) Create(parentID, priority uint32, image []byte, arg *[2]uint32, sharedKey *int64, resolveLib elf.ResolveLibFn) (*Env, *kernel.Error) {
	var e *Env
	var err *kernel.Error
	if arg != nil {
		e, err = t.AllocArg(parentID, arg[0], arg[1])
	} else {
		e, err = t.Alloc(parentID)
	}
	if err != nil {
		return nil, err
	}

	e.priority = priority

	if err := t.LoadProgram(e, image, resolveLib); err != nil {
		t.discard(e)
		return nil, err
	}

	if sharedKey != nil {
		if err := t.registry.AttachShared(e.pgdir, e.heapPC, *sharedKey, t.alloc); err != nil {
			t.discard(e)
			return nil, err
		}
		e.heapPC += uint32(mem.PageSize)
	}

	t.mu.Lock()
	t.spliceRunnable(e)
	t.mu.Unlock()

	return e, nil
}

// ThreadCreate allocates a new environment that shares every valid
// user-space leaf mapping below the stack region with parent, read/write
// and refcounted, then gets a fresh demand-paged stack of its own and
// starts executing fn(arg).
func (t *Table) ThreadCreate(parent *Env, fn, arg uint32) (*Env, *kernel.Error) {
	child, err := t.Alloc(parent.id)
	if err != nil {
		return nil, err
	}

	dirLimit := mem.PDX(uint32(mem.UserTop))
	var shareErr *kernel.Error
	vmm.ForEachMapping(parent.pgdir, dirLimit, func(va uint32, frame pmm.Frame, _ vmm.PTEFlag) {
		if shareErr != nil {
			return
		}
		t.alloc.IncRef(frame)
		if ierr := vmm.Insert(child.pgdir, va, frame, vmm.FlagRead|vmm.FlagWrite|vmm.FlagUser, t.alloc); ierr != nil {
			shareErr = ierr
		}
	})
	if shareErr != nil {
		t.discard(child)
		return nil, shareErr
	}

	stackDirIndex := mem.PDX(uint32(mem.UserStackTop) - 1)
	vmm.UnmapRange(child.pgdir, t.alloc, stackDirIndex, stackDirIndex+1)

	child.trapFrame.PC = fn
	child.trapFrame.GPR[RegT9] = fn
	child.trapFrame.GPR[RegA0] = arg

	t.mu.Lock()
	t.spliceRunnable(child)
	t.mu.Unlock()

	return child, nil
}

// Free tears down e's address space, removes it from the runnable ring,
// and returns its slot to the free list with a bumped generation so a
// future occupant of this slot gets a distinct id. current must be e: see
// errFreeNotCurrent.
func (t *Table) Free(e *Env, current *Env) *kernel.Error {
	if e != current {
		return errFreeNotCurrent
	}

	t.teardownAddressSpace(e)

	t.mu.Lock()
	t.unlinkRunnable(e)
	t.retire(e)
	t.mu.Unlock()

	return nil
}

// discard tears down a partially built environment (e.g. one whose ELF
// load failed) that was never spliced onto the runnable ring, so only the
// free-list and generation bookkeeping applies.
func (t *Table) discard(e *Env) {
	t.teardownAddressSpace(e)

	t.mu.Lock()
	t.retire(e)
	t.mu.Unlock()
}

// teardownAddressSpace removes every user-space leaf mapping and releases
// the directory's page-table pages and the directory frame itself.
func (t *Table) teardownAddressSpace(e *Env) {
	dirLimit := mem.PDX(uint32(mem.UserTop)-1) + 1
	vmm.UnmapRange(e.pgdir, t.alloc, 0, dirLimit)
	e.pgdir.Release(t.alloc)
}

// retire marks e free and pushes it onto the free list. Callers must hold
// t.mu.
func (t *Table) retire(e *Env) {
	e.status = StatusFree
	e.pgdir = nil
	e.cr3 = 0
	t.generation[e.slot]++
	t.pushFreeLocked(e)
}
