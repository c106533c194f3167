package trap

import (
	"testing"

	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
	"github.com/HollowLamp/cse-os/kernel/proc"
)

func newTestEnv(t *testing.T) (*proc.Table, *proc.Env, *pmm.Allocator) {
	t.Helper()
	alloc := pmm.Init(1024, 0)
	alloc.InitFreeList()

	bootDir, err := vmm.NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}
	tbl := proc.NewTable(alloc, bootDir, vmm.NewSharedRegistry())

	e, err := tbl.Alloc(0)
	if err != nil {
		t.Fatal(err)
	}
	return tbl, e, alloc
}

func TestHandlePageFaultTerminatesOnKernelRegion(t *testing.T) {
	_, e, alloc := newTestEnv(t)

	terminate, err := HandlePageFault(e, uint32(mem.KernelReservedBase), IntentRead, alloc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !terminate {
		t.Fatal("expected a fault above the kernel-reserved boundary to terminate the env")
	}
}

func TestHandlePageFaultInstallsFreshFrameOnMiss(t *testing.T) {
	_, e, alloc := newTestEnv(t)

	const va = uint32(0x00400000)
	terminate, err := HandlePageFault(e, va, IntentRead, alloc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if terminate {
		t.Fatal("expected a plain demand-paging miss to resolve without terminating")
	}

	_, perm, ok := vmm.Lookup(e.PageDirectory(), va, alloc)
	if !ok {
		t.Fatal("expected the faulting address to now be mapped")
	}
	if perm&vmm.FlagWrite != 0 {
		t.Fatal("expected a read-intent fault to install a read-only mapping")
	}
}

func TestHandlePageFaultWriteIntentInstallsWritableDirtyMapping(t *testing.T) {
	_, e, alloc := newTestEnv(t)

	const va = uint32(0x00401000)
	if terminate, err := HandlePageFault(e, va, IntentWrite, alloc); err != nil || terminate {
		t.Fatalf("unexpected result: terminate=%v err=%v", terminate, err)
	}

	_, perm, ok := vmm.Lookup(e.PageDirectory(), va, alloc)
	if !ok {
		t.Fatal("expected the faulting address to now be mapped")
	}
	if perm&vmm.FlagWrite == 0 || perm&vmm.FlagDirty == 0 {
		t.Fatalf("expected a write-intent fault to install W|D; got %v", perm)
	}
}

func TestHandlePageFaultRetriesExistingAdequateMapping(t *testing.T) {
	_, e, alloc := newTestEnv(t)

	const va = uint32(0x00402000)
	if _, err := HandlePageFault(e, va, IntentWrite, alloc); err != nil {
		t.Fatal(err)
	}
	frameBefore, _, _ := vmm.Lookup(e.PageDirectory(), va, alloc)

	// A second write-intent fault at the same address must not replace
	// the existing mapping; it already has adequate permission.
	if terminate, err := HandlePageFault(e, va, IntentWrite, alloc); err != nil || terminate {
		t.Fatalf("unexpected result: terminate=%v err=%v", terminate, err)
	}
	frameAfter, _, _ := vmm.Lookup(e.PageDirectory(), va, alloc)
	if frameBefore != frameAfter {
		t.Fatal("expected re-faulting an adequately mapped page to leave the mapping untouched")
	}
}

func TestHandlePageFaultEscalatesOutOfMemoryToPanicFn(t *testing.T) {
	_, e, alloc := newTestEnv(t)

	// Drain the allocator's free list so the next AllocFrame fails.
	for {
		if _, ferr := alloc.AllocFrame(false); ferr != nil {
			break
		}
	}

	prev := panicFn
	var panicked bool
	panicFn = func(v interface{}) { panicked = true }
	defer func() { panicFn = prev }()

	terminate, err := HandlePageFault(e, 0x00400000, IntentRead, alloc)
	if !panicked {
		t.Fatal("expected an out-of-memory fault to escalate through panicFn")
	}
	if !terminate || err == nil {
		t.Fatalf("expected (true, non-nil) after the panic escape hatch; got (%v, %v)", terminate, err)
	}
}

func TestDispatchOnSyscallInvokesHandlerTable(t *testing.T) {
	tbl, e, _ := newTestEnv(t)

	var called bool
	Handlers[SysExit] = func(_ *proc.Env, _ *proc.Table) (uint32, bool) {
		called = true
		return 0, true
	}
	defer func() { Handlers[SysExit] = nil }()

	e.TrapFrame().GPR[proc.RegV0] = uint32(SysExit)
	if !Dispatch(CauseSyscall, e, tbl, nil, 0) {
		t.Fatal("expected SysExit to report termination")
	}
	if !called {
		t.Fatal("expected the registered SysExit handler to run")
	}
}

func TestDispatchUnknownSyscallTerminates(t *testing.T) {
	tbl, e, _ := newTestEnv(t)
	e.TrapFrame().GPR[proc.RegV0] = 0xFFFF
	if !Dispatch(CauseSyscall, e, tbl, nil, 0) {
		t.Fatal("expected an out-of-range syscall number to terminate the caller")
	}
}

func TestValidateUserPointerRejectsKernelRegionAndMisalignment(t *testing.T) {
	if err := ValidateUserPointer(uint32(mem.KernelReservedBase)); err == nil {
		t.Fatal("expected a kernel-region pointer to be rejected")
	}
	if err := ValidateUserPointer(0x00400001); err == nil {
		t.Fatal("expected a misaligned pointer to be rejected")
	}
	if err := ValidateUserPointer(0x00400000); err != nil {
		t.Fatalf("expected an aligned user pointer to validate cleanly; got %v", err)
	}
}

func TestDispatchAddressErrorAlwaysTerminates(t *testing.T) {
	tbl, e, _ := newTestEnv(t)
	if !Dispatch(CauseAddressError, e, tbl, nil, 0) {
		t.Fatal("expected an address-error cause to terminate the env")
	}
}
