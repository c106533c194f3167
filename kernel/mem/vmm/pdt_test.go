package vmm

import (
	"testing"

	"github.com/HollowLamp/cse-os/kernel/mem"
)

func TestNewPageDirectoryInstallsSelfMap(t *testing.T) {
	alloc := testAllocator()

	pd, err := NewPageDirectory(alloc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := pd.entries()
	if !entries[SelfMapKernelIndex].HasFlags(FlagValid | FlagRead | FlagWrite) {
		t.Fatal("expected kernel self-map entry to be valid and RW")
	}
	if entries[SelfMapKernelIndex].Frame() != pd.Frame() {
		t.Fatal("expected kernel self-map entry to point at the directory's own frame")
	}
	if !entries[SelfMapUserIndex].HasFlags(FlagValid | FlagRead | FlagUser) {
		t.Fatal("expected user self-map entry to be valid, readable and user-accessible")
	}
	if entries[SelfMapUserIndex].HasFlags(FlagWrite) {
		t.Fatal("expected user self-map entry to be read-only")
	}
}

func TestCopyKernelEntriesSkipsSelfMapAndSharesTables(t *testing.T) {
	alloc := testAllocator()

	boot, err := NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}

	// Install a kernel mapping in the boot directory so there is
	// something non-self-map to copy.
	kernelVA := uint32(mem.KernelReservedBase)
	frame, err := alloc.AllocFrame(true)
	if err != nil {
		t.Fatal(err)
	}
	if err := Insert(boot, kernelVA, frame, FlagRead|FlagWrite, alloc); err != nil {
		t.Fatal(err)
	}

	child, err := NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}
	child.CopyKernelEntries(boot, alloc)

	childDirIdx := mem.PDX(kernelVA)
	bootTableFrame := boot.entries()[childDirIdx].Frame()
	childTableFrame := child.entries()[childDirIdx].Frame()

	if childTableFrame != bootTableFrame {
		t.Fatalf("expected the child to share the boot directory's page-table page; got %v want %v", childTableFrame, bootTableFrame)
	}
	if alloc.RefCount(bootTableFrame) < 2 {
		t.Fatalf("expected shared page-table page's refcount to reflect both directories; got %d", alloc.RefCount(bootTableFrame))
	}

	// The self-map entries must not have been clobbered by the copy.
	if child.entries()[SelfMapKernelIndex].Frame() != child.Frame() {
		t.Fatal("expected child's self-map entry to still point at its own frame after CopyKernelEntries")
	}
}

func TestReleaseFreesOwnedTablesButNotSelfMap(t *testing.T) {
	alloc := testAllocator()

	pd, err := NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}

	frame, err := alloc.AllocFrame(true)
	if err != nil {
		t.Fatal(err)
	}
	if err := Insert(pd, 0x1000, frame, FlagRead|FlagWrite|FlagUser, alloc); err != nil {
		t.Fatal(err)
	}

	tableFrame := pd.entries()[mem.PDX(0x1000)].Frame()
	dirFrame := pd.Frame()

	pd.Release(alloc)

	if !alloc.OnFreeList(dirFrame) {
		t.Fatal("expected directory frame to be freed")
	}
	if !alloc.OnFreeList(tableFrame) {
		t.Fatal("expected owned page-table page to be freed")
	}
}
