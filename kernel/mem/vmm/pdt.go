package vmm

import (
	"reflect"
	"unsafe"

	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
)

const (
	// SelfMapKernelIndex is the directory slot that maps the directory
	// frame onto itself for kernel-only self-walking.
	SelfMapKernelIndex = mem.NPTEntries - 1

	// SelfMapUserIndex is the directory slot that maps the directory
	// frame onto itself with user-readable permission, so user-mode
	// debugging helpers can inspect their own page tables.
	SelfMapUserIndex = mem.NPTEntries - 2
)

// PageDirectory is a 1024-entry top-level page table. Each entry either
// points at a 1024-entry page-table page or is invalid. Two of its entries
// are reserved for the self-map and are excluded from ordinary leaf
// reference counting.
type PageDirectory struct {
	dirFrame pmm.Frame
}

// entriesAt overlays a [mem.NPTEntries]pte view on top of the page backing
// the given frame. This stands in for the teacher's recursive-mapping trick:
// since physical memory here is a simulated backing store rather than real
// hardware, every frame is directly addressable regardless of which
// directory is "active".
func entriesAt(f pmm.Frame) []pte {
	return *(*[]pte)(unsafe.Pointer(&reflect.SliceHeader{
		Data: f.Address(),
		Len:  mem.NPTEntries,
		Cap:  mem.NPTEntries,
	}))
}

// NewPageDirectory allocates a fresh, zeroed directory frame and installs
// its self-map entries.
func NewPageDirectory(alloc *pmm.Allocator) (*PageDirectory, *kernel.Error) {
	f, err := alloc.AllocFrame(true)
	if err != nil {
		return nil, err
	}

	pd := &PageDirectory{dirFrame: f}
	entries := entriesAt(f)

	entries[SelfMapKernelIndex] = 0
	entries[SelfMapKernelIndex].SetFrame(f)
	entries[SelfMapKernelIndex].SetFlags(FlagValid | FlagRead | FlagWrite)

	entries[SelfMapUserIndex] = 0
	entries[SelfMapUserIndex].SetFrame(f)
	entries[SelfMapUserIndex].SetFlags(FlagValid | FlagRead | FlagUser)

	return pd, nil
}

// Frame returns the physical frame backing this directory, used as the
// environment's cr3 value.
func (pd *PageDirectory) Frame() pmm.Frame {
	return pd.dirFrame
}

// entries returns the directory's 1024 top-level entries.
func (pd *PageDirectory) entries() []pte {
	return entriesAt(pd.dirFrame)
}

// CopyKernelEntries copies every non-self-map directory entry from src into
// pd, used when bootstrapping a new environment's directory from the boot
// directory. Copied page-table pages are shared, not duplicated: their
// reference counts are bumped to reflect the new directory's retention.
func (pd *PageDirectory) CopyKernelEntries(src *PageDirectory, alloc *pmm.Allocator) {
	dst := pd.entries()
	srcEntries := src.entries()
	for i := 0; i < mem.NPTEntries; i++ {
		if i == SelfMapKernelIndex || i == SelfMapUserIndex {
			continue
		}
		if !srcEntries[i].HasFlags(FlagValid) {
			continue
		}
		dst[i] = srcEntries[i]
		alloc.IncRef(dst[i].Frame())
	}
}

// Release drops this directory's reference on every page-table page it
// owns (excluding the self-map entries, which point back at dirFrame and
// are never counted as leaves) and frees the directory frame itself. It
// does not walk into, or free, leaf data frames: callers must remove those
// mappings first.
func (pd *PageDirectory) Release(alloc *pmm.Allocator) {
	entries := pd.entries()
	for i := 0; i < mem.NPTEntries; i++ {
		if i == SelfMapKernelIndex || i == SelfMapUserIndex {
			continue
		}
		if entries[i].HasFlags(FlagValid) {
			alloc.FreeFrame(entries[i].Frame())
		}
	}
	alloc.FreeFrame(pd.dirFrame)
}
