package vmm

import (
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
)

// ForEachMappingInRange calls fn once for every valid leaf mapping whose
// directory index falls in [startDirIndex, endDirIndex), skipping the
// self-map slots. Used to walk the user-space portion of an address space
// for sharing (thread_create) or teardown (env_free).
func ForEachMappingInRange(pd *PageDirectory, startDirIndex, endDirIndex uint32, fn func(va uint32, frame pmm.Frame, perm PTEFlag)) {
	dirEntries := pd.entries()
	for di := startDirIndex; di < endDirIndex; di++ {
		if di == SelfMapKernelIndex || di == SelfMapUserIndex {
			continue
		}
		de := dirEntries[di]
		if !de.HasFlags(FlagValid) {
			continue
		}
		tbl := entriesAt(de.Frame())
		for ti := uint32(0); ti < mem.NPTEntries; ti++ {
			e := tbl[ti]
			if !e.HasFlags(FlagValid) {
				continue
			}
			va := (di << (mem.PTXShift + mem.PageShift)) | (ti << mem.PageShift)
			fn(va, e.Frame(), PTEFlag(e)&permMask)
		}
	}
}

// ForEachMapping is ForEachMappingInRange over [0, dirLimit).
func ForEachMapping(pd *PageDirectory, dirLimit uint32, fn func(va uint32, frame pmm.Frame, perm PTEFlag)) {
	ForEachMappingInRange(pd, 0, dirLimit, fn)
}

// UnmapRange removes every valid leaf mapping whose directory index falls
// in [startDirIndex, endDirIndex), through the ordinary Remove path so
// reference counts and the TLB invalidation hook stay correct. Mappings
// are collected before removal since Remove mutates the same page-table
// page being walked.
func UnmapRange(pd *PageDirectory, alloc *pmm.Allocator, startDirIndex, endDirIndex uint32) {
	var vas []uint32
	ForEachMappingInRange(pd, startDirIndex, endDirIndex, func(va uint32, _ pmm.Frame, _ PTEFlag) {
		vas = append(vas, va)
	})
	for _, va := range vas {
		Remove(pd, va, alloc)
	}
}
