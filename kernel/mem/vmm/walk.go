package vmm

import (
	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
)

// Walk returns the page-table entry for va inside pd. If the directory
// entry for va's page-table page is absent and create is false, Walk
// returns (nil, nil): there is no mapping and none was requested. If create
// is true, a fresh page-table page is allocated and counted against the
// frame allocator, and its directory entry is installed with kernel RW
// permission; leaf permission is set later by Insert.
func Walk(pd *PageDirectory, va uint32, create bool, alloc *pmm.Allocator) (*pte, *kernel.Error) {
	dirIndex := mem.PDX(va)
	if dirIndex == SelfMapKernelIndex || dirIndex == SelfMapUserIndex {
		return nil, errSelfMapAccess
	}

	dirEntries := pd.entries()
	dirEntry := &dirEntries[dirIndex]

	if !dirEntry.HasFlags(FlagValid) {
		if !create {
			return nil, nil
		}

		tableFrame, err := alloc.AllocFrame(true)
		if err != nil {
			return nil, err
		}

		*dirEntry = 0
		dirEntry.SetFrame(tableFrame)
		dirEntry.SetFlags(FlagValid | FlagRead | FlagWrite)
	}

	tableEntries := entriesAt(dirEntry.Frame())
	return &tableEntries[mem.PTX(va)], nil
}

var errSelfMapAccess = &kernel.Error{Module: "vmm", Message: "virtual address falls inside the reserved self-map range", Kind: kernel.KindInvalidEnv}
