package elf

import (
	"unsafe"

	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
)

// LibInfo describes a dependent shared library already resolved and loaded
// into the target address space by the caller's resolver callback.
type LibInfo struct {
	LoadOffset uint32
	Symbols    map[string]uint32
}

// ResolveLibFn resolves one DT_NEEDED entry's library name to its load
// offset and exported symbol table.
type ResolveLibFn func(name string) (LibInfo, *kernel.Error)

// Load installs image's PT_LOAD segments into pd, zero-filling each
// segment's BSS tail, and returns the image's entry point. If the image
// carries a PT_DYNAMIC segment, Load also resolves every DT_NEEDED
// dependency through resolveLib and fills the global offset table.
func Load(pd *vmm.PageDirectory, alloc *pmm.Allocator, image []byte, resolveLib ResolveLibFn) (uint32, *kernel.Error) {
	h, err := parseHeader(image)
	if err != nil {
		return 0, err
	}

	var dynOff, dynSize uint32

	for i := uint16(0); i < h.phnum; i++ {
		off := h.phoff + uint32(i)*uint32(h.phentsize)
		ph := parseProgramHeader(image, off)

		switch ph.pType {
		case ptLoad:
			if ph.memsz == 0 {
				continue
			}
			if uint64(ph.offset)+uint64(ph.filesz) > uint64(len(image)) {
				return 0, ErrTruncated
			}
			if err := installSegment(pd, alloc, image, ph); err != nil {
				return 0, err
			}
		case ptDynamic:
			dynOff, dynSize = ph.offset, ph.filesz
		}
	}

	if dynSize > 0 {
		if err := linkDynamic(pd, alloc, image, dynOff, dynSize, resolveLib); err != nil {
			return 0, err
		}
	}

	return h.entry, nil
}

// installSegment maps every page covering [vaddr, vaddr+memsz) and copies
// filesz bytes of file content into them. Because AllocFrame(true) zeroes
// every newly allocated frame, the BSS tail needs no separate zero-fill
// pass.
func installSegment(pd *vmm.PageDirectory, alloc *pmm.Allocator, image []byte, ph programHeader) *kernel.Error {
	perm := vmm.FlagRead | vmm.FlagUser
	if ph.flags&pfWrite != 0 {
		perm |= vmm.FlagWrite
	}

	start := mem.PageAlignDown(ph.vaddr)
	end := mem.PageAlignUp(ph.vaddr + ph.memsz)

	for va := start; va < end; va += uint32(mem.PageSize) {
		entry, err := vmm.Walk(pd, va, true, alloc)
		if err != nil {
			return err
		}
		if !entry.HasFlags(vmm.FlagValid) {
			frame, err := alloc.AllocFrame(true)
			if err != nil {
				return err
			}
			if err := vmm.Insert(pd, va, frame, perm, alloc); err != nil {
				return err
			}
		}
	}

	if ph.filesz == 0 {
		return nil
	}

	copied := uint32(0)
	for copied < ph.filesz {
		va := ph.vaddr + copied
		pageVA := mem.PageAlignDown(va)
		pageOff := va - pageVA

		chunk := uint32(mem.PageSize) - pageOff
		if remaining := ph.filesz - copied; chunk > remaining {
			chunk = remaining
		}

		frame, _, ok := vmm.Lookup(pd, pageVA, alloc)
		if !ok {
			return kernelErrBadInstall
		}

		src := uintptr(unsafe.Pointer(&image[ph.offset+copied]))
		dst := frame.Address() + uintptr(pageOff)
		mem.Memcopy(src, dst, mem.Size(chunk))

		copied += chunk
	}

	return nil
}

var kernelErrBadInstall = &kernel.Error{Module: "elf", Message: "segment page missing after install"}
