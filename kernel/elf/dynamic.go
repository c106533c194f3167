package elf

import (
	"unsafe"

	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
)

const dynEntrySize = 8
const symEntrySize = 16

func parseDynTags(image []byte, off, size uint32) map[uint32]uint32 {
	tags := make(map[uint32]uint32)
	for o := off; o+dynEntrySize <= off+size; o += dynEntrySize {
		tag := le32(image, o)
		if tag == dtNull {
			break
		}
		if tag != dtNeeded { // DT_NEEDED may repeat; keep the last singleton tags only
			tags[tag] = le32(image, o+4)
		}
	}
	return tags
}

func collectNeeded(image []byte, off, size, strtab uint32) []string {
	var names []string
	for o := off; o+dynEntrySize <= off+size; o += dynEntrySize {
		tag := le32(image, o)
		if tag == dtNull {
			break
		}
		if tag == dtNeeded {
			names = append(names, cstr(image, strtab+le32(image, o+4)))
		}
	}
	return names
}

func cstr(image []byte, off uint32) string {
	end := off
	for end < uint32(len(image)) && image[end] != 0 {
		end++
	}
	return string(image[off:end])
}

type sym struct {
	name  uint32
	value uint32
	shndx uint16
}

func parseSym(image []byte, off uint32) sym {
	return sym{
		name:  le32(image, off+0),
		value: le32(image, off+4),
		shndx: le16(image, off+14),
	}
}

// linkDynamic resolves every DT_NEEDED dependency via resolveLib and fills
// the image's global offset table following the MIPS convention: entries
// [0, local_gotno) are reserved for the loader, and entries
// [local_gotno, local_gotno+(symtabno-gotsym)) correspond one-to-one with
// dynamic symbol table entries [gotsym, symtabno).
func linkDynamic(pd *vmm.PageDirectory, alloc *pmm.Allocator, image []byte, dynOff, dynSize uint32, resolveLib ResolveLibFn) *kernel.Error {
	tags := parseDynTags(image, dynOff, dynSize)

	pltgot := tags[dtPltgot]
	symtab := tags[dtSymtab]
	strtab := tags[dtStrtab]
	localGotno := tags[dtMipsLocalGotno]
	symtabno := tags[dtMipsSymtabno]
	gotsym := tags[dtMipsGotsym]

	libs := make(map[string]LibInfo)
	if resolveLib != nil {
		for _, name := range collectNeeded(image, dynOff, dynSize, strtab) {
			info, err := resolveLib(name)
			if err != nil {
				return err
			}
			libs[name] = info
		}
	}

	for i := uint32(0); i < symtabno-gotsym; i++ {
		s := parseSym(image, symtab+(gotsym+i)*symEntrySize)
		name := cstr(image, strtab+s.name)

		var addr uint32
		if s.shndx != 0 {
			// Defined in the main image; no relocation base since the
			// main executable is always installed at its linked addresses.
			addr = s.value
		} else {
			addr, _ = lookupInLibs(libs, name)
			// Unresolved symbols are left at zero: a warning, not a fault.
		}

		gotIndex := localGotno + i
		if err := writeGOTEntry(pd, alloc, pltgot, gotIndex, addr); err != nil {
			return err
		}
	}

	return nil
}

func lookupInLibs(libs map[string]LibInfo, name string) (uint32, bool) {
	for _, lib := range libs {
		if v, ok := lib.Symbols[name]; ok {
			return lib.LoadOffset + v, true
		}
	}
	return 0, false
}

// writeGOTEntry stores val into the GOT slot at the given index, which
// must already be mapped as part of the image's PT_LOAD segments.
func writeGOTEntry(pd *vmm.PageDirectory, alloc *pmm.Allocator, gotBase uint32, index uint32, val uint32) *kernel.Error {
	va := gotBase + index*4
	frame, _, ok := vmm.Lookup(pd, va&^uint32(4095), alloc)
	if !ok {
		return errGOTUnmapped
	}
	offset := va & 4095
	ptr := (*uint32)(unsafe.Pointer(frame.Address() + uintptr(offset)))
	*ptr = val
	return nil
}

var errGOTUnmapped = &kernel.Error{Module: "elf", Message: "GOT slot is not mapped"}
