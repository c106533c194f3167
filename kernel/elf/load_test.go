package elf

import (
	"encoding/binary"
	"testing"

	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
)

func testEnv(t *testing.T) (*vmm.PageDirectory, *pmm.Allocator) {
	alloc := pmm.Init(512, 0)
	alloc.InitFreeList()
	pd, err := vmm.NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}
	return pd, alloc
}

// buildImage assembles a minimal ELF32 image with a single PT_LOAD segment
// whose file contents are payload and whose memsz may exceed len(payload)
// to exercise BSS zero-fill.
func buildImage(entry, vaddr uint32, payload []byte, memsz uint32, flags uint32) []byte {
	const ehdrSize = 52
	const phdrSize = 32

	image := make([]byte, ehdrSize+phdrSize+len(payload))
	image[0], image[1], image[2], image[3] = 0x7F, 'E', 'L', 'F'
	image[4] = 1 // ELFCLASS32

	binary.LittleEndian.PutUint32(image[24:], entry)
	binary.LittleEndian.PutUint32(image[28:], ehdrSize) // e_phoff
	binary.LittleEndian.PutUint16(image[42:], phdrSize) // e_phentsize
	binary.LittleEndian.PutUint16(image[44:], 1)         // e_phnum

	ph := image[ehdrSize:]
	binary.LittleEndian.PutUint32(ph[0:], ptLoad)
	binary.LittleEndian.PutUint32(ph[4:], ehdrSize+phdrSize) // p_offset
	binary.LittleEndian.PutUint32(ph[8:], vaddr)
	binary.LittleEndian.PutUint32(ph[16:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(ph[20:], memsz)
	binary.LittleEndian.PutUint32(ph[24:], flags)

	copy(image[ehdrSize+phdrSize:], payload)
	return image
}

func TestLoadRejectsBadMagic(t *testing.T) {
	pd, alloc := testEnv(t)
	image := buildImage(0x1000, 0x1000, []byte{1, 2, 3}, 4096, pfExec)
	image[3] = 'X'

	if _, err := Load(pd, alloc, image, nil); err != ErrInvalid {
		t.Fatalf("expected ErrInvalid; got %v", err)
	}
}

func TestLoadRejectsTruncatedSegment(t *testing.T) {
	pd, alloc := testEnv(t)
	image := buildImage(0x1000, 0x1000, []byte{1, 2, 3, 4}, 4096, pfExec)
	image = image[:len(image)-2] // truncate the file contents

	if _, err := Load(pd, alloc, image, nil); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated; got %v", err)
	}
}

func TestLoadInstallsSegmentAndZeroFillsBSS(t *testing.T) {
	pd, alloc := testEnv(t)
	const vaddr = uint32(0x00400000)
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	image := buildImage(vaddr, vaddr, payload, 4096*2, pfExec|pfWrite)

	entry, err := Load(pd, alloc, image, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != vaddr {
		t.Fatalf("expected entry point 0x%x; got 0x%x", vaddr, entry)
	}

	frame, perm, ok := vmm.Lookup(pd, vaddr, alloc)
	if !ok {
		t.Fatal("expected the first page of the segment to be mapped")
	}
	if perm&vmm.FlagWrite == 0 {
		t.Fatal("expected the writable segment flag to produce a writable mapping")
	}

	store := unsafeByteAt(frame)
	for i, want := range payload {
		if store[i] != want {
			t.Fatalf("byte %d: expected 0x%x; got 0x%x", i, want, store[i])
		}
	}

	// The second page, covered only by memsz, must exist and be zeroed.
	bssFrame, _, ok := vmm.Lookup(pd, vaddr+4096, alloc)
	if !ok {
		t.Fatal("expected the BSS-only page to be mapped")
	}
	for i, b := range unsafeByteAt(bssFrame) {
		if b != 0 {
			t.Fatalf("BSS byte %d: expected 0; got 0x%x", i, b)
		}
	}
}
