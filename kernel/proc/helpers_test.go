package proc

import (
	"encoding/binary"
	"testing"

	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
)

const (
	testPfExec  = 1
	testPfWrite = 2
)

func newTestTable(t *testing.T) *Table {
	alloc := pmm.Init(1024, 0)
	alloc.InitFreeList()

	bootDir, err := vmm.NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}

	return NewTable(alloc, bootDir, vmm.NewSharedRegistry())
}

// buildImage assembles a minimal one-segment ELF32 image, mirroring the
// fixture the ELF loader's own tests use.
func buildImage(entry, vaddr uint32, payload []byte, memsz uint32, flags uint32) []byte {
	const ehdrSize = 52
	const phdrSize = 32

	image := make([]byte, ehdrSize+phdrSize+len(payload))
	image[0], image[1], image[2], image[3] = 0x7F, 'E', 'L', 'F'
	image[4] = 1

	binary.LittleEndian.PutUint32(image[24:], entry)
	binary.LittleEndian.PutUint32(image[28:], ehdrSize)
	binary.LittleEndian.PutUint16(image[42:], phdrSize)
	binary.LittleEndian.PutUint16(image[44:], 1)

	ph := image[ehdrSize:]
	binary.LittleEndian.PutUint32(ph[0:], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(ph[4:], ehdrSize+phdrSize)
	binary.LittleEndian.PutUint32(ph[8:], vaddr)
	binary.LittleEndian.PutUint32(ph[16:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(ph[20:], memsz)
	binary.LittleEndian.PutUint32(ph[24:], flags)

	copy(image[ehdrSize+phdrSize:], payload)
	return image
}
