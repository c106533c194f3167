package sched

import (
	"encoding/binary"
	"testing"

	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
	"github.com/HollowLamp/cse-os/kernel/proc"
)

// buildImage assembles a minimal one-segment ELF32 image, the same
// fixture shape the loader and environment lifecycle tests use.
func buildImage(entry, vaddr uint32) []byte {
	const ehdrSize = 52
	const phdrSize = 32

	image := make([]byte, ehdrSize+phdrSize)
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
	binary.LittleEndian.PutUint32(ph[20:], 4096)
	binary.LittleEndian.PutUint32(ph[24:], 1)
	return image
}

func newTestTable(t *testing.T) *proc.Table {
	alloc := pmm.Init(1024, 0)
	alloc.InitFreeList()

	bootDir, err := vmm.NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}
	return proc.NewTable(alloc, bootDir, vmm.NewSharedRegistry())
}

func mustCreate(t *testing.T, tbl *proc.Table, priority uint32) *proc.Env {
	t.Helper()
	e, err := tbl.Create(0, priority, buildImage(0x00400000, 0x00400000), nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestDispatchInstallsRingHeadAndChargesSlice(t *testing.T) {
	tbl := newTestTable(t)
	e := mustCreate(t, tbl, 3)

	s := New(tbl)
	if got := s.Dispatch(); got != e {
		t.Fatalf("expected dispatch to install the sole runnable env")
	}
	if e.Runs() != 1 {
		t.Fatalf("expected runs == 1; got %d", e.Runs())
	}
	if e.TimeSliceRemaining() != 3 {
		t.Fatalf("expected a fresh slice of 3; got %d", e.TimeSliceRemaining())
	}
}

func TestTickDecrementsWithoutAdvancingUntilExpiry(t *testing.T) {
	tbl := newTestTable(t)
	e := mustCreate(t, tbl, 2)

	s := New(tbl)
	s.Dispatch()

	if got := s.Tick(); got != e {
		t.Fatal("expected the same env to keep running mid-slice")
	}
	if e.TimeSliceRemaining() != 1 {
		t.Fatalf("expected remaining slice 1; got %d", e.TimeSliceRemaining())
	}

	if got := s.Tick(); got != e {
		t.Fatal("expected the same env when the ring has only one member, even after expiry")
	}
	if e.Runs() != 2 {
		t.Fatalf("expected a second dispatch to bump runs to 2; got %d", e.Runs())
	}
}

func TestTickAdvancesRingOnExpiry(t *testing.T) {
	tbl := newTestTable(t)
	a := mustCreate(t, tbl, 1)
	b := mustCreate(t, tbl, 5)

	s := New(tbl)
	s.Dispatch()
	if s.Current() != a {
		t.Fatal("expected a to dispatch first")
	}

	if got := s.Tick(); got != b {
		t.Fatal("expected a's single-tick slice to expire and hand off to b")
	}
	if b.TimeSliceRemaining() != 5 {
		t.Fatalf("expected b's fresh slice of 5; got %d", b.TimeSliceRemaining())
	}
}

func TestYieldForciblyExpiresAndAdvances(t *testing.T) {
	tbl := newTestTable(t)
	a := mustCreate(t, tbl, 10)
	b := mustCreate(t, tbl, 4)

	s := New(tbl)
	s.Dispatch()
	if s.Current() != a {
		t.Fatal("expected a to dispatch first")
	}

	if got := s.Yield(); got != b {
		t.Fatal("expected yield to hand the CPU to b despite a's slice being far from exhausted")
	}
}
