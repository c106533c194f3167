package vmm

import "testing"

func TestAttachSharedFirstAttachAllocatesAndRetains(t *testing.T) {
	alloc := testAllocator()
	reg := NewSharedRegistry()

	pd, err := NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}

	const va = uint32(0x0EFFF000)
	if err := reg.AttachShared(pd, va, 42, alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame, _, ok := Lookup(pd, va, alloc)
	if !ok {
		t.Fatal("expected the shared page to be mapped")
	}
	// One reference for the registry itself, one for this attachment.
	if got := alloc.RefCount(frame); got != 2 {
		t.Fatalf("expected refcount 2 after first attach; got %d", got)
	}
}

func TestAttachSharedSecondAttachReusesFrame(t *testing.T) {
	alloc := testAllocator()
	reg := NewSharedRegistry()

	pd1, err := NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}
	pd2, err := NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}

	const va = uint32(0x0EFFF000)
	if err := reg.AttachShared(pd1, va, 7, alloc); err != nil {
		t.Fatal(err)
	}
	if err := reg.AttachShared(pd2, va, 7, alloc); err != nil {
		t.Fatal(err)
	}

	f1, _, _ := Lookup(pd1, va, alloc)
	f2, _, _ := Lookup(pd2, va, alloc)

	if f1 != f2 {
		t.Fatalf("expected both environments to share the same frame; got %v and %v", f1, f2)
	}
	// Registry (1) + two live attachments (2) = 3.
	if got := alloc.RefCount(f1); got != 3 {
		t.Fatalf("expected refcount 3 after two attaches; got %d", got)
	}
}

func TestAttachSharedDistinctKeysGetDistinctFrames(t *testing.T) {
	alloc := testAllocator()
	reg := NewSharedRegistry()

	pd, err := NewPageDirectory(alloc)
	if err != nil {
		t.Fatal(err)
	}

	if err := reg.AttachShared(pd, 0x0EFFF000, 1, alloc); err != nil {
		t.Fatal(err)
	}
	if err := reg.AttachShared(pd, 0x0EFFE000, 2, alloc); err != nil {
		t.Fatal(err)
	}

	f1, _, _ := Lookup(pd, 0x0EFFF000, alloc)
	f2, _, _ := Lookup(pd, 0x0EFFE000, alloc)
	if f1 == f2 {
		t.Fatal("expected distinct keys to map to distinct frames")
	}
}
