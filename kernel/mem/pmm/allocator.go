package pmm

import (
	"sync"
	"unsafe"

	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/kfmt/early"
	"github.com/HollowLamp/cse-os/kernel/mem"
)

var (
	// ErrOutOfMemory is returned by AllocFrame when the free list is empty.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory", Kind: kernel.KindOutOfMemory}

	// storeBase is the address of frame 0 inside the allocator's backing
	// store. It is set once by Init and consulted by Frame.Address.
	storeBase uintptr
)

// frameInfo is the per-frame bookkeeping record. A frame is either on the
// free list (refCount == 0) or off it (refCount >= 1); next is meaningful
// only while the frame sits on the free list.
type frameInfo struct {
	refCount uint32
	next     Frame
}

// Allocator owns every physical frame in the system. Before InitFreeList is
// called it behaves as a simple bump allocator over the region between the
// end of the kernel image and the memory ceiling, exactly as needed to
// bootstrap the page directory, the frame table itself and the environment
// table. After InitFreeList it behaves as a reference-counted free-list
// allocator.
type Allocator struct {
	mu sync.Mutex

	store []byte // simulated physical RAM backing every frame

	frames []frameInfo
	freeHead Frame

	bumpNext  Frame
	bumpLimit Frame
}

// Init reserves numFrames frames worth of backing storage and sets up the
// bump allocator to start handing out frames at kernelFrames (the number of
// frames the kernel image itself is assumed to occupy, always starting at
// frame 0).
func Init(numFrames, kernelFrames uint32) *Allocator {
	a := &Allocator{
		store:     make([]byte, uintptr(numFrames)<<mem.PageShift),
		bumpNext:  Frame(kernelFrames),
		bumpLimit: Frame(numFrames),
		freeHead:  InvalidFrame,
	}
	storeBase = uintptr(unsafe.Pointer(unsafe.SliceData(a.store)))
	return a
}

// BumpAlloc reserves the next frame from the bootstrap region. The returned
// frame is not zeroed and is not reference counted until InitFreeList runs;
// callers must not free frames obtained this way.
func (a *Allocator) BumpAlloc() (Frame, *kernel.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bumpNext >= a.bumpLimit {
		return InvalidFrame, ErrOutOfMemory
	}
	f := a.bumpNext
	a.bumpNext++
	return f, nil
}

// InitFreeList installs the frame table, one entry per frame handed out by
// Init, and builds the system free list out of every frame not already
// consumed by BumpAlloc. Frames below the current bump cursor are marked
// with reference count 1 and therefore never appear on the free list, per
// the core's bootstrap contract.
func (a *Allocator) InitFreeList() {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := uint32(a.bumpLimit)
	a.frames = make([]frameInfo, total)
	a.freeHead = InvalidFrame

	reserved := uint32(a.bumpNext)
	for i := total; i > 0; i-- {
		frame := Frame(i - 1)
		if uint32(frame) < reserved {
			a.frames[frame].refCount = 1
			continue
		}
		a.frames[frame].next = a.freeHead
		a.freeHead = frame
	}

	early.Printf("[pmm] %d frames total, %d reserved by bootstrap\n", total, reserved)
}

// AllocFrame removes the frame at the head of the free list, sets its
// reference count to 1, and optionally zeroes its contents.
func (a *Allocator) AllocFrame(zeroed bool) (Frame, *kernel.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.freeHead == InvalidFrame {
		return InvalidFrame, ErrOutOfMemory
	}

	f := a.freeHead
	a.freeHead = a.frames[f].next
	a.frames[f].refCount = 1
	a.frames[f].next = InvalidFrame

	if zeroed {
		mem.Memset(f.Address(), 0, mem.PageSize)
	}

	return f, nil
}

// IncRef increments a frame's reference count, e.g. when a second page
// table entry or the shared-page registry comes to retain it.
func (a *Allocator) IncRef(f Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames[f].refCount++
}

// RefCount reports a frame's current reference count.
func (a *Allocator) RefCount(f Frame) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames[f].refCount
}

// OnFreeList reports whether a frame currently sits on the free list.
func (a *Allocator) OnFreeList(f Frame) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frames[f].refCount == 0
}

// FreeFrame decrements a frame's reference count. When the count reaches
// zero the frame is pushed back onto the head of the free list. Freeing a
// frame whose reference count is already zero is a fatal invariant
// violation, matching the core's "decrementing a zero count" rule.
func (a *Allocator) FreeFrame(f Frame) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.frames[f].refCount == 0 {
		panic(&kernel.Error{Module: "pmm", Message: "free of frame with zero refcount"})
	}

	a.frames[f].refCount--
	if a.frames[f].refCount == 0 {
		a.frames[f].next = a.freeHead
		a.freeHead = f
	}
}
