package vmm

import (
	"sync"

	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
)

// SharedRegistry is a process-independent map from an integer key to a
// physical frame, used to hand the same page to several environments (e.g.
// a shared console buffer). A registry entry lives for the kernel's
// lifetime; there is no unlink operation.
type SharedRegistry struct {
	mu     sync.Mutex
	frames map[int64]pmm.Frame
}

// NewSharedRegistry returns an empty registry.
func NewSharedRegistry() *SharedRegistry {
	return &SharedRegistry{frames: make(map[int64]pmm.Frame)}
}

// AttachShared maps the frame registered under key into pd at va,
// allocating and registering a fresh zeroed frame on first use. The
// frame's reference count always reflects the registry's permanent hold
// plus one for every environment currently attached.
func (r *SharedRegistry) AttachShared(pd *PageDirectory, va uint32, key int64, alloc *pmm.Allocator) *kernel.Error {
	r.mu.Lock()
	frame, ok := r.frames[key]
	if !ok {
		var err *kernel.Error
		frame, err = alloc.AllocFrame(true)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		r.frames[key] = frame
	}
	r.mu.Unlock()

	alloc.IncRef(frame)
	return Insert(pd, va, frame, FlagRead|FlagWrite|FlagUser, alloc)
}
