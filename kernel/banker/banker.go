// Package banker implements the resource arbiter guarding every device
// with a finite-capacity register or buffer: claimants declare their
// maximum future demand up front, and every subsequent request is granted
// only if the resulting state is still provably safe -- the Dijkstra
// banker's algorithm this design names directly, the way the teacher's
// page-fault handler classified and rejected impossible requests rather
// than letting them corrupt state.
package banker

import (
	"sync"

	"github.com/HollowLamp/cse-os/kernel"
)

// ErrNoClaimantSlot is returned by Claim when every claimant slot is
// already bound to an ASID.
var ErrNoClaimantSlot = &kernel.Error{Module: "banker", Message: "no free claimant slot", Kind: kernel.KindResourceDenied}

// ErrUnknownClaimant is returned when request/release/task_exit name an
// ASID with no active claim.
var ErrUnknownClaimant = &kernel.Error{Module: "banker", Message: "asid has no active resource claim", Kind: kernel.KindResourceDenied}

// ErrBadDeviceClass is returned when a device index falls outside the
// arbiter's registered capacity vectors.
var ErrBadDeviceClass = &kernel.Error{Module: "banker", Message: "device class index out of range", Kind: kernel.KindResourceDenied}

// noClaimant marks a claimant slot as unbound.
const noClaimant = -1

// Arbiter holds the per-device total/available capacity vectors and the
// per-claimant maximum/allocation vectors the safety check walks. The
// number of device classes is fixed at construction; the number of
// claimant slots bounds how many ASIDs can hold an active claim
// concurrently.
type Arbiter struct {
	mu sync.Mutex

	total     []uint32
	available []uint32

	asidOf []int32
	maxV   [][]uint32
	allocV [][]uint32
}

// NewArbiter returns an Arbiter with total (and therefore initially
// available) capacity for each device class in total, and room for
// maxClaimants concurrently active claims.
func NewArbiter(total []uint32, maxClaimants int) *Arbiter {
	a := &Arbiter{
		total:     append([]uint32(nil), total...),
		available: append([]uint32(nil), total...),
		asidOf:    make([]int32, maxClaimants),
		maxV:      make([][]uint32, maxClaimants),
		allocV:    make([][]uint32, maxClaimants),
	}
	for i := range a.asidOf {
		a.asidOf[i] = noClaimant
	}
	return a
}

// Claim binds asid to a claimant slot and records its declared maximum
// demand across every device class. A prior claim held by the same asid
// is replaced outright -- its previous allocation is discarded from the
// safety check's bookkeeping, matching env_free's convention that only
// the caller is responsible for releasing what it holds first.
func (a *Arbiter) Claim(asid uint8, maxVector []uint32) *kernel.Error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(maxVector) != len(a.total) {
		return ErrBadDeviceClass
	}

	k := a.slotFor(asid)
	if k == -1 {
		k = a.freeSlot()
		if k == -1 {
			return ErrNoClaimantSlot
		}
		a.asidOf[k] = int32(asid)
	}

	a.maxV[k] = append([]uint32(nil), maxVector...)
	a.allocV[k] = make([]uint32, len(a.total))
	return nil
}

// Request attempts to grant n additional units of device to the claimant
// bound to asid. The request is rejected outright if asid has no active
// claim, device is out of range, n exceeds the claimant's declared
// remaining need, or n exceeds the device's currently available units.
// Otherwise the grant is applied tentatively and kept only if the
// resulting state passes the safety check; an unsafe tentative grant is
// rolled back and rejected rather than left pending.
func (a *Arbiter) Request(asid uint8, device int, n uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := a.slotFor(asid)
	if k == -1 || device < 0 || device >= len(a.total) {
		return false
	}
	if n > a.need(k, device) || n > a.available[device] {
		return false
	}

	a.allocV[k][device] += n
	a.available[device] -= n

	if a.safe() {
		return true
	}

	a.allocV[k][device] -= n
	a.available[device] += n
	return false
}

// Release returns n units of device from the claimant bound to asid back
// to the available pool. Releasing more than the claimant currently holds
// clamps to what it actually holds.
func (a *Arbiter) Release(asid uint8, device int, n uint32) *kernel.Error {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := a.slotFor(asid)
	if k == -1 {
		return ErrUnknownClaimant
	}
	if device < 0 || device >= len(a.total) {
		return ErrBadDeviceClass
	}

	if n > a.allocV[k][device] {
		n = a.allocV[k][device]
	}
	a.allocV[k][device] -= n
	a.available[device] += n
	return nil
}

// TaskExit unbinds asid's claimant slot without reclaiming whatever it
// still holds allocated; outstanding allocations remain charged against
// their device's availability until released explicitly. This mirrors
// env_free's documented limitation of only tearing down what it is safe
// to tear down for the caller itself.
func (a *Arbiter) TaskExit(asid uint8) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := a.slotFor(asid)
	if k == -1 {
		return
	}
	a.asidOf[k] = noClaimant
	a.maxV[k] = nil
	a.allocV[k] = nil
}

// Available reports a device class's currently unreserved capacity.
func (a *Arbiter) Available(device int) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if device < 0 || device >= len(a.total) {
		return 0
	}
	return a.available[device]
}

// Total reports a device class's fixed capacity.
func (a *Arbiter) Total(device int) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if device < 0 || device >= len(a.total) {
		return 0
	}
	return a.total[device]
}

// Holds reports whether asid's claimant slot currently has at least one
// unit of device allocated to it.
func (a *Arbiter) Holds(asid uint8, device int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := a.slotFor(asid)
	if k == -1 || device < 0 || device >= len(a.total) {
		return false
	}
	return a.allocV[k][device] > 0
}

func (a *Arbiter) slotFor(asid uint8) int {
	for i, v := range a.asidOf {
		if v == int32(asid) {
			return i
		}
	}
	return -1
}

func (a *Arbiter) freeSlot() int {
	for i, v := range a.asidOf {
		if v == noClaimant {
			return i
		}
	}
	return -1
}

func (a *Arbiter) need(k, device int) uint32 {
	return a.maxV[k][device] - a.allocV[k][device]
}

// safe runs Dijkstra's banker's safety check against the arbiter's
// current state: starting from a copy of available, it repeatedly looks
// for an unfinished claimant whose remaining need fits in the work
// vector, credits that claimant's full allocation back to work, and marks
// it done. If every active claimant finishes this way the state is safe.
func (a *Arbiter) safe() bool {
	work := append([]uint32(nil), a.available...)
	done := make([]bool, len(a.asidOf))
	for k := range done {
		if a.asidOf[k] == noClaimant {
			done[k] = true
		}
	}

	for {
		progressed := false
		for k := range done {
			if done[k] {
				continue
			}
			fits := true
			for c := range work {
				if a.need(k, c) > work[c] {
					fits = false
					break
				}
			}
			if !fits {
				continue
			}
			for c := range work {
				work[c] += a.allocV[k][c]
			}
			done[k] = true
			progressed = true
		}
		if !progressed {
			break
		}
	}

	for _, d := range done {
		if !d {
			return false
		}
	}
	return true
}
