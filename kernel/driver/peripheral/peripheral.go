// Package peripheral wraps the kernel's memory-mapped device registers
// (LEDs, seven-segment display, buzzer frequency divisor, switch input)
// behind the opaque read/write callbacks the banker arbiter's device
// classes reference, gating every access on an active resource claim.
package peripheral

import (
	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/banker"
)

// ErrDeviceUnregistered is returned when a device number names no
// registered driver.
var ErrDeviceUnregistered = &kernel.Error{Module: "peripheral", Message: "device number has no registered driver", Kind: kernel.KindDeviceUnregistered}

// Device is one memory-mapped peripheral register, identified by a banker
// device-class index. Read and Write poke the simulated hardware
// register directly; they carry no claim bookkeeping of their own, since
// that is the Registry's job.
type Device struct {
	Class uint32
	Read  func() uint32
	Write func(uint32)
}

//go:generate mockgen -destination=mock_peripheral/arbiter_mock.go -package=mock_peripheral . ClaimChecker

// ClaimChecker is the one banker.Arbiter method the Registry needs to gate
// device access. Depending on this narrow interface rather than
// *banker.Arbiter directly lets Registry be exercised against a mock
// arbiter in tests without standing up a real capacity vector.
type ClaimChecker interface {
	Holds(asid uint8, device int) bool
}

// Registry maps device numbers to their Device and gates every access
// through arb, the kernel's single banker arbiter instance.
type Registry struct {
	arb     ClaimChecker
	devices map[uint32]Device
}

// NewRegistry returns an empty registry backed by arb.
func NewRegistry(arb *banker.Arbiter) *Registry {
	return &Registry{arb: arb, devices: make(map[uint32]Device)}
}

// NewRegistryWithChecker is NewRegistry for a caller (namely tests) that
// supplies something other than a real *banker.Arbiter.
func NewRegistryWithChecker(arb ClaimChecker) *Registry {
	return &Registry{arb: arb, devices: make(map[uint32]Device)}
}

// Register installs d under deviceNum. A later call with the same number
// replaces the earlier registration.
func (r *Registry) Register(deviceNum uint32, d Device) {
	r.devices[deviceNum] = d
}

// WriteByNum performs value through the registered device's Write
// callback, but only if asid currently holds at least one allocated unit
// of the device's banker class; otherwise the access is denied.
func (r *Registry) WriteByNum(asid uint8, deviceNum, value uint32) *kernel.Error {
	d, ok := r.devices[deviceNum]
	if !ok {
		return ErrDeviceUnregistered
	}
	if !r.arb.Holds(asid, int(d.Class)) {
		return banker.ErrUnknownClaimant
	}
	d.Write(value)
	return nil
}

// ReadByNum reads the registered device's current value through its Read
// callback, gated the same way WriteByNum is.
func (r *Registry) ReadByNum(asid uint8, deviceNum uint32) (uint32, *kernel.Error) {
	d, ok := r.devices[deviceNum]
	if !ok {
		return 0, ErrDeviceUnregistered
	}
	if !r.arb.Holds(asid, int(d.Class)) {
		return 0, banker.ErrUnknownClaimant
	}
	return d.Read(), nil
}
