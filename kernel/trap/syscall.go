package trap

import (
	"github.com/HollowLamp/cse-os/kernel/errors"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/proc"
)

// SyscallNum identifies one entry in the fixed syscall table. Numbers are
// stable across a boot, the same way this design's process-to-kernel
// boundary assigns them.
type SyscallNum uint32

const (
	SysPrintString SyscallNum = iota
	SysReadChar
	SysSetLEDMask
	SysReadSwitches
	SysSetBuzzerFreq
	SysRequireDevice
	SysReleaseDevice
	SysClaimDevices
	SysWriteDeviceByNum
	SysReadDeviceByNum
	SysPthreadCreate
	SysEnvCreate
	SysExit

	numSyscalls
)

// Handler services one syscall number. The argument registers live in e's
// trap frame; the return value is written back to the v0 register, the
// slot the caller reads its result from. terminate reports whether
// servicing the call ends the calling environment (e.g. SysExit).
type Handler func(e *proc.Env, table *proc.Table) (ret uint32, terminate bool)

// Handlers is the syscall number -> handler table. It starts out empty;
// kmain wires in the real device, banker and process-management handlers
// once those subsystems have booted.
var Handlers [numSyscalls]Handler

// Syscall dispatches the call number found in e's v0 register, the
// standard MIPS syscall-number slot. An out-of-range or unregistered
// number terminates the caller.
func Syscall(e *proc.Env, table *proc.Table) bool {
	frame := e.TrapFrame()
	num := frame.GPR[proc.RegV0]

	if num >= uint32(numSyscalls) || Handlers[num] == nil {
		return true
	}

	ret, terminate := Handlers[num](e, table)
	frame.GPR[proc.RegV0] = ret
	return terminate
}

// ValidateUserPointer checks a syscall argument that names a user virtual
// address before a handler dereferences it: it must fall below the
// kernel-reserved region and be word-aligned. It returns
// ErrInvalidParamValue or ErrMisalignedPointer respectively. Syscall does
// not call it, and none of the handlers kmain installs does either.
func ValidateUserPointer(va uint32) error {
	if va >= uint32(mem.KernelReservedBase) {
		return errors.ErrInvalidParamValue
	}
	if va%4 != 0 {
		return errors.ErrMisalignedPointer
	}
	return nil
}
