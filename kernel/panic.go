package kernel

import (
	"github.com/HollowLamp/cse-os/kernel/cpu"
	"github.com/HollowLamp/cse-os/kernel/kfmt/early"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}
)

// Panic is the kernel's last resort: it is what OutOfMemory inside the
// page-fault/TLB-refill path escalates to (the faulting instruction has
// nowhere to retry without a frame), and the redirection target for a
// plain Go panic() anywhere else in the tree. It prints the failing
// Error's module and message to the console and halts the CPU; it never
// returns.
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	early.Printf("\n-----------------------------------\n")
	if err != nil {
		early.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	early.Printf("*** kernel panic: system halted ***")
	early.Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
