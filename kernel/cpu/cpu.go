// Package cpu models the platform's MMU context registers and software TLB:
// the pieces of a MIPS-class CPU that a software-walked, per-ASID page
// table implementation must drive directly instead of delegating to a
// hardware page-table walker.
package cpu

var (
	// activeCR3 holds the physical address of the page directory written
	// by the most recent SwitchContext call.
	activeCR3 uintptr

	// activeASID holds the ASID written by the most recent SwitchContext
	// call. Kernel-only code runs under ASID 0.
	activeASID uint8

	// interruptsEnabled tracks whether EnableInterrupts/DisableInterrupts
	// has most recently run. There is no real interrupt controller to
	// program in this simulated kernel; the flag exists so code that
	// checks its own interrupt state (e.g. before sleeping) behaves
	// consistently.
	interruptsEnabled bool

	// haltFn is swapped out by tests; the real implementation would stop
	// the CPU for good, which a test binary cannot survive.
	haltFn = func() {
		for {
		}
	}
)

// SwitchContext installs a new page-directory physical address and ASID,
// as the scheduler does on every context switch.
func SwitchContext(cr3 uintptr, asid uint8) {
	activeCR3 = cr3
	activeASID = asid
}

// ActiveContext returns the page-directory physical address and ASID most
// recently installed by SwitchContext.
func ActiveContext() (uintptr, uint8) {
	return activeCR3, activeASID
}

// EnableInterrupts and DisableInterrupts toggle the simulated interrupt
// flag. No other kernel package calls them; the flag only changes what
// InterruptsEnabled reports.
func EnableInterrupts() {
	interruptsEnabled = true
}

func DisableInterrupts() {
	interruptsEnabled = false
}

// InterruptsEnabled reports the current state of the simulated interrupt flag.
func InterruptsEnabled() bool {
	return interruptsEnabled
}

// Halt stops the CPU. Panic uses this as its final act.
func Halt() {
	haltFn()
}

// SetHalt overrides the halt implementation; used by tests so that Panic
// can be exercised without hanging the test binary.
func SetHalt(fn func()) {
	haltFn = fn
}
