package proc

// Register indices into TrapFrame.GPR for the MIPS registers the
// environment lifecycle touches directly. The remaining 26 registers are
// still saved and restored verbatim across a context switch; only these
// carry lifecycle-level meaning.
const (
	RegV0 = 2
	RegA0 = 4
	RegA1 = 5
	RegT9 = 25
	RegSP = 29
	RegRA = 31
)

// TrapFrame holds every register a context switch must save and restore:
// the program counter, the 32 general-purpose registers, and the saved
// status word read from the CP0 Status register at trap entry.
type TrapFrame struct {
	PC     uint32
	GPR    [32]uint32
	Status uint32
}
