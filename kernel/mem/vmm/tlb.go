package vmm

// invalidateTLBFn is called after any Insert/Remove that changes the
// mapping for a virtual address so that a stale TLB entry cannot outlive
// its page-table entry. It is wired by kmain to kernel/cpu's per-ASID
// invalidation routine; tests run with the default no-op, since the real
// routine only makes sense with a live MMU context.
var invalidateTLBFn = func(va uint32) {}

// SetTLBInvalidator installs the function called on every mapping change.
func SetTLBInvalidator(fn func(va uint32)) {
	invalidateTLBFn = fn
}
