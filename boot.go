package main

import "github.com/HollowLamp/cse-os/kernel/kmain"

// main is the only Go symbol that is visible (exported) from the rt0
// initialization code. It works as a trampoline for calling the actual
// kernel entrypoint (kmain.Kmain) and is intentionally defined to prevent
// the Go compiler from optimizing away the kernel code, since it has no
// other reason to know the rt0 assembly calls into this binary.
//
// main is not expected to return. If it does, the rt0 code halts the CPU.
func main() {
	kmain.Kmain()
}
