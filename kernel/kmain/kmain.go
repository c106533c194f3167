package kmain

import (
	"github.com/HollowLamp/cse-os/kernel"
	"github.com/HollowLamp/cse-os/kernel/banker"
	"github.com/HollowLamp/cse-os/kernel/cpu"
	"github.com/HollowLamp/cse-os/kernel/driver/console"
	"github.com/HollowLamp/cse-os/kernel/driver/peripheral"
	"github.com/HollowLamp/cse-os/kernel/kfmt/early"
	"github.com/HollowLamp/cse-os/kernel/mem"
	"github.com/HollowLamp/cse-os/kernel/mem/pmm"
	"github.com/HollowLamp/cse-os/kernel/mem/vmm"
	"github.com/HollowLamp/cse-os/kernel/proc"
	"github.com/HollowLamp/cse-os/kernel/sched"
	"github.com/HollowLamp/cse-os/kernel/trap"
)

// numPhysFrames and kernelImageFrames size the simulated physical store
// and the region the bump allocator reserves for the kernel image itself
// before InitFreeList hands the rest to the free list.
const (
	numPhysFrames     = 8192
	kernelImageFrames = 256
)

// Device classes registered with the banker arbiter. Each maps to exactly
// one peripheral.Device; the arbiter's capacity vector index order must
// match this order.
const (
	deviceLEDs = iota
	deviceSevenSegment
	deviceBuzzer
	deviceSwitches
	numDeviceClasses
)

// deviceCapacity is the fixed per-class unit count every claimant's
// max/alloc vectors are checked against: one unit per register, since
// these are exclusive-access peripherals rather than pooled resources.
var deviceCapacity = []uint32{1, 1, 1, 1}

var (
	ledRegister      uint32
	sevenSegRegister uint32
	buzzerRegister   uint32
	switchRegister   uint32
)

// Kmain is the kernel entrypoint, called by the root package's main
// trampoline. It brings up the console, the physical frame
// allocator, the kernel's boot page directory, the environment table, the
// banker arbiter guarding the onboard peripherals, and the scheduler, then
// wires the syscall table and falls into the dispatch loop.
//
// Kmain is not expected to return. If it does, the rt0 code halts the CPU.
//
//go:noinline
func Kmain() {
	console.SetPutc(func(b byte) {})
	early.Printf("booting\n")

	alloc := pmm.Init(numPhysFrames, kernelImageFrames)
	alloc.InitFreeList()

	bootDir, err := vmm.NewPageDirectory(alloc)
	if err != nil {
		kernel.Panic(err)
	}
	vmm.SetTLBInvalidator(func(va uint32) {
		_, asid := cpu.ActiveContext()
		cpu.TLB.Invalidate(va, asid)
	})

	registry := vmm.NewSharedRegistry()
	table := proc.NewTable(alloc, bootDir, registry)

	arb := banker.NewArbiter(deviceCapacity, int(mem.NENV))
	registerPeripherals(arb)

	early.Printf("environment table ready: %d slots\n", mem.NENV)

	wireSyscalls(table, arb)

	scheduler := sched.New(table)
	runLoop(scheduler)
}

// registerPeripherals binds the simulated device registers to the banker's
// fixed device-class indices.
func registerPeripherals(arb *banker.Arbiter) *peripheral.Registry {
	reg := peripheral.NewRegistry(arb)
	reg.Register(deviceLEDs, peripheral.Device{
		Class: deviceLEDs,
		Read:  func() uint32 { return ledRegister },
		Write: func(v uint32) { ledRegister = v },
	})
	reg.Register(deviceSevenSegment, peripheral.Device{
		Class: deviceSevenSegment,
		Read:  func() uint32 { return sevenSegRegister },
		Write: func(v uint32) { sevenSegRegister = v },
	})
	reg.Register(deviceBuzzer, peripheral.Device{
		Class: deviceBuzzer,
		Read:  func() uint32 { return buzzerRegister },
		Write: func(v uint32) { buzzerRegister = v },
	})
	reg.Register(deviceSwitches, peripheral.Device{
		Class: deviceSwitches,
		Read:  func() uint32 { return switchRegister },
		Write: func(v uint32) { switchRegister = v },
	})
	return reg
}

// wireSyscalls populates the fixed syscall table with handlers backed by
// table and arb. SysSetLEDMask/SysSetBuzzerFreq/SysReadSwitches poke the
// simulated registers directly rather than through a Registry instance,
// since that indirection only matters to a caller that looks devices up
// by number (SysWriteDeviceByNum/SysReadDeviceByNum).
func wireSyscalls(table *proc.Table, arb *banker.Arbiter) {
	trap.Handlers[trap.SysExit] = func(e *proc.Env, t *proc.Table) (uint32, bool) {
		arb.TaskExit(e.ASID())
		t.Free(e, e)
		return 0, true
	}

	trap.Handlers[trap.SysSetLEDMask] = func(e *proc.Env, _ *proc.Table) (uint32, bool) {
		if !arb.Holds(e.ASID(), deviceLEDs) {
			return uint32(kernel.KindDeviceUnregistered), false
		}
		ledRegister = e.TrapFrame().GPR[proc.RegA0]
		return 0, false
	}

	trap.Handlers[trap.SysReadSwitches] = func(e *proc.Env, _ *proc.Table) (uint32, bool) {
		return switchRegister, false
	}

	trap.Handlers[trap.SysSetBuzzerFreq] = func(e *proc.Env, _ *proc.Table) (uint32, bool) {
		if !arb.Holds(e.ASID(), deviceBuzzer) {
			return uint32(kernel.KindDeviceUnregistered), false
		}
		buzzerRegister = e.TrapFrame().GPR[proc.RegA0]
		return 0, false
	}

	trap.Handlers[trap.SysClaimDevices] = func(e *proc.Env, _ *proc.Table) (uint32, bool) {
		maxVector := make([]uint32, numDeviceClasses)
		maxVector[e.TrapFrame().GPR[proc.RegA0]%numDeviceClasses] = 1
		if err := arb.Claim(e.ASID(), maxVector); err != nil {
			return 1, false
		}
		return 0, false
	}

	trap.Handlers[trap.SysRequireDevice] = func(e *proc.Env, _ *proc.Table) (uint32, bool) {
		device := int(e.TrapFrame().GPR[proc.RegA0])
		if !arb.Request(e.ASID(), device, 1) {
			return 1, false
		}
		return 0, false
	}

	trap.Handlers[trap.SysReleaseDevice] = func(e *proc.Env, _ *proc.Table) (uint32, bool) {
		device := int(e.TrapFrame().GPR[proc.RegA0])
		if err := arb.Release(e.ASID(), device, 1); err != nil {
			return 1, false
		}
		return 0, false
	}

	trap.Handlers[trap.SysPthreadCreate] = func(e *proc.Env, t *proc.Table) (uint32, bool) {
		frame := e.TrapFrame()
		child, err := t.ThreadCreate(e, frame.GPR[proc.RegA0], frame.GPR[proc.RegA1])
		if err != nil {
			return 0, false
		}
		return child.ID(), false
	}
}

// runLoop dispatches the first runnable environment and then ticks the
// scheduler forever. A real build drives Tick from the platform's timer
// interrupt; there being none to wait on here, each loop iteration stands
// in for one timer tick.
func runLoop(scheduler *sched.Scheduler) {
	scheduler.Dispatch()
	for {
		if scheduler.Current() == nil {
			scheduler.Dispatch()
			continue
		}
		scheduler.Tick()
	}
}
