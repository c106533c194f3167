// Package sched implements cooperative-preemptive scheduling over the
// runnable ring kernel/proc maintains: a fixed time slice per environment,
// decremented on every timer tick, with the ring cursor advancing to the
// next environment once a slice is exhausted or voluntarily given up.
package sched

import (
	"github.com/HollowLamp/cse-os/kernel/cpu"
	"github.com/HollowLamp/cse-os/kernel/proc"
)

// Scheduler tracks which environment is currently installed as running
// and drives the ring cursor forward across ticks.
type Scheduler struct {
	table   *proc.Table
	current *proc.Env
}

// New returns a Scheduler with no environment yet dispatched.
func New(table *proc.Table) *Scheduler {
	return &Scheduler{table: table}
}

// Current returns the environment most recently installed as running, or
// nil if the system is idle.
func (s *Scheduler) Current() *proc.Env {
	return s.current
}

// Dispatch installs the runnable ring's head as the running environment: its page directory and ASID become the active MMU
// context, its dispatch counter increments, and its time slice recharges
// from its priority. It is used on the very first dispatch and whenever
// the previously running environment is no longer on the ring (e.g. it
// just exited).
func (s *Scheduler) Dispatch() *proc.Env {
	next := s.table.NextRunnable(nil)
	return s.install(next)
}

// Tick services one timer interrupt. If the running environment's time
// slice has not yet expired, nothing changes. If it has, the ring cursor
// advances and the next environment is installed in its place. Tick
// returns the environment that should be running once it returns -- the
// caller is responsible for restoring that environment's TrapFrame into
// the CPU registers.
func (s *Scheduler) Tick() *proc.Env {
	if s.current == nil {
		return s.Dispatch()
	}
	if !s.current.TickTimeSlice() {
		return s.current
	}
	return s.advance()
}

// Yield forcibly expires the running environment's remaining time slice
// and advances the ring cursor, the same as a tick landing on the last
// remaining unit -- used when an environment voluntarily gives up the CPU
// before its slice would otherwise run out.
func (s *Scheduler) Yield() *proc.Env {
	if s.current == nil {
		return s.Dispatch()
	}
	for s.current.TimeSliceRemaining() > 0 {
		s.current.TickTimeSlice()
	}
	return s.advance()
}

// advance moves the ring cursor past the currently running environment
// and installs whatever comes next.
func (s *Scheduler) advance() *proc.Env {
	next := s.table.NextRunnable(s.current)
	return s.install(next)
}

func (s *Scheduler) install(e *proc.Env) *proc.Env {
	s.current = e
	if e == nil {
		return nil
	}
	cpu.SwitchContext(e.CR3(), e.ASID())
	e.MarkDispatched()
	return e
}

// Reschedule drops the current environment (e.g. because it just exited
// and is no longer on the ring) and dispatches whatever the ring's head
// now is.
func (s *Scheduler) Reschedule() *proc.Env {
	s.current = nil
	return s.Dispatch()
}
