package sim

import (
	"fmt"

	"github.com/sarchlab/hdlsim/logic"
)

// EvalCtx is handed to a process while it is evaluated. It is only valid
// until Evaluate returns.
type EvalCtx struct {
	k    *Kernel
	proc *processEntry
	done bool
}

func (c *EvalCtx) mustBeActive() {
	if c.done {
		panic(fmt.Sprintf("sim: context of process %s used after evaluation", c.proc.name))
	}
}

// Now returns the current simulated time.
func (c *EvalCtx) Now() VTime {
	return c.k.now
}

// Delta returns the delta cycle whose commits triggered this evaluation. It
// is -1 during initialization.
func (c *EvalCtx) Delta() int {
	return c.k.delta
}

// IsInit returns true during the initialization pass at time 0.
func (c *EvalCtx) IsInit() bool {
	return !c.k.initialized
}

// Name returns the name of the process being evaluated.
func (c *EvalCtx) Name() string {
	return c.proc.name
}

// Read returns the committed value of a signal.
func (c *EvalCtx) Read(sig SignalID) logic.Value {
	return c.k.mustGetSignal(sig).value
}

// ReadBus reads several signals, in the given order.
func (c *EvalCtx) ReadBus(sigs []SignalID) []logic.Value {
	values := make([]logic.Value, len(sigs))
	for i, s := range sigs {
		values[i] = c.Read(s)
	}

	return values
}

// Event returns true if the signal committed a new value in the delta cycle
// that triggered this evaluation.
func (c *EvalCtx) Event(sig SignalID) bool {
	s := c.k.mustGetSignal(sig)
	return s.hasEvent && s.lastEvent == Step{Time: c.k.now, Delta: c.k.delta}
}

// Rising returns true if the signal had a rising edge in the triggering delta
// cycle.
func (c *EvalCtx) Rising(sig SignalID) bool {
	s := c.k.mustGetSignal(sig)
	return c.Event(sig) && logic.IsPosedge(s.prev, s.value)
}

// Falling returns true if the signal had a falling edge in the triggering
// delta cycle.
func (c *EvalCtx) Falling(sig SignalID) bool {
	s := c.k.mustGetSignal(sig)
	return c.Event(sig) && logic.IsNegedge(s.prev, s.value)
}

// Drive puts v on sig at strong strength after delay. A zero delay lands in
// the next delta cycle.
func (c *EvalCtx) Drive(sig SignalID, v logic.Value, delay VTime) error {
	return c.DriveStrength(sig, logic.StrongDrive(v), delay)
}

// DriveStrength puts d on sig after delay.
func (c *EvalCtx) DriveStrength(sig SignalID, d logic.Drive, delay VTime) error {
	c.mustBeActive()
	return c.k.scheduleRelative(driveEvent, c.proc.id, sig, d.Normalize(), delay)
}

// Release stops this process from driving sig after delay.
func (c *EvalCtx) Release(sig SignalID, delay VTime) error {
	return c.DriveStrength(sig, logic.Released, delay)
}

// WakeAfter evaluates this process again after delay, whether or not any of
// its signals change.
func (c *EvalCtx) WakeAfter(delay VTime) error {
	c.mustBeActive()
	return c.k.scheduleRelative(wakeEvent, c.proc.id, -1, logic.Released, delay)
}

// Stop asks the kernel to terminate once the current delta cycle is done.
func (c *EvalCtx) Stop() {
	c.mustBeActive()
	c.k.Stop()
}
