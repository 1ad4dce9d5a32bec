// Package simulation assembles a kernel from a design file together with
// its stimulus, recorders and monitor.
package simulation

import (
	"fmt"
	"sync"

	"github.com/sarchlab/hdlsim/datarecording"
	"github.com/sarchlab/hdlsim/design"
	"github.com/sarchlab/hdlsim/hooking"
	"github.com/sarchlab/hdlsim/monitoring"
	"github.com/sarchlab/hdlsim/sim"
	"github.com/sarchlab/hdlsim/stimulus"
	"github.com/sarchlab/hdlsim/tracing"
)

// A Simulation is a design elaborated into a kernel along with the services
// that observe it.
type Simulation struct {
	id      string
	design  *design.Design
	netlist *design.Netlist
	kernel  *sim.Kernel
	checker *stimulus.Checker

	vcd          *tracing.VCDWriter
	dataRecorder datarecording.DataRecorder
	dbRecorder   *tracing.DBRecorder
	execRecorder *datarecording.ExecRecorder
	monitor      *monitoring.Monitor
	activity     *tracing.ActivityCounter

	mu          sync.Mutex
	transitions int
	conflicts   int
	termination *sim.Termination
	terminated  bool
}

// Result summarizes a run.
type Result struct {
	Time        sim.VTime
	Status      sim.Status
	Transitions int
	Conflicts   int

	// Termination is nil if the run parked instead of terminating.
	Termination *sim.Termination

	// Report is nil if no vector file was given.
	Report *stimulus.Report
}

// Passed returns true if the run terminated without error and every expect
// line held.
func (r Result) Passed() bool {
	if r.Status == sim.StatusHalted {
		return false
	}

	return r.Report == nil || r.Report.Passed()
}

// ID returns the unique id of the simulation.
func (s *Simulation) ID() string {
	return s.id
}

// Design returns the parsed design.
func (s *Simulation) Design() *design.Design {
	return s.design
}

// Netlist returns the elaborated design.
func (s *Simulation) Netlist() *design.Netlist {
	return s.netlist
}

// Kernel returns the kernel used in the simulation.
func (s *Simulation) Kernel() *sim.Kernel {
	return s.kernel
}

// Monitor returns the monitor, or nil if monitoring is disabled.
func (s *Simulation) Monitor() *monitoring.Monitor {
	return s.monitor
}

// Activity returns the activity counter, or nil if counting is disabled.
func (s *Simulation) Activity() *tracing.ActivityCounter {
	return s.activity
}

// DataRecorder returns the SQLite recorder, or nil if recording is disabled.
func (s *Simulation) DataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// Run runs the kernel until the queue drains, the end time is reached or
// the kernel is stopped.
func (s *Simulation) Run() (Result, error) {
	err := s.kernel.Run()
	return s.result(), err
}

// RunUntil runs the kernel up to time t and parks it there.
func (s *Simulation) RunUntil(t sim.VTime) (Result, error) {
	err := s.kernel.RunUntil(t)
	return s.result(), err
}

func (s *Simulation) result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Result{
		Time:        s.kernel.CurrentTime(),
		Status:      s.kernel.Status(),
		Transitions: s.transitions,
		Conflicts:   s.conflicts,
		Termination: s.termination,
	}

	if s.checker != nil {
		report := s.checker.Report()
		r.Report = &report
	}

	return r
}

// Terminate finishes every output. It is safe to call more than once.
func (s *Simulation) Terminate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return nil
	}
	s.terminated = true

	var firstErr error

	if s.vcd != nil {
		s.vcd.Handle(s.kernel.CurrentTime())
		if err := s.vcd.Close(); err != nil {
			firstErr = fmt.Errorf("cannot write VCD file: %w", err)
		}
	}

	if s.execRecorder != nil {
		s.execRecorder.Set("Simulated Time", fmt.Sprint(s.kernel.CurrentTime()))
		s.execRecorder.Set("Status", s.kernel.Status().String())
		s.execRecorder.End()
	}

	if s.dataRecorder != nil {
		if err := s.dataRecorder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// simulationHook counts the activity of the kernel and keeps the
// termination.
type simulationHook struct {
	s *Simulation
}

func (h *simulationHook) Func(ctx hooking.HookCtx) {
	s := h.s

	switch ctx.Pos {
	case sim.HookPosCommit:
		s.mu.Lock()
		s.transitions++
		s.mu.Unlock()
	case sim.HookPosConflict:
		s.mu.Lock()
		s.conflicts++
		s.mu.Unlock()
	case sim.HookPosTerminate:
		t := ctx.Item.(sim.Termination)
		s.mu.Lock()
		s.termination = &t
		s.mu.Unlock()
	}
}
