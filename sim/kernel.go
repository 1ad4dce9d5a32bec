package sim

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/hdlsim/hooking"
	"github.com/sarchlab/hdlsim/idgen"
	"github.com/sarchlab/hdlsim/logic"
)

// DefaultMaxDeltaCycles bounds the number of delta cycles in one time step.
const DefaultMaxDeltaCycles = 1000

// Status is the lifecycle state of a Kernel.
type Status int

// Kernel statuses.
const (
	StatusReady Status = iota
	StatusRunning
	StatusFinished
	StatusHalted
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusHalted:
		return "halted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// A SimulationEndHandler is called once when the kernel terminates.
type SimulationEndHandler interface {
	Handle(now VTime)
}

// Kernel is a single-threaded event-driven logic simulator. Processes are
// evaluated when signals they are sensitive to commit new values; their
// zero-delay drives settle through delta cycles before time advances.
type Kernel struct {
	*hooking.HookableBase

	store *Store
	procs *ProcessTable
	queue *eventQueue
	seq   idgen.Generator

	maxDelta   int
	endTime    VTime
	hasEndTime bool

	// stateLock guards the fields below and the signal and process state
	// against readers outside the driver loop.
	stateLock   sync.RWMutex
	now         VTime
	delta       int
	status      Status
	initialized bool
	lastCommit  []SignalID

	runnable []ProcessID
	touched  []SignalID

	stopRequested atomic.Bool

	// pauseMu guards isPaused and inDeltaCycle. pauseCond is signaled when
	// either changes or Stop is called.
	pauseMu      sync.Mutex
	pauseCond    *sync.Cond
	isPaused     bool
	inDeltaCycle bool

	singleRunLock sync.Mutex

	simulationEndHandlers []SimulationEndHandler
}

// NewKernel creates a Kernel with the default settings.
func NewKernel() *Kernel {
	return MakeKernelBuilder().Build()
}

// Declare adds a signal to the design. Signals must be declared before the
// kernel starts.
func (k *Kernel) Declare(name string, opts ...SignalOption) (SignalID, error) {
	if k.started() {
		return -1, ErrKernelStarted
	}

	return k.store.Declare(name, opts...)
}

// MustDeclare is like Declare but panics on error.
func (k *Kernel) MustDeclare(name string, opts ...SignalOption) SignalID {
	id, err := k.Declare(name, opts...)
	if err != nil {
		panic(err)
	}

	return id
}

// Register adds a process to the design. Processes must be registered before
// the kernel starts.
func (k *Kernel) Register(spec ProcessSpec) (ProcessID, error) {
	if k.started() {
		return -1, ErrKernelStarted
	}

	for _, sig := range spec.Sensitivity {
		if !k.store.valid(sig) {
			return -1, fmt.Errorf("%w: process %q is sensitive to id %d",
				ErrUnknownSignal, spec.Name, sig)
		}
	}

	id, err := k.procs.add(spec)
	if err != nil {
		return -1, err
	}

	for _, sig := range spec.Sensitivity {
		k.store.get(sig).addFanout(id)
	}

	return id, nil
}

// MustRegister is like Register but panics on error.
func (k *Kernel) MustRegister(spec ProcessSpec) ProcessID {
	id, err := k.Register(spec)
	if err != nil {
		panic(err)
	}

	return id
}

// Lookup finds a signal by name.
func (k *Kernel) Lookup(name string) (SignalID, bool) {
	return k.store.Lookup(name)
}

// LookupProcess finds a process by name.
func (k *Kernel) LookupProcess(name string) (ProcessID, bool) {
	return k.procs.Lookup(name)
}

// NumSignals returns the number of declared signals.
func (k *Kernel) NumSignals() int {
	return k.store.Len()
}

// NumProcesses returns the number of registered processes.
func (k *Kernel) NumProcesses() int {
	return k.procs.Len()
}

// SignalName returns the name of a signal.
func (k *Kernel) SignalName(id SignalID) string {
	return k.mustGetSignal(id).name
}

// Value returns the committed value of a signal.
func (k *Kernel) Value(id SignalID) (logic.Value, error) {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	s, err := k.store.Get(id)
	if err != nil {
		return logic.X, err
	}

	return s.value, nil
}

// Signal returns a copy of the state of a signal.
func (k *Kernel) Signal(id SignalID) (SignalView, error) {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	s, err := k.store.Get(id)
	if err != nil {
		return SignalView{}, err
	}

	return s.view(), nil
}

// Signals returns a copy of the state of every signal, in declaration order.
func (k *Kernel) Signals() []SignalView {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	views := make([]SignalView, 0, k.store.Len())
	for _, s := range k.store.signals {
		views = append(views, s.view())
	}

	return views
}

// Process returns a copy of the bookkeeping of a process.
func (k *Kernel) Process(id ProcessID) (ProcessInfo, error) {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	if !k.procs.valid(id) {
		return ProcessInfo{}, fmt.Errorf("%w: id %d", ErrUnknownProcess, id)
	}

	return k.procs.get(id).info(), nil
}

// Processes returns a copy of the bookkeeping of every process.
func (k *Kernel) Processes() []ProcessInfo {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	infos := make([]ProcessInfo, 0, k.procs.Len())
	for _, e := range k.procs.entries {
		infos = append(infos, e.info())
	}

	return infos
}

// CurrentTime returns the current simulated time.
func (k *Kernel) CurrentTime() VTime {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	return k.now
}

// CurrentStep returns the current time and the last processed delta cycle.
func (k *Kernel) CurrentStep() Step {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	return Step{Time: k.now, Delta: k.delta}
}

// Status returns the lifecycle state of the kernel.
func (k *Kernel) Status() Status {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	return k.status
}

// Pending returns the number of events waiting in the queue.
func (k *Kernel) Pending() int {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	return k.queue.Len()
}

// RegisterSimulationEndHandler registers a handler that is called once the
// kernel terminates.
func (k *Kernel) RegisterSimulationEndHandler(handler SimulationEndHandler) {
	k.simulationEndHandlers = append(k.simulationEndHandlers, handler)
}

// Schedule drives sig with d at the absolute time at, on behalf of the host.
// It must not be called while the driver loop is running on another
// goroutine.
func (k *Kernel) Schedule(sig SignalID, d logic.Drive, at VTime) error {
	if err := k.usable(); err != nil {
		return err
	}

	if !k.store.valid(sig) {
		return fmt.Errorf("%w: id %d", ErrUnknownSignal, sig)
	}

	if at < k.now {
		return fmt.Errorf("%w: cannot schedule at %d, now is %d",
			ErrTimeOutOfRange, at, k.now)
	}

	delta := 0
	if at == k.now {
		delta = k.delta + 1
	}

	k.push(&event{
		time:   at,
		delta:  delta,
		kind:   driveEvent,
		signal: sig,
		proc:   ExternalDriver,
		drive:  d.Normalize(),
	})

	return nil
}

func (k *Kernel) scheduleRelative(
	kind eventKind,
	proc ProcessID,
	sig SignalID,
	d logic.Drive,
	delay VTime,
) error {
	if kind == driveEvent && !k.store.valid(sig) {
		return fmt.Errorf("%w: id %d", ErrUnknownSignal, sig)
	}

	evt := &event{kind: kind, signal: sig, proc: proc, drive: d}

	if delay == 0 {
		evt.time = k.now
		evt.delta = k.delta + 1
	} else {
		if delay > MaxTime-k.now {
			return fmt.Errorf("%w: delay %d from time %d overflows",
				ErrTimeOutOfRange, delay, k.now)
		}

		evt.time = k.now + delay
	}

	k.push(evt)

	return nil
}

func (k *Kernel) push(evt *event) {
	evt.seq = k.seq.Generate()

	k.stateLock.Lock()
	k.queue.Push(evt)
	k.stateLock.Unlock()
}
