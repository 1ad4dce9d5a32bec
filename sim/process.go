package sim

import (
	"errors"
	"fmt"
)

// ProcessID indexes a process in the ProcessTable.
type ProcessID int

// ExternalDriver is the driver identity of events scheduled by the host
// through Kernel.Schedule.
const ExternalDriver ProcessID = -1

// A Process is a unit of behavior that the kernel evaluates when one of the
// signals it is sensitive to changes.
type Process interface {
	Evaluate(ctx *EvalCtx) error
}

// ProcessFunc adapts an ordinary function to the Process interface.
type ProcessFunc func(ctx *EvalCtx) error

// Evaluate calls f(ctx).
func (f ProcessFunc) Evaluate(ctx *EvalCtx) error {
	return f(ctx)
}

// A ProcessSpec is a registration entry: a named process and the signals it
// is sensitive to.
type ProcessSpec struct {
	Name        string
	Process     Process
	Sensitivity []SignalID
}

// ProcessState is the scheduling state of a process.
type ProcessState int

// Process states. A process cycles Idle -> Scheduled -> Running -> Idle and
// is Retired when the kernel terminates.
const (
	ProcessIdle ProcessState = iota
	ProcessScheduled
	ProcessRunning
	ProcessRetired
)

func (s ProcessState) String() string {
	switch s {
	case ProcessIdle:
		return "Idle"
	case ProcessScheduled:
		return "Scheduled"
	case ProcessRunning:
		return "Running"
	case ProcessRetired:
		return "Retired"
	default:
		return fmt.Sprintf("ProcessState(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s ProcessState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type processEntry struct {
	id          ProcessID
	name        string
	impl        Process
	sensitivity []SignalID
	state       ProcessState
	activations uint64
}

// ProcessInfo is a copy of a process's bookkeeping.
type ProcessInfo struct {
	ID          ProcessID    `json:"id"`
	Name        string       `json:"name"`
	State       ProcessState `json:"state"`
	Sensitivity []SignalID   `json:"sensitivity"`
	Activations uint64       `json:"activations"`
}

// ProcessTable is the registry of all processes in a design.
type ProcessTable struct {
	entries []*processEntry
	byName  map[string]ProcessID
}

// NewProcessTable creates an empty ProcessTable.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{byName: make(map[string]ProcessID)}
}

func (t *ProcessTable) add(spec ProcessSpec) (ProcessID, error) {
	if spec.Name == "" {
		return -1, errors.New("sim: process name must not be empty")
	}

	if spec.Process == nil {
		return -1, fmt.Errorf("sim: process %q has no implementation", spec.Name)
	}

	if _, exists := t.byName[spec.Name]; exists {
		return -1, fmt.Errorf("%w: process %q", ErrDuplicateName, spec.Name)
	}

	e := &processEntry{
		id:          ProcessID(len(t.entries)),
		name:        spec.Name,
		impl:        spec.Process,
		sensitivity: append([]SignalID(nil), spec.Sensitivity...),
	}
	t.entries = append(t.entries, e)
	t.byName[spec.Name] = e.id

	return e.id, nil
}

// Lookup finds a process by name.
func (t *ProcessTable) Lookup(name string) (ProcessID, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Len returns the number of registered processes.
func (t *ProcessTable) Len() int {
	return len(t.entries)
}

func (t *ProcessTable) valid(id ProcessID) bool {
	return id >= 0 && int(id) < len(t.entries)
}

func (t *ProcessTable) get(id ProcessID) *processEntry {
	return t.entries[id]
}

func (e *processEntry) info() ProcessInfo {
	return ProcessInfo{
		ID:          e.id,
		Name:        e.name,
		State:       e.state,
		Sensitivity: append([]SignalID(nil), e.sensitivity...),
		Activations: e.activations,
	}
}
