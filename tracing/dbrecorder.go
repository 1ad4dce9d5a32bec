package tracing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/sarchlab/hdlsim/datarecording"
	"github.com/sarchlab/hdlsim/sim"
)

// Table names used by DBRecorder.
const (
	SignalTable      = "signals"
	TransitionTable  = "transitions"
	ConflictTable    = "conflicts"
	ActivationTable  = "activations"
	TerminationTable = "termination"
)

// SignalEntry is a row of the signal table.
type SignalEntry struct {
	ID   int
	Name string
	Kind string
}

// TransitionEntry is a row of the transition table.
type TransitionEntry struct {
	Time     uint64
	Delta    int
	Signal   string
	FromVal  string
	ToVal    string
	Strength string
	Conflict bool
}

// ConflictEntry is a row of the conflict table. Drivers lists every
// contribution as process=value(strength).
type ConflictEntry struct {
	Time     uint64
	Delta    int
	Signal   string
	Drivers  string
	Resolved string
}

// ActivationEntry is a row of the activation table.
type ActivationEntry struct {
	Time    uint64
	Delta   int
	Process string
	State   string
}

// TerminationEntry is the row of the termination table.
type TerminationEntry struct {
	Time    uint64
	Reason  string
	Dropped int
	Error   string
}

// DBRecorder stores the activity of a kernel through a DataRecorder.
type DBRecorder struct {
	mu      sync.Mutex
	backend datarecording.DataRecorder
	k       *sim.Kernel

	withActivations bool
}

// NewDBRecorder creates the tables in backend and writes the signal list of
// k. Process activations are only stored if withActivations is set, as they
// outnumber every other record.
func NewDBRecorder(
	backend datarecording.DataRecorder,
	k *sim.Kernel,
	withActivations bool,
) *DBRecorder {
	r := &DBRecorder{
		backend:         backend,
		k:               k,
		withActivations: withActivations,
	}

	backend.CreateTable(SignalTable, SignalEntry{})
	backend.CreateTable(TransitionTable, TransitionEntry{})
	backend.CreateTable(ConflictTable, ConflictEntry{})
	backend.CreateTable(TerminationTable, TerminationEntry{})

	if withActivations {
		backend.CreateTable(ActivationTable, ActivationEntry{})
	}

	for _, s := range k.Signals() {
		backend.InsertData(SignalTable, SignalEntry{
			ID:   int(s.ID),
			Name: s.Name,
			Kind: s.Kind,
		})
	}

	return r
}

// RecordTransition stores a transition.
func (r *DBRecorder) RecordTransition(t sim.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backend.InsertData(TransitionTable, TransitionEntry{
		Time:     uint64(t.Time),
		Delta:    t.Delta,
		Signal:   t.Name,
		FromVal:  t.From.String(),
		ToVal:    t.To.String(),
		Strength: t.Strength.String(),
		Conflict: t.Conflict,
	})
}

// RecordConflict stores a conflict.
func (r *DBRecorder) RecordConflict(c sim.Conflict) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backend.InsertData(ConflictTable, ConflictEntry{
		Time:     uint64(c.Time),
		Delta:    c.Delta,
		Signal:   c.Name,
		Drivers:  formatDrivers(r.k, c.Drivers),
		Resolved: c.Resolved.String(),
	})
}

// RecordActivation stores a process state change.
func (r *DBRecorder) RecordActivation(a sim.Activation) {
	if !r.withActivations {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.backend.InsertData(ActivationTable, ActivationEntry{
		Time:    uint64(a.Time),
		Delta:   a.Delta,
		Process: a.Name,
		State:   a.To.String(),
	})
}

// RecordTermination stores how the run ended and flushes the backend.
func (r *DBRecorder) RecordTermination(t sim.Termination) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := TerminationEntry{
		Time:    uint64(t.Time),
		Reason:  string(t.Reason),
		Dropped: t.Dropped,
	}
	if t.Err != nil {
		entry.Error = t.Err.Error()
	}

	r.backend.InsertData(TerminationTable, entry)
	r.backend.Flush()
}

// Flush writes the buffered records.
func (r *DBRecorder) Flush() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backend.Flush()
}

func driverName(k *sim.Kernel, id sim.ProcessID) string {
	if id == sim.ExternalDriver {
		return "external"
	}

	if k != nil {
		if info, err := k.Process(id); err == nil {
			return info.Name
		}
	}

	return fmt.Sprintf("process%d", id)
}

func formatDrivers(k *sim.Kernel, drivers []sim.Contribution) string {
	parts := make([]string, len(drivers))
	for i, d := range drivers {
		parts[i] = fmt.Sprintf("%s=%s", driverName(k, d.Process), d.Drive)
	}

	return strings.Join(parts, " ")
}
