package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

// A Sample is a committed value of a signal.
type Sample struct {
	sim.Step
	Value logic.Value
}

// Waveform keeps every committed transition in memory.
type Waveform struct {
	NopRecorder

	mu          sync.Mutex
	transitions []sim.Transition
	conflicts   []sim.Conflict
	bySignal    map[string][]Sample
}

// NewWaveform creates an empty Waveform.
func NewWaveform() *Waveform {
	return &Waveform{bySignal: make(map[string][]Sample)}
}

// RecordTransition appends a transition.
func (w *Waveform) RecordTransition(t sim.Transition) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.transitions = append(w.transitions, t)
	w.bySignal[t.Name] = append(w.bySignal[t.Name], Sample{Step: t.Step, Value: t.To})
}

// RecordConflict appends a conflict.
func (w *Waveform) RecordConflict(c sim.Conflict) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.conflicts = append(w.conflicts, c)
}

// Transitions returns every transition in commit order.
func (w *Waveform) Transitions() []sim.Transition {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]sim.Transition(nil), w.transitions...)
}

// Conflicts returns every conflict in report order.
func (w *Waveform) Conflicts() []sim.Conflict {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]sim.Conflict(nil), w.conflicts...)
}

// History returns the committed values of one signal.
func (w *Waveform) History(name string) []Sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]Sample(nil), w.bySignal[name]...)
}

// ValueAt returns the value a signal settled to at time t. The boolean is
// false if the signal had no transition at or before t.
func (w *Waveform) ValueAt(name string, t sim.VTime) (logic.Value, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	samples := w.bySignal[name]
	i := sort.Search(len(samples), func(i int) bool {
		return samples[i].Time > t
	})

	if i == 0 {
		return logic.X, false
	}

	return samples[i-1].Value, true
}
