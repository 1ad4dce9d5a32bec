package tracing

import (
	"sort"
	"sync"

	"github.com/sarchlab/hdlsim/sim"
)

// A SignalFilter decides whether a signal is counted.
type SignalFilter func(name string) bool

// ActivityCounter counts the transitions of every signal and the
// evaluations of every process.
type ActivityCounter struct {
	NopRecorder

	filter SignalFilter
	lock   sync.Mutex

	signalNames  []string
	toggles      map[string]uint64
	evaluations  map[string]uint64
	processNames []string
}

// An Activity is the count of one signal or process.
type Activity struct {
	Name  string
	Count uint64
}

// NewActivityCounter creates an ActivityCounter. A nil filter counts every
// signal.
func NewActivityCounter(filter SignalFilter) *ActivityCounter {
	return &ActivityCounter{
		filter:      filter,
		toggles:     make(map[string]uint64),
		evaluations: make(map[string]uint64),
	}
}

// RecordTransition counts a transition.
func (c *ActivityCounter) RecordTransition(t sim.Transition) {
	if c.filter != nil && !c.filter(t.Name) {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.toggles[t.Name]; !ok {
		c.signalNames = append(c.signalNames, t.Name)
	}

	c.toggles[t.Name]++
}

// RecordActivation counts a process evaluation.
func (c *ActivityCounter) RecordActivation(a sim.Activation) {
	if a.To != sim.ProcessRunning {
		return
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.evaluations[a.Name]; !ok {
		c.processNames = append(c.processNames, a.Name)
	}

	c.evaluations[a.Name]++
}

// SignalNames returns the counted signals in order of first transition.
func (c *ActivityCounter) SignalNames() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]string(nil), c.signalNames...)
}

// Toggles returns the number of transitions of a signal.
func (c *ActivityCounter) Toggles(name string) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.toggles[name]
}

// Evaluations returns the number of times a process ran.
func (c *ActivityCounter) Evaluations(name string) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.evaluations[name]
}

// MostActiveSignals returns up to n signals with the most transitions. Ties
// keep the order of first transition.
func (c *ActivityCounter) MostActiveSignals(n int) []Activity {
	c.lock.Lock()
	defer c.lock.Unlock()

	return top(c.signalNames, c.toggles, n)
}

// MostActiveProcesses returns up to n processes with the most evaluations.
func (c *ActivityCounter) MostActiveProcesses(n int) []Activity {
	c.lock.Lock()
	defer c.lock.Unlock()

	return top(c.processNames, c.evaluations, n)
}

func top(names []string, counts map[string]uint64, n int) []Activity {
	list := make([]Activity, len(names))
	for i, name := range names {
		list[i] = Activity{Name: name, Count: counts[name]}
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Count > list[j].Count
	})

	if n >= 0 && n < len(list) {
		list = list[:n]
	}

	return list
}
