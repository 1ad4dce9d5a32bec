package sim

import (
	"fmt"
	"sort"

	"github.com/sarchlab/hdlsim/logic"
)

// SignalID indexes a signal in the Store.
type SignalID int

// A Contribution is the drive one process puts on a signal.
type Contribution struct {
	Process ProcessID
	Drive   logic.Drive
}

// Signal holds the committed state of a net together with its drivers and
// fan-out.
type Signal struct {
	id       SignalID
	name     string
	kind     logic.NetKind
	value    logic.Value
	prev     logic.Value
	strength logic.Strength

	lastEvent Step
	hasEvent  bool

	// drivers is sorted by process ID, one entry per driving process.
	drivers []Contribution
	fanout  []ProcessID
	touched bool
}

// ID returns the signal ID.
func (s *Signal) ID() SignalID { return s.id }

// Name returns the signal name.
func (s *Signal) Name() string { return s.name }

// Kind returns the net kind used to resolve the signal.
func (s *Signal) Kind() logic.NetKind { return s.kind }

// Value returns the committed value.
func (s *Signal) Value() logic.Value { return s.value }

// Previous returns the value before the last committed change.
func (s *Signal) Previous() logic.Value { return s.prev }

// LastEvent returns the step of the last committed change. The boolean is
// false if the signal never changed.
func (s *Signal) LastEvent() (Step, bool) { return s.lastEvent, s.hasEvent }

func (s *Signal) setContribution(proc ProcessID, d logic.Drive) {
	i := sort.Search(len(s.drivers), func(i int) bool {
		return s.drivers[i].Process >= proc
	})

	if i < len(s.drivers) && s.drivers[i].Process == proc {
		s.drivers[i].Drive = d
		return
	}

	s.drivers = append(s.drivers, Contribution{})
	copy(s.drivers[i+1:], s.drivers[i:])
	s.drivers[i] = Contribution{Process: proc, Drive: d}
}

func (s *Signal) resolve() logic.Resolution {
	drives := make([]logic.Drive, len(s.drivers))
	for i, c := range s.drivers {
		drives[i] = c.Drive
	}

	return logic.Resolve(s.kind, drives)
}

func (s *Signal) addFanout(p ProcessID) {
	for _, existing := range s.fanout {
		if existing == p {
			return
		}
	}

	s.fanout = append(s.fanout, p)
}

// A SignalOption configures a signal at declaration.
type SignalOption func(s *Signal)

// WithInit sets the initial value. Signals start at X otherwise.
func WithInit(v logic.Value) SignalOption {
	return func(s *Signal) {
		s.value = v
		s.prev = v
	}
}

// WithNetKind sets the resolution function of the signal.
func WithNetKind(k logic.NetKind) SignalOption {
	return func(s *Signal) {
		s.kind = k
	}
}

// Store owns all the signals of a design.
type Store struct {
	signals []*Signal
	byName  map[string]SignalID
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{byName: make(map[string]SignalID)}
}

// Declare adds a signal to the store.
func (s *Store) Declare(name string, opts ...SignalOption) (SignalID, error) {
	if name == "" {
		return -1, fmt.Errorf("sim: signal name must not be empty")
	}

	if _, exists := s.byName[name]; exists {
		return -1, fmt.Errorf("%w: signal %q", ErrDuplicateName, name)
	}

	sig := &Signal{
		id:       SignalID(len(s.signals)),
		name:     name,
		value:    logic.X,
		prev:     logic.X,
		strength: logic.HighZ,
	}
	for _, opt := range opts {
		opt(sig)
	}

	s.signals = append(s.signals, sig)
	s.byName[name] = sig.id

	return sig.id, nil
}

// Lookup finds a signal by name.
func (s *Store) Lookup(name string) (SignalID, bool) {
	id, ok := s.byName[name]
	return id, ok
}

// Get returns the signal with the given ID.
func (s *Store) Get(id SignalID) (*Signal, error) {
	if !s.valid(id) {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownSignal, id)
	}

	return s.signals[id], nil
}

// Len returns the number of signals.
func (s *Store) Len() int {
	return len(s.signals)
}

func (s *Store) valid(id SignalID) bool {
	return id >= 0 && int(id) < len(s.signals)
}

func (s *Store) get(id SignalID) *Signal {
	return s.signals[id]
}

// SignalView is a copy of a signal's state that is safe to hand out of the
// driver loop.
type SignalView struct {
	ID         SignalID       `json:"id"`
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Value      string         `json:"value"`
	Strength   string         `json:"strength"`
	LastChange VTime          `json:"last_change"`
	Drivers    []Contribution `json:"drivers"`
	Fanout     []ProcessID    `json:"fanout"`
}

func (s *Signal) view() SignalView {
	return SignalView{
		ID:         s.id,
		Name:       s.name,
		Kind:       s.kind.String(),
		Value:      s.value.String(),
		Strength:   s.strength.String(),
		LastChange: s.lastEvent.Time,
		Drivers:    append([]Contribution(nil), s.drivers...),
		Fanout:     append([]ProcessID(nil), s.fanout...),
	}
}
