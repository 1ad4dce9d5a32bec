package design

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/sarchlab/hdlsim/hwlib"
	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

// Netlist maps the names of a design to kernel signals and processes.
type Netlist struct {
	Design *Design

	buses map[string][]sim.SignalID
	order []string
}

// BitName returns the name of bit i of a bus.
func BitName(bus string, i int) string {
	return bus + "[" + strconv.Itoa(i) + "]"
}

// Load parses the design file at path and elaborates it into k.
func Load(path string, k *sim.Kernel) (*Netlist, error) {
	d, err := ParseFile(path)
	if err != nil {
		return nil, err
	}

	return d.Elaborate(k)
}

// Elaborate declares every signal of the design and registers every
// instance with k.
func (d *Design) Elaborate(k *sim.Kernel) (*Netlist, error) {
	n := &Netlist{
		Design: d,
		buses:  make(map[string][]sim.SignalID),
	}

	for _, s := range d.Signals {
		if err := n.declare(k, s); err != nil {
			return nil, errors.Wrapf(err, "signal %q", s.Name)
		}
	}

	for _, inst := range d.Instances {
		if err := n.place(k, inst); err != nil {
			return nil, errors.Wrapf(err, "instance %q", inst.Name)
		}
	}

	return n, nil
}

func (n *Netlist) declare(k *sim.Kernel, s Signal) error {
	if s.Name == "" {
		return errors.New("missing name")
	}

	if strings.ContainsAny(s.Name, "[]. ") {
		return errors.New("name must not contain brackets, dots or spaces")
	}

	if _, exists := n.buses[s.Name]; exists {
		return errors.Wrap(sim.ErrDuplicateName, "declared twice")
	}

	width := s.Width
	if width < 0 {
		return errors.Errorf("negative width %d", width)
	}

	if width == 0 {
		width = 1
	}

	kind, err := logic.ParseNetKind(s.Kind)
	if err != nil {
		return err
	}

	init, err := initValues(s.Init, width)
	if err != nil {
		return err
	}

	ids := make([]sim.SignalID, width)
	for i := range ids {
		name := s.Name
		if s.Width > 1 {
			name = BitName(s.Name, i)
		}

		opts := []sim.SignalOption{sim.WithNetKind(kind)}
		if init != nil {
			opts = append(opts, sim.WithInit(init[i]))
		}

		ids[i], err = k.Declare(name, opts...)
		if err != nil {
			return err
		}
	}

	n.buses[s.Name] = ids
	n.order = append(n.order, s.Name)

	return nil
}

// initValues returns the initial value of every bit, LSB first, or nil if
// the signal has no initial value.
func initValues(init string, width int) ([]logic.Value, error) {
	if init == "" {
		return nil, nil
	}

	bits, err := logic.ParseBits(init)
	if err != nil {
		return nil, errors.Wrap(err, "init")
	}

	switch len(bits) {
	case width:
		return bits, nil
	case 1:
		values := make([]logic.Value, width)
		for i := range values {
			values[i] = bits[0]
		}

		return values, nil
	default:
		return nil, errors.Errorf("init %q has %d bits, signal has %d", init, len(bits), width)
	}
}

func (n *Netlist) place(k *sim.Kernel, inst Instance) error {
	if inst.Name == "" {
		return errors.New("missing name")
	}

	factory, ok := hwlib.Lookup(inst.Type)
	if !ok {
		return errors.Errorf("unknown part type %q, known types are %s",
			inst.Type, strings.Join(hwlib.Types(), ", "))
	}

	in, err := n.ResolveAll(inst.In)
	if err != nil {
		return errors.Wrap(err, "in")
	}

	out, err := n.ResolveAll(inst.Out)
	if err != nil {
		return errors.Wrap(err, "out")
	}

	ports := hwlib.Ports{
		Name:   inst.Name,
		In:     in,
		Out:    out,
		Params: inst.Params,
	}

	if inst.Delay > 0 {
		ports.Options = append(ports.Options, hwlib.WithDelay(sim.VTime(inst.Delay)))
	}

	if inst.Strength != "" {
		s, err := logic.ParseStrength(inst.Strength)
		if err != nil {
			return err
		}

		ports.Options = append(ports.Options, hwlib.WithStrength(s))
	}

	spec, err := factory(ports)
	if err != nil {
		return err
	}

	_, err = k.Register(spec)

	return err
}

// Resolve returns the signals named by a pin reference: a whole signal, one
// bit of a bus (a[3]) or a bit range (a[0..3]). Bits are returned least
// significant first.
func (n *Netlist) Resolve(ref string) ([]sim.SignalID, error) {
	open := strings.IndexByte(ref, '[')
	if open < 0 {
		ids, ok := n.buses[ref]
		if !ok {
			return nil, errors.Wrapf(sim.ErrUnknownSignal, "%q", ref)
		}

		return append([]sim.SignalID(nil), ids...), nil
	}

	if !strings.HasSuffix(ref, "]") {
		return nil, errors.Errorf("no terminating ] in %q", ref)
	}

	name := ref[:open]
	ids, ok := n.buses[name]
	if !ok {
		return nil, errors.Wrapf(sim.ErrUnknownSignal, "%q", name)
	}

	lo, hi, err := parseRange(ref[open+1 : len(ref)-1])
	if err != nil {
		return nil, errors.Wrapf(err, "%q", ref)
	}

	if hi >= len(ids) {
		return nil, errors.Errorf("%q is out of range, %s has %d bits", ref, name, len(ids))
	}

	return append([]sim.SignalID(nil), ids[lo:hi+1]...), nil
}

func parseRange(s string) (lo, hi int, err error) {
	from, to, isRange := strings.Cut(s, "..")

	lo, err = strconv.Atoi(from)
	if err != nil {
		return 0, 0, errors.Wrap(err, "bit index")
	}

	hi = lo
	if isRange {
		hi, err = strconv.Atoi(to)
		if err != nil {
			return 0, 0, errors.Wrap(err, "bit index")
		}
	}

	if lo < 0 || hi < lo {
		return 0, 0, errors.Errorf("bad bit range %s", s)
	}

	return lo, hi, nil
}

// ResolveAll resolves several pin references and concatenates the result.
func (n *Netlist) ResolveAll(refs []string) ([]sim.SignalID, error) {
	var ids []sim.SignalID

	for _, ref := range refs {
		r, err := n.Resolve(ref)
		if err != nil {
			return nil, err
		}

		ids = append(ids, r...)
	}

	return ids, nil
}

// Buses returns the declared signal names in declaration order.
func (n *Netlist) Buses() []string {
	return append([]string(nil), n.order...)
}

// Width returns the number of bits of a declared signal, or 0 if it is
// unknown.
func (n *Netlist) Width(name string) int {
	return len(n.buses[name])
}

// InstanceTypes counts the instances of each part type.
func (d *Design) InstanceTypes() map[string]int {
	counts := make(map[string]int)
	for _, inst := range d.Instances {
		counts[inst.Type]++
	}

	return counts
}

// SortedTypes returns the part types used by the design in alphabetical
// order.
func (d *Design) SortedTypes() []string {
	counts := d.InstanceTypes()

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	return types
}
