package hwlib

import (
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

// Ports is the wiring of one part instance, with every pin resolved to a
// signal.
type Ports struct {
	Name    string
	In      []sim.SignalID
	Out     []sim.SignalID
	Params  map[string]string
	Options []Option
}

// A Factory builds a process from its wiring.
type Factory func(p Ports) (sim.ProcessSpec, error)

var (
	registryLock sync.RWMutex
	registry     = map[string]Factory{}
)

// Register makes a part type available by name. It panics if the name is
// already taken.
func Register(typeName string, f Factory) {
	registryLock.Lock()
	defer registryLock.Unlock()

	if _, exists := registry[typeName]; exists {
		panic("hwlib: part type " + typeName + " registered twice")
	}

	registry[typeName] = f
}

// Lookup returns the factory of a part type.
func Lookup(typeName string) (Factory, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	f, ok := registry[typeName]

	return f, ok
}

// Types lists the registered part types in alphabetical order.
func Types() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()

	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)

	return names
}

func init() {
	gates := map[string]func(string, []sim.SignalID, sim.SignalID, ...Option) sim.ProcessSpec{
		"and":  And,
		"or":   Or,
		"nand": Nand,
		"nor":  Nor,
		"xor":  Xor,
		"xnor": Xnor,
	}
	for n, g := range gates {
		Register(n, gateFactory(n, g))
	}

	Register("buf", unary("buf", Buf))
	Register("not", unary("not", Not))
	Register("bufif1", makeBufif1)
	Register("mux2", makeMux2)
	Register("dff", makeDFF)
	Register("clock", makeClock)
	Register("constant", makeConstant)
	Register("pullup", pull(Pullup))
	Register("pulldown", pull(Pulldown))
}

func (p Ports) expect(typeName string, in, out int) error {
	if in >= 0 && len(p.In) != in {
		return errors.Errorf("%s %s: want %d inputs, got %d", typeName, p.Name, in, len(p.In))
	}

	if len(p.Out) != out {
		return errors.Errorf("%s %s: want %d outputs, got %d", typeName, p.Name, out, len(p.Out))
	}

	return nil
}

func (p Ports) uintParam(key string, def uint64) (uint64, error) {
	s, ok := p.Params[key]
	if !ok {
		return def, nil
	}

	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: param %s", p.Name, key)
	}

	return v, nil
}

func gateFactory(
	typeName string,
	g func(string, []sim.SignalID, sim.SignalID, ...Option) sim.ProcessSpec,
) Factory {
	return func(p Ports) (sim.ProcessSpec, error) {
		if err := p.expect(typeName, -1, 1); err != nil {
			return sim.ProcessSpec{}, err
		}

		if len(p.In) == 0 {
			return sim.ProcessSpec{}, errors.Errorf("%s %s: no inputs", typeName, p.Name)
		}

		return g(p.Name, p.In, p.Out[0], p.Options...), nil
	}
}

func unary(typeName string, g func(string, sim.SignalID, sim.SignalID, ...Option) sim.ProcessSpec) Factory {
	return func(p Ports) (sim.ProcessSpec, error) {
		if err := p.expect(typeName, 1, 1); err != nil {
			return sim.ProcessSpec{}, err
		}

		return g(p.Name, p.In[0], p.Out[0], p.Options...), nil
	}
}

func makeBufif1(p Ports) (sim.ProcessSpec, error) {
	if err := p.expect("bufif1", 2, 1); err != nil {
		return sim.ProcessSpec{}, err
	}

	return Bufif1(p.Name, p.In[0], p.In[1], p.Out[0], p.Options...), nil
}

func makeMux2(p Ports) (sim.ProcessSpec, error) {
	if err := p.expect("mux2", 3, 1); err != nil {
		return sim.ProcessSpec{}, err
	}

	return Mux2(p.Name, p.In[0], p.In[1], p.In[2], p.Out[0], p.Options...), nil
}

func makeDFF(p Ports) (sim.ProcessSpec, error) {
	if err := p.expect("dff", -1, 1); err != nil {
		return sim.ProcessSpec{}, err
	}

	opts := p.Options
	switch len(p.In) {
	case 2:
	case 3:
		opts = append(opts, WithAsyncReset(p.In[2]))
	default:
		return sim.ProcessSpec{}, errors.Errorf("dff %s: want 2 or 3 inputs, got %d", p.Name, len(p.In))
	}

	return DFF(p.Name, p.In[0], p.In[1], p.Out[0], opts...), nil
}

func makeClock(p Ports) (sim.ProcessSpec, error) {
	if err := p.expect("clock", 0, 1); err != nil {
		return sim.ProcessSpec{}, err
	}

	period, err := p.uintParam("period", 0)
	if err != nil {
		return sim.ProcessSpec{}, err
	}

	if period < 2 {
		return sim.ProcessSpec{}, errors.Errorf("clock %s: period must be at least 2", p.Name)
	}

	phase, err := p.uintParam("phase", 0)
	if err != nil {
		return sim.ProcessSpec{}, err
	}

	return Clock(p.Name, p.Out[0], sim.VTime(period), sim.VTime(phase), p.Options...), nil
}

func makeConstant(p Ports) (sim.ProcessSpec, error) {
	if err := p.expect("constant", 0, 1); err != nil {
		return sim.ProcessSpec{}, err
	}

	s, ok := p.Params["value"]
	if !ok || len(s) != 1 {
		return sim.ProcessSpec{}, errors.Errorf("constant %s: param value must be one of 0, 1, x, z", p.Name)
	}

	v, err := logic.ParseValue(rune(s[0]))
	if err != nil {
		return sim.ProcessSpec{}, errors.Wrapf(err, "constant %s", p.Name)
	}

	return Constant(p.Name, v, p.Out[0], p.Options...), nil
}

func pull(g func(string, sim.SignalID, ...Option) sim.ProcessSpec) Factory {
	return func(p Ports) (sim.ProcessSpec, error) {
		if err := p.expect("pull", 0, 1); err != nil {
			return sim.ProcessSpec{}, err
		}

		return g(p.Name, p.Out[0], p.Options...), nil
	}
}
