// Package hwlib provides a library of standard processes for hdlsim: logic
// gates, tri-state buffers, pull resistors, constants, clocks, flip-flops
// and multiplexers.
//
// Every constructor returns a sim.ProcessSpec that can be registered with a
// kernel. Combinational parts re-evaluate whenever one of their inputs
// changes and drive their output after the configured delay.
package hwlib

import (
	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

type config struct {
	delay    sim.VTime
	strength logic.Strength
	reset    sim.SignalID
	hasReset bool
}

// An Option tunes a part.
type Option func(c *config)

// WithDelay sets the propagation delay of a part. Parts have zero delay
// otherwise and settle through delta cycles.
func WithDelay(d sim.VTime) Option {
	return func(c *config) { c.delay = d }
}

// WithStrength sets the drive strength of a part's output.
func WithStrength(s logic.Strength) Option {
	return func(c *config) { c.strength = s }
}

// WithAsyncReset gives a DFF an active-high asynchronous reset.
func WithAsyncReset(rst sim.SignalID) Option {
	return func(c *config) {
		c.reset = rst
		c.hasReset = true
	}
}

func makeConfig(defaultStrength logic.Strength, opts []Option) config {
	c := config{strength: defaultStrength, reset: -1}
	for _, opt := range opts {
		opt(&c)
	}

	return c
}

func (c config) drive(v logic.Value) logic.Drive {
	return logic.Drive{Value: v, Strength: c.strength}.Normalize()
}

// Func computes the output of a combinational part from its inputs.
type Func func(in []logic.Value) logic.Value

// Gate returns a combinational part that computes out = fn(in...).
func Gate(
	name string,
	fn Func,
	in []sim.SignalID,
	out sim.SignalID,
	opts ...Option,
) sim.ProcessSpec {
	c := makeConfig(logic.Strong, opts)
	inputs := append([]sim.SignalID(nil), in...)

	return sim.ProcessSpec{
		Name: name,
		Process: sim.ProcessFunc(func(ctx *sim.EvalCtx) error {
			v := fn(ctx.ReadBus(inputs))
			return ctx.DriveStrength(out, c.drive(v), c.delay)
		}),
		Sensitivity: inputs,
	}
}

func fold(op func(a, b logic.Value) logic.Value) Func {
	return func(in []logic.Value) logic.Value {
		if len(in) == 0 {
			return logic.X
		}

		acc := in[0]
		for _, v := range in[1:] {
			acc = op(acc, v)
		}

		return acc
	}
}

func invert(fn Func) Func {
	return func(in []logic.Value) logic.Value {
		return logic.Not(fn(in))
	}
}

var (
	andFunc = fold(logic.And)
	orFunc  = fold(logic.Or)
	xorFunc = fold(logic.Xor)
)

// bufFunc passes its input through, turning Z into X as a gate input would.
func bufFunc(in []logic.Value) logic.Value {
	return logic.Not(logic.Not(in[0]))
}

// Buf returns a buffer.
//
//	Inputs: in
//	Outputs: out
//	Function: out = in
func Buf(name string, in, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Gate(name, bufFunc, []sim.SignalID{in}, out, opts...)
}

// Not returns an inverter.
//
//	Inputs: in
//	Outputs: out
//	Function: out = !in
func Not(name string, in, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Gate(name, invert(bufFunc), []sim.SignalID{in}, out, opts...)
}

// And returns an n-input AND gate.
func And(name string, in []sim.SignalID, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Gate(name, andFunc, in, out, opts...)
}

// Or returns an n-input OR gate.
func Or(name string, in []sim.SignalID, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Gate(name, orFunc, in, out, opts...)
}

// Nand returns an n-input NAND gate.
func Nand(name string, in []sim.SignalID, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Gate(name, invert(andFunc), in, out, opts...)
}

// Nor returns an n-input NOR gate.
func Nor(name string, in []sim.SignalID, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Gate(name, invert(orFunc), in, out, opts...)
}

// Xor returns an n-input XOR gate. The output is the parity of the inputs.
func Xor(name string, in []sim.SignalID, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Gate(name, xorFunc, in, out, opts...)
}

// Xnor returns an n-input XNOR gate.
func Xnor(name string, in []sim.SignalID, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Gate(name, invert(xorFunc), in, out, opts...)
}

// Mux2 returns a 2-to-1 multiplexer.
//
//	Inputs: a, b, sel
//	Outputs: out
//	Function: if sel == 0 { out = a } else { out = b }
//
// An unknown sel yields a when both inputs agree and X otherwise.
func Mux2(name string, a, b, sel, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Gate(name, mux2, []sim.SignalID{a, b, sel}, out, opts...)
}

func mux2(in []logic.Value) logic.Value {
	a, b := bufFunc(in[:1]), bufFunc(in[1:2])

	switch in[2] {
	case logic.L0:
		return a
	case logic.L1:
		return b
	}

	if a == b {
		return a
	}

	return logic.X
}

// Bufif1 returns a tri-state buffer. The output floats while en is 0.
//
//	Inputs: in, en
//	Outputs: out
//	Function: if en == 1 { out = in } else if en == 0 { out = z }
func Bufif1(name string, in, en, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	c := makeConfig(logic.Strong, opts)

	return sim.ProcessSpec{
		Name: name,
		Process: sim.ProcessFunc(func(ctx *sim.EvalCtx) error {
			switch ctx.Read(en) {
			case logic.L0:
				return ctx.Release(out, c.delay)
			case logic.L1:
				return ctx.DriveStrength(out, c.drive(bufFunc([]logic.Value{ctx.Read(in)})), c.delay)
			default:
				return ctx.DriveStrength(out, c.drive(logic.X), c.delay)
			}
		}),
		Sensitivity: []sim.SignalID{in, en},
	}
}

// Constant returns a part that drives v on out from time 0.
func Constant(name string, v logic.Value, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	c := makeConfig(logic.Strong, opts)

	return sim.ProcessSpec{
		Name: name,
		Process: sim.ProcessFunc(func(ctx *sim.EvalCtx) error {
			if !ctx.IsInit() {
				return nil
			}

			return ctx.DriveStrength(out, c.drive(v), c.delay)
		}),
	}
}

// Pullup returns a resistor that pulls out to 1 when nothing stronger
// drives it.
func Pullup(name string, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Constant(name, logic.L1, out, append([]Option{WithStrength(logic.Pull)}, opts...)...)
}

// Pulldown returns a resistor that pulls out to 0 when nothing stronger
// drives it.
func Pulldown(name string, out sim.SignalID, opts ...Option) sim.ProcessSpec {
	return Constant(name, logic.L0, out, append([]Option{WithStrength(logic.Pull)}, opts...)...)
}
