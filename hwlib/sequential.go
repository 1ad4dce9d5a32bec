package hwlib

import (
	"fmt"

	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

// Clock returns a free-running clock. The output starts at 0 and rises
// first at phase + period/2. It stays low for period/2 and high for the rest
// of the period.
func Clock(name string, out sim.SignalID, period, phase sim.VTime, opts ...Option) sim.ProcessSpec {
	if period < 2 {
		panic(fmt.Sprintf("hwlib: clock %s period must be at least 2", name))
	}

	c := &clock{
		config: makeConfig(logic.Strong, opts),
		out:    out,
		period: period,
		phase:  phase,
		low:    period / 2,
	}

	return sim.ProcessSpec{Name: name, Process: c}
}

// clock derives its level from the current time, so one spec can be
// registered in several kernels.
type clock struct {
	config

	out    sim.SignalID
	period sim.VTime
	phase  sim.VTime
	low    sim.VTime
}

func (c *clock) Evaluate(ctx *sim.EvalCtx) error {
	if ctx.IsInit() {
		if err := ctx.DriveStrength(c.out, c.drive(logic.L0), 0); err != nil {
			return err
		}

		return ctx.WakeAfter(c.phase + c.low)
	}

	offset := (ctx.Now() - c.phase) % c.period

	level, wait := logic.L0, c.low-offset
	if offset >= c.low {
		level, wait = logic.L1, c.period-offset
	}

	if err := ctx.DriveStrength(c.out, c.drive(level), 0); err != nil {
		return err
	}

	return ctx.WakeAfter(wait)
}

// DFF returns a rising-edge D flip-flop.
//
//	Inputs: d, clk [, rst]
//	Outputs: q
//	Function: on posedge clk { q = d }; while rst == 1 { q = 0 }
//
// The reset is asynchronous and only present with WithAsyncReset.
func DFF(name string, d, clk, q sim.SignalID, opts ...Option) sim.ProcessSpec {
	c := makeConfig(logic.Strong, opts)

	sensitivity := []sim.SignalID{clk}
	if c.hasReset {
		sensitivity = append(sensitivity, c.reset)
	}

	return sim.ProcessSpec{
		Name: name,
		Process: sim.ProcessFunc(func(ctx *sim.EvalCtx) error {
			if c.hasReset && ctx.Read(c.reset) == logic.L1 {
				return ctx.DriveStrength(q, c.drive(logic.L0), c.delay)
			}

			if ctx.Rising(clk) {
				return ctx.DriveStrength(q, c.drive(bufFunc([]logic.Value{ctx.Read(d)})), c.delay)
			}

			return nil
		}),
		Sensitivity: sensitivity,
	}
}
