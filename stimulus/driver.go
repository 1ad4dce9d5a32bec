package stimulus

import (
	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

// Driver is a process that applies the set lines of a vector file. Values
// are driven at strong strength and commit in the first delta cycle after
// the driver wakes.
type Driver struct {
	name  string
	steps []step
	next  int
}

// NewDriver binds the set lines of vectors to signals.
func NewDriver(name string, vectors []Vector, r Resolver) (*Driver, error) {
	steps, err := bind(vectors, OpSet, r)
	if err != nil {
		return nil, err
	}

	return &Driver{name: name, steps: steps}, nil
}

// Spec returns the registration entry of the driver.
func (d *Driver) Spec() sim.ProcessSpec {
	return sim.ProcessSpec{Name: d.name, Process: d}
}

// Remaining returns the number of time steps that are not applied yet.
func (d *Driver) Remaining() int {
	return len(d.steps) - d.next
}

// Evaluate applies the assignments due now and sleeps until the next ones.
func (d *Driver) Evaluate(ctx *sim.EvalCtx) error {
	now := ctx.Now()

	for d.next < len(d.steps) && d.steps[d.next].time <= now {
		for _, a := range d.steps[d.next].assigns {
			for i, id := range a.ids {
				if err := ctx.DriveStrength(id, logic.StrongDrive(a.bits[i]), 0); err != nil {
					return err
				}
			}
		}

		d.next++
	}

	if d.next < len(d.steps) {
		return ctx.WakeAfter(d.steps[d.next].time - now)
	}

	return nil
}
