package stimulus

import (
	"fmt"

	"github.com/sarchlab/hdlsim/hooking"
	"github.com/sarchlab/hdlsim/logic"
	"github.com/sarchlab/hdlsim/sim"
)

// A Mismatch is an expect line that did not hold.
type Mismatch struct {
	Line int       `json:"line"`
	Time sim.VTime `json:"time"`
	Ref  string    `json:"ref"`
	Want string    `json:"want"`
	Got  string    `json:"got"`
}

func (m Mismatch) String() string {
	return fmt.Sprintf("line %d, time %d: %s = %s, want %s",
		m.Line, m.Time, m.Ref, m.Got, m.Want)
}

// Report summarizes a checker.
type Report struct {
	Checked    int        `json:"checked"`
	Unreached  int        `json:"unreached"`
	Mismatches []Mismatch `json:"mismatches"`
}

// Passed returns true if every expect line was reached and held.
func (r Report) Passed() bool {
	return r.Unreached == 0 && len(r.Mismatches) == 0
}

// Checker verifies the expect lines of a vector file. Each line is sampled
// at the start of its time step, before any event of that step commits.
//
// The checker is both a process, which wakes the kernel at every expect
// time, and a hook, which takes the samples when time advances.
type Checker struct {
	name       string
	k          *sim.Kernel
	steps      []step
	next       int
	checked    int
	mismatches []Mismatch
}

// NewChecker binds the expect lines of vectors to signals.
func NewChecker(name string, vectors []Vector, r Resolver) (*Checker, error) {
	steps, err := bind(vectors, OpExpect, r)
	if err != nil {
		return nil, err
	}

	return &Checker{name: name, steps: steps}, nil
}

// Attach registers the checker with a kernel.
func (c *Checker) Attach(k *sim.Kernel) error {
	if _, err := k.Register(sim.ProcessSpec{Name: c.name, Process: c}); err != nil {
		return err
	}

	c.k = k
	k.AcceptHook(c)

	return nil
}

// Evaluate schedules a wake-up at the next expect time.
func (c *Checker) Evaluate(ctx *sim.EvalCtx) error {
	now := ctx.Now()

	for i := c.next; i < len(c.steps); i++ {
		if c.steps[i].time > now {
			return ctx.WakeAfter(c.steps[i].time - now)
		}
	}

	return nil
}

// Func samples expect lines when time advances past them.
func (c *Checker) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosTimeAdvance:
		c.sampleUntil(ctx.Item.(sim.Step).Time)
	case sim.HookPosDeltaStart:
		if step := ctx.Item.(sim.Step); step.Time == 0 && step.Delta == 0 {
			c.sampleUntil(0)
		}
	}
}

func (c *Checker) sampleUntil(t sim.VTime) {
	for c.next < len(c.steps) && c.steps[c.next].time <= t {
		c.sample(c.steps[c.next])
		c.next++
	}
}

func (c *Checker) sample(s step) {
	for _, a := range s.assigns {
		got := make([]logic.Value, len(a.ids))
		for i, id := range a.ids {
			got[i], _ = c.k.Value(id)
		}

		c.checked++

		if !equal(got, a.bits) {
			c.mismatches = append(c.mismatches, Mismatch{
				Line: a.line,
				Time: s.time,
				Ref:  a.ref,
				Want: logic.FormatBits(a.bits),
				Got:  logic.FormatBits(got),
			})
		}
	}
}

func equal(a, b []logic.Value) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// Report returns the outcome of the checks done so far.
func (c *Checker) Report() Report {
	unreached := 0
	for _, s := range c.steps[c.next:] {
		unreached += len(s.assigns)
	}

	return Report{
		Checked:    c.checked,
		Unreached:  unreached,
		Mismatches: append([]Mismatch(nil), c.mismatches...),
	}
}
