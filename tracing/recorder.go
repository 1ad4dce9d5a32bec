// Package tracing records what happens inside a kernel: value changes,
// driver conflicts and process activity.
package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/hdlsim/hooking"
	"github.com/sarchlab/hdlsim/sim"
)

// A Recorder collects the activity of a kernel.
type Recorder interface {
	RecordTransition(t sim.Transition)
	RecordConflict(c sim.Conflict)
	RecordActivation(a sim.Activation)
	RecordTermination(t sim.Termination)
}

// CollectTrace lets the recorder collect the activity of a domain.
func CollectTrace(domain hooking.Hookable, recorder Recorder) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.r == recorder {
			panic(fmt.Sprintf("recorder %s already collects this domain",
				reflect.TypeOf(recorder)))
		}
	}

	domain.AcceptHook(&traceHook{r: recorder})
}

// A traceHook forwards kernel hook items to a recorder.
type traceHook struct {
	r Recorder
}

// Func calls the recorder interfaces when the hook is triggered
func (h *traceHook) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosCommit:
		h.r.RecordTransition(ctx.Item.(sim.Transition))
	case sim.HookPosConflict:
		h.r.RecordConflict(ctx.Item.(sim.Conflict))
	case sim.HookPosProcessState:
		h.r.RecordActivation(ctx.Item.(sim.Activation))
	case sim.HookPosTerminate:
		h.r.RecordTermination(ctx.Item.(sim.Termination))
	}
}

// NopRecorder ignores everything. Embed it to implement only some of the
// Recorder methods.
type NopRecorder struct{}

// RecordTransition does nothing.
func (NopRecorder) RecordTransition(sim.Transition) {}

// RecordConflict does nothing.
func (NopRecorder) RecordConflict(sim.Conflict) {}

// RecordActivation does nothing.
func (NopRecorder) RecordActivation(sim.Activation) {}

// RecordTermination does nothing.
func (NopRecorder) RecordTermination(sim.Termination) {}
