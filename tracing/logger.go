package tracing

import (
	"log"

	"github.com/sarchlab/hdlsim/hooking"
	"github.com/sarchlab/hdlsim/sim"
)

// LogHookBase provides the logger shared by the logging hooks.
type LogHookBase struct {
	*log.Logger
}

// TransitionLogger is a hook that prints every committed transition.
type TransitionLogger struct {
	LogHookBase
}

// NewTransitionLogger returns a TransitionLogger that writes into logger.
func NewTransitionLogger(logger *log.Logger) *TransitionLogger {
	h := new(TransitionLogger)
	h.Logger = logger

	return h
}

// Func writes the transition into the logger.
func (h *TransitionLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != sim.HookPosCommit {
		return
	}

	t := ctx.Item.(sim.Transition)
	if t.Conflict {
		h.Printf("%d+%d %s %s -> %s (conflict)", t.Time, t.Delta, t.Name, t.From, t.To)
		return
	}

	h.Printf("%d+%d %s %s -> %s", t.Time, t.Delta, t.Name, t.From, t.To)
}

// ConflictLogger is a hook that prints every driver conflict with the
// drivers involved.
type ConflictLogger struct {
	LogHookBase
}

// NewConflictLogger returns a ConflictLogger that writes into logger.
func NewConflictLogger(logger *log.Logger) *ConflictLogger {
	h := new(ConflictLogger)
	h.Logger = logger

	return h
}

// Func writes the conflict into the logger.
func (h *ConflictLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != sim.HookPosConflict {
		return
	}

	c := ctx.Item.(sim.Conflict)
	k, _ := ctx.Domain.(*sim.Kernel)

	h.Printf("%d+%d conflict on %s: %s resolves to %s",
		c.Time, c.Delta, c.Name, formatDrivers(k, c.Drivers), c.Resolved)
}

// TerminationLogger is a hook that prints why the kernel terminated.
type TerminationLogger struct {
	LogHookBase
}

// NewTerminationLogger returns a TerminationLogger that writes into logger.
func NewTerminationLogger(logger *log.Logger) *TerminationLogger {
	h := new(TerminationLogger)
	h.Logger = logger

	return h
}

// Func writes the termination into the logger.
func (h *TerminationLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != sim.HookPosTerminate {
		return
	}

	t := ctx.Item.(sim.Termination)
	if t.Err != nil {
		h.Printf("terminated at %d (%s, %d events dropped): %v", t.Time, t.Reason, t.Dropped, t.Err)
		return
	}

	h.Printf("terminated at %d (%s, %d events dropped)", t.Time, t.Reason, t.Dropped)
}
