package sim

import (
	"github.com/sarchlab/hdlsim/hooking"
	"github.com/sarchlab/hdlsim/logic"
)

// Hook positions raised by the Kernel.
var (
	// HookPosTimeAdvance fires when simulated time moves forward. Item is
	// the new Step.
	HookPosTimeAdvance = &hooking.HookPos{Name: "TimeAdvance"}

	// HookPosDeltaStart fires before the events of a delta cycle are
	// applied. Item is the Step.
	HookPosDeltaStart = &hooking.HookPos{Name: "DeltaStart"}

	// HookPosDeltaEnd fires after the processes of a delta cycle ran. Item
	// is the Step.
	HookPosDeltaEnd = &hooking.HookPos{Name: "DeltaEnd"}

	// HookPosCommit fires once per committed value change. Item is a
	// Transition.
	HookPosCommit = &hooking.HookPos{Name: "Commit"}

	// HookPosConflict fires for every resolution conflict, whether or not
	// the committed value changed. Item is a Conflict.
	HookPosConflict = &hooking.HookPos{Name: "Conflict"}

	// HookPosProcessState fires on every process state change. Item is an
	// Activation.
	HookPosProcessState = &hooking.HookPos{Name: "ProcessState"}

	// HookPosTerminate fires once when the kernel terminates. Item is a
	// Termination.
	HookPosTerminate = &hooking.HookPos{Name: "Terminate"}
)

// A Transition is a committed change of a signal value.
type Transition struct {
	Step
	Signal   SignalID
	Name     string
	From     logic.Value
	To       logic.Value
	Strength logic.Strength
	Conflict bool
}

// A Conflict reports drivers of equal strength disagreeing on a signal.
type Conflict struct {
	Step
	Signal   SignalID
	Name     string
	Drivers  []Contribution
	Resolved logic.Value
}

// An Activation is a process state change.
type Activation struct {
	Step
	Process ProcessID
	Name    string
	From    ProcessState
	To      ProcessState
}

// TerminationReason tells why a kernel stopped for good.
type TerminationReason string

// Termination reasons.
const (
	TerminatedByStop    TerminationReason = "stop"
	TerminatedByEndTime TerminationReason = "end-time"
	TerminatedByError   TerminationReason = "error"
)

// A Termination is the item of HookPosTerminate.
type Termination struct {
	Time    VTime
	Reason  TerminationReason
	Dropped int
	Err     error
}
