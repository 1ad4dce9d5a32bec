package sim

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by the kernel.
var (
	ErrUnknownSignal  = errors.New("sim: unknown signal")
	ErrUnknownProcess = errors.New("sim: unknown process")
	ErrDuplicateName  = errors.New("sim: duplicate name")
	ErrTimeOutOfRange = errors.New("sim: time out of range")
	ErrKernelStarted  = errors.New("sim: kernel already started")
	ErrHalted         = errors.New("sim: kernel halted by a fatal error")
	ErrFinished       = errors.New("sim: simulation finished")
)

// An OscillationError is returned when zero-delay activity does not settle
// within the configured number of delta cycles. Processes is only set when
// no signal changes, so that repeated zero-delay wakes alone keep the time
// step going.
type OscillationError struct {
	Time      VTime
	Delta     int
	Signals   []string
	Processes []string
}

func (e *OscillationError) Error() string {
	if len(e.Signals) == 0 && len(e.Processes) > 0 {
		return fmt.Sprintf(
			"sim: zero-delay wakes did not settle at time %d after %d delta cycles, woken processes: %s",
			e.Time, e.Delta, strings.Join(e.Processes, ", "),
		)
	}

	return fmt.Sprintf(
		"sim: combinational loop did not settle at time %d after %d delta cycles, oscillating signals: %s",
		e.Time, e.Delta, strings.Join(e.Signals, ", "),
	)
}

// A ProcessError wraps an error returned by a process evaluation.
type ProcessError struct {
	Process string
	Time    VTime
	Delta   int
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("sim: process %s failed at time %d delta %d: %v",
		e.Process, e.Time, e.Delta, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
