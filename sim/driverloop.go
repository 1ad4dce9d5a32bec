package sim

import (
	"fmt"
	"sort"

	"github.com/sarchlab/hdlsim/hooking"
)

// Stop requests termination. The kernel finishes the current delta cycle,
// discards every pending event and moves to StatusFinished. Stop never
// blocks, so it is safe to call from any goroutine, processes included.
func (k *Kernel) Stop() {
	k.stopRequested.Store(true)

	k.pauseMu.Lock()
	k.pauseCond.Broadcast()
	k.pauseMu.Unlock()
}

// Pause prevents the kernel from starting new delta cycles until Continue is
// called. It returns once the delta cycle in progress, if any, has finished.
// Processes must not call Pause.
func (k *Kernel) Pause() {
	k.pauseMu.Lock()
	defer k.pauseMu.Unlock()

	k.isPaused = true
	for k.inDeltaCycle {
		k.pauseCond.Wait()
	}
}

// Continue resumes a paused kernel.
func (k *Kernel) Continue() {
	k.pauseMu.Lock()
	defer k.pauseMu.Unlock()

	k.isPaused = false
	k.pauseCond.Broadcast()
}

// enterDeltaCycle waits while the kernel is paused. It returns false if Stop
// was called in the meantime.
func (k *Kernel) enterDeltaCycle() bool {
	k.pauseMu.Lock()
	defer k.pauseMu.Unlock()

	for k.isPaused && !k.stopRequested.Load() {
		k.pauseCond.Wait()
	}

	if k.stopRequested.Load() {
		return false
	}

	k.inDeltaCycle = true

	return true
}

func (k *Kernel) leaveDeltaCycle() {
	k.pauseMu.Lock()
	k.inDeltaCycle = false
	k.pauseCond.Broadcast()
	k.pauseMu.Unlock()
}

// Run processes events until the queue drains, the end time is reached or
// Stop is called.
func (k *Kernel) Run() error {
	limit := MaxTime
	if k.hasEndTime {
		limit = k.endTime
	}

	return k.runUntil(limit)
}

// RunUntil processes every event up to and including time t and then parks
// the kernel at t. Events after t stay pending, so RunUntil can be called
// again with a later time.
func (k *Kernel) RunUntil(t VTime) error {
	if k.hasEndTime && t > k.endTime {
		t = k.endTime
	}

	return k.runUntil(t)
}

func (k *Kernel) runUntil(limit VTime) error {
	k.singleRunLock.Lock()
	defer k.singleRunLock.Unlock()

	if err := k.usable(); err != nil {
		return err
	}

	if limit < k.CurrentTime() {
		return fmt.Errorf("%w: cannot run until %d, now is %d",
			ErrTimeOutOfRange, limit, k.CurrentTime())
	}

	k.setStatus(StatusRunning)

	if k.stopRequested.Load() {
		k.terminate(TerminatedByStop, nil)
		return nil
	}

	if !k.initialized {
		if err := k.initialize(); err != nil {
			return k.halt(err)
		}
	}

	for {
		if k.stopRequested.Load() {
			k.terminate(TerminatedByStop, nil)
			return nil
		}

		head := k.queue.Peek()
		if head == nil || head.time > limit {
			break
		}

		if !k.enterDeltaCycle() {
			k.terminate(TerminatedByStop, nil)
			return nil
		}

		err := k.deltaCycle()
		k.leaveDeltaCycle()

		if err != nil {
			return k.halt(err)
		}
	}

	if limit != MaxTime && limit > k.now {
		k.advanceTime(limit)
	}

	if k.hasEndTime && k.now >= k.endTime {
		k.terminate(TerminatedByEndTime, nil)
		return nil
	}

	k.setStatus(StatusReady)

	return nil
}

func (k *Kernel) usable() error {
	switch k.Status() {
	case StatusHalted:
		return ErrHalted
	case StatusFinished:
		return ErrFinished
	default:
		return nil
	}
}

func (k *Kernel) started() bool {
	k.stateLock.RLock()
	defer k.stateLock.RUnlock()

	return k.initialized || k.status != StatusReady
}

func (k *Kernel) setStatus(s Status) {
	k.stateLock.Lock()
	k.status = s
	k.stateLock.Unlock()
}

// initialize evaluates every process once at time 0, in registration order.
func (k *Kernel) initialize() error {
	for _, e := range k.procs.entries {
		k.activate(e)
	}

	err := k.evaluateRunnable()

	k.stateLock.Lock()
	k.initialized = true
	k.stateLock.Unlock()

	return err
}

func (k *Kernel) deltaCycle() error {
	head := k.queue.Peek()
	if head.time > k.now {
		k.advanceTime(head.time)
	}

	d := head.delta
	if d >= k.maxDelta {
		return k.oscillation(d)
	}

	k.stateLock.Lock()
	k.delta = d
	k.stateLock.Unlock()

	step := Step{Time: k.now, Delta: d}
	k.InvokeHook(hooking.HookCtx{Domain: k, Pos: HookPosDeltaStart, Item: step})

	k.applyEvents(step)
	transitions, conflicts, fanout := k.commit(step)

	for _, c := range conflicts {
		k.InvokeHook(hooking.HookCtx{Domain: k, Pos: HookPosConflict, Item: c})
	}

	for _, t := range transitions {
		k.InvokeHook(hooking.HookCtx{Domain: k, Pos: HookPosCommit, Item: t})
	}

	for _, p := range fanout {
		k.activate(k.procs.get(p))
	}

	err := k.evaluateRunnable()

	k.InvokeHook(hooking.HookCtx{Domain: k, Pos: HookPosDeltaEnd, Item: step})

	return err
}

func (k *Kernel) advanceTime(t VTime) {
	k.stateLock.Lock()
	k.now = t
	k.delta = -1
	k.lastCommit = nil
	k.stateLock.Unlock()

	k.InvokeHook(hooking.HookCtx{
		Domain: k,
		Pos:    HookPosTimeAdvance,
		Item:   Step{Time: t, Delta: -1},
	})
}

// applyEvents pops every event of the given step. Drive events update driver
// contributions and wake events schedule their process.
func (k *Kernel) applyEvents(step Step) {
	for {
		head := k.queue.Peek()
		if head == nil || head.step() != step {
			return
		}

		k.stateLock.Lock()
		evt := k.queue.Pop()
		if evt.kind == driveEvent {
			s := k.store.get(evt.signal)
			s.setContribution(evt.proc, evt.drive)
			if !s.touched {
				s.touched = true
				k.touched = append(k.touched, s.id)
			}
		}
		k.stateLock.Unlock()

		if evt.kind == wakeEvent {
			k.activate(k.procs.get(evt.proc))
		}
	}
}

// commit resolves every touched signal and commits the new values. Each
// signal commits at most once per delta cycle. It returns the processes
// sensitive to the committed signals.
func (k *Kernel) commit(step Step) ([]Transition, []Conflict, []ProcessID) {
	var (
		transitions []Transition
		conflicts   []Conflict
		fanout      []ProcessID
		committed   []SignalID
	)

	sort.Slice(k.touched, func(i, j int) bool { return k.touched[i] < k.touched[j] })

	k.stateLock.Lock()
	for _, id := range k.touched {
		s := k.store.get(id)
		s.touched = false

		res := s.resolve()
		if res.Conflict {
			conflicts = append(conflicts, Conflict{
				Step:     step,
				Signal:   id,
				Name:     s.name,
				Drivers:  append([]Contribution(nil), s.drivers...),
				Resolved: res.Drive.Value,
			})
		}

		s.strength = res.Drive.Strength
		if res.Drive.Value == s.value {
			continue
		}

		transitions = append(transitions, Transition{
			Step:     step,
			Signal:   id,
			Name:     s.name,
			From:     s.value,
			To:       res.Drive.Value,
			Strength: res.Drive.Strength,
			Conflict: res.Conflict,
		})

		s.prev = s.value
		s.value = res.Drive.Value
		s.lastEvent = step
		s.hasEvent = true

		committed = append(committed, id)
		fanout = append(fanout, s.fanout...)
	}
	k.touched = k.touched[:0]
	k.lastCommit = committed
	k.stateLock.Unlock()

	return transitions, conflicts, fanout
}

// activate moves an idle process to Scheduled. A process that is already
// scheduled is not added twice.
func (k *Kernel) activate(e *processEntry) {
	switch e.state {
	case ProcessScheduled:
		return
	case ProcessRunning:
		panic(fmt.Sprintf("sim: process %s activated while running", e.name))
	case ProcessRetired:
		panic(fmt.Sprintf("sim: process %s activated after retirement", e.name))
	}

	k.setProcessState(e, ProcessScheduled)
	k.runnable = append(k.runnable, e.id)
}

func (k *Kernel) evaluateRunnable() error {
	runnable := k.runnable
	k.runnable = nil

	sort.Slice(runnable, func(i, j int) bool { return runnable[i] < runnable[j] })

	for _, id := range runnable {
		e := k.procs.get(id)
		if e.state == ProcessRunning {
			panic(fmt.Sprintf("sim: process %s re-entered", e.name))
		}

		k.setProcessState(e, ProcessRunning)

		ctx := &EvalCtx{k: k, proc: e}
		err := e.impl.Evaluate(ctx)
		ctx.done = true

		k.stateLock.Lock()
		e.activations++
		k.stateLock.Unlock()
		k.setProcessState(e, ProcessIdle)

		if err != nil {
			return &ProcessError{Process: e.name, Time: k.now, Delta: k.delta, Err: err}
		}
	}

	return nil
}

func (k *Kernel) setProcessState(e *processEntry, to ProcessState) {
	k.stateLock.Lock()
	from := e.state
	e.state = to
	k.stateLock.Unlock()

	k.InvokeHook(hooking.HookCtx{
		Domain: k,
		Pos:    HookPosProcessState,
		Item: Activation{
			Step:    Step{Time: k.now, Delta: k.delta},
			Process: e.id,
			Name:    e.name,
			From:    from,
			To:      to,
		},
	})
}

func (k *Kernel) oscillation(d int) error {
	step := Step{Time: k.now, Delta: d}

	ids := append([]SignalID(nil), k.lastCommit...)
	if len(ids) == 0 {
		ids = k.pendingSignals(step)
	}

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, k.store.get(id).name)
	}
	sort.Strings(names)

	err := &OscillationError{Time: k.now, Delta: d, Signals: names}
	if len(names) == 0 {
		err.Processes = k.pendingWakes(step)
	}

	return err
}

// pendingWakes returns the names of the processes woken at step, sorted.
func (k *Kernel) pendingWakes(step Step) []string {
	seen := make(map[ProcessID]bool)

	var names []string
	for _, evt := range k.queue.events {
		if evt.step() == step && evt.kind == wakeEvent && !seen[evt.proc] {
			seen[evt.proc] = true
			names = append(names, k.procs.get(evt.proc).name)
		}
	}
	sort.Strings(names)

	return names
}

func (k *Kernel) pendingSignals(step Step) []SignalID {
	seen := make(map[SignalID]bool)

	var ids []SignalID
	for _, evt := range k.queue.events {
		if evt.step() == step && evt.kind == driveEvent && !seen[evt.signal] {
			seen[evt.signal] = true
			ids = append(ids, evt.signal)
		}
	}

	return ids
}

func (k *Kernel) halt(err error) error {
	k.terminateWithStatus(StatusHalted, TerminatedByError, err)
	return err
}

func (k *Kernel) terminate(reason TerminationReason, err error) {
	k.terminateWithStatus(StatusFinished, reason, err)
}

// terminateWithStatus discards all pending events, retires every process and
// notifies hooks and end handlers.
func (k *Kernel) terminateWithStatus(s Status, reason TerminationReason, err error) {
	k.stateLock.Lock()
	dropped := k.queue.Len()
	k.queue.Clear()
	for _, id := range k.touched {
		k.store.get(id).touched = false
	}
	k.touched = k.touched[:0]
	k.runnable = nil
	k.status = s
	for _, e := range k.procs.entries {
		e.state = ProcessRetired
	}
	now := k.now
	k.stateLock.Unlock()

	k.InvokeHook(hooking.HookCtx{
		Domain: k,
		Pos:    HookPosTerminate,
		Item: Termination{
			Time:    now,
			Reason:  reason,
			Dropped: dropped,
			Err:     err,
		},
	})

	for _, h := range k.simulationEndHandlers {
		h.Handle(now)
	}
}

func (k *Kernel) mustGetSignal(id SignalID) *Signal {
	if !k.store.valid(id) {
		panic(fmt.Sprintf("sim: unknown signal id %d", id))
	}

	return k.store.get(id)
}
