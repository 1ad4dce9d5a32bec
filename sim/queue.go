package sim

import (
	"container/heap"

	"github.com/sarchlab/hdlsim/idgen"
	"github.com/sarchlab/hdlsim/logic"
)

type eventKind uint8

const (
	driveEvent eventKind = iota
	wakeEvent
)

// An event is a pending change on a signal, or a pending wake-up of a
// process.
type event struct {
	time  VTime
	delta int
	seq   idgen.ID

	kind   eventKind
	signal SignalID
	proc   ProcessID
	drive  logic.Drive
}

func (e *event) step() Step {
	return Step{Time: e.time, Delta: e.delta}
}

// before orders events by time, then delta cycle, then insertion.
func (e *event) before(o *event) bool {
	if e.time != o.time {
		return e.time < o.time
	}

	if e.delta != o.delta {
		return e.delta < o.delta
	}

	return e.seq < o.seq
}

type eventQueue struct {
	events eventHeap
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.events = make([]*event, 0)
	heap.Init(&q.events)

	return q
}

func (q *eventQueue) Push(evt *event) {
	heap.Push(&q.events, evt)
}

func (q *eventQueue) Pop() *event {
	if q.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&q.events).(*event)
}

func (q *eventQueue) Peek() *event {
	if q.events.Len() == 0 {
		return nil
	}

	return q.events[0]
}

func (q *eventQueue) Len() int {
	return q.events.Len()
}

// Clear discards every pending event.
func (q *eventQueue) Clear() {
	q.events = q.events[:0]
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	return h[i].before(h[j])
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *eventHeap) Push(x any) {
	evt := x.(*event)
	*h = append(*h, evt)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return evt
}
