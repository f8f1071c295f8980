package main

import "sync"

// outboundEventKind tags what a queued OutboundEvent asks the writer to do.
type outboundEventKind int

const (
	eventSend outboundEventKind = iota
	eventTerminate
)

type outboundEvent struct {
	kind outboundEventKind
	text string
}

// OutboundQueue is the per-session FIFO described in §4.4: many producers
// (the session's own reader, plus any peer session fanning a reply out to
// this one), exactly one consumer (this session's writer task). It is
// unbounded -- see §9's open question on backpressure -- so Send and
// Terminate never block a producer on a slow or dead consumer.
type OutboundQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events []outboundEvent
	closed bool
}

// NewOutboundQueue creates an empty queue.
func NewOutboundQueue() *OutboundQueue {
	q := &OutboundQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send enqueues a rendered line for delivery. A Send after Terminate is
// dropped silently; the writer has already decided to stop draining.
func (q *OutboundQueue) Send(text string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.events = append(q.events, outboundEvent{kind: eventSend, text: text})
	q.cond.Signal()
}

// Terminate enqueues the sentinel that tells the writer to exit once it has
// drained everything queued ahead of it. Idempotent.
func (q *OutboundQueue) Terminate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.events = append(q.events, outboundEvent{kind: eventTerminate})
	q.closed = true
	q.cond.Signal()
}

// next blocks until an event is available and pops it.
func (q *OutboundQueue) next() outboundEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.events) == 0 {
		q.cond.Wait()
	}
	e := q.events[0]
	q.events = q.events[1:]
	return e
}

// Sink returns a cloneable handle onto this queue for storing in the
// registries.
func (q *OutboundQueue) Sink() OutboundSink {
	return OutboundSink{queue: q}
}
