package main

// OutboundSink is a cheap, cloneable handle onto a connection's outbound
// queue. Sinks get stored in the clients and channels registries and handed
// to peers doing fan-out; sending to a sink whose owning session has
// already torn down is a silent no-op (nothing is left draining the queue,
// but nothing panics or blocks either).
type OutboundSink struct {
	queue *OutboundQueue
}

// Send enqueues a rendered reply for delivery. It never blocks and never
// fails visibly to the caller -- see §7 on writer failure.
func (s OutboundSink) Send(text string) {
	s.queue.Send(text)
}
