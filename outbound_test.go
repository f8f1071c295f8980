package main

import "testing"

func TestOutboundQueueOrder(t *testing.T) {
	q := NewOutboundQueue()
	q.Send("one")
	q.Send("two")
	q.Terminate()
	// A Send after Terminate is dropped, not queued ahead of the sentinel.
	q.Send("three")

	first := q.next()
	if first.kind != eventSend || first.text != "one" {
		t.Fatalf("expected first event to be send(one), got %+v", first)
	}

	second := q.next()
	if second.kind != eventSend || second.text != "two" {
		t.Fatalf("expected second event to be send(two), got %+v", second)
	}

	third := q.next()
	if third.kind != eventTerminate {
		t.Fatalf("expected terminate sentinel, got %+v", third)
	}
}

func TestOutboundQueueBlocksUntilSend(t *testing.T) {
	q := NewOutboundQueue()
	done := make(chan outboundEvent, 1)
	go func() {
		done <- q.next()
	}()

	select {
	case <-done:
		t.Fatal("next() returned before anything was queued")
	default:
	}

	q.Send("hello")
	event := <-done
	if event.text != "hello" {
		t.Fatalf("expected hello, got %q", event.text)
	}
}
