// Package queue implements the per-task broadcast event fabric: a
// single-producer EventQueue that fans out to any number of
// independently-paced consumers, and a QueueManager registry keyed by
// task id.
//
// The teacher's reference resubscribe handler documents itself as
// unable to attach a live consumer mid-stream ("Updates from the
// original agent handler run will NOT be sent to this new stream").
// This package exists to make that actually work: every tap() gets its
// own buffered channel, and Enqueue writes each event into every tap's
// channel under the queue's mutex, so a second consumer attaching after
// the first sees every event enqueued from that point on.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/gate4ai/a2a"
)

// ErrOverflow is returned by a Consumer's Recv when its buffer could
// not keep up with the producer and it was dropped.
var ErrOverflow = errors.New("queue: consumer overflowed and was dropped")

// ErrClosed names the closed state of a queue. EventQueue itself does
// not return it: Enqueue after Close is a silent no-op, and a tap
// created after Close ends with a nil error.
var ErrClosed = errors.New("queue: closed")

// DefaultCapacity is the default per-consumer buffer bound.
const DefaultCapacity = 1024

// Consumer is an independent reader of an EventQueue, created by tap().
type Consumer struct {
	events chan a2a.Event
	err    chan error // buffered size 1; set once, before events is closed
}

// Recv blocks until an event arrives, the queue closes, or ctx is done.
// ok is false once the consumer is exhausted; the returned error then
// distinguishes a clean close (nil) from an overflow (ErrOverflow).
func (c *Consumer) Recv(ctx context.Context) (a2a.Event, bool, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			select {
			case err := <-c.err:
				return nil, false, err
			default:
				return nil, false, nil
			}
		}
		return ev, true, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// EventQueue is a single-producer, multi-consumer broadcast queue over
// the Event union. The zero value is not usable; use New.
type EventQueue struct {
	capacity int

	mu        sync.Mutex
	consumers map[*Consumer]struct{}
	closed    bool
}

// New returns an EventQueue with the given per-consumer buffer bound.
// A capacity <= 0 uses DefaultCapacity.
func New(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventQueue{
		capacity:  capacity,
		consumers: make(map[*Consumer]struct{}),
	}
}

// Enqueue never blocks. It fans the event out to every current
// consumer; a consumer whose buffer is full is dropped (ErrOverflow)
// rather than allowed to stall the producer. Enqueue after Close is a
// no-op, matching §4.1's "silent error" allowance.
//
// A terminal TaskStatusUpdateEvent (Final) closes the queue once the
// event has been handed to every current consumer.
func (q *EventQueue) Enqueue(ev a2a.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	for c := range q.consumers {
		select {
		case c.events <- ev:
		default:
			c.err <- ErrOverflow
			close(c.events)
			delete(q.consumers, c)
		}
	}

	if final(ev) {
		q.closeLocked()
	}
}

func final(ev a2a.Event) bool {
	status, ok := ev.(a2a.TaskStatusUpdateEvent)
	return ok && status.Final
}

// Tap returns a new Consumer that observes every event enqueued from
// this point on. A tap taken after Close returns an already-closed
// consumer (Recv returns ok=false, err=nil immediately).
func (q *EventQueue) Tap() *Consumer {
	q.mu.Lock()
	defer q.mu.Unlock()

	c := &Consumer{
		events: make(chan a2a.Event, q.capacity),
		err:    make(chan error, 1),
	}
	if q.closed {
		close(c.events)
		return c
	}
	q.consumers[c] = struct{}{}
	return c
}

// Close is idempotent. Consumers already subscribed observe a clean
// end-of-stream (ok=false, err=nil) once their buffered events, if any,
// are drained.
func (q *EventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closeLocked()
}

func (q *EventQueue) closeLocked() {
	if q.closed {
		return
	}
	q.closed = true
	for c := range q.consumers {
		close(c.events)
	}
	q.consumers = make(map[*Consumer]struct{})
}

// Closed reports whether Close has been called.
func (q *EventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
