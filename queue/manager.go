package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrExists is returned by Create when a queue already exists for the
// given task id — a task id owns at most one live EventQueue at a time.
var ErrExists = errors.New("queue: already exists for task")

// Manager is a concurrency-safe registry of EventQueues keyed by task
// id, plus the cancel-func registry RequestHandler uses to implement
// onCancelTask.
type Manager struct {
	mu      sync.Mutex
	queues  map[string]*EventQueue
	cancels map[string]context.CancelFunc
	started map[string]chan struct{}
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		queues:  make(map[string]*EventQueue),
		cancels: make(map[string]context.CancelFunc),
		started: make(map[string]chan struct{}),
	}
}

// Create registers a new EventQueue for taskID. Returns ErrExists if
// one is already registered (whether or not it has since closed —
// callers must Close+forget before recreating).
func (m *Manager) Create(taskID string, capacity int) (*EventQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[taskID]; ok {
		return nil, ErrExists
	}
	q := New(capacity)
	m.queues[taskID] = q
	m.started[taskID] = make(chan struct{})
	return q, nil
}

// Get returns the queue registered for taskID, or nil if absent. A
// queue closed by a final event stays registered until Close.
func (m *Manager) Get(taskID string) *EventQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queues[taskID]
}

// Tap is a convenience wrapper for resubscribe: nil if no queue is
// registered for taskID or the registered queue has already closed.
func (m *Manager) Tap(taskID string) *Consumer {
	q := m.Get(taskID)
	if q == nil || q.Closed() {
		return nil
	}
	return q.Tap()
}

// Close closes and forgets the queue for taskID. Idempotent.
func (m *Manager) Close(taskID string) {
	m.mu.Lock()
	q, ok := m.queues[taskID]
	if ok {
		delete(m.queues, taskID)
		delete(m.cancels, taskID)
		delete(m.started, taskID)
	}
	m.mu.Unlock()
	if ok {
		q.Close()
	}
}

// CloseAll stops every still-running executor (via its stored
// CancelFunc) and closes every live queue, forgetting all of them. It
// is meant for server shutdown, where no caller is left to drive
// individual tasks/cancel or tasks/get calls afterward.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	queues := make([]*EventQueue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	for _, cancel := range m.cancels {
		cancel()
	}
	m.queues = make(map[string]*EventQueue)
	m.cancels = make(map[string]context.CancelFunc)
	m.started = make(map[string]chan struct{})
	m.mu.Unlock()

	for _, q := range queues {
		q.Close()
	}
	return nil
}

// StoreCancelFunc records the cancel func for a running executor so
// onCancelTask can invoke it later.
func (m *Manager) StoreCancelFunc(taskID string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels[taskID] = cancel
}

// CancelFunc returns the registered cancel func for taskID, if any.
func (m *Manager) CancelFunc(taskID string) (context.CancelFunc, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.cancels[taskID]
	return cancel, ok
}

// MarkPollerStarted signals that ResultAggregator has attached its tap
// and is ready to observe events; AwaitQueuePollerStart blocks until
// this has happened, so the executor never starts producing before
// someone is listening.
func (m *Manager) MarkPollerStarted(taskID string) {
	m.mu.Lock()
	ch, ok := m.started[taskID]
	m.mu.Unlock()
	if ok {
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

// AwaitQueuePollerStart blocks until MarkPollerStarted(taskID) has been
// called, or ctx is done.
func (m *Manager) AwaitQueuePollerStart(ctx context.Context, taskID string) error {
	m.mu.Lock()
	ch, ok := m.started[taskID]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
