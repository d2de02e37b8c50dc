package outbound

import (
	"sync"
	"time"

	"github.com/wscomms-dev/wscomms/pkg/protocol"
)

// Message is a queued envelope.
type Message struct {
	Envelope   *protocol.Envelope
	EnqueuedAt time.Time
}

// Queue is an unbounded FIFO of outbound messages, safe for many producers
// and one consumer.
type Queue struct {
	mu    sync.Mutex
	items []Message
	wake  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Enqueue appends env and signals the consumer. Nil envelopes are ignored.
func (q *Queue) Enqueue(env *protocol.Envelope) {
	if env == nil {
		return
	}

	q.mu.Lock()
	q.items = append(q.items, Message{Envelope: env, EnqueuedAt: time.Now()})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wake returns the channel signalled after every enqueue.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

func (q *Queue) pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Message{}, false
	}
	m := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return m, true
}

func (q *Queue) peek() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Message{}, false
	}
	return q.items[0], true
}

// Drain removes and returns every queued message.
func (q *Queue) Drain() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}
