package shadow

import (
	"sync"
	"time"
)

// DefaultInboxSize is the default inbox capacity.
const DefaultInboxSize = 32

// Inbound is one queued event with its raw payload.
type Inbound struct {
	Event      Event
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Inbox is a bounded FIFO between the transport's delivery goroutines and
// the single agent loop that drains it once per tick.
//
// Thread-safety: Push may be called from any goroutine; Drain is called by
// the loop only.
type Inbox struct {
	mu      sync.Mutex
	items   []Inbound
	size    int
	dropped uint64
}

// NewInbox creates an inbox holding at most size items.
// A non-positive size selects DefaultInboxSize.
func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	return &Inbox{
		items: make([]Inbound, 0, size),
		size:  size,
	}
}

// Push appends in. When the inbox is full the new item is dropped and
// ErrInboxFull returned.
func (q *Inbox) Push(in Inbound) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.size {
		q.dropped++
		return ErrInboxFull
	}
	q.items = append(q.items, in)
	return nil
}

// Drain removes and returns everything queued, oldest first.
func (q *Inbox) Drain() []Inbound {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	out := q.items
	q.items = make([]Inbound, 0, q.size)
	return out
}

// Len returns the number of queued items.
func (q *Inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many items have been rejected because the inbox was full.
func (q *Inbox) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
