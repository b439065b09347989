package events

import "sync"

// Queue is a FIFO safe for many producers and a single consumer.
type Queue struct {
	mu    sync.Mutex
	items []Event
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(e Event) {
	if e == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
}

// TryDequeue removes and returns the oldest event.
func (q *Queue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	e := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return e, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
