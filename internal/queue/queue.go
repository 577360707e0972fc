package queue

import (
	"context"
	"sync"
	"time"
)

// Queue is an ordered in-memory queue of clip ids feeding the single worker.
// Upload handlers push from their own goroutines; the worker pops with a
// bounded wait so it can fall back to a directory scan when idle. Durability
// comes from the files on disk, not the queue: after a restart the scan
// repopulates it.
type Queue struct {
	mu    sync.Mutex
	items []string
	wake  chan struct{}
}

func New() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Push appends id and wakes a waiting Pop, if any.
func (q *Queue) Push(id string) {
	q.mu.Lock()
	q.items = append(q.items, id)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest id, waiting up to maxWait for one to
// arrive. It returns false on timeout or when ctx is cancelled.
func (q *Queue) Pop(ctx context.Context, maxWait time.Duration) (string, bool) {
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			id := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return id, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", false
		case <-deadline.C:
			return "", false
		case <-q.wake:
		}
	}
}

// Len returns the number of queued ids.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
