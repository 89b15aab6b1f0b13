package dispatch

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Coordinate is a window-relative click target tagged with its origin.
type Coordinate struct {
	X, Y       int
	Session    uuid.UUID
	Generation uint64
}

// Queue is a bounded FIFO that never blocks its producer. Offers beyond
// capacity are dropped and counted.
type Queue struct {
	ch       chan Coordinate
	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// NewQueue creates a queue holding at most capacity coordinates.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{ch: make(chan Coordinate, capacity)}
}

// Offer inserts c if there is room and reports whether it was accepted.
func (q *Queue) Offer(c Coordinate) bool {
	select {
	case q.ch <- c:
		q.accepted.Add(1)
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// C is the consumer side.
func (q *Queue) C() <-chan Coordinate { return q.ch }

// Drain discards everything queued and returns how many entries it removed.
func (q *Queue) Drain() int {
	n := 0
	for {
		select {
		case <-q.ch:
			n++
		default:
			return n
		}
	}
}

func (q *Queue) Len() int { return len(q.ch) }
func (q *Queue) Cap() int { return cap(q.ch) }

// Accepted returns the total number of accepted offers.
func (q *Queue) Accepted() uint64 { return q.accepted.Load() }

// Dropped returns the total number of rejected offers.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }
