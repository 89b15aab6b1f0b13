package dispatch

import (
	"sync"
	"testing"
	"time"
)

func TestQueueDropsBeyondCapacity(t *testing.T) {
	q := NewQueue(3)

	accepted := 0
	for i := 0; i < 10; i++ {
		if q.Offer(Coordinate{X: i}) {
			accepted++
		}
	}
	if accepted != 3 || q.Len() != 3 {
		t.Errorf("accepted %d, Len() %d, want 3", accepted, q.Len())
	}
	if q.Dropped() != 7 || q.Accepted() != 3 {
		t.Errorf("Dropped() = %d, Accepted() = %d", q.Dropped(), q.Accepted())
	}
	if got := (<-q.C()).X; got != 0 {
		t.Errorf("first dequeued X = %d, want 0 (FIFO)", got)
	}
}

func TestQueueOfferNeverBlocks(t *testing.T) {
	q := NewQueue(10)
	var wg sync.WaitGroup
	done := make(chan struct{})

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				q.Offer(Coordinate{X: i})
			}
		}()
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Offer blocked with no consumer")
	}
	if q.Len() > q.Cap() {
		t.Errorf("Len() %d exceeds Cap() %d", q.Len(), q.Cap())
	}
	if q.Accepted()+q.Dropped() != 8000 {
		t.Errorf("accounted %d offers, want 8000", q.Accepted()+q.Dropped())
	}
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue(5)
	for i := 0; i < 4; i++ {
		q.Offer(Coordinate{})
	}
	if n := q.Drain(); n != 4 {
		t.Errorf("Drain() = %d, want 4", n)
	}
	if q.Len() != 0 {
		t.Errorf("Len() after Drain = %d", q.Len())
	}
	if q.Drain() != 0 {
		t.Error("Drain on empty queue should remove nothing")
	}
}

func TestNewQueueDefaultCapacity(t *testing.T) {
	if got := NewQueue(0).Cap(); got != DefaultQueueCapacity {
		t.Errorf("Cap() = %d, want %d", got, DefaultQueueCapacity)
	}
}
