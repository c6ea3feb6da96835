package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/strikeline/strikeline/pkg/queue"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := queue.New[string](queue.Config{})

	seeds := []string{"SPY", "QQQ", "IWM"}
	for _, s := range seeds {
		if err := q.Enqueue(s); err != nil {
			t.Fatalf("enqueue %s: %v", s, err)
		}
	}

	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}

	for _, want := range seeds {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if got != want {
			t.Errorf("expected %s, got %s", want, got)
		}
	}
}

func TestBoundedQueueFull(t *testing.T) {
	q := queue.New[int](queue.Config{Capacity: 2})

	if err := q.Enqueue(1); err != nil {
		t.Fatalf("enqueue 1: %v", err)
	}
	if err := q.Enqueue(2); err != nil {
		t.Fatalf("enqueue 2: %v", err)
	}

	err := q.Enqueue(3)
	if !errors.Is(err, queue.ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("failed enqueue must not change length, got %d", q.Len())
	}
}

func TestUnboundedNeverFull(t *testing.T) {
	q := queue.New[int](queue.Config{Capacity: 0})

	for i := 0; i < 10000; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if q.Len() != 10000 {
		t.Errorf("expected 10000 items, got %d", q.Len())
	}
}

func TestEnqueueWaitsForSpace(t *testing.T) {
	q := queue.New[int](queue.Config{Capacity: 1, EnqueueWait: time.Second})

	if err := q.Enqueue(1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		if _, err := q.Dequeue(); err != nil {
			t.Errorf("dequeue: %v", err)
		}
	}()

	start := time.Now()
	if err := q.Enqueue(2); err != nil {
		t.Fatalf("expected enqueue to succeed after a slot freed, got %v", err)
	}
	if time.Since(start) < 25*time.Millisecond {
		t.Error("enqueue should have blocked until the consumer freed a slot")
	}
}

func TestDequeueEmpty(t *testing.T) {
	q := queue.New[int](queue.Config{DequeueWait: 30 * time.Millisecond})

	start := time.Now()
	_, err := q.Dequeue()
	if !errors.Is(err, queue.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("dequeue should have waited for the configured window")
	}
}

func TestDequeueImmediateWhenNoWait(t *testing.T) {
	q := queue.New[int](queue.Config{})

	_, err := q.Dequeue()
	if !errors.Is(err, queue.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestDequeueWaitsForItem(t *testing.T) {
	q := queue.New[string](queue.Config{DequeueWait: time.Second})

	go func() {
		time.Sleep(50 * time.Millisecond)
		if err := q.Enqueue("SPY"); err != nil {
			t.Errorf("enqueue: %v", err)
		}
	}()

	got, err := q.Dequeue()
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got != "SPY" {
		t.Errorf("expected SPY, got %s", got)
	}
}

func TestEnqueueContextTimeout(t *testing.T) {
	q := queue.New[int](queue.Config{Capacity: 1, EnqueueWait: time.Minute})
	if err := q.Enqueue(1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := q.EnqueueContext(ctx, 2)
	if !errors.Is(err, queue.ErrTimeout) {
		t.Errorf("expected ErrTimeout on context expiry, got %v", err)
	}
}

func TestDequeueContextCancel(t *testing.T) {
	q := queue.New[int](queue.Config{DequeueWait: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := q.DequeueContext(ctx)
	if !errors.Is(err, queue.ErrTimeout) {
		t.Errorf("expected ErrTimeout on cancellation, got %v", err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	q := queue.New[int](queue.Config{})

	q.Close()
	q.Close()

	if !q.Closed() {
		t.Error("expected queue to report closed")
	}
}

func TestCloseDrainsBacklog(t *testing.T) {
	q := queue.New[int](queue.Config{})

	for i := 1; i <= 3; i++ {
		if err := q.Enqueue(i); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	q.Close()

	if err := q.Enqueue(4); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("expected ErrClosed for enqueue after close, got %v", err)
	}

	for i := 1; i <= 3; i++ {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("backlog should drain after close: %v", err)
		}
		if got != i {
			t.Errorf("expected %d, got %d", i, got)
		}
	}

	if _, err := q.Dequeue(); !errors.Is(err, queue.ErrClosed) {
		t.Errorf("expected ErrClosed after drain, got %v", err)
	}
}

func TestCloseWakesBlockedDequeuers(t *testing.T) {
	q := queue.New[int](queue.Config{DequeueWait: time.Minute})

	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := q.Dequeue()
			results <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	q.Close()

	for i := 0; i < 2; i++ {
		select {
		case err := <-results:
			if !errors.Is(err, queue.ErrClosed) {
				t.Errorf("expected ErrClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("blocked dequeuer was not woken by close")
		}
	}
}

func TestCloseWakesBlockedEnqueuers(t *testing.T) {
	q := queue.New[int](queue.Config{Capacity: 1, EnqueueWait: time.Minute})
	if err := q.Enqueue(1); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result := make(chan error, 1)
	go func() {
		result <- q.Enqueue(2)
	}()

	time.Sleep(50 * time.Millisecond)
	q.Close()

	select {
	case err := <-result:
		if !errors.Is(err, queue.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked enqueuer was not woken by close")
	}
}

func TestConcurrentProducersConsumers(t *testing.T) {
	const producers = 4
	const perProducer = 250

	q := queue.New[string](queue.Config{
		Capacity:    32,
		EnqueueWait: 5 * time.Second,
		DequeueWait: time.Second,
	})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				item := fmt.Sprintf("%d:%d", p, i)
				if err := q.Enqueue(item); err != nil {
					t.Errorf("producer %d enqueue: %v", p, err)
					return
				}
			}
		}(p)
	}

	var mu sync.Mutex
	consumed := make([]string, 0, producers*perProducer)
	var cg sync.WaitGroup
	for c := 0; c < 3; c++ {
		cg.Add(1)
		go func() {
			defer cg.Done()
			for {
				item, err := q.Dequeue()
				if errors.Is(err, queue.ErrClosed) {
					return
				}
				if errors.Is(err, queue.ErrEmpty) {
					continue
				}
				if err != nil {
					t.Errorf("dequeue: %v", err)
					return
				}
				mu.Lock()
				consumed = append(consumed, item)
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	q.Close()
	cg.Wait()

	if len(consumed) != producers*perProducer {
		t.Fatalf("expected %d items consumed, got %d", producers*perProducer, len(consumed))
	}

	// FIFO must hold per producer even though there is no global order.
	lastSeq := make(map[string]int)
	for _, item := range consumed {
		var p, i int
		if _, err := fmt.Sscanf(item, "%d:%d", &p, &i); err != nil {
			t.Fatalf("bad item %q: %v", item, err)
		}
		key := fmt.Sprintf("%d", p)
		if last, ok := lastSeq[key]; ok && i <= last {
			t.Fatalf("producer %d order violated: %d after %d", p, i, last)
		}
		lastSeq[key] = i
	}
}

func TestCompactionKeepsLenConsistent(t *testing.T) {
	q := queue.New[int](queue.Config{})

	// Interleave enough traffic to cross the compaction threshold many
	// times over.
	next := 0
	for round := 0; round < 50; round++ {
		for i := 0; i < 100; i++ {
			if err := q.Enqueue(next); err != nil {
				t.Fatalf("enqueue: %v", err)
			}
			next++
		}
		for i := 0; i < 100; i++ {
			if _, err := q.Dequeue(); err != nil {
				t.Fatalf("dequeue: %v", err)
			}
		}
	}

	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
	if _, err := q.Dequeue(); !errors.Is(err, queue.ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func BenchmarkEnqueueDequeue(b *testing.B) {
	q := queue.New[int](queue.Config{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = q.Enqueue(i)
		_, _ = q.Dequeue()
	}
}

func BenchmarkConcurrentEnqueueDequeue(b *testing.B) {
	q := queue.New[int](queue.Config{
		Capacity:    1024,
		EnqueueWait: time.Second,
		DequeueWait: time.Second,
	})

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			if i%2 == 0 {
				_ = q.Enqueue(i)
			} else {
				_, _ = q.Dequeue()
			}
			i++
		}
	})
}
