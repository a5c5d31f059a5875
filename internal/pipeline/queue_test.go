package pipeline

import (
	"errors"
	"testing"
	"time"
)

func TestBoundedQueue_PutGet(t *testing.T) {
	q := NewBoundedQueue[int](3)

	for i := 1; i <= 3; i++ {
		if err := q.Put(i, 10*time.Millisecond); err != nil {
			t.Fatalf("Put(%d) failed: %v", i, err)
		}
	}

	if err := q.Put(4, 10*time.Millisecond); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}

	for i := 1; i <= 3; i++ {
		got, err := q.Get(10 * time.Millisecond)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != i {
			t.Errorf("expected FIFO order, got %d at position %d", got, i)
		}
	}

	if _, err := q.Get(10 * time.Millisecond); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestBoundedQueue_TryGet(t *testing.T) {
	q := NewBoundedQueue[string](1)

	if _, ok := q.TryGet(); ok {
		t.Fatal("expected TryGet on empty queue to fail")
	}

	q.Put("a", 10*time.Millisecond)
	got, ok := q.TryGet()
	if !ok || got != "a" {
		t.Fatalf("expected a, got %q ok=%v", got, ok)
	}
}

func TestBoundedQueue_PutLatest(t *testing.T) {
	q := NewBoundedQueue[int](2)

	q.PutLatest(1)
	q.PutLatest(2)
	q.PutLatest(3)

	first, _ := q.TryGet()
	second, _ := q.TryGet()
	if second != 3 {
		t.Errorf("expected newest item 3 to survive eviction, got %d and %d", first, second)
	}
}

func TestBoundedQueue_Close(t *testing.T) {
	t.Run("wakes blocked consumer", func(t *testing.T) {
		q := NewBoundedQueue[int](1)

		errCh := make(chan error, 1)
		go func() {
			_, err := q.Get(time.Second)
			errCh <- err
		}()

		time.Sleep(20 * time.Millisecond)
		q.Close()

		select {
		case err := <-errCh:
			if !errors.Is(err, ErrClosed) {
				t.Fatalf("expected ErrClosed, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("consumer was not woken by Close")
		}
	})

	t.Run("put after close", func(t *testing.T) {
		q := NewBoundedQueue[int](1)
		q.Close()
		if err := q.Put(1, 10*time.Millisecond); !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		q := NewBoundedQueue[int](1)
		q.Close()
		q.Close()
	})
}
