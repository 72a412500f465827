package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/msci/internal/domain/model"
)

func wordsTask(id string) model.Task {
	return model.Task{JobID: id, Kind: model.KindWords, Titles: []string{id}}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if !q.Enqueue(ctx, wordsTask("job1")) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	task := <-q.Dequeue(ctx)
	if task.JobID != "job1" || task.Kind != model.KindWords {
		t.Errorf("unexpected task %+v", task)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, wordsTask("a")) || !q.Enqueue(ctx, wordsTask("b")) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.Enqueue(ctx, wordsTask("c")) {
		t.Error("expected enqueue to fail on a full queue")
	}
	if q.Cap() != 2 {
		t.Errorf("expected capacity 2, got %d", q.Cap())
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, wordsTask("a")) {
		t.Error("expected enqueue to fail with a cancelled context")
	}

	select {
	case _, ok := <-q.Dequeue(ctx):
		if ok {
			t.Error("expected no task from a cancelled dequeue")
		}
	case <-time.After(time.Second):
		t.Error("dequeue channel was not closed")
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()
	q.Enqueue(ctx, wordsTask("queued"))

	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if q.Enqueue(ctx, wordsTask("late")) {
		t.Error("expected enqueue to fail after close")
	}

	var got []string
	for task := range q.Dequeue(ctx) {
		got = append(got, task.JobID)
	}
	if len(got) != 1 || got[0] != "queued" {
		t.Errorf("expected the queued task to drain, got %v", got)
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 50
	q := NewInMemoryQueue(WithCapacity(producers * perProducer))
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if !q.Enqueue(ctx, wordsTask(fmt.Sprintf("%d-%d", p, i))) {
					t.Errorf("enqueue %d-%d failed", p, i)
				}
			}
		}(p)
	}
	wg.Wait()

	if l := q.Len(ctx); l != producers*perProducer {
		t.Errorf("expected %d queued tasks, got %d", producers*perProducer, l)
	}
}
