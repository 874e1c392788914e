package todos

import (
	"context"
	"errors"
	"testing"
	"time"

	"todolist-app-go/pkg/logger"
)

func TestQueueCommitsInOrder(t *testing.T) {
	repo := newFakeRepo()
	queue := newTestQueue(repo)
	ctx := context.Background()

	created := queue.Enqueue(Write{Kind: WriteCreate, OwnerID: "owner-1", LocalID: "local-1", List: TodoList{Name: "Work", Color: DefaultColor}})
	queue.Enqueue(Write{Kind: WriteUpdate, OwnerID: "owner-1", LocalID: "local-1", List: TodoList{LocalID: "local-1", Name: "Work", Color: DefaultColor, Todos: []TodoItem{{Title: "Ship"}}}})

	if created.Status != WriteStatusPending || created.ID == "" {
		t.Fatalf("expected pending write with id, got %+v", created)
	}

	if settled := queue.Flush(ctx); settled != 2 {
		t.Fatalf("expected 2 settled writes, got %d", settled)
	}

	writes := queue.Writes("owner-1")
	for _, write := range writes {
		if write.Status != WriteStatusCommitted {
			t.Fatalf("expected committed, got %+v", write)
		}
		if write.ListID != "srv-1" {
			t.Fatalf("expected resolved list id srv-1, got %q", write.ListID)
		}
	}

	stored := repo.lists["srv-1"]
	if len(stored.Todos) != 1 || stored.Todos[0].Title != "Ship" {
		t.Fatalf("expected update to reach repository, got %+v", stored)
	}
	if localID, ok := queue.LocalID("srv-1"); !ok || localID != "local-1" {
		t.Fatalf("expected local id mapping, got %q %v", localID, ok)
	}
}

func TestQueueRetriesThenFails(t *testing.T) {
	repo := newFakeRepo()
	queue := newTestQueue(repo)
	ctx := context.Background()

	var settled []Write
	queue.OnSettled(func(write Write) { settled = append(settled, write) })

	repo.failNext(10)
	write := queue.Enqueue(Write{Kind: WriteCreate, OwnerID: "owner-1", LocalID: "local-1", List: TodoList{Name: "Work", Color: DefaultColor}})

	for i := 0; i < 3; i++ {
		time.Sleep(time.Millisecond)
		queue.Flush(ctx)
	}

	writes := queue.Writes("owner-1")
	if len(writes) != 1 {
		t.Fatalf("expected 1 write, got %d", len(writes))
	}
	if writes[0].Status != WriteStatusFailed {
		t.Fatalf("expected failed after max attempts, got %s", writes[0].Status)
	}
	if writes[0].Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", writes[0].Attempts)
	}
	if writes[0].LastError == "" {
		t.Fatalf("expected last error to be recorded")
	}
	if len(settled) != 1 || settled[0].Status != WriteStatusFailed {
		t.Fatalf("expected one failed settle notification, got %+v", settled)
	}

	repo.failNext(0)
	retried, err := queue.Retry("owner-1", write.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if retried.Status != WriteStatusPending || retried.Attempts != 0 {
		t.Fatalf("expected reset pending write, got %+v", retried)
	}

	queue.Flush(ctx)
	if got := queue.Writes("owner-1")[0].Status; got != WriteStatusCommitted {
		t.Fatalf("expected committed after retry, got %s", got)
	}
}

func TestQueueRetryRequiresFailedWrite(t *testing.T) {
	queue := newTestQueue(newFakeRepo())

	write := queue.Enqueue(Write{Kind: WriteDelete, OwnerID: "owner-1", ListID: "srv-9"})
	if _, err := queue.Retry("owner-1", write.ID); !errors.Is(err, ErrWriteNotFailed) {
		t.Fatalf("expected ErrWriteNotFailed, got %v", err)
	}
	if _, err := queue.Retry("owner-2", write.ID); !errors.Is(err, ErrWriteNotFound) {
		t.Fatalf("expected ErrWriteNotFound for other owner, got %v", err)
	}
}

func TestQueueMissingListFailsWithoutRetry(t *testing.T) {
	queue := newTestQueue(newFakeRepo())

	queue.Enqueue(Write{Kind: WriteDelete, OwnerID: "owner-1", ListID: "srv-404"})
	queue.Flush(context.Background())

	write := queue.Writes("owner-1")[0]
	if write.Status != WriteStatusFailed || write.Attempts != 1 {
		t.Fatalf("expected immediate failure, got %+v", write)
	}
}

func TestQueueHoldsWritesBehindFailedCreate(t *testing.T) {
	repo := newFakeRepo()
	queue := newTestQueue(repo)
	ctx := context.Background()

	repo.failNext(10)
	create := queue.Enqueue(Write{Kind: WriteCreate, OwnerID: "owner-1", LocalID: "local-1", List: TodoList{Name: "Work", Color: DefaultColor}})
	queue.Enqueue(Write{Kind: WriteUpdate, OwnerID: "owner-1", LocalID: "local-1", List: TodoList{LocalID: "local-1", Name: "Work v2", Color: DefaultColor}})

	for i := 0; i < 4; i++ {
		time.Sleep(time.Millisecond)
		queue.Flush(ctx)
	}

	pending := queue.Pending("owner-1")
	if len(pending) != 1 || pending[0].Kind != WriteUpdate {
		t.Fatalf("expected the update to stay pending, got %+v", pending)
	}

	repo.failNext(0)
	if _, err := queue.Retry("owner-1", create.ID); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	queue.Flush(ctx)

	if len(queue.Pending("owner-1")) != 0 {
		t.Fatalf("expected queue to drain after retry")
	}
	if repo.lists["srv-1"].Name != "Work v2" {
		t.Fatalf("expected update applied to created list, got %+v", repo.lists["srv-1"])
	}
}

func TestQueuePrunesCommittedWrites(t *testing.T) {
	repo := newFakeRepo()
	queue := NewQueue(repo, QueueConfig{CommittedRetention: 2}, logger.Discard())

	for i := 0; i < 5; i++ {
		queue.Enqueue(Write{Kind: WriteCreate, OwnerID: "owner-1", LocalID: "local-" + string(rune('a'+i)), List: TodoList{Name: "L", Color: DefaultColor}})
	}
	queue.Flush(context.Background())

	if got := len(queue.Writes("owner-1")); got != 2 {
		t.Fatalf("expected 2 retained writes, got %d", got)
	}
}

func TestQueueRunStopsOnCancel(t *testing.T) {
	repo := newFakeRepo()
	queue := NewQueue(repo, QueueConfig{RetryInterval: 10 * time.Millisecond}, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		queue.Run(ctx)
		close(done)
	}()

	queue.Enqueue(Write{Kind: WriteCreate, OwnerID: "owner-1", LocalID: "local-1", List: TodoList{Name: "Work", Color: DefaultColor}})

	deadline := time.After(2 * time.Second)
	for {
		writes := queue.Writes("owner-1")
		if len(writes) == 1 && writes[0].Status == WriteStatusCommitted {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("write was not committed by worker")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
}
