package todos

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"todolist-app-go/pkg/logger"
)

var errStoreUnavailable = errors.New("store unavailable")

type fakeRepo struct {
	mu       sync.Mutex
	lists    map[string]TodoList
	nextID   int
	failures int
	calls    []string
	watchers map[string][]func([]TodoList)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		lists:    make(map[string]TodoList),
		watchers: make(map[string][]func([]TodoList)),
	}
}

func (r *fakeRepo) failNext(n int) {
	r.mu.Lock()
	r.failures = n
	r.mu.Unlock()
}

func (r *fakeRepo) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRepo) Create(ctx context.Context, ownerID string, list TodoList) (string, error) {
	r.mu.Lock()
	if err := r.failLocked("create"); err != nil {
		r.mu.Unlock()
		return "", err
	}
	r.nextID++
	id := fmt.Sprintf("srv-%d", r.nextID)
	list.ID = id
	list.LocalID = ""
	list.OwnerID = ownerID
	r.lists[id] = list.Clone()
	r.calls = append(r.calls, "create "+list.Name)
	r.mu.Unlock()

	r.publish(ownerID)
	return id, nil
}

func (r *fakeRepo) Update(ctx context.Context, ownerID string, list TodoList) error {
	r.mu.Lock()
	if err := r.failLocked("update"); err != nil {
		r.mu.Unlock()
		return err
	}
	existing, ok := r.lists[list.ID]
	if !ok || existing.OwnerID != ownerID {
		r.mu.Unlock()
		return ErrTodoListNotFound
	}
	list.LocalID = ""
	r.lists[list.ID] = list.Clone()
	r.calls = append(r.calls, "update "+list.ID)
	r.mu.Unlock()

	r.publish(ownerID)
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, ownerID, listID string) error {
	r.mu.Lock()
	if err := r.failLocked("delete"); err != nil {
		r.mu.Unlock()
		return err
	}
	existing, ok := r.lists[listID]
	if !ok || existing.OwnerID != ownerID {
		r.mu.Unlock()
		return ErrTodoListNotFound
	}
	delete(r.lists, listID)
	r.calls = append(r.calls, "delete "+listID)
	r.mu.Unlock()

	r.publish(ownerID)
	return nil
}

func (r *fakeRepo) ListByOwner(ctx context.Context, ownerID string) ([]TodoList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownedLocked(ownerID), nil
}

func (r *fakeRepo) Watch(ctx context.Context, ownerID string, onSnapshot func([]TodoList)) error {
	r.mu.Lock()
	r.watchers[ownerID] = append(r.watchers[ownerID], onSnapshot)
	r.mu.Unlock()
	return nil
}

func (r *fakeRepo) failLocked(op string) error {
	if r.failures == 0 {
		return nil
	}
	r.failures--
	r.calls = append(r.calls, op+" failed")
	return errStoreUnavailable
}

func (r *fakeRepo) ownedLocked(ownerID string) []TodoList {
	result := make([]TodoList, 0)
	for _, list := range r.lists {
		if list.OwnerID == ownerID {
			result = append(result, list.Clone())
		}
	}
	SortLists(result)
	return result
}

func (r *fakeRepo) publish(ownerID string) {
	r.mu.Lock()
	lists := r.ownedLocked(ownerID)
	watchers := append([]func([]TodoList){}, r.watchers[ownerID]...)
	r.mu.Unlock()

	for _, fn := range watchers {
		fn(lists)
	}
}

func newTestQueue(repo Repository) *Queue {
	return NewQueue(repo, QueueConfig{MaxAttempts: 3, RetryInterval: 1}, logger.Discard())
}
