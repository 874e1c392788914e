package inmemory

import (
	"context"
	"sync"
	"time"

	todosdomain "todolist-app-go/internal/domain/todos"

	"github.com/google/uuid"
)

// TodoListStore keeps lists in memory and calls watchers synchronously from
// the goroutine that made the change.
type TodoListStore struct {
	mu          sync.RWMutex
	lists       map[string]todosdomain.TodoList
	watchers    map[string]map[int]func([]todosdomain.TodoList)
	nextWatcher int
	now         func() time.Time
}

func NewTodoListStore() *TodoListStore {
	return &TodoListStore{
		lists:    make(map[string]todosdomain.TodoList),
		watchers: make(map[string]map[int]func([]todosdomain.TodoList)),
		now:      time.Now,
	}
}

func (s *TodoListStore) Create(ctx context.Context, ownerID string, list todosdomain.TodoList) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	now := s.now().UTC()
	stored := list.Clone()
	stored.ID = uuid.NewString()
	stored.LocalID = ""
	stored.OwnerID = ownerID
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.mu.Lock()
	s.lists[stored.ID] = stored
	s.mu.Unlock()

	s.publish(ownerID)
	return stored.ID, nil
}

func (s *TodoListStore) Update(ctx context.Context, ownerID string, list todosdomain.TodoList) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	existing, ok := s.lists[list.ID]
	if !ok || existing.OwnerID != ownerID {
		s.mu.Unlock()
		return todosdomain.ErrTodoListNotFound
	}
	existing.Name = list.Name
	existing.Todos = list.Clone().Todos
	existing.UpdatedAt = s.now().UTC()
	s.lists[list.ID] = existing
	s.mu.Unlock()

	s.publish(ownerID)
	return nil
}

func (s *TodoListStore) Delete(ctx context.Context, ownerID, listID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	existing, ok := s.lists[listID]
	if !ok || existing.OwnerID != ownerID {
		s.mu.Unlock()
		return todosdomain.ErrTodoListNotFound
	}
	delete(s.lists, listID)
	s.mu.Unlock()

	s.publish(ownerID)
	return nil
}

func (s *TodoListStore) ListByOwner(ctx context.Context, ownerID string) ([]todosdomain.TodoList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ownedLocked(ownerID), nil
}

func (s *TodoListStore) Watch(ctx context.Context, ownerID string, onSnapshot func([]todosdomain.TodoList)) error {
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	if s.watchers[ownerID] == nil {
		s.watchers[ownerID] = make(map[int]func([]todosdomain.TodoList))
	}
	s.watchers[ownerID][id] = onSnapshot
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.watchers[ownerID], id)
		if len(s.watchers[ownerID]) == 0 {
			delete(s.watchers, ownerID)
		}
		s.mu.Unlock()
	}()

	return nil
}

func (s *TodoListStore) publish(ownerID string) {
	s.mu.RLock()
	lists := s.ownedLocked(ownerID)
	watchers := make([]func([]todosdomain.TodoList), 0, len(s.watchers[ownerID]))
	for _, fn := range s.watchers[ownerID] {
		watchers = append(watchers, fn)
	}
	s.mu.RUnlock()

	for _, fn := range watchers {
		fn(cloneAll(lists))
	}
}

func (s *TodoListStore) ownedLocked(ownerID string) []todosdomain.TodoList {
	result := make([]todosdomain.TodoList, 0)
	for _, list := range s.lists {
		if list.OwnerID == ownerID {
			result = append(result, list.Clone())
		}
	}
	todosdomain.SortLists(result)
	return result
}

func cloneAll(lists []todosdomain.TodoList) []todosdomain.TodoList {
	result := make([]todosdomain.TodoList, len(lists))
	for i, list := range lists {
		result[i] = list.Clone()
	}
	return result
}
