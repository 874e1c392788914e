package todos

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"todolist-app-go/pkg/logger"
)

type Service struct {
	repo  Repository
	queue *Queue
	log   logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	stores map[string]*Store
}

func NewService(repo Repository, queue *Queue, log logger.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		repo:   repo,
		queue:  queue,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		stores: make(map[string]*Store),
	}
	queue.OnSettled(s.handleSettled)
	return s
}

// Close stops every watch subscription opened by the service.
func (s *Service) Close() {
	s.cancel()
}

// Open returns the owner's store, loading it from the repository and
// subscribing to its change feed on first use.
func (s *Service) Open(ctx context.Context, ownerID string) (*Store, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if store, ok := s.stores[ownerID]; ok {
		return store, nil
	}

	lists, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load lists: %w", err)
	}

	store := NewStore(ownerID, s.queue)
	store.Reconcile(lists)

	if err := s.repo.Watch(s.ctx, ownerID, store.Reconcile); err != nil {
		return nil, fmt.Errorf("watch lists: %w", err)
	}

	s.stores[ownerID] = store
	s.log.Debug("todos.open: store ready", "owner_id", ownerID, "lists", len(lists))
	return store, nil
}

func (s *Service) Snapshot(ctx context.Context, ownerID string) (Snapshot, error) {
	store, err := s.Open(ctx, ownerID)
	if err != nil {
		return Snapshot{}, err
	}
	return store.Snapshot(), nil
}

func (s *Service) Subscribe(ctx context.Context, ownerID string, fn func(Snapshot)) (func(), error) {
	store, err := s.Open(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return store.Subscribe(fn), nil
}

func (s *Service) CreateList(ctx context.Context, ownerID, name string, color Color) (TodoList, Write, error) {
	snapshot, write, err := s.dispatch(ctx, ownerID, Intent{Kind: IntentCreateList, Name: name, Color: color})
	if err != nil {
		return TodoList{}, Write{}, err
	}
	list, _, _ := snapshot.Find(write.LocalID)
	return list, write, nil
}

func (s *Service) DeleteList(ctx context.Context, ownerID, listID string) (Snapshot, Write, error) {
	return s.dispatch(ctx, ownerID, Intent{Kind: IntentDeleteList, ListID: listID})
}

func (s *Service) RenameList(ctx context.Context, ownerID, listID, name string) (TodoList, Write, error) {
	return s.dispatchList(ctx, ownerID, Intent{Kind: IntentRenameList, ListID: listID, Name: name})
}

func (s *Service) AddTodo(ctx context.Context, ownerID, listID, title string) (TodoList, Write, error) {
	return s.dispatchList(ctx, ownerID, Intent{Kind: IntentAddTodo, ListID: listID, Title: title})
}

func (s *Service) ToggleTodo(ctx context.Context, ownerID, listID string, index int) (TodoList, Write, error) {
	return s.dispatchList(ctx, ownerID, Intent{Kind: IntentToggleTodo, ListID: listID, Index: index})
}

func (s *Service) EditTodo(ctx context.Context, ownerID, listID string, index int, title string) (TodoList, Write, error) {
	return s.dispatchList(ctx, ownerID, Intent{Kind: IntentEditTodo, ListID: listID, Index: index, Title: title})
}

func (s *Service) DeleteTodo(ctx context.Context, ownerID, listID string, index int) (TodoList, Write, error) {
	return s.dispatchList(ctx, ownerID, Intent{Kind: IntentDeleteTodo, ListID: listID, Index: index})
}

func (s *Service) Writes(ctx context.Context, ownerID string) ([]Write, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrOwnerRequired
	}
	return s.queue.Writes(ownerID), nil
}

func (s *Service) RetryWrite(ctx context.Context, ownerID, writeID string) (Write, error) {
	if strings.TrimSpace(ownerID) == "" {
		return Write{}, ErrOwnerRequired
	}

	write, err := s.queue.Retry(ownerID, writeID)
	if err != nil {
		return Write{}, err
	}

	// Show the retried change again until the feed confirms or rejects it.
	if store := s.storeFor(ownerID); store != nil {
		store.Refresh()
	}

	return write, nil
}

func (s *Service) dispatch(ctx context.Context, ownerID string, intent Intent) (Snapshot, Write, error) {
	store, err := s.Open(ctx, ownerID)
	if err != nil {
		return Snapshot{}, Write{}, err
	}

	snapshot, write, err := store.Dispatch(intent)
	if err != nil {
		s.log.Debug("todos.dispatch: intent rejected", "owner_id", ownerID, "kind", intent.Kind, "list_id", intent.ListID, "err", err)
		return snapshot, Write{}, err
	}

	s.log.Debug("todos.dispatch: intent applied", "owner_id", ownerID, "kind", intent.Kind, "write_id", write.ID, "version", snapshot.Version)
	return snapshot, write, nil
}

func (s *Service) dispatchList(ctx context.Context, ownerID string, intent Intent) (TodoList, Write, error) {
	snapshot, write, err := s.dispatch(ctx, ownerID, intent)
	if err != nil {
		return TodoList{}, Write{}, err
	}
	list, _, _ := snapshot.Find(intent.ListID)
	return list, write, nil
}

func (s *Service) handleSettled(write Write) {
	store := s.storeFor(write.OwnerID)
	if store == nil {
		return
	}

	if write.Status == WriteStatusCommitted {
		store.Committed(write)
		return
	}

	// A failed write is dropped from the optimistic view.
	s.log.Warn("todos.settle: write failed", "owner_id", write.OwnerID, "write_id", write.ID, "kind", write.Kind, "err", write.LastError)
	store.Refresh()
}

func (s *Service) storeFor(ownerID string) *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stores[ownerID]
}
