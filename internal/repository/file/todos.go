package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	todosdomain "todolist-app-go/internal/domain/todos"
	"todolist-app-go/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

const (
	documentVersion   = "1"
	lockTimeout       = 3 * time.Second
	lockRetryInterval = 100 * time.Millisecond
	defaultDebounce   = 50 * time.Millisecond
)

type document struct {
	Lists    []record `json:"lists"`
	Metadata metadata `json:"metadata"`
}

type metadata struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

type record struct {
	ID        string                 `json:"id"`
	OwnerID   string                 `json:"owner_id"`
	Name      string                 `json:"name"`
	Color     string                 `json:"color"`
	Todos     []todosdomain.TodoItem `json:"todos"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Store keeps every owner's lists in one JSON document. The flock guards the
// file against other processes and mu guards it within this one. Changes
// written by other processes reach watchers through fsnotify.
type Store struct {
	path     string
	fileLock *flock.Flock
	mu       sync.RWMutex
	log      logger.Logger
	debounce time.Duration

	watchMu     sync.Mutex
	watchers    map[string]map[int]func([]todosdomain.TodoList)
	nextWatcher int
	fsWatcher   *fsnotify.Watcher
	done        chan struct{}
}

func New(path string, log logger.Logger) (*Store, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	return &Store{
		path:     path,
		fileLock: flock.New(path + ".lock"),
		log:      log,
		debounce: defaultDebounce,
		watchers: make(map[string]map[int]func([]todosdomain.TodoList)),
		done:     make(chan struct{}),
	}, nil
}

func (s *Store) Create(ctx context.Context, ownerID string, list todosdomain.TodoList) (string, error) {
	now := time.Now().UTC()
	id := uuid.NewString()

	err := s.mutate(ctx, func(doc *document) error {
		doc.Lists = append(doc.Lists, record{
			ID:        id,
			OwnerID:   ownerID,
			Name:      list.Name,
			Color:     string(list.Color),
			Todos:     list.Clone().Todos,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	s.publish(ownerID)
	return id, nil
}

func (s *Store) Update(ctx context.Context, ownerID string, list todosdomain.TodoList) error {
	err := s.mutate(ctx, func(doc *document) error {
		position := doc.find(ownerID, list.ID)
		if position == -1 {
			return todosdomain.ErrTodoListNotFound
		}
		doc.Lists[position].Name = list.Name
		doc.Lists[position].Todos = list.Clone().Todos
		doc.Lists[position].UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ownerID)
	return nil
}

func (s *Store) Delete(ctx context.Context, ownerID, listID string) error {
	err := s.mutate(ctx, func(doc *document) error {
		position := doc.find(ownerID, listID)
		if position == -1 {
			return todosdomain.ErrTodoListNotFound
		}
		doc.Lists = append(doc.Lists[:position], doc.Lists[position+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ownerID)
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]todosdomain.TodoList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	return doc.owned(ownerID), nil
}

// Watch starts the file watcher on first use.
func (s *Store) Watch(ctx context.Context, ownerID string, onSnapshot func([]todosdomain.TodoList)) error {
	s.watchMu.Lock()
	if s.fsWatcher == nil {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			s.watchMu.Unlock()
			return fmt.Errorf("create watcher: %w", err)
		}
		if err := watcher.Add(filepath.Dir(s.path)); err != nil {
			_ = watcher.Close()
			s.watchMu.Unlock()
			return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
		}
		s.fsWatcher = watcher
		go s.watchLoop(watcher)
	}

	id := s.nextWatcher
	s.nextWatcher++
	if s.watchers[ownerID] == nil {
		s.watchers[ownerID] = make(map[int]func([]todosdomain.TodoList))
	}
	s.watchers[ownerID][id] = onSnapshot
	s.watchMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.watchMu.Lock()
		delete(s.watchers[ownerID], id)
		if len(s.watchers[ownerID]) == 0 {
			delete(s.watchers, ownerID)
		}
		s.watchMu.Unlock()
	}()

	return nil
}

func (s *Store) Close() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	select {
	case <-s.done:
		return nil
	default:
		close(s.done)
	}

	if s.fsWatcher != nil {
		return s.fsWatcher.Close()
	}
	return nil
}

func (s *Store) watchLoop(watcher *fsnotify.Watcher) {
	// Editors and the rename in saveLocked produce several events per change.
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-s.done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(s.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("file.watch: watcher error", "path", s.path, "err", err)
		case <-timer.C:
			s.publishAll()
		}
	}
}

func (s *Store) publishAll() {
	s.watchMu.Lock()
	owners := make([]string, 0, len(s.watchers))
	for ownerID := range s.watchers {
		owners = append(owners, ownerID)
	}
	s.watchMu.Unlock()

	for _, ownerID := range owners {
		s.publish(ownerID)
	}
}

func (s *Store) publish(ownerID string) {
	s.watchMu.Lock()
	watchers := make([]func([]todosdomain.TodoList), 0, len(s.watchers[ownerID]))
	for _, fn := range s.watchers[ownerID] {
		watchers = append(watchers, fn)
	}
	s.watchMu.Unlock()
	if len(watchers) == 0 {
		return
	}

	lists, err := s.ListByOwner(context.Background(), ownerID)
	if err != nil {
		s.log.InternalError("file.publish: load lists failed", err, "owner_id", ownerID)
		return
	}

	for _, fn := range watchers {
		snapshot := make([]todosdomain.TodoList, len(lists))
		for i, list := range lists {
			snapshot[i] = list.Clone()
		}
		fn(snapshot)
	}
}

func (s *Store) mutate(ctx context.Context, fn func(*document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.readLocked()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.saveLocked(doc)
}

func (s *Store) loadLocked(ctx context.Context) (*document, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.readLocked()
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := s.fileLock.TryLockContext(ctx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, errors.New("could not acquire file lock")
	}
	return func() { _ = s.fileLock.Unlock() }, nil
}

func (s *Store) readLocked() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{Lists: []record{}, Metadata: metadata{Version: documentVersion}}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return &document{Lists: []record{}, Metadata: metadata{Version: documentVersion}}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return &doc, nil
}

func (s *Store) saveLocked(doc *document) error {
	doc.Metadata.Version = documentVersion
	doc.Metadata.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tmpFile := s.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, s.path); err != nil {
		_ = os.Remove(tmpFile)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (d *document) find(ownerID, listID string) int {
	for i, item := range d.Lists {
		if item.ID == listID && item.OwnerID == ownerID {
			return i
		}
	}
	return -1
}

func (d *document) owned(ownerID string) []todosdomain.TodoList {
	result := make([]todosdomain.TodoList, 0)
	for _, item := range d.Lists {
		if item.OwnerID != ownerID {
			continue
		}
		todos := item.Todos
		if todos == nil {
			todos = []todosdomain.TodoItem{}
		}
		result = append(result, todosdomain.TodoList{
			ID:        item.ID,
			OwnerID:   item.OwnerID,
			Name:      item.Name,
			Color:     todosdomain.Color(item.Color),
			Todos:     todos,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		})
	}
	todosdomain.SortLists(result)
	return result
}
