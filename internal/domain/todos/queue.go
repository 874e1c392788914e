package todos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"todolist-app-go/pkg/logger"

	"github.com/google/uuid"
)

const (
	defaultMaxAttempts        = 5
	defaultRetryInterval      = 2 * time.Second
	defaultCommittedRetention = 50
)

var errDependencyNotResolved = errors.New("list create did not commit")

type WriteKind string

const (
	WriteCreate WriteKind = "create"
	WriteUpdate WriteKind = "update"
	WriteDelete WriteKind = "delete"
)

type WriteStatus string

const (
	WriteStatusPending   WriteStatus = "pending"
	WriteStatusCommitted WriteStatus = "committed"
	WriteStatusFailed    WriteStatus = "failed"
)

type Write struct {
	ID        string
	OwnerID   string
	Kind      WriteKind
	ListID    string
	LocalID   string
	List      TodoList
	Status    WriteStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time

	nextAttemptAt time.Time
}

func (w Write) key() string {
	if w.LocalID != "" {
		return w.LocalID
	}
	return w.ListID
}

type QueueConfig struct {
	MaxAttempts        int
	RetryInterval      time.Duration
	CommittedRetention int
}

// Queue holds persistence writes in issuance order and drains them against
// the repository. Writes touching the same list are applied one at a time in
// order; a write waiting on a retry holds back the writes behind it.
type Queue struct {
	repo Repository
	cfg  QueueConfig
	log  logger.Logger
	now  func() time.Time

	mu        sync.Mutex
	writes    []*Write
	serverIDs map[string]string
	localIDs  map[string]string
	onSettled func(Write)

	flushMu sync.Mutex
	wake    chan struct{}
}

func NewQueue(repo Repository, cfg QueueConfig, log logger.Logger) *Queue {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.CommittedRetention <= 0 {
		cfg.CommittedRetention = defaultCommittedRetention
	}

	return &Queue{
		repo:      repo,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
		serverIDs: make(map[string]string),
		localIDs:  make(map[string]string),
		wake:      make(chan struct{}, 1),
	}
}

// OnSettled registers fn to be called, outside the queue lock, whenever a
// write becomes committed or failed.
func (q *Queue) OnSettled(fn func(Write)) {
	q.mu.Lock()
	q.onSettled = fn
	q.mu.Unlock()
}

// Enqueue never blocks on the repository.
func (q *Queue) Enqueue(write Write) Write {
	now := q.now().UTC()

	q.mu.Lock()
	write.ID = uuid.NewString()
	write.Status = WriteStatusPending
	write.Attempts = 0
	write.LastError = ""
	write.CreatedAt = now
	write.UpdatedAt = now
	stored := write
	q.writes = append(q.writes, &stored)
	q.mu.Unlock()

	q.signal()
	return write
}

func (q *Queue) Writes(ownerID string) []Write {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]Write, 0)
	for _, write := range q.writes {
		if write.OwnerID == ownerID {
			result = append(result, q.resolvedLocked(*write))
		}
	}
	return result
}

// Pending returns the owner's unsettled writes in issuance order, with list
// ids filled in for lists whose create has since committed.
func (q *Queue) Pending(ownerID string) []Write {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]Write, 0)
	for _, write := range q.writes {
		if write.OwnerID == ownerID && write.Status == WriteStatusPending {
			result = append(result, q.resolvedLocked(*write))
		}
	}
	return result
}

// LocalID returns the local key a committed create used for serverID.
func (q *Queue) LocalID(serverID string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	localID, ok := q.localIDs[serverID]
	return localID, ok
}

func (q *Queue) Retry(ownerID, writeID string) (Write, error) {
	q.mu.Lock()
	var found *Write
	for _, write := range q.writes {
		if write.ID == writeID && write.OwnerID == ownerID {
			found = write
			break
		}
	}
	if found == nil {
		q.mu.Unlock()
		return Write{}, ErrWriteNotFound
	}
	if found.Status != WriteStatusFailed {
		q.mu.Unlock()
		return Write{}, ErrWriteNotFailed
	}

	found.Status = WriteStatusPending
	found.Attempts = 0
	found.LastError = ""
	found.nextAttemptAt = time.Time{}
	found.UpdatedAt = q.now().UTC()
	result := q.resolvedLocked(*found)
	q.mu.Unlock()

	q.signal()
	return result, nil
}

// Run drains the queue until ctx is cancelled.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.RetryInterval)
	defer ticker.Stop()

	for {
		q.Flush(ctx)

		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
	}
}

// Flush makes one pass over the writes that are due and returns how many
// settled.
func (q *Queue) Flush(ctx context.Context) int {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	settled := 0
	held := make(map[string]struct{})

	for _, write := range q.due() {
		if ctx.Err() != nil {
			return settled
		}

		key := write.key()
		if _, ok := held[key]; ok {
			continue
		}
		if !write.nextAttemptAt.IsZero() && write.nextAttemptAt.After(q.now()) {
			held[key] = struct{}{}
			continue
		}

		listID, ready, err := q.target(write)
		if err != nil {
			q.settle(write, "", err, true)
			settled++
			continue
		}
		if !ready {
			held[key] = struct{}{}
			continue
		}

		serverID, err := q.execute(ctx, write, listID)
		if err != nil && !q.permanent(err) && write.Attempts+1 < q.cfg.MaxAttempts {
			q.backoff(write, err)
			held[key] = struct{}{}
			continue
		}

		q.settle(write, serverID, err, false)
		settled++
		if err != nil {
			held[key] = struct{}{}
		}
	}

	return settled
}

func (q *Queue) due() []Write {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]Write, 0, len(q.writes))
	for _, write := range q.writes {
		if write.Status == WriteStatusPending {
			result = append(result, *write)
		}
	}
	return result
}

// target resolves the server id a non-create write must use. ready is false
// while the list's create is still pending or failed.
func (q *Queue) target(write Write) (string, bool, error) {
	if write.Kind == WriteCreate || write.ListID != "" {
		return write.ListID, true, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if serverID, ok := q.serverIDs[write.LocalID]; ok {
		return serverID, true, nil
	}
	for _, candidate := range q.writes {
		if candidate.Kind == WriteCreate && candidate.LocalID == write.LocalID {
			return "", false, nil
		}
	}
	return "", false, errDependencyNotResolved
}

func (q *Queue) execute(ctx context.Context, write Write, listID string) (string, error) {
	list := write.List.Clone()
	list.OwnerID = write.OwnerID
	list.ID = listID

	switch write.Kind {
	case WriteCreate:
		return q.repo.Create(ctx, write.OwnerID, list)
	case WriteUpdate:
		return listID, q.repo.Update(ctx, write.OwnerID, list)
	case WriteDelete:
		return listID, q.repo.Delete(ctx, write.OwnerID, listID)
	default:
		return "", fmt.Errorf("unsupported write kind %q", write.Kind)
	}
}

func (q *Queue) permanent(err error) bool {
	return errors.Is(err, ErrTodoListNotFound) || errors.Is(err, errDependencyNotResolved)
}

func (q *Queue) backoff(write Write, err error) {
	now := q.now()

	q.mu.Lock()
	stored := q.findLocked(write.ID)
	if stored != nil {
		stored.Attempts++
		stored.LastError = err.Error()
		stored.UpdatedAt = now.UTC()
		stored.nextAttemptAt = now.Add(time.Duration(stored.Attempts) * q.cfg.RetryInterval)
	}
	q.mu.Unlock()

	q.log.Warn("todos.queue: write failed, will retry",
		"write_id", write.ID, "owner_id", write.OwnerID, "kind", write.Kind, "attempt", write.Attempts+1, "err", err)
}

func (q *Queue) settle(write Write, serverID string, err error, skipped bool) {
	q.mu.Lock()
	stored := q.findLocked(write.ID)
	if stored == nil {
		q.mu.Unlock()
		return
	}

	if !skipped {
		stored.Attempts++
	}
	stored.UpdatedAt = q.now().UTC()
	stored.nextAttemptAt = time.Time{}
	if err != nil {
		stored.Status = WriteStatusFailed
		stored.LastError = err.Error()
	} else {
		stored.Status = WriteStatusCommitted
		stored.LastError = ""
		if serverID != "" {
			stored.ListID = serverID
			stored.List.ID = serverID
		}
		if stored.Kind == WriteCreate && stored.LocalID != "" && serverID != "" {
			q.serverIDs[stored.LocalID] = serverID
			q.localIDs[serverID] = stored.LocalID
		}
	}
	result := q.resolvedLocked(*stored)
	q.pruneLocked(stored.OwnerID)
	callback := q.onSettled
	q.mu.Unlock()

	if err != nil {
		q.log.InternalError("todos.queue: write failed", err,
			"write_id", result.ID, "owner_id", result.OwnerID, "kind", result.Kind, "attempts", result.Attempts)
	} else {
		q.log.Debug("todos.queue: write committed",
			"write_id", result.ID, "owner_id", result.OwnerID, "kind", result.Kind, "list_id", result.ListID)
	}

	if callback != nil {
		callback(result)
	}
}

func (q *Queue) findLocked(writeID string) *Write {
	for _, write := range q.writes {
		if write.ID == writeID {
			return write
		}
	}
	return nil
}

func (q *Queue) resolvedLocked(write Write) Write {
	if write.ListID == "" && write.LocalID != "" {
		if serverID, ok := q.serverIDs[write.LocalID]; ok {
			write.ListID = serverID
			write.List.ID = serverID
		}
	}
	write.List = write.List.Clone()
	return write
}

func (q *Queue) pruneLocked(ownerID string) {
	committed := 0
	for _, write := range q.writes {
		if write.OwnerID == ownerID && write.Status == WriteStatusCommitted {
			committed++
		}
	}

	excess := committed - q.cfg.CommittedRetention
	if excess <= 0 {
		return
	}

	kept := q.writes[:0]
	for _, write := range q.writes {
		if excess > 0 && write.OwnerID == ownerID && write.Status == WriteStatusCommitted {
			excess--
			continue
		}
		kept = append(kept, write)
	}
	for i := len(kept); i < len(q.writes); i++ {
		q.writes[i] = nil
	}
	q.writes = kept
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
