package todos

import (
	"sync"

	"github.com/google/uuid"
)

// Store is the state container for one owner. It holds the current snapshot,
// applies intents in the order they arrive and hands the resulting write to
// the queue. Subscribers receive their own copy of every new snapshot.
type Store struct {
	ownerID string
	queue   *Queue

	mu          sync.Mutex
	snapshot    Snapshot
	remote      []TodoList
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

func NewStore(ownerID string, queue *Queue) *Store {
	return &Store{
		ownerID:     ownerID,
		queue:       queue,
		snapshot:    Snapshot{OwnerID: ownerID, Lists: []TodoList{}},
		subscribers: make(map[int]func(Snapshot)),
	}
}

func (s *Store) OwnerID() string {
	return s.ownerID
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.Clone()
}

// Dispatch applies intent to the current snapshot. A rejected intent leaves
// the snapshot untouched and queues nothing.
func (s *Store) Dispatch(intent Intent) (Snapshot, Write, error) {
	localID := ""
	if intent.Kind == IntentCreateList {
		localID = uuid.NewString()
	}

	s.mu.Lock()
	next, write, err := Apply(s.snapshot, intent, localID)
	if err != nil {
		current := s.snapshot.Clone()
		s.mu.Unlock()
		return current, Write{}, err
	}

	queued := s.queue.Enqueue(*write)
	s.snapshot = next
	published := next.Clone()
	subscribers := s.subscribersLocked()
	s.mu.Unlock()

	notify(subscribers, published)
	return published, queued, nil
}

// Reconcile replaces the snapshot with the authoritative lists and replays
// the owner's still-pending writes on top of them. Failed writes are not
// replayed.
func (s *Store) Reconcile(remote []TodoList) {
	s.mu.Lock()
	s.remote = make([]TodoList, 0, len(remote))
	for _, list := range remote {
		s.remote = append(s.remote, list.Clone())
	}
	s.rebuildLocked()
	published := s.snapshot.Clone()
	subscribers := s.subscribersLocked()
	s.mu.Unlock()

	notify(subscribers, published)
}

// Refresh rebuilds the snapshot from the last authoritative lists and the
// writes that are still pending.
func (s *Store) Refresh() {
	s.mu.Lock()
	s.rebuildLocked()
	published := s.snapshot.Clone()
	subscribers := s.subscribersLocked()
	s.mu.Unlock()

	notify(subscribers, published)
}

// Committed records the server id of a list whose create just committed.
func (s *Store) Committed(write Write) {
	if write.Kind != WriteCreate || write.Status != WriteStatusCommitted || write.ListID == "" {
		return
	}

	s.mu.Lock()
	confirmed := false
	for _, list := range s.remote {
		if list.ID == write.ListID {
			confirmed = true
			break
		}
	}

	if confirmed {
		s.rebuildLocked()
	} else {
		_, position, ok := s.snapshot.Find(write.LocalID)
		if !ok {
			s.mu.Unlock()
			return
		}
		lists := cloneLists(s.snapshot.Lists)
		list := lists[position].Clone()
		list.ID = write.ListID
		lists[position] = list
		s.snapshot = s.snapshot.with(lists)
	}
	published := s.snapshot.Clone()
	subscribers := s.subscribersLocked()
	s.mu.Unlock()

	notify(subscribers, published)
}

func (s *Store) rebuildLocked() {
	lists := make([]TodoList, 0, len(s.remote))
	for _, list := range s.remote {
		list = list.Clone()
		list.OwnerID = s.ownerID
		if localID, ok := s.queue.LocalID(list.ID); ok {
			list.LocalID = localID
		}
		lists = append(lists, list)
	}

	for _, write := range s.queue.Pending(s.ownerID) {
		lists = replay(lists, write)
	}

	s.snapshot = s.snapshot.with(lists)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Store) subscribersLocked() []func(Snapshot) {
	result := make([]func(Snapshot), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		result = append(result, fn)
	}
	return result
}

func notify(subscribers []func(Snapshot), snapshot Snapshot) {
	for _, fn := range subscribers {
		fn(snapshot.Clone())
	}
}

func replay(lists []TodoList, write Write) []TodoList {
	position := -1
	for i, list := range lists {
		if (write.ListID != "" && list.ID == write.ListID) || (write.LocalID != "" && list.LocalID == write.LocalID) {
			position = i
			break
		}
	}

	switch write.Kind {
	case WriteCreate:
		if position == -1 {
			return append(lists, write.List.Clone())
		}
	case WriteUpdate:
		if position != -1 {
			updated := write.List.Clone()
			updated.ID = lists[position].ID
			updated.OwnerID = lists[position].OwnerID
			updated.LocalID = write.LocalID
			updated.CreatedAt = lists[position].CreatedAt
			updated.UpdatedAt = lists[position].UpdatedAt
			lists[position] = updated
		}
	case WriteDelete:
		if position != -1 {
			return append(lists[:position], lists[position+1:]...)
		}
	}
	return lists
}
