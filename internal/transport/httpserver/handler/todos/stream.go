package todos

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	todosdomain "todolist-app-go/internal/domain/todos"
)

// StreamLists sends the caller's snapshot as a Server-Sent Event and then a
// new event for every later snapshot. Slow readers only get the latest one.
func (h *Handlers) StreamLists(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming unsupported")
		return
	}

	updates := make(chan todosdomain.Snapshot, 1)
	unsubscribe, err := h.Todos.Subscribe(r.Context(), owner, func(snapshot todosdomain.Snapshot) {
		offerLatest(updates, snapshot)
	})
	if err != nil {
		h.writeDomainError(w, "todos.stream", err, "owner_id", owner)
		return
	}
	defer unsubscribe()

	current, err := h.Todos.Snapshot(r.Context(), owner)
	if err != nil {
		h.writeDomainError(w, "todos.stream", err, "owner_id", owner)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSnapshotEvent(w, current); err != nil {
		return
	}
	flusher.Flush()
	lastVersion := current.Version
	h.log.Debug("todos.stream: opened", "owner_id", owner, "version", lastVersion)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Debug("todos.stream: closed", "owner_id", owner)
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snapshot := <-updates:
			if snapshot.Version <= lastVersion {
				continue
			}
			if err := writeSnapshotEvent(w, snapshot); err != nil {
				return
			}
			flusher.Flush()
			lastVersion = snapshot.Version
		}
	}
}

func offerLatest(updates chan todosdomain.Snapshot, snapshot todosdomain.Snapshot) {
	for {
		select {
		case updates <- snapshot:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
	}
}

func writeSnapshotEvent(w http.ResponseWriter, snapshot todosdomain.Snapshot) error {
	data, err := json.Marshal(toSnapshotResponse(snapshot))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snapshot.Version, data)
	return err
}
