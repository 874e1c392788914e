package todos

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) ListWrites(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	writes, err := h.Todos.Writes(r.Context(), owner)
	if err != nil {
		h.writeDomainError(w, "todos.list_writes", err, "owner_id", owner)
		return
	}

	status := strings.TrimSpace(r.URL.Query().Get("status"))
	items := make([]writeResponse, 0, len(writes))
	for _, write := range writes {
		if status != "" && string(write.Status) != status {
			continue
		}
		items = append(items, toWriteResponse(write))
	}

	writeJSON(w, http.StatusOK, writeListResponse{Items: items})
}

func (h *Handlers) RetryWrite(w http.ResponseWriter, r *http.Request) {
	writeID := strings.TrimSpace(chi.URLParam(r, "write_id"))
	if writeID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "write_id is required")
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	write, err := h.Todos.RetryWrite(r.Context(), owner, writeID)
	if err != nil {
		h.writeDomainError(w, "todos.retry_write", err, "owner_id", owner, "write_id", writeID)
		return
	}

	writeJSON(w, http.StatusAccepted, toWriteResponse(write))
}
