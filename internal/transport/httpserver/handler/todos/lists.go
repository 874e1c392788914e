package todos

import (
	"net/http"

	todosdomain "todolist-app-go/internal/domain/todos"
)

type createListRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type renameListRequest struct {
	Name string `json:"name"`
}

func (h *Handlers) GetLists(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.Todos.Snapshot(r.Context(), owner)
	if err != nil {
		h.writeDomainError(w, "todos.get_lists", err, "owner_id", owner)
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(snapshot))
}

func (h *Handlers) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	list, write, err := h.Todos.CreateList(r.Context(), owner, req.Name, todosdomain.Color(req.Color))
	if err != nil {
		h.writeDomainError(w, "todos.create_list", err, "owner_id", owner)
		return
	}

	writeJSON(w, http.StatusCreated, listMutationResponse{
		List:  toTodoListResponse(list),
		Write: toWriteResponse(write),
	})
}

func (h *Handlers) RenameList(w http.ResponseWriter, r *http.Request) {
	var req renameListRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	listID, ok := listIDParam(w, r)
	if !ok {
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	list, write, err := h.Todos.RenameList(r.Context(), owner, listID, req.Name)
	if err != nil {
		h.writeDomainError(w, "todos.rename_list", err, "owner_id", owner, "list_id", listID)
		return
	}

	writeJSON(w, http.StatusOK, listMutationResponse{
		List:  toTodoListResponse(list),
		Write: toWriteResponse(write),
	})
}

func (h *Handlers) DeleteList(w http.ResponseWriter, r *http.Request) {
	listID, ok := listIDParam(w, r)
	if !ok {
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	snapshot, write, err := h.Todos.DeleteList(r.Context(), owner, listID)
	if err != nil {
		h.writeDomainError(w, "todos.delete_list", err, "owner_id", owner, "list_id", listID)
		return
	}

	writeJSON(w, http.StatusAccepted, snapshotMutationResponse{
		Snapshot: toSnapshotResponse(snapshot),
		Write:    toWriteResponse(write),
	})
}

func (h *Handlers) Palette(w http.ResponseWriter, r *http.Request) {
	colors := make([]string, 0, len(todosdomain.Palette))
	for _, color := range todosdomain.Palette {
		colors = append(colors, string(color))
	}
	writeJSON(w, http.StatusOK, paletteResponse{Default: string(todosdomain.DefaultColor), Colors: colors})
}
