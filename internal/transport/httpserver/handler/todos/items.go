package todos

import (
	"net/http"

	todosdomain "todolist-app-go/internal/domain/todos"
)

type todoTitleRequest struct {
	Title string `json:"title"`
}

func (h *Handlers) AddTodo(w http.ResponseWriter, r *http.Request) {
	var req todoTitleRequest
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

	list, write, err := h.Todos.AddTodo(r.Context(), owner, listID, req.Title)
	h.respondList(w, "todos.add_todo", list, write, err, "owner_id", owner, "list_id", listID)
}

func (h *Handlers) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	listID, ok := listIDParam(w, r)
	if !ok {
		return
	}
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	list, write, err := h.Todos.ToggleTodo(r.Context(), owner, listID, index)
	h.respondList(w, "todos.toggle_todo", list, write, err, "owner_id", owner, "list_id", listID, "index", index)
}

func (h *Handlers) EditTodo(w http.ResponseWriter, r *http.Request) {
	var req todoTitleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json body")
		return
	}

	listID, ok := listIDParam(w, r)
	if !ok {
		return
	}
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	list, write, err := h.Todos.EditTodo(r.Context(), owner, listID, index, req.Title)
	h.respondList(w, "todos.edit_todo", list, write, err, "owner_id", owner, "list_id", listID, "index", index)
}

func (h *Handlers) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	listID, ok := listIDParam(w, r)
	if !ok {
		return
	}
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	owner, ok := ownerID(w, r)
	if !ok {
		return
	}

	list, write, err := h.Todos.DeleteTodo(r.Context(), owner, listID, index)
	h.respondList(w, "todos.delete_todo", list, write, err, "owner_id", owner, "list_id", listID, "index", index)
}

func (h *Handlers) respondList(w http.ResponseWriter, action string, list todosdomain.TodoList, write todosdomain.Write, err error, args ...any) {
	if err != nil {
		h.writeDomainError(w, action, err, args...)
		return
	}

	writeJSON(w, http.StatusOK, listMutationResponse{
		List:  toTodoListResponse(list),
		Write: toWriteResponse(write),
	})
}
