package todos

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	todosdomain "todolist-app-go/internal/domain/todos"
	commonhandler "todolist-app-go/internal/transport/httpserver/handler/common"
	"todolist-app-go/internal/transport/httpserver/middleware"

	"github.com/go-chi/chi/v5"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	commonhandler.WriteError(w, status, code, message)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	commonhandler.WriteJSON(w, status, payload)
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return commonhandler.DecodeJSON(r, dst)
}

func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return "", false
	}
	return userID, true
}

func listIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	listID := strings.TrimSpace(chi.URLParam(r, "list_id"))
	if listID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "list_id is required")
		return "", false
	}
	return listID, true
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "index")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_index", "index must be an integer")
		return 0, false
	}
	return index, true
}

type domainError struct {
	status  int
	code    string
	message string
}

var domainErrors = []struct {
	target error
	domainError
}{
	{todosdomain.ErrListNameRequired, domainError{http.StatusUnprocessableEntity, "name_required", "list name is required"}},
	{todosdomain.ErrTitleRequired, domainError{http.StatusUnprocessableEntity, "title_required", "todo title is required"}},
	{todosdomain.ErrDuplicateTitle, domainError{http.StatusUnprocessableEntity, "duplicate_title", "a todo with this title already exists"}},
	{todosdomain.ErrInvalidColor, domainError{http.StatusUnprocessableEntity, "invalid_color", "color is not in the palette"}},
	{todosdomain.ErrTodoListNotFound, domainError{http.StatusNotFound, "todo_list_not_found", "todo list not found"}},
	{todosdomain.ErrIndexOutOfRange, domainError{http.StatusConflict, "index_out_of_range", "todo index is out of range"}},
	{todosdomain.ErrWriteNotFound, domainError{http.StatusNotFound, "write_not_found", "write not found"}},
	{todosdomain.ErrWriteNotFailed, domainError{http.StatusConflict, "write_not_failed", "only failed writes can be retried"}},
	{todosdomain.ErrOwnerRequired, domainError{http.StatusUnauthorized, "invalid_token", "invalid token"}},
}

// writeDomainError logs err under action and writes the matching response.
func (h *Handlers) writeDomainError(w http.ResponseWriter, action string, err error, args ...any) {
	for _, candidate := range domainErrors {
		if errors.Is(err, candidate.target) {
			h.log.BusinessError(action+": rejected", err, args...)
			writeError(w, candidate.status, candidate.code, candidate.message)
			return
		}
	}

	h.log.InternalError(action+": failed", err, args...)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
