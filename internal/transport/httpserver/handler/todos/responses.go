package todos

import (
	"time"

	todosdomain "todolist-app-go/internal/domain/todos"
)

type todoItemResponse struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type todoListResponse struct {
	ID             string             `json:"id"`
	LocalID        string             `json:"local_id,omitempty"`
	Key            string             `json:"key"`
	Name           string             `json:"name"`
	Color          string             `json:"color"`
	Todos          []todoItemResponse `json:"todos"`
	CompletedCount int                `json:"completed_count"`
	RemainingCount int                `json:"remaining_count"`
	CreatedAt      *time.Time         `json:"created_at,omitempty"`
	UpdatedAt      *time.Time         `json:"updated_at,omitempty"`
}

type snapshotResponse struct {
	Version int64              `json:"version"`
	Lists   []todoListResponse `json:"lists"`
}

type writeResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	ListID    string    `json:"list_id,omitempty"`
	LocalID   string    `json:"local_id,omitempty"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type writeListResponse struct {
	Items []writeResponse `json:"items"`
}

type listMutationResponse struct {
	List  todoListResponse `json:"list"`
	Write writeResponse    `json:"write"`
}

type snapshotMutationResponse struct {
	Snapshot snapshotResponse `json:"snapshot"`
	Write    writeResponse    `json:"write"`
}

type paletteResponse struct {
	Default string   `json:"default"`
	Colors  []string `json:"colors"`
}

func toTodoListResponse(list todosdomain.TodoList) todoListResponse {
	todos := make([]todoItemResponse, 0, len(list.Todos))
	for _, item := range list.Todos {
		todos = append(todos, todoItemResponse{Title: item.Title, Completed: item.Completed})
	}

	return todoListResponse{
		ID:             list.ID,
		LocalID:        list.LocalID,
		Key:            list.Key(),
		Name:           list.Name,
		Color:          string(list.Color),
		Todos:          todos,
		CompletedCount: list.CompletedCount(),
		RemainingCount: list.RemainingCount(),
		CreatedAt:      timeOrNil(list.CreatedAt),
		UpdatedAt:      timeOrNil(list.UpdatedAt),
	}
}

func toSnapshotResponse(snapshot todosdomain.Snapshot) snapshotResponse {
	lists := make([]todoListResponse, 0, len(snapshot.Lists))
	for _, list := range snapshot.Lists {
		lists = append(lists, toTodoListResponse(list))
	}
	return snapshotResponse{Version: snapshot.Version, Lists: lists}
}

func toWriteResponse(write todosdomain.Write) writeResponse {
	return writeResponse{
		ID:        write.ID,
		Kind:      string(write.Kind),
		Status:    string(write.Status),
		ListID:    write.ListID,
		LocalID:   write.LocalID,
		Attempts:  write.Attempts,
		LastError: write.LastError,
		CreatedAt: write.CreatedAt,
		UpdatedAt: write.UpdatedAt,
	}
}

func timeOrNil(value time.Time) *time.Time {
	if value.IsZero() {
		return nil
	}
	return &value
}
