package inmemory

import (
	"context"
	"errors"
	"testing"

	todosdomain "todolist-app-go/internal/domain/todos"
)

func TestTodoListStoreCRUD(t *testing.T) {
	store := NewTodoListStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "owner-1", todosdomain.TodoList{LocalID: "local-1", Name: "Work", Color: todosdomain.DefaultColor})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected an id")
	}

	lists, _ := store.ListByOwner(ctx, "owner-1")
	if len(lists) != 1 || lists[0].ID != id || lists[0].LocalID != "" || lists[0].CreatedAt.IsZero() {
		t.Fatalf("unexpected lists: %+v", lists)
	}

	update := lists[0]
	update.Name = "Office"
	update.Color = "#24A6D9"
	update.Todos = []todosdomain.TodoItem{{Title: "Ship"}}
	if err := store.Update(ctx, "owner-1", update); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	lists, _ = store.ListByOwner(ctx, "owner-1")
	if lists[0].Name != "Office" || len(lists[0].Todos) != 1 {
		t.Fatalf("expected update to apply, got %+v", lists[0])
	}
	if lists[0].Color != todosdomain.DefaultColor {
		t.Fatalf("expected color to stay fixed, got %s", lists[0].Color)
	}

	if err := store.Update(ctx, "owner-2", update); !errors.Is(err, todosdomain.ErrTodoListNotFound) {
		t.Fatalf("expected ErrTodoListNotFound for another owner, got %v", err)
	}
	if err := store.Delete(ctx, "owner-1", id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(ctx, "owner-1", id); !errors.Is(err, todosdomain.ErrTodoListNotFound) {
		t.Fatalf("expected ErrTodoListNotFound on second delete, got %v", err)
	}
}

func TestTodoListStoreWatch(t *testing.T) {
	store := NewTodoListStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var snapshots [][]todosdomain.TodoList
	if err := store.Watch(ctx, "owner-1", func(lists []todosdomain.TodoList) {
		snapshots = append(snapshots, lists)
	}); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	if _, err := store.Create(context.Background(), "owner-2", todosdomain.TodoList{Name: "Other"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(snapshots) != 0 {
		t.Fatalf("expected no snapshot for another owner")
	}

	if _, err := store.Create(context.Background(), "owner-1", todosdomain.TodoList{Name: "B"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.Create(context.Background(), "owner-1", todosdomain.TodoList{Name: "A"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if len(snapshots) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snapshots))
	}
	last := snapshots[1]
	if len(last) != 2 || last[0].Name != "A" || last[1].Name != "B" {
		t.Fatalf("expected lists ordered by name, got %+v", last)
	}
}
