package todos

import (
	"fmt"
	"strings"
)

// CreateList validates a new list. The result carries no id; the persistence
// collaborator assigns one when the create commits.
func CreateList(name string, color Color) (TodoList, error) {
	if strings.TrimSpace(name) == "" {
		return TodoList{}, ErrListNameRequired
	}
	if color == "" {
		color = DefaultColor
	}
	if !color.Valid() {
		return TodoList{}, fmt.Errorf("%w: %s", ErrInvalidColor, color)
	}

	return TodoList{
		Name:  name,
		Color: color,
		Todos: []TodoItem{},
	}, nil
}

func RenameList(list TodoList, name string) (TodoList, error) {
	if strings.TrimSpace(name) == "" {
		return list, ErrListNameRequired
	}

	next := list.Clone()
	next.Name = name
	return next, nil
}

// AddTodo prepends an item. Empty and duplicate titles are rejected and the
// input list is returned as is.
func AddTodo(list TodoList, title string) (TodoList, error) {
	if strings.TrimSpace(title) == "" {
		return list, ErrTitleRequired
	}
	if list.hasTitle(title) {
		return list, ErrDuplicateTitle
	}

	todos := make([]TodoItem, 0, len(list.Todos)+1)
	todos = append(todos, TodoItem{Title: title})
	todos = append(todos, list.Todos...)

	next := list
	next.Todos = todos
	return next, nil
}

// ToggleTodo panics when index is out of range: indexes come from a rendered
// snapshot, so a bad one is a caller bug.
func ToggleTodo(list TodoList, index int) TodoList {
	mustIndex(list, index)

	next := list.Clone()
	next.Todos[index].Completed = !next.Todos[index].Completed
	return next
}

func EditTodo(list TodoList, index int, title string) (TodoList, error) {
	mustIndex(list, index)

	if strings.TrimSpace(title) == "" {
		return list, ErrTitleRequired
	}
	for i, item := range list.Todos {
		if i != index && item.Title == title {
			return list, ErrDuplicateTitle
		}
	}

	next := list.Clone()
	next.Todos[index].Title = title
	return next, nil
}

func DeleteTodo(list TodoList, index int) TodoList {
	mustIndex(list, index)

	todos := make([]TodoItem, 0, len(list.Todos)-1)
	todos = append(todos, list.Todos[:index]...)
	todos = append(todos, list.Todos[index+1:]...)

	next := list
	next.Todos = todos
	return next
}

func mustIndex(list TodoList, index int) {
	if index < 0 || index >= len(list.Todos) {
		panic(fmt.Sprintf("todos: index %d out of range [0,%d)", index, len(list.Todos)))
	}
}
