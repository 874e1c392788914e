package todos

import "fmt"

type IntentKind string

const (
	IntentCreateList IntentKind = "create_list"
	IntentDeleteList IntentKind = "delete_list"
	IntentRenameList IntentKind = "rename_list"
	IntentAddTodo    IntentKind = "add_todo"
	IntentToggleTodo IntentKind = "toggle_todo"
	IntentEditTodo   IntentKind = "edit_todo"
	IntentDeleteTodo IntentKind = "delete_todo"
)

type Intent struct {
	Kind   IntentKind
	ListID string
	Index  int
	Title  string
	Name   string
	Color  Color
}

// Apply computes the next snapshot for intent and the single write that
// persists it. On error the input snapshot is returned and write is nil.
// localID keys a newly created list until the collaborator assigns its id.
func Apply(snapshot Snapshot, intent Intent, localID string) (Snapshot, *Write, error) {
	if intent.Kind == IntentCreateList {
		list, err := CreateList(intent.Name, intent.Color)
		if err != nil {
			return snapshot, nil, err
		}
		list.OwnerID = snapshot.OwnerID
		list.LocalID = localID

		next := snapshot.with(append(cloneLists(snapshot.Lists), list))
		return next, &Write{Kind: WriteCreate, OwnerID: snapshot.OwnerID, LocalID: localID, List: list.Clone()}, nil
	}

	current, position, ok := snapshot.Find(intent.ListID)
	if !ok {
		return snapshot, nil, ErrTodoListNotFound
	}

	if intent.Kind == IntentDeleteList {
		lists := make([]TodoList, 0, len(snapshot.Lists))
		lists = append(lists, snapshot.Lists[:position]...)
		lists = append(lists, snapshot.Lists[position+1:]...)
		return snapshot.with(lists), &Write{
			Kind:    WriteDelete,
			OwnerID: snapshot.OwnerID,
			ListID:  current.ID,
			LocalID: current.LocalID,
			List:    current.Clone(),
		}, nil
	}

	switch intent.Kind {
	case IntentToggleTodo, IntentEditTodo, IntentDeleteTodo:
		if intent.Index < 0 || intent.Index >= len(current.Todos) {
			return snapshot, nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, intent.Index)
		}
	}

	var (
		updated TodoList
		err     error
	)
	switch intent.Kind {
	case IntentRenameList:
		updated, err = RenameList(current, intent.Name)
	case IntentAddTodo:
		updated, err = AddTodo(current, intent.Title)
	case IntentToggleTodo:
		updated = ToggleTodo(current, intent.Index)
	case IntentEditTodo:
		updated, err = EditTodo(current, intent.Index, intent.Title)
	case IntentDeleteTodo:
		updated = DeleteTodo(current, intent.Index)
	default:
		return snapshot, nil, fmt.Errorf("%w: %s", ErrUnknownIntent, intent.Kind)
	}
	if err != nil {
		return snapshot, nil, err
	}

	lists := cloneLists(snapshot.Lists)
	lists[position] = updated
	return snapshot.with(lists), &Write{
		Kind:    WriteUpdate,
		OwnerID: snapshot.OwnerID,
		ListID:  updated.ID,
		LocalID: updated.LocalID,
		List:    updated.Clone(),
	}, nil
}

func (s Snapshot) with(lists []TodoList) Snapshot {
	SortLists(lists)
	return Snapshot{
		OwnerID: s.OwnerID,
		Version: s.Version + 1,
		Lists:   lists,
	}
}

func cloneLists(lists []TodoList) []TodoList {
	result := make([]TodoList, len(lists))
	copy(result, lists)
	return result
}
