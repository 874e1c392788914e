package todos

import (
	"sort"
	"time"
)

type Color string

const DefaultColor Color = "#5CD859"

var Palette = []Color{
	"#5CD859",
	"#24A6D9",
	"#595BD9",
	"#8022D9",
	"#D159D8",
	"#D85963",
	"#D88559",
}

func (c Color) Valid() bool {
	for _, candidate := range Palette {
		if candidate == c {
			return true
		}
	}
	return false
}

type TodoItem struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// TodoList is a value: reconciler functions never modify a list they receive.
type TodoList struct {
	ID        string
	LocalID   string
	OwnerID   string
	Name      string
	Color     Color
	Todos     []TodoItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the identifier intents use to address the list.
func (l TodoList) Key() string {
	if l.ID != "" {
		return l.ID
	}
	return l.LocalID
}

func (l TodoList) Matches(key string) bool {
	if key == "" {
		return false
	}
	return l.ID == key || l.LocalID == key
}

func (l TodoList) CompletedCount() int {
	count := 0
	for _, item := range l.Todos {
		if item.Completed {
			count++
		}
	}
	return count
}

func (l TodoList) RemainingCount() int {
	return len(l.Todos) - l.CompletedCount()
}

func (l TodoList) Clone() TodoList {
	cloned := l
	cloned.Todos = make([]TodoItem, len(l.Todos))
	copy(cloned.Todos, l.Todos)
	return cloned
}

func (l TodoList) hasTitle(title string) bool {
	for _, item := range l.Todos {
		if item.Title == title {
			return true
		}
	}
	return false
}

type Snapshot struct {
	OwnerID string
	Version int64
	Lists   []TodoList
}

func (s Snapshot) Find(key string) (TodoList, int, bool) {
	for i, list := range s.Lists {
		if list.Matches(key) {
			return list, i, true
		}
	}
	return TodoList{}, -1, false
}

// Clone deep-copies the lists so the caller may hand the result to readers.
func (s Snapshot) Clone() Snapshot {
	lists := make([]TodoList, 0, len(s.Lists))
	for _, list := range s.Lists {
		lists = append(lists, list.Clone())
	}
	s.Lists = lists
	return s
}

// SortLists orders lists by name, then by key.
func SortLists(lists []TodoList) {
	sort.SliceStable(lists, func(i, j int) bool {
		if lists[i].Name != lists[j].Name {
			return lists[i].Name < lists[j].Name
		}
		return lists[i].Key() < lists[j].Key()
	})
}
