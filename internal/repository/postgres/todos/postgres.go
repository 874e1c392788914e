package todos

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	todosdomain "todolist-app-go/internal/domain/todos"
	"todolist-app-go/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	notifyChannel      = "todo_lists_changed"
	reconnectInterval  = time.Second
	invalidTextRepCode = "22P02"
)

// ListenFunc opens a dedicated connection for LISTEN.
type ListenFunc func(ctx context.Context) (*pgx.Conn, error)

type todoListRow struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	OwnerID   string         `gorm:"type:text;not null"`
	Name      string         `gorm:"type:text;not null"`
	Color     string         `gorm:"type:text;not null"`
	Todos     todoItems      `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (todoListRow) TableName() string {
	return "todo_lists"
}

// todoItems is stored as a jsonb array so a list keeps its document shape.
type todoItems []todosdomain.TodoItem

func (t todoItems) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]todosdomain.TodoItem(t))
}

func (t *todoItems) Scan(src interface{}) error {
	var data []byte
	switch value := src.(type) {
	case nil:
		*t = todoItems{}
		return nil
	case []byte:
		data = value
	case string:
		data = []byte(value)
	default:
		return fmt.Errorf("scan todos: unsupported type %T", src)
	}

	var items []todosdomain.TodoItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("scan todos: %w", err)
	}
	if items == nil {
		items = []todosdomain.TodoItem{}
	}
	*t = items
	return nil
}

type PostgresRepository struct {
	db      *gorm.DB
	connect ListenFunc
	log     logger.Logger

	mu          sync.Mutex
	watchers    map[string]map[int]func([]todosdomain.TodoList)
	nextWatcher int
	listening   bool
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewPostgres(db *gorm.DB, connect ListenFunc, log logger.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:       db,
		connect:  connect,
		log:      log,
		watchers: make(map[string]map[int]func([]todosdomain.TodoList)),
	}
}

func (r *PostgresRepository) Create(ctx context.Context, ownerID string, list todosdomain.TodoList) (string, error) {
	row := todoListRow{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Name:    list.Name,
		Color:   string(list.Color),
		Todos:   todoItems(list.Clone().Todos),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", classify(err)
	}
	return row.ID, nil
}

func (r *PostgresRepository) Update(ctx context.Context, ownerID string, list todosdomain.TodoList) error {
	result := r.db.WithContext(ctx).
		Model(&todoListRow{}).
		Where("id = ? AND owner_id = ?", list.ID, ownerID).
		Updates(map[string]interface{}{
			"name":       list.Name,
			"todos":      todoItems(list.Clone().Todos),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return todosdomain.ErrTodoListNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, listID string) error {
	result := r.db.WithContext(ctx).Delete(&todoListRow{}, "id = ? AND owner_id = ?", listID, ownerID)
	if result.Error != nil {
		return classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return todosdomain.ErrTodoListNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]todosdomain.TodoList, error) {
	var rows []todoListRow
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("name asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	lists := make([]todosdomain.TodoList, 0, len(rows))
	for _, row := range rows {
		lists = append(lists, row.toDomain())
	}
	return lists, nil
}

// Watch subscribes onSnapshot to the owner's lists. The first call opens the
// LISTEN connection; it stays open until Close.
func (r *PostgresRepository) Watch(ctx context.Context, ownerID string, onSnapshot func([]todosdomain.TodoList)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.listening {
		if r.connect == nil {
			return errors.New("watch: listener not configured")
		}
		conn, err := r.listen(ctx)
		if err != nil {
			return err
		}

		listenCtx, cancel := context.WithCancel(context.Background())
		r.cancel = cancel
		r.done = make(chan struct{})
		r.listening = true
		go r.listenLoop(listenCtx, conn)
	}

	id := r.nextWatcher
	r.nextWatcher++
	if r.watchers[ownerID] == nil {
		r.watchers[ownerID] = make(map[int]func([]todosdomain.TodoList))
	}
	r.watchers[ownerID][id] = onSnapshot

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers[ownerID], id)
		if len(r.watchers[ownerID]) == 0 {
			delete(r.watchers, ownerID)
		}
		r.mu.Unlock()
	}()

	return nil
}

// Close stops the LISTEN loop and waits for it to exit.
func (r *PostgresRepository) Close() {
	r.mu.Lock()
	if !r.listening {
		r.mu.Unlock()
		return
	}
	r.listening = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()
	<-done
}

func (r *PostgresRepository) listen(ctx context.Context) (*pgx.Conn, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}
	return conn, nil
}

func (r *PostgresRepository) listenLoop(ctx context.Context, conn *pgx.Conn) {
	defer close(r.done)

	for {
		err := r.receive(ctx, conn)
		_ = conn.Close(context.Background())
		if ctx.Err() != nil {
			return
		}
		r.log.Warn("todos.listen: connection lost", "err", err)

		conn = r.reconnect(ctx)
		if conn == nil {
			return
		}
		// Notifications sent while disconnected are gone.
		r.publishAll(ctx)
	}
}

func (r *PostgresRepository) receive(ctx context.Context, conn *pgx.Conn) error {
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		r.publish(ctx, notification.Payload)
	}
}

func (r *PostgresRepository) reconnect(ctx context.Context) *pgx.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectInterval):
		}

		conn, err := r.listen(ctx)
		if err == nil {
			r.log.Info("todos.listen: reconnected")
			return conn
		}
		r.log.Warn("todos.listen: reconnect failed", "err", err)
	}
}

func (r *PostgresRepository) publishAll(ctx context.Context) {
	r.mu.Lock()
	owners := make([]string, 0, len(r.watchers))
	for ownerID := range r.watchers {
		owners = append(owners, ownerID)
	}
	r.mu.Unlock()

	for _, ownerID := range owners {
		r.publish(ctx, ownerID)
	}
}

func (r *PostgresRepository) publish(ctx context.Context, ownerID string) {
	r.mu.Lock()
	watchers := make([]func([]todosdomain.TodoList), 0, len(r.watchers[ownerID]))
	for _, fn := range r.watchers[ownerID] {
		watchers = append(watchers, fn)
	}
	r.mu.Unlock()
	if len(watchers) == 0 {
		return
	}

	lists, err := r.ListByOwner(ctx, ownerID)
	if err != nil {
		r.log.InternalError("todos.listen: load lists failed", err, "owner_id", ownerID)
		return
	}

	for _, fn := range watchers {
		snapshot := make([]todosdomain.TodoList, len(lists))
		for i, list := range lists {
			snapshot[i] = list.Clone()
		}
		fn(snapshot)
	}
}

func (row todoListRow) toDomain() todosdomain.TodoList {
	todos := []todosdomain.TodoItem(row.Todos)
	if todos == nil {
		todos = []todosdomain.TodoItem{}
	}
	return todosdomain.TodoList{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Name:      row.Name,
		Color:     todosdomain.Color(row.Color),
		Todos:     todos,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// classify maps a malformed list id to ErrTodoListNotFound so the write
// queue does not retry it.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepCode {
		return fmt.Errorf("%w: %s", todosdomain.ErrTodoListNotFound, pgErr.Message)
	}
	return err
}
