//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"todolist-app-go/internal/config"
	"todolist-app-go/internal/db"
	todosdomain "todolist-app-go/internal/domain/todos"
	userdomain "todolist-app-go/internal/domain/user"
	"todolist-app-go/internal/repository/inmemory"
	todosrepo "todolist-app-go/internal/repository/postgres/todos"
	userrepo "todolist-app-go/internal/repository/postgres/user"
	"todolist-app-go/internal/transport/httpserver"
	"todolist-app-go/internal/transport/httpserver/handler"
	"todolist-app-go/internal/transport/httpserver/middleware"
	"todolist-app-go/pkg/logger"

	"github.com/jackc/pgx/v5"
	"gorm.io/gorm"
)

// instance is one running server process against the shared database.
type instance struct {
	server *httptest.Server
	repo   *todosrepo.PostgresRepository
	todos  *todosdomain.Service
	cancel context.CancelFunc
	done   chan struct{}
}

type testEnv struct {
	cfg        config.Config
	authServer *httptest.Server
	db         *gorm.DB
	instances  []*instance
}

func setupE2E(t *testing.T) *testEnv {
	t.Helper()

	dsn := os.Getenv("E2E_DB_DSN")
	if dsn == "" {
		t.Skip("E2E_DB_DSN not set; skipping e2e tests")
	}

	authServer := newAuthServer(t)
	cfg := config.Config{
		CORSAllowedOrigins: []string{"*"},
		DB:                 config.DBConfig{DSN: dsn},
		Auth: config.AuthConfig{
			URL:            authServer.URL,
			PublishableKey: "test-key",
			Timeout:        2 * time.Second,
			AllowAnonymous: true,
			TokenCacheTTL:  time.Minute,
		},
		Sync: config.SyncConfig{MaxAttempts: 3, RetryInterval: 50 * time.Millisecond},
	}

	log := logger.Discard()
	dbConn, err := db.NewPostgres(cfg.DB, log)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	if _, err := db.Migrate(dbConn, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := cleanDB(dbConn); err != nil {
		t.Fatalf("clean db: %v", err)
	}

	env := &testEnv{cfg: cfg, authServer: authServer, db: dbConn}
	t.Cleanup(env.Close)
	return env
}

func (e *testEnv) start(t *testing.T) *instance {
	t.Helper()

	log := logger.Discard()
	repo := todosrepo.NewPostgres(e.db, func(ctx context.Context) (*pgx.Conn, error) {
		return db.NewListener(ctx, e.cfg.DB)
	}, log)
	queue := todosdomain.NewQueue(repo, todosdomain.QueueConfig{
		MaxAttempts:   e.cfg.Sync.MaxAttempts,
		RetryInterval: e.cfg.Sync.RetryInterval,
	}, log)
	todos := todosdomain.NewService(repo, queue, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		queue.Run(ctx)
	}()

	profiles := userdomain.NewService(userrepo.NewPostgres(e.db))
	identity := middleware.NewIdentity(e.cfg.Auth, inmemory.NewTokenCache(), profiles, log)
	router := httpserver.NewRouter(e.cfg, handler.New(todos, log), identity, log)

	inst := &instance{server: httptest.NewServer(router), repo: repo, todos: todos, cancel: cancel, done: done}
	e.instances = append(e.instances, inst)
	return inst
}

func (e *testEnv) Close() {
	for _, inst := range e.instances {
		inst.server.Close()
		inst.cancel()
		<-inst.done
		inst.todos.Close()
		inst.repo.Close()
	}
	e.authServer.Close()
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if token == "" || token == "revoked" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    token,
			"email": token + "@example.com",
			"user_metadata": map[string]interface{}{
				"name":       "User " + token,
				"avatar_url": "https://example.com/avatar.png",
			},
		})
	}))
}

func cleanDB(dbConn *gorm.DB) error {
	return dbConn.WithContext(context.Background()).Exec(
		"TRUNCATE TABLE todo_lists, owner_profiles",
	).Error
}

func requestJSON(t *testing.T, method, url, token string, payload interface{}) (*http.Response, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return resp, respBody
}

type listResponse struct {
	ID      string `json:"id"`
	LocalID string `json:"local_id"`
	Name    string `json:"name"`
	Todos   []struct {
		Title     string `json:"title"`
		Completed bool   `json:"completed"`
	} `json:"todos"`
}

type snapshotResponse struct {
	Version int64          `json:"version"`
	Lists   []listResponse `json:"lists"`
}

type writeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func getLists(t *testing.T, inst *instance, token string) snapshotResponse {
	t.Helper()
	resp, body := requestJSON(t, http.MethodGet, inst.server.URL+"/api/lists", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get lists: expected 200, got %d: %s", resp.StatusCode, body)
	}
	var snapshot snapshotResponse
	if err := json.Unmarshal(body, &snapshot); err != nil {
		t.Fatalf("decode lists: %v", err)
	}
	return snapshot
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestCreateListCommitsAndReachesOtherInstance(t *testing.T) {
	env := setupE2E(t)
	first := env.start(t)
	second := env.start(t)

	// Open the owner on the second instance so it is listening before the write.
	if got := getLists(t, second, "alice"); len(got.Lists) != 0 {
		t.Fatalf("expected no lists, got %+v", got.Lists)
	}

	resp, body := requestJSON(t, http.MethodPost, first.server.URL+"/api/lists", "alice", map[string]string{"name": "Groceries"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create list: expected 201, got %d: %s", resp.StatusCode, body)
	}
	var created struct {
		List  listResponse  `json:"list"`
		Write writeResponse `json:"write"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}

	waitFor(t, "create to commit", func() bool {
		snapshot := getLists(t, first, "alice")
		return len(snapshot.Lists) == 1 && snapshot.Lists[0].ID != ""
	})
	committed := getLists(t, first, "alice").Lists[0]
	if committed.LocalID != created.List.LocalID {
		t.Fatalf("expected local id to survive the commit, got %+v", committed)
	}

	waitFor(t, "second instance to see the list", func() bool {
		snapshot := getLists(t, second, "alice")
		return len(snapshot.Lists) == 1 && snapshot.Lists[0].ID == committed.ID
	})

	resp, body = requestJSON(t, http.MethodPost, second.server.URL+"/api/lists/"+committed.ID+"/todos", "alice", map[string]string{"title": "Milk"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add todo: expected 200, got %d: %s", resp.StatusCode, body)
	}

	waitFor(t, "first instance to see the todo", func() bool {
		snapshot := getLists(t, first, "alice")
		return len(snapshot.Lists) == 1 && len(snapshot.Lists[0].Todos) == 1
	})
}

func TestOwnersAndProfiles(t *testing.T) {
	env := setupE2E(t)
	inst := env.start(t)

	resp, _ := requestJSON(t, http.MethodPost, inst.server.URL+"/api/lists", "alice", map[string]string{"name": "Private"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create list: expected 201, got %d", resp.StatusCode)
	}
	waitFor(t, "create to commit", func() bool {
		snapshot := getLists(t, inst, "alice")
		return len(snapshot.Lists) == 1 && snapshot.Lists[0].ID != ""
	})

	if snapshot := getLists(t, inst, "bob"); len(snapshot.Lists) != 0 {
		t.Fatalf("expected bob to see nothing, got %+v", snapshot.Lists)
	}

	resp, _ = requestJSON(t, http.MethodGet, inst.server.URL+"/api/lists", "revoked", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a rejected token, got %d", resp.StatusCode)
	}

	var count int64
	if err := env.db.Table("owner_profiles").Where("user_id IN ?", []string{"alice", "bob"}).Count(&count).Error; err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 profiles, got %d", count)
	}
}

func TestDeletedListStaysDeleted(t *testing.T) {
	env := setupE2E(t)
	inst := env.start(t)

	requestJSON(t, http.MethodPost, inst.server.URL+"/api/lists", "carol", map[string]string{"name": "Temp"})
	waitFor(t, "create to commit", func() bool {
		snapshot := getLists(t, inst, "carol")
		return len(snapshot.Lists) == 1 && snapshot.Lists[0].ID != ""
	})
	listID := getLists(t, inst, "carol").Lists[0].ID

	resp, body := requestJSON(t, http.MethodDelete, inst.server.URL+"/api/lists/"+listID, "carol", nil)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("delete: expected 202, got %d: %s", resp.StatusCode, body)
	}

	waitFor(t, "delete to commit", func() bool {
		_, body := requestJSON(t, http.MethodGet, inst.server.URL+"/api/writes?status=pending", "carol", nil)
		var writes struct {
			Items []writeResponse `json:"items"`
		}
		return json.Unmarshal(body, &writes) == nil && len(writes.Items) == 0
	})

	var remaining int64
	if err := env.db.Table("todo_lists").Where("id = ? AND deleted_at IS NULL", listID).Count(&remaining).Error; err != nil {
		t.Fatalf("count lists: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected list to be soft deleted")
	}
	if snapshot := getLists(t, inst, "carol"); len(snapshot.Lists) != 0 {
		t.Fatalf("expected no lists, got %+v", snapshot.Lists)
	}
}
