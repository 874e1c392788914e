package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"todolist-app-go/internal/config"
	"todolist-app-go/internal/db"
	todosdomain "todolist-app-go/internal/domain/todos"
	userdomain "todolist-app-go/internal/domain/user"
	filerepo "todolist-app-go/internal/repository/file"
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

const drainTimeout = 5 * time.Second

type App struct {
	cfg        config.Config
	log        logger.Logger
	httpServer *http.Server
	db         *gorm.DB
	todos      *todosdomain.Service
	queue      *todosdomain.Queue
	closers    []func() error

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(log logger.Logger) (*App, error) {
	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, log: log}

	log.Info("app: initializing store", "driver", cfg.Store.Driver)
	repo, profiles, err := a.openStore()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.queue = todosdomain.NewQueue(repo, todosdomain.QueueConfig{
		MaxAttempts:        cfg.Sync.MaxAttempts,
		RetryInterval:      cfg.Sync.RetryInterval,
		CommittedRetention: cfg.Sync.CommittedRetention,
	}, log.With("component", "queue"))
	a.todos = todosdomain.NewService(repo, a.queue, log)

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.queue.Run(ctx)
	}()

	log.Info("app: initializing router")
	identity := middleware.NewIdentity(cfg.Auth, inmemory.NewTokenCache(), userdomain.NewService(profiles), log)
	router := httpserver.NewRouter(cfg, handler.New(a.todos, log), identity, log)

	log.Info("app: initializing http server")
	a.httpServer = httpserver.New(cfg, router)

	return a, nil
}

func (a *App) openStore() (todosdomain.Repository, userdomain.Repository, error) {
	switch a.cfg.Store.Driver {
	case config.StoreDriverPostgres:
		dbConn, err := db.NewPostgres(a.cfg.DB, a.log)
		if err != nil {
			return nil, nil, err
		}
		a.db = dbConn

		applied, err := db.Migrate(dbConn, a.log)
		if err != nil {
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		a.log.Info("db: migrations applied", "count", applied)

		repo := todosrepo.NewPostgres(dbConn, func(ctx context.Context) (*pgx.Conn, error) {
			return db.NewListener(ctx, a.cfg.DB)
		}, a.log)
		a.closers = append(a.closers, func() error {
			repo.Close()
			return nil
		})
		return repo, userrepo.NewPostgres(dbConn), nil

	case config.StoreDriverFile:
		store, err := filerepo.New(a.cfg.Store.FilePath, a.log)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, inmemory.NewProfileStore(), nil

	case config.StoreDriverMemory:
		return inmemory.NewTodoListStore(), inmemory.NewProfileStore(), nil
	}

	return nil, nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

// Close stops the write queue, gives pending writes one last pass and
// releases the store. Writes that still have not settled are lost.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
		a.wg.Wait()

		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		settled := a.queue.Flush(ctx)
		cancel()
		a.log.Info("app: write queue drained", "settled", settled)
	}
	if a.todos != nil {
		a.todos.Close()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	if a.db != nil {
		sqlDB, err := a.db.DB()
		if err != nil {
			errs = append(errs, err)
		} else if err := sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
