package httpserver

import (
	"net/http"
	"time"

	"todolist-app-go/internal/config"
	"todolist-app-go/internal/transport/httpserver/handler"
	"todolist-app-go/internal/transport/httpserver/middleware"
	"todolist-app-go/pkg/logger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 30 * time.Second

func NewRouter(cfg config.Config, handlers *handler.Handlers, identity *middleware.Identity, log logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.NewCORS(cfg.CORSAllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Common.Health)

		r.Group(func(r chi.Router) {
			r.Use(identity.Middleware)

			// The stream outlives any request timeout.
			r.Get("/lists/stream", handlers.Todos.StreamLists)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(requestTimeout))

				r.Get("/auth/me", handlers.Common.AuthMe)
				r.Get("/palette", handlers.Todos.Palette)

				r.Get("/lists", handlers.Todos.GetLists)
				r.Post("/lists", handlers.Todos.CreateList)
				r.Patch("/lists/{list_id}", handlers.Todos.RenameList)
				r.Delete("/lists/{list_id}", handlers.Todos.DeleteList)

				r.Post("/lists/{list_id}/todos", handlers.Todos.AddTodo)
				r.Post("/lists/{list_id}/todos/{index}/toggle", handlers.Todos.ToggleTodo)
				r.Patch("/lists/{list_id}/todos/{index}", handlers.Todos.EditTodo)
				r.Delete("/lists/{list_id}/todos/{index}", handlers.Todos.DeleteTodo)

				r.Get("/writes", handlers.Todos.ListWrites)
				r.Post("/writes/{write_id}/retry", handlers.Todos.RetryWrite)
			})
		})
	})

	return r
}

func requestLogger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			log.Debug("http: request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(started).Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}
