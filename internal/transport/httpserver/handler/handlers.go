package handler

import (
	todosdomain "todolist-app-go/internal/domain/todos"
	commonhandler "todolist-app-go/internal/transport/httpserver/handler/common"
	todoshandler "todolist-app-go/internal/transport/httpserver/handler/todos"
	"todolist-app-go/pkg/logger"
)

type Handlers struct {
	Common *commonhandler.Handlers
	Todos  *todoshandler.Handlers
}

func New(todos *todosdomain.Service, log logger.Logger) *Handlers {
	return &Handlers{
		Common: commonhandler.New(log),
		Todos:  todoshandler.New(todos, log),
	}
}
