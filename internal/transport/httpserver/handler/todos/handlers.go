package todos

import (
	"time"

	todosdomain "todolist-app-go/internal/domain/todos"
	"todolist-app-go/pkg/logger"
)

const defaultHeartbeat = 25 * time.Second

type Handlers struct {
	Todos     *todosdomain.Service
	log       logger.Logger
	heartbeat time.Duration
}

func New(todos *todosdomain.Service, log logger.Logger) *Handlers {
	return &Handlers{
		Todos:     todos,
		log:       log,
		heartbeat: defaultHeartbeat,
	}
}
