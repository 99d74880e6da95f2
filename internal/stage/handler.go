package stage

import (
	"context"

	"mediaferry/internal/queue"
)

// Handler describes the contract the workflow manager needs from each task
// kind. Execute runs one claimed task; the manager records the outcome.
type Handler interface {
	Execute(context.Context, *queue.Task) error
	HealthCheck(context.Context) Health
}

// Cleaner is implemented by handlers that release shared inputs once their
// task has been marked complete.
type Cleaner interface {
	Cleanup(context.Context, *queue.Task) error
}
