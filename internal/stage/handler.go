// Package stage defines the contract between the workflow manager and the
// pipeline stages it drives.
package stage

import (
	"context"

	"apogee/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Prepare runs inside the claim before Execute and may mutate the item;
// Execute performs the work and sets the item's next status on success.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}
