package notifier

import (
	"context"

	"github.com/julianstephens/routined/internal/models"
)

// RequestStore persists scheduled notification requests keyed by ID. Put
// overwrites, so one ID never maps to two requests.
type RequestStore interface {
	Put(ctx context.Context, req models.NotificationRequest) error
	// Get reports ok=false for an unknown ID.
	Get(ctx context.Context, id string) (req models.NotificationRequest, ok bool, err error)
	// Delete is a no-op for an unknown ID.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.NotificationRequest, error)
	Close() error
}
