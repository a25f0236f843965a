package instance

import (
	"context"

	redisclient "github.com/hackgods/petcare-booking-widget/internal/redis"
)

// Store persists widget instances between requests.
type Store interface {
	Save(ctx context.Context, inst redisclient.Instance) error
	Get(ctx context.Context, id string) (*redisclient.Instance, error)
	Delete(ctx context.Context, id string) error
}
