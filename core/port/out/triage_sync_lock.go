package out

import (
	"context"
	"time"
)

// SyncLocker serializes syncs per connection. Overlapping syncs would race
// the credential refresh on the same refresh token, which most providers
// invalidate after first use.
type SyncLocker interface {
	// Acquire takes the lock for a connection. Returns false if another sync
	// already holds it.
	Acquire(ctx context.Context, connectionID int64, ttl time.Duration) (bool, error)

	// Release frees the lock.
	Release(ctx context.Context, connectionID int64) error
}
