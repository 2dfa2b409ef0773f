package out

import (
	"context"
	"time"

	"triage_server/core/domain"
)

// ConnectionRepository is the outbound port for mail connection persistence.
type ConnectionRepository interface {
	// GetByID returns a connection by ID.
	GetByID(ctx context.Context, id int64) (*ConnectionEntity, error)

	// ListByUser returns all connections for a user.
	ListByUser(ctx context.Context, userID string) ([]*ConnectionEntity, error)

	// UpdateToken persists a refreshed credential set.
	UpdateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error

	// MarkDisconnected flags a connection whose grant was revoked.
	MarkDisconnected(ctx context.Context, id int64) error

	// UpdateSyncStatus records the outcome of the latest sync.
	UpdateSyncStatus(ctx context.Context, id int64, status domain.SyncStatus, lastError string) error
}

// ConnectionEntity represents a mail connection row.
type ConnectionEntity struct {
	ID           int64      `db:"id"`
	UserID       string     `db:"user_id"`
	Provider     string     `db:"provider"`
	Email        string     `db:"email"`
	AccessToken  string     `db:"access_token"`
	RefreshToken string     `db:"refresh_token"`
	ExpiresAt    time.Time  `db:"expires_at"`
	IsConnected  bool       `db:"is_connected"`
	LastSyncAt   *time.Time `db:"last_sync_at"`
	LastStatus   string     `db:"last_sync_status"`
	LastError    string     `db:"last_sync_error"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}
