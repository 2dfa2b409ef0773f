package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"

	"github.com/jmoiron/sqlx"
)

// =============================================================================
// Connection Adapter (PostgreSQL)
// =============================================================================

// ConnectionAdapter implements out.ConnectionRepository using PostgreSQL.
type ConnectionAdapter struct {
	db *sqlx.DB
}

// NewConnectionAdapter creates a new ConnectionAdapter.
func NewConnectionAdapter(db *sqlx.DB) *ConnectionAdapter {
	return &ConnectionAdapter{db: db}
}

const connectionColumns = `
	id, user_id, provider, email, access_token, refresh_token, expires_at,
	is_connected, last_sync_at, last_sync_status, last_sync_error,
	created_at, updated_at`

// GetByID returns a connection by ID.
func (a *ConnectionAdapter) GetByID(ctx context.Context, id int64) (*out.ConnectionEntity, error) {
	var entity out.ConnectionEntity
	query := `SELECT ` + connectionColumns + ` FROM mail_connections WHERE id = $1`
	if err := a.db.GetContext(ctx, &entity, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("connection not found")
		}
		return nil, apperr.Database(err, "failed to get connection")
	}
	return &entity, nil
}

// ListByUser returns all connections for a user.
func (a *ConnectionAdapter) ListByUser(ctx context.Context, userID string) ([]*out.ConnectionEntity, error) {
	var entities []*out.ConnectionEntity
	query := `SELECT ` + connectionColumns + ` FROM mail_connections WHERE user_id = $1 ORDER BY created_at`
	if err := a.db.SelectContext(ctx, &entities, query, userID); err != nil {
		return nil, apperr.Database(err, "failed to list connections")
	}
	return entities, nil
}

// UpdateToken persists a refreshed credential set.
func (a *ConnectionAdapter) UpdateToken(ctx context.Context, id int64, accessToken, refreshToken string, expiresAt time.Time) error {
	const query = `
		UPDATE mail_connections
		SET access_token = $2, refresh_token = $3, expires_at = $4, updated_at = NOW()
		WHERE id = $1`
	if _, err := a.db.ExecContext(ctx, query, id, accessToken, refreshToken, expiresAt); err != nil {
		return apperr.Database(err, "failed to update token")
	}
	return nil
}

// MarkDisconnected flags a connection whose grant was revoked.
func (a *ConnectionAdapter) MarkDisconnected(ctx context.Context, id int64) error {
	const query = `
		UPDATE mail_connections
		SET is_connected = FALSE, updated_at = NOW()
		WHERE id = $1`
	if _, err := a.db.ExecContext(ctx, query, id); err != nil {
		return apperr.Database(err, "failed to mark connection disconnected")
	}
	return nil
}

// UpdateSyncStatus records the outcome of the latest sync. last_sync_at only
// advances on terminal states, not when a run starts.
func (a *ConnectionAdapter) UpdateSyncStatus(ctx context.Context, id int64, status domain.SyncStatus, lastError string) error {
	const query = `
		UPDATE mail_connections
		SET last_sync_status = $2,
		    last_sync_error = $3,
		    last_sync_at = CASE WHEN $2 <> 'syncing' THEN NOW() ELSE last_sync_at END,
		    updated_at = NOW()
		WHERE id = $1`
	if _, err := a.db.ExecContext(ctx, query, id, string(status), lastError); err != nil {
		return apperr.Database(err, "failed to update sync status")
	}
	return nil
}
