package domain

import (
	"time"

	"github.com/google/uuid"
)

// MailProvider identifies the mailbox provider of a connection.
type MailProvider string

const (
	ProviderGmail MailProvider = "gmail"
)

// MailConnection is a user's authorized mailbox with its credential state.
// Token fields are mutated in place when a refresh succeeds; the classifier
// never touches them.
type MailConnection struct {
	ID           int64        `json:"id"`
	UserID       uuid.UUID    `json:"user_id"`
	Provider     MailProvider `json:"provider"`
	Email        string       `json:"email"`
	AccessToken  string       `json:"-"`
	RefreshToken string       `json:"-"`
	ExpiresAt    time.Time    `json:"expires_at"`
	IsConnected  bool         `json:"is_connected"`

	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	LastSyncStatus SyncStatus `json:"last_sync_status,omitempty"`
	LastSyncError  string     `json:"last_sync_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
