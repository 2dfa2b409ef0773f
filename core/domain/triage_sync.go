package domain

import (
	"time"

	"github.com/google/uuid"
)

// SyncStatus tracks the outcome of the most recent sync on a connection.
type SyncStatus string

const (
	SyncStatusIdle      SyncStatus = "idle"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusPartial   SyncStatus = "partial" // pagination aborted, earlier pages kept
	SyncStatusFailed    SyncStatus = "failed"
)

// SyncResult summarizes one sync invocation. Fetched counts every message id
// the provider listed; Inserted counts records newly created by the upsert
// batch (re-synced ids update in place and are not counted twice).
type SyncResult struct {
	ConnectionID  int64         `json:"connection_id"`
	Status        SyncStatus    `json:"status"`
	Pages         int           `json:"pages"`
	Fetched       int           `json:"fetched"`
	Stored        int           `json:"stored"`
	Inserted      int           `json:"inserted"`
	Spam          int           `json:"spam"`
	Skipped       int           `json:"skipped"`
	FallbackCalls int           `json:"fallback_calls"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"-"`
	DurationMs    int64         `json:"duration_ms"`
	Sample        []*StoredEmailRecord `json:"sample,omitempty"`
}

// SyncReport is the durable record of a sync run, kept for operational
// history. Stored separately from the relational data.
type SyncReport struct {
	ID           string    `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	ConnectionID int64     `json:"connection_id"`

	Status        SyncStatus `json:"status"`
	Pages         int        `json:"pages"`
	Fetched       int        `json:"fetched"`
	Stored        int        `json:"stored"`
	Inserted      int        `json:"inserted"`
	Spam          int        `json:"spam"`
	Skipped       int        `json:"skipped"`
	FallbackCalls int        `json:"fallback_calls"`
	DurationMs    int64      `json:"duration_ms"`
	Error         string     `json:"error,omitempty"`

	Sample []*StoredEmailRecord `json:"sample,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
