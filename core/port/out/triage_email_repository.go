package out

import (
	"context"

	"triage_server/core/domain"
)

// EmailListFilter narrows the stored-record query surface.
type EmailListFilter struct {
	Category      *domain.EmailCategory
	InsuranceOnly bool
	IncludeSpam   bool
	Limit         int
	Offset        int
}

// EmailRepository is the outbound port for stored email records.
//
// UpsertBatch conflicts on provider_message_id: re-syncing an unchanged
// window is idempotent. There is no delete; removal is a collaborator's
// concern.
type EmailRepository interface {
	// UpsertBatch writes one page worth of records and returns how many were
	// newly inserted (as opposed to updated in place).
	UpsertBatch(ctx context.Context, records []*domain.StoredEmailRecord) (inserted int, err error)

	// List returns stored records for a user, newest received first.
	List(ctx context.Context, userID string, filter *EmailListFilter) ([]*domain.StoredEmailRecord, error)

	// Count returns how many records match the filter, ignoring Limit/Offset.
	Count(ctx context.Context, userID string, filter *EmailListFilter) (int64, error)

	// CountByCategory returns per-category record counts for a user.
	CountByCategory(ctx context.Context, userID string) (map[domain.EmailCategory]int64, error)
}
