package out

import (
	"context"

	"triage_server/core/domain"
)

// SyncReportRepository is the outbound port for sync run history.
type SyncReportRepository interface {
	// Save persists one sync run report.
	Save(ctx context.Context, report *domain.SyncReport) error

	// ListByConnection returns the most recent reports for a connection,
	// newest first.
	ListByConnection(ctx context.Context, connectionID int64, limit int) ([]*domain.SyncReport, error)
}
