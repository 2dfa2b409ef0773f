// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// =============================================================================
// Email Adapter (PostgreSQL)
// =============================================================================

// EmailAdapter implements out.EmailRepository using PostgreSQL.
type EmailAdapter struct {
	db *sqlx.DB
}

// NewEmailAdapter creates a new EmailAdapter.
func NewEmailAdapter(db *sqlx.DB) *EmailAdapter {
	return &EmailAdapter{db: db}
}

const emailSelectColumns = `
	e.id, e.user_id, e.connection_id, e.provider_message_id,
	e.sender, e.subject, e.snippet, e.received_at,
	e.is_spam, e.is_insurance_related, e.category, e.confidence,
	e.classified_by, e.raw_score, e.reasons,
	e.created_at, e.updated_at`

// emailRow represents the insurance_emails row.
type emailRow struct {
	ID                 int64          `db:"id"`
	UserID             uuid.UUID      `db:"user_id"`
	ConnectionID       int64          `db:"connection_id"`
	ProviderMessageID  string         `db:"provider_message_id"`
	Sender             string         `db:"sender"`
	Subject            string         `db:"subject"`
	Snippet            string         `db:"snippet"`
	ReceivedAt         time.Time      `db:"received_at"`
	IsSpam             bool           `db:"is_spam"`
	IsInsuranceRelated bool           `db:"is_insurance_related"`
	Category           string         `db:"category"`
	Confidence         float64        `db:"confidence"`
	ClassifiedBy       string         `db:"classified_by"`
	RawScore           int            `db:"raw_score"`
	Reasons            pq.StringArray `db:"reasons"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (r *emailRow) toDomain() *domain.StoredEmailRecord {
	return &domain.StoredEmailRecord{
		ID:                 r.ID,
		UserID:             r.UserID,
		ConnectionID:       r.ConnectionID,
		ProviderMessageID:  r.ProviderMessageID,
		Sender:             r.Sender,
		Subject:            r.Subject,
		Snippet:            r.Snippet,
		ReceivedAt:         r.ReceivedAt,
		IsSpam:             r.IsSpam,
		IsInsuranceRelated: r.IsInsuranceRelated,
		Category:           domain.EmailCategory(r.Category),
		Confidence:         r.Confidence,
		ClassifiedBy:       domain.ClassifiedBy(r.ClassifiedBy),
		RawScore:           r.RawScore,
		Reasons:            []string(r.Reasons),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// UpsertBatch writes one page of records in a single transaction, keyed on
// provider_message_id. The xmax trick distinguishes fresh inserts from
// updates: xmax is zero only for rows no transaction has ever rewritten.
func (a *EmailAdapter) UpsertBatch(ctx context.Context, records []*domain.StoredEmailRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	const query = `
		INSERT INTO insurance_emails (
			user_id, connection_id, provider_message_id,
			sender, subject, snippet, received_at,
			is_spam, is_insurance_related, category, confidence,
			classified_by, raw_score, reasons,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW()
		)
		ON CONFLICT (provider_message_id) DO UPDATE SET
			sender = EXCLUDED.sender,
			subject = EXCLUDED.subject,
			snippet = EXCLUDED.snippet,
			received_at = EXCLUDED.received_at,
			is_spam = EXCLUDED.is_spam,
			is_insurance_related = EXCLUDED.is_insurance_related,
			category = EXCLUDED.category,
			confidence = EXCLUDED.confidence,
			classified_by = EXCLUDED.classified_by,
			raw_score = EXCLUDED.raw_score,
			reasons = EXCLUDED.reasons,
			updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted`

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, apperr.Database(err, "failed to begin upsert transaction")
	}
	defer tx.Rollback()

	inserted := 0
	for _, rec := range records {
		var (
			id    int64
			fresh bool
		)
		err := tx.QueryRowxContext(ctx, query,
			rec.UserID, rec.ConnectionID, rec.ProviderMessageID,
			rec.Sender, rec.Subject, rec.Snippet, rec.ReceivedAt,
			rec.IsSpam, rec.IsInsuranceRelated, string(rec.Category), rec.Confidence,
			string(rec.ClassifiedBy), rec.RawScore, pq.Array(rec.Reasons),
		).Scan(&id, &fresh)
		if err != nil {
			return 0, apperr.Database(err, "failed to upsert email record")
		}
		rec.ID = id
		if fresh {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, apperr.Database(err, "failed to commit upsert transaction")
	}
	return inserted, nil
}

// listConditions builds the WHERE clause shared by List and Count.
func listConditions(userID string, filter *out.EmailListFilter) ([]string, []interface{}) {
	conds := []string{"e.user_id = $1"}
	args := []interface{}{userID}

	if filter.Category != nil {
		args = append(args, string(*filter.Category))
		conds = append(conds, fmt.Sprintf("e.category = $%d", len(args)))
	}
	if filter.InsuranceOnly {
		conds = append(conds, "e.is_insurance_related = TRUE")
	}
	if !filter.IncludeSpam {
		conds = append(conds, "e.is_spam = FALSE")
	}
	return conds, args
}

// List returns stored records for a user, newest received first.
func (a *EmailAdapter) List(ctx context.Context, userID string, filter *out.EmailListFilter) ([]*domain.StoredEmailRecord, error) {
	if filter == nil {
		filter = &out.EmailListFilter{}
	}

	conds, args := listConditions(userID, filter)

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`
		SELECT %s
		FROM insurance_emails e
		WHERE %s
		ORDER BY e.received_at DESC
		LIMIT $%d OFFSET $%d`,
		emailSelectColumns, strings.Join(conds, " AND "), len(args)-1, len(args))

	var rows []emailRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperr.Database(err, "failed to list email records")
	}

	records := make([]*domain.StoredEmailRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].toDomain()
	}
	return records, nil
}

// Count returns how many records match the filter, ignoring pagination.
func (a *EmailAdapter) Count(ctx context.Context, userID string, filter *out.EmailListFilter) (int64, error) {
	if filter == nil {
		filter = &out.EmailListFilter{}
	}

	conds, args := listConditions(userID, filter)
	query := fmt.Sprintf(`
		SELECT COUNT(*)
		FROM insurance_emails e
		WHERE %s`, strings.Join(conds, " AND "))

	var total int64
	if err := a.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, apperr.Database(err, "failed to count email records")
	}
	return total, nil
}

// CountByCategory returns per-category record counts for a user.
func (a *EmailAdapter) CountByCategory(ctx context.Context, userID string) (map[domain.EmailCategory]int64, error) {
	const query = `
		SELECT category, COUNT(*) AS count
		FROM insurance_emails
		WHERE user_id = $1
		GROUP BY category`

	rows, err := a.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, apperr.Database(err, "failed to count email records")
	}
	defer rows.Close()

	counts := make(map[domain.EmailCategory]int64)
	for rows.Next() {
		var (
			category string
			count    int64
		)
		if err := rows.Scan(&category, &count); err != nil {
			return nil, apperr.Database(err, "failed to scan category count")
		}
		counts[domain.EmailCategory(category)] = count
	}
	return counts, rows.Err()
}
