package persistence

import (
	"context"
	"testing"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var testUserID = uuid.MustParse("9cbd4a92-3f67-4f4a-9d2e-0a1b2c3d4e5f")

func setupEmailAdapter(t *testing.T) (*EmailAdapter, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewEmailAdapter(sqlxDB), mock, func() { db.Close() }
}

func testRecord(messageID string) *domain.StoredEmailRecord {
	return &domain.StoredEmailRecord{
		UserID:             testUserID,
		ConnectionID:       1,
		ProviderMessageID:  messageID,
		Sender:             "service@licindia.com",
		Subject:            "Premium due for policy POL123456",
		Snippet:            "Your premium is due.",
		ReceivedAt:         time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		IsInsuranceRelated: true,
		Category:           domain.CategoryPayment,
		Confidence:         0.95,
		ClassifiedBy:       domain.ClassifiedByDeterministic,
		RawScore:           9,
		Reasons:            []string{"keyword:policy-number"},
	}
}

func TestUpsertBatchCountsInserts(t *testing.T) {
	adapter, mock, cleanup := setupEmailAdapter(t)
	defer cleanup()

	mock.ExpectBegin()
	// first record is new, second one updates an existing row
	mock.ExpectQuery("INSERT INTO insurance_emails").
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow(int64(10), true))
	mock.ExpectQuery("INSERT INTO insurance_emails").
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow(int64(11), false))
	mock.ExpectCommit()

	records := []*domain.StoredEmailRecord{testRecord("m1"), testRecord("m2")}
	inserted, err := adapter.UpsertBatch(context.Background(), records)
	if err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}
	if records[0].ID != 10 || records[1].ID != 11 {
		t.Errorf("record ids = %d/%d, want 10/11", records[0].ID, records[1].ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpsertBatchEmptyIsNoop(t *testing.T) {
	adapter, mock, cleanup := setupEmailAdapter(t)
	defer cleanup()

	inserted, err := adapter.UpsertBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0", inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpsertBatchRollsBackOnFailure(t *testing.T) {
	adapter, mock, cleanup := setupEmailAdapter(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO insurance_emails").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	_, err := adapter.UpsertBatch(context.Background(), []*domain.StoredEmailRecord{testRecord("m1")})
	if err == nil {
		t.Fatal("UpsertBatch() error = nil, want error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func emailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "connection_id", "provider_message_id",
		"sender", "subject", "snippet", "received_at",
		"is_spam", "is_insurance_related", "category", "confidence",
		"classified_by", "raw_score", "reasons",
		"created_at", "updated_at",
	})
}

func TestListMapsRows(t *testing.T) {
	adapter, mock, cleanup := setupEmailAdapter(t)
	defer cleanup()

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM insurance_emails").
		WithArgs(testUserID.String(), 50, 0).
		WillReturnRows(emailRows().AddRow(
			int64(1), testUserID.String(), int64(2), "m1",
			"service@licindia.com", "Premium due", "snippet", now,
			false, true, "payment", 0.95,
			"deterministic", 9, pq.StringArray{"keyword:policy-number"},
			now, now,
		))

	records, err := adapter.List(context.Background(), testUserID.String(), nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}

	r := records[0]
	if r.Category != domain.CategoryPayment {
		t.Errorf("Category = %q, want payment", r.Category)
	}
	if r.ClassifiedBy != domain.ClassifiedByDeterministic {
		t.Errorf("ClassifiedBy = %q, want deterministic", r.ClassifiedBy)
	}
	if len(r.Reasons) != 1 || r.Reasons[0] != "keyword:policy-number" {
		t.Errorf("Reasons = %v, want [keyword:policy-number]", r.Reasons)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListAppliesCategoryFilter(t *testing.T) {
	adapter, mock, cleanup := setupEmailAdapter(t)
	defer cleanup()

	category := domain.CategoryRenewal
	mock.ExpectQuery("SELECT (.+) FROM insurance_emails").
		WithArgs(testUserID.String(), "renewal", 20, 0).
		WillReturnRows(emailRows())

	_, err := adapter.List(context.Background(), testUserID.String(), &out.EmailListFilter{
		Category: &category,
		Limit:    20,
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// Count must apply the same filter as List but none of its pagination, so
// the reported total covers all matching rows, not just the current page.
func TestCountMatchesListFilter(t *testing.T) {
	adapter, mock, cleanup := setupEmailAdapter(t)
	defer cleanup()

	category := domain.CategoryRenewal
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(testUserID.String(), "renewal").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	total, err := adapter.Count(context.Background(), testUserID.String(), &out.EmailListFilter{
		Category: &category,
		Limit:    20,
		Offset:   40,
	})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCountByCategory(t *testing.T) {
	adapter, mock, cleanup := setupEmailAdapter(t)
	defer cleanup()

	mock.ExpectQuery("SELECT category, COUNT").
		WithArgs(testUserID.String()).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("renewal", int64(3)).
			AddRow("claim", int64(1)))

	counts, err := adapter.CountByCategory(context.Background(), testUserID.String())
	if err != nil {
		t.Fatalf("CountByCategory() error = %v", err)
	}
	if counts[domain.CategoryRenewal] != 3 || counts[domain.CategoryClaim] != 1 {
		t.Errorf("counts = %v, want renewal=3 claim=1", counts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
