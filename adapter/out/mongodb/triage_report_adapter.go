// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"triage_server/core/domain"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Sync Report Adapter
// =============================================================================

const (
	collectionSyncReports = "sync_reports"

	// reportTTL expires old run history automatically.
	reportTTL = 90 * 24 * time.Hour
)

// ReportAdapter implements out.SyncReportRepository using MongoDB.
type ReportAdapter struct {
	collection *mongo.Collection
}

// NewReportAdapter creates a new MongoDB sync report adapter.
func NewReportAdapter(db *mongo.Database) *ReportAdapter {
	return &ReportAdapter{
		collection: db.Collection(collectionSyncReports),
	}
}

// EnsureIndexes creates the collection indexes.
func (a *ReportAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "connection_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// =============================================================================
// Document Model
// =============================================================================

type sampleDocument struct {
	ProviderMessageID string  `bson:"provider_message_id"`
	Sender            string  `bson:"sender"`
	Subject           string  `bson:"subject"`
	Category          string  `bson:"category"`
	Confidence        float64 `bson:"confidence"`
	ClassifiedBy      string  `bson:"classified_by"`
}

type reportDocument struct {
	ObjectID     primitive.ObjectID `bson:"_id,omitempty"`
	UserID       string             `bson:"user_id"`
	ConnectionID int64              `bson:"connection_id"`

	Status        string `bson:"status"`
	Pages         int    `bson:"pages"`
	Fetched       int    `bson:"fetched"`
	Stored        int    `bson:"stored"`
	Inserted      int    `bson:"inserted"`
	Spam          int    `bson:"spam"`
	Skipped       int    `bson:"skipped"`
	FallbackCalls int    `bson:"fallback_calls"`
	DurationMs    int64  `bson:"duration_ms"`
	Error         string `bson:"error,omitempty"`

	Sample []sampleDocument `bson:"sample,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// Save persists one sync run report.
func (a *ReportAdapter) Save(ctx context.Context, report *domain.SyncReport) error {
	doc := toDocument(report)
	res, err := a.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to save sync report: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		report.ID = oid.Hex()
	}
	return nil
}

// ListByConnection returns the most recent reports for a connection, newest
// first.
func (a *ReportAdapter) ListByConnection(ctx context.Context, connectionID int64, limit int) ([]*domain.SyncReport, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{"connection_id": connectionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync reports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode sync reports: %w", err)
	}

	reports := make([]*domain.SyncReport, len(docs))
	for i := range docs {
		reports[i] = toDomainReport(&docs[i])
	}
	return reports, nil
}

func toDocument(report *domain.SyncReport) *reportDocument {
	createdAt := report.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	doc := &reportDocument{
		UserID:        report.UserID.String(),
		ConnectionID:  report.ConnectionID,
		Status:        string(report.Status),
		Pages:         report.Pages,
		Fetched:       report.Fetched,
		Stored:        report.Stored,
		Inserted:      report.Inserted,
		Spam:          report.Spam,
		Skipped:       report.Skipped,
		FallbackCalls: report.FallbackCalls,
		DurationMs:    report.DurationMs,
		Error:         report.Error,
		CreatedAt:     createdAt,
		ExpiresAt:     createdAt.Add(reportTTL),
	}
	for _, s := range report.Sample {
		doc.Sample = append(doc.Sample, sampleDocument{
			ProviderMessageID: s.ProviderMessageID,
			Sender:            s.Sender,
			Subject:           s.Subject,
			Category:          string(s.Category),
			Confidence:        s.Confidence,
			ClassifiedBy:      string(s.ClassifiedBy),
		})
	}
	return doc
}

func toDomainReport(doc *reportDocument) *domain.SyncReport {
	userID, _ := uuid.Parse(doc.UserID)
	report := &domain.SyncReport{
		ID:            doc.ObjectID.Hex(),
		UserID:        userID,
		ConnectionID:  doc.ConnectionID,
		Status:        domain.SyncStatus(doc.Status),
		Pages:         doc.Pages,
		Fetched:       doc.Fetched,
		Stored:        doc.Stored,
		Inserted:      doc.Inserted,
		Spam:          doc.Spam,
		Skipped:       doc.Skipped,
		FallbackCalls: doc.FallbackCalls,
		DurationMs:    doc.DurationMs,
		Error:         doc.Error,
		CreatedAt:     doc.CreatedAt,
	}
	for _, s := range doc.Sample {
		report.Sample = append(report.Sample, &domain.StoredEmailRecord{
			ProviderMessageID: s.ProviderMessageID,
			Sender:            s.Sender,
			Subject:           s.Subject,
			Category:          domain.EmailCategory(s.Category),
			Confidence:        s.Confidence,
			ClassifiedBy:      domain.ClassifiedBy(s.ClassifiedBy),
		})
	}
	return report
}
