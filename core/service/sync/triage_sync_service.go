// Package sync implements the mailbox ingestion run: list recent messages,
// classify each one, and store the insurance-related subset.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/classification"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// SyncWindowDays bounds how far back a run looks.
	SyncWindowDays = 10

	// PageSize is the provider list page size.
	PageSize = 100

	// MaxWorkers caps concurrent message fetches within a page.
	MaxWorkers = 5

	// lockTTL expires an abandoned lock if a run dies without releasing it.
	lockTTL = 15 * time.Minute

	reportSampleSize = 5
)

// CredentialSource supplies usable tokens for a connection.
type CredentialSource interface {
	GetConnection(ctx context.Context, connectionID int64) (*domain.MailConnection, error)
	GetOAuth2Token(ctx context.Context, connectionID int64) (*oauth2.Token, error)
}

// Service runs syncs. One run per connection at a time; the locker enforces
// it across processes.
type Service struct {
	emails      out.EmailRepository
	connections out.ConnectionRepository
	reports     out.SyncReportRepository
	provider    out.MailProviderPort
	credentials CredentialSource
	pipeline    *classification.Pipeline
	locker      out.SyncLocker
	log         zerolog.Logger
}

// NewService wires the sync service. reports may be nil; run history is then
// not persisted.
func NewService(
	emails out.EmailRepository,
	connections out.ConnectionRepository,
	reports out.SyncReportRepository,
	provider out.MailProviderPort,
	credentials CredentialSource,
	pipeline *classification.Pipeline,
	locker out.SyncLocker,
) *Service {
	return &Service{
		emails:      emails,
		connections: connections,
		reports:     reports,
		provider:    provider,
		credentials: credentials,
		pipeline:    pipeline,
		locker:      locker,
		log:         logger.With("sync"),
	}
}

// Run executes one sync for a connection.
//
// Failures before the first page return an error. Once pagination has
// started, a page failure aborts the run but keeps everything already
// stored; the outcome is then reported through SyncResult.Status rather
// than an error.
func (s *Service) Run(ctx context.Context, userID uuid.UUID, connectionID int64) (*domain.SyncResult, error) {
	acquired, err := s.locker.Acquire(ctx, connectionID, lockTTL)
	if err != nil {
		return nil, apperr.Database(err, "failed to acquire sync lock")
	}
	if !acquired {
		return nil, apperr.Conflict(apperr.CodeSyncRunning, "a sync is already running for this connection")
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), connectionID); err != nil {
			s.log.Warn().Err(err).Int64("connection_id", connectionID).Msg("failed to release sync lock")
		}
	}()

	conn, err := s.credentials.GetConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if conn.UserID != userID {
		return nil, apperr.NotFound("connection not found")
	}

	token, err := s.credentials.GetOAuth2Token(ctx, connectionID)
	if err != nil {
		s.updateStatus(ctx, connectionID, domain.SyncStatusFailed, err.Error())
		return nil, err
	}

	s.updateStatus(ctx, connectionID, domain.SyncStatusSyncing, "")

	result := &domain.SyncResult{
		ConnectionID: connectionID,
		StartedAt:    time.Now().UTC(),
	}
	after := time.Now().AddDate(0, 0, -SyncWindowDays)

	var runErr error
	pageToken := ""
	for {
		page, err := s.provider.ListMessageIDs(ctx, token, &out.ListOptions{
			After:     after,
			PageSize:  PageSize,
			PageToken: pageToken,
		})
		if err != nil {
			runErr = fmt.Errorf("list page %d: %w", result.Pages+1, err)
			break
		}

		if len(page.IDs) > 0 {
			records, skipped := s.classifyPage(ctx, userID, connectionID, token, page.IDs)
			result.Fetched += len(page.IDs)
			result.Skipped += skipped
			// Per-run accounting off the verdicts themselves: concurrent
			// runs on other connections must not bleed into these counts.
			for _, r := range records {
				if r.IsSpam {
					result.Spam++
				}
				if r.ClassifiedBy == domain.ClassifiedByAIFallback {
					result.FallbackCalls++
				}
			}

			stored := filterInsurance(records)
			if len(stored) > 0 {
				inserted, err := s.emails.UpsertBatch(ctx, stored)
				if err != nil {
					runErr = fmt.Errorf("upsert page %d: %w", result.Pages+1, err)
					break
				}
				result.Stored += len(stored)
				result.Inserted += inserted
				result.Sample = sampleRecords(result.Sample, stored)
			}
		}

		result.Pages++
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	result.Duration = time.Since(result.StartedAt)
	result.DurationMs = result.Duration.Milliseconds()

	errMsg := ""
	switch {
	case runErr == nil:
		result.Status = domain.SyncStatusCompleted
	case result.Pages > 0:
		result.Status = domain.SyncStatusPartial
		errMsg = runErr.Error()
	default:
		result.Status = domain.SyncStatusFailed
		errMsg = runErr.Error()
	}
	s.updateStatus(ctx, connectionID, result.Status, errMsg)
	s.saveReport(ctx, userID, result, errMsg)

	s.log.Info().
		Int64("connection_id", connectionID).
		Str("status", string(result.Status)).
		Int("pages", result.Pages).
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Int("inserted", result.Inserted).
		Int("spam", result.Spam).
		Int("skipped", result.Skipped).
		Int("fallback_calls", result.FallbackCalls).
		Dur("duration", result.Duration).
		Msg("sync finished")

	return result, nil
}

// classifyPage fetches and classifies one page of message ids with bounded
// concurrency. Per-message failures are skipped; the page itself never
// fails here.
func (s *Service) classifyPage(ctx context.Context, userID uuid.UUID, connectionID int64, token *oauth2.Token, ids []string) (records []*domain.StoredEmailRecord, skipped int) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		sem = make(chan struct{}, MaxWorkers)
	)

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(messageID string) {
			defer wg.Done()
			defer func() { <-sem }()

			raw, err := s.provider.GetMessage(ctx, token, messageID)
			if err != nil {
				s.log.Warn().Err(err).Str("message_id", messageID).
					Int64("connection_id", connectionID).Msg("skipping message")
				mu.Lock()
				skipped++
				mu.Unlock()
				return
			}

			email := classification.Normalize(raw)
			verdict := s.pipeline.Classify(ctx, email)
			record := domain.NewStoredEmailRecord(userID, connectionID, email, verdict)

			mu.Lock()
			records = append(records, record)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return records, skipped
}

func (s *Service) updateStatus(ctx context.Context, connectionID int64, status domain.SyncStatus, lastError string) {
	if err := s.connections.UpdateSyncStatus(ctx, connectionID, status, lastError); err != nil {
		s.log.Warn().Err(err).Int64("connection_id", connectionID).
			Str("status", string(status)).Msg("failed to update sync status")
	}
}

// saveReport persists the run history. Best effort: a report failure never
// fails the sync.
func (s *Service) saveReport(ctx context.Context, userID uuid.UUID, result *domain.SyncResult, errMsg string) {
	if s.reports == nil {
		return
	}
	report := &domain.SyncReport{
		UserID:        userID,
		ConnectionID:  result.ConnectionID,
		Status:        result.Status,
		Pages:         result.Pages,
		Fetched:       result.Fetched,
		Stored:        result.Stored,
		Inserted:      result.Inserted,
		Spam:          result.Spam,
		Skipped:       result.Skipped,
		FallbackCalls: result.FallbackCalls,
		DurationMs:    result.DurationMs,
		Error:         errMsg,
		Sample:        result.Sample,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.reports.Save(ctx, report); err != nil {
		s.log.Warn().Err(err).Int64("connection_id", result.ConnectionID).Msg("failed to save sync report")
	}
}

// filterInsurance keeps only the records worth storing.
func filterInsurance(records []*domain.StoredEmailRecord) []*domain.StoredEmailRecord {
	kept := make([]*domain.StoredEmailRecord, 0, len(records))
	for _, r := range records {
		if r.IsInsuranceRelated {
			kept = append(kept, r)
		}
	}
	return kept
}

func sampleRecords(sample, stored []*domain.StoredEmailRecord) []*domain.StoredEmailRecord {
	for _, r := range stored {
		if len(sample) >= reportSampleSize {
			break
		}
		sample = append(sample, r)
	}
	return sample
}
