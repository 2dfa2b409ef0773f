package domain

import (
	"time"

	"github.com/google/uuid"
)

// EmailCategory is the closed set of triage categories.
type EmailCategory string

const (
	CategoryRenewal       EmailCategory = "renewal"
	CategoryClaim         EmailCategory = "claim"
	CategoryPayment       EmailCategory = "payment"
	CategoryNewPolicy     EmailCategory = "new_policy"
	CategoryLoanRepayment EmailCategory = "loan_repayment"
	CategoryGeneral       EmailCategory = "general"
	CategorySpam          EmailCategory = "spam"
	CategoryOther         EmailCategory = "other"
)

// ClassifiedBy identifies which stage produced the final verdict.
type ClassifiedBy string

const (
	ClassifiedByDeterministic ClassifiedBy = "deterministic"
	ClassifiedByAIFallback    ClassifiedBy = "ai_fallback"
)

// NormalizedEmail is the flat record extracted from a provider message.
// Immutable once built; discarded after classification unless the verdict is
// insurance-related.
type NormalizedEmail struct {
	ProviderMessageID string    `json:"provider_message_id"`
	Sender            string    `json:"sender"`
	Subject           string    `json:"subject"`
	Snippet           string    `json:"snippet"`
	ReceivedAt        time.Time `json:"received_at"`
}

// Verdict is the pure output of the classification pipeline.
//
// Invariants: IsSpam implies !IsInsuranceRelated, and ClassifiedBy is
// ai_fallback only when the deterministic score sat in the borderline band.
type Verdict struct {
	IsSpam             bool          `json:"is_spam"`
	IsInsuranceRelated bool          `json:"is_insurance_related"`
	Category           EmailCategory `json:"category"`
	Confidence         float64       `json:"confidence"`
	ClassifiedBy       ClassifiedBy  `json:"classified_by"`
	RawScore           int           `json:"raw_score"`
	Reasons            []string      `json:"reasons,omitempty"`
}

// StoredEmailRecord is the persisted join of a NormalizedEmail and its
// Verdict, keyed by ProviderMessageID. Re-syncing the same window upserts
// rather than duplicates; this is the system's sole de-duplication mechanism.
type StoredEmailRecord struct {
	ID                 int64         `json:"id"`
	UserID             uuid.UUID     `json:"user_id"`
	ConnectionID       int64         `json:"connection_id"`
	ProviderMessageID  string        `json:"provider_message_id"`
	Sender             string        `json:"sender"`
	Subject            string        `json:"subject"`
	Snippet            string        `json:"snippet"`
	ReceivedAt         time.Time     `json:"received_at"`
	IsSpam             bool          `json:"is_spam"`
	IsInsuranceRelated bool          `json:"is_insurance_related"`
	Category           EmailCategory `json:"category"`
	Confidence         float64       `json:"confidence"`
	ClassifiedBy       ClassifiedBy  `json:"classified_by"`
	RawScore           int           `json:"raw_score"`
	Reasons            []string      `json:"reasons,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// NewStoredEmailRecord joins a normalized email with its verdict.
func NewStoredEmailRecord(userID uuid.UUID, connectionID int64, email *NormalizedEmail, verdict *Verdict) *StoredEmailRecord {
	return &StoredEmailRecord{
		UserID:             userID,
		ConnectionID:       connectionID,
		ProviderMessageID:  email.ProviderMessageID,
		Sender:             email.Sender,
		Subject:            email.Subject,
		Snippet:            email.Snippet,
		ReceivedAt:         email.ReceivedAt,
		IsSpam:             verdict.IsSpam,
		IsInsuranceRelated: verdict.IsInsuranceRelated,
		Category:           verdict.Category,
		Confidence:         verdict.Confidence,
		ClassifiedBy:       verdict.ClassifiedBy,
		RawScore:           verdict.RawScore,
		Reasons:            verdict.Reasons,
	}
}
