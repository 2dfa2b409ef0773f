package classification

import (
	"context"
	"fmt"
	"time"

	"triage_server/core/domain"
	"triage_server/pkg/jsonx"

	"github.com/rs/zerolog"
)

// =============================================================================
// AI Fallback Validator (Stage 2)
// =============================================================================

const (
	// FallbackAcceptConfidence is the minimum model confidence honored as an
	// insurance-positive verdict.
	FallbackAcceptConfidence = 0.7

	// DefaultFallbackTimeout bounds the model round-trip. A timeout is a
	// rejection, like every other fallback failure.
	DefaultFallbackTimeout = 12 * time.Second

	maxRejectConfidence = 0.3
)

const fallbackSystemPrompt = `You classify emails for an insurance mailbox assistant.
Decide whether the email is related to insurance (policies, premiums, renewals, claims, coverage) or to insurance-linked loan repayment.
Respond with JSON only, exactly this shape:
{"is_insurance": true|false, "confidence": 0.0-1.0}`

// CompletionClient is the slice of the LLM client the validator needs.
type CompletionClient interface {
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// fallbackPayload is the only thing allowed across the model trust boundary.
// Free-text reasoning in the response is discarded.
type fallbackPayload struct {
	IsInsurance bool    `json:"is_insurance"`
	Confidence  float64 `json:"confidence"`
}

// FallbackValidator adjudicates borderline scores with a constrained model
// call. It never retries and never returns an error: any network failure,
// malformed response, or timeout is a rejection.
type FallbackValidator struct {
	client  CompletionClient
	timeout time.Duration
	log     zerolog.Logger
}

// NewFallbackValidator creates a validator. timeout <= 0 uses the default.
func NewFallbackValidator(client CompletionClient, timeout time.Duration, log zerolog.Logger) *FallbackValidator {
	if timeout <= 0 {
		timeout = DefaultFallbackTimeout
	}
	return &FallbackValidator{
		client:  client,
		timeout: timeout,
		log:     log,
	}
}

// Validate returns the model's verdict pair, or (false, 0) on any failure.
func (v *FallbackValidator) Validate(ctx context.Context, email *domain.NormalizedEmail) (isInsurance bool, confidence float64) {
	if v.client == nil {
		return false, 0
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	userPrompt := fmt.Sprintf("From: %s\nSubject: %s\nSnippet: %s", email.Sender, email.Subject, email.Snippet)

	resp, err := v.client.CompleteWithSystem(ctx, fallbackSystemPrompt, userPrompt)
	if err != nil {
		v.log.Warn().Err(err).Str("message_id", email.ProviderMessageID).
			Msg("fallback call failed, treating as rejection")
		return false, 0
	}

	var payload fallbackPayload
	if err := jsonx.ExtractObject(resp, &payload); err != nil {
		v.log.Warn().Err(err).Str("message_id", email.ProviderMessageID).
			Msg("fallback response unparseable, treating as rejection")
		return false, 0
	}

	return payload.IsInsurance, payload.Confidence
}

// syntheticRejectConfidence is the confidence assigned when the fallback
// rejects a borderline email: min(score*0.1, 0.3).
func syntheticRejectConfidence(score int) float64 {
	conf := float64(score) * 0.1
	if conf > maxRejectConfidence {
		conf = maxRejectConfidence
	}
	return conf
}
