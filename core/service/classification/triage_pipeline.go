package classification

import (
	"context"

	"triage_server/core/domain"

	"github.com/rs/zerolog"
)

// =============================================================================
// Classification Pipeline
// =============================================================================

// Pipeline runs the three-stage classification tree: spam pre-check, then
// deterministic keyword scoring, then the AI fallback for borderline scores
// only. Each stage short-circuits the ones below it.
//
// The pipeline is stateless and safe for concurrent use; callers that need
// per-run accounting read it off the verdicts (ClassifiedBy marks every
// stage-2 adjudication).
type Pipeline struct {
	spam     *SpamClassifier
	keywords *KeywordClassifier
	fallback *FallbackValidator
	log      zerolog.Logger
}

// NewPipeline wires the stages together. fallback may be nil, in which case
// borderline emails are rejected outright.
func NewPipeline(fallback *FallbackValidator, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		spam:     NewSpamClassifier(),
		keywords: NewKeywordClassifier(),
		fallback: fallback,
		log:      log,
	}
}

// Classify produces the final verdict for a normalized email.
func (p *Pipeline) Classify(ctx context.Context, email *domain.NormalizedEmail) *domain.Verdict {
	// Stage 0: spam pre-check.
	if isSpam, signals := p.spam.Check(email); isSpam {
		return &domain.Verdict{
			IsSpam:             true,
			IsInsuranceRelated: false,
			Category:           domain.CategorySpam,
			Confidence:         SpamConfidence,
			ClassifiedBy:       domain.ClassifiedByDeterministic,
			Reasons:            signals,
		}
	}

	// Stage 1: deterministic keyword scoring.
	result := p.keywords.Score(email)

	switch p.keywords.Outcome(result.Score) {
	case OutcomeAccept:
		return &domain.Verdict{
			IsInsuranceRelated: true,
			Category:           result.Category,
			Confidence:         AcceptConfidence(result.Score),
			ClassifiedBy:       domain.ClassifiedByDeterministic,
			RawScore:           result.Score,
			Reasons:            result.Signals,
		}

	case OutcomeReject:
		return &domain.Verdict{
			IsInsuranceRelated: false,
			Category:           domain.CategoryOther,
			Confidence:         RejectConfidence(result.Score),
			ClassifiedBy:       domain.ClassifiedByDeterministic,
			RawScore:           result.Score,
			Reasons:            result.Signals,
		}
	}

	// Stage 2: borderline, adjudicated by the fallback validator.
	var (
		isInsurance bool
		confidence  float64
	)
	if p.fallback != nil {
		isInsurance, confidence = p.fallback.Validate(ctx, email)
	}

	if isInsurance && confidence >= FallbackAcceptConfidence {
		return &domain.Verdict{
			IsInsuranceRelated: true,
			Category:           result.Category,
			Confidence:         confidence,
			ClassifiedBy:       domain.ClassifiedByAIFallback,
			RawScore:           result.Score,
			Reasons:            append(result.Signals, "fallback:accepted"),
		}
	}

	return &domain.Verdict{
		IsInsuranceRelated: false,
		Category:           domain.CategoryOther,
		Confidence:         syntheticRejectConfidence(result.Score),
		ClassifiedBy:       domain.ClassifiedByAIFallback,
		RawScore:           result.Score,
		Reasons:            append(result.Signals, "fallback:rejected"),
	}
}
