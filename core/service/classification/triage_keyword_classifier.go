package classification

import (
	"regexp"
	"strings"

	"triage_server/core/domain"
)

// =============================================================================
// Deterministic Keyword Scorer (Stage 1)
// =============================================================================
//
// The weight table and the decision bands below are the tunable surface of
// the whole pipeline and a contract with downstream consumers. Change them
// together with the band constants or not at all.

// Signal weights.
const (
	weightPolicyNumber     = 5
	weightSubjectKeyword   = 2
	weightClaimTerm        = 3
	weightCurrencyDuration = 2
	weightRegulatoryPhrase = 1
	weightKnownInsurer     = 2
	weightStrongLoanPhrase = 5
	weightWeakLoanPair     = 3
)

// Decision bands on the summed score.
const (
	AcceptThreshold     = 6 // score >= 6: insurance, deterministic
	RejectThreshold     = 2 // score <= 2: not insurance, deterministic
	maxAcceptConfidence = 0.95
)

// Outcome is the band the summed score fell into.
type Outcome int

const (
	OutcomeReject Outcome = iota
	OutcomeBorderline
	OutcomeAccept
)

// policyNumberRe matches policy references: two or more uppercase letters
// followed by six or more digits (POL123456, HDFC0012345678).
var policyNumberRe = regexp.MustCompile(`[A-Z]{2,}\d{6,}`)

// currencyDurationRe matches amount-per-duration phrases such as "₹500/year"
// or "Rs. 1,200 / month".
var currencyDurationRe = regexp.MustCompile(`(?i)(₹|rs\.?|inr|\$|€|£)\s*\d[\d,]*(\.\d+)?\s*/\s*(year|yr|annum|month|mo|quarter|week)`)

// Insurance keywords scored when present in the subject.
var insuranceSubjectKeywords = []string{
	"policy", "premium", "renewal", "claim", "coverage",
	"sum assured", "insured", "insurance", "nominee", "maturity",
}

// Claim-lifecycle terms scored anywhere in the text.
var claimLifecycleTerms = []string{
	"claim", "settlement", "approval", "approved", "denied",
	"processing", "status",
}

// Regulatory and legal phrases.
var regulatoryPhrases = []string{
	"irda", "irdai", "policy document", "terms and conditions",
	"regulatory", "grievance", "ombudsman", "free look period",
}

// Known insurance providers matched against sender and body.
var knownInsurers = []string{
	"lic", "hdfc ergo", "icici lombard", "icici prudential",
	"bajaj allianz", "max life", "sbi life", "tata aig", "tata aia",
	"new india assurance", "star health", "care health", "niva bupa",
	"reliance general", "kotak life", "aditya birla health",
}

// Strong loan-repayment phrases scored only in the subject.
var strongLoanPhrases = []string{
	"loan statement", "emi alert", "loan repayment", "emi due",
	"loan account statement", "emi reminder",
}

// Weak loan terms scored when they co-occur with a statement/due/paid word.
var weakLoanTerms = []string{"loan", "emi", "installment", "repayment"}
var loanContextTerms = []string{"statement", "due", "paid", "payment", "overdue", "outstanding"}

// categoryRules is the ordered first-match-wins category table. Order is
// part of the contract: renewal outranks claim outranks new_policy outranks
// payment outranks loan_repayment.
var categoryRules = []struct {
	category domain.EmailCategory
	keywords []string
}{
	{domain.CategoryRenewal, []string{"renew", "renewal", "expiring", "expires", "expiry"}},
	{domain.CategoryClaim, []string{"claim", "settlement"}},
	{domain.CategoryNewPolicy, []string{"welcome", "new policy", "policy issued", "proposal"}},
	{domain.CategoryPayment, []string{"premium", "payment", "paid", "receipt", "due"}},
	{domain.CategoryLoanRepayment, []string{"loan", "emi"}},
}

// ScoreResult is the output of the deterministic scorer.
type ScoreResult struct {
	Score    int
	Category domain.EmailCategory
	Signals  []string
}

// KeywordClassifier is the stage-1 deterministic scorer. Pure function of
// its input; no network calls.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the stage-1 keyword scorer.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Score computes the additive relevance score and the category guess.
func (c *KeywordClassifier) Score(email *domain.NormalizedEmail) *ScoreResult {
	subject := strings.ToLower(email.Subject)
	sender := strings.ToLower(email.Sender)
	text := subject + " " + strings.ToLower(email.Snippet) + " " + sender
	combined := email.Subject + " " + email.Snippet + " " + email.Sender

	result := &ScoreResult{Category: domain.CategoryGeneral}

	if policyNumberRe.MatchString(combined) {
		result.Score += weightPolicyNumber
		result.Signals = append(result.Signals, "keyword:policy-number")
	}

	if token, ok := containsAny(subject, insuranceSubjectKeywords); ok {
		result.Score += weightSubjectKeyword
		result.Signals = append(result.Signals, "keyword:subject:"+token)
	}

	if token, ok := containsAny(text, claimLifecycleTerms); ok {
		result.Score += weightClaimTerm
		result.Signals = append(result.Signals, "keyword:claim-term:"+token)
	}

	if currencyDurationRe.MatchString(combined) {
		result.Score += weightCurrencyDuration
		result.Signals = append(result.Signals, "keyword:currency-duration")
	}

	if token, ok := containsAny(text, regulatoryPhrases); ok {
		result.Score += weightRegulatoryPhrase
		result.Signals = append(result.Signals, "keyword:regulatory:"+token)
	}

	if name, ok := containsAny(text, knownInsurers); ok {
		result.Score += weightKnownInsurer
		result.Signals = append(result.Signals, "keyword:insurer:"+name)
	}

	if phrase, ok := containsAny(subject, strongLoanPhrases); ok {
		result.Score += weightStrongLoanPhrase
		result.Signals = append(result.Signals, "keyword:loan-phrase:"+phrase)
	} else if term, ok := containsAny(text, weakLoanTerms); ok {
		if _, ok := containsAny(text, loanContextTerms); ok {
			result.Score += weightWeakLoanPair
			result.Signals = append(result.Signals, "keyword:loan-context:"+term)
		}
	}

	result.Category = guessCategory(text)
	return result
}

// Outcome maps a score onto the decision bands.
func (c *KeywordClassifier) Outcome(score int) Outcome {
	switch {
	case score >= AcceptThreshold:
		return OutcomeAccept
	case score <= RejectThreshold:
		return OutcomeReject
	default:
		return OutcomeBorderline
	}
}

// AcceptConfidence calibrates confidence for accepted scores:
// min(0.8 + 0.05*(score-6), 0.95).
func AcceptConfidence(score int) float64 {
	conf := 0.8 + 0.05*float64(score-AcceptThreshold)
	if conf > maxAcceptConfidence {
		conf = maxAcceptConfidence
	}
	return conf
}

// RejectConfidence calibrates confidence for rejected scores:
// max(0.2 - 0.05*score, 0).
func RejectConfidence(score int) float64 {
	conf := 0.2 - 0.05*float64(score)
	if conf < 0 {
		conf = 0
	}
	return conf
}

// guessCategory walks the ordered rule table, first keyword hit wins.
func guessCategory(text string) domain.EmailCategory {
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if hasWord(text, kw) {
				return rule.category
			}
		}
	}
	return domain.CategoryGeneral
}

// containsAny returns the first token present in text as a whole word.
// Substring matching alone is wrong here: "premium" contains "emi" and
// "policy" contains "lic".
func containsAny(text string, tokens []string) (string, bool) {
	for _, token := range tokens {
		if hasWord(text, token) {
			return token, true
		}
	}
	return "", false
}

// hasWord reports whether token occurs in text bounded by non-alphanumeric
// characters. Boundary checks are skipped on a side where the token itself
// starts or ends with a non-alphanumeric rune (e.g. "% off").
func hasWord(text, token string) bool {
	if token == "" {
		return false
	}
	for i := 0; i <= len(text)-len(token); {
		j := strings.Index(text[i:], token)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(token)

		beforeOK := start == 0 || !isAlnum(text[start-1]) || !isAlnum(token[0])
		afterOK := end == len(text) || !isAlnum(text[end]) || !isAlnum(token[len(token)-1])
		if beforeOK && afterOK {
			return true
		}
		i = start + 1
	}
	return false
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
