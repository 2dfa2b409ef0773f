package classification

import (
	"regexp"
	"strings"

	"triage_server/core/domain"
)

// =============================================================================
// Spam Pre-Check (Stage 0)
// =============================================================================

// SpamConfidence is the fixed confidence assigned to every spam verdict.
const SpamConfidence = 0.95

// Bulk-sender tokens checked against the sender address.
var bulkSenderTokens = []string{
	"noreply", "no-reply", "donotreply", "promo", "promotions",
	"marketing", "newsletter", "offers", "deals", "bulk",
}

// Promotional vocabulary checked against the subject.
var promoSubjectTokens = []string{
	"free", "win", "winner", "limited time", "exclusive offer",
	"discount", "% off", "sale ends", "act now", "congratulations",
	"cashback", "voucher", "coupon",
}

// Finance/trading vocabulary explicitly excluded from the insurance domain.
// Not malicious spam, but folded into the spam path so it is never stored.
var tradingTokens = []string{
	"demat", "stock market", "intraday", "contract note", "trading account",
	"equity delivery", "brokerage", "nse", "bse", "ipo allotment",
	"mutual fund nav", "share market", "f&o", "derivatives",
}

// Sender-domain labels that mark bulk marketing infrastructure.
var marketingDomainLabels = map[string]bool{
	"marketing": true,
	"promo":     true,
	"promos":    true,
	"offers":    true,
	"info":      true,
}

var senderDomainRe = regexp.MustCompile(`@([A-Za-z0-9.-]+)`)

const (
	spamExclamationLimit = 3 // total '!' across subject+snippet
	spamShoutWordLimit   = 3 // all-uppercase words of shoutWordMinLen+
	shoutWordMinLen      = 4
)

// SpamClassifier is the stage-0 pre-check. A hit short-circuits the whole
// pipeline: the verdict is spam with fixed confidence and the keyword scorer
// never runs.
type SpamClassifier struct{}

// NewSpamClassifier creates the stage-0 spam classifier.
func NewSpamClassifier() *SpamClassifier {
	return &SpamClassifier{}
}

// Check reports whether the email trips the spam pre-check, with the matched
// signals.
func (c *SpamClassifier) Check(email *domain.NormalizedEmail) (bool, []string) {
	var signals []string

	sender := strings.ToLower(email.Sender)
	subject := strings.ToLower(email.Subject)
	body := subject + " " + strings.ToLower(email.Snippet)

	if token, ok := containsAny(sender, bulkSenderTokens); ok {
		signals = append(signals, "spam:bulk-sender:"+token)
	}

	if token, ok := containsAny(subject, promoSubjectTokens); ok {
		signals = append(signals, "spam:promo-subject:"+token)
	}

	if token, ok := containsAny(body, tradingTokens); ok {
		signals = append(signals, "spam:trading-term:"+token)
	}

	if n := strings.Count(email.Subject+email.Snippet, "!"); n >= spamExclamationLimit {
		signals = append(signals, "spam:exclamations")
	}

	if countShoutWords(email.Subject+" "+email.Snippet) >= spamShoutWordLimit {
		signals = append(signals, "spam:uppercase-shouting")
	}

	if label, ok := marketingSenderDomain(sender); ok {
		signals = append(signals, "spam:marketing-domain:"+label)
	}

	return len(signals) > 0, signals
}

// countShoutWords counts all-uppercase words of at least shoutWordMinLen
// letters.
func countShoutWords(text string) int {
	count := 0
	for _, word := range strings.Fields(text) {
		word = strings.Trim(word, "!?.,:;\"'()")
		if len(word) < shoutWordMinLen {
			continue
		}
		hasLetter := false
		upper := true
		for _, r := range word {
			if r >= 'a' && r <= 'z' {
				upper = false
				break
			}
			if r >= 'A' && r <= 'Z' {
				hasLetter = true
			}
		}
		if upper && hasLetter {
			count++
		}
	}
	return count
}

// marketingSenderDomain reports whether any label of the sender's domain is
// marketing infrastructure (e.g. promo.example.com, news@marketing.foo.in).
func marketingSenderDomain(sender string) (string, bool) {
	m := senderDomainRe.FindStringSubmatch(sender)
	if m == nil {
		return "", false
	}
	for _, label := range strings.Split(m[1], ".") {
		if marketingDomainLabels[label] {
			return label, true
		}
	}
	return "", false
}
