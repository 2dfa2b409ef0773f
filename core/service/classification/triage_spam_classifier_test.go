package classification

import (
	"strings"
	"testing"

	"triage_server/core/domain"
)

func TestSpamClassifierCheck(t *testing.T) {
	tests := []struct {
		name       string
		email      *domain.NormalizedEmail
		wantSpam   bool
		wantSignal string
	}{
		{
			name: "bulk sender token",
			email: &domain.NormalizedEmail{
				Sender:  "newsletter@shopping.com",
				Subject: "This week's picks",
			},
			wantSpam:   true,
			wantSignal: "spam:bulk-sender:newsletter",
		},
		{
			name: "promo subject with percent off",
			email: &domain.NormalizedEmail{
				Sender:  "sales@store.com",
				Subject: "50% OFF everything today",
			},
			wantSpam:   true,
			wantSignal: "spam:promo-subject:% off",
		},
		{
			name: "trading vocabulary",
			email: &domain.NormalizedEmail{
				Sender:  "alerts@broker.com",
				Subject: "Your contract note for today",
			},
			wantSpam:   true,
			wantSignal: "spam:trading-term:contract note",
		},
		{
			name: "excessive exclamations",
			email: &domain.NormalizedEmail{
				Sender:  "friend@gmail.com",
				Subject: "Amazing!!!",
			},
			wantSpam:   true,
			wantSignal: "spam:exclamations",
		},
		{
			name: "uppercase shouting",
			email: &domain.NormalizedEmail{
				Sender:  "friend@gmail.com",
				Subject: "HURRY GRAB THIS DEAL",
			},
			wantSpam:   true,
			wantSignal: "spam:uppercase-shouting",
		},
		{
			name: "marketing domain label",
			email: &domain.NormalizedEmail{
				Sender:  "updates@promo.bigbrand.com",
				Subject: "New arrivals",
			},
			wantSpam:   true,
			wantSignal: "spam:marketing-domain:promo",
		},
		{
			name: "plain insurance mail passes",
			email: &domain.NormalizedEmail{
				Sender:  "service@hdfcergo.com",
				Subject: "Your policy renewal notice",
				Snippet: "Premium of Rs. 5,000 is due on 12 Sep.",
			},
			wantSpam: false,
		},
		{
			name: "short uppercase words do not count as shouting",
			email: &domain.NormalizedEmail{
				Sender:  "service@sbi.co.in",
				Subject: "LIC FYI OK",
			},
			wantSpam: false,
		},
		{
			name: "two exclamations stay under the limit",
			email: &domain.NormalizedEmail{
				Sender:  "friend@gmail.com",
				Subject: "See you there!",
				Snippet: "It was great!",
			},
			wantSpam: false,
		},
	}

	c := NewSpamClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isSpam, signals := c.Check(tt.email)
			if isSpam != tt.wantSpam {
				t.Fatalf("Check() = %v, want %v (signals %v)", isSpam, tt.wantSpam, signals)
			}
			if tt.wantSignal != "" && !containsSignal(signals, tt.wantSignal) {
				t.Errorf("signals %v missing %q", signals, tt.wantSignal)
			}
		})
	}
}

func TestSpamClassifierWordBoundaries(t *testing.T) {
	c := NewSpamClassifier()

	// "window" contains "win" and "freedom" contains "free"; neither is a
	// promo token hit.
	email := &domain.NormalizedEmail{
		Sender:  "reader@gmail.com",
		Subject: "window seat and financial freedom",
	}
	if isSpam, signals := c.Check(email); isSpam {
		t.Errorf("Check() = true (signals %v), want false", signals)
	}
}

func containsSignal(signals []string, want string) bool {
	for _, s := range signals {
		if strings.HasPrefix(s, want) {
			return true
		}
	}
	return false
}
