// Package classification implements the insurance triage pipeline:
// spam pre-check, deterministic keyword scoring, and the AI fallback
// validator for borderline scores.
package classification

import (
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const (
	missingSubject = "(No Subject)"
	missingSender  = "unknown"
)

// Normalize flattens a provider message into a NormalizedEmail.
//
// Headers are matched case-insensitively, first match wins. ReceivedAt comes
// from the provider's internal arrival timestamp, not the Date header: header
// dates are sender-controlled and arrive in inconsistent formats. Normalize
// never fails; absent fields get fixed defaults.
func Normalize(raw *out.RawMessage) *domain.NormalizedEmail {
	email := &domain.NormalizedEmail{
		ProviderMessageID: raw.ID,
		Sender:            missingSender,
		Subject:           missingSubject,
		Snippet:           raw.Snippet,
		ReceivedAt:        time.UnixMilli(raw.InternalDate).UTC(),
	}

	if sender := firstHeader(raw.Headers, "From"); sender != "" {
		email.Sender = sender
	}
	if subject := firstHeader(raw.Headers, "Subject"); subject != "" {
		email.Subject = subject
	}

	return email
}

// firstHeader returns the value of the first header matching name,
// case-insensitively.
func firstHeader(headers []out.RawHeader, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return strings.TrimSpace(h.Value)
		}
	}
	return ""
}
