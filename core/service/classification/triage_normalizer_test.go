package classification

import (
	"testing"
	"time"

	"triage_server/core/port/out"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name        string
		raw         *out.RawMessage
		wantSender  string
		wantSubject string
	}{
		{
			name: "full headers",
			raw: &out.RawMessage{
				ID:           "m1",
				Snippet:      "your policy is due",
				InternalDate: 1700000000000,
				Headers: []out.RawHeader{
					{Name: "From", Value: "LIC <noreply@licindia.com>"},
					{Name: "Subject", Value: "Premium due"},
				},
			},
			wantSender:  "LIC <noreply@licindia.com>",
			wantSubject: "Premium due",
		},
		{
			name: "missing subject gets default",
			raw: &out.RawMessage{
				ID:      "m2",
				Headers: []out.RawHeader{{Name: "From", Value: "a@b.com"}},
			},
			wantSender:  "a@b.com",
			wantSubject: "(No Subject)",
		},
		{
			name:        "missing sender gets default",
			raw:         &out.RawMessage{ID: "m3", Headers: []out.RawHeader{{Name: "Subject", Value: "hi"}}},
			wantSender:  "unknown",
			wantSubject: "hi",
		},
		{
			name: "header names matched case-insensitively",
			raw: &out.RawMessage{
				ID: "m4",
				Headers: []out.RawHeader{
					{Name: "FROM", Value: "x@y.com"},
					{Name: "subject", Value: "hello"},
				},
			},
			wantSender:  "x@y.com",
			wantSubject: "hello",
		},
		{
			name: "first matching header wins and values are trimmed",
			raw: &out.RawMessage{
				ID: "m5",
				Headers: []out.RawHeader{
					{Name: "Subject", Value: "  first  "},
					{Name: "Subject", Value: "second"},
				},
			},
			wantSender:  "unknown",
			wantSubject: "first",
		},
		{
			name:        "whitespace-only header falls back to default",
			raw:         &out.RawMessage{ID: "m6", Headers: []out.RawHeader{{Name: "Subject", Value: "   "}}},
			wantSender:  "unknown",
			wantSubject: "(No Subject)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			if got.ProviderMessageID != tt.raw.ID {
				t.Errorf("ProviderMessageID = %q, want %q", got.ProviderMessageID, tt.raw.ID)
			}
			if got.Sender != tt.wantSender {
				t.Errorf("Sender = %q, want %q", got.Sender, tt.wantSender)
			}
			if got.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", got.Subject, tt.wantSubject)
			}
		})
	}
}

func TestNormalizeReceivedAt(t *testing.T) {
	raw := &out.RawMessage{ID: "m1", InternalDate: 1700000000000}
	got := Normalize(raw)

	want := time.UnixMilli(1700000000000).UTC()
	if !got.ReceivedAt.Equal(want) {
		t.Errorf("ReceivedAt = %v, want %v", got.ReceivedAt, want)
	}
	if got.ReceivedAt.Location() != time.UTC {
		t.Errorf("ReceivedAt location = %v, want UTC", got.ReceivedAt.Location())
	}
}
