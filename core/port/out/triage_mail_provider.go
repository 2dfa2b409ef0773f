// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

// =============================================================================
// Mail Provider Port
// =============================================================================

// MailProviderPort is the outbound port for external mail providers.
type MailProviderPort interface {
	// ProviderType returns the provider identifier, e.g. "gmail".
	ProviderType() string

	// ListMessageIDs returns one page of message ids received after
	// opts.After. Pagination is strictly sequential; the next page token is
	// only known once the current page completes.
	ListMessageIDs(ctx context.Context, token *oauth2.Token, opts *ListOptions) (*ListResult, error)

	// GetMessage fetches the provider-native representation of one message.
	GetMessage(ctx context.Context, token *oauth2.Token, messageID string) (*RawMessage, error)
}

// ListOptions represents a list-messages query.
type ListOptions struct {
	After     time.Time
	PageSize  int64
	PageToken string
}

// ListResult is one page of message ids plus the continuation token.
// An empty NextPageToken means the listing is exhausted.
type ListResult struct {
	IDs           []string
	NextPageToken string
}

// RawMessage is the provider-native message representation. Ephemeral; it is
// normalized immediately and never persisted as-is.
type RawMessage struct {
	ID           string
	Snippet      string
	InternalDate int64 // provider arrival time, milliseconds since epoch
	Headers      []RawHeader
}

// RawHeader is a single message header.
type RawHeader struct {
	Name  string
	Value string
}

// =============================================================================
// Provider Error
// =============================================================================

// ProviderErrorCode represents provider failure classes.
type ProviderErrorCode string

const (
	ProviderErrAuth      ProviderErrorCode = "auth_error"
	ProviderErrRateLimit ProviderErrorCode = "rate_limit"
	ProviderErrNotFound  ProviderErrorCode = "not_found"
	ProviderErrNetwork   ProviderErrorCode = "network_error"
	ProviderErrServer    ProviderErrorCode = "server_error"
)

// ProviderError represents a provider failure.
type ProviderError struct {
	Provider string
	Code     ProviderErrorCode
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new provider error.
func NewProviderError(provider string, code ProviderErrorCode, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}
