// Package gmail adapts the Gmail API to the mail provider port.
package gmail

import (
	"context"
	"fmt"
	"strings"
	"time"

	"triage_server/core/port/out"
	"triage_server/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// metadataHeaders is what classification needs; bodies are never fetched.
var metadataHeaders = []string{"From", "Subject", "Date"}

const requestTimeout = 30 * time.Second

// Adapter implements out.MailProviderPort against the Gmail API, with a
// circuit breaker so a flapping API does not burn a whole sync window of
// quota.
type Adapter struct {
	config *oauth2.Config
	cb     *gobreaker.CircuitBreaker
}

// Config holds the Google OAuth app credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewAdapter creates a Gmail adapter.
func NewAdapter(cfg *Config) *Adapter {
	log := logger.With("gmail")

	cbSettings := gobreaker.Settings{
		Name:        "gmail-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}

	return &Adapter{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gmailapi.GmailReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		cb: gobreaker.NewCircuitBreaker(cbSettings),
	}
}

// ProviderType returns the provider identifier.
func (a *Adapter) ProviderType() string {
	return "gmail"
}

// ListMessageIDs returns one page of message ids received after opts.After.
func (a *Adapter) ListMessageIDs(ctx context.Context, token *oauth2.Token, opts *out.ListOptions) (*out.ListResult, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, a.wrapError(err, "failed to create gmail service")
	}

	req := svc.Users.Messages.List("me")
	if !opts.After.IsZero() {
		// Gmail's after: operator takes a date in the account's locale; the
		// UTC date errs on the inclusive side.
		req = req.Q(fmt.Sprintf("after:%s", opts.After.UTC().Format("2006/01/02")))
	}
	if opts.PageSize > 0 {
		req = req.MaxResults(opts.PageSize)
	}
	if opts.PageToken != "" {
		req = req.PageToken(opts.PageToken)
	}

	var resp *gmailapi.ListMessagesResponse
	cbErr := a.execute(func() error {
		var err error
		resp, err = req.Context(ctx).Do()
		return err
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to list messages")
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return &out.ListResult{
		IDs:           ids,
		NextPageToken: resp.NextPageToken,
	}, nil
}

// GetMessage fetches message metadata. Format "metadata" keeps the response
// small: snippet plus the requested headers, no body payload.
func (a *Adapter) GetMessage(ctx context.Context, token *oauth2.Token, messageID string) (*out.RawMessage, error) {
	svc, err := a.getService(ctx, token)
	if err != nil {
		return nil, a.wrapError(err, "failed to create gmail service")
	}

	var msg *gmailapi.Message
	cbErr := a.execute(func() error {
		var err error
		msg, err = svc.Users.Messages.Get("me", messageID).
			Format("metadata").
			MetadataHeaders(metadataHeaders...).
			Context(ctx).
			Do()
		return err
	})
	if cbErr != nil {
		return nil, a.wrapError(cbErr, "failed to get message")
	}

	raw := &out.RawMessage{
		ID:           msg.Id,
		Snippet:      msg.Snippet,
		InternalDate: msg.InternalDate,
	}
	if msg.Payload != nil {
		raw.Headers = make([]out.RawHeader, 0, len(msg.Payload.Headers))
		for _, h := range msg.Payload.Headers {
			raw.Headers = append(raw.Headers, out.RawHeader{Name: h.Name, Value: h.Value})
		}
	}
	return raw, nil
}

func (a *Adapter) getService(ctx context.Context, token *oauth2.Token) (*gmailapi.Service, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}
	return gmailapi.NewService(ctx, option.WithTokenSource(
		a.config.TokenSource(ctx, token),
	))
}

// execute runs fn behind the circuit breaker. Client-side errors do not
// count as breaker failures; only server-side and rate-limit responses do.
func (a *Adapter) execute(fn func() error) error {
	var clientErr error
	_, err := a.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 429, 500, 502, 503:
					return nil, err
				}
				clientErr = err
				return nil, nil
			}
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	return clientErr
}

func (a *Adapter) wrapError(err error, defaultMsg string) error {
	if err == nil {
		return nil
	}

	if apiErr, ok := err.(*googleapi.Error); ok {
		switch apiErr.Code {
		case 401:
			return out.NewProviderError("gmail", out.ProviderErrAuth, "token rejected", err)
		case 403:
			if strings.Contains(apiErr.Message, "Rate Limit") {
				return out.NewProviderError("gmail", out.ProviderErrRateLimit, "rate limit exceeded", err)
			}
			return out.NewProviderError("gmail", out.ProviderErrAuth, "access denied", err)
		case 404:
			return out.NewProviderError("gmail", out.ProviderErrNotFound, "message not found", err)
		case 429:
			return out.NewProviderError("gmail", out.ProviderErrRateLimit, "too many requests", err)
		case 500, 502, 503:
			return out.NewProviderError("gmail", out.ProviderErrServer, "gmail server error", err)
		}
	}
	return out.NewProviderError("gmail", out.ProviderErrNetwork, defaultMsg, err)
}
