// Package auth manages OAuth credentials for mail connections: token
// refresh, expiry windows, and revoked-grant detection.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// refreshWindow forces a refresh when the stored token expires within it.
// Wide enough that a token cannot expire mid-sync.
const refreshWindow = 5 * time.Minute

// CredentialService hands out valid access tokens for mail connections,
// refreshing through the provider when the stored token is near expiry.
type CredentialService struct {
	repo   out.ConnectionRepository
	config *oauth2.Config
	log    zerolog.Logger

	// tokenSource builds the refresh source; replaced in tests.
	tokenSource func(ctx context.Context, token *oauth2.Token) oauth2.TokenSource
}

// NewCredentialService creates the service. clientID/clientSecret configure
// the Google OAuth app used for refreshes.
func NewCredentialService(repo out.ConnectionRepository, clientID, clientSecret, redirectURL string) *CredentialService {
	var config *oauth2.Config
	if clientID != "" && clientSecret != "" {
		config = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/gmail.readonly",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		}
	}

	s := &CredentialService{
		repo:   repo,
		config: config,
		log:    logger.With("credentials"),
	}
	s.tokenSource = func(ctx context.Context, token *oauth2.Token) oauth2.TokenSource {
		return s.config.TokenSource(ctx, token)
	}
	return s
}

// GetConnection returns the connection as a domain object.
func (s *CredentialService) GetConnection(ctx context.Context, connectionID int64) (*domain.MailConnection, error) {
	entity, err := s.repo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return toDomainConnection(entity), nil
}

// ListConnections returns all mailbox connections owned by a user.
func (s *CredentialService) ListConnections(ctx context.Context, userID uuid.UUID) ([]*domain.MailConnection, error) {
	entities, err := s.repo.ListByUser(ctx, userID.String())
	if err != nil {
		return nil, err
	}
	connections := make([]*domain.MailConnection, 0, len(entities))
	for _, entity := range entities {
		connections = append(connections, toDomainConnection(entity))
	}
	return connections, nil
}

// GetValidToken returns an access token guaranteed usable for at least the
// refresh window. A connection without a refresh token cannot self-heal, so
// that case is a configuration error, not a retryable one.
func (s *CredentialService) GetValidToken(ctx context.Context, connectionID int64) (string, error) {
	entity, err := s.repo.GetByID(ctx, connectionID)
	if err != nil {
		return "", err
	}

	if !entity.IsConnected {
		return "", apperr.New(apperr.CodeReauthRequired, "connection is disconnected, re-authentication required", http.StatusUnauthorized)
	}

	if time.Until(entity.ExpiresAt) >= refreshWindow {
		return entity.AccessToken, nil
	}

	if entity.RefreshToken == "" {
		return "", apperr.ConfigError(apperr.CodeNoRefreshToken, "connection has no refresh token")
	}

	refreshed, err := s.refresh(ctx, entity)
	if err != nil {
		return "", err
	}
	return refreshed.AccessToken, nil
}

// GetOAuth2Token returns a full oauth2.Token for provider clients, applying
// the same refresh rules as GetValidToken.
func (s *CredentialService) GetOAuth2Token(ctx context.Context, connectionID int64) (*oauth2.Token, error) {
	if _, err := s.GetValidToken(ctx, connectionID); err != nil {
		return nil, err
	}

	entity, err := s.repo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  entity.AccessToken,
		RefreshToken: entity.RefreshToken,
		Expiry:       entity.ExpiresAt,
		TokenType:    "Bearer",
	}, nil
}

// refresh exchanges the stored refresh token for a new access token and
// persists it. A revoked grant marks the connection disconnected.
func (s *CredentialService) refresh(ctx context.Context, entity *out.ConnectionEntity) (*oauth2.Token, error) {
	if s.config == nil {
		return nil, apperr.ConfigError(apperr.CodeConfigError, "google oauth is not configured")
	}

	stored := &oauth2.Token{
		AccessToken:  entity.AccessToken,
		RefreshToken: entity.RefreshToken,
		Expiry:       entity.ExpiresAt,
	}

	newToken, err := s.tokenSource(ctx, stored).Token()
	if err != nil {
		if isTokenRevokedError(err) {
			s.log.Warn().Err(err).Int64("connection_id", entity.ID).
				Msg("grant revoked, marking connection disconnected")
			if markErr := s.repo.MarkDisconnected(ctx, entity.ID); markErr != nil {
				s.log.Error().Err(markErr).Int64("connection_id", entity.ID).
					Msg("failed to mark connection disconnected")
			}
			return nil, apperr.New(apperr.CodeReauthRequired, "oauth grant revoked, re-authentication required", http.StatusUnauthorized)
		}
		return nil, apperr.Wrap(err, apperr.CodeProviderFailed, "token refresh failed", http.StatusBadGateway)
	}

	refreshToken := entity.RefreshToken
	if newToken.RefreshToken != "" {
		refreshToken = newToken.RefreshToken
	}
	if err := s.repo.UpdateToken(ctx, entity.ID, newToken.AccessToken, refreshToken, newToken.Expiry); err != nil {
		return nil, err
	}

	s.log.Debug().Int64("connection_id", entity.ID).Time("expires_at", newToken.Expiry).
		Msg("access token refreshed")
	return newToken, nil
}

// isTokenRevokedError reports whether the refresh failure is permanent.
// These are the strings Google's token endpoint actually returns.
func isTokenRevokedError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid_client") ||
		strings.Contains(msg, "Token has been expired or revoked") ||
		strings.Contains(msg, "Token has been revoked")
}

func toDomainConnection(entity *out.ConnectionEntity) *domain.MailConnection {
	userID, _ := uuid.Parse(entity.UserID)
	return &domain.MailConnection{
		ID:             entity.ID,
		UserID:         userID,
		Provider:       domain.MailProvider(entity.Provider),
		Email:          entity.Email,
		AccessToken:    entity.AccessToken,
		RefreshToken:   entity.RefreshToken,
		ExpiresAt:      entity.ExpiresAt,
		IsConnected:    entity.IsConnected,
		LastSyncAt:     entity.LastSyncAt,
		LastSyncStatus: domain.SyncStatus(entity.LastStatus),
		LastSyncError:  entity.LastError,
		CreatedAt:      entity.CreatedAt,
		UpdatedAt:      entity.UpdatedAt,
	}
}
