package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"

	"golang.org/x/oauth2"
)

type fakeConnectionRepo struct {
	conn *out.ConnectionEntity

	updatedAccess  string
	updatedRefresh string
	disconnected   bool
}

func (f *fakeConnectionRepo) GetByID(_ context.Context, id int64) (*out.ConnectionEntity, error) {
	if f.conn == nil || f.conn.ID != id {
		return nil, apperr.NotFound("connection not found")
	}
	cp := *f.conn
	return &cp, nil
}

func (f *fakeConnectionRepo) ListByUser(context.Context, string) ([]*out.ConnectionEntity, error) {
	return nil, nil
}

func (f *fakeConnectionRepo) UpdateToken(_ context.Context, _ int64, access, refresh string, expiresAt time.Time) error {
	f.updatedAccess = access
	f.updatedRefresh = refresh
	f.conn.AccessToken = access
	f.conn.RefreshToken = refresh
	f.conn.ExpiresAt = expiresAt
	return nil
}

func (f *fakeConnectionRepo) MarkDisconnected(context.Context, int64) error {
	f.disconnected = true
	f.conn.IsConnected = false
	return nil
}

func (f *fakeConnectionRepo) UpdateSyncStatus(context.Context, int64, domain.SyncStatus, string) error {
	return nil
}

type staticTokenSource struct {
	token *oauth2.Token
	err   error
}

func (s staticTokenSource) Token() (*oauth2.Token, error) { return s.token, s.err }

func newTestService(repo *fakeConnectionRepo, src oauth2.TokenSource) *CredentialService {
	s := NewCredentialService(repo, "client-id", "client-secret", "http://localhost/callback")
	s.tokenSource = func(context.Context, *oauth2.Token) oauth2.TokenSource { return src }
	return s
}

func validConnection() *out.ConnectionEntity {
	return &out.ConnectionEntity{
		ID:           1,
		UserID:       "9cbd4a92-3f67-4f4a-9d2e-0a1b2c3d4e5f",
		Provider:     "gmail",
		Email:        "user@example.com",
		AccessToken:  "fresh-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
		IsConnected:  true,
	}
}

func TestGetValidTokenFreshTokenNoRefresh(t *testing.T) {
	repo := &fakeConnectionRepo{conn: validConnection()}
	src := staticTokenSource{err: errors.New("must not be called")}
	s := newTestService(repo, src)

	token, err := s.GetValidToken(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if token != "fresh-token" {
		t.Errorf("token = %q, want fresh-token", token)
	}
	if repo.updatedAccess != "" {
		t.Error("token was refreshed despite being fresh")
	}
}

func TestGetValidTokenRefreshesNearExpiry(t *testing.T) {
	conn := validConnection()
	conn.ExpiresAt = time.Now().Add(2 * time.Minute) // inside the 5-minute window
	repo := &fakeConnectionRepo{conn: conn}

	src := staticTokenSource{token: &oauth2.Token{
		AccessToken: "new-token",
		Expiry:      time.Now().Add(time.Hour),
	}}
	s := newTestService(repo, src)

	token, err := s.GetValidToken(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if token != "new-token" {
		t.Errorf("token = %q, want new-token", token)
	}
	if repo.updatedAccess != "new-token" {
		t.Errorf("persisted access token = %q, want new-token", repo.updatedAccess)
	}
	// provider did not rotate the refresh token; the old one is kept
	if repo.updatedRefresh != "refresh-token" {
		t.Errorf("persisted refresh token = %q, want refresh-token", repo.updatedRefresh)
	}
}

func TestGetValidTokenRotatedRefreshTokenIsKept(t *testing.T) {
	conn := validConnection()
	conn.ExpiresAt = time.Now().Add(-time.Minute)
	repo := &fakeConnectionRepo{conn: conn}

	src := staticTokenSource{token: &oauth2.Token{
		AccessToken:  "new-token",
		RefreshToken: "rotated-refresh",
		Expiry:       time.Now().Add(time.Hour),
	}}
	s := newTestService(repo, src)

	if _, err := s.GetValidToken(context.Background(), 1); err != nil {
		t.Fatalf("GetValidToken() error = %v", err)
	}
	if repo.updatedRefresh != "rotated-refresh" {
		t.Errorf("persisted refresh token = %q, want rotated-refresh", repo.updatedRefresh)
	}
}

func TestGetValidTokenMissingRefreshTokenIsFatal(t *testing.T) {
	conn := validConnection()
	conn.ExpiresAt = time.Now().Add(-time.Minute)
	conn.RefreshToken = ""
	repo := &fakeConnectionRepo{conn: conn}
	s := newTestService(repo, staticTokenSource{})

	_, err := s.GetValidToken(context.Background(), 1)
	if !apperr.Is(err, apperr.CodeNoRefreshToken) {
		t.Fatalf("error = %v, want code %s", err, apperr.CodeNoRefreshToken)
	}
}

func TestGetValidTokenRevokedGrantDisconnects(t *testing.T) {
	conn := validConnection()
	conn.ExpiresAt = time.Now().Add(-time.Minute)
	repo := &fakeConnectionRepo{conn: conn}

	src := staticTokenSource{err: errors.New(`oauth2: "invalid_grant" "Token has been expired or revoked."`)}
	s := newTestService(repo, src)

	_, err := s.GetValidToken(context.Background(), 1)
	if !apperr.Is(err, apperr.CodeReauthRequired) {
		t.Fatalf("error = %v, want code %s", err, apperr.CodeReauthRequired)
	}
	if !repo.disconnected {
		t.Error("connection was not marked disconnected")
	}
}

func TestGetValidTokenTransientRefreshFailure(t *testing.T) {
	conn := validConnection()
	conn.ExpiresAt = time.Now().Add(-time.Minute)
	repo := &fakeConnectionRepo{conn: conn}

	src := staticTokenSource{err: errors.New("dial tcp: connection refused")}
	s := newTestService(repo, src)

	_, err := s.GetValidToken(context.Background(), 1)
	if !apperr.Is(err, apperr.CodeProviderFailed) {
		t.Fatalf("error = %v, want code %s", err, apperr.CodeProviderFailed)
	}
	if repo.disconnected {
		t.Error("transient failure must not disconnect the connection")
	}
}

func TestGetValidTokenDisconnectedConnection(t *testing.T) {
	conn := validConnection()
	conn.IsConnected = false
	repo := &fakeConnectionRepo{conn: conn}
	s := newTestService(repo, staticTokenSource{})

	_, err := s.GetValidToken(context.Background(), 1)
	if !apperr.Is(err, apperr.CodeReauthRequired) {
		t.Fatalf("error = %v, want code %s", err, apperr.CodeReauthRequired)
	}
}

func TestIsTokenRevokedError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"invalid_grant", errors.New("oauth2: invalid_grant"), true},
		{"revoked", errors.New("Token has been revoked"), true},
		{"network", errors.New("dial tcp: i/o timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isTokenRevokedError(tt.err); got != tt.want {
				t.Errorf("isTokenRevokedError() = %v, want %v", got, tt.want)
			}
		})
	}
}
