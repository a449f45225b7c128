package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// TokenSession owns the CRM OAuth access token. Tokens expire, so the
// session refreshes proactively when the remaining lifetime drops below
// the configured lead, and reactively when the API answers 401.
//
// Refreshes are single-flight: concurrent callers during an in-flight
// refresh observe one token exchange and all receive its result. A failed
// exchange leaves the previous token untouched. The rotated refresh token
// from each exchange replaces the previous one.
type TokenSession struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time

	// epoch counts completed exchanges. It is read without the mutex so
	// a caller can record which token generation it saw fail before
	// blocking behind an in-flight refresh.
	epoch atomic.Uint64
}

// NewTokenSession creates a token session for the given configuration.
func NewTokenSession(config *Config, httpClient *http.Client, logger *zap.Logger) *TokenSession {
	return &TokenSession{
		config:       config,
		httpClient:   httpClient,
		logger:       logger,
		now:          time.Now,
		refreshToken: config.RefreshToken,
	}
}

// AccessToken returns the current access token, or "" before the first
// exchange.
func (s *TokenSession) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

// EnsureValid refreshes the token when it is absent or inside the expiry
// lead window.
func (s *TokenSession) EnsureValid(ctx context.Context) error {
	s.mu.Lock()
	lead := time.Duration(s.config.RefreshLeadSeconds) * time.Second
	if s.accessToken != "" && s.now().Before(s.expiresAt.Add(-lead)) {
		s.mu.Unlock()
		return nil
	}
	epoch := s.epoch.Load()
	s.mu.Unlock()

	return s.refresh(ctx, epoch)
}

// ForceRefresh discards the current token and exchanges a new one. Used
// by the request pipeline after observing a 401. The epoch is
// snapshotted before blocking behind the mutex, so a caller that
// overlaps an in-flight exchange shares its result instead of
// exchanging again.
func (s *TokenSession) ForceRefresh(ctx context.Context) error {
	return s.refresh(ctx, s.epoch.Load())
}

// refresh performs the token exchange unless another caller already
// completed one after the caller observed observedEpoch.
func (s *TokenSession) refresh(ctx context.Context, observedEpoch uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch.Load() != observedEpoch {
		// Another caller refreshed while we waited for the lock.
		return nil
	}

	token, err := s.exchange(ctx, s.refreshToken)
	if err != nil {
		return err
	}

	s.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.refreshToken = token.RefreshToken
	}
	s.expiresAt = s.now().Add(time.Duration(token.ExpiresIn) * time.Second)
	s.epoch.Add(1)
	s.logger.Info("CRM access token refreshed",
		zap.Time("expires_at", s.expiresAt),
	)
	return nil
}

// exchange calls the OAuth token endpoint.
func (s *TokenSession) exchange(ctx context.Context, refreshToken string) (*tokenResponse, error) {
	payload, err := json.Marshal(tokenRequest{
		ClientID:     s.config.ClientID,
		ClientSecret: s.config.ClientSecret,
		RefreshToken: refreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("crm: failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.AuthURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("crm: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("crm: failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("CRM token exchange failed", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: token endpoint returned status %d", integration.ErrAuthenticationFailed, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: malformed token response: %v", integration.ErrAuthenticationFailed, err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response carries no access token", integration.ErrAuthenticationFailed)
	}
	return &token, nil
}
