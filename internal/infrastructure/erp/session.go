package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/integration"
)

// Session owns the ERP session cookie. The ERP issues a JSESSIONID on
// login and gives no expiry, so the session is created lazily on first
// use and recreated reactively when the gateway answers 401.
//
// Refreshes are single-flight: concurrent callers during an in-flight
// login observe one underlying login call and all receive its result. A
// failed login leaves the previous session id untouched.
type Session struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger

	mu        sync.Mutex
	sessionID string

	// epoch counts completed logins. It is read without the mutex so a
	// caller can record which login generation it saw fail before
	// blocking behind an in-flight refresh.
	epoch atomic.Uint64
}

// NewSession creates a session manager for the given configuration.
func NewSession(config *Config, httpClient *http.Client, logger *zap.Logger) *Session {
	return &Session{
		config:     config,
		httpClient: httpClient,
		logger:     logger,
	}
}

// ID returns the current session cookie value, or "" before first login.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// EnsureValid logs in if no session has been established yet.
func (s *Session) EnsureValid(ctx context.Context) error {
	s.mu.Lock()
	if s.sessionID != "" {
		s.mu.Unlock()
		return nil
	}
	epoch := s.epoch.Load()
	s.mu.Unlock()

	return s.refresh(ctx, epoch)
}

// ForceRefresh discards the current session and logs in again. Used by
// the request pipeline after observing a 401. The epoch is snapshotted
// before blocking behind the mutex, so a caller that overlaps an
// in-flight login shares its result instead of logging in again.
func (s *Session) ForceRefresh(ctx context.Context) error {
	return s.refresh(ctx, s.epoch.Load())
}

// refresh performs the login unless another caller already completed one
// after the caller observed observedEpoch.
func (s *Session) refresh(ctx context.Context, observedEpoch uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch.Load() != observedEpoch {
		// Another caller refreshed while we waited for the lock.
		return nil
	}

	sessionID, err := s.login(ctx)
	if err != nil {
		return err
	}

	s.sessionID = sessionID
	s.epoch.Add(1)
	s.logger.Info("ERP session established")
	return nil
}

// login performs the MobileLoginSP.login call. It authenticates with the
// static bearer token and API key only; no session cookie exists yet.
func (s *Session) login(ctx context.Context) (string, error) {
	payload, err := json.Marshal(rpcRequest{
		ServiceName: serviceLogin,
		RequestBody: loginRequestBody{
			Username: s.config.Username,
			Password: s.config.Password,
		},
	})
	if err != nil {
		return "", fmt.Errorf("erp: failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/service.sbr", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("erp: failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.BearerToken)
	req.Header.Set("token", s.config.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", integration.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("erp: failed to read login response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("ERP login failed", zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: login returned status %d", integration.ErrAuthenticationFailed, resp.StatusCode)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("%w: malformed login response: %v", integration.ErrAuthenticationFailed, err)
	}

	var loginBody loginResponseBody
	if err := json.Unmarshal(envelope.ResponseBody, &loginBody); err != nil || loginBody.SessionID == "" {
		return "", fmt.Errorf("%w: login response carries no session id", integration.ErrAuthenticationFailed)
	}

	return loginBody.SessionID, nil
}
