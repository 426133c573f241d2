package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"collabroom/client/rlog"
	"collabroom/internal/entity"
	"collabroom/internal/service"
)

// Session holds one authenticated identity and its opaque credential pair.
// Every durable-store request goes through it; a 401 answer triggers
// exactly one refresh attempt and one retry before the failure surfaces.
type Session struct {
	baseURL    string
	httpClient *http.Client
	logger     rlog.Logger

	mu           sync.RWMutex
	identity     *entity.User
	accessToken  string
	refreshToken string

	// OnSessionExpired fires once the refresh+retry cycle has failed.
	// The session is already cleared when it runs.
	OnSessionExpired func()
}

func New(baseURL string, logger rlog.Logger) *Session {
	if logger == nil {
		logger = rlog.Nop()
	}
	return &Session{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (s *Session) Logf(format string, v ...any) {
	s.logger.Logf(format, v...)
}

// CurrentIdentity returns the authenticated user, or nil before login.
func (s *Session) CurrentIdentity() *entity.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

func (s *Session) BaseURL() string {
	return s.baseURL
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) Authenticated() bool {
	return s.CurrentIdentity() != nil
}

type authResponse struct {
	User   *entity.User       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

func (s *Session) Register(ctx context.Context, username, displayName, password string) error {
	var out authResponse
	err := s.anonymousJSON(ctx, http.MethodPost, "/api/auth/register", map[string]string{
		"username":    username,
		"displayName": displayName,
		"password":    password,
	}, &out)
	if err != nil {
		return err
	}
	s.install(out.User, out.Tokens)
	return nil
}

func (s *Session) Login(ctx context.Context, username, password string) error {
	var out authResponse
	err := s.anonymousJSON(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return err
	}
	s.install(out.User, out.Tokens)
	return nil
}

// Logout revokes the refresh credential and clears the session.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.RLock()
	refresh := s.refreshToken
	s.mu.RUnlock()

	err := s.JSON(ctx, http.MethodPost, "/api/auth/logout", map[string]string{"refreshToken": refresh}, nil)
	s.clear()
	return err
}

func (s *Session) install(user *entity.User, pair *service.TokenPair) {
	s.mu.Lock()
	s.identity = user
	if pair != nil {
		s.accessToken = pair.AccessToken
		s.refreshToken = pair.RefreshToken
	}
	s.mu.Unlock()
	if user != nil {
		s.Logf("Session established for {%s}", user.UUID)
	}
}

func (s *Session) clear() {
	s.mu.Lock()
	s.identity = nil
	s.accessToken = ""
	s.refreshToken = ""
	s.mu.Unlock()
}

// refresh trades the refresh token for a new pair. Called at most once per
// failed request.
func (s *Session) refresh(ctx context.Context) error {
	s.mu.RLock()
	refresh := s.refreshToken
	s.mu.RUnlock()
	if refresh == "" {
		return &APIError{Kind: KindAuthExpired, Message: "no refresh token held"}
	}

	var out authResponse
	if err := s.anonymousJSON(ctx, http.MethodPost, "/api/auth/refresh", map[string]string{"refreshToken": refresh}, &out); err != nil {
		return err
	}

	s.mu.Lock()
	if out.Tokens != nil {
		s.accessToken = out.Tokens.AccessToken
		s.refreshToken = out.Tokens.RefreshToken
	}
	s.mu.Unlock()
	s.Logf("Session refreshed")
	return nil
}

// JSON performs one authorized request. On a 401-class answer it refreshes
// the session once and retries the original request once; only a second
// authentication failure resets the session and reports AuthExpired. A retry
// that fails for any other reason surfaces as-is, since the refreshed
// credential is still good.
func (s *Session) JSON(ctx context.Context, method, path string, in, out any) error {
	err := s.doJSON(ctx, method, path, in, out, true)
	apiErr, ok := err.(*APIError)
	if !ok || apiErr.Kind != KindAuthExpired {
		return err
	}

	if refreshErr := s.refresh(ctx); refreshErr == nil {
		retryErr := s.doJSON(ctx, method, path, in, out, true)
		if retryAPIErr, ok := retryErr.(*APIError); !ok || retryAPIErr.Kind != KindAuthExpired {
			return retryErr
		}
	}

	// Operating with an invalid identity is worse than logging out.
	s.clear()
	if s.OnSessionExpired != nil {
		s.OnSessionExpired()
	}
	return &APIError{Kind: KindAuthExpired, Message: "session expired"}
}

func (s *Session) anonymousJSON(ctx context.Context, method, path string, in, out any) error {
	return s.doJSON(ctx, method, path, in, out, false)
}

func (s *Session) doJSON(ctx context.Context, method, path string, in, out any, authorized bool) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorized {
		req.Header.Set("Authorization", "Bearer "+s.AccessToken())
	}

	response, err := s.httpClient.Do(req)
	if err != nil {
		return &APIError{Kind: KindNetwork, Message: err.Error()}
	}
	defer response.Body.Close()

	if response.StatusCode >= 400 {
		return errorFromResponse(response)
	}

	if out != nil && response.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			return fmt.Errorf("could not decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}
