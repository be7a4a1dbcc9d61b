package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	loginPath   = "/auth/login"
	refreshPath = "/auth/token/refresh"
)

// Credentials seed the auth manager. Either a login pair or a token pair is enough.
type Credentials struct {
	Email        string
	Password     string
	AccessToken  string
	RefreshToken string
}

// AuthManager holds the session tokens for the dashboard backend
type AuthManager struct {
	baseURL    string
	email      string
	password   string
	leeway     time.Duration
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	tokenExpiry  time.Time
	onLogout     func()

	// refreshMu serializes login and refresh round trips
	refreshMu sync.Mutex
}

// NewAuthManager creates an auth manager for the backend at baseURL
func NewAuthManager(baseURL string, creds Credentials, leeway time.Duration, httpClient *http.Client, logger *slog.Logger) *AuthManager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &AuthManager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      creds.Email,
		password:   creds.Password,
		leeway:     leeway,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
	a.setTokens(creds.AccessToken, creds.RefreshToken)
	return a
}

// OnLogout registers a hook invoked when a failed refresh clears the session
func (a *AuthManager) OnLogout(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onLogout = fn
}

// HasLogin reports whether email and password are configured
func (a *AuthManager) HasLogin() bool {
	return a.email != "" && a.password != ""
}

// Login exchanges the configured email and password for a token pair
func (a *AuthManager) Login(ctx context.Context) error {
	if !a.HasLogin() {
		return errors.New("no login credentials configured")
	}

	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	tokens, err := a.requestTokens(ctx, loginPath, loginRequest{Email: a.email, Password: a.password})
	if err != nil {
		return fmt.Errorf("logging in: %w", err)
	}
	a.setTokens(tokens.Tokens.Access, tokens.Tokens.Refresh)
	a.logger.Info("Logged in to dashboard backend", "email", a.email)
	return nil
}

// RefreshToken exchanges the refresh token for a new pair. On failure the
// session is cleared, the logout hook runs and an AuthExpiredError is returned.
func (a *AuthManager) RefreshToken(ctx context.Context) error {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	a.mu.Lock()
	refresh := a.refreshToken
	a.mu.Unlock()

	if refresh == "" {
		return a.expire(errors.New("no refresh token"))
	}

	tokens, err := a.requestTokens(ctx, refreshPath, refreshRequest{RefreshToken: refresh})
	if err != nil {
		return a.expire(err)
	}

	newRefresh := tokens.Tokens.Refresh
	if newRefresh == "" {
		newRefresh = refresh
	}
	a.setTokens(tokens.Tokens.Access, newRefresh)
	a.logger.Debug("Refreshed access token")
	return nil
}

// GetAccessToken returns the current access token, refreshing it when it is
// about to expire. An empty token with a nil error means no session is configured.
func (a *AuthManager) GetAccessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	token, refresh := a.accessToken, a.refreshToken
	a.mu.Unlock()

	if token == "" && refresh == "" {
		if !a.HasLogin() {
			return "", nil
		}
		if err := a.Login(ctx); err != nil {
			return "", err
		}
	} else if !a.IsTokenValid(ctx) && refresh != "" {
		if err := a.RefreshToken(ctx); err != nil {
			return "", err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accessToken, nil
}

// IsTokenValid checks if the current token is valid
func (a *AuthManager) IsTokenValid(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.accessToken == "" {
		return false
	}
	if a.tokenExpiry.IsZero() {
		return true
	}
	return a.now().Before(a.tokenExpiry.Add(-a.leeway))
}

// CanRefresh reports whether a refresh token is held
func (a *AuthManager) CanRefresh() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshToken != ""
}

// Clear drops all stored credentials
func (a *AuthManager) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accessToken = ""
	a.refreshToken = ""
	a.tokenExpiry = time.Time{}
}

// Expiry returns the access token's exp claim, zero when unknown
func (a *AuthManager) Expiry() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tokenExpiry
}

func (a *AuthManager) expire(cause error) error {
	a.Clear()
	a.mu.Lock()
	hook := a.onLogout
	a.mu.Unlock()

	a.logger.Warn("Session expired", "error", cause)
	if hook != nil {
		hook()
	}
	return &AuthExpiredError{Err: cause}
}

func (a *AuthManager) setTokens(access, refresh string) {
	expiry := tokenExpiry(access)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accessToken = access
	a.refreshToken = refresh
	a.tokenExpiry = expiry
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend verifies, the console only needs to know when to refresh
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

func (a *AuthManager) requestTokens(ctx context.Context, path string, body any) (*tokenResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: path, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: path, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	var tokens tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	if tokens.Tokens.Access == "" {
		return nil, errors.New("token response carried no access token")
	}
	return &tokens, nil
}
