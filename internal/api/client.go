package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/benvon/chronos-console/pkg/config"
	"github.com/benvon/chronos-console/pkg/model"
	"github.com/benvon/chronos-console/pkg/retry"
)

const (
	requestIDHeader = "X-Request-ID"
	maxErrorBody    = 64 << 10
)

// Operation names, used for logs and metrics
const (
	OpDashboard    = "dashboard"
	OpSwitchSeason = "switch_season"
	OpOverride     = "override"
	OpSettings     = "settings"
	OpSetpoint     = "boiler_setpoint"
	OpLimits       = "temperature_limits"
	OpChart        = "chart_data"
)

const (
	pathSwitchSeason = "/switch-season"
	pathDeviceState  = "/update_device_state"
	pathUpdateState  = "/update_state"
	pathSettings     = "/update_settings"
	pathSetpoint     = "/boiler_set_setpoint"
	pathLimits       = "/temperature_limits"
	pathChart        = "/chart_data"
)

// Observer receives the outcome of every backend call
type Observer func(op string, elapsed time.Duration, err error)

// ClientConfig configures the dashboard client
type ClientConfig struct {
	BaseURL       string
	DashboardPath string
	Timeout       time.Duration
	Breaker       config.BreakerConfig
	// ReadRetry retries the limits and chart reads on 5xx and 429; the
	// dashboard poll and writes are never retried
	ReadRetry retry.Config
}

// Client talks to the dashboard backend
type Client struct {
	baseURL       string
	dashboardPath string
	httpClient    *http.Client
	auth          *AuthManager
	breaker       *gobreaker.CircuitBreaker
	readRetry     retry.Config
	observer      Observer
	logger        *slog.Logger
}

// NewClient creates a dashboard client using auth for bearer tokens
func NewClient(cfg ClientConfig, auth *AuthManager, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dashboardPath := cfg.DashboardPath
	if dashboardPath == "" {
		dashboardPath = "/"
	}

	if auth == nil {
		auth = NewAuthManager(cfg.BaseURL, Credentials{}, 0, nil, logger)
	}

	c := &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		dashboardPath: dashboardPath,
		httpClient:    &http.Client{Timeout: timeout},
		auth:          auth,
		readRetry:     cfg.ReadRetry,
		logger:        logger,
	}
	c.breaker = newBreaker("dashboard-backend", cfg.Breaker, logger)
	return c
}

// newBreaker trips after a run of consecutive backend failures
func newBreaker(name string, cfg config.BreakerConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	fails := cfg.ConsecutiveFailures
	if fails == 0 {
		fails = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		IsSuccessful: isBackendHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// isBackendHealthy counts only transport failures and 5xx against the breaker
func isBackendHealthy(err error) bool {
	if err == nil {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < 500
	}
	var authErr *AuthExpiredError
	if errors.As(err, &authErr) {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// SetObserver installs a hook called after every backend call
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// Auth returns the client's auth manager
func (c *Client) Auth() model.AuthManager {
	return c.auth
}

// BreakerState returns the circuit breaker state name
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// GetDashboard fetches the full dashboard state
func (c *Client) GetDashboard(ctx context.Context) (*DashboardPayload, error) {
	var payload DashboardPayload
	if err := c.do(ctx, OpDashboard, http.MethodGet, c.dashboardPath, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// SwitchSeason asks the backend to switch to the given season value (0 winter, 1 summer)
func (c *Client) SwitchSeason(ctx context.Context, seasonValue int) (*SwitchSeasonResponse, error) {
	var resp SwitchSeasonResponse
	if err := c.do(ctx, OpSwitchSeason, http.MethodPost, pathSwitchSeason, SwitchSeasonRequest{SeasonValue: seasonValue}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateDeviceState switches a relay on or off
func (c *Client) UpdateDeviceState(ctx context.Context, id int, state bool) (*OverrideResponse, error) {
	var resp OverrideResponse
	if err := c.do(ctx, OpOverride, http.MethodPost, pathDeviceState, DeviceStateRequest{ID: id, State: state}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateManualOverride sets a device's override (0 auto, 1 on, 2 off)
func (c *Client) UpdateManualOverride(ctx context.Context, device, value int) (*OverrideResponse, error) {
	var resp OverrideResponse
	if err := c.do(ctx, OpOverride, http.MethodPost, pathUpdateState, ManualOverrideRequest{Device: device, ManualOverride: value}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSettings submits the user settings form
func (c *Client) UpdateSettings(ctx context.Context, req SettingsRequest) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.do(ctx, OpSettings, http.MethodPost, pathSettings, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetBoilerSetpoint sets the boiler temperature setpoint in °F
func (c *Client) SetBoilerSetpoint(ctx context.Context, temperature float64) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.do(ctx, OpSetpoint, http.MethodPost, pathSetpoint, SetpointRequest{Temperature: temperature}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TemperatureLimits fetches the hard and soft setpoint limits
func (c *Client) TemperatureLimits(ctx context.Context) (*TemperatureLimits, error) {
	var resp TemperatureLimits
	if err := c.do(ctx, OpLimits, http.MethodGet, pathLimits, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChartData fetches the recent water out and return temperature history
func (c *Client) ChartData(ctx context.Context) ([]ChartPoint, error) {
	var resp []ChartPoint
	if err := c.do(ctx, OpChart, http.MethodGet, pathChart, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, op, method, path, body, out)
	})
	if IsCircuitOpen(err) {
		err = &NetworkError{Op: op, Err: err}
	}
	if c.observer != nil {
		c.observer(op, time.Since(start), err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling %s request: %w", op, err)
		}
	}

	token, err := c.auth.GetAccessToken(ctx)
	if err != nil {
		return err
	}

	resp, err := c.sendOp(ctx, op, method, path, payload, token)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && c.auth.CanRefresh() {
		_ = resp.Body.Close()
		// Refresh once and retry once
		if err := c.auth.RefreshToken(ctx); err != nil {
			return err
		}
		token, err := c.auth.GetAccessToken(ctx)
		if err != nil {
			return err
		}
		resp, err = c.sendOp(ctx, op, method, path, payload, token)
		if err != nil {
			return &NetworkError{Op: op, Err: err}
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		// No refresh token, or the retry was rejected too
		return &AuthExpiredError{Err: &APIError{Op: op, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// sendOp sends once, or through the read retry policy for idempotent reads
func (c *Client) sendOp(ctx context.Context, op, method, path string, payload []byte, token string) (*http.Response, error) {
	if method != http.MethodGet || op == OpDashboard || c.readRetry.MaxRetries <= 0 {
		return c.send(ctx, method, path, payload, token)
	}
	return retry.DoWithResponse(ctx, c.readRetry, func() (*http.Response, error) {
		return c.send(ctx, method, path, payload, token)
	})
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, token string) (*http.Response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("Calling dashboard backend", "method", method, "path", path, "request_id", requestID)
	return c.httpClient.Do(req)
}

// readErrorMessage extracts the backend's message from detail, message or error
func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}

	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return strings.TrimSpace(string(data))
	}

	switch d := body.Detail.(type) {
	case string:
		if d != "" {
			return d
		}
	case []any:
		// Validation errors come as a list of {msg}
		var msgs []string
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok {
					msgs = append(msgs, msg)
				}
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	if body.Message != "" {
		return body.Message
	}
	if s, ok := body.Error.(string); ok {
		return s
	}
	return ""
}
