package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/benvon/chronos-console/internal/api"
	"github.com/benvon/chronos-console/internal/store"
	"github.com/benvon/chronos-console/pkg/config"
	"github.com/benvon/chronos-console/pkg/model"
)

var testStart = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

var defaultLimits = store.Limits{HardMin: 120, HardMax: 180, SoftMin: 120, SoftMax: 180}

const winterDashboard = `{"season_mode": 0, "status": true, "devices": [
	{"id": 0, "state": 0}, {"id": 1, "state": 0}, {"id": 2, "state": 0}, {"id": 3, "state": 0}, {"id": 4, "state": 0}
], "sensors": {"water_out_temp": 50, "return_temp": 40}, "results": {"setpoint_min": 130, "setpoint_max": 170}}`

// cannedResponse is one scripted answer of the fake backend
type cannedResponse struct {
	status int
	body   string
}

// fakeBackend is an httptest dashboard server with scripted answers
type fakeBackend struct {
	mu        sync.Mutex
	responses map[string]cannedResponse
	delays    map[string]time.Duration
	calls     map[string]int
	bodies    map[string][]string
	server    *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{
		responses: map[string]cannedResponse{
			"/":                    {status: http.StatusOK, body: winterDashboard},
			"/switch-season":       {status: http.StatusOK, body: `{"status": "success", "message": "Switching season", "unlock_time": "", "manual_override": false}`},
			"/update_state":        {status: http.StatusOK, body: `{"error": false}`},
			"/update_device_state": {status: http.StatusOK, body: `{"error": false}`},
			"/update_settings":     {status: http.StatusOK, body: `{"message": "Settings updated successfully"}`},
			"/boiler_set_setpoint": {status: http.StatusOK, body: `{"status": "success", "message": "Setpoint updated"}`},
			"/temperature_limits":  {status: http.StatusNotFound, body: `{"detail": "Not Found"}`},
			"/chart_data":          {status: http.StatusOK, body: `[]`},
		},
		delays: make(map[string]time.Duration),
		calls:  make(map[string]int),
		bodies: make(map[string][]string),
	}
	fb.server = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.server.Close)
	return fb
}

func (f *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.bodies[r.URL.Path] = append(f.bodies[r.URL.Path], string(body))
	resp, ok := f.responses[r.URL.Path]
	delay := f.delays[r.URL.Path]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}

func (f *fakeBackend) respond(path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[path] = cannedResponse{status: status, body: body}
}

func (f *fakeBackend) delay(path string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[path] = d
}

func (f *fakeBackend) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeBackend) lastBody(path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	bodies := f.bodies[path]
	if len(bodies) == 0 {
		return ""
	}
	return bodies[len(bodies)-1]
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestConsole wires a console to fb on a manual clock starting at testStart
func newTestConsole(t *testing.T, fb *fakeBackend, mutate func(*Options)) (*Console, *ManualClock) {
	t.Helper()
	logger := discardLogger()
	client := api.NewClient(api.ClientConfig{
		BaseURL: fb.server.URL,
		Timeout: 2 * time.Second,
		Breaker: config.BreakerConfig{ConsecutiveFailures: 1000},
	}, nil, logger)

	clock := NewManualClock(testStart)
	opts := Options{
		Backend:  client,
		Clock:    clock,
		Logger:   logger,
		Breaker:  client,
		Dialect:  config.DialectManualOverride,
		Rollback: true,
		Timezone: "America/Chicago",
		Limits:   defaultLimits,
		Poll:     5 * time.Second,
		Tick:     time.Second,
	}
	if mutate != nil {
		mutate(&opts)
	}
	console, err := NewConsole(opts)
	if err != nil {
		t.Fatalf("Failed to create console: %v", err)
	}
	return console, clock
}

// mustPoll runs one poll and fails the test on error
func mustPoll(t *testing.T, c *Console) {
	t.Helper()
	if err := c.Poller.PollOnce(context.Background()); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
}

// waitFor polls cond until it holds or a second passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// mockSink records written documents
type mockSink struct {
	name    string
	mu      sync.Mutex
	docs    []model.Doc
	fail    bool
	pingErr error
	closed  bool
}

func (m *mockSink) Info() model.SinkInfo {
	return model.SinkInfo{Name: m.name, Version: "test", Description: "mock sink"}
}

func (m *mockSink) Open(ctx context.Context) error { return nil }

func (m *mockSink) Write(ctx context.Context, docs []model.Doc) (model.WriteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return model.WriteResult{}, errors.New("sink unavailable")
	}
	m.docs = append(m.docs, docs...)
	return model.WriteResult{SuccessCount: len(docs)}, nil
}

func (m *mockSink) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSink) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockSink) written() []model.Doc {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Doc(nil), m.docs...)
}
