package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
	"github.com/nerrad567/gray-logic-ambeo/internal/audit"
	bridge "github.com/nerrad567/gray-logic-ambeo/internal/bridges/ambeo"
	"github.com/nerrad567/gray-logic-ambeo/internal/device"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/logging"
	_ "github.com/nerrad567/gray-logic-ambeo/migrations"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// fakeBridge is an in-memory Bridge with one ready soundbar ("living")
// and one still being set up ("kitchen").
type fakeBridge struct {
	mu        sync.Mutex
	soundbars []bridge.SoundbarStatus
	states    map[string]*bridge.StateMessage
	commands  []bridge.CommandMessage
	requests  []bridge.RequestMessage
	listeners []func(bridge.StateMessage)
	counts    bridge.SoundbarCounts

	// failCode makes every command fail with this code.
	failCode string

	// blockRefresh makes Refresh wait for its context to end.
	blockRefresh bool
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		soundbars: []bridge.SoundbarStatus{
			{ID: "living", Name: "Living Room", Host: "192.0.2.10", Port: 80, Status: "ready", Family: ambeo.FamilyEspresso},
			{ID: "kitchen", Name: "Kitchen", Host: "192.0.2.11", Port: 80, Status: "pending"},
		},
		states: map[string]*bridge.StateMessage{
			"living": {SoundbarID: "living", Available: true, Features: map[string]any{"night_mode": true}},
		},
		counts: bridge.SoundbarCounts{Ready: 1, Pending: 1},
	}
}

func (f *fakeBridge) Soundbars() []bridge.SoundbarStatus { return f.soundbars }

func (f *fakeBridge) Soundbar(id string) (bridge.SoundbarStatus, error) {
	for _, s := range f.soundbars {
		if s.ID == id {
			return s, nil
		}
	}
	return bridge.SoundbarStatus{}, fmt.Errorf("%w: %s", bridge.ErrSoundbarNotConfigured, id)
}

func (f *fakeBridge) State(id string) (*bridge.StateMessage, error) {
	if _, err := f.Soundbar(id); err != nil {
		return nil, err
	}
	state, ok := f.states[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", bridge.ErrSoundbarNotReady, id)
	}
	return state, nil
}

func (f *fakeBridge) Refresh(ctx context.Context, id string) (*bridge.StateMessage, error) {
	if f.blockRefresh {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.State(id)
}

func (f *fakeBridge) ExecuteCommand(_ context.Context, cmd bridge.CommandMessage) bridge.AckMessage {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	ack := bridge.AckMessage{
		CommandID:  cmd.ID,
		SoundbarID: cmd.SoundbarID,
		Command:    cmd.Command,
		Status:     bridge.AckAccepted,
	}
	if f.failCode != "" {
		ack.Status = bridge.AckFailed
		ack.Error = &bridge.AckError{Code: f.failCode, Message: "failed"}
	}
	return ack
}

func (f *fakeBridge) HandleRequest(_ context.Context, req bridge.RequestMessage) bridge.ResponseMessage {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if req.Action != bridge.ActionReadState {
		return bridge.ResponseMessage{
			RequestID: req.RequestID,
			Error:     &bridge.AckError{Code: bridge.ErrCodeInvalidCommand, Message: "unknown action"},
		}
	}
	return bridge.ResponseMessage{RequestID: req.RequestID, Success: true, Data: map[string]any{"soundbar": req.SoundbarID}}
}

func (f *fakeBridge) OnStateChange(fn func(bridge.StateMessage)) {
	f.mu.Lock()
	f.listeners = append(f.listeners, fn)
	f.mu.Unlock()
}

func (f *fakeBridge) Counts() bridge.SoundbarCounts { return f.counts }

func (f *fakeBridge) emit(state bridge.StateMessage) {
	f.mu.Lock()
	listeners := f.listeners
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(state)
	}
}

func (f *fakeBridge) lastCommand(t *testing.T) bridge.CommandMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.commands) == 0 {
		t.Fatal("no command reached the bridge")
	}
	return f.commands[len(f.commands)-1]
}

type fakeMQTT struct{ connected bool }

func (m fakeMQTT) IsConnected() bool { return m.connected }

// testRegistry opens a migrated SQLite registry holding the living room
// soundbar's record.
func testRegistry(t *testing.T) *device.Registry {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "ambeo.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	if err := registry.RegisterSoundbar(ctx, &device.Soundbar{
		ID:           "living",
		Name:         "Living Room",
		Model:        ambeo.ModelMax,
		Serial:       "SN-0001",
		Firmware:     "1.2.3",
		Host:         "192.0.2.10",
		Port:         80,
		Family:       ambeo.FamilyEspresso,
		HealthStatus: device.HealthUnknown,
	}); err != nil {
		t.Fatalf("RegisterSoundbar: %v", err)
	}
	return registry
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

// testServer creates a Server over a fake bridge and a real registry.
func testServer(t *testing.T, mutate ...func(*Deps)) (*Server, *fakeBridge) {
	t.Helper()

	fb := newFakeBridge()
	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:   testLogger(),
		Bridge:   fb,
		Registry: testRegistry(t),
		Gatherer: prometheus.NewRegistry(),
		Version:  "test",
	}
	for _, fn := range mutate {
		fn(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(ctx)

	return srv, fb
}

func withAuth(d *Deps) {
	d.Security = config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret, Issuer: "ambeo-test"}}
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

func signToken(t *testing.T, secret, issuer string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "home-assistant",
		Issuer:    issuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Bridge: newFakeBridge()}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without bridge should fail")
	}
}

func TestNew_DefaultsKeepalive(t *testing.T) {
	srv, err := New(Deps{Logger: testLogger(), Bridge: newFakeBridge()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if srv.wsCfg.PingInterval != defaultPingInterval || srv.wsCfg.PongTimeout != defaultPongTimeout {
		t.Errorf("ws config = %+v, want defaults", srv.wsCfg)
	}
	if srv.gatherer != prometheus.DefaultGatherer {
		t.Error("gatherer should default to prometheus.DefaultGatherer")
	}
}

func TestHealthCheck_NotStarted(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}

// ─── Health and Metrics ────────────────────────────────────────────

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		counts     bridge.SoundbarCounts
		mqtt       ConnectionChecker
		wantStatus string
	}{
		{"all ready", bridge.SoundbarCounts{Ready: 2}, fakeMQTT{connected: true}, healthOK},
		{"pending soundbar", bridge.SoundbarCounts{Ready: 1, Pending: 1}, fakeMQTT{connected: true}, healthDegraded},
		{"failed soundbar", bridge.SoundbarCounts{Failed: 1}, nil, healthDegraded},
		{"broker down", bridge.SoundbarCounts{Ready: 1}, fakeMQTT{connected: false}, healthDegraded},
		{"no broker checker", bridge.SoundbarCounts{Ready: 1}, nil, healthOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, fb := testServer(t, func(d *Deps) { d.MQTT = tt.mqtt })
			fb.counts = tt.counts

			w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/health", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			var resp map[string]any
			decode(t, w, &resp)
			if resp["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", resp["status"], tt.wantStatus)
			}
			if resp["version"] != "test" {
				t.Errorf("version = %v, want test", resp["version"])
			}
			_, hasMQTT := resp["mqtt_connected"]
			if hasMQTT != (tt.mqtt != nil) {
				t.Errorf("mqtt_connected present = %v", hasMQTT)
			}
			health, _ := resp["health"].(map[string]any)
			if health["unknown"] != float64(1) {
				t.Errorf("registry health = %v, want one unknown soundbar", health)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "ambeo_test_total", Help: "Test counter."})
	reg.MustRegister(counter)
	counter.Add(3)

	srv, _ := testServer(t, withAuth, func(d *Deps) { d.Gatherer = reg })

	w := do(t, srv.buildRouter(), http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 without a token", w.Code)
	}
	if !strings.Contains(w.Body.String(), "ambeo_test_total 3") {
		t.Errorf("body missing counter:\n%s", w.Body.String())
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	if got := do(t, router, http.MethodGet, "/api/v1/health", "").Header().Get("X-Request-ID"); got == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	w := do(t, router, http.MethodGet, "/api/v1/health", "", "X-Request-ID", "client-123")
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS(t *testing.T) {
	srv, _ := testServer(t, func(d *Deps) {
		d.Config.CORS.AllowedOrigins = []string{"http://panel.local"}
	})
	router := srv.buildRouter()

	w := do(t, router, http.MethodOptions, "/api/v1/soundbars", "", "Origin", "http://panel.local")
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://panel.local" {
		t.Errorf("Allow-Origin = %q", got)
	}

	w = do(t, router, http.MethodOptions, "/api/v1/soundbars", "", "Origin", "http://evil.example")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Allow-Origin = %q", got)
	}
}

func TestRecovery(t *testing.T) {
	srv, _ := testServer(t)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := do(t, h, http.MethodGet, "/", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestBodySizeLimit(t *testing.T) {
	srv, _ := testServer(t)
	body := `{"command":"volume","parameters":{"pad":"` + strings.Repeat("x", maxRequestBodySize) + `"}}`

	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/soundbars/living/commands", body)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for an oversized body", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)
	if w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/nope", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ─── Soundbars ─────────────────────────────────────────────────────

func TestListSoundbars(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/soundbars", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Soundbars []soundbarView `json:"soundbars"`
		Count     int            `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 2 || len(resp.Soundbars) != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Soundbars[0].ID != "living" || resp.Soundbars[1].ID != "kitchen" {
		t.Errorf("order = %s, %s; want config order", resp.Soundbars[0].ID, resp.Soundbars[1].ID)
	}
	if resp.Soundbars[0].Serial != "SN-0001" || resp.Soundbars[0].Firmware != "1.2.3" {
		t.Errorf("living record not joined: %+v", resp.Soundbars[0])
	}
	if resp.Soundbars[1].Serial != "" {
		t.Errorf("kitchen has no record, serial = %q", resp.Soundbars[1].Serial)
	}
}

func TestGetSoundbar(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/soundbars/living", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var v soundbarView
	decode(t, w, &v)
	if v.Name != "Living Room" || v.Family != ambeo.FamilyEspresso || v.Serial != "SN-0001" {
		t.Errorf("soundbar = %+v", v)
	}

	w = do(t, router, http.MethodGet, "/api/v1/soundbars/garage", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown soundbar status = %d, want 404", w.Code)
	}
	var apiErr Error
	decode(t, w, &apiErr)
	if apiErr.Code != ErrCodeNotFound {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeNotFound)
	}
}

func TestGetState(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
	}{
		{"ready", http.MethodGet, "/api/v1/soundbars/living/state", http.StatusOK},
		{"pending", http.MethodGet, "/api/v1/soundbars/kitchen/state", http.StatusServiceUnavailable},
		{"unknown", http.MethodGet, "/api/v1/soundbars/garage/state", http.StatusNotFound},
		{"refresh ready", http.MethodPost, "/api/v1/soundbars/living/refresh", http.StatusOK},
		{"refresh pending", http.MethodPost, "/api/v1/soundbars/kitchen/refresh", http.StatusServiceUnavailable},
	}

	srv, _ := testServer(t)
	router := srv.buildRouter()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var state bridge.StateMessage
			decode(t, w, &state)
			if state.SoundbarID != "living" || state.Features["night_mode"] != true {
				t.Errorf("state = %+v", state)
			}
		})
	}
}

// ─── Commands and Requests ─────────────────────────────────────────

func TestCommand(t *testing.T) {
	srv, fb := testServer(t)

	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/soundbars/living/commands",
		`{"command":"volume","parameters":{"level":0.4}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var ack bridge.AckMessage
	decode(t, w, &ack)
	if ack.Status != bridge.AckAccepted {
		t.Errorf("ack status = %s, want accepted", ack.Status)
	}

	cmd := fb.lastCommand(t)
	if cmd.SoundbarID != "living" || cmd.Command != "volume" || cmd.Source != commandSource {
		t.Errorf("command = %+v", cmd)
	}
	if cmd.Parameters["level"] != 0.4 {
		t.Errorf("parameters = %v", cmd.Parameters)
	}
	if len(cmd.ID) != 36 || ack.CommandID != cmd.ID {
		t.Errorf("command id = %q, ack id = %q; want a matching uuid", cmd.ID, ack.CommandID)
	}
}

func TestCommand_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		failCode   string
		wantStatus int
	}{
		{"invalid json", `{`, "", http.StatusBadRequest},
		{"missing command", `{"parameters":{}}`, "", http.StatusBadRequest},
		{"invalid command", `{"command":"fly"}`, bridge.ErrCodeInvalidCommand, http.StatusBadRequest},
		{"invalid parameters", `{"command":"volume"}`, bridge.ErrCodeInvalidParameters, http.StatusBadRequest},
		{"not configured", `{"command":"play"}`, bridge.ErrCodeNotConfigured, http.StatusNotFound},
		{"not supported", `{"command":"turn_off"}`, bridge.ErrCodeNotSupported, http.StatusUnprocessableEntity},
		{"unreachable", `{"command":"play"}`, bridge.ErrCodeDeviceUnreachable, http.StatusServiceUnavailable},
		{"timeout", `{"command":"play"}`, bridge.ErrCodeTimeout, http.StatusGatewayTimeout},
		{"bridge error", `{"command":"play"}`, bridge.ErrCodeBridgeError, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, fb := testServer(t)
			fb.failCode = tt.failCode

			w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/soundbars/living/commands", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.failCode == "" {
				return
			}
			var ack bridge.AckMessage
			decode(t, w, &ack)
			if ack.Error == nil || ack.Error.Code != tt.failCode {
				t.Errorf("ack error = %+v, want %s", ack.Error, tt.failCode)
			}
		})
	}
}

func TestRequest(t *testing.T) {
	srv, fb := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodPost, "/api/v1/requests", `{"action":"read_state","soundbar_id":"living"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}
	var resp bridge.ResponseMessage
	decode(t, w, &resp)
	if !resp.Success || resp.Data["soundbar"] != "living" {
		t.Errorf("response = %+v", resp)
	}
	if len(fb.requests) != 1 || fb.requests[0].RequestID == "" || fb.requests[0].Timestamp.IsZero() {
		t.Errorf("request not stamped: %+v", fb.requests)
	}

	w = do(t, router, http.MethodPost, "/api/v1/requests", `{"request_id":"r1","action":"explode"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown action status = %d, want 400", w.Code)
	}
	decode(t, w, &resp)
	if resp.RequestID != "r1" {
		t.Errorf("request id = %q, want caller's r1", resp.RequestID)
	}

	if w := do(t, router, http.MethodPost, "/api/v1/requests", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing action status = %d, want 400", w.Code)
	}
}

// ─── Auth ──────────────────────────────────────────────────────────

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		auth       string
		wantStatus int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"valid token", "Bearer " + signToken(t, testSecret, "ambeo-test", time.Hour), http.StatusOK},
		{"lowercase scheme", "bearer " + signToken(t, testSecret, "ambeo-test", time.Hour), http.StatusOK},
		{"wrong secret", "Bearer " + signToken(t, "another-secret-key-at-least-32-characters", "ambeo-test", time.Hour), http.StatusUnauthorized},
		{"wrong issuer", "Bearer " + signToken(t, testSecret, "someone-else", time.Hour), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, "ambeo-test", -time.Minute), http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	srv, _ := testServer(t, withAuth)
	router := srv.buildRouter()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *httptest.ResponseRecorder
			if tt.auth == "" {
				w = do(t, router, http.MethodGet, "/api/v1/soundbars", "")
			} else {
				w = do(t, router, http.MethodGet, "/api/v1/soundbars", "", "Authorization", tt.auth)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}

	if w := do(t, router, http.MethodGet, "/api/v1/health", ""); w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200 without a token", w.Code)
	}
}

func TestAuth_DisabledWithoutSecret(t *testing.T) {
	srv, _ := testServer(t)
	if w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/soundbars", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}

func TestWSTicket_SingleUse(t *testing.T) {
	srv, _ := testServer(t, withAuth)
	token := signToken(t, testSecret, "ambeo-test", time.Hour)

	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/auth/ws-ticket", "", "Authorization", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp map[string]any
	decode(t, w, &resp)
	ticket, ok := resp["ticket"].(string)
	if !ok || ticket == "" {
		t.Fatal("expected ticket to be a non-empty string")
	}

	if !srv.tickets.consume(ticket) {
		t.Error("ticket should be valid on first use")
	}
	if srv.tickets.consume(ticket) {
		t.Error("ticket should not be valid on second use")
	}
}

func TestWSTicket_Expiry(t *testing.T) {
	ts := newTicketStore()
	now := time.Now()
	ts.now = func() time.Time { return now }

	expired := ts.issue()
	kept := ts.issue()
	now = now.Add(ticketTTL + time.Second)

	if ts.consume(expired) {
		t.Error("expired ticket should not be valid")
	}

	ts.clean()
	if len(ts.tickets) != 0 {
		t.Errorf("clean left %d tickets, want 0", len(ts.tickets))
	}
	if ts.consume(kept) {
		t.Error("cleaned ticket should not be valid")
	}
}

// ─── WebSocket ─────────────────────────────────────────────────────

func newTestClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
	hub.Register(client)
	return client
}

func TestHub_Broadcast(t *testing.T) {
	tests := []struct {
		name     string
		channels []string
		want     bool
	}{
		{"subscribed to soundbar", []string{"living"}, true},
		{"subscribed to all", []string{WSChannelAll}, true},
		{"other soundbar", []string{"kitchen"}, false},
		{"no subscriptions", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := NewHub(config.WebSocketConfig{}, testLogger())
			client := newTestClient(hub, tt.channels...)

			hub.Broadcast("living", map[string]any{"available": true})

			select {
			case msg := <-client.send:
				if !tt.want {
					t.Fatal("unsubscribed client received a message")
				}
				var ws WSMessage
				if err := json.Unmarshal(msg, &ws); err != nil {
					t.Fatalf("unmarshal: %v", err)
				}
				if ws.Type != WSTypeEvent || ws.EventType != WSEventStateChanged || ws.Channel != "living" {
					t.Errorf("message = %+v", ws)
				}
			case <-time.After(100 * time.Millisecond):
				if tt.want {
					t.Error("timed out waiting for broadcast message")
				}
			}
		})
	}
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	client := newTestClient(hub, WSChannelAll)

	done := make(chan struct{})
	go func() {
		for i := 0; i < wsSendBufferSize*2; i++ {
			hub.Broadcast("living", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full client buffer")
	}
	if len(client.send) != wsSendBufferSize {
		t.Errorf("buffered = %d, want %d", len(client.send), wsSendBufferSize)
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := newTestClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading websocket: %v", err)
	}
	return msg
}

func TestWebSocket_StreamsStateChanges(t *testing.T) {
	srv, fb := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(WSMessage{Type: WSTypeSubscribe, ID: "1", Payload: WSSubscribePayload{Channels: []string{"living"}}}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if resp := readWS(t, conn); resp.Type != WSTypeResponse || resp.ID != "1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	fb.emit(bridge.StateMessage{SoundbarID: "kitchen"})
	fb.emit(bridge.StateMessage{SoundbarID: "living", Available: true})

	event := readWS(t, conn)
	if event.EventType != WSEventStateChanged || event.Channel != "living" {
		t.Errorf("event = %+v, want living state change", event)
	}

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "2"}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if resp := readWS(t, conn); resp.Type != WSTypePong || resp.ID != "2" {
		t.Errorf("ping response = %+v", resp)
	}

	if err := conn.WriteJSON(WSMessage{Type: "dance", ID: "3"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if resp := readWS(t, conn); resp.Type != WSTypeError {
		t.Errorf("unknown type response = %+v, want error", resp)
	}
}

func TestWebSocket_RequiresTicketWithAuth(t *testing.T) {
	srv, _ := testServer(t, withAuth)
	router := srv.buildRouter()

	if w := do(t, router, http.MethodGet, "/api/v1/ws", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no ticket status = %d, want 401", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/api/v1/ws?ticket=bogus", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("bad ticket status = %d, want 401", w.Code)
	}
}

// ─── Command history ───────────────────────────────────────────────

type fakeHistory struct {
	mu      sync.Mutex
	filters []audit.Filter
	err     error
}

func (h *fakeHistory) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.filters = append(h.filters, filter)
	if h.err != nil {
		return nil, h.err
	}
	return &audit.ListResult{
		Entries: []audit.Entry{{ID: "cmd-1", SoundbarID: filter.SoundbarID, Command: "mute", Status: "accepted"}},
		Total:   1,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func (h *fakeHistory) lastFilter(t *testing.T) audit.Filter {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.filters) == 0 {
		t.Fatal("history was not queried")
	}
	return h.filters[len(h.filters)-1]
}

func TestCommandHistory(t *testing.T) {
	hist := &fakeHistory{}
	srv, _ := testServer(t, func(d *Deps) { d.History = hist })

	w := do(t, srv.buildRouter(), http.MethodGet,
		"/api/v1/soundbars/living/commands?command=mute&status=accepted&limit=10&offset=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var res audit.ListResult
	decode(t, w, &res)
	if res.Total != 1 || len(res.Entries) != 1 || res.Entries[0].ID != "cmd-1" {
		t.Errorf("result = %+v", res)
	}

	want := audit.Filter{SoundbarID: "living", Command: "mute", Status: "accepted", Limit: 10, Offset: 5}
	if got := hist.lastFilter(t); got != want {
		t.Errorf("filter = %+v, want %+v", got, want)
	}
}

func TestCommandHistory_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		listErr    error
		wantStatus int
	}{
		{"unknown soundbar", "/api/v1/soundbars/garage/commands", nil, http.StatusNotFound},
		{"bad limit", "/api/v1/soundbars/living/commands?limit=ten", nil, http.StatusBadRequest},
		{"bad offset", "/api/v1/soundbars/living/commands?offset=-", nil, http.StatusBadRequest},
		{"store failure", "/api/v1/soundbars/living/commands", fmt.Errorf("database is locked"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist := &fakeHistory{err: tt.listErr}
			srv, _ := testServer(t, func(d *Deps) { d.History = hist })

			w := do(t, srv.buildRouter(), http.MethodGet, tt.path, "")
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestCommandHistory_DisabledWithoutStore(t *testing.T) {
	srv, _ := testServer(t)

	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/soundbars/living/commands", "")
	if w.Code == http.StatusOK {
		t.Errorf("status = 200, want the route to be absent")
	}
}

func TestRefreshTimesOut(t *testing.T) {
	srv, fb := testServer(t, func(d *Deps) { d.RefreshTimeout = 20 * time.Millisecond })
	fb.blockRefresh = true

	start := time.Now()
	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/soundbars/living/refresh", "")
	if w.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusGatewayTimeout, w.Body.String())
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("refresh took %v, want it bounded by the refresh timeout", elapsed)
	}
}

func TestRefreshTimeoutDefaultsToCommandTimeout(t *testing.T) {
	srv, _ := testServer(t)
	if srv.refresh != bridge.CommandTimeout {
		t.Errorf("refresh timeout = %v, want %v", srv.refresh, bridge.CommandTimeout)
	}
}
