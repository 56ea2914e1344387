package ambeo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	ambeoapi "github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
	"github.com/nerrad567/gray-logic-ambeo/internal/audit"
	"github.com/nerrad567/gray-logic-ambeo/internal/device"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/mqtt"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]mqtt.MessageHandler
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

// PublishedTo returns the messages published to topic, oldest first.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// SimulateMessage delivers a message to the handler whose filter matches.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	var handler mqtt.MessageHandler
	for filter, h := range m.handlers {
		if topicMatches(filter, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()
	if handler == nil {
		return fmt.Errorf("no subscription matches %s", topic)
	}
	return handler(topic, payload)
}

func topicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) || (part != "+" && part != t[i]) {
			return false
		}
	}
	return len(f) == len(t)
}

// blankDevice answers every device request with an empty document, so
// reads that the stub does not override come back absent.
func blankDevice(t *testing.T) (host string, port int, client *http.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	h, p, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, err = strconv.Atoi(p)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return h, port, srv.Client()
}

// stubClient wraps a real client for a blank device and overrides the
// calls the tests observe.
type stubClient struct {
	ambeoapi.Client

	mu        sync.Mutex
	volume    int
	night     bool
	hasSub    bool
	setVolume []int
	setNight  []bool
	endpoint  string
	volumeErr error
	nightErr  error
}

func newStubClient(t *testing.T, family ambeoapi.Family) *stubClient {
	t.Helper()
	host, port, hc := blankDevice(t)
	tr := ambeoapi.NewTransport(host, port, hc, nil, time.Second)

	var inner ambeoapi.Client
	switch family {
	case ambeoapi.FamilyEspresso:
		inner = ambeoapi.NewEspressoClient(tr)
	default:
		inner = ambeoapi.NewPopcornClient(tr)
	}
	return &stubClient{Client: inner, volume: 40}
}

func (s *stubClient) GetName(context.Context) (*string, error) {
	name := "Living Room"
	return &name, nil
}

func (s *stubClient) GetSerial(context.Context) (*string, error) {
	serial := "SN-0001"
	return &serial, nil
}

func (s *stubClient) GetModel(context.Context) (*string, error) {
	model := ambeoapi.ModelPlus
	return &model, nil
}

func (s *stubClient) GetVolume(context.Context) (*int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.volumeErr != nil {
		return nil, s.volumeErr
	}
	v := s.volume
	return &v, nil
}

func (s *stubClient) SetVolume(_ context.Context, v int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setVolume = append(s.setVolume, v)
	s.volume = v
	return nil
}

func (s *stubClient) GetNightMode(context.Context) (*bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nightErr != nil {
		return nil, s.nightErr
	}
	v := s.night
	return &v, nil
}

func (s *stubClient) SetNightMode(_ context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setNight = append(s.setNight, on)
	s.night = on
	return nil
}

func (s *stubClient) HasSubwoofer(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasSub, nil
}

func (s *stubClient) SetEndpoint(host string) {
	s.mu.Lock()
	s.endpoint = host
	s.mu.Unlock()
	s.Client.SetEndpoint(host)
}

func (s *stubClient) setVolumeCalls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.setVolume...)
}

func (s *stubClient) setNightCalls() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.setNight...)
}

// fakeRegistry records registry calls.
type fakeRegistry struct {
	mu         sync.Mutex
	registered []device.Soundbar
	health     map[string][]device.HealthStatus
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{health: make(map[string][]device.HealthStatus)}
}

func (r *fakeRegistry) RegisterSoundbar(_ context.Context, s *device.Soundbar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, *s)
	return nil
}

func (r *fakeRegistry) SetHealth(_ context.Context, id string, status device.HealthStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.health[id] = append(r.health[id], status)
	return nil
}

func (r *fakeRegistry) snapshot() ([]device.Soundbar, map[string][]device.HealthStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := make(map[string][]device.HealthStatus, len(r.health))
	for k, v := range r.health {
		h[k] = append([]device.HealthStatus(nil), v...)
	}
	return append([]device.Soundbar(nil), r.registered...), h
}

func testBridgeConfig() config.BridgeConfig {
	return config.BridgeConfig{
		ID:             "ambeo-test",
		HealthInterval: 60,
		PollInterval:   60,
		SetupRetry:     60,
		RequestTimeout: 1,
	}
}

type bridgeFixture struct {
	bridge   *Bridge
	mqtt     *MockMQTTClient
	stub     *stubClient
	registry *fakeRegistry
}

// newTestBridge builds a bridge for one soundbar "living" backed by stub.
func newTestBridge(t *testing.T, factory ClientFactory, stub *stubClient) *bridgeFixture {
	t.Helper()
	mock := NewMockMQTTClient()
	reg := newFakeRegistry()
	if factory == nil {
		factory = func(context.Context, ambeoapi.Options) (ambeoapi.Client, error) { return stub, nil }
	}

	b, err := NewBridge(BridgeOptions{
		Config:     testBridgeConfig(),
		Soundbars:  []config.SoundbarConfig{{ID: "living", Host: "192.0.2.10", Port: 80}},
		MQTTClient: mock,
		Registry:   reg,
		NewClient:  factory,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	t.Cleanup(b.Stop)
	return &bridgeFixture{bridge: b, mqtt: mock, stub: stub, registry: reg}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (f *bridgeFixture) startReady(t *testing.T) {
	t.Helper()
	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "soundbar ready", func() bool { return f.bridge.Counts().Ready == 1 })
	waitFor(t, "first state", func() bool {
		_, err := f.bridge.State("living")
		return err == nil
	})
}

func lastAck(t *testing.T, mock *MockMQTTClient, soundbar string) AckMessage {
	t.Helper()
	msgs := mock.PublishedTo(mqtt.Topics{}.Ack(soundbar))
	if len(msgs) == 0 {
		t.Fatalf("no ack published for %s", soundbar)
	}
	var ack AckMessage
	if err := json.Unmarshal(msgs[len(msgs)-1].Payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	return ack
}

func TestNewBridge(t *testing.T) {
	tests := []struct {
		name string
		opts BridgeOptions
	}{
		{"missing mqtt", BridgeOptions{Config: testBridgeConfig()}},
		{"missing bridge id", BridgeOptions{MQTTClient: NewMockMQTTClient()}},
		{"missing soundbar id", BridgeOptions{
			Config:     testBridgeConfig(),
			MQTTClient: NewMockMQTTClient(),
			Soundbars:  []config.SoundbarConfig{{Host: "a"}},
		}},
		{"duplicate soundbar id", BridgeOptions{
			Config:     testBridgeConfig(),
			MQTTClient: NewMockMQTTClient(),
			Soundbars:  []config.SoundbarConfig{{ID: "a", Host: "a"}, {ID: "a", Host: "b"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBridge(tt.opts); err == nil {
				t.Error("NewBridge() expected error")
			}
		})
	}

	b, err := NewBridge(BridgeOptions{Config: testBridgeConfig(), MQTTClient: NewMockMQTTClient()})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	if b.pollInterval != time.Minute {
		t.Errorf("pollInterval = %v, want 1m", b.pollInterval)
	}
	b.Stop()
}

func TestBridgeStartStop(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	f.startReady(t)

	subs := f.mqtt.GetSubscriptions()
	if len(subs) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(subs))
	}
	if subs[0].Topic != "ambeo/command/+" || subs[1].Topic != "ambeo/request/+" {
		t.Errorf("subscribed to %v", subs)
	}

	disc := f.mqtt.PublishedTo("ambeo/discovery/living")
	if len(disc) != 1 || !disc[0].Retained {
		t.Fatalf("discovery messages = %+v, want one retained", disc)
	}
	var dm DiscoveryMessage
	if err := json.Unmarshal(disc[0].Payload, &dm); err != nil {
		t.Fatalf("unmarshal discovery: %v", err)
	}
	if dm.Name != "Living Room" || dm.Serial != "SN-0001" || dm.Family != ambeoapi.FamilyPopcorn {
		t.Errorf("discovery = %+v", dm)
	}

	states := f.mqtt.PublishedTo("ambeo/state/living")
	if len(states) == 0 || !states[0].Retained {
		t.Fatal("expected a retained state message")
	}

	f.bridge.Stop()

	health := f.mqtt.PublishedTo("ambeo/health/ambeo-test")
	if len(health) < 2 {
		t.Fatalf("health messages = %d, want at least 2", len(health))
	}
	var first, last HealthMessage
	_ = json.Unmarshal(health[0].Payload, &first)
	_ = json.Unmarshal(health[len(health)-1].Payload, &last)
	if first.Status != HealthStarting {
		t.Errorf("first health = %s, want starting", first.Status)
	}
	if last.Status != HealthStopping {
		t.Errorf("last health = %s, want stopping", last.Status)
	}
}

func TestBridgeRegistersSoundbar(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	f.startReady(t)

	registered, health := f.registry.snapshot()
	if len(registered) != 1 {
		t.Fatalf("registered = %d, want 1", len(registered))
	}
	rec := registered[0]
	if rec.ID != "living" || rec.Serial != "SN-0001" || rec.Manufacturer != ambeoapi.Manufacturer {
		t.Errorf("registered = %+v", rec)
	}
	if err := rec.Validate(); err != nil {
		t.Errorf("registered soundbar invalid: %v", err)
	}
	if got := health["living"]; len(got) != 1 || got[0] != device.HealthOnline {
		t.Errorf("health updates = %v, want [online]", got)
	}
}

func TestBridgeCommandViaMQTT(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	f.startReady(t)

	payload := []byte(`{"id":"cmd-1","command":"night_mode","parameters":{"on":true}}`)
	if err := f.mqtt.SimulateMessage("ambeo/command/living", payload); err != nil {
		t.Fatalf("SimulateMessage() error = %v", err)
	}

	ack := lastAck(t, f.mqtt, "living")
	if ack.Status != AckAccepted || ack.CommandID != "cmd-1" || ack.SoundbarID != "living" {
		t.Errorf("ack = %+v", ack)
	}
	if got := f.stub.setNightCalls(); len(got) != 1 || !got[0] {
		t.Errorf("SetNightMode calls = %v, want [true]", got)
	}

	waitFor(t, "night mode in state", func() bool {
		s, err := f.bridge.State("living")
		return err == nil && s.Features[keyNightMode] == true
	})
}

func TestBridgeVolumeCommand(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	f.startReady(t)

	ack := f.bridge.ExecuteCommand(context.Background(), CommandMessage{
		SoundbarID: "living",
		Command:    cmdVolume,
		Parameters: map[string]any{"level": 0.25},
		Source:     "api",
	})
	if ack.Status != AckAccepted {
		t.Fatalf("ack = %+v", ack)
	}
	if ack.CommandID == "" {
		t.Error("command id should be generated")
	}
	if got := f.stub.setVolumeCalls(); len(got) != 1 || got[0] != 25 {
		t.Errorf("SetVolume calls = %v, want [25]", got)
	}
}

func TestBridgeCommandErrors(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	f.startReady(t)

	tests := []struct {
		name     string
		cmd      CommandMessage
		wantCode string
	}{
		{"unknown soundbar", CommandMessage{SoundbarID: "kitchen", Command: keyNightMode}, ErrCodeNotConfigured},
		{"unknown command", CommandMessage{SoundbarID: "living", Command: "explode"}, ErrCodeInvalidCommand},
		{"standby on popcorn", CommandMessage{SoundbarID: "living", Command: cmdTurnOff}, ErrCodeNotSupported},
		{"subwoofer absent", CommandMessage{
			SoundbarID: "living", Command: keySubwooferVolume, Parameters: map[string]any{"value": 1.0},
		}, ErrCodeNotSupported},
		{"missing parameter", CommandMessage{SoundbarID: "living", Command: keyNightMode}, ErrCodeInvalidParameters},
		{"volume out of range", CommandMessage{
			SoundbarID: "living", Command: cmdVolume, Parameters: map[string]any{"level": 1.5},
		}, ErrCodeInvalidParameters},
		{"brightness out of range", CommandMessage{
			SoundbarID: "living", Command: keyLEDBarBrightness, Parameters: map[string]any{"brightness": 101.0},
		}, ErrCodeInvalidParameters},
		{"unknown source", CommandMessage{
			SoundbarID: "living", Command: cmdSource, Parameters: map[string]any{"source": "Nope"},
		}, ErrCodeInvalidParameters},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := f.bridge.ExecuteCommand(context.Background(), tt.cmd)
			if ack.Status != AckFailed {
				t.Fatalf("status = %s, want failed", ack.Status)
			}
			if ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", ack.Error, tt.wantCode)
			}
		})
	}
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (h *fakeHistory) Create(ctx context.Context, e *audit.Entry) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, *e)
	return h.err
}

func (h *fakeHistory) all() []audit.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]audit.Entry(nil), h.entries...)
}

func TestBridgeRecordsCommandHistory(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	hist := &fakeHistory{}
	f.bridge.history = hist
	f.startReady(t)

	ok := f.bridge.ExecuteCommand(context.Background(), CommandMessage{
		ID:         "cmd-ok",
		SoundbarID: "living",
		Command:    cmdVolume,
		Parameters: map[string]any{"level": 0.5},
		Source:     "api",
	})
	failed := f.bridge.ExecuteCommand(context.Background(), CommandMessage{
		ID:         "cmd-bad",
		SoundbarID: "living",
		Command:    "explode",
		Source:     "mqtt",
	})

	entries := hist.all()
	if len(entries) != 2 {
		t.Fatalf("history entries = %d, want 2", len(entries))
	}

	got := entries[0]
	if got.ID != "cmd-ok" || got.SoundbarID != "living" || got.Command != cmdVolume || got.Source != "api" {
		t.Errorf("accepted entry = %+v", got)
	}
	if got.Status != string(AckAccepted) || got.ErrorCode != "" {
		t.Errorf("accepted entry outcome = %s/%s", got.Status, got.ErrorCode)
	}
	if !got.CreatedAt.Equal(ok.Timestamp) {
		t.Errorf("CreatedAt = %v, want ack timestamp %v", got.CreatedAt, ok.Timestamp)
	}

	got = entries[1]
	if got.Status != string(AckFailed) || got.ErrorCode != ErrCodeInvalidCommand || got.ErrorMessage != failed.Error.Message {
		t.Errorf("failed entry = %+v", got)
	}
}

func TestBridgeHistoryOutlivesCallerContext(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	hist := &fakeHistory{err: errors.New("disk full")}
	f.bridge.history = hist
	f.startReady(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Unknown soundbars fail before the context is consulted.
	ack := f.bridge.ExecuteCommand(ctx, CommandMessage{SoundbarID: "kitchen", Command: keyNightMode})
	if ack.Status != AckFailed {
		t.Fatalf("status = %s, want failed", ack.Status)
	}
	if len(hist.all()) != 1 {
		t.Errorf("history entries = %d, want 1", len(hist.all()))
	}
}

func TestBridgeStatePublishedOnlyOnChange(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))

	var (
		mu      sync.Mutex
		changes []StateMessage
	)
	f.bridge.OnStateChange(func(s StateMessage) {
		mu.Lock()
		changes = append(changes, s)
		mu.Unlock()
	})
	f.startReady(t)

	ctx := context.Background()
	if _, err := f.bridge.Refresh(ctx, "living"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if n := len(f.mqtt.PublishedTo("ambeo/state/living")); n != 1 {
		t.Errorf("state publishes after unchanged refresh = %d, want 1", n)
	}

	f.stub.mu.Lock()
	f.stub.volume = 70
	f.stub.mu.Unlock()

	state, err := f.bridge.Refresh(ctx, "living")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if state.Player.Volume == nil || *state.Player.Volume != 0.7 {
		t.Errorf("volume = %v, want 0.7", state.Player.Volume)
	}
	if n := len(f.mqtt.PublishedTo("ambeo/state/living")); n != 2 {
		t.Errorf("state publishes after change = %d, want 2", n)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 {
		t.Errorf("listener calls = %d, want 2", len(changes))
	}
}

func TestBridgeFailedReadsMarkUnavailable(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	f.startReady(t)

	ctx := context.Background()
	state, err := f.bridge.Refresh(ctx, "living")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !state.Available {
		t.Fatal("Available = false after a good poll, want true")
	}
	if len(state.Unavailable) != 0 {
		t.Fatalf("Unavailable = %v after a good poll, want none", state.Unavailable)
	}

	f.stub.mu.Lock()
	f.stub.volumeErr = &ambeoapi.ConnectionError{URL: "getData?path=player:volume", Err: errors.New("timeout")}
	f.stub.nightErr = &ambeoapi.ConnectionError{URL: "getData?path=night", Err: errors.New("timeout")}
	f.stub.mu.Unlock()

	state, err = f.bridge.Refresh(ctx, "living")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if state.Available {
		t.Error("Available = true after the volume read failed, want false")
	}
	if state.Player.Volume != nil {
		t.Errorf("Volume = %v after the volume read failed, want nil", *state.Player.Volume)
	}
	for _, key := range []string{"player.volume", keyNightMode} {
		found := false
		for _, u := range state.Unavailable {
			if u == key {
				found = true
			}
		}
		if !found {
			t.Errorf("Unavailable = %v, want it to contain %q", state.Unavailable, key)
		}
	}
	if _, ok := state.Features[keyNightMode]; ok {
		t.Error("night_mode still reported after its read failed")
	}

	msgs := f.mqtt.PublishedTo("ambeo/state/living")
	if len(msgs) != 2 {
		t.Fatalf("state publishes = %d, want 2", len(msgs))
	}
	var published StateMessage
	if err := json.Unmarshal(msgs[1].Payload, &published); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if published.Available {
		t.Error("published state Available = true, want false")
	}

	f.stub.mu.Lock()
	f.stub.volumeErr, f.stub.nightErr = nil, nil
	f.stub.mu.Unlock()

	state, err = f.bridge.Refresh(ctx, "living")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !state.Available || len(state.Unavailable) != 0 {
		t.Errorf("after recovery Available = %v, Unavailable = %v", state.Available, state.Unavailable)
	}
}

func TestBridgePendingSetupRetries(t *testing.T) {
	stub := newStubClient(t, ambeoapi.FamilyPopcorn)
	var (
		mu    sync.Mutex
		calls int
	)
	factory := func(context.Context, ambeoapi.Options) (ambeoapi.Client, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls < 3 {
			return nil, fmt.Errorf("probe: %w", ambeoapi.ErrDeviceUnreachable)
		}
		return stub, nil
	}
	f := newTestBridge(t, factory, stub)
	f.bridge.setupRetry = 20 * time.Millisecond

	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "soundbar ready", func() bool { return f.bridge.Counts().Ready == 1 })

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("factory calls = %d, want 3", calls)
	}
}

func TestBridgePendingSoundbarRejectsCommands(t *testing.T) {
	factory := func(context.Context, ambeoapi.Options) (ambeoapi.Client, error) {
		return nil, fmt.Errorf("probe: %w", ambeoapi.ErrDeviceUnreachable)
	}
	f := newTestBridge(t, factory, nil)
	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "setup attempt", func() bool {
		s, _ := f.bridge.Soundbar("living")
		return s.Error != ""
	})

	ack := f.bridge.ExecuteCommand(context.Background(), CommandMessage{SoundbarID: "living", Command: cmdPlay})
	if ack.Error == nil || ack.Error.Code != ErrCodeDeviceUnreachable {
		t.Errorf("ack = %+v, want DEVICE_UNREACHABLE", ack)
	}
	if c := f.bridge.Counts(); c.Pending != 1 {
		t.Errorf("Counts() = %+v, want 1 pending", c)
	}
	if _, err := f.bridge.Refresh(context.Background(), "living"); !errors.Is(err, ErrSoundbarNotReady) {
		t.Errorf("Refresh() error = %v, want ErrSoundbarNotReady", err)
	}
}

func TestBridgeFailedSetup(t *testing.T) {
	var calls int
	var mu sync.Mutex
	factory := func(context.Context, ambeoapi.Options) (ambeoapi.Client, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ambeoapi.ErrUnsupportedModel, "AMBEO Soundbar Ultra")
	}
	f := newTestBridge(t, factory, nil)
	f.bridge.setupRetry = 10 * time.Millisecond

	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "setup failure", func() bool { return f.bridge.Counts().Failed == 1 })
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("factory calls = %d, want 1 (no retry)", calls)
	}

	s, err := f.bridge.Soundbar("living")
	if err != nil {
		t.Fatalf("Soundbar() error = %v", err)
	}
	if s.Status != string(setupFailed) || s.Name != "living" {
		t.Errorf("status = %+v", s)
	}
}

func TestBridgeRequests(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	f.startReady(t)

	tests := []struct {
		name        string
		payload     string
		wantSuccess bool
		wantCode    string
	}{
		{"read state", `{"action":"read_state","soundbar_id":"living"}`, true, ""},
		{"refresh", `{"action":"refresh","soundbar_id":"living"}`, true, ""},
		{"reload sources", `{"action":"reload_sources","soundbar_id":"living"}`, true, ""},
		{"unknown soundbar", `{"action":"read_state","soundbar_id":"kitchen"}`, false, ErrCodeNotConfigured},
		{"unknown action", `{"action":"dance","soundbar_id":"living"}`, false, ErrCodeInvalidCommand},
		{"set endpoint without host", `{"action":"set_endpoint","soundbar_id":"living"}`, false, ErrCodeInvalidParameters},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requestID := fmt.Sprintf("req-%d", i)
			if err := f.mqtt.SimulateMessage("ambeo/request/"+requestID, []byte(tt.payload)); err != nil {
				t.Fatalf("SimulateMessage() error = %v", err)
			}
			msgs := f.mqtt.PublishedTo("ambeo/response/" + requestID)
			if len(msgs) != 1 {
				t.Fatalf("responses = %d, want 1", len(msgs))
			}
			var resp ResponseMessage
			if err := json.Unmarshal(msgs[0].Payload, &resp); err != nil {
				t.Fatalf("unmarshal response: %v", err)
			}
			if resp.RequestID != requestID {
				t.Errorf("request id = %q, want %q", resp.RequestID, requestID)
			}
			if resp.Success != tt.wantSuccess {
				t.Fatalf("success = %v, want %v (error %+v)", resp.Success, tt.wantSuccess, resp.Error)
			}
			if !tt.wantSuccess && resp.Error.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestBridgeSetEndpoint(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	f.startReady(t)

	resp := f.bridge.HandleRequest(context.Background(), RequestMessage{
		RequestID:  "r1",
		Action:     ActionSetEndpoint,
		SoundbarID: "living",
		Parameters: map[string]any{"host": "192.0.2.99"},
	})
	if !resp.Success {
		t.Fatalf("response = %+v", resp)
	}

	f.stub.mu.Lock()
	endpoint := f.stub.endpoint
	f.stub.mu.Unlock()
	if endpoint != "192.0.2.99" {
		t.Errorf("SetEndpoint host = %q", endpoint)
	}

	registered, _ := f.registry.snapshot()
	if last := registered[len(registered)-1]; last.Host != "192.0.2.99" {
		t.Errorf("registered host = %q, want 192.0.2.99", last.Host)
	}
}

func TestBridgeInvalidTopicFormat(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))

	if err := f.bridge.handleMQTTMessage("ambeo", nil); err == nil {
		t.Error("expected error for short topic")
	}
	if err := f.bridge.handleMQTTMessage("ambeo/command/living", []byte("{not json")); err == nil {
		t.Error("expected error for malformed command")
	}
	if err := f.bridge.handleMQTTMessage("ambeo/other/x", []byte("{}")); err == nil {
		t.Error("expected error for unknown message type")
	}
}

func TestBridgeCommandTopicFallback(t *testing.T) {
	f := newTestBridge(t, nil, newStubClient(t, ambeoapi.FamilyPopcorn))
	f.startReady(t)

	if err := f.bridge.handleCommand("ambeo/command/living", []byte(`{"command":"play"}`)); err != nil {
		t.Fatalf("handleCommand() error = %v", err)
	}
	ack := lastAck(t, f.mqtt, "living")
	if ack.SoundbarID != "living" {
		t.Errorf("soundbar id = %q, want living from topic", ack.SoundbarID)
	}
}
