package ambeo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ambeoapi "github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
	"github.com/nerrad567/gray-logic-ambeo/internal/ambeo/player"
	"github.com/nerrad567/gray-logic-ambeo/internal/audit"
	"github.com/nerrad567/gray-logic-ambeo/internal/device"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-ambeo/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// minTopicParts is the minimum number of levels in a routed topic.
	minTopicParts = 3

	// CommandTimeout bounds one command or on-demand refresh against a soundbar.
	CommandTimeout = 10 * time.Second

	qosAtLeastOnce byte = 1

	defaultPollInterval = 10 * time.Second
	defaultSetupRetry   = 30 * time.Second
)

// Bridge manages the configured soundbars and connects them to MQTT.
// It handles:
//   - Setting up each soundbar, retrying while it is unreachable
//   - Polling state and publishing changes as retained messages
//   - Executing commands and answering requests
//   - Health reporting and graceful shutdown
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg       config.BridgeConfig
	mqtt      MQTTClient
	registry  SoundbarRegistry
	metrics   *Metrics
	history   CommandRecorder
	health    *HealthReporter
	newClient ClientFactory
	http      *http.Client

	pollInterval time.Duration
	setupRetry   time.Duration

	// soundbars is fixed after NewBridge; order follows the config.
	soundbars map[string]*managedSoundbar
	order     []string

	listeners   []func(StateMessage)
	listenersMu sync.RWMutex

	// Shutdown coordination
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the structured logger the bridge writes to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MQTTClient is the subset of the MQTT client the bridge uses.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// CommandRecorder keeps the history of executed commands.
type CommandRecorder interface {
	Create(ctx context.Context, e *audit.Entry) error
}

// SoundbarRegistry persists soundbar identity and reachability.
// *device.Registry satisfies it. It is optional.
type SoundbarRegistry interface {
	RegisterSoundbar(ctx context.Context, s *device.Soundbar) error
	SetHealth(ctx context.Context, id string, status device.HealthStatus) error
}

// ClientFactory builds the device client for one soundbar.
type ClientFactory func(ctx context.Context, opts ambeoapi.Options) (ambeoapi.Client, error)

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	Config    config.BridgeConfig
	Soundbars []config.SoundbarConfig

	// MQTTClient is required.
	MQTTClient MQTTClient

	// Registry is optional. If nil, nothing is persisted.
	Registry SoundbarRegistry

	// Metrics is optional.
	Metrics *Metrics

	// History is optional. If set, every acknowledged command is recorded.
	History CommandRecorder

	Logger  Logger
	Version string

	// HTTPClient is shared by every soundbar client. May be nil.
	HTTPClient *http.Client

	// NewClient defaults to ambeoapi.NewClient.
	NewClient ClientFactory
}

// setupStatus is the lifecycle stage of a managed soundbar.
type setupStatus string

const (
	setupPending setupStatus = "pending"
	setupReady   setupStatus = "ready"
	setupFailed  setupStatus = "failed"
)

// managedSoundbar is the bridge's view of one configured soundbar.
// client, player and hasSub are set once when setup succeeds.
type managedSoundbar struct {
	id      string
	pollNow chan struct{}

	// pollMu serialises polls so a refresh request and the loop don't
	// interleave their reads.
	pollMu sync.Mutex

	mu      sync.RWMutex
	cfg     config.SoundbarConfig
	status  setupStatus
	lastErr error
	client  ambeoapi.Client
	player  *player.Player
	hasSub  bool
	record  device.Soundbar
	health  device.HealthStatus
	state   *StateMessage
	lastKey []byte
}

// NewBridge creates a bridge. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Config.ID == "" {
		return nil, fmt.Errorf("bridge id is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:          opts.Config,
		mqtt:         opts.MQTTClient,
		registry:     opts.Registry,
		metrics:      opts.Metrics,
		history:      opts.History,
		newClient:    opts.NewClient,
		http:         opts.HTTPClient,
		pollInterval: opts.Config.GetPollInterval(),
		setupRetry:   opts.Config.GetSetupRetry(),
		soundbars:    make(map[string]*managedSoundbar, len(opts.Soundbars)),
		ctx:          ctx,
		ctxCancel:    ctxCancel,
		logger:       opts.Logger,
	}
	if b.newClient == nil {
		b.newClient = ambeoapi.NewClient
	}
	if b.pollInterval <= 0 {
		b.pollInterval = defaultPollInterval
	}
	if b.setupRetry <= 0 {
		b.setupRetry = defaultSetupRetry
	}

	for _, sc := range opts.Soundbars {
		if sc.ID == "" {
			ctxCancel()
			return nil, fmt.Errorf("soundbar id is required")
		}
		if _, dup := b.soundbars[sc.ID]; dup {
			ctxCancel()
			return nil, fmt.Errorf("duplicate soundbar id %q", sc.ID)
		}
		b.soundbars[sc.ID] = &managedSoundbar{
			id:      sc.ID,
			cfg:     sc,
			status:  setupPending,
			health:  device.HealthUnknown,
			pollNow: make(chan struct{}, 1),
		}
		b.order = append(b.order, sc.ID)
	}

	version := opts.Version
	if version == "" {
		version = "dev"
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.ID,
		Version:   version,
		Interval:  opts.Config.GetHealthInterval(),
		Publisher: opts.MQTTClient,
		Counts:    b.Counts,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// Start subscribes to commands and requests, starts health reporting and
// begins setting up every configured soundbar in the background.
func (b *Bridge) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	topics := mqtt.Topics{}
	if err := b.mqtt.Subscribe(topics.AllCommands(), qosAtLeastOnce, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	if err := b.mqtt.Subscribe(topics.AllRequests(), qosAtLeastOnce, b.handleMQTTMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}

	b.updateCounts()
	b.health.Start(b.ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health", err)
	}

	for _, id := range b.order {
		m := b.soundbars[id]
		b.wg.Add(1)
		go b.run(m)
	}

	b.logInfo("bridge started", "bridge_id", b.cfg.ID, "soundbars", len(b.order))
	return nil
}

// Stop cancels setup and polling, publishes a stopping status and waits for
// the soundbar goroutines to exit.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()

		for _, id := range b.order {
			m := b.soundbars[id]
			m.mu.RLock()
			p := m.player
			m.mu.RUnlock()
			if p != nil {
				p.Close()
			}
		}

		b.logInfo("bridge stopped")
	})
}

// run sets up one soundbar and then polls it until the bridge stops.
func (b *Bridge) run(m *managedSoundbar) {
	defer b.wg.Done()

	if !b.setupWithRetry(m) {
		return
	}
	b.pollLoop(m)
}

// setupWithRetry retries setup while the soundbar is unreachable. Any other
// error marks it failed for the life of the bridge.
func (b *Bridge) setupWithRetry(m *managedSoundbar) bool {
	for {
		err := b.setup(b.ctx, m)
		if err == nil {
			return true
		}
		if b.ctx.Err() != nil {
			return false
		}

		if !ambeoapi.IsRetryable(err) {
			m.setStatus(setupFailed, err)
			b.updateCounts()
			b.logError("soundbar setup failed", err, "soundbar", m.id)
			return false
		}

		m.setStatus(setupPending, err)
		b.updateCounts()
		b.logWarn("soundbar not reachable, will retry",
			"soundbar", m.id, "retry_in", b.setupRetry, "error", err)

		t := time.NewTimer(b.setupRetry)
		select {
		case <-b.ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

// setup probes the device, builds its client and player and registers it.
func (b *Bridge) setup(ctx context.Context, m *managedSoundbar) error {
	cfg := m.config()

	client, err := b.newClient(ctx, ambeoapi.Options{
		Host:       cfg.Host,
		Port:       cfg.Port,
		HTTPClient: b.http,
		Logger:     b.getLogger(),
		Timeout:    b.cfg.GetRequestTimeout(),
		Variant:    ambeoapi.Variant(cfg.Variant),
	})
	if err != nil {
		return err
	}

	record := identify(ctx, cfg, client)

	hasSub := false
	if client.HasCapability(ambeoapi.CapSubwoofer) {
		hasSub, err = client.HasSubwoofer(ctx)
		if err != nil {
			b.logWarn("subwoofer probe failed", "soundbar", m.id, "error", err)
			hasSub = false
		}
	}

	p := player.New(client, player.Options{
		Cooldown: b.cfg.GetDebounceCooldown(),
		Logger:   b.getLogger(),
	})
	if err := p.LoadLists(ctx); err != nil {
		b.logWarn("failed to load source and preset lists", "soundbar", m.id, "error", err)
	}

	if b.registry != nil {
		if err := b.registry.RegisterSoundbar(ctx, &record); err != nil {
			b.logWarn("failed to register soundbar", "soundbar", m.id, "error", err)
		}
	}

	m.mu.Lock()
	m.client = client
	m.player = p
	m.hasSub = hasSub
	m.record = record
	m.status = setupReady
	m.lastErr = nil
	m.mu.Unlock()

	b.updateCounts()
	b.publishDiscovery(m)
	if err := b.health.PublishNow(); err != nil {
		b.logError("failed to publish health", err)
	}

	b.logInfo("soundbar ready",
		"soundbar", m.id,
		"model", record.Model,
		"family", record.Family,
		"subwoofer", hasSub)
	return nil
}

// identify reads the device identity. Failed reads leave fields empty.
func identify(ctx context.Context, cfg config.SoundbarConfig, c ambeoapi.Client) device.Soundbar {
	host, port := c.Endpoint()
	s := device.Soundbar{
		ID:           cfg.ID,
		Manufacturer: ambeoapi.Manufacturer,
		Host:         host,
		Port:         port,
		Family:       c.Family(),
		Capabilities: c.Capabilities().List(),
		HealthStatus: device.HealthUnknown,
	}

	read := func(get func(context.Context) (*string, error)) string {
		v, err := get(ctx)
		if err != nil || v == nil {
			return ""
		}
		return strings.TrimSpace(*v)
	}
	s.Serial = read(c.GetSerial)
	s.Firmware = read(c.GetFirmwareVersion)
	s.Model = read(c.GetModel)

	switch name := read(c.GetName); {
	case cfg.Name != "":
		s.Name = cfg.Name
	case name != "":
		s.Name = name
	default:
		s.Name = cfg.ID
	}
	return s
}

// pollLoop polls immediately and then on every tick or poll request.
func (b *Bridge) pollLoop(m *managedSoundbar) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	b.poll(b.ctx, m)
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.poll(b.ctx, m)
		case <-m.pollNow:
			b.poll(b.ctx, m)
		}
	}
}

// playerFields is the order in which failed player reads are reported.
var playerFields = []player.Field{
	player.FieldVolume,
	player.FieldMute,
	player.FieldSource,
	player.FieldPreset,
	player.FieldState,
	player.FieldPlayerData,
}

// playerKeyPrefix keeps player fields apart from feature keys in Unavailable.
const playerKeyPrefix = "player."

// poll refreshes the player and every supported feature, then publishes the
// state if it changed.
func (b *Bridge) poll(ctx context.Context, m *managedSoundbar) *StateMessage {
	m.pollMu.Lock()
	defer m.pollMu.Unlock()

	m.mu.RLock()
	client, p, hasSub := m.client, m.player, m.hasSub
	m.mu.RUnlock()
	if client == nil {
		return nil
	}

	start := time.Now()
	okReads, failedReads := 0, 0

	var unavailable []string
	res := p.Refresh(ctx)
	for _, f := range playerFields {
		if res.Failed(f) {
			failedReads++
			unavailable = append(unavailable, playerKeyPrefix+string(f))
			continue
		}
		okReads++
	}

	values := make(map[string]any)
	for _, f := range features {
		if !f.supported(client, hasSub) {
			continue
		}
		v, err := f.read(ctx, client)
		if err != nil {
			failedReads++
			unavailable = append(unavailable, f.key)
			b.logDebug("feature read failed", "soundbar", m.id, "feature", f.key, "error", err)
			continue
		}
		okReads++
		values[f.key] = v
	}

	if ctx.Err() != nil {
		return nil
	}

	b.metrics.observeReads(okReads, failedReads)
	b.metrics.observePoll(m.id, time.Since(start).Seconds())

	health := device.HealthOffline
	if okReads > 0 {
		health = device.HealthOnline
	}
	b.updateHealth(ctx, m, health)

	snap := p.Snapshot()
	state := StateMessage{
		SoundbarID:  m.id,
		Available:   snap.Available && !res.Failed(player.FieldVolume),
		Player:      snap,
		Features:    values,
		Unavailable: unavailable,
	}
	key, err := json.Marshal(state)
	if err != nil {
		b.logError("failed to marshal state", err, "soundbar", m.id)
		return nil
	}
	state.Timestamp = time.Now().UTC()

	m.mu.Lock()
	changed := !bytes.Equal(key, m.lastKey)
	m.lastKey = key
	m.state = &state
	m.mu.Unlock()

	if changed {
		b.publishState(state)
		b.notify(state)
	}
	return &state
}

// updateHealth records a reachability change in the registry.
func (b *Bridge) updateHealth(ctx context.Context, m *managedSoundbar, health device.HealthStatus) {
	m.mu.Lock()
	changed := m.health != health
	m.health = health
	m.mu.Unlock()

	if !changed {
		return
	}
	b.logInfo("soundbar health changed", "soundbar", m.id, "health", health)
	if b.registry == nil {
		return
	}
	if err := b.registry.SetHealth(ctx, m.id, health); err != nil {
		b.logWarn("failed to record soundbar health", "soundbar", m.id, "error", err)
	}
}

func (b *Bridge) publishState(state StateMessage) {
	payload, err := json.Marshal(state)
	if err != nil {
		b.logError("failed to marshal state", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.State(state.SoundbarID), payload, qosAtLeastOnce, true); err != nil {
		b.logError("failed to publish state", err, "soundbar", state.SoundbarID)
	}
}

func (b *Bridge) publishDiscovery(m *managedSoundbar) {
	m.mu.RLock()
	rec, client, hasSub := m.record, m.client, m.hasSub
	m.mu.RUnlock()

	msg := DiscoveryMessage{
		SoundbarID:   m.id,
		Timestamp:    time.Now().UTC(),
		Bridge:       b.cfg.ID,
		Name:         rec.Name,
		Manufacturer: rec.Manufacturer,
		Model:        rec.Model,
		Serial:       rec.Serial,
		Firmware:     rec.Firmware,
		Family:       rec.Family,
		Capabilities: rec.Capabilities,
		Entities:     entitiesFor(client, hasSub),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal discovery", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.Discovery(m.id), payload, qosAtLeastOnce, true); err != nil {
		b.logError("failed to publish discovery", err, "soundbar", m.id)
	}
}

// OnStateChange registers fn to receive every published state change.
// fn runs on the polling goroutine and must not block.
func (b *Bridge) OnStateChange(fn func(StateMessage)) {
	b.listenersMu.Lock()
	b.listeners = append(b.listeners, fn)
	b.listenersMu.Unlock()
}

func (b *Bridge) notify(state StateMessage) {
	b.listenersMu.RLock()
	listeners := b.listeners
	b.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// ExecuteCommand runs a command and publishes its acknowledgement. A
// successful command triggers an immediate poll.
func (b *Bridge) ExecuteCommand(ctx context.Context, cmd CommandMessage) AckMessage {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	b.logInfo("received command",
		"command_id", cmd.ID,
		"soundbar", cmd.SoundbarID,
		"command", cmd.Command,
		"source", cmd.Source)

	ack := b.executeCommand(ctx, cmd)
	b.metrics.observeCommand(cmd.Command, ack.Status)
	b.publishAck(ack)
	b.recordCommand(ctx, cmd, ack)
	return ack
}

// recordCommand writes the command to history. It runs even if the caller
// has gone away so the history matches the published acks.
func (b *Bridge) recordCommand(ctx context.Context, cmd CommandMessage, ack AckMessage) {
	if b.history == nil {
		return
	}
	entry := &audit.Entry{
		ID:         cmd.ID,
		SoundbarID: cmd.SoundbarID,
		Command:    cmd.Command,
		Source:     cmd.Source,
		Status:     string(ack.Status),
		Parameters: cmd.Parameters,
		CreatedAt:  ack.Timestamp,
	}
	if ack.Error != nil {
		entry.ErrorCode = ack.Error.Code
		entry.ErrorMessage = ack.Error.Message
	}
	if err := b.history.Create(context.WithoutCancel(ctx), entry); err != nil {
		b.logWarn("failed to record command", "command_id", cmd.ID, "error", err)
	}
}

func (b *Bridge) executeCommand(ctx context.Context, cmd CommandMessage) AckMessage {
	m, ok := b.soundbars[cmd.SoundbarID]
	if !ok {
		return newAckError(cmd, ErrCodeNotConfigured,
			fmt.Sprintf("soundbar %s not configured", cmd.SoundbarID))
	}

	def, ok := commands[cmd.Command]
	if !ok {
		return newAckError(cmd, ErrCodeInvalidCommand, fmt.Sprintf("unknown command: %s", cmd.Command))
	}

	m.mu.RLock()
	status, client, hasSub := m.status, m.client, m.hasSub
	m.mu.RUnlock()
	if status != setupReady {
		return newAckError(cmd, ErrCodeDeviceUnreachable,
			fmt.Sprintf("soundbar %s is %s", cmd.SoundbarID, status))
	}
	if !def.supported(client, hasSub) {
		return newAckError(cmd, ErrCodeNotSupported,
			fmt.Sprintf("%s is not supported by soundbar %s", cmd.Command, cmd.SoundbarID))
	}

	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	if err := def.run(ctx, m, cmd.Parameters); err != nil {
		b.logWarn("command failed", "soundbar", cmd.SoundbarID, "command", cmd.Command, "error", err)
		return newAckError(cmd, errorCode(err), err.Error())
	}

	m.triggerPoll()
	return newAck(cmd, AckAccepted)
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}
	if err := b.mqtt.Publish(mqtt.Topics{}.Ack(ack.SoundbarID), payload, qosAtLeastOnce, false); err != nil {
		b.logError("failed to publish ack", err)
	}
}

// handleMQTTMessage routes command and request topics.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) < minTopicParts {
		return fmt.Errorf("invalid topic format: %s", topic)
	}

	switch parts[1] {
	case "command":
		return b.handleCommand(topic, payload)
	case "request":
		return b.handleRequest(topic, payload)
	default:
		return fmt.Errorf("unknown message type: %s", parts[1])
	}
}

func (b *Bridge) handleCommand(topic string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if cmd.SoundbarID == "" {
		cmd.SoundbarID = mqtt.LastSegment(topic)
	}
	if cmd.Source == "" {
		cmd.Source = "mqtt"
	}
	b.ExecuteCommand(b.ctx, cmd)
	return nil
}

// SoundbarStatus summarises one managed soundbar.
type SoundbarStatus struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Host         string                `json:"host"`
	Port         int                   `json:"port"`
	Status       string                `json:"status"`
	Error        string                `json:"error,omitempty"`
	Health       device.HealthStatus   `json:"health"`
	Model        string                `json:"model,omitempty"`
	Family       ambeoapi.Family       `json:"family,omitempty"`
	Capabilities []ambeoapi.Capability `json:"capabilities,omitempty"`
	Entities     []Entity              `json:"entities,omitempty"`
}

// Soundbars returns every configured soundbar in config order.
func (b *Bridge) Soundbars() []SoundbarStatus {
	out := make([]SoundbarStatus, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.soundbars[id].summary())
	}
	return out
}

// Soundbar returns one soundbar's summary.
func (b *Bridge) Soundbar(id string) (SoundbarStatus, error) {
	m, ok := b.soundbars[id]
	if !ok {
		return SoundbarStatus{}, fmt.Errorf("%w: %s", ErrSoundbarNotConfigured, id)
	}
	return m.summary(), nil
}

// State returns the last polled state of a soundbar.
func (b *Bridge) State(id string) (*StateMessage, error) {
	m, ok := b.soundbars[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSoundbarNotConfigured, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return nil, fmt.Errorf("%w: %s", ErrSoundbarNotReady, id)
	}
	s := *m.state
	return &s, nil
}

// Refresh polls a soundbar now and returns the resulting state.
func (b *Bridge) Refresh(ctx context.Context, id string) (*StateMessage, error) {
	m, err := b.ready(id)
	if err != nil {
		return nil, err
	}
	state := b.poll(ctx, m)
	if state == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", ErrSoundbarNotReady, id)
	}
	return state, nil
}

// Counts returns how many soundbars are in each setup state.
func (b *Bridge) Counts() SoundbarCounts {
	var c SoundbarCounts
	for _, m := range b.soundbars {
		m.mu.RLock()
		status := m.status
		m.mu.RUnlock()
		switch status {
		case setupReady:
			c.Ready++
		case setupPending:
			c.Pending++
		case setupFailed:
			c.Failed++
		}
	}
	return c
}

func (b *Bridge) updateCounts() {
	b.metrics.setSoundbars(b.Counts())
}

// ready returns the soundbar if its setup has completed.
func (b *Bridge) ready(id string) (*managedSoundbar, error) {
	m, ok := b.soundbars[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSoundbarNotConfigured, id)
	}
	m.mu.RLock()
	status := m.status
	m.mu.RUnlock()
	if status != setupReady {
		return nil, fmt.Errorf("%w: %s is %s", ErrSoundbarNotReady, id, status)
	}
	return m, nil
}

func (m *managedSoundbar) config() config.SoundbarConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *managedSoundbar) setStatus(status setupStatus, err error) {
	m.mu.Lock()
	m.status = status
	m.lastErr = err
	m.mu.Unlock()
}

// triggerPoll asks the poll loop for an immediate poll. Requests coalesce.
func (m *managedSoundbar) triggerPoll() {
	select {
	case m.pollNow <- struct{}{}:
	default:
	}
}

func (m *managedSoundbar) summary() SoundbarStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := SoundbarStatus{
		ID:     m.id,
		Name:   m.cfg.Name,
		Host:   m.cfg.Host,
		Port:   m.cfg.Port,
		Status: string(m.status),
		Health: m.health,
	}
	if m.lastErr != nil {
		s.Error = m.lastErr.Error()
	}
	if m.client != nil {
		s.Name = m.record.Name
		s.Host, s.Port = m.client.Endpoint()
		s.Model = m.record.Model
		s.Family = m.record.Family
		s.Capabilities = m.record.Capabilities
		s.Entities = entitiesFor(m.client, m.hasSub)
	}
	if s.Name == "" {
		s.Name = m.id
	}
	return s
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	if b.logger == nil {
		return nopLogger{}
	}
	return b.logger
}

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.getLogger().Info(msg, keysAndValues...)
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	b.getLogger().Warn(msg, keysAndValues...)
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.getLogger().Debug(msg, keysAndValues...)
}

func (b *Bridge) logError(msg string, err error, keysAndValues ...any) {
	b.getLogger().Error(msg, append([]any{"error", err}, keysAndValues...)...)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
