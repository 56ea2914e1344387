package ambeo

import (
	"time"

	ambeoapi "github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
	"github.com/nerrad567/gray-logic-ambeo/internal/ambeo/player"
)

// CommandMessage asks the bridge to act on a soundbar.
// Topic: ambeo/command/{soundbar}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// SoundbarID defaults to the topic's last segment when empty.
	SoundbarID string `json:"soundbar_id"`

	// Command is the command name, e.g. "volume", "night_mode", "reboot".
	Command string `json:"command"`

	// Parameters holds command values:
	//   {"level": 0.35} for volume
	//   {"on": true} for switches
	//   {"brightness": 60} for lights
	//   {"value": -3} for numbers
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source is where the command came from, e.g. "mqtt" or "api".
	Source string `json:"source,omitempty"`
}

// AckStatus is the outcome of a command.
type AckStatus string

// Ack statuses.
const (
	AckAccepted AckStatus = "accepted"
	AckFailed   AckStatus = "failed"
	AckTimeout  AckStatus = "timeout"
)

// AckMessage acknowledges a command.
// Topic: ambeo/ack/{soundbar}
type AckMessage struct {
	CommandID  string    `json:"command_id"`
	Timestamp  time.Time `json:"timestamp"`
	SoundbarID string    `json:"soundbar_id"`
	Command    string    `json:"command"`
	Status     AckStatus `json:"status"`
	Error      *AckError `json:"error,omitempty"`
}

// AckError describes a failed command.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for failed commands and requests.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotSupported      = "NOT_SUPPORTED"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is the retained state of one soundbar.
// Topic: ambeo/state/{soundbar}
type StateMessage struct {
	SoundbarID string    `json:"soundbar_id"`
	Timestamp  time.Time `json:"timestamp"`

	// Available is false when the media player has no volume reading.
	Available bool `json:"available"`

	Player player.Snapshot `json:"player"`

	// Features holds the capability-gated values keyed like the feature
	// table. A nil value means the device did not report it.
	Features map[string]any `json:"features"`

	// Unavailable lists feature keys whose last read failed. Failed player
	// reads appear as "player.<field>", e.g. "player.volume".
	Unavailable []string `json:"unavailable,omitempty"`
}

// HealthStatus is the bridge's operational status.
type HealthStatus string

// Bridge health statuses.
const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published to ambeo/health/{bridge}.
type HealthMessage struct {
	Bridge        string         `json:"bridge"`
	Timestamp     time.Time      `json:"timestamp"`
	Status        HealthStatus   `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Soundbars     SoundbarCounts `json:"soundbars"`
	Reason        string         `json:"reason,omitempty"`
}

// SoundbarCounts summarises setup progress.
type SoundbarCounts struct {
	Ready   int `json:"ready"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// RequestMessage asks the bridge for information or a maintenance action.
// Topic: ambeo/request/{request_id}
type RequestMessage struct {
	// RequestID defaults to the topic's last segment when empty.
	RequestID  string         `json:"request_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	SoundbarID string         `json:"soundbar_id,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Request actions.
const (
	ActionReadState     = "read_state"
	ActionRefresh       = "refresh"
	ActionSetEndpoint   = "set_endpoint"
	ActionReloadSources = "reload_sources"
)

// ResponseMessage answers a request.
// Topic: ambeo/response/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *AckError      `json:"error,omitempty"`
}

// DiscoveryMessage lists the entities a soundbar exposes.
// Topic: ambeo/discovery/{soundbar}, retained.
type DiscoveryMessage struct {
	SoundbarID   string                `json:"soundbar_id"`
	Timestamp    time.Time             `json:"timestamp"`
	Bridge       string                `json:"bridge"`
	Name         string                `json:"name"`
	Manufacturer string                `json:"manufacturer"`
	Model        string                `json:"model"`
	Serial       string                `json:"serial"`
	Firmware     string                `json:"firmware"`
	Family       ambeoapi.Family       `json:"family"`
	Capabilities []ambeoapi.Capability `json:"capabilities"`
	Entities     []Entity              `json:"entities"`
}

// Platform is the kind of entity a feature is exposed as.
type Platform string

// Entity platforms.
const (
	PlatformMediaPlayer  Platform = "media_player"
	PlatformSwitch       Platform = "switch"
	PlatformLight        Platform = "light"
	PlatformNumber       Platform = "number"
	PlatformButton       Platform = "button"
	PlatformBinarySensor Platform = "binary_sensor"
)

// Entity is one discoverable control or sensor.
type Entity struct {
	Platform Platform `json:"platform"`
	Key      string   `json:"key"`
	Name     string   `json:"name"`

	// StateKeys are the feature keys carrying this entity's state.
	StateKeys []string `json:"state_keys,omitempty"`

	// Commands are the command names that drive it.
	Commands []string `json:"commands,omitempty"`

	Range *ambeoapi.Range `json:"range,omitempty"`
	Unit  string          `json:"unit,omitempty"`
}

func newAck(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID:  cmd.ID,
		Timestamp:  time.Now().UTC(),
		SoundbarID: cmd.SoundbarID,
		Command:    cmd.Command,
		Status:     status,
	}
}

func newAckError(cmd CommandMessage, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := newAck(cmd, status)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

func newResponse(req RequestMessage, data map[string]any) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

func newResponseError(req RequestMessage, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: req.RequestID,
		Timestamp: time.Now().UTC(),
		Error:     &AckError{Code: code, Message: message},
	}
}
