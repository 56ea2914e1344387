package device

import (
	"slices"
	"time"

	"github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
)

// HealthStatus is the last known reachability of a soundbar.
type HealthStatus string

// Health statuses.
const (
	HealthOnline  HealthStatus = "online"
	HealthOffline HealthStatus = "offline"
	HealthUnknown HealthStatus = "unknown"
)

// IsValid reports whether s is a known health status.
func (s HealthStatus) IsValid() bool {
	switch s {
	case HealthOnline, HealthOffline, HealthUnknown:
		return true
	}
	return false
}

// Soundbar is a registered AMBEO soundbar.
//
// ID is the configured soundbar id used in MQTT topics and API paths.
// Serial is what the device reports and survives a host change.
type Soundbar struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Manufacturer string             `json:"manufacturer"`
	Model        string             `json:"model"`
	Serial       string             `json:"serial"`
	Firmware     string             `json:"firmware"`
	Host         string             `json:"host"`
	Port         int                `json:"port"`
	Family       ambeo.Family       `json:"family"`
	Capabilities []ambeo.Capability `json:"capabilities"`
	HealthStatus HealthStatus       `json:"health_status"`
	LastSeen     *time.Time         `json:"last_seen,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// DeepCopy returns an independent copy of the soundbar.
func (s *Soundbar) DeepCopy() *Soundbar {
	if s == nil {
		return nil
	}
	cpy := *s
	cpy.Capabilities = slices.Clone(s.Capabilities)
	if s.LastSeen != nil {
		t := *s.LastSeen
		cpy.LastSeen = &t
	}
	return &cpy
}

// HasCapability reports whether the soundbar was registered with c.
func (s *Soundbar) HasCapability(c ambeo.Capability) bool {
	return slices.Contains(s.Capabilities, c)
}

// Validate checks the fields the repository requires.
func (s *Soundbar) Validate() error {
	switch {
	case s.ID == "":
		return ErrInvalidSoundbar
	case s.Name == "":
		return ErrInvalidName
	case s.Host == "":
		return ErrInvalidHost
	case s.Port < 1 || s.Port > 65535:
		return ErrInvalidHost
	case s.HealthStatus != "" && !s.HealthStatus.IsValid():
		return ErrInvalidHealthStatus
	}
	return nil
}
