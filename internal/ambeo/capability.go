package ambeo

import "sort"

// Capability names an optional feature a client family exposes.
// Callers gate optional controls on Client.HasCapability.
type Capability string

// Capabilities.
const (
	CapAmbeoLogo              Capability = "AmbeoLogo"
	CapLEDBar                 Capability = "LEDBar"
	CapCodecLED               Capability = "CodecLED"
	CapVoiceEnhancement       Capability = "VoiceEnhancementMode"
	CapVoiceEnhancementToggle Capability = "VoiceEnhancementToggle"
	CapBluetoothPairing       Capability = "AmbeoBluetoothPairing"
	CapSubwoofer              Capability = "SubWoofer"
	CapStandby                Capability = "standby"
	CapMaxLogo                Capability = "AmbeoMaxLogo"
	CapMaxDisplay             Capability = "AmbeoMaxDisplay"
	CapVoiceEnhancementLevel  Capability = "VoiceEnhancementLevel"
	CapCenterSpeakerLevel     Capability = "CenterSpeakerLevel"
	CapSideFiringLevel        Capability = "SideFiringLevel"
	CapUpFiringLevel          Capability = "UpFiringLevel"
	CapResetExpertSettings    Capability = "ResetExpertSettings"
	CapEcoMode                Capability = "EcoMode"
)

// AllCapabilities lists every known capability.
var AllCapabilities = []Capability{
	CapAmbeoLogo, CapLEDBar, CapCodecLED,
	CapVoiceEnhancement, CapVoiceEnhancementToggle,
	CapBluetoothPairing, CapSubwoofer, CapStandby,
	CapMaxLogo, CapMaxDisplay,
	CapVoiceEnhancementLevel, CapCenterSpeakerLevel, CapSideFiringLevel, CapUpFiringLevel,
	CapResetExpertSettings, CapEcoMode,
}

// IsValid reports whether c is a known capability.
func (c Capability) IsValid() bool {
	for _, known := range AllCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// CapabilitySet is an immutable set of capabilities.
// The zero value is an empty set.
type CapabilitySet struct {
	caps map[Capability]struct{}
}

// NewCapabilitySet builds a set from caps. Duplicates are ignored.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	m := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		m[c] = struct{}{}
	}
	return CapabilitySet{caps: m}
}

// Has reports whether c is in the set.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s.caps[c]
	return ok
}

// Len returns the number of capabilities.
func (s CapabilitySet) Len() int {
	return len(s.caps)
}

// List returns the capabilities sorted by name. The slice is a copy.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns List as plain strings.
func (s CapabilitySet) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = string(c)
	}
	return out
}

// Per-family capability tables.
var (
	popcornCapabilities = NewCapabilitySet(
		CapAmbeoLogo,
		CapLEDBar,
		CapCodecLED,
		CapVoiceEnhancementToggle,
		CapBluetoothPairing,
		CapSubwoofer,
		CapEcoMode,
	)

	plusCapabilities = NewCapabilitySet(
		CapAmbeoLogo,
		CapLEDBar,
		CapCodecLED,
		CapVoiceEnhancement,
		CapBluetoothPairing,
	)

	espressoCapabilities = NewCapabilitySet(
		CapStandby,
		CapMaxLogo,
		CapMaxDisplay,
		CapVoiceEnhancementLevel,
		CapCenterSpeakerLevel,
		CapSideFiringLevel,
		CapUpFiringLevel,
		CapResetExpertSettings,
		CapSubwoofer,
	)
)

// Range is an inclusive numeric range with a step.
type Range struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// Clamp limits v to the range.
func (r Range) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Brightness scales and related constants.
var (
	// BrightnessScale is the user-facing brightness range for every light.
	BrightnessScale = Range{Min: 0, Max: 100, Step: 1}

	// MaxDisplayScale is the device range of the Max display brightness.
	MaxDisplayScale = Range{Min: 1, Max: 126, Step: 1}

	// MaxLogoScale is the device range of the Max logo brightness.
	MaxLogoScale = Range{Min: 1, Max: 118, Step: 1}

	// ExpertLevelRange applies to center, side and up firing levels.
	ExpertLevelRange = Range{Min: -12, Max: 12, Step: 1}

	// VoiceEnhancementLevelRange applies to the Max voice enhancement level.
	VoiceEnhancementLevelRange = Range{Min: 0, Max: 3, Step: 1}
)

const (
	// DefaultBrightness is used when a light is turned on without a level.
	DefaultBrightness = 50

	// DefaultMaxBrightness is the Max's factory brightness.
	DefaultMaxBrightness = 128

	// Manufacturer is reported for every soundbar.
	Manufacturer = "Sennheiser"
)

// ScaleBrightness maps a value between two ranges, rounding to the
// nearest integer.
func ScaleBrightness(from, to Range, v float64) int {
	v = from.Clamp(v)
	if from.Max == from.Min {
		return int(to.Min)
	}
	scaled := to.Min + (v-from.Min)*(to.Max-to.Min)/(from.Max-from.Min)
	if scaled < 0 {
		return int(scaled - 0.5)
	}
	return int(scaled + 0.5)
}
