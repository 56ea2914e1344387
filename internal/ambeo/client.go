package ambeo

import (
	"context"
	"fmt"
)

// Family identifies a hardware generation sharing one path namespace.
type Family string

// Families.
const (
	FamilyGeneric  Family = "generic"
	FamilyPopcorn  Family = "popcorn"
	FamilyPlus     Family = "plus"
	FamilyEspresso Family = "espresso"
)

// Source is a selectable input. ID is the value written back to select it.
type Source struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Preset is a selectable sound mode.
type Preset struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// PlayerData is the device's play logic snapshot.
type PlayerData struct {
	State      string     `json:"state"`
	TrackRoles TrackRoles `json:"trackRoles"`
}

// TrackRoles describes the current track.
type TrackRoles struct {
	Title     string    `json:"title"`
	Icon      string    `json:"icon"`
	MediaData MediaData `json:"mediaData"`
}

// MediaData holds track metadata.
type MediaData struct {
	MetaData MetaData `json:"metaData"`
}

// MetaData holds the artist and album of a track.
type MetaData struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
}

// IdentityReader reads the device identity.
type IdentityReader interface {
	GetName(ctx context.Context) (*string, error)
	GetSerial(ctx context.Context) (*string, error)
	GetFirmwareVersion(ctx context.Context) (*string, error)
	GetModel(ctx context.Context) (*string, error)
}

// AudioController covers volume and the audio mode toggles.
type AudioController interface {
	GetVolume(ctx context.Context) (*int, error)
	SetVolume(ctx context.Context, volume int) error
	IsMuted(ctx context.Context) (*bool, error)
	SetMute(ctx context.Context, mute bool) error
	GetNightMode(ctx context.Context) (*bool, error)
	SetNightMode(ctx context.Context, on bool) error
	GetAmbeoMode(ctx context.Context) (*bool, error)
	SetAmbeoMode(ctx context.Context, on bool) error
	GetSoundFeedback(ctx context.Context) (*bool, error)
	SetSoundFeedback(ctx context.Context, on bool) error
	GetVoiceEnhancement(ctx context.Context) (*bool, error)
	SetVoiceEnhancement(ctx context.Context, on bool) error
}

// LightController covers the logo, display and LED brightness controls.
// Values are in device units.
type LightController interface {
	GetLogoState(ctx context.Context) (*bool, error)
	SetLogoState(ctx context.Context, on bool) error
	GetLogoBrightness(ctx context.Context) (*int, error)
	SetLogoBrightness(ctx context.Context, brightness int) error
	GetDisplayBrightness(ctx context.Context) (*int, error)
	SetDisplayBrightness(ctx context.Context, brightness int) error
	GetLEDBarBrightness(ctx context.Context) (*int, error)
	SetLEDBarBrightness(ctx context.Context, brightness int) error
	GetCodecLEDBrightness(ctx context.Context) (*int, error)
	SetCodecLEDBrightness(ctx context.Context, brightness int) error
}

// SourceController lists and selects inputs.
type SourceController interface {
	GetCurrentSource(ctx context.Context) (*string, error)
	GetAllSources(ctx context.Context) ([]Source, error)
	SetSource(ctx context.Context, id string) error
}

// PresetController lists and selects sound presets.
type PresetController interface {
	GetCurrentPreset(ctx context.Context) (*string, error)
	GetAllPresets(ctx context.Context) ([]Preset, error)
	SetPreset(ctx context.Context, id string) error
}

// PlaybackController drives the media transport.
type PlaybackController interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	GetPlayerData(ctx context.Context) (*PlayerData, error)
}

// PowerController covers standby, wake, reboot and power state.
type PowerController interface {
	Standby(ctx context.Context) error
	Wake(ctx context.Context) error
	Reboot(ctx context.Context) error
	GetPowerState(ctx context.Context) (*string, error)
	GetEcoMode(ctx context.Context) (*bool, error)
}

// BluetoothController toggles pairing mode.
type BluetoothController interface {
	GetBluetoothPairing(ctx context.Context) (*bool, error)
	SetBluetoothPairing(ctx context.Context, on bool) error
}

// SubwooferController covers the optional subwoofer.
type SubwooferController interface {
	HasSubwoofer(ctx context.Context) (bool, error)
	GetSubwooferStatus(ctx context.Context) (*bool, error)
	SetSubwooferStatus(ctx context.Context, on bool) error
	GetSubwooferVolume(ctx context.Context) (*float64, error)
	SetSubwooferVolume(ctx context.Context, volume float64) error
	SubwooferRange() Range
}

// ExpertController covers the Max per-channel levels.
type ExpertController interface {
	GetVoiceEnhancementLevel(ctx context.Context) (*int, error)
	SetVoiceEnhancementLevel(ctx context.Context, level int) error
	GetCenterSpeakerLevel(ctx context.Context) (*int, error)
	SetCenterSpeakerLevel(ctx context.Context, level int) error
	GetSideFiringLevel(ctx context.Context) (*int, error)
	SetSideFiringLevel(ctx context.Context, level int) error
	GetUpFiringLevel(ctx context.Context) (*int, error)
	SetUpFiringLevel(ctx context.Context, level int) error
	ResetExpertSettings(ctx context.Context) error
}

// Client is the full soundbar control surface.
//
// Getters return nil with no error when the device omits the value.
// Operations the family does not implement return an error wrapping
// ErrUnsupported; callers gate on HasCapability before invoking them.
type Client interface {
	IdentityReader
	AudioController
	LightController
	SourceController
	PresetController
	PlaybackController
	PowerController
	BluetoothController
	SubwooferController
	ExpertController

	Family() Family
	Capabilities() CapabilitySet
	HasCapability(c Capability) bool
	VolumeStep() float64
	SupportsDebounce() bool
	SetEndpoint(host string)
	Endpoint() (string, int)
}

// base implements the operations shared by every family and the
// ErrUnsupported defaults for the rest.
type base struct {
	t          *Transport
	logger     Logger
	family     Family
	caps       CapabilitySet
	volumeStep float64
	debounce   bool
}

func newBase(t *Transport, family Family, caps CapabilitySet) base {
	return base{
		t:          t,
		logger:     t.logger,
		family:     family,
		caps:       caps,
		volumeStep: 0.01,
	}
}

// GenericClient is the capability-less client used to probe a device.
type GenericClient struct {
	base
}

// NewGenericClient creates a probe client on t.
func NewGenericClient(t *Transport) *GenericClient {
	return &GenericClient{base: newBase(t, FamilyGeneric, CapabilitySet{})}
}

// Traits.

func (b *base) Family() Family                  { return b.family }
func (b *base) Capabilities() CapabilitySet     { return b.caps }
func (b *base) HasCapability(c Capability) bool { return b.caps.Has(c) }
func (b *base) VolumeStep() float64             { return b.volumeStep }
func (b *base) SupportsDebounce() bool          { return b.debounce }
func (b *base) SetEndpoint(host string)         { b.t.SetEndpoint(host) }
func (b *base) Endpoint() (string, int)         { return b.t.Endpoint() }

// Transport returns the underlying transport.
func (b *base) Transport() *Transport { return b.t }

// Typed accessors.

func (b *base) getBool(ctx context.Context, path string) (*bool, error) {
	return getValue[bool](ctx, b.t, path, TypeBool)
}

func (b *base) setBool(ctx context.Context, path string, v bool) error {
	return b.t.setValue(ctx, path, TypeBool, v)
}

func (b *base) getString(ctx context.Context, path string) (*string, error) {
	return getValue[string](ctx, b.t, path, TypeString)
}

func (b *base) getInt(ctx context.Context, path, tag string) (*int, error) {
	return getValue[int](ctx, b.t, path, tag)
}

func (b *base) setInt(ctx context.Context, path, tag string, v int) error {
	return b.t.setValue(ctx, path, tag, v)
}

// Identity.

func (b *base) GetName(ctx context.Context) (*string, error) {
	return b.getString(ctx, pathDeviceName)
}

func (b *base) GetSerial(ctx context.Context) (*string, error) {
	return b.getString(ctx, pathSerial)
}

func (b *base) GetFirmwareVersion(ctx context.Context) (*string, error) {
	return b.getString(ctx, pathFirmwareVersion)
}

func (b *base) GetModel(ctx context.Context) (*string, error) {
	return b.getString(ctx, pathProductName)
}

// Volume and mute.

func (b *base) GetVolume(ctx context.Context) (*int, error) {
	return b.getInt(ctx, pathVolume, TypeInt32)
}

func (b *base) SetVolume(ctx context.Context, volume int) error {
	return b.setInt(ctx, pathVolume, TypeInt32, volume)
}

func (b *base) IsMuted(ctx context.Context) (*bool, error) {
	return b.getBool(ctx, pathMute)
}

func (b *base) SetMute(ctx context.Context, mute bool) error {
	return b.setBool(ctx, pathMute, mute)
}

// Playback.

func (b *base) Play(ctx context.Context) error {
	return b.t.activate(ctx, pathPlayPause)
}

// Pause uses the same multi-purpose button as Play; the device toggles.
func (b *base) Pause(ctx context.Context) error {
	return b.t.activate(ctx, pathPlayPause)
}

func (b *base) Next(ctx context.Context) error {
	return b.t.activateWith(ctx, pathPlayerControl, `{"control":"next"}`)
}

func (b *base) Previous(ctx context.Context) error {
	return b.t.activateWith(ctx, pathPlayerControl, `{"control":"previous"}`)
}

func (b *base) GetPlayerData(ctx context.Context) (*PlayerData, error) {
	raw, err := b.t.getData(ctx, pathPlayerData)
	if err != nil {
		return nil, err
	}
	return extractAs[PlayerData](b.logger, raw, "value", "playLogicData"), nil
}

// Power.

func (b *base) Reboot(ctx context.Context) error {
	return b.t.activate(ctx, pathRestart)
}

func (b *base) GetPowerState(ctx context.Context) (*string, error) {
	target, err := getValue[struct {
		Target *string `json:"target"`
	}](ctx, b.t, pathPowerTarget, TypePowerTarget)
	if err != nil || target == nil {
		return nil, err
	}
	return target.Target, nil
}

func (b *base) Standby(context.Context) error { return unsupported("standby") }
func (b *base) Wake(context.Context) error    { return unsupported("wake") }

func (b *base) GetEcoMode(context.Context) (*bool, error) {
	return nil, unsupported("get eco mode")
}

// Unsupported defaults. Families override what they implement.

func (b *base) GetNightMode(context.Context) (*bool, error) {
	return nil, unsupported("get night mode")
}
func (b *base) SetNightMode(context.Context, bool) error { return unsupported("set night mode") }

func (b *base) GetAmbeoMode(context.Context) (*bool, error) {
	return nil, unsupported("get ambeo mode")
}
func (b *base) SetAmbeoMode(context.Context, bool) error { return unsupported("set ambeo mode") }

func (b *base) GetSoundFeedback(context.Context) (*bool, error) {
	return nil, unsupported("get sound feedback")
}
func (b *base) SetSoundFeedback(context.Context, bool) error {
	return unsupported("set sound feedback")
}

func (b *base) GetVoiceEnhancement(context.Context) (*bool, error) {
	return nil, unsupported("get voice enhancement")
}
func (b *base) SetVoiceEnhancement(context.Context, bool) error {
	return unsupported("set voice enhancement")
}

func (b *base) GetLogoState(context.Context) (*bool, error) {
	return nil, unsupported("get logo state")
}
func (b *base) SetLogoState(context.Context, bool) error { return unsupported("set logo state") }

func (b *base) GetLogoBrightness(context.Context) (*int, error) {
	return nil, unsupported("get logo brightness")
}
func (b *base) SetLogoBrightness(context.Context, int) error {
	return unsupported("set logo brightness")
}

func (b *base) GetDisplayBrightness(context.Context) (*int, error) {
	return nil, unsupported("get display brightness")
}
func (b *base) SetDisplayBrightness(context.Context, int) error {
	return unsupported("set display brightness")
}

func (b *base) GetLEDBarBrightness(context.Context) (*int, error) {
	return nil, unsupported("get led bar brightness")
}
func (b *base) SetLEDBarBrightness(context.Context, int) error {
	return unsupported("set led bar brightness")
}

func (b *base) GetCodecLEDBrightness(context.Context) (*int, error) {
	return nil, unsupported("get codec led brightness")
}
func (b *base) SetCodecLEDBrightness(context.Context, int) error {
	return unsupported("set codec led brightness")
}

func (b *base) GetCurrentSource(context.Context) (*string, error) {
	return nil, unsupported("get current source")
}
func (b *base) GetAllSources(context.Context) ([]Source, error) {
	return nil, unsupported("list sources")
}
func (b *base) SetSource(context.Context, string) error { return unsupported("set source") }

func (b *base) GetCurrentPreset(context.Context) (*string, error) {
	return nil, unsupported("get current preset")
}
func (b *base) GetAllPresets(context.Context) ([]Preset, error) {
	return nil, unsupported("list presets")
}
func (b *base) SetPreset(context.Context, string) error { return unsupported("set preset") }

func (b *base) GetBluetoothPairing(context.Context) (*bool, error) {
	return nil, unsupported("get bluetooth pairing")
}
func (b *base) SetBluetoothPairing(context.Context, bool) error {
	return unsupported("set bluetooth pairing")
}

func (b *base) HasSubwoofer(context.Context) (bool, error) { return false, nil }
func (b *base) GetSubwooferStatus(context.Context) (*bool, error) {
	return nil, unsupported("get subwoofer status")
}
func (b *base) SetSubwooferStatus(context.Context, bool) error {
	return unsupported("set subwoofer status")
}
func (b *base) GetSubwooferVolume(context.Context) (*float64, error) {
	return nil, unsupported("get subwoofer volume")
}
func (b *base) SetSubwooferVolume(context.Context, float64) error {
	return unsupported("set subwoofer volume")
}
func (b *base) SubwooferRange() Range { return Range{} }

func (b *base) GetVoiceEnhancementLevel(context.Context) (*int, error) {
	return nil, unsupported("get voice enhancement level")
}
func (b *base) SetVoiceEnhancementLevel(context.Context, int) error {
	return unsupported("set voice enhancement level")
}
func (b *base) GetCenterSpeakerLevel(context.Context) (*int, error) {
	return nil, unsupported("get center speaker level")
}
func (b *base) SetCenterSpeakerLevel(context.Context, int) error {
	return unsupported("set center speaker level")
}
func (b *base) GetSideFiringLevel(context.Context) (*int, error) {
	return nil, unsupported("get side firing level")
}
func (b *base) SetSideFiringLevel(context.Context, int) error {
	return unsupported("set side firing level")
}
func (b *base) GetUpFiringLevel(context.Context) (*int, error) {
	return nil, unsupported("get up firing level")
}
func (b *base) SetUpFiringLevel(context.Context, int) error {
	return unsupported("set up firing level")
}
func (b *base) ResetExpertSettings(context.Context) error {
	return unsupported("reset expert settings")
}

// String describes the client for logs.
func (b *base) String() string {
	host, port := b.t.Endpoint()
	return fmt.Sprintf("ambeo %s client %s:%d", b.family, host, port)
}

var _ Client = (*GenericClient)(nil)
