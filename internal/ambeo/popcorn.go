package ambeo

import (
	"context"
	"encoding/json"
	"path"
	"sync"
)

const popcornVolumeStep = 0.01

// popcornSubwooferRange is the Plus/Mini subwoofer level range in dB.
var popcornSubwooferRange = Range{Min: -10, Max: 10, Step: 1}

// virtualInputs are selectable on Plus/Mini but never listed by the device.
var virtualInputs = []Source{
	{ID: "googlecast", Title: "Google Cast"},
	{ID: "airplay", Title: "AirPlay"},
}

// popcornSettings implements the settings namespace shared by the Plus
// and Mini firmware generations.
type popcornSettings struct {
	base
}

func (p *popcornSettings) GetNightMode(ctx context.Context) (*bool, error) {
	return p.getBool(ctx, pathPopcornNightMode)
}

func (p *popcornSettings) SetNightMode(ctx context.Context, on bool) error {
	return p.setBool(ctx, pathPopcornNightMode, on)
}

func (p *popcornSettings) GetVoiceEnhancement(ctx context.Context) (*bool, error) {
	return p.getBool(ctx, pathPopcornVoiceEnhancement)
}

func (p *popcornSettings) SetVoiceEnhancement(ctx context.Context, on bool) error {
	return p.setBool(ctx, pathPopcornVoiceEnhancement, on)
}

func (p *popcornSettings) GetAmbeoMode(ctx context.Context) (*bool, error) {
	return p.getBool(ctx, pathPopcornAmbeoMode)
}

func (p *popcornSettings) SetAmbeoMode(ctx context.Context, on bool) error {
	return p.setBool(ctx, pathPopcornAmbeoMode, on)
}

func (p *popcornSettings) GetSoundFeedback(ctx context.Context) (*bool, error) {
	return p.getBool(ctx, pathPopcornSoundFeedback)
}

func (p *popcornSettings) SetSoundFeedback(ctx context.Context, on bool) error {
	return p.setBool(ctx, pathPopcornSoundFeedback, on)
}

// Sources.

func (p *popcornSettings) GetCurrentSource(ctx context.Context) (*string, error) {
	return getValue[string](ctx, p.t, pathPopcornCurrentInput, TypePopcornInputID)
}

func (p *popcornSettings) GetAllSources(ctx context.Context) ([]Source, error) {
	return p.listInputs(ctx)
}

// listInputs returns the device-reported inputs. A row without an id
// falls back to the last element of its path.
func (p *popcornSettings) listInputs(ctx context.Context) ([]Source, error) {
	rows, err := p.t.getRows(ctx, pathPopcornInputs, 0, popcornRowsTo)
	if err != nil || rows == nil {
		return nil, err
	}
	sources := make([]Source, 0, len(rows))
	for _, row := range rows {
		id := rawID(row.ID)
		if id == "" && row.Path != "" {
			id = path.Base(row.Path)
		}
		if id == "" {
			p.logger.Debug("skipping input row without id", "title", row.Title)
			continue
		}
		sources = append(sources, Source{ID: id, Title: row.Title})
	}
	return sources, nil
}

// SetSource activates the input's own path.
func (p *popcornSettings) SetSource(ctx context.Context, id string) error {
	return p.t.activate(ctx, pathPopcornInputs+"/"+id)
}

// Presets.

// GetCurrentPreset decodes the id the same way as GetAllPresets so that
// numeric ids match the preset list.
func (p *popcornSettings) GetCurrentPreset(ctx context.Context) (*string, error) {
	raw, err := getValue[json.RawMessage](ctx, p.t, pathPopcornPreset, TypePopcornAudioPreset)
	if err != nil || raw == nil {
		return nil, err
	}
	id := rawID(*raw)
	if id == "" {
		return nil, nil
	}
	return &id, nil
}

func (p *popcornSettings) SetPreset(ctx context.Context, id string) error {
	return p.t.setValue(ctx, pathPopcornPreset, TypePopcornAudioPreset, id)
}

func (p *popcornSettings) GetAllPresets(ctx context.Context) ([]Preset, error) {
	rows, err := p.t.getRows(ctx, pathPopcornPresetValues, 0, popcornRowsTo)
	if err != nil || rows == nil {
		return nil, err
	}
	presets := make([]Preset, 0, len(rows))
	for _, row := range rows {
		id, ok := extract(p.logger, row.Value, TypePopcornAudioPreset)
		if !ok {
			continue
		}
		presets = append(presets, Preset{ID: rawID(id), Title: row.Title})
	}
	return presets, nil
}

// Lights.

func (p *popcornSettings) GetCodecLEDBrightness(ctx context.Context) (*int, error) {
	return p.getInt(ctx, pathPopcornCodecLED, TypeInt32)
}

func (p *popcornSettings) SetCodecLEDBrightness(ctx context.Context, brightness int) error {
	return p.setInt(ctx, pathPopcornCodecLED, TypeInt32, brightness)
}

func (p *popcornSettings) GetLogoBrightness(ctx context.Context) (*int, error) {
	return p.getInt(ctx, pathPopcornLogoBrightness, TypeInt32)
}

func (p *popcornSettings) SetLogoBrightness(ctx context.Context, brightness int) error {
	return p.setInt(ctx, pathPopcornLogoBrightness, TypeInt32, brightness)
}

func (p *popcornSettings) GetLogoState(ctx context.Context) (*bool, error) {
	return p.getBool(ctx, pathPopcornLogoState)
}

func (p *popcornSettings) SetLogoState(ctx context.Context, on bool) error {
	return p.setBool(ctx, pathPopcornLogoState, on)
}

func (p *popcornSettings) GetLEDBarBrightness(ctx context.Context) (*int, error) {
	return p.getInt(ctx, pathPopcornLEDBar, TypeInt32)
}

func (p *popcornSettings) SetLEDBarBrightness(ctx context.Context, brightness int) error {
	return p.setInt(ctx, pathPopcornLEDBar, TypeInt32, brightness)
}

// Bluetooth.

func (p *popcornSettings) GetBluetoothPairing(ctx context.Context) (*bool, error) {
	state, err := getValue[struct {
		Pairable *bool `json:"pairable"`
	}](ctx, p.t, pathBluetoothState, TypeBluetoothState)
	if err != nil || state == nil {
		return nil, err
	}
	return state.Pairable, nil
}

// SetBluetoothPairing toggles discoverability via an activate request.
func (p *popcornSettings) SetBluetoothPairing(ctx context.Context, on bool) error {
	env, err := Envelope(TypeBool, on)
	if err != nil {
		return err
	}
	return p.t.activateWith(ctx, pathBluetoothDiscoverable, env)
}

// PopcornClient drives AMBEO Soundbar Plus and Mini on the 2024 firmware.
type PopcornClient struct {
	popcornSettings

	subMu        sync.Mutex
	hasSubwoofer *bool
}

// NewPopcornClient creates a Plus/Mini client on t.
func NewPopcornClient(t *Transport) *PopcornClient {
	c := &PopcornClient{popcornSettings: popcornSettings{base: newBase(t, FamilyPopcorn, popcornCapabilities)}}
	c.volumeStep = popcornVolumeStep
	return c
}

// GetAllSources appends the cast inputs the device does not enumerate.
func (c *PopcornClient) GetAllSources(ctx context.Context) ([]Source, error) {
	sources, err := c.listInputs(ctx)
	if err != nil || sources == nil {
		return nil, err
	}
	return append(sources, virtualInputs...), nil
}

// HasSubwoofer reports whether a subwoofer is paired. The answer is
// memoized once the device returns a list, empty or not.
func (c *PopcornClient) HasSubwoofer(ctx context.Context) (bool, error) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.hasSubwoofer != nil {
		return *c.hasSubwoofer, nil
	}
	list, err := getValue[[]any](ctx, c.t, pathPopcornSubwooferList, TypePopcornSubwooferList)
	if err != nil {
		return false, err
	}
	if list == nil {
		return false, nil
	}
	present := len(*list) > 0
	c.hasSubwoofer = &present
	return present, nil
}

func (c *PopcornClient) GetSubwooferStatus(ctx context.Context) (*bool, error) {
	return c.getBool(ctx, pathPopcornSubwooferEnabled)
}

func (c *PopcornClient) SetSubwooferStatus(ctx context.Context, on bool) error {
	return c.setBool(ctx, pathPopcornSubwooferEnabled, on)
}

func (c *PopcornClient) GetSubwooferVolume(ctx context.Context) (*float64, error) {
	return getValue[float64](ctx, c.t, pathPopcornSubwooferVolume, TypeDouble)
}

func (c *PopcornClient) SetSubwooferVolume(ctx context.Context, volume float64) error {
	return c.t.setValue(ctx, pathPopcornSubwooferVolume, TypeDouble, volume)
}

func (c *PopcornClient) SubwooferRange() Range { return popcornSubwooferRange }

// GetEcoMode is read-only; the device decides when to enter eco mode.
func (c *PopcornClient) GetEcoMode(ctx context.Context) (*bool, error) {
	return c.getBool(ctx, pathPopcornEcoMode)
}

var _ Client = (*PopcornClient)(nil)
