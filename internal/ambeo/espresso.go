package ambeo

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const espressoVolumeStep = 0.02

// espressoSubwooferRange is the Max subwoofer level range in dB.
var espressoSubwooferRange = Range{Min: -12, Max: 12, Step: 1}

// excludedMaxSources are hardware inputs hidden from the source list,
// matched against the lowercased input name.
var excludedMaxSources = []string{"aes"}

// maxPresets is the Max equalizer preset table. The device does not
// list presets, the ids are fixed by firmware.
var maxPresets = []Preset{
	{ID: "0", Title: "Neutral"},
	{ID: "1", Title: "Movies"},
	{ID: "2", Title: "Sport"},
	{ID: "3", Title: "News"},
	{ID: "4", Title: "Music"},
}

// espressoBrightness is the composite brightness value. A nil field is
// left out of the write.
type espressoBrightness struct {
	AmbeoLogo *int `json:"ambeologo,omitempty"`
	Display   *int `json:"display,omitempty"`
}

// EspressoClient drives the AMBEO Soundbar Max.
type EspressoClient struct {
	base

	subMu        sync.Mutex
	hasSubwoofer bool
}

// NewEspressoClient creates a Max client on t.
func NewEspressoClient(t *Transport) *EspressoClient {
	c := &EspressoClient{base: newBase(t, FamilyEspresso, espressoCapabilities)}
	c.volumeStep = espressoVolumeStep
	c.debounce = true
	return c
}

// Power.

func (c *EspressoClient) Standby(ctx context.Context) error {
	return c.setBool(ctx, pathEspressoStandby, true)
}

func (c *EspressoClient) Wake(ctx context.Context) error {
	return c.setBool(ctx, pathEspressoOnline, true)
}

// Audio modes.

func (c *EspressoClient) GetNightMode(ctx context.Context) (*bool, error) {
	return c.getBool(ctx, pathEspressoNightMode)
}

func (c *EspressoClient) SetNightMode(ctx context.Context, on bool) error {
	return c.setBool(ctx, pathEspressoNightMode, on)
}

func (c *EspressoClient) GetAmbeoMode(ctx context.Context) (*bool, error) {
	return c.getBool(ctx, pathEspressoAmbeoMode)
}

func (c *EspressoClient) SetAmbeoMode(ctx context.Context, on bool) error {
	return c.setBool(ctx, pathEspressoAmbeoMode, on)
}

func (c *EspressoClient) GetSoundFeedback(ctx context.Context) (*bool, error) {
	return c.getBool(ctx, pathEspressoSoundFeedback)
}

func (c *EspressoClient) SetSoundFeedback(ctx context.Context, on bool) error {
	return c.setBool(ctx, pathEspressoSoundFeedback, on)
}

// Sources.

func (c *EspressoClient) GetCurrentSource(ctx context.Context) (*string, error) {
	id, err := c.getInt(ctx, pathEspressoInput, TypeInt32)
	if err != nil || id == nil {
		return nil, err
	}
	s := strconv.Itoa(*id)
	return &s, nil
}

// GetAllSources joins the input name table with the input index table.
//
// The source id is the position of the matching row in the index table,
// matched on lowercased title. Names without an index entry and excluded
// hardware inputs are skipped.
func (c *EspressoClient) GetAllSources(ctx context.Context) ([]Source, error) {
	names, err := c.t.getRows(ctx, pathEspressoInputNames, 0, espressoRowsTo)
	if err != nil {
		return nil, fmt.Errorf("listing input names: %w", err)
	}
	inputs, err := c.t.getRows(ctx, pathEspressoInputs, 0, espressoRowsTo)
	if err != nil {
		return nil, fmt.Errorf("listing inputs: %w", err)
	}
	if names == nil || inputs == nil {
		return nil, nil
	}

	index := make(map[string]int, len(inputs))
	for i, in := range inputs {
		key := strings.ToLower(in.Title)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	sources := make([]Source, 0, len(names))
	for _, name := range names {
		key := strings.ToLower(name.Title)
		if isExcludedSource(key) {
			continue
		}
		id, ok := index[key]
		if !ok {
			c.logger.Debug("input name has no index entry", "title", name.Title)
			continue
		}
		title := name.Title
		if label := extractAs[string](c.logger, name.Value, TypeString); label != nil && *label != "" {
			title = *label
		}
		sources = append(sources, Source{ID: strconv.Itoa(id), Title: title})
	}
	return sources, nil
}

func isExcludedSource(lowerTitle string) bool {
	for _, ex := range excludedMaxSources {
		if lowerTitle == ex {
			return true
		}
	}
	return false
}

func (c *EspressoClient) SetSource(ctx context.Context, id string) error {
	n, err := parseNumericID(id)
	if err != nil {
		return err
	}
	return c.setInt(ctx, pathEspressoInput, TypeInt32, n)
}

// Presets.

func (c *EspressoClient) GetCurrentPreset(ctx context.Context) (*string, error) {
	id, err := c.getInt(ctx, pathEspressoPreset, TypeInt32)
	if err != nil || id == nil {
		return nil, err
	}
	s := strconv.Itoa(*id)
	return &s, nil
}

// GetAllPresets returns the fixed Max preset table without contacting
// the device.
func (c *EspressoClient) GetAllPresets(context.Context) ([]Preset, error) {
	out := make([]Preset, len(maxPresets))
	copy(out, maxPresets)
	return out, nil
}

func (c *EspressoClient) SetPreset(ctx context.Context, id string) error {
	n, err := parseNumericID(id)
	if err != nil {
		return err
	}
	return c.setInt(ctx, pathEspressoPreset, TypeInt32, n)
}

func parseNumericID(id string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not numeric", ErrInvalidID, id)
	}
	return n, nil
}

// Brightness.
//
// Logo and display brightness share one value. Each setter reads the
// sibling field and writes both. Writers on this client are serialised
// per path, but a write from another controller between the read and
// the write is lost; the device has no transactional update.

func (c *EspressoClient) getBrightness(ctx context.Context) (*espressoBrightness, error) {
	return getValue[espressoBrightness](ctx, c.t, pathEspressoBrightness, TypeEspressoBrightness)
}

func (c *EspressoClient) GetLogoBrightness(ctx context.Context) (*int, error) {
	b, err := c.getBrightness(ctx)
	if err != nil || b == nil {
		return nil, err
	}
	return b.AmbeoLogo, nil
}

func (c *EspressoClient) GetDisplayBrightness(ctx context.Context) (*int, error) {
	b, err := c.getBrightness(ctx)
	if err != nil || b == nil {
		return nil, err
	}
	return b.Display, nil
}

func (c *EspressoClient) SetLogoBrightness(ctx context.Context, brightness int) error {
	unlock := c.t.lockPath(pathEspressoBrightness)
	defer unlock()

	display, err := c.GetDisplayBrightness(ctx)
	if err != nil {
		return fmt.Errorf("reading display brightness: %w", err)
	}
	return c.t.setValue(ctx, pathEspressoBrightness, TypeEspressoBrightness,
		espressoBrightness{AmbeoLogo: &brightness, Display: display})
}

func (c *EspressoClient) SetDisplayBrightness(ctx context.Context, brightness int) error {
	unlock := c.t.lockPath(pathEspressoBrightness)
	defer unlock()

	logo, err := c.GetLogoBrightness(ctx)
	if err != nil {
		return fmt.Errorf("reading logo brightness: %w", err)
	}
	return c.t.setValue(ctx, pathEspressoBrightness, TypeEspressoBrightness,
		espressoBrightness{AmbeoLogo: logo, Display: &brightness})
}

// Expert levels.

func (c *EspressoClient) GetVoiceEnhancementLevel(ctx context.Context) (*int, error) {
	return c.getInt(ctx, pathEspressoVoiceLevel, TypeInt16)
}

func (c *EspressoClient) SetVoiceEnhancementLevel(ctx context.Context, level int) error {
	return c.setInt(ctx, pathEspressoVoiceLevel, TypeInt16, level)
}

func (c *EspressoClient) GetCenterSpeakerLevel(ctx context.Context) (*int, error) {
	return c.getInt(ctx, pathEspressoCenterLevel, TypeInt16)
}

func (c *EspressoClient) SetCenterSpeakerLevel(ctx context.Context, level int) error {
	return c.setInt(ctx, pathEspressoCenterLevel, TypeInt16, level)
}

func (c *EspressoClient) GetSideFiringLevel(ctx context.Context) (*int, error) {
	return c.getInt(ctx, pathEspressoSideLevel, TypeInt16)
}

func (c *EspressoClient) SetSideFiringLevel(ctx context.Context, level int) error {
	return c.setInt(ctx, pathEspressoSideLevel, TypeInt16, level)
}

func (c *EspressoClient) GetUpFiringLevel(ctx context.Context) (*int, error) {
	return c.getInt(ctx, pathEspressoUpLevel, TypeInt16)
}

func (c *EspressoClient) SetUpFiringLevel(ctx context.Context, level int) error {
	return c.setInt(ctx, pathEspressoUpLevel, TypeInt16, level)
}

func (c *EspressoClient) ResetExpertSettings(ctx context.Context) error {
	return c.t.activate(ctx, pathEspressoResetExpert)
}

// Subwoofer.

// subwooferEnabled reads the level control and reports whether its
// disabled flag is explicitly false.
func (c *EspressoClient) subwooferEnabled(ctx context.Context) (bool, error) {
	raw, err := c.t.getData(ctx, pathEspressoSubwooferLevel)
	if err != nil {
		return false, err
	}
	var meta struct {
		Disabled *bool `json:"disabled"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		c.logger.Debug("subwoofer level response is not an object", "error", err)
		return false, nil
	}
	return meta.Disabled != nil && !*meta.Disabled, nil
}

// HasSubwoofer probes the level control. Only a positive answer is
// memoized; an absent subwoofer is probed again on the next call.
func (c *EspressoClient) HasSubwoofer(ctx context.Context) (bool, error) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.hasSubwoofer {
		return true, nil
	}
	present, err := c.subwooferEnabled(ctx)
	if err != nil {
		return false, err
	}
	if present {
		c.hasSubwoofer = true
	}
	return present, nil
}

// GetSubwooferStatus is derived from the level control's disabled flag.
func (c *EspressoClient) GetSubwooferStatus(ctx context.Context) (*bool, error) {
	enabled, err := c.subwooferEnabled(ctx)
	if err != nil {
		return nil, err
	}
	return &enabled, nil
}

// SetSubwooferStatus is not available on the Max; the subwoofer is
// enabled by pairing it.
func (c *EspressoClient) SetSubwooferStatus(context.Context, bool) error {
	return unsupported("set subwoofer status")
}

func (c *EspressoClient) GetSubwooferVolume(ctx context.Context) (*float64, error) {
	return getValue[float64](ctx, c.t, pathEspressoSubwooferLevel, TypeInt16)
}

func (c *EspressoClient) SetSubwooferVolume(ctx context.Context, volume float64) error {
	return c.setInt(ctx, pathEspressoSubwooferLevel, TypeInt16, int(volume))
}

func (c *EspressoClient) SubwooferRange() Range { return espressoSubwooferRange }

var _ Client = (*EspressoClient)(nil)
