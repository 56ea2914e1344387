// Package player reconciles soundbar playback state into a media player view.
//
// A Player polls the device through an ambeo.Client, maps device states to
// media player states, and optionally debounces the short "stopped" blips
// some soundbars report between tracks. When debouncing is enabled a stopped
// report is held back for the configured cooldown; any other report cancels
// the held update and applies immediately.
package player

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
)

// State is a media player state.
type State string

// Media player states.
const (
	StateOn      State = "on"
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateStandby State = "standby"
)

// Raw device states with special handling.
const (
	deviceStopped        = "stopped"
	deviceTransitioning  = "transitioning"
	deviceNetworkStandby = "networkStandby"
)

// maxVolume is the device volume that maps to level 1.0.
const maxVolume = 100

var stateMap = map[string]State{
	"playing": StatePlaying,
	"paused":  StatePaused,
	"stopped": StateIdle,
	"online":  StateOn,
}

// MapState converts a raw device state to a media player state.
// networkStandby maps to standby only on devices that can enter standby.
// Unknown states are passed through unchanged.
func MapState(raw string, hasStandby bool) State {
	if raw == deviceNetworkStandby {
		if hasStandby {
			return StateStandby
		}
		return StateIdle
	}
	if s, ok := stateMap[raw]; ok {
		return s
	}
	return State(raw)
}

// playingState maps a player-data state, defaulting to idle.
func playingState(raw string, hasStandby bool) State {
	if raw == deviceNetworkStandby {
		return MapState(raw, hasStandby)
	}
	if s, ok := stateMap[raw]; ok {
		return s
	}
	return StateIdle
}

// Options configures a Player.
type Options struct {
	// Cooldown is the debounce delay for stopped reports. Zero disables debouncing.
	Cooldown time.Duration
	Logger   ambeo.Logger
}

// Player holds the media player view of one soundbar.
type Player struct {
	client     ambeo.Client
	logger     ambeo.Logger
	hasStandby bool

	// updateMu serialises debounce decisions. The delayed apply only
	// takes mu, so Cancel may be awaited while updateMu is held.
	updateMu  sync.Mutex
	debouncer Debouncer

	mu           sync.RWMutex
	cooldown     time.Duration
	powerState   State
	playingState State
	volume       *float64
	muted        bool
	source       string
	preset       string
	title        string
	artist       string
	album        string
	imageURL     string
	sources      []ambeo.Source
	presets      []ambeo.Preset
}

// New creates a Player for client.
func New(client ambeo.Client, opts Options) *Player {
	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	return &Player{
		client:       client,
		logger:       logger,
		hasStandby:   client.HasCapability(ambeo.CapStandby),
		cooldown:     opts.Cooldown,
		powerState:   StateOn,
		playingState: StateIdle,
	}
}

// LoadLists reads the source and preset lists from the device.
// A failed read keeps the previous list for that kind.
func (p *Player) LoadLists(ctx context.Context) error {
	sources, srcErr := p.client.GetAllSources(ctx)
	presets, preErr := p.client.GetAllPresets(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if srcErr == nil {
		p.sources = sources
	}
	if preErr == nil {
		p.presets = presets
	}

	switch {
	case srcErr != nil:
		return fmt.Errorf("loading sources: %w", srcErr)
	case preErr != nil:
		return fmt.Errorf("loading presets: %w", preErr)
	}
	return nil
}

// SetLists replaces the cached source and preset lists.
func (p *Player) SetLists(sources []ambeo.Source, presets []ambeo.Preset) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = append([]ambeo.Source(nil), sources...)
	p.presets = append([]ambeo.Preset(nil), presets...)
}

// Sources returns a copy of the cached source list.
func (p *Player) Sources() []ambeo.Source {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ambeo.Source(nil), p.sources...)
}

// Presets returns a copy of the cached preset list.
func (p *Player) Presets() []ambeo.Preset {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ambeo.Preset(nil), p.presets...)
}

// UpdateCooldown reconfigures the debounce delay. Any pending debounced
// update is cancelled first.
func (p *Player) UpdateCooldown(d time.Duration) {
	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	p.debouncer.Cancel()

	p.mu.Lock()
	p.cooldown = d
	p.mu.Unlock()

	if p.debounceEnabled() {
		p.logger.Debug("debounce mode activated", "cooldown", d)
	} else {
		p.logger.Debug("debounce mode deactivated")
	}
}

// Close cancels any pending debounced update.
func (p *Player) Close() {
	p.debouncer.Cancel()
}

// DebouncePending reports whether a debounced update is waiting to apply.
func (p *Player) DebouncePending() bool {
	return p.debouncer.Pending()
}

func (p *Player) debounceEnabled() bool {
	p.mu.RLock()
	cooldown := p.cooldown
	p.mu.RUnlock()
	return p.client.SupportsDebounce() && cooldown > 0
}

// Snapshot is a point-in-time copy of the player state.
type Snapshot struct {
	State         State    `json:"state"`
	PowerState    State    `json:"power_state"`
	PlayingState  State    `json:"playing_state"`
	Available     bool     `json:"available"`
	Volume        *float64 `json:"volume,omitempty"`
	VolumeStep    float64  `json:"volume_step"`
	Muted         bool     `json:"muted"`
	Source        string   `json:"source,omitempty"`
	SoundMode     string   `json:"sound_mode,omitempty"`
	Title         string   `json:"media_title,omitempty"`
	Artist        string   `json:"media_artist,omitempty"`
	Album         string   `json:"media_album,omitempty"`
	ImageURL      string   `json:"media_image_url,omitempty"`
	SourceList    []string `json:"source_list"`
	SoundModeList []string `json:"sound_mode_list"`
}

// Snapshot returns the current player state.
func (p *Player) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Snapshot{
		State:         p.stateLocked(),
		PowerState:    p.powerState,
		PlayingState:  p.playingState,
		Available:     p.volume != nil,
		VolumeStep:    p.client.VolumeStep(),
		Muted:         p.muted,
		Source:        p.source,
		SoundMode:     p.preset,
		Title:         p.title,
		Artist:        p.artist,
		Album:         p.album,
		ImageURL:      p.imageURL,
		SourceList:    sourceTitles(p.sources),
		SoundModeList: presetTitles(p.presets),
	}
	if p.volume != nil {
		v := *p.volume
		s.Volume = &v
	}
	return s
}

// State returns the reported media player state: the playing state while
// powered on, otherwise the power state.
func (p *Player) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stateLocked()
}

func (p *Player) stateLocked() State {
	if p.powerState == StateOn {
		return p.playingState
	}
	return p.powerState
}

func sourceTitles(sources []ambeo.Source) []string {
	titles := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.Title != "" {
			titles = append(titles, s.Title)
		}
	}
	sort.Strings(titles)
	return titles
}

func presetTitles(presets []ambeo.Preset) []string {
	titles := make([]string, 0, len(presets))
	for _, pr := range presets {
		if pr.Title != "" {
			titles = append(titles, pr.Title)
		}
	}
	sort.Strings(titles)
	return titles
}

// Field names a value refreshed from the device.
type Field string

// Refreshed fields.
const (
	FieldVolume     Field = "volume"
	FieldMute       Field = "mute"
	FieldSource     Field = "source"
	FieldPreset     Field = "preset"
	FieldState      Field = "state"
	FieldPlayerData Field = "player_data"
)

// RefreshResult records the fields that failed during a refresh.
type RefreshResult struct {
	Errors map[Field]error
}

// OK reports whether every field refreshed.
func (r RefreshResult) OK() bool { return len(r.Errors) == 0 }

// Failed reports whether the given field failed to refresh.
func (r RefreshResult) Failed(f Field) bool {
	_, ok := r.Errors[f]
	return ok
}

// Refresh reads volume, mute, source, preset, power state and player data
// concurrently. Each read is isolated: a failure is logged and recorded for
// its field while the others still apply.
func (p *Player) Refresh(ctx context.Context) RefreshResult {
	result := RefreshResult{Errors: make(map[Field]error)}
	var (
		g     errgroup.Group
		resMu sync.Mutex
	)

	fetch := func(field Field, fn func(context.Context) error) {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
				p.logger.Error("refresh failed", "field", string(field), "error", err)
				resMu.Lock()
				result.Errors[field] = err
				resMu.Unlock()
			}
			return nil
		})
	}

	fetch(FieldVolume, p.refreshVolume)
	fetch(FieldMute, p.refreshMute)
	fetch(FieldSource, p.refreshSource)
	fetch(FieldPreset, p.refreshPreset)
	fetch(FieldState, p.refreshState)
	fetch(FieldPlayerData, p.refreshPlayerData)

	_ = g.Wait()
	return result
}

func (p *Player) refreshVolume(ctx context.Context) error {
	v, err := p.client.GetVolume(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil || v == nil {
		// No reading means the player is unavailable, not stale.
		p.volume = nil
		return err
	}
	level := float64(*v) / maxVolume
	p.volume = &level
	return nil
}

func (p *Player) refreshMute(ctx context.Context) error {
	m, err := p.client.IsMuted(ctx)
	if err != nil || m == nil {
		return err
	}
	p.mu.Lock()
	p.muted = *m
	p.mu.Unlock()
	return nil
}

func (p *Player) refreshSource(ctx context.Context) error {
	id, err := p.client.GetCurrentSource(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = ""
	if id != nil {
		p.source = sourceTitleByID(p.sources, *id)
	}
	return nil
}

func (p *Player) refreshPreset(ctx context.Context) error {
	id, err := p.client.GetCurrentPreset(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preset = ""
	if id != nil {
		p.preset = presetTitleByID(p.presets, *id)
	}
	return nil
}

func (p *Player) refreshState(ctx context.Context) error {
	raw, err := p.client.GetPowerState(ctx)
	if err != nil || raw == nil {
		return err
	}
	p.mu.Lock()
	p.powerState = MapState(*raw, p.hasStandby)
	p.mu.Unlock()
	return nil
}

func (p *Player) refreshPlayerData(ctx context.Context) error {
	data, err := p.client.GetPlayerData(ctx)
	if err != nil || data == nil {
		return err
	}
	if data.State == deviceTransitioning {
		p.logger.Debug("ignoring transitioning player state")
		return nil
	}
	if !p.debounceEnabled() {
		p.applyPlayerData(context.Background(), *data)
		return nil
	}

	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	if p.shouldDebounce(data.State) {
		p.mu.RLock()
		cooldown := p.cooldown
		p.mu.RUnlock()

		held := *data
		if p.debouncer.Schedule(cooldown, func(ctx context.Context) { p.applyPlayerData(ctx, held) }) {
			p.logger.Debug("debounced update scheduled", "state", data.State, "cooldown", cooldown)
		} else {
			p.logger.Debug("debounce already pending", "remaining", p.debouncer.Remaining().Round(100*time.Millisecond))
		}
		return nil
	}

	p.debouncer.Cancel()
	p.applyPlayerData(context.Background(), *data)
	return nil
}

// shouldDebounce holds back a stopped report while the player is on and
// was not already idle.
func (p *Player) shouldDebounce(raw string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return raw == deviceStopped &&
		p.powerState != StateStandby &&
		p.playingState != StateIdle
}

// applyPlayerData writes player data unless ctx was cancelled. The check
// happens under mu so a cancelled debounced update never lands.
func (p *Player) applyPlayerData(ctx context.Context, data ambeo.PlayerData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	if data.State != "" {
		p.playingState = playingState(data.State, p.hasStandby)
	}
	p.title = data.TrackRoles.Title
	p.imageURL = data.TrackRoles.Icon
	p.artist = data.TrackRoles.MediaData.MetaData.Artist
	p.album = data.TrackRoles.MediaData.MetaData.Album
}

// SetVolumeLevel sets the volume from a 0..1 level.
func (p *Player) SetVolumeLevel(ctx context.Context, level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidVolume, level)
	}
	if err := p.client.SetVolume(ctx, int(math.Round(level*maxVolume))); err != nil {
		return err
	}
	p.mu.Lock()
	p.volume = &level
	p.mu.Unlock()
	return nil
}

// Mute sets the mute state.
func (p *Player) Mute(ctx context.Context, mute bool) error {
	if err := p.client.SetMute(ctx, mute); err != nil {
		return err
	}
	p.mu.Lock()
	p.muted = mute
	p.mu.Unlock()
	return nil
}

// SelectSource switches to the source with the given title.
func (p *Player) SelectSource(ctx context.Context, title string) error {
	p.mu.RLock()
	id, ok := sourceIDByTitle(p.sources, title)
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, title)
	}
	if err := p.client.SetSource(ctx, id); err != nil {
		return err
	}
	p.mu.Lock()
	p.source = title
	p.mu.Unlock()
	return nil
}

// SelectSoundMode switches to the preset with the given title.
func (p *Player) SelectSoundMode(ctx context.Context, title string) error {
	p.mu.RLock()
	id, ok := presetIDByTitle(p.presets, title)
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSoundMode, title)
	}
	if err := p.client.SetPreset(ctx, id); err != nil {
		return err
	}
	p.mu.Lock()
	p.preset = title
	p.mu.Unlock()
	return nil
}

// Play starts playback.
func (p *Player) Play(ctx context.Context) error {
	if err := p.client.Play(ctx); err != nil {
		return err
	}
	p.setPlaying(StatePlaying)
	return nil
}

// Pause pauses playback.
func (p *Player) Pause(ctx context.Context) error {
	if err := p.client.Pause(ctx); err != nil {
		return err
	}
	p.setPlaying(StatePaused)
	return nil
}

// Next skips to the next track.
func (p *Player) Next(ctx context.Context) error {
	p.logger.Debug("skipping to the next track")
	return p.client.Next(ctx)
}

// Previous goes back to the previous track.
func (p *Player) Previous(ctx context.Context) error {
	p.logger.Debug("going back to the previous track")
	return p.client.Previous(ctx)
}

// TurnOn wakes the soundbar. Requires the standby capability.
func (p *Player) TurnOn(ctx context.Context) error {
	if !p.hasStandby {
		return fmt.Errorf("turn on: %w", ambeo.ErrUnsupported)
	}
	if err := p.client.Wake(ctx); err != nil {
		return err
	}
	p.setPower(StateOn)
	return nil
}

// TurnOff puts the soundbar in standby. Requires the standby capability.
func (p *Player) TurnOff(ctx context.Context) error {
	if !p.hasStandby {
		return fmt.Errorf("turn off: %w", ambeo.ErrUnsupported)
	}
	if err := p.client.Standby(ctx); err != nil {
		return err
	}
	p.setPower(StateStandby)
	return nil
}

func (p *Player) setPlaying(s State) {
	p.mu.Lock()
	p.playingState = s
	p.mu.Unlock()
}

func (p *Player) setPower(s State) {
	p.mu.Lock()
	p.powerState = s
	p.mu.Unlock()
}

func sourceTitleByID(sources []ambeo.Source, id string) string {
	for _, s := range sources {
		if s.ID == id {
			return s.Title
		}
	}
	return ""
}

func sourceIDByTitle(sources []ambeo.Source, title string) (string, bool) {
	for _, s := range sources {
		if s.Title == title {
			return s.ID, true
		}
	}
	return "", false
}

func presetTitleByID(presets []ambeo.Preset, id string) string {
	for _, pr := range presets {
		if pr.ID == id {
			return pr.Title
		}
	}
	return ""
}

func presetIDByTitle(presets []ambeo.Preset, title string) (string, bool) {
	for _, pr := range presets {
		if pr.Title == title {
			return pr.ID, true
		}
	}
	return "", false
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
