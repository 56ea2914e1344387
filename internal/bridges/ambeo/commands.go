package ambeo

import (
	"context"
	"fmt"
	"math"

	ambeoapi "github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
)

// Media player command names. Feature commands reuse the feature keys.
const (
	cmdVolume    = "volume"
	cmdMute      = "mute"
	cmdSource    = "source"
	cmdSoundMode = "sound_mode"
	cmdPlay      = "play"
	cmdPause     = "pause"
	cmdNext      = "next"
	cmdPrevious  = "previous"
	cmdTurnOn    = "turn_on"
	cmdTurnOff   = "turn_off"
)

// commandSpec gates and runs one command against a ready soundbar.
type commandSpec struct {
	supported support
	run       func(ctx context.Context, m *managedSoundbar, params map[string]any) error
}

var commands = map[string]commandSpec{
	cmdVolume: {always, func(ctx context.Context, m *managedSoundbar, p map[string]any) error {
		level, err := paramFloat(p, "level")
		if err != nil {
			return err
		}
		return m.player.SetVolumeLevel(ctx, level)
	}},
	cmdMute: {always, func(ctx context.Context, m *managedSoundbar, p map[string]any) error {
		mute, err := paramBool(p, "mute")
		if err != nil {
			return err
		}
		return m.player.Mute(ctx, mute)
	}},
	cmdSource: {always, func(ctx context.Context, m *managedSoundbar, p map[string]any) error {
		title, err := paramString(p, "source")
		if err != nil {
			return err
		}
		return m.player.SelectSource(ctx, title)
	}},
	cmdSoundMode: {always, func(ctx context.Context, m *managedSoundbar, p map[string]any) error {
		title, err := paramString(p, "sound_mode")
		if err != nil {
			return err
		}
		return m.player.SelectSoundMode(ctx, title)
	}},
	cmdPlay: {always, func(ctx context.Context, m *managedSoundbar, _ map[string]any) error {
		return m.player.Play(ctx)
	}},
	cmdPause: {always, func(ctx context.Context, m *managedSoundbar, _ map[string]any) error {
		return m.player.Pause(ctx)
	}},
	cmdNext: {always, func(ctx context.Context, m *managedSoundbar, _ map[string]any) error {
		return m.player.Next(ctx)
	}},
	cmdPrevious: {always, func(ctx context.Context, m *managedSoundbar, _ map[string]any) error {
		return m.player.Previous(ctx)
	}},
	cmdTurnOn: {withCap(ambeoapi.CapStandby), func(ctx context.Context, m *managedSoundbar, _ map[string]any) error {
		return m.player.TurnOn(ctx)
	}},
	cmdTurnOff: {withCap(ambeoapi.CapStandby), func(ctx context.Context, m *managedSoundbar, _ map[string]any) error {
		return m.player.TurnOff(ctx)
	}},
	keyReboot: {always, func(ctx context.Context, m *managedSoundbar, _ map[string]any) error {
		return m.client.Reboot(ctx)
	}},

	keyNightMode:     boolCommand(always, ambeoapi.Client.SetNightMode),
	keyAmbeoMode:     boolCommand(always, ambeoapi.Client.SetAmbeoMode),
	keySoundFeedback: boolCommand(always, ambeoapi.Client.SetSoundFeedback),
	keyVoiceEnhancement: boolCommand(withCap(ambeoapi.CapVoiceEnhancement, ambeoapi.CapVoiceEnhancementToggle),
		ambeoapi.Client.SetVoiceEnhancement),
	keyLogoState:       boolCommand(withCap(ambeoapi.CapAmbeoLogo), ambeoapi.Client.SetLogoState),
	keySubwooferStatus: boolCommand(subwooferToggle, ambeoapi.Client.SetSubwooferStatus),

	keyBluetoothPairing: {withCap(ambeoapi.CapBluetoothPairing), func(ctx context.Context, m *managedSoundbar, p map[string]any) error {
		on := true
		if _, ok := p["on"]; ok {
			v, err := paramBool(p, "on")
			if err != nil {
				return err
			}
			on = v
		}
		return m.client.SetBluetoothPairing(ctx, on)
	}},

	keyLogoBrightness: brightnessCommand(withCap(ambeoapi.CapAmbeoLogo, ambeoapi.CapMaxLogo),
		logoScale, ambeoapi.Client.SetLogoBrightness),
	keyLEDBarBrightness: brightnessCommand(withCap(ambeoapi.CapLEDBar),
		func(ambeoapi.Client) ambeoapi.Range { return ambeoapi.BrightnessScale }, ambeoapi.Client.SetLEDBarBrightness),
	keyCodecLEDBrightness: brightnessCommand(withCap(ambeoapi.CapCodecLED),
		func(ambeoapi.Client) ambeoapi.Range { return ambeoapi.BrightnessScale }, ambeoapi.Client.SetCodecLEDBrightness),
	keyDisplayBrightness: brightnessCommand(withCap(ambeoapi.CapMaxDisplay),
		displayScale, ambeoapi.Client.SetDisplayBrightness),

	keySubwooferVolume: {withSubwoofer, func(ctx context.Context, m *managedSoundbar, p map[string]any) error {
		v, err := paramInRange(p, "value", m.client.SubwooferRange())
		if err != nil {
			return err
		}
		return m.client.SetSubwooferVolume(ctx, v)
	}},

	keyVoiceEnhancementLevel: levelCommand(ambeoapi.CapVoiceEnhancementLevel, ambeoapi.VoiceEnhancementLevelRange,
		ambeoapi.Client.SetVoiceEnhancementLevel),
	keyCenterSpeakerLevel: levelCommand(ambeoapi.CapCenterSpeakerLevel, ambeoapi.ExpertLevelRange,
		ambeoapi.Client.SetCenterSpeakerLevel),
	keySideFiringLevel: levelCommand(ambeoapi.CapSideFiringLevel, ambeoapi.ExpertLevelRange,
		ambeoapi.Client.SetSideFiringLevel),
	keyUpFiringLevel: levelCommand(ambeoapi.CapUpFiringLevel, ambeoapi.ExpertLevelRange,
		ambeoapi.Client.SetUpFiringLevel),

	keyResetExpertSettings: {withCap(ambeoapi.CapResetExpertSettings), func(ctx context.Context, m *managedSoundbar, _ map[string]any) error {
		return m.client.ResetExpertSettings(ctx)
	}},
}

func boolCommand(s support, set func(ambeoapi.Client, context.Context, bool) error) commandSpec {
	return commandSpec{s, func(ctx context.Context, m *managedSoundbar, p map[string]any) error {
		on, err := paramBool(p, "on")
		if err != nil {
			return err
		}
		return set(m.client, ctx, on)
	}}
}

func brightnessCommand(
	s support,
	scale func(ambeoapi.Client) ambeoapi.Range,
	set func(ambeoapi.Client, context.Context, int) error,
) commandSpec {
	return commandSpec{s, func(ctx context.Context, m *managedSoundbar, p map[string]any) error {
		v, err := paramInRange(p, "brightness", ambeoapi.BrightnessScale)
		if err != nil {
			return err
		}
		return set(m.client, ctx, toDeviceBrightness(scale(m.client), v))
	}}
}

func levelCommand(c ambeoapi.Capability, rng ambeoapi.Range, set func(ambeoapi.Client, context.Context, int) error) commandSpec {
	return commandSpec{withCap(c), func(ctx context.Context, m *managedSoundbar, p map[string]any) error {
		v, err := paramInRange(p, "value", rng)
		if err != nil {
			return err
		}
		return set(m.client, ctx, int(math.Round(v)))
	}}
}

func paramFloat(p map[string]any, key string) (float64, error) {
	raw, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidParameters, key)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidParameters, key)
	}
}

func paramInRange(p map[string]any, key string, rng ambeoapi.Range) (float64, error) {
	v, err := paramFloat(p, key)
	if err != nil {
		return 0, err
	}
	if v < rng.Min || v > rng.Max {
		return 0, fmt.Errorf("%w: %q must be between %g and %g", ErrInvalidParameters, key, rng.Min, rng.Max)
	}
	return v, nil
}

func paramBool(p map[string]any, key string) (bool, error) {
	v, ok := p[key].(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q must be a boolean", ErrInvalidParameters, key)
	}
	return v, nil
}

func paramString(p map[string]any, key string) (string, error) {
	v, ok := p[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidParameters, key)
	}
	return v, nil
}
