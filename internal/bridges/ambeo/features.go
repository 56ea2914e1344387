package ambeo

import (
	"context"

	ambeoapi "github.com/nerrad567/gray-logic-ambeo/internal/ambeo"
)

// Feature state keys. Each is also the command name that sets it.
const (
	keyNightMode             = "night_mode"
	keyAmbeoMode             = "ambeo_mode"
	keySoundFeedback         = "sound_feedback"
	keyVoiceEnhancement      = "voice_enhancement"
	keyLogoState             = "logo_state"
	keyLogoBrightness        = "logo_brightness"
	keyLEDBarBrightness      = "led_bar_brightness"
	keyCodecLEDBrightness    = "codec_led_brightness"
	keyDisplayBrightness     = "display_brightness"
	keyBluetoothPairing      = "bluetooth_pairing"
	keySubwooferStatus       = "subwoofer_status"
	keySubwooferVolume       = "subwoofer_volume"
	keyEcoMode               = "eco_mode"
	keyVoiceEnhancementLevel = "voice_enhancement_level"
	keyCenterSpeakerLevel    = "center_speaker_level"
	keySideFiringLevel       = "side_firing_level"
	keyUpFiringLevel         = "up_firing_level"
	keyReboot                = "reboot"
	keyResetExpertSettings   = "reset_expert_settings"
)

// support reports whether a soundbar offers a feature. hasSub is the
// subwoofer probe taken at setup.
type support func(c ambeoapi.Client, hasSub bool) bool

func always(ambeoapi.Client, bool) bool { return true }

func withCap(caps ...ambeoapi.Capability) support {
	return func(c ambeoapi.Client, _ bool) bool {
		for _, cp := range caps {
			if c.HasCapability(cp) {
				return true
			}
		}
		return false
	}
}

func withSubwoofer(c ambeoapi.Client, hasSub bool) bool {
	return hasSub && c.HasCapability(ambeoapi.CapSubwoofer)
}

// subwooferToggle gates setting the subwoofer on or off. The Max only
// reports whether its subwoofer output is enabled.
func subwooferToggle(c ambeoapi.Client, hasSub bool) bool {
	return withSubwoofer(c, hasSub) && c.Family() != ambeoapi.FamilyEspresso
}

// feature is one polled value.
type feature struct {
	key       string
	supported support
	read      func(ctx context.Context, c ambeoapi.Client) (any, error)
}

// features is polled in order after the player refresh.
var features = []feature{
	{keyNightMode, always, func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetNightMode(ctx))
	}},
	{keyAmbeoMode, always, func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetAmbeoMode(ctx))
	}},
	{keySoundFeedback, always, func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetSoundFeedback(ctx))
	}},
	{keyVoiceEnhancement, withCap(ambeoapi.CapVoiceEnhancement, ambeoapi.CapVoiceEnhancementToggle),
		func(ctx context.Context, c ambeoapi.Client) (any, error) {
			return deref(c.GetVoiceEnhancement(ctx))
		}},
	{keyLogoState, withCap(ambeoapi.CapAmbeoLogo), func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetLogoState(ctx))
	}},
	{keyLogoBrightness, withCap(ambeoapi.CapAmbeoLogo, ambeoapi.CapMaxLogo),
		func(ctx context.Context, c ambeoapi.Client) (any, error) {
			return toUserBrightness(logoScale(c))(c.GetLogoBrightness(ctx))
		}},
	{keyLEDBarBrightness, withCap(ambeoapi.CapLEDBar), func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetLEDBarBrightness(ctx))
	}},
	{keyCodecLEDBrightness, withCap(ambeoapi.CapCodecLED), func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetCodecLEDBrightness(ctx))
	}},
	{keyDisplayBrightness, withCap(ambeoapi.CapMaxDisplay), func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return toUserBrightness(displayScale(c))(c.GetDisplayBrightness(ctx))
	}},
	{keyBluetoothPairing, withCap(ambeoapi.CapBluetoothPairing), func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetBluetoothPairing(ctx))
	}},
	{keySubwooferStatus, withSubwoofer, func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetSubwooferStatus(ctx))
	}},
	{keySubwooferVolume, withSubwoofer, func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetSubwooferVolume(ctx))
	}},
	{keyEcoMode, withCap(ambeoapi.CapEcoMode), func(ctx context.Context, c ambeoapi.Client) (any, error) {
		return deref(c.GetEcoMode(ctx))
	}},
	{keyVoiceEnhancementLevel, withCap(ambeoapi.CapVoiceEnhancementLevel),
		func(ctx context.Context, c ambeoapi.Client) (any, error) {
			return deref(c.GetVoiceEnhancementLevel(ctx))
		}},
	{keyCenterSpeakerLevel, withCap(ambeoapi.CapCenterSpeakerLevel),
		func(ctx context.Context, c ambeoapi.Client) (any, error) {
			return deref(c.GetCenterSpeakerLevel(ctx))
		}},
	{keySideFiringLevel, withCap(ambeoapi.CapSideFiringLevel),
		func(ctx context.Context, c ambeoapi.Client) (any, error) {
			return deref(c.GetSideFiringLevel(ctx))
		}},
	{keyUpFiringLevel, withCap(ambeoapi.CapUpFiringLevel),
		func(ctx context.Context, c ambeoapi.Client) (any, error) {
			return deref(c.GetUpFiringLevel(ctx))
		}},
}

// deref turns a getter result into a state value. A nil pointer becomes a
// nil value so it serialises as null.
func deref[T any](v *T, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return *v, nil
}

// logoScale returns the device range of the logo brightness.
func logoScale(c ambeoapi.Client) ambeoapi.Range {
	if c.HasCapability(ambeoapi.CapMaxLogo) {
		return ambeoapi.MaxLogoScale
	}
	return ambeoapi.BrightnessScale
}

func displayScale(c ambeoapi.Client) ambeoapi.Range {
	if c.HasCapability(ambeoapi.CapMaxDisplay) {
		return ambeoapi.MaxDisplayScale
	}
	return ambeoapi.BrightnessScale
}

// toUserBrightness converts a device brightness reading to 0..100.
func toUserBrightness(device ambeoapi.Range) func(*int, error) (any, error) {
	return func(v *int, err error) (any, error) {
		if err != nil || v == nil {
			return deref(v, err)
		}
		if device == ambeoapi.BrightnessScale {
			return *v, nil
		}
		return ambeoapi.ScaleBrightness(device, ambeoapi.BrightnessScale, float64(*v)), nil
	}
}

// toDeviceBrightness converts a 0..100 brightness to the device range.
func toDeviceBrightness(device ambeoapi.Range, v float64) int {
	if device == ambeoapi.BrightnessScale {
		return int(ambeoapi.BrightnessScale.Clamp(v) + 0.5)
	}
	return ambeoapi.ScaleBrightness(ambeoapi.BrightnessScale, device, v)
}

// entitiesFor derives the discoverable entities from a soundbar's
// capabilities, mirroring which entities a host would create.
func entitiesFor(c ambeoapi.Client, hasSub bool) []Entity {
	brightness := ambeoapi.BrightnessScale
	entities := []Entity{{
		Platform: PlatformMediaPlayer,
		Key:      "media_player",
		Name:     "Media Player",
		Commands: mediaCommands(c),
	}}

	add := func(ok bool, e Entity) {
		if ok {
			entities = append(entities, e)
		}
	}
	has := func(s support) bool { return s(c, hasSub) }

	for _, sw := range []struct{ key, name string }{
		{keyNightMode, "Night Mode"},
		{keyAmbeoMode, "Ambeo Mode"},
		{keySoundFeedback, "Sound Feedback"},
	} {
		add(true, switchEntity(sw.key, sw.name))
	}
	add(has(withCap(ambeoapi.CapVoiceEnhancement, ambeoapi.CapVoiceEnhancementToggle)),
		switchEntity(keyVoiceEnhancement, "Voice Enhancement"))

	if c.HasCapability(ambeoapi.CapAmbeoLogo) {
		entities = append(entities, Entity{
			Platform:  PlatformLight,
			Key:       "ambeo_logo",
			Name:      "Ambeo Logo",
			StateKeys: []string{keyLogoState, keyLogoBrightness},
			Commands:  []string{keyLogoState, keyLogoBrightness},
			Range:     &brightness,
		})
	} else if c.HasCapability(ambeoapi.CapMaxLogo) {
		entities = append(entities, lightEntity("ambeo_logo", "Ambeo Logo", keyLogoBrightness))
	}
	add(has(withCap(ambeoapi.CapLEDBar)), lightEntity("led_bar", "LED Bar", keyLEDBarBrightness))
	add(has(withCap(ambeoapi.CapCodecLED)), lightEntity("codec_led", "Codec LED", keyCodecLEDBrightness))
	add(has(withCap(ambeoapi.CapMaxDisplay)), lightEntity("display", "Display", keyDisplayBrightness))

	if has(withSubwoofer) {
		subRange := c.SubwooferRange()
		status := switchEntity(keySubwooferStatus, "Subwoofer")
		if !subwooferToggle(c, hasSub) {
			status = Entity{
				Platform:  PlatformBinarySensor,
				Key:       keySubwooferStatus,
				Name:      "Subwoofer",
				StateKeys: []string{keySubwooferStatus},
			}
		}
		entities = append(entities,
			status,
			Entity{
				Platform:  PlatformNumber,
				Key:       keySubwooferVolume,
				Name:      "Subwoofer Volume",
				StateKeys: []string{keySubwooferVolume},
				Commands:  []string{keySubwooferVolume},
				Range:     &subRange,
				Unit:      "dB",
			})
	}

	levels := []struct {
		key  string
		name string
		cap  ambeoapi.Capability
		rng  ambeoapi.Range
	}{
		{keyVoiceEnhancementLevel, "Voice Enhancement Level", ambeoapi.CapVoiceEnhancementLevel, ambeoapi.VoiceEnhancementLevelRange},
		{keyCenterSpeakerLevel, "Center Speaker Level", ambeoapi.CapCenterSpeakerLevel, ambeoapi.ExpertLevelRange},
		{keySideFiringLevel, "Side Firing Level", ambeoapi.CapSideFiringLevel, ambeoapi.ExpertLevelRange},
		{keyUpFiringLevel, "Up Firing Level", ambeoapi.CapUpFiringLevel, ambeoapi.ExpertLevelRange},
	}
	for _, l := range levels {
		if c.HasCapability(l.cap) {
			rng := l.rng
			entities = append(entities, Entity{
				Platform:  PlatformNumber,
				Key:       l.key,
				Name:      l.name,
				StateKeys: []string{l.key},
				Commands:  []string{l.key},
				Range:     &rng,
			})
		}
	}

	entities = append(entities, Entity{Platform: PlatformButton, Key: keyReboot, Name: "Reboot", Commands: []string{keyReboot}})
	add(has(withCap(ambeoapi.CapBluetoothPairing)), Entity{
		Platform:  PlatformButton,
		Key:       keyBluetoothPairing,
		Name:      "Bluetooth Pairing",
		StateKeys: []string{keyBluetoothPairing},
		Commands:  []string{keyBluetoothPairing},
	})
	add(has(withCap(ambeoapi.CapResetExpertSettings)), Entity{
		Platform: PlatformButton,
		Key:      keyResetExpertSettings,
		Name:     "Reset Expert Settings",
		Commands: []string{keyResetExpertSettings},
	})
	add(has(withCap(ambeoapi.CapEcoMode)), Entity{
		Platform:  PlatformBinarySensor,
		Key:       keyEcoMode,
		Name:      "Eco Mode",
		StateKeys: []string{keyEcoMode},
	})

	return entities
}

func switchEntity(key, name string) Entity {
	return Entity{Platform: PlatformSwitch, Key: key, Name: name, StateKeys: []string{key}, Commands: []string{key}}
}

func lightEntity(key, name, stateKey string) Entity {
	brightness := ambeoapi.BrightnessScale
	return Entity{
		Platform:  PlatformLight,
		Key:       key,
		Name:      name,
		StateKeys: []string{stateKey},
		Commands:  []string{stateKey},
		Range:     &brightness,
	}
}

func mediaCommands(c ambeoapi.Client) []string {
	cmds := []string{cmdVolume, cmdMute, cmdSource, cmdSoundMode, cmdPlay, cmdPause, cmdNext, cmdPrevious}
	if c.HasCapability(ambeoapi.CapStandby) {
		cmds = append(cmds, cmdTurnOn, cmdTurnOff)
	}
	return cmds
}
