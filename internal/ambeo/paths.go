package ambeo

// Device paths shared by every family.
const (
	pathDeviceName      = "systemmanager:/deviceName"
	pathSerial          = "settings:/system/serialNumber"
	pathFirmwareVersion = "ui:settings/firmwareUpdate/currentVersion"
	pathProductName     = "settings:/system/productName"
	pathVolume          = "player:volume"
	pathMute            = "settings:/mediaPlayer/mute"
	pathPlayPause       = "popcorn:multiPurposeButtonActivate"
	pathPlayerControl   = "player:player/control"
	pathPlayerData      = "player:player/data/value"
	pathRestart         = "ui:/settings/system/restart"
	pathPowerTarget     = "powermanager:target"
)

// Popcorn namespace (Plus and Mini).
const (
	pathPopcornNightMode        = "settings:/popcorn/audio/nightModeStatus"
	pathPopcornVoiceEnhancement = "settings:/popcorn/audio/voiceEnhancement"
	pathPopcornAmbeoMode        = "settings:/popcorn/audio/ambeoModeStatus"
	pathPopcornSoundFeedback    = "settings:/popcorn/ux/soundFeedbackStatus"
	pathPopcornCurrentInput     = "popcorn:inputChange/selected"
	pathPopcornInputs           = "ui:/inputs"
	pathPopcornPreset           = "settings:/popcorn/audio/audioPresets/audioPreset"
	pathPopcornPresetValues     = "settings:/popcorn/audio/audioPresetValues"
	pathPopcornCodecLED         = "ui:/settings/interface/codecLedBrightness"
	pathPopcornLogoBrightness   = "ui:/settings/interface/ambeoSection/brightness"
	pathPopcornLogoState        = "settings:/popcorn/ui/ledStatus"
	pathPopcornLEDBar           = "ui:/settings/interface/ledBrightness"
	pathBluetoothState          = "bluetooth:state"
	pathBluetoothDiscoverable   = "bluetooth:deviceList/discoverable"
	pathPopcornSubwooferList    = "settings:/popcorn/subwoofer/list"
	pathPopcornSubwooferEnabled = "ui:/settings/subwoofer/enabled"
	pathPopcornSubwooferVolume  = "ui:/settings/subwoofer/volume"
	pathPopcornEcoMode          = "uipopcorn:ecoModeState"
)

// Espresso namespace (Max).
const (
	pathEspressoStandby        = "espresso:appRequestedStandby"
	pathEspressoOnline         = "espresso:appRequestedOnline"
	pathEspressoNightMode      = "espresso:nightModeUi"
	pathEspressoAmbeoMode      = "espresso:ambeoModeUi"
	pathEspressoSoundFeedback  = "settings:/espresso/soundFeedback"
	pathEspressoInput          = "espresso:audioInputID"
	pathEspressoInputNames     = "settings:/espresso/inputNames"
	pathEspressoInputs         = "espresso:"
	pathEspressoPreset         = "settings:/espresso/equalizerPreset"
	pathEspressoBrightness     = "settings:/espresso/brightnessSensor"
	pathEspressoVoiceLevel     = "ui:/mydevice/voiceEnhanceLevel"
	pathEspressoCenterLevel    = "ui:/settings/audio/centerSettings"
	pathEspressoSideLevel      = "ui:/settings/audio/widthSettings"
	pathEspressoUpLevel        = "ui:/settings/audio/heightSettings"
	pathEspressoResetExpert    = "ui:/settings/audio/resetExpertSettings"
	pathEspressoSubwooferLevel = "ui:/settings/audio/subWooferLevel"
)

// Row windows for collection listings.
const (
	popcornRowsTo  = 10
	espressoRowsTo = 20
)
