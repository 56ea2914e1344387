package ambeo

const plusVolumeStep = 0.01

// PlusClient drives the AMBEO Soundbar Plus on firmware that predates
// cast inputs and subwoofer pairing. It shares the popcorn settings
// namespace with PopcornClient.
//
// The product name does not distinguish firmware generations, so this
// client is only selected by an explicit variant override.
type PlusClient struct {
	popcornSettings
}

// NewPlusClient creates an older Plus client on t.
func NewPlusClient(t *Transport) *PlusClient {
	c := &PlusClient{popcornSettings: popcornSettings{base: newBase(t, FamilyPlus, plusCapabilities)}}
	c.volumeStep = plusVolumeStep
	return c
}

var _ Client = (*PlusClient)(nil)
