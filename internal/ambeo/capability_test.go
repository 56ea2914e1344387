package ambeo

import "testing"

func TestCapabilityIsValid(t *testing.T) {
	for _, c := range AllCapabilities {
		if !c.IsValid() {
			t.Errorf("%s.IsValid() = false", c)
		}
	}
	if Capability("Teleport").IsValid() {
		t.Error("unknown capability reported valid")
	}
}

func TestCapabilitySet_ZeroValue(t *testing.T) {
	var s CapabilitySet
	if s.Has(CapSubwoofer) {
		t.Error("zero set has a capability")
	}
	if s.Len() != 0 || len(s.List()) != 0 {
		t.Errorf("zero set Len() = %d, List() = %v", s.Len(), s.List())
	}
}

func TestCapabilitySet_Duplicates(t *testing.T) {
	s := NewCapabilitySet(CapLEDBar, CapLEDBar, CapCodecLED)
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	want := []string{"CodecLED", "LEDBar"}
	got := s.Strings()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Strings() = %v, want %v", got, want)
	}
}

func TestScaleBrightness(t *testing.T) {
	tests := []struct {
		name string
		from Range
		to   Range
		in   float64
		want int
	}{
		{"max display top", BrightnessScale, MaxDisplayScale, 100, 126},
		{"max display bottom", BrightnessScale, MaxDisplayScale, 0, 1},
		{"max logo half", BrightnessScale, MaxLogoScale, 50, 60},
		{"clamped above", BrightnessScale, MaxLogoScale, 150, 118},
		{"clamped below", BrightnessScale, MaxLogoScale, -5, 1},
		{"device to user", MaxDisplayScale, BrightnessScale, 126, 100},
		{"identity", BrightnessScale, BrightnessScale, 42, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleBrightness(tt.from, tt.to, tt.in); got != tt.want {
				t.Errorf("ScaleBrightness(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
