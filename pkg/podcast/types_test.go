package podcast

import "testing"

func TestTone_IsValid(t *testing.T) {
	valid := []Tone{ToneCasual, ToneEducational, ToneHumorous}
	for _, tone := range valid {
		if !tone.IsValid() {
			t.Errorf("Tone(%q).IsValid() = false, want true", tone)
		}
	}
	invalid := []Tone{"", "serious", "Casual", "casual "}
	for _, tone := range invalid {
		if tone.IsValid() {
			t.Errorf("Tone(%q).IsValid() = true, want false", tone)
		}
	}
}

func TestDuration_IsValid(t *testing.T) {
	if !DurationShort.IsValid() || !DurationMedium.IsValid() {
		t.Error("short and medium should be valid")
	}
	for _, d := range []Duration{"", "long", "Short"} {
		if d.IsValid() {
			t.Errorf("Duration(%q).IsValid() = true, want false", d)
		}
	}
}

func TestDuration_LineRange(t *testing.T) {
	tests := []struct {
		d        Duration
		min, max int
	}{
		{DurationShort, 15, 20},
		{DurationMedium, 30, 40},
	}
	for _, tt := range tests {
		min, max := tt.d.LineRange()
		if min != tt.min || max != tt.max {
			t.Errorf("Duration(%q).LineRange() = (%d, %d), want (%d, %d)", tt.d, min, max, tt.min, tt.max)
		}
	}
}
