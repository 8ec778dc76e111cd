package util

import "testing"

func TestFrequencyRange(t *testing.T) {
	low, high := FrequencyRange(2400e6, 470e6, 868e6)
	if low != 470e6 || high != 2400e6 {
		t.Errorf("FrequencyRange() = %d, %d", low, high)
	}
}

func TestHzToString(t *testing.T) {
	tests := []struct {
		hz   int
		want string
	}{
		{470000000, "470.0000 MHz"},
		{868125000, "868.1250 MHz"},
		{0, "0.0000 MHz"},
	}
	for _, tt := range tests {
		if got := HzToString(tt.hz); got != tt.want {
			t.Errorf("HzToString(%d) = %q, want %q", tt.hz, got, tt.want)
		}
	}
}
