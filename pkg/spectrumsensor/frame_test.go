package spectrumsensor

import (
	"errors"
	"reflect"
	"testing"
)

func intPtr(i int) *int { return &i }

func TestFrameShapeParse(t *testing.T) {
	tests := []struct {
		name  string
		shape frameShape
		line  string
		want  *TimestampedData
	}{
		{
			"tagged",
			frameShape{layout: layoutTagged, samples: 3},
			"TS 1.0 CH 3 DS 10 20 30 DE",
			&TimestampedData{Timestamp: 1.0, Channel: intPtr(3), Data: []float64{10, 20, 30}},
		},
		{
			"tagged power",
			frameShape{layout: layoutTagged, samples: 2},
			"TS 12.345 CH 0 DS -98.50 -101.25 DE",
			&TimestampedData{Timestamp: 12.345, Channel: intPtr(0), Data: []float64{-98.5, -101.25}},
		},
		{
			"legacy",
			frameShape{layout: layoutLegacy, samples: 2},
			"TS 0.5 DS -90.00 -91.00 DE",
			&TimestampedData{Timestamp: 0.5, Data: []float64{-90, -91}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.shape.parse(tt.line)
			if err != nil {
				t.Fatalf("parse() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFrameShapeRejects(t *testing.T) {
	tagged := frameShape{layout: layoutTagged, samples: 3}
	tests := []struct {
		name  string
		shape frameShape
		line  string
	}{
		{"missing value", tagged, "TS 1.0 CH 3 DS 10 20 DE"},
		{"extra value", tagged, "TS 1.0 CH 3 DS 10 20 30 40 DE"},
		{"missing tag", tagged, "TS 1.0 3 DS 10 20 30 40 DE"},
		{"wrong tag", tagged, "TS 1.0 CX 3 DS 10 20 30 DE"},
		{"no end tag", tagged, "TS 1.0 CH 3 DS 10 20 30 40"},
		{"bad timestamp", tagged, "TS x CH 3 DS 10 20 30 DE"},
		{"bad channel", tagged, "TS 1.0 CH c DS 10 20 30 DE"},
		{"bad value", tagged, "TS 1.0 CH 3 DS 10 2O 30 DE"},
		{"truncated", tagged, "TS 1.0 CH 3 D"},
		{"empty", tagged, ""},
		{"legacy short", frameShape{layout: layoutLegacy, samples: 2}, "TS 0.5 DS -90.00 DE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, err := tt.shape.parse(tt.line); !errors.Is(err, errMalformed) {
				t.Errorf("parse() = %+v, %v, want errMalformed", got, err)
			}
		})
	}
}

func TestParseBaseband(t *testing.T) {
	got, err := parseBaseband("DS 1 -2 3 4096 DE\n")
	if err != nil {
		t.Fatalf("parseBaseband() error = %v", err)
	}
	if !reflect.DeepEqual(got, []int{1, -2, 3, 4096}) {
		t.Errorf("parseBaseband() = %v", got)
	}

	for _, line := range []string{"", "DS 1 2", "1 2 DE", "DS 1.5 DE"} {
		if _, err := parseBaseband(line); !errors.Is(err, errMalformed) {
			t.Errorf("parseBaseband(%q) error = %v", line, err)
		}
	}
}
