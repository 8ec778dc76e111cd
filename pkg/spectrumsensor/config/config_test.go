package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("device: /dev/ttyUSB0\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if c.BaudRate != 115200 {
		t.Errorf("BaudRate = %d", c.BaudRate)
	}
	if c.Protocol != "tagged" {
		t.Errorf("Protocol = %q", c.Protocol)
	}
	if c.CommandTimeout != 500*time.Millisecond {
		t.Errorf("CommandTimeout = %v", c.CommandTimeout)
	}
	if c.DataTimeout != 2*time.Minute {
		t.Errorf("DataTimeout = %v", c.DataTimeout)
	}
	if c.Mode != ModeList {
		t.Errorf("Mode = %q", c.Mode)
	}
}

func TestLoadSweep(t *testing.T) {
	contents := `
device: socket://localhost:2101
protocol: legacy
command_timeout: 250ms
data_timeout: 5m
disable_calibration: true
mode: sweep
max_records: 10
sweep:
  start_hz: 470000000
  stop_hz: 790000000
  step_hz: 1000000
  config_name: UHF
viz_server:
  port: 8080
  update_interval: 500ms
influxdb:
  host: http://localhost:8086
  organization: sensorlab
  bucket: spectrum
`
	path := filepath.Join(t.TempDir(), "sensor.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if c.Device != "socket://localhost:2101" || c.Protocol != "legacy" {
		t.Errorf("device/protocol = %q/%q", c.Device, c.Protocol)
	}
	if c.CommandTimeout != 250*time.Millisecond || c.DataTimeout != 5*time.Minute {
		t.Errorf("timeouts = %v/%v", c.CommandTimeout, c.DataTimeout)
	}
	if !c.DisableCalibration {
		t.Errorf("DisableCalibration = false")
	}
	want := Sweep{StartHz: 470000000, StopHz: 790000000, StepHz: 1000000, ConfigName: "UHF", Average: 1}
	if c.Sweep != want {
		t.Errorf("Sweep = %+v, want %+v", c.Sweep, want)
	}
	if c.VizServer.Port != 8080 || c.VizServer.UpdateInterval != 500*time.Millisecond {
		t.Errorf("VizServer = %+v", c.VizServer)
	}
	if c.InfluxDB.Bucket != "spectrum" {
		t.Errorf("InfluxDB = %+v", c.InfluxDB)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"no device", "mode: list\n", "must specify device"},
		{"bad protocol", "device: x\nprotocol: binary\n", "unknown protocol"},
		{"bad mode", "device: x\nmode: scan\n", "unknown mode"},
		{"empty band", "device: x\nmode: sweep\n", "invalid sweep band"},
		{"legacy sampling", "device: x\nprotocol: legacy\nmode: sample\nsample:\n  frequency_hz: 1000\n", "not supported"},
		{"no sample freq", "device: x\nmode: baseband\n", "sample frequency"},
		{"negative records", "device: x\nmax_records: -1\n", "max_records"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Parse() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}
