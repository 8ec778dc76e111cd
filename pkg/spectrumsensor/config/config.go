package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	ModeList     = "list"
	ModeStatus   = "status"
	ModeVersion  = "version"
	ModeSweep    = "sweep"
	ModeSample   = "sample"
	ModeBaseband = "baseband"
)

type Config struct {
	Device             string        `yaml:"device"`
	BaudRate           int           `yaml:"baud_rate"`
	Protocol           string        `yaml:"protocol"`
	CommandTimeout     time.Duration `yaml:"command_timeout"`
	DataTimeout        time.Duration `yaml:"data_timeout"`
	DisableCalibration bool          `yaml:"disable_calibration"`
	LogLevel           string        `yaml:"log_level"`

	Mode       string `yaml:"mode"`
	MaxRecords int    `yaml:"max_records"`
	Sweep      Sweep  `yaml:"sweep"`
	Sample     Sample `yaml:"sample"`

	VizServer struct {
		Port           int           `yaml:"port"`
		UpdateInterval time.Duration `yaml:"update_interval"`
	} `yaml:"viz_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type Sweep struct {
	StartHz    int    `yaml:"start_hz"`
	StopHz     int    `yaml:"stop_hz"`
	StepHz     int    `yaml:"step_hz"`
	ConfigName string `yaml:"config_name"`
	Average    int    `yaml:"average"`
}

// Sample picks a channel on a fixed device config. Baseband captures use
// the same settings.
type Sample struct {
	DeviceID    int `yaml:"device_id"`
	ConfigID    int `yaml:"config_id"`
	FrequencyHz int `yaml:"frequency_hz"`
	NSamples    int `yaml:"nsamples"`
}

func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(contents)
}

func Parse(contents []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return nil, err
	}
	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.BaudRate == 0 {
		c.BaudRate = 115200
	}
	if c.Protocol == "" {
		c.Protocol = "tagged"
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 500 * time.Millisecond
	}
	if c.DataTimeout == 0 {
		c.DataTimeout = 2 * time.Minute
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Mode == "" {
		c.Mode = ModeList
	}
	if c.Sweep.Average == 0 {
		c.Sweep.Average = 1
	}
	if c.Sample.NSamples == 0 {
		c.Sample.NSamples = 1
	}
	if c.VizServer.UpdateInterval == 0 {
		c.VizServer.UpdateInterval = time.Second
	}
}

func (c *Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("must specify device")
	}
	switch c.Protocol {
	case "tagged", "legacy":
	default:
		return fmt.Errorf("unknown protocol %q", c.Protocol)
	}

	switch c.Mode {
	case ModeList, ModeStatus, ModeVersion:
	case ModeSweep:
		if c.Sweep.StopHz < c.Sweep.StartHz || c.Sweep.StartHz <= 0 {
			return fmt.Errorf("invalid sweep band %d - %d Hz", c.Sweep.StartHz, c.Sweep.StopHz)
		}
		if c.Sweep.Average < 1 {
			return fmt.Errorf("sweep average must be positive")
		}
	case ModeSample, ModeBaseband:
		if c.Protocol == "legacy" {
			return fmt.Errorf("mode %s not supported by legacy protocol", c.Mode)
		}
		if c.Sample.FrequencyHz <= 0 {
			return fmt.Errorf("must specify sample frequency")
		}
		if c.Sample.NSamples < 1 {
			return fmt.Errorf("sample nsamples must be positive")
		}
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	if c.MaxRecords < 0 {
		return fmt.Errorf("max_records must not be negative")
	}
	return nil
}
