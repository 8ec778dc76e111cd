package spectrumsensor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

var (
	deviceRe   = regexp.MustCompile(`^device ([0-9]+): (.*)`)
	samplingRe = regexp.MustCompile(`^  device supports channel sampling`)
	configRe   = regexp.MustCompile(`^  channel config ([0-9]+),([0-9]+): (.*)`)
	attrRe     = regexp.MustCompile(`^    ([a-z]+): (-?[0-9]+)`)
)

// ConfigList is the catalog of devices and channel configs reported by a
// sensor node, in the order they were reported.
type ConfigList struct {
	Devices []*Device
	Configs []*DeviceConfig
}

// Config returns the config with the given ids or nil.
func (l *ConfigList) Config(deviceID, configID int) *DeviceConfig {
	for _, c := range l.Configs {
		if c.ID == configID && c.Device.ID == deviceID {
			return c
		}
	}
	return nil
}

// BestConfig returns the fastest config that covers [startHz, stopHz] and
// whose name contains name. Configs reporting equal sweep time are ranked
// by the order they were reported in.
func (l *ConfigList) BestConfig(startHz, stopHz int, name string) *DeviceConfig {
	var best *DeviceConfig
	for _, c := range l.Configs {
		if name != "" && !strings.Contains(c.Name, name) {
			continue
		}
		if !c.Covers(startHz, stopHz) {
			continue
		}
		if best == nil || c.SweepTime < best.SweepTime {
			best = c
		}
	}
	return best
}

// SweepConfig returns a sweep over [startHz, stopHz] using BestConfig.
func (l *ConfigList) SweepConfig(startHz, stopHz, stepHz int, name string) (*SweepConfig, error) {
	c := l.BestConfig(startHz, stopHz, name)
	if c == nil {
		return nil, fmt.Errorf("band %d - %d Hz (name %q): %w", startHz, stopHz, name, ErrNoConfig)
	}
	return c.SweepConfig(startHz, stopHz, stepHz)
}

type configListParser struct {
	list   *ConfigList
	device *Device
	config *DeviceConfig
	logger zerolog.Logger
}

func newConfigListParser(logger zerolog.Logger) *configListParser {
	return &configListParser{list: &ConfigList{}, logger: logger}
}

func (p *configListParser) parseLine(line string) error {
	if g := deviceRe.FindStringSubmatch(line); g != nil {
		id, err := strconv.Atoi(g[1])
		if err != nil {
			return &ProtocolError{Command: "list", Message: line}
		}
		p.device = &Device{ID: id, Name: g[2]}
		p.config = nil
		p.list.Devices = append(p.list.Devices, p.device)
		return nil
	}

	if samplingRe.MatchString(line) {
		if p.device != nil {
			p.device.SupportsSampling = true
		}
		return nil
	}

	if g := configRe.FindStringSubmatch(line); g != nil {
		if p.device == nil {
			p.logger.Warn().Str("line", line).Msg("channel config without device")
			return nil
		}
		devID, err := strconv.Atoi(g[1])
		if err != nil {
			return &ProtocolError{Command: "list", Message: line}
		}
		if devID != p.device.ID {
			p.logger.Warn().Int("device_id", p.device.ID).Str("line", line).Msg("channel config device id mismatch")
		}
		id, err := strconv.Atoi(g[2])
		if err != nil {
			return &ProtocolError{Command: "list", Message: line}
		}
		p.config = &DeviceConfig{ID: id, Name: g[3], Device: p.device}
		p.list.Configs = append(p.list.Configs, p.config)
		return nil
	}

	if g := attrRe.FindStringSubmatch(line); g != nil {
		if p.config == nil {
			return nil
		}
		value, err := strconv.Atoi(g[2])
		if err != nil || value < 0 {
			return &ProtocolError{Command: "list", Message: line}
		}
		p.config.set(g[1], value)
		return nil
	}

	return nil
}

func (p *configListParser) finish() (*ConfigList, error) {
	for _, c := range p.list.Configs {
		if err := c.validate(); err != nil {
			return nil, err
		}
	}
	return p.list, nil
}

func (c *DeviceConfig) set(key string, value int) {
	switch key {
	case "base":
		c.BaseHz = value
	case "spacing":
		c.SpacingHz = value
	case "bw":
		c.BandwidthHz = value
	case "num":
		c.NumChannels = value
	case "time":
		c.SweepTime = value
	default:
		if c.Extra == nil {
			c.Extra = make(map[string]int)
		}
		c.Extra[key] = value
	}
}

// ParseConfigList parses the reply to the list command.
func ParseConfigList(lines []string, logger zerolog.Logger) (*ConfigList, error) {
	p := newConfigListParser(logger)
	for _, line := range lines {
		if err := p.parseLine(line); err != nil {
			return nil, err
		}
	}
	return p.finish()
}
