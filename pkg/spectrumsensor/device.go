package spectrumsensor

import (
	"fmt"
	"math"
)

// Device is one physical sensing unit attached to the sensor node.
type Device struct {
	ID               int
	Name             string
	SupportsSampling bool
}

// DeviceConfig is a hardware channelization scheme of a Device. Channel ch
// is valid iff 0 <= ch < NumChannels and maps to BaseHz + SpacingHz*ch.
type DeviceConfig struct {
	ID     int
	Name   string
	Device *Device

	BaseHz      int
	SpacingHz   int
	BandwidthHz int
	NumChannels int
	// SweepTime is the time the device reports for one channel, in ms.
	SweepTime int

	// Extra holds attributes the device reported that have no field above.
	Extra map[string]int
}

func (c *DeviceConfig) validate() error {
	if c.NumChannels <= 0 {
		return fmt.Errorf("%w %d,%d: num = %d", ErrInvalidConfig, c.Device.ID, c.ID, c.NumChannels)
	}
	if c.SpacingHz <= 0 {
		return fmt.Errorf("%w %d,%d: spacing = %d", ErrInvalidConfig, c.Device.ID, c.ID, c.SpacingHz)
	}
	return nil
}

func (c *DeviceConfig) chToHz(ch int) int {
	return c.BaseHz + c.SpacingHz*ch
}

func (c *DeviceConfig) roundCh(hz int) int {
	return int(math.Round(float64(hz-c.BaseHz) / float64(c.SpacingHz)))
}

func (c *DeviceConfig) stepCh(stepHz int) int {
	step := int(math.Round(float64(stepHz) / float64(c.SpacingHz)))
	if step < 1 {
		return 1
	}
	return step
}

// ChToHz returns the central frequency of channel ch.
func (c *DeviceConfig) ChToHz(ch int) (int, error) {
	if ch < 0 || ch >= c.NumChannels {
		return 0, fmt.Errorf("channel %d not in [0, %d): %w", ch, c.NumChannels, ErrOutOfRange)
	}
	return c.chToHz(ch), nil
}

// HzToCh returns the channel nearest to hz.
func (c *DeviceConfig) HzToCh(hz int) (int, error) {
	if !c.Covers(hz, hz) {
		return 0, fmt.Errorf("%d Hz not in [%d, %d] Hz: %w", hz, c.StartHz(), c.StopHz(), ErrOutOfRange)
	}
	return c.roundCh(hz), nil
}

// StartHz is the frequency of the first channel.
func (c *DeviceConfig) StartHz() int {
	return c.chToHz(0)
}

// StopHz is the frequency of the last channel.
func (c *DeviceConfig) StopHz() int {
	return c.chToHz(c.NumChannels - 1)
}

// Covers reports whether the band [startHz, stopHz] lies within this config.
func (c *DeviceConfig) Covers(startHz, stopHz int) bool {
	return startHz >= c.StartHz() && stopHz <= c.StopHz()
}

// FullSweepConfig returns a sweep over every channel. A stepHz of 0 steps
// one channel at a time.
func (c *DeviceConfig) FullSweepConfig(stepHz int) (*SweepConfig, error) {
	step := 1
	if stepHz > 0 {
		step = c.stepCh(stepHz)
	}
	return NewSweepConfig(c, 0, c.NumChannels, step, 1)
}

// SweepConfig returns a sweep over [startHz, stopHz] with the channel step
// closest to stepHz.
func (c *DeviceConfig) SweepConfig(startHz, stopHz, stepHz int) (*SweepConfig, error) {
	if !c.Covers(startHz, stopHz) {
		return nil, fmt.Errorf("band %d - %d Hz not covered by %s: %w", startHz, stopHz, c, ErrOutOfRange)
	}

	// stop channel is one past the last channel to be swept
	startCh := c.roundCh(startHz)
	stepCh := c.stepCh(stepHz)
	stopCh := c.roundCh(stopHz) + 1

	return NewSweepConfig(c, startCh, stopCh, stepCh, 1)
}

// SampleConfig returns a config for continuous sampling of the channel
// nearest to hz, nsamples per record.
func (c *DeviceConfig) SampleConfig(hz, nsamples int) (*SampleConfig, error) {
	ch, err := c.HzToCh(hz)
	if err != nil {
		return nil, err
	}
	return NewSampleConfig(c, ch, nsamples)
}

func (c *DeviceConfig) String() string {
	devID := -1
	if c.Device != nil {
		devID = c.Device.ID
	}
	return fmt.Sprintf("channel config %d,%d: %10d - %10d Hz", devID, c.ID, c.StartHz(), c.StopHz())
}
