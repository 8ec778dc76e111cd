package spectrumsensor

import "fmt"

// SweepConfig is an acquisition plan over the channels
// StartCh, StartCh+StepCh, ... < StopCh of a DeviceConfig.
type SweepConfig struct {
	Config *DeviceConfig

	StartCh int
	StopCh  int
	StepCh  int
	// NSamples is the number of hardware samples averaged per data point
	// when sweeping, or the number of samples per record when sampling.
	NSamples int

	// StopHz is the frequency of the last channel actually swept, which is
	// not StopCh when the range is not a whole number of steps.
	StartHz int
	StopHz  int
	StepHz  int

	NumChannels int
}

func NewSweepConfig(config *DeviceConfig, startCh, stopCh, stepCh, nsamples int) (*SweepConfig, error) {
	switch {
	case startCh < 0 || startCh >= config.NumChannels:
		return nil, fmt.Errorf("start channel %d not in [0, %d): %w", startCh, config.NumChannels, ErrOutOfRange)
	case stopCh < 0 || stopCh > config.NumChannels:
		return nil, fmt.Errorf("stop channel %d not in [0, %d]: %w", stopCh, config.NumChannels, ErrOutOfRange)
	case stepCh < 1:
		return nil, fmt.Errorf("channel step %d < 1: %w", stepCh, ErrOutOfRange)
	case nsamples < 1:
		return nil, fmt.Errorf("sample count %d < 1: %w", nsamples, ErrOutOfRange)
	}

	sc := &SweepConfig{
		Config:   config,
		StartCh:  startCh,
		StopCh:   stopCh,
		StepCh:   stepCh,
		NSamples: nsamples,
		StepHz:   config.SpacingHz * stepCh,
	}

	if stopCh > startCh {
		sc.NumChannels = (stopCh - startCh + stepCh - 1) / stepCh
	}

	lastCh := startCh
	if sc.NumChannels > 0 {
		lastCh = stopCh - (stopCh-startCh-1)%stepCh - 1
	}

	sc.StartHz = config.chToHz(startCh)
	sc.StopHz = config.chToHz(lastCh)

	return sc, nil
}

// Channels returns an iterator over the swept channel indices. Every call
// starts a fresh iteration.
func (sc *SweepConfig) Channels() *ChannelIterator {
	return &ChannelIterator{sc: sc, next: sc.StartCh}
}

// ChList returns the swept channel indices.
func (sc *SweepConfig) ChList() []int {
	ret := make([]int, 0, sc.NumChannels)
	for it := sc.Channels(); it.Next(); {
		ret = append(ret, it.Channel())
	}
	return ret
}

// HzList returns the frequencies of the swept channels.
func (sc *SweepConfig) HzList() []int {
	ret := make([]int, 0, sc.NumChannels)
	for it := sc.Channels(); it.Next(); {
		ret = append(ret, sc.Config.chToHz(it.Channel()))
	}
	return ret
}

func (sc *SweepConfig) selectCommand() string {
	return fmt.Sprintf("select channel %d:%d:%d config %d,%d",
		sc.StartCh, sc.StepCh, sc.StopCh, sc.Config.Device.ID, sc.Config.ID)
}

type ChannelIterator struct {
	sc   *SweepConfig
	next int
	cur  int
}

func (it *ChannelIterator) Next() bool {
	if it.next >= it.sc.StopCh {
		return false
	}
	it.cur = it.next
	it.next += it.sc.StepCh
	return true
}

func (it *ChannelIterator) Channel() int {
	return it.cur
}

// SampleConfig is a single channel SweepConfig used for continuous
// sampling.
type SampleConfig struct {
	*SweepConfig
}

func NewSampleConfig(config *DeviceConfig, ch, nsamples int) (*SampleConfig, error) {
	sc, err := NewSweepConfig(config, ch, ch+1, 1, nsamples)
	if err != nil {
		return nil, err
	}
	return &SampleConfig{SweepConfig: sc}, nil
}

func (sc *SampleConfig) Channel() int {
	return sc.StartCh
}
