package spectrumsensor

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sensorlab/vesna-spectrum-sensor/pkg/spectrumsensor/transport"
	"github.com/sensorlab/vesna-spectrum-sensor/pkg/util"
)

const (
	DefaultCommandTimeout = 500 * time.Millisecond
	DefaultDataTimeout    = 2 * time.Minute

	// consecutive empty reads tolerated while waiting for "ok"
	maxAckWaitReads = 20

	ackLine     = "ok"
	errorPrefix = "error:"
)

// Protocol selects the command set and frame format spoken by the firmware.
type Protocol int

const (
	// ProtocolTagged is the current firmware: sweep-on/sample-on and
	// "TS .. CH .. DS .. DE" frames.
	ProtocolTagged Protocol = iota
	// ProtocolLegacy is the older firmware with report-on/report-off and
	// untagged channel data.
	ProtocolLegacy
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTagged:
		return "tagged"
	case ProtocolLegacy:
		return "legacy"
	}
	return fmt.Sprintf("Protocol(%d)", int(p))
}

func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tagged":
		return ProtocolTagged, nil
	case "legacy":
		return ProtocolLegacy, nil
	}
	return 0, fmt.Errorf("unknown protocol %q", s)
}

// State is the acquisition state of the device as tracked by the driver.
type State int

const (
	StateIdle State = iota
	StateConfigured
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Options struct {
	Protocol       Protocol
	CommandTimeout time.Duration
	DataTimeout    time.Duration
	// DisableCalibration sends calib-off after every channel selection.
	DisableCalibration bool
}

// SpectrumSensor drives a sensor node over a Transport. It is not safe for
// concurrent use.
type SpectrumSensor struct {
	transport transport.Transport
	opts      Options
	logger    zerolog.Logger
	writeAPI  api.WriteAPI
	state     State
}

type SensorOption func(s *SpectrumSensor) error

func WithLogger(logger zerolog.Logger) SensorOption {
	return func(s *SpectrumSensor) error {
		s.logger = logger
		return nil
	}
}

func WithInfluxDB(writeAPI api.WriteAPI) SensorOption {
	return func(s *SpectrumSensor) error {
		s.writeAPI = writeAPI
		return nil
	}
}

// Open connects to the sensor at addr, see transport.Open.
func Open(addr string, baudRate int, options Options, opts ...SensorOption) (*SpectrumSensor, error) {
	t, err := transport.Open(addr, baudRate)
	if err != nil {
		return nil, err
	}
	s, err := NewSpectrumSensor(t, options, opts...)
	if err != nil {
		t.Close()
		return nil, err
	}
	return s, nil
}

// NewSpectrumSensor takes ownership of t and stops any acquisition the
// device may still be running from an earlier session.
func NewSpectrumSensor(t transport.Transport, options Options, opts ...SensorOption) (*SpectrumSensor, error) {
	if options.CommandTimeout == 0 {
		options.CommandTimeout = DefaultCommandTimeout
	}
	if options.DataTimeout == 0 {
		options.DataTimeout = DefaultDataTimeout
	}

	s := &SpectrumSensor{
		transport: t,
		opts:      options,
		logger:    log.Logger,
		writeAPI:  &util.MockWriteAPI{}, // overwritten with option
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if err := t.SetReadTimeout(s.opts.CommandTimeout); err != nil {
		return nil, fmt.Errorf("setting command timeout: %w", err)
	}

	var stops []string
	if s.opts.Protocol == ProtocolLegacy {
		stops = []string{"report-off"}
	} else {
		stops = []string{"sweep-off", "sample-off"}
	}
	for _, cmd := range stops {
		if err := s.command(cmd); err != nil {
			return nil, err
		}
	}

	s.logger.Debug().Str("protocol", s.opts.Protocol.String()).Msg("sensor reset to idle")

	return s, nil
}

func (s *SpectrumSensor) Close() error {
	return s.transport.Close()
}

func (s *SpectrumSensor) State() State {
	return s.state
}

func (s *SpectrumSensor) write(cmd string) error {
	s.logger.Debug().Str("command", cmd).Msg("sending")
	if _, err := s.transport.Write([]byte(cmd + "\n")); err != nil {
		return fmt.Errorf("writing %q: %w", cmd, err)
	}
	return nil
}

func (s *SpectrumSensor) readLine() (string, error) {
	line, err := s.transport.ReadLine()
	if err != nil {
		return "", fmt.Errorf("reading: %w", err)
	}
	return line, nil
}

// waitForOK reads until the device acknowledges cmd. Lines other than the
// acknowledgment or an error are ignored.
func (s *SpectrumSensor) waitForOK(cmd string) error {
	empty := 0
	for {
		line, err := s.readLine()
		if err != nil {
			return err
		}
		if line == "" {
			empty++
			if empty >= maxAckWaitReads {
				return fmt.Errorf("command %q: %w", cmd, ErrNoAck)
			}
			continue
		}
		empty = 0

		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == ackLine:
			return nil
		case strings.HasPrefix(line, errorPrefix):
			return &ProtocolError{Command: cmd, Message: line}
		default:
			s.logger.Debug().Str("command", cmd).Str("line", line).Msg("ignoring line while waiting for ok")
		}
	}
}

func (s *SpectrumSensor) command(cmd string) error {
	if err := s.write(cmd); err != nil {
		return err
	}
	return s.waitForOK(cmd)
}

// readAll collects lines until a read times out.
func (s *SpectrumSensor) readAll() ([]string, error) {
	var lines []string
	for {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			return lines, nil
		}
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
}

// drain discards lines left over from an earlier exchange, such as the
// overflow count printed after a task stops.
func (s *SpectrumSensor) drain() error {
	lines, err := s.readAll()
	if err != nil {
		return err
	}
	for _, line := range lines {
		s.logger.Debug().Str("line", line).Msg("discarding stale line")
	}
	return nil
}

func (s *SpectrumSensor) checkIdle() error {
	if s.state == StateStreaming {
		return ErrBusy
	}
	return nil
}

// Discover queries the devices and channel configs of the sensor node.
func (s *SpectrumSensor) Discover() (*ConfigList, error) {
	if err := s.checkIdle(); err != nil {
		return nil, err
	}

	var list *ConfigList
	var err error
	elapsed := util.TimeOperationMicroseconds(func() {
		list, err = s.discover()
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("devices", len(list.Devices)).
		Int("configs", len(list.Configs)).
		Int64("duration_us", elapsed).
		Msg("discovered configs")

	return list, nil
}

func (s *SpectrumSensor) discover() (*ConfigList, error) {
	if err := s.write("list"); err != nil {
		return nil, err
	}

	p := newConfigListParser(s.logger)
	for {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		if err := p.parseLine(strings.TrimRight(line, "\r\n")); err != nil {
			return nil, err
		}
	}
	return p.finish()
}

// FirmwareVersion returns the firmware version string. Firmware that does
// not know the version command yields an empty string and no error.
func (s *SpectrumSensor) FirmwareVersion() (string, error) {
	if err := s.checkIdle(); err != nil {
		return "", err
	}
	if err := s.drain(); err != nil {
		return "", err
	}
	if err := s.write("version"); err != nil {
		return "", err
	}
	line, err := s.readLine()
	if err != nil {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if strings.HasPrefix(line, errorPrefix+" unknown command") {
		return "", nil
	}
	if strings.HasPrefix(line, errorPrefix) {
		return "", &ProtocolError{Command: "version", Message: line}
	}
	return line, nil
}

// Status selects the first channel of config and returns the device's
// status report.
func (s *SpectrumSensor) Status(config *DeviceConfig) ([]string, error) {
	if err := s.checkIdle(); err != nil {
		return nil, err
	}
	sc, err := NewSweepConfig(config, 0, 1, 1, 1)
	if err != nil {
		return nil, err
	}
	defer s.setIdle()
	if err := s.selectChannel(sc, ModeSweep); err != nil {
		return nil, err
	}
	if err := s.write("status"); err != nil {
		return nil, err
	}
	return s.readAll()
}

// selectChannel configures the device for an acquisition of sc.
func (s *SpectrumSensor) selectChannel(sc *SweepConfig, mode Mode) error {
	if err := s.command(sc.selectCommand()); err != nil {
		s.state = StateIdle
		return err
	}
	s.state = StateConfigured

	if s.opts.DisableCalibration {
		if err := s.command("calib-off"); err != nil {
			s.state = StateIdle
			return err
		}
	}

	if s.opts.Protocol == ProtocolTagged {
		var cmd string
		if mode == ModeSample {
			cmd = fmt.Sprintf("samples %d", sc.NSamples)
		} else {
			cmd = fmt.Sprintf("average %d", sc.NSamples)
		}
		if err := s.command(cmd); err != nil {
			s.state = StateIdle
			return err
		}
	}

	return nil
}

func (s *SpectrumSensor) setIdle() {
	s.state = StateIdle
}

// Baseband captures one block of raw samples on the channel of sc.
func (s *SpectrumSensor) Baseband(sc *SampleConfig) ([]int, error) {
	if err := s.checkIdle(); err != nil {
		return nil, err
	}
	defer s.setIdle()
	if err := s.selectChannel(sc.SweepConfig, ModeSample); err != nil {
		return nil, err
	}

	if err := s.transport.SetReadTimeout(transport.NoTimeout); err != nil {
		return nil, err
	}
	data, captureErr := s.captureBaseband()
	if err := s.transport.SetReadTimeout(s.opts.CommandTimeout); err != nil {
		return nil, err
	}

	if captureErr != nil && !errors.Is(captureErr, errMalformed) {
		return nil, captureErr
	}

	// the device acknowledges the capture even when the data line is
	// corrupted
	if err := s.waitForOK("baseband"); err != nil {
		return nil, errors.Join(captureErr, err)
	}
	if captureErr != nil {
		return nil, captureErr
	}
	return data, nil
}

func (s *SpectrumSensor) captureBaseband() ([]int, error) {
	if err := s.write("baseband"); err != nil {
		return nil, err
	}
	line, err := s.readLine()
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(line, errorPrefix) {
		return nil, &ProtocolError{Command: "baseband", Message: strings.TrimRight(line, "\r\n")}
	}
	return parseBaseband(line)
}
