package spectrumsensor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"

	"github.com/sensorlab/vesna-spectrum-sensor/pkg/util"
)

// Mode is the kind of continuous acquisition.
type Mode int

const (
	ModeSweep Mode = iota
	ModeSample
)

func (m Mode) String() string {
	switch m {
	case ModeSweep:
		return "sweep"
	case ModeSample:
		return "sample"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (s *SpectrumSensor) modeCommands(mode Mode) (on, off string) {
	switch {
	case s.opts.Protocol == ProtocolLegacy:
		return "report-on", "report-off"
	case mode == ModeSample:
		return "sample-on", "sample-off"
	default:
		return "sweep-on", "sweep-off"
	}
}

func (s *SpectrumSensor) frameShape(sc *SweepConfig, mode Mode) frameShape {
	if s.opts.Protocol == ProtocolLegacy {
		return frameShape{layout: layoutLegacy, samples: sc.NumChannels}
	}
	if mode == ModeSample {
		return frameShape{layout: layoutTagged, samples: sc.NSamples}
	}
	return frameShape{layout: layoutTagged, samples: sc.NumChannels}
}

// Stream is a running acquisition. Records are pulled with Next; Close
// stops the acquisition on the device and must always be called.
//
//	st, err := sensor.Stream(ctx, sc, spectrumsensor.ModeSweep)
//	if err != nil { ... }
//	defer st.Close()
//	for st.Next() {
//		rec := st.Record()
//	}
//	if err := st.Err(); err != nil { ... }
type Stream struct {
	s      *SpectrumSensor
	ctx    context.Context
	sc     *SweepConfig
	mode   Mode
	shape  frameShape
	offCmd string

	rec    *TimestampedData
	err    error
	done   bool
	closed bool

	start     time.Time
	frames    int
	malformed int
}

// Stream selects the channels of sc and starts an acquisition.
func (s *SpectrumSensor) Stream(ctx context.Context, sc *SweepConfig, mode Mode) (*Stream, error) {
	if err := s.checkIdle(); err != nil {
		return nil, err
	}
	if mode == ModeSample {
		if s.opts.Protocol == ProtocolLegacy {
			return nil, fmt.Errorf("sampling not supported by %s protocol", s.opts.Protocol)
		}
		if sc.NumChannels != 1 {
			return nil, fmt.Errorf("sampling %d channels: %w", sc.NumChannels, ErrOutOfRange)
		}
	}

	if err := s.selectChannel(sc, mode); err != nil {
		return nil, err
	}

	on, off := s.modeCommands(mode)
	if err := s.write(on); err != nil {
		s.state = StateIdle
		return nil, err
	}
	s.state = StateStreaming

	st := &Stream{
		s:      s,
		ctx:    ctx,
		sc:     sc,
		mode:   mode,
		shape:  s.frameShape(sc, mode),
		offCmd: off,
		start:  time.Now(),
	}

	if err := s.transport.SetReadTimeout(s.opts.DataTimeout); err != nil {
		st.err = err
		if cerr := st.Close(); cerr != nil {
			s.logger.Error().Err(cerr).Msg("failed to stop acquisition")
		}
		return nil, err
	}

	s.logger.Info().
		Str("mode", mode.String()).
		Str("start", util.HzToString(sc.StartHz)).
		Str("stop", util.HzToString(sc.StopHz)).
		Int("channels", sc.NumChannels).
		Msg("acquisition started")

	return st, nil
}

func (st *Stream) SweepConfig() *SweepConfig {
	return st.sc
}

// Next reads until the next well-formed record. It returns false when the
// device goes quiet for the data timeout, the context is done, the device
// reports an error or the transport fails; Err tells these apart.
func (st *Stream) Next() bool {
	if st.done || st.closed {
		return false
	}

	for {
		if err := st.ctx.Err(); err != nil {
			return st.finish(err)
		}

		line, err := st.s.readLine()
		if err != nil {
			return st.finish(err)
		}
		if line == "" {
			return st.finish(nil)
		}

		trimmed := strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(trimmed, errorPrefix) {
			return st.finish(&ProtocolError{Message: trimmed})
		}

		rec, err := st.shape.parse(trimmed)
		if err != nil {
			st.malformed++
			st.s.logger.Warn().Err(err).Str("line", trimmed).Msg("ignoring corrupted line")
			continue
		}

		st.rec = rec
		st.frames++

		go st.s.writeAPI.WritePoint(influxdb2.NewPoint("acquisition.frame",
			map[string]string{
				"mode":   st.mode.String(),
				"config": st.sc.Config.Name,
			},
			map[string]interface{}{
				"timestamp": rec.Timestamp,
				"samples":   len(rec.Data),
			}, time.Now()))

		return true
	}
}

func (st *Stream) finish(err error) bool {
	st.done = true
	st.rec = nil
	st.err = err
	return false
}

// Record returns the record read by the last successful Next.
func (st *Stream) Record() *TimestampedData {
	return st.rec
}

// Err returns the error that ended the stream, if any. A stream that ended
// because the device went quiet has no error.
func (st *Stream) Err() error {
	return st.err
}

// Close stops the acquisition and returns the device to idle. It is safe to
// call more than once.
func (st *Stream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	st.rec = nil
	s := st.s

	var errs []error
	if err := s.transport.SetReadTimeout(s.opts.CommandTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := s.command(st.offCmd); err != nil {
		errs = append(errs, err)
	} else if err := s.drain(); err != nil {
		errs = append(errs, err)
	}
	s.state = StateIdle

	elapsed := time.Since(st.start)

	go s.writeAPI.WritePoint(influxdb2.NewPoint("acquisition.run",
		map[string]string{
			"mode":   st.mode.String(),
			"config": st.sc.Config.Name,
		},
		map[string]interface{}{
			"frames":    st.frames,
			"malformed": st.malformed,
			"duration":  elapsed.Microseconds(),
		}, st.start))

	s.logger.Info().
		Str("mode", st.mode.String()).
		Int("frames", st.frames).
		Int("malformed", st.malformed).
		Dur("duration", elapsed).
		Msg("acquisition stopped")

	return errors.Join(errs...)
}

// RecordFunc receives each record of an acquisition and returns false to
// stop it.
type RecordFunc func(sc *SweepConfig, rec *TimestampedData) bool

// Run streams an acquisition of sc in the given mode, passing records to cb
// until it returns false or the stream ends. The device is always returned
// to idle before Run returns.
func (s *SpectrumSensor) Run(ctx context.Context, sc *SweepConfig, mode Mode, cb RecordFunc) (err error) {
	st, err := s.Stream(ctx, sc, mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := st.Close(); err == nil {
			err = cerr
		}
	}()

	for st.Next() {
		if !cb(sc, st.Record()) {
			break
		}
	}
	return st.Err()
}

func (s *SpectrumSensor) SweepRun(ctx context.Context, sc *SweepConfig, cb RecordFunc) error {
	return s.Run(ctx, sc, ModeSweep, cb)
}

func (s *SpectrumSensor) SampleRun(ctx context.Context, sc *SampleConfig, cb RecordFunc) error {
	return s.Run(ctx, sc.SweepConfig, ModeSample, cb)
}
