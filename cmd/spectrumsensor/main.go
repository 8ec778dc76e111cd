package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/sensorlab/vesna-spectrum-sensor/pkg/dsp/viz"
	"github.com/sensorlab/vesna-spectrum-sensor/pkg/spectrumsensor"
	"github.com/sensorlab/vesna-spectrum-sensor/pkg/spectrumsensor/config"
	"github.com/sensorlab/vesna-spectrum-sensor/pkg/util"
)

const vizBucket = "sensor"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "sensor.yaml", "YAML config file")
	mode := flag.String("mode", "", "override the mode set in the config file")

	flag.Parse()

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", *configFile).Msg("error loading config file")
	}
	if *mode != "" {
		opts.Mode = *mode
		if err := opts.Validate(); err != nil {
			log.Fatal().Err(err).Msg("invalid mode")
		}
	}

	level, err := zerolog.ParseLevel(opts.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", opts.LogLevel).Msg("unknown log level")
	}
	log.Logger = log.Logger.Level(level)

	protocol, err := spectrumsensor.ParseProtocol(opts.Protocol)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid protocol")
	}

	sensorOpts := []spectrumsensor.SensorOption{spectrumsensor.WithLogger(log.Logger)}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, "")
		defer client.Close()
		sensorOpts = append(sensorOpts, spectrumsensor.WithInfluxDB(
			client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket),
		))
	}

	log.Info().Str("device", opts.Device).Str("protocol", protocol.String()).Msg("opening sensor...")
	sensor, err := spectrumsensor.Open(opts.Device, opts.BaudRate, spectrumsensor.Options{
		Protocol:           protocol,
		CommandTimeout:     opts.CommandTimeout,
		DataTimeout:        opts.DataTimeout,
		DisableCalibration: opts.DisableCalibration,
	}, sensorOpts...)
	if err != nil {
		log.Fatal().Str("device", opts.Device).Err(err).Msg("failed to open sensor")
	}
	defer sensor.Close()

	var vizServer *viz.Server
	if opts.VizServer.Port > 0 {
		vizServer = viz.NewServer(opts.VizServer.Port, opts.VizServer.UpdateInterval)
		vizServer.SetLogger(log.Logger)
	}

	eg, ctx := errgroup.WithContext(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
			log.Info().Msg("interrupted, stopping acquisition")
			cancel()
		case <-ctx.Done():
		}

		if vizServer != nil {
			shutdownCtx, done := context.WithTimeout(context.Background(), time.Second)
			defer done()
			return vizServer.Stop(shutdownCtx)
		}
		return nil
	})

	if vizServer != nil {
		eg.Go(func() error {
			return vizServer.Run(ctx)
		})
	}

	eg.Go(func() error {
		defer cancel()
		r := &runner{sensor: sensor, opts: opts, viz: vizServer}
		return r.run(ctx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("exited program")
	}
}

type runner struct {
	sensor *spectrumsensor.SpectrumSensor
	opts   *config.Config
	viz    *viz.Server
}

func (r *runner) register(p viz.Producer) {
	if r.viz != nil {
		r.viz.Register(vizBucket, p)
	}
}

func (r *runner) run(ctx context.Context) error {
	switch r.opts.Mode {
	case config.ModeVersion:
		return r.version()
	case config.ModeList:
		return r.list()
	case config.ModeStatus:
		return r.status()
	case config.ModeSweep:
		return r.sweep(ctx)
	case config.ModeSample:
		return r.sample(ctx)
	case config.ModeBaseband:
		return r.baseband(ctx)
	}
	return fmt.Errorf("unknown mode %q", r.opts.Mode)
}

func (r *runner) version() error {
	v, err := r.sensor.FirmwareVersion()
	if err != nil {
		return err
	}
	if v == "" {
		v = "unknown"
	}
	fmt.Println(v)
	return nil
}

func (r *runner) list() error {
	l, err := r.sensor.Discover()
	if err != nil {
		return err
	}

	for _, d := range l.Devices {
		sampling := ""
		if d.SupportsSampling {
			sampling = " (supports channel sampling)"
		}
		fmt.Printf("device %d: %s%s\n", d.ID, d.Name, sampling)
		for _, c := range l.Configs {
			if c.Device != d {
				continue
			}
			fmt.Printf("  %s %s\n", c, c.Name)
			fmt.Printf("    %s - %s, %d channels, %d ms\n",
				util.HzToString(c.StartHz()), util.HzToString(c.StopHz()), c.NumChannels, c.SweepTime)
		}
	}

	if len(l.Configs) > 0 {
		edges := make([]int, 0, 2*len(l.Configs))
		for _, c := range l.Configs {
			edges = append(edges, c.StartHz(), c.StopHz())
		}
		low, high := util.FrequencyRange(edges...)
		fmt.Printf("coverage: %s - %s\n", util.HzToString(low), util.HzToString(high))
	}
	return nil
}

func (r *runner) deviceConfig() (*spectrumsensor.DeviceConfig, error) {
	l, err := r.sensor.Discover()
	if err != nil {
		return nil, err
	}
	c := l.Config(r.opts.Sample.DeviceID, r.opts.Sample.ConfigID)
	if c == nil {
		return nil, fmt.Errorf("channel config %d,%d: %w",
			r.opts.Sample.DeviceID, r.opts.Sample.ConfigID, spectrumsensor.ErrNoConfig)
	}
	return c, nil
}

func (r *runner) status() error {
	c, err := r.deviceConfig()
	if err != nil {
		return err
	}
	lines, err := r.sensor.Status(c)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Println(strings.TrimRight(line, "\r\n"))
	}
	return nil
}

// limit wraps cb so that acquisition stops after max records, or never when
// max is zero.
func limit(max int, cb spectrumsensor.RecordFunc) spectrumsensor.RecordFunc {
	n := 0
	return func(sc *spectrumsensor.SweepConfig, rec *spectrumsensor.TimestampedData) bool {
		n++
		if !cb(sc, rec) {
			return false
		}
		return max == 0 || n < max
	}
}

func printRecord(rec *spectrumsensor.TimestampedData) {
	var b strings.Builder
	fmt.Fprintf(&b, "%.3f", rec.Timestamp)
	if rec.Channel != nil {
		fmt.Fprintf(&b, " ch %d", *rec.Channel)
	}
	for _, v := range rec.Data {
		fmt.Fprintf(&b, " %.2f", v)
	}
	fmt.Println(b.String())
}

func (r *runner) sweep(ctx context.Context) error {
	l, err := r.sensor.Discover()
	if err != nil {
		return err
	}
	s := r.opts.Sweep
	sc, err := l.SweepConfig(s.StartHz, s.StopHz, s.StepHz, s.ConfigName)
	if err != nil {
		return err
	}
	sc.NSamples = s.Average

	log.Info().
		Str("config", sc.Config.Name).
		Str("start", util.HzToString(sc.StartHz)).
		Str("stop", util.HzToString(sc.StopHz)).
		Int("channels", sc.NumChannels).
		Msg("starting sweep")

	plotter := viz.NewSpectrumPlotter("sweep", sc.HzList())
	r.register(plotter)

	return r.sensor.SweepRun(ctx, sc, limit(r.opts.MaxRecords,
		func(sc *spectrumsensor.SweepConfig, rec *spectrumsensor.TimestampedData) bool {
			printRecord(rec)
			plotter.Update(rec.Data)
			return true
		}))
}

func (r *runner) sampleConfig() (*spectrumsensor.SampleConfig, error) {
	c, err := r.deviceConfig()
	if err != nil {
		return nil, err
	}
	return c.SampleConfig(r.opts.Sample.FrequencyHz, r.opts.Sample.NSamples)
}

func (r *runner) sample(ctx context.Context) error {
	sc, err := r.sampleConfig()
	if err != nil {
		return err
	}

	log.Info().
		Str("config", sc.Config.Name).
		Str("frequency", util.HzToString(sc.StartHz)).
		Int("nsamples", sc.NSamples).
		Msg("starting sampling")

	plotter := viz.NewTimeDomainPlotter("samples", 16*sc.NSamples)
	r.register(plotter)

	return r.sensor.SampleRun(ctx, sc, limit(r.opts.MaxRecords,
		func(sc *spectrumsensor.SweepConfig, rec *spectrumsensor.TimestampedData) bool {
			printRecord(rec)
			plotter.Append(rec.Data)
			return true
		}))
}

func (r *runner) baseband(ctx context.Context) error {
	sc, err := r.sampleConfig()
	if err != nil {
		return err
	}

	plotter := viz.NewBasebandPlotter("baseband", 0)
	r.register(plotter)

	for n := 0; r.opts.MaxRecords == 0 || n < r.opts.MaxRecords; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		samples, err := r.sensor.Baseband(sc)
		if err != nil {
			return err
		}
		log.Debug().Int("samples", len(samples)).Msg("baseband capture")

		fields := make([]string, len(samples))
		for i, v := range samples {
			fields[i] = fmt.Sprint(v)
		}
		fmt.Println(strings.Join(fields, " "))

		if err := plotter.Append(samples); err != nil {
			return err
		}
	}
	return nil
}
