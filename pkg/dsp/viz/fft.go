package viz

import (
	"math"
	"math/cmplx"
	"sync"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"

	"github.com/sensorlab/vesna-spectrum-sensor/pkg/dsp/window"
)

const (
	fftAvg   = 0.10
	minPower = -200.0
)

// PowerSpectrum returns the windowed power of the real signal x in dB
// relative to full scale amplitude, one value per bin from DC to Nyquist.
func PowerSpectrum(x []float64, win []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	data := append([]float64(nil), x...)
	window.Apply(data, win)
	gain := window.CoherentGain(win)
	if gain == 0 {
		gain = 1
	}

	coeffs := dspfft.FFTReal(data)

	ret := make([]float64, n/2+1)
	for i := range ret {
		mag := cmplx.Abs(coeffs[i]) / (float64(n) * gain)
		if i != 0 && i != n/2 {
			mag *= 2
		}
		if mag == 0 {
			ret[i] = minPower
			continue
		}
		ret[i] = math.Max(20*math.Log10(mag), minPower)
	}
	return ret
}

// BasebandPlotter shows the averaged spectrum of raw baseband captures.
type BasebandPlotter struct {
	mu           sync.Mutex
	name         string
	sampleRate   int
	windowType   window.Type
	averagePower []float64
	plotOptions  []PlotOptions
}

// NewBasebandPlotter plots against frequency in Hz when sampleRate is
// known and against normalized frequency otherwise.
func NewBasebandPlotter(name string, sampleRate int) *BasebandPlotter {
	return &BasebandPlotter{
		name:       name,
		sampleRate: sampleRate,
		windowType: window.Blackman,
	}
}

func (b *BasebandPlotter) Name() string {
	return b.name
}

func (b *BasebandPlotter) SetWindow(t window.Type) {
	b.mu.Lock()
	b.windowType = t
	b.averagePower = nil
	b.mu.Unlock()
}

func (b *BasebandPlotter) AddPlotOption(opt PlotOptions) {
	b.plotOptions = append(b.plotOptions, opt)
}

// Append folds a capture into the running average. A capture of a
// different length restarts the average.
func (b *BasebandPlotter) Append(samples []int) error {
	x := make([]float64, len(samples))
	for i, s := range samples {
		x[i] = float64(s)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	win, err := window.New(b.windowType, len(x))
	if err != nil {
		return err
	}
	power := PowerSpectrum(x, win)

	if len(b.averagePower) != len(power) {
		b.averagePower = power
		return nil
	}
	for i := range power {
		b.averagePower[i] = (1.0-fftAvg)*b.averagePower[i] + fftAvg*power[i]
	}
	return nil
}

func (b *BasebandPlotter) freq(bin, nbins int) float64 {
	f := float64(bin) / float64(2*(nbins-1))
	if b.sampleRate > 0 {
		return f * float64(b.sampleRate)
	}
	return f
}

func (b *BasebandPlotter) GetImage() *ImageContainer {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.averagePower) < 2 {
		return nil
	}

	p := plotWithDefaults()
	p.Title.Text = b.name
	p.Y.Label.Text = "Power (dBFS)"
	p.X.Label.Text = "Frequency"
	if b.sampleRate > 0 {
		p.X.Label.Text = "Frequency (Hz)"
	}

	for _, opt := range b.plotOptions {
		opt(p)
	}

	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(b.averagePower))
	for i, v := range b.averagePower {
		xys[i] = plotter.XY{X: b.freq(i, len(b.averagePower)), Y: v}
	}
	if err := plotutil.AddLines(p, "baseband", xys); err != nil {
		return nil
	}

	return render(b.name, p)
}
