package viz

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
)

// SpectrumPlotter draws the most recent sweep and the peak hold across all
// sweeps seen so far.
type SpectrumPlotter struct {
	mu          sync.Mutex
	name        string
	freqMHz     []float64
	latest      []float64
	peak        []float64
	sweeps      int
	plotOptions []PlotOptions
}

func NewSpectrumPlotter(name string, hz []int) *SpectrumPlotter {
	freqs := make([]float64, len(hz))
	for i, f := range hz {
		freqs[i] = float64(f) / 1e6
	}
	return &SpectrumPlotter{
		name:    name,
		freqMHz: freqs,
	}
}

func (sp *SpectrumPlotter) Name() string {
	return sp.name
}

func (sp *SpectrumPlotter) AddPlotOption(opt PlotOptions) {
	sp.plotOptions = append(sp.plotOptions, opt)
}

// Update records one sweep. Sweeps with the wrong number of channels are
// dropped.
func (sp *SpectrumPlotter) Update(power []float64) bool {
	if len(power) != len(sp.freqMHz) {
		return false
	}

	sp.mu.Lock()
	defer sp.mu.Unlock()

	sp.latest = append(sp.latest[:0], power...)
	if sp.peak == nil {
		sp.peak = append([]float64(nil), power...)
	} else {
		for i, v := range power {
			sp.peak[i] = math.Max(sp.peak[i], v)
		}
	}
	sp.sweeps++
	return true
}

// Peak returns a copy of the peak hold trace.
func (sp *SpectrumPlotter) Peak() []float64 {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return append([]float64(nil), sp.peak...)
}

func (sp *SpectrumPlotter) xys(y []float64) plotter.XYs {
	ret := make(plotter.XYs, len(y))
	for i := range y {
		ret[i] = plotter.XY{X: sp.freqMHz[i], Y: y[i]}
	}
	return ret
}

func (sp *SpectrumPlotter) GetImage() *ImageContainer {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.sweeps == 0 {
		return nil
	}

	p := plotWithDefaults()
	p.Title.Text = fmt.Sprintf("%s (%d sweeps)", sp.name, sp.sweeps)
	p.Y.Label.Text = "Power (dBm)"
	p.X.Label.Text = "Frequency (MHz)"

	p.Y.Min = math.Floor(floats.Min(sp.latest)) - 5
	p.Y.Max = math.Ceil(floats.Max(sp.peak)) + 5

	for _, opt := range sp.plotOptions {
		opt(p)
	}

	p.Add(plotter.NewGrid())

	if err := plotutil.AddLines(p, "latest", sp.xys(sp.latest), "peak", sp.xys(sp.peak)); err != nil {
		return nil
	}

	return render(sp.name, p)
}
