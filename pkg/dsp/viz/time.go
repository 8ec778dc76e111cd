package viz

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
)

type PlotType int

const (
	PlotTypeDefault PlotType = iota
	PlotTypeScatter
	PlotTypeLines
)

// TimeDomainPlotter keeps the last size samples of a single channel.
type TimeDomainPlotter struct {
	mu          sync.Mutex
	buf         []float64
	size        int
	name        string
	plotFunc    func(*plot.Plot, ...interface{}) error
	plotOptions []PlotOptions
}

func NewTimeDomainPlotter(name string, size int) *TimeDomainPlotter {
	return &TimeDomainPlotter{
		size:     size,
		name:     name,
		plotFunc: plotutil.AddLines,
	}
}

func (t *TimeDomainPlotter) Name() string {
	return t.name
}

func (t *TimeDomainPlotter) SetPlotType(tp PlotType) {
	switch tp {
	case PlotTypeScatter:
		t.plotFunc = plotutil.AddScatters
	default:
		t.plotFunc = plotutil.AddLines
	}
}

func (t *TimeDomainPlotter) Append(samples []float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, samples...)
	if len(t.buf) > t.size {
		t.buf = t.buf[len(t.buf)-t.size:]
	}
}

// Stats returns the mean and standard deviation of the buffered samples.
func (t *TimeDomainPlotter) Stats() (mean, std float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.buf) == 0 {
		return 0, 0
	}
	return stat.MeanStdDev(t.buf, nil)
}

func (t *TimeDomainPlotter) AddPlotOption(opt PlotOptions) {
	t.plotOptions = append(t.plotOptions, opt)
}

func (t *TimeDomainPlotter) GetImage() *ImageContainer {
	mean, std := t.Stats()

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.buf) == 0 {
		return nil
	}

	p := plotWithDefaults()
	p.Title.Text = fmt.Sprintf("%s mean %.2f std %.2f", t.name, mean, std)
	p.Y.Label.Text = "Power (dBm)"
	p.Y.Min = math.Floor(floats.Min(t.buf)) - 1
	p.Y.Max = math.Ceil(floats.Max(t.buf)) + 1
	p.X.Label.Text = "sample"

	for _, opt := range t.plotOptions {
		opt(p)
	}

	p.Add(plotter.NewGrid())

	xys := make(plotter.XYs, len(t.buf))
	for i, v := range t.buf {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	if err := t.plotFunc(p, "p(t)", xys); err != nil {
		return nil
	}

	return render(t.name, p)
}
