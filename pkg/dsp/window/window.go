package window

import (
	"fmt"
	"math"

	dspwindow "github.com/mjibson/go-dsp/window"
)

type Func func(int) []float64

type Type int

const (
	Hamming Type = iota
	Hann
	Blackman
	BlackmanHarris
)

var funcs = map[Type]Func{
	Hamming:        dspwindow.Hamming,
	Hann:           dspwindow.Hann,
	Blackman:       BlackmanWindow,
	BlackmanHarris: func(n int) []float64 { return blackmanHarris92(n) },
}

func (t Type) String() string {
	switch t {
	case Hamming:
		return "hamming"
	case Hann:
		return "hann"
	case Blackman:
		return "blackman"
	case BlackmanHarris:
		return "blackman-harris"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

func New(t Type, n int) ([]float64, error) {
	f, ok := funcs[t]
	if !ok {
		return nil, fmt.Errorf("unknown window %v", t)
	}
	return f(n), nil
}

// cosine sums c0 - c1 cos(x) + c2 cos(2x) - c3 cos(3x) ... over n points.
func cosine(n int, c ...float64) []float64 {
	ret := make([]float64, n)
	if n == 1 {
		ret[0] = 1
		return ret
	}
	m := float64(n - 1)

	for i := 0; i < n; i++ {
		x := 2 * math.Pi * float64(i) / m
		sign := 1.0
		for k, ck := range c {
			ret[i] += sign * ck * math.Cos(float64(k)*x)
			sign = -sign
		}
	}
	return ret
}

func BlackmanWindow(n int) []float64 {
	return cosine(n, 0.42, 0.5, 0.08)
}

func blackmanHarris92(n int) []float64 {
	return cosine(n, 0.35875, 0.48829, 0.14128, 0.01168)
}

// BlackmanHarrisWindow accepts a sidelobe attenuation of 61, 67, 74 or 92 dB.
func BlackmanHarrisWindow(n, atten int) ([]float64, error) {
	switch atten {
	case 61:
		return cosine(n, 0.42323, 0.49755, 0.07922), nil
	case 67:
		return cosine(n, 0.44959, 0.49364, 0.05677), nil
	case 74:
		return cosine(n, 0.40271, 0.49703, 0.09392, 0.00183), nil
	case 92:
		return blackmanHarris92(n), nil
	}
	return nil, fmt.Errorf("blackman harris window attenuation must be 61, 67, 74 or 92, got %d", atten)
}

// Apply multiplies x by w in place. The shorter of the two bounds the
// product.
func Apply(x, w []float64) {
	n := len(x)
	if len(w) < n {
		n = len(w)
	}
	for i := 0; i < n; i++ {
		x[i] *= w[i]
	}
}

// CoherentGain is the mean of the window, the factor by which it scales a
// tone's amplitude.
func CoherentGain(w []float64) float64 {
	if len(w) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	return sum / float64(len(w))
}
