package viz

import (
	"bytes"
	"math"
	"math/cmplx"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/sensorlab/vesna-spectrum-sensor/pkg/dsp/window"
)

var pngMagic = []byte("\x89PNG")

func hann(n int) []float64 {
	w, _ := window.New(window.Hann, n)
	return w
}

func tone(n, bin int, amplitude float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = amplitude * math.Cos(2*math.Pi*float64(bin)*float64(i)/float64(n))
	}
	return x
}

func TestPowerSpectrumTone(t *testing.T) {
	const n = 256
	x := tone(n, 32, 1000)

	power := PowerSpectrum(x, hann(n))
	if len(power) != n/2+1 {
		t.Fatalf("len = %d", len(power))
	}

	peak := 0
	for i := range power {
		if power[i] > power[peak] {
			peak = i
		}
	}
	if peak != 32 {
		t.Errorf("peak at bin %d, want 32", peak)
	}
	// amplitude 1000 is 60 dB
	if math.Abs(power[32]-60) > 0.1 {
		t.Errorf("peak power = %v dB, want 60", power[32])
	}
}

func TestPowerSpectrumMatchesGonum(t *testing.T) {
	const n = 128
	x := tone(n, 10, 3)
	for i := range x {
		x[i] += 0.5 * math.Sin(2*math.Pi*27*float64(i)/n)
	}
	win := make([]float64, n)
	for i := range win {
		win[i] = 1
	}

	got := PowerSpectrum(x, win)
	coeffs := fourier.NewFFT(n).Coefficients(nil, x)

	for i := range got {
		mag := cmplx.Abs(coeffs[i]) / n
		if i != 0 && i != n/2 {
			mag *= 2
		}
		want := math.Max(20*math.Log10(mag), minPower)
		if math.Abs(got[i]-want) > 1e-6 {
			t.Fatalf("bin %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestPowerSpectrumSilence(t *testing.T) {
	got := PowerSpectrum(make([]float64, 8), hann(8))
	for i, v := range got {
		if v != minPower {
			t.Errorf("bin %d = %v, want %v", i, v, minPower)
		}
	}
	if PowerSpectrum(nil, nil) != nil {
		t.Errorf("PowerSpectrum(nil) != nil")
	}
}

func TestBasebandPlotter(t *testing.T) {
	b := NewBasebandPlotter("baseband", 2000000)
	if b.GetImage() != nil {
		t.Errorf("GetImage() before data != nil")
	}

	samples := make([]int, 64)
	for i, v := range tone(64, 8, 100) {
		samples[i] = int(v)
	}
	if err := b.Append(samples); err != nil {
		t.Fatal(err)
	}
	if err := b.Append(samples); err != nil {
		t.Fatal(err)
	}
	if f := b.freq(16, 33); f != 500000 {
		t.Errorf("freq(16) = %v", f)
	}

	img := b.GetImage()
	if img == nil || !bytes.HasPrefix(img.Data(), pngMagic) {
		t.Fatalf("GetImage() did not return a png")
	}

	b.SetWindow(window.Type(99))
	if err := b.Append(samples); err == nil {
		t.Errorf("Append() with unknown window succeeded")
	}
}

func TestSpectrumPlotter(t *testing.T) {
	sp := NewSpectrumPlotter("sweep", []int{868000000, 868100000, 868200000})
	if sp.GetImage() != nil {
		t.Errorf("GetImage() before data != nil")
	}

	if sp.Update([]float64{-100, -90}) {
		t.Errorf("Update() accepted a short sweep")
	}
	sp.Update([]float64{-100, -90, -95})
	sp.Update([]float64{-105, -80, -99})

	want := []float64{-100, -80, -95}
	got := sp.Peak()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Peak() = %v, want %v", got, want)
		}
	}

	img := sp.GetImage()
	if img == nil || img.Name() != "sweep" || !bytes.HasPrefix(img.Data(), pngMagic) {
		t.Fatalf("GetImage() did not return a png")
	}
}

func TestTimeDomainPlotter(t *testing.T) {
	tp := NewTimeDomainPlotter("samples", 4)
	tp.Append([]float64{1, 2, 3})
	tp.Append([]float64{4, 5, 6})

	mean, std := tp.Stats()
	if mean != 4.5 {
		t.Errorf("mean = %v, want 4.5", mean)
	}
	if math.Abs(std-math.Sqrt(5.0/3)) > 1e-9 {
		t.Errorf("std = %v", std)
	}

	tp.SetPlotType(PlotTypeScatter)
	if img := tp.GetImage(); img == nil || !bytes.HasPrefix(img.Data(), pngMagic) {
		t.Fatalf("GetImage() did not return a png")
	}
}

func TestServer(t *testing.T) {
	s := NewServer(0, time.Second)
	sp := NewSpectrumPlotter("sweep", []int{1000, 2000})
	sp.Update([]float64{-90, -80})
	s.Register("spectrum", sp)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	resp, err := client.Get(ts.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/view/spectrum" {
		t.Errorf("GET / = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = client.Get(ts.URL + "/view/spectrum")
	if err != nil {
		t.Fatal(err)
	}
	var body bytes.Buffer
	body.ReadFrom(resp.Body)
	resp.Body.Close()
	if !strings.Contains(body.String(), "/img/spectrum/sweep?") {
		t.Errorf("view page does not reference the plot:\n%s", body.String())
	}

	// nothing rendered yet
	resp, _ = client.Get(ts.URL + "/img/spectrum/sweep")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET img before refresh = %d", resp.StatusCode)
	}

	s.refresh(time.Now().Add(-time.Minute))

	resp, err = client.Get(ts.URL + "/img/spectrum/sweep")
	if err != nil {
		t.Fatal(err)
	}
	body.Reset()
	body.ReadFrom(resp.Body)
	resp.Body.Close()
	if resp.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(body.Bytes(), pngMagic) {
		t.Errorf("GET img returned %q", resp.Header.Get("Content-Type"))
	}

	resp, _ = client.Get(ts.URL + "/view/missing")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET missing bucket = %d", resp.StatusCode)
	}
}

func TestServerSkipsUnviewed(t *testing.T) {
	s := NewServer(0, time.Second)
	sp := NewSpectrumPlotter("sweep", []int{1000})
	sp.Update([]float64{-90})
	s.Register("spectrum", sp)

	s.refresh(time.Now().Add(-time.Minute))
	if len(s.images) != 0 {
		t.Errorf("rendered a bucket nobody viewed")
	}

	s.markViewed("spectrum")
	s.Enable(false)
	s.refresh(time.Now().Add(-time.Minute))
	if len(s.images) != 0 {
		t.Errorf("rendered while disabled")
	}
}
