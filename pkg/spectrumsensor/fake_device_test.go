package spectrumsensor

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sensorlab/vesna-spectrum-sensor/pkg/util"
)

// fakeDevice is a scripted sensor node. Each command written queues its
// reply; reading an empty queue behaves like a read timeout.
type fakeDevice struct {
	replies  map[string][]string
	queue    []string
	written  []string
	timeouts []time.Duration
	readErr  error
	closed   bool
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{replies: make(map[string][]string)}
}

func (f *fakeDevice) reply(cmd string) []string {
	if r, ok := f.replies[cmd]; ok {
		return r
	}
	switch {
	case strings.HasSuffix(cmd, "-off"),
		strings.HasPrefix(cmd, "select channel "),
		strings.HasPrefix(cmd, "average "),
		strings.HasPrefix(cmd, "samples "),
		cmd == "calib-off":
		return []string{"ok"}
	}
	if strings.HasSuffix(cmd, "-on") {
		return nil
	}
	return []string{"error: unknown command: " + cmd}
}

func (f *fakeDevice) Write(p []byte) (int, error) {
	cmd := strings.TrimSuffix(string(p), "\n")
	f.written = append(f.written, cmd)
	f.queue = append(f.queue, f.reply(cmd)...)
	return len(p), nil
}

func (f *fakeDevice) ReadLine() (string, error) {
	if len(f.queue) == 0 {
		if f.readErr != nil {
			return "", f.readErr
		}
		return "", nil
	}
	line := f.queue[0]
	f.queue = f.queue[1:]
	return line + "\n", nil
}

func (f *fakeDevice) SetReadTimeout(d time.Duration) error {
	f.timeouts = append(f.timeouts, d)
	return nil
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

// commandsSince returns the commands written after the first n.
func (f *fakeDevice) commandsSince(n int) []string {
	return append([]string(nil), f.written[n:]...)
}

func newTestSensor(t *testing.T, f *fakeDevice, options Options) (*SpectrumSensor, *util.MockWriteAPI) {
	t.Helper()
	metrics := &util.MockWriteAPI{}
	s, err := NewSpectrumSensor(f, options, WithLogger(zerolog.Nop()), WithInfluxDB(metrics))
	if err != nil {
		t.Fatalf("NewSpectrumSensor() error = %v", err)
	}
	return s, metrics
}
