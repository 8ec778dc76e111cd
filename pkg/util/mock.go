package util

import (
	"sync"

	"github.com/influxdata/influxdb-client-go/api/write"
)

// MockWriteAPI stands in for an InfluxDB writer when none is configured. It
// counts written points per measurement so tests can inspect them.
type MockWriteAPI struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *MockWriteAPI) WriteRecord(line string) {}

func (m *MockWriteAPI) WritePoint(point *write.Point) {
	m.mu.Lock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[point.Name()]++
	m.mu.Unlock()
}

// Count returns the number of points written for measurement.
func (m *MockWriteAPI) Count(measurement string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[measurement]
}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

func (m *MockWriteAPI) Errors() <-chan error { return nil }
