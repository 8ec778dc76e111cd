package spectrumsensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TimestampedData is one record streamed by the device.
type TimestampedData struct {
	// Timestamp is the time since acquisition start as reported by the
	// device (seconds with millisecond resolution on current firmware).
	Timestamp float64
	// Channel is the first channel in the record. Legacy frames carry no
	// channel and leave it nil.
	Channel *int
	Data    []float64
}

var errMalformed = errors.New("malformed frame")

type frameLayout int

const (
	// <tag> <timestamp> <tag> v1 ... vN <tag>
	layoutLegacy frameLayout = iota
	// TS <timestamp> CH <channel> DS v1 ... vN DE
	layoutTagged
)

// frameShape describes the lines expected while streaming.
type frameShape struct {
	layout  frameLayout
	samples int
}

func (f frameShape) fieldCount() int {
	if f.layout == layoutLegacy {
		return f.samples + 4
	}
	return f.samples + 6
}

func (f frameShape) parse(line string) (*TimestampedData, error) {
	fields := strings.Fields(line)
	if len(fields) != f.fieldCount() {
		return nil, fmt.Errorf("%w: %d fields, want %d", errMalformed, len(fields), f.fieldCount())
	}

	rec := &TimestampedData{}
	var err error
	var values []string

	switch f.layout {
	case layoutTagged:
		if fields[0] != "TS" || fields[2] != "CH" || fields[4] != "DS" || fields[len(fields)-1] != "DE" {
			return nil, fmt.Errorf("%w: tags out of place", errMalformed)
		}
		ch, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: channel: %v", errMalformed, err)
		}
		rec.Channel = &ch
		values = fields[5 : len(fields)-1]
	default:
		values = fields[3 : len(fields)-1]
	}

	if rec.Timestamp, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return nil, fmt.Errorf("%w: timestamp: %v", errMalformed, err)
	}

	rec.Data = make([]float64, len(values))
	for i, v := range values {
		if rec.Data[i], err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("%w: value %d: %v", errMalformed, i, err)
		}
	}

	return rec, nil
}

// parseBaseband parses a "DS v1 ... vN DE" line.
func parseBaseband(line string) ([]int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "DS" || fields[len(fields)-1] != "DE" {
		return nil, fmt.Errorf("%w: baseband %q", errMalformed, strings.TrimSpace(line))
	}

	ret := make([]int, 0, len(fields)-2)
	for _, v := range fields[1 : len(fields)-1] {
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: baseband value: %v", errMalformed, err)
		}
		ret = append(ret, i)
	}
	return ret, nil
}
