package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

type serialPort struct {
	serial.Port
}

func (p serialPort) read(b []byte) (int, error) {
	return p.Port.Read(b)
}

// Serial is a Transport over a serial device.
type Serial struct {
	*lineReader
	port serial.Port
}

func OpenSerial(device string, baudRate int) (*Serial, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", device, err)
	}

	return &Serial{
		lineReader: newLineReader(serialPort{p}),
		port:       p,
	}, nil
}

func (s *Serial) SetReadTimeout(d time.Duration) error {
	if d < 0 {
		d = serial.NoTimeout
	}
	return s.port.SetReadTimeout(d)
}
