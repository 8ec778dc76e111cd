package transport

import (
	"bytes"
	"io"
	"strings"
	"time"
)

// NoTimeout makes reads block until data arrives.
const NoTimeout time.Duration = -1

// Transport is a line oriented byte stream to a sensor node.
type Transport interface {
	Write(p []byte) (int, error)
	// ReadLine returns the next line including its terminator. When the
	// read timeout expires it returns whatever was received so far, which
	// is the empty string if nothing arrived.
	ReadLine() (string, error)
	SetReadTimeout(d time.Duration) error
	Close() error
}

// Open connects to addr. Addresses of the form socket://host:port are
// reached over TCP, anything else is taken as a serial device path.
func Open(addr string, baudRate int) (Transport, error) {
	if strings.HasPrefix(addr, socketPrefix) {
		return DialTCP(strings.TrimPrefix(addr, socketPrefix))
	}
	return OpenSerial(addr, baudRate)
}

// port is the raw side of a transport. read returns 0, nil when the read
// timeout expires.
type port interface {
	read(p []byte) (int, error)
	io.WriteCloser
}

const readChunk = 256

// lineReader splits the port's byte stream into lines.
type lineReader struct {
	port    port
	pending []byte
	chunk   []byte
}

func newLineReader(p port) *lineReader {
	return &lineReader{port: p, chunk: make([]byte, readChunk)}
}

func (r *lineReader) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(r.pending, '\n'); i >= 0 {
			line := string(r.pending[:i+1])
			r.pending = r.pending[i+1:]
			return line, nil
		}

		n, err := r.port.read(r.chunk)
		if n > 0 {
			r.pending = append(r.pending, r.chunk[:n]...)
		}
		if err != nil {
			return "", err
		}
		if n == 0 {
			line := string(r.pending)
			r.pending = r.pending[:0]
			return line, nil
		}
	}
}

func (r *lineReader) Write(p []byte) (int, error) {
	return r.port.Write(p)
}

func (r *lineReader) Close() error {
	return r.port.Close()
}
