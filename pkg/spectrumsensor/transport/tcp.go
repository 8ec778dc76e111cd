package transport

import (
	"errors"
	"net"
	"os"
	"time"
)

const socketPrefix = "socket://"

type connPort struct {
	net.Conn
	timeout time.Duration
}

func (p *connPort) read(b []byte) (int, error) {
	var deadline time.Time
	if p.timeout >= 0 {
		deadline = time.Now().Add(p.timeout)
	}
	if err := p.Conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}

	n, err := p.Conn.Read(b)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return n, nil
	}
	return n, err
}

// Conn is a Transport over a stream connection, typically a TCP bridge to
// the sensor's serial port.
type Conn struct {
	*lineReader
	port *connPort
}

func DialTCP(addr string) (*Conn, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewConn(c), nil
}

// NewConn wraps an established connection. Reads block until
// SetReadTimeout is called.
func NewConn(c net.Conn) *Conn {
	p := &connPort{Conn: c, timeout: NoTimeout}
	return &Conn{lineReader: newLineReader(p), port: p}
}

func (c *Conn) SetReadTimeout(d time.Duration) error {
	c.port.timeout = d
	return nil
}
