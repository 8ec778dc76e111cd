package transport

import (
	"net"
	"testing"
	"time"
)

func TestConnReadLine(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(client)
	if err := c.SetReadTimeout(200 * time.Millisecond); err != nil {
		t.Fatal(err)
	}

	go func() {
		server.Write([]byte("device 0: dummy\n  channel"))
		server.Write([]byte(" config 0,0: test\nok\n"))
	}()

	for _, want := range []string{"device 0: dummy\n", "  channel config 0,0: test\n", "ok\n"} {
		got, err := c.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine() error = %v", err)
		}
		if got != want {
			t.Errorf("ReadLine() = %q, want %q", got, want)
		}
	}

	// nothing more arrives: the timeout ends the read
	got, err := c.ReadLine()
	if err != nil || got != "" {
		t.Errorf("ReadLine() after timeout = %q, %v", got, err)
	}
}

func TestConnPartialLineOnTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(client)
	c.SetReadTimeout(100 * time.Millisecond)

	go server.Write([]byte("TS 1.0 CH"))

	got, err := c.ReadLine()
	if err != nil || got != "TS 1.0 CH" {
		t.Errorf("ReadLine() = %q, %v", got, err)
	}
}

func TestConnWrite(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(client)

	done := make(chan string)
	go func() {
		buf := make([]byte, 64)
		n, _ := server.Read(buf)
		done <- string(buf[:n])
	}()

	if _, err := c.Write([]byte("sweep-off\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := <-done; got != "sweep-off\n" {
		t.Errorf("peer received %q", got)
	}
}

func TestConnClosed(t *testing.T) {
	client, server := net.Pipe()
	c := NewConn(client)
	c.SetReadTimeout(time.Second)
	server.Close()

	if _, err := c.ReadLine(); err == nil {
		t.Errorf("ReadLine() on closed pipe succeeded")
	}
	c.Close()
}
