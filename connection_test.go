package main

import (
	"net"
	"testing"
	"time"

	"dcp/server/frame"
)

// newTestServerConn wires a Connection to one end of a net.Pipe, with a
// goroutine draining the server's event channel so posted continuations
// (dispatch, disconnect) actually run during the test.
func newTestServerConn(t *testing.T) (*Connection, net.Conn, *Server) {
	t.Helper()
	cache, err := NewTargetCache(16)
	if err != nil {
		t.Fatalf("NewTargetCache: %v", err)
	}
	srv := NewServer(Config{}, nil, cache, nil)

	clientConn, serverConn := net.Pipe()
	c := NewConnection(serverConn, frame.BinaryCodec{}, srv, connNetwork)
	c.session = NewSession(c, frame.BinaryCodec{}, "127.0.0.1:1234")

	go func() {
		for fn := range srv.events {
			fn(srv)
		}
	}()
	go c.readLoop()

	t.Cleanup(func() { clientConn.Close() })
	return c, clientConn, srv
}

func TestConnectionUnknownCommandYieldsErrorFrame(t *testing.T) {
	_, clientConn, _ := newTestServerConn(t)

	f := frame.New("alice", "*", "not-a-real-command")
	data, err := frame.BinaryCodec{}.Serialize(f)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if _, err := clientConn.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := clientConn.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	resp, err := frame.BinaryCodec{}.Parse(buf[:n])
	if err != nil {
		t.Fatalf("Parse response: %v", err)
	}
	if resp.Command != "error" {
		t.Fatalf("expected error frame, got command %q", resp.Command)
	}
	if resp.Get("reason") != "Unknown command" {
		t.Fatalf("expected Unknown command reason, got %q", resp.Get("reason"))
	}
}

func TestConnectionSplitsFramesAcrossReads(t *testing.T) {
	_, clientConn, _ := newTestServerConn(t)

	f := frame.New("alice", "*", "pong")
	data, err := frame.BinaryCodec{}.Serialize(f)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	// write byte-by-byte to exercise partial-frame buffering in drain.
	for _, b := range data {
		if _, err := clientConn.Write([]byte{b}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	// pong on an unregistered connection routes through commandRegistry and
	// returns CommandNotImplemented, surfaced as a non-fatal error frame.
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, err := clientConn.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	resp, err := frame.BinaryCodec{}.Parse(buf[:n])
	if err != nil {
		t.Fatalf("Parse response: %v", err)
	}
	if resp.Command != "error" {
		t.Fatalf("expected error frame, got command %q", resp.Command)
	}
}

func TestConnectionCloseDropsFurtherWrites(t *testing.T) {
	c, clientConn, _ := newTestServerConn(t)
	c.Close("")

	if err := c.Send(frame.New("=server", "*", "ping")); err != nil {
		t.Fatalf("Send after close should silently succeed, got %v", err)
	}
	clientConn.Close()
}
