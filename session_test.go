package main

import (
	"net"
	"testing"
	"time"

	"dcp/server/frame"
)

func TestSessionSendMultipartTerminatesWithSentinel(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	c := &Connection{conn: serverConn, codec: frame.BinaryCodec{}}
	sess := NewSession(c, frame.BinaryCodec{}, "10.0.0.1:1")

	values := make([]string, 0, 64)
	for i := 0; i < 64; i++ {
		values = append(values, "member-with-a-reasonably-long-handle-name")
	}

	done := make(chan error, 1)
	go func() {
		done <- sess.SendMultipart("=server", "#room", "group-names", []string{"name"}, map[string][]string{"name": values})
	}()

	var frames []frame.Frame
	clientConn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 65536)
	for {
		n, err := clientConn.Read(buf)
		if err != nil {
			break
		}
		// a single Read may return several terminator-delimited frames;
		// split on the binary codec's double-NUL terminator.
		chunk := buf[:n]
		for len(chunk) > 0 {
			idx := indexTerminator(chunk)
			if idx < 0 {
				break
			}
			f, perr := frame.BinaryCodec{}.Parse(chunk[:idx+2])
			if perr != nil {
				t.Fatalf("Parse: %v", perr)
			}
			frames = append(frames, f)
			chunk = chunk[idx+2:]
		}
		if len(frames) > 0 && frames[len(frames)-1].Get("multipart") == "*" {
			break
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("SendMultipart: %v", err)
	}
	if len(frames) < 2 {
		t.Fatalf("expected at least an announcement and a sentinel frame, got %d", len(frames))
	}
	last := frames[len(frames)-1]
	if last.Get("multipart") != "*" {
		t.Fatalf("expected final frame to carry the multipart:* sentinel, got %v", last)
	}

	var seen []string
	for _, f := range frames {
		seen = append(seen, f.KVal["name"]...)
	}
	if len(seen) != len(values) {
		t.Fatalf("expected to recover all %d values across chunks, got %d", len(values), len(seen))
	}
}

func indexTerminator(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == 0 && b[i+1] == 0 {
			return i
		}
	}
	return -1
}

func TestSessionRegisteredReflectsState(t *testing.T) {
	sess := &Session{}
	if sess.Registered() {
		t.Fatal("fresh session should not be registered")
	}

	u := NewUser("alice", "", "")
	sess.Signon(u)
	if !sess.Registered() {
		t.Fatal("expected registered after Signon")
	}
	if !u.IsOnline() {
		t.Fatal("expected user online after Signon attaches the session")
	}
}
