package main

import (
	"testing"

	"dcp/server/frame"
)

type stubHandler struct {
	baseHandler
	registeredCalled bool
	panics           bool
}

func (h *stubHandler) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	if h.panics {
		panic("boom")
	}
	h.registeredCalled = true
	return nil
}

func TestDispatchRoutesByConnectionKind(t *testing.T) {
	cache, err := NewTargetCache(16)
	if err != nil {
		t.Fatalf("NewTargetCache: %v", err)
	}
	srv := NewServer(Config{}, nil, cache, nil)

	h := &stubHandler{}
	commandRegistry["stub-test-command"] = h
	defer delete(commandRegistry, "stub-test-command")

	u := NewUser("alice", "", "")
	sess := &Session{State: stateRegistered, User: u, conn: &Connection{conn: nil, codec: frame.BinaryCodec{}}}
	sess.conn.closed = true // avoid touching a nil net.Conn on error paths

	f := frame.New("alice", "*", "stub-test-command")
	srv.dispatch(sess, f)

	if !h.registeredCalled {
		t.Fatal("expected Registered entry point to run for a signed-on session")
	}
}

func TestDispatchUnknownCommandDoesNotPanic(t *testing.T) {
	cache, err := NewTargetCache(16)
	if err != nil {
		t.Fatalf("NewTargetCache: %v", err)
	}
	srv := NewServer(Config{}, nil, cache, nil)

	sess := &Session{conn: &Connection{conn: nil, codec: frame.BinaryCodec{}}}
	sess.conn.closed = true

	f := frame.New("alice", "*", "totally-unknown")
	srv.dispatch(sess, f) // must not panic
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	cache, err := NewTargetCache(16)
	if err != nil {
		t.Fatalf("NewTargetCache: %v", err)
	}
	srv := NewServer(Config{}, nil, cache, nil)

	h := &stubHandler{panics: true}
	commandRegistry["stub-panic-command"] = h
	defer delete(commandRegistry, "stub-panic-command")

	u := NewUser("bob", "", "")
	sess := &Session{State: stateRegistered, User: u, conn: &Connection{conn: nil, codec: frame.BinaryCodec{}}}
	sess.conn.closed = true

	f := frame.New("bob", "*", "stub-panic-command")
	srv.dispatch(sess, f) // must recover, not propagate the panic
}
