package main

import (
	"time"

	"github.com/google/uuid"

	"dcp/server/frame"
)

// sessionState enumerates where a connection sits in the signon state
// machine (spec §4.2).
type sessionState int

const (
	stateUnregistered sessionState = iota // pre-auth, 60s window to register/signon
	stateRegistered                       // signed on as a User
)

// Session is the per-connection object the dispatcher and entity graph
// operate on. It weak-references its User — a lookup only, never a lifetime
// extender (spec §4.4's ownership note) — while the User strongly owns its
// Sessions for the duration of the connection.
type Session struct {
	ID    uuid.UUID
	State sessionState
	User  *User // nil until signon completes

	Codec frame.Codec // BinaryCodec or JSONCodec, fixed at handshake

	RemoteAddr string
	RemoteHost string // resolved by rdns, bounded at 5s; falls back to RemoteAddr
	ConnectedAt time.Time

	conn *Connection // I/O side, see connection.go
}

// NewSession allocates a fresh unregistered Session for conn.
func NewSession(conn *Connection, codec frame.Codec, remoteAddr string) *Session {
	return &Session{
		ID:          uuid.New(),
		State:       stateUnregistered,
		Codec:       codec,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// Registered reports whether the session has completed signon.
func (s *Session) Registered() bool {
	return s.State == stateRegistered && s.User != nil
}

// Signon attaches u to this session and flips its state to registered.
func (s *Session) Signon(u *User) {
	s.User = u
	s.State = stateRegistered
	u.AddSession(s)
}

// Send serializes f with the session's codec and writes it to the
// connection's socket.
func (s *Session) Send(f frame.Frame) error {
	data, err := s.Codec.Serialize(f)
	if err != nil {
		return err
	}
	return s.conn.enqueue(data)
}

// SendMultipart splits kval's listed keys across as many frames as needed
// using frame.Plan, and sends the announcement frame, each chunk frame, and
// a trailing {"multipart":["*"]} sentinel in order (spec §9's design note).
func (s *Session) SendMultipart(source, target, command string, keys []string, kval map[string][]string) error {
	firstExtra, firstKval, chunks, err := frame.Plan(s.Codec, command, keys, kval, true)
	if err != nil {
		return err
	}

	first := frame.New(source, target, command)
	for k, vs := range firstKval {
		for _, v := range vs {
			first.Add(k, v)
		}
	}
	for k, vs := range firstExtra {
		for _, v := range vs {
			first.Add(k, v)
		}
	}
	if err := s.Send(first); err != nil {
		return err
	}

	for _, chunk := range chunks {
		cf := frame.New(source, target, command)
		cf.KVal = chunk
		if err := s.Send(cf); err != nil {
			return err
		}
	}

	sentinel := frame.New(source, target, command)
	sentinel.Add("multipart", "*")
	return s.Send(sentinel)
}
