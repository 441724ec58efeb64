package main

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/valyala/bytebufferpool"

	"dcp/server/frame"
)

// connKind distinguishes a plain network connection from the trusted local
// admin socket (spec §4.3's "ipc" dispatch kind).
type connKind int

const (
	connNetwork connKind = iota
	connIPC
)

const (
	signonTimeout  = 60 * time.Second
	pingTickLow    = 45 * time.Second
	pingTickHigh   = 60 * time.Second
	rdnsTimeout    = 5 * time.Second
	readBufferSize = 4096
)

// Connection owns one socket's ingress/egress: byte buffering and framing,
// write serialization, named timers, and the keepalive state machine (spec
// §4.2). Parsing happens on the connection's own read goroutine; a parsed
// frame is posted to the server's event loop for dispatch so graph mutation
// stays on a single goroutine (see the concurrency note in server.go).
type Connection struct {
	conn    net.Conn
	codec   frame.Codec
	server  *Server
	session *Session
	kind    connKind

	// ctx is cancelled when the connection closes, so background work
	// started on its behalf (rdns resolution) can abandon itself instead
	// of running to completion against a dead connection.
	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
	closed  bool

	timersMu sync.Mutex
	timers   map[string]*time.Timer

	pingPending bool
}

// NewConnection wraps conn for codec, posting dispatched frames onto srv's
// event loop.
func NewConnection(conn net.Conn, codec frame.Codec, srv *Server, kind connKind) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:   conn,
		codec:  codec,
		server: srv,
		kind:   kind,
		ctx:    ctx,
		cancel: cancel,
		timers: map[string]*time.Timer{},
	}
}

// enqueue writes data to the underlying socket. Writes to an already-closed
// transport are silently dropped (spec §4.2).
func (c *Connection) enqueue(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return nil
	}
	_, err := c.conn.Write(data)
	return err
}

// Send is a convenience wrapper used by server/dispatch code that doesn't
// go through a *Session (e.g. rejecting a connection before signon).
func (c *Connection) Send(f frame.Frame) error {
	data, err := c.codec.Serialize(f)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Connection) sendError(command, reason string) {
	f := frame.New("=server", "*", "error")
	f.Add("command", command)
	f.Add("reason", reason)
	_ = c.Send(f)
}

// Close tears down the connection: cancels all timers and closes the
// socket. Safe to call more than once.
func (c *Connection) Close(reason string) {
	if reason != "" {
		c.sendError("", reason)
	}
	c.writeMu.Lock()
	already := c.closed
	c.closed = true
	c.writeMu.Unlock()
	if already {
		return
	}
	c.cancel()

	c.timersMu.Lock()
	for name, t := range c.timers {
		t.Stop()
		delete(c.timers, name)
	}
	c.timersMu.Unlock()

	_ = c.conn.Close()
}

// schedule replaces any existing timer named name with one firing after d.
func (c *Connection) schedule(name string, d time.Duration, fn func()) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if t, ok := c.timers[name]; ok {
		t.Stop()
	}
	c.timers[name] = time.AfterFunc(d, fn)
}

// scheduleJittered picks a delay uniformly in [low, high] — used for ping
// ticks so many connections don't wake in lockstep (spec §4.2).
func (c *Connection) scheduleJittered(name string, low, high time.Duration, fn func()) {
	span := int64(high - low)
	d := low
	if span > 0 {
		d += time.Duration(rand.Int63n(span + 1))
	}
	c.schedule(name, d, fn)
}

// cancelTimer discards the named timer, if any.
func (c *Connection) cancelTimer(name string) {
	c.timersMu.Lock()
	defer c.timersMu.Unlock()
	if t, ok := c.timers[name]; ok {
		t.Stop()
		delete(c.timers, name)
	}
}

// startSignonTimer arms the 60s pre-auth window (spec §4.2). Cancelled by
// the signon handler on successful authentication.
func (c *Connection) startSignonTimer() {
	c.schedule("signon", signonTimeout, func() {
		c.server.post(func(s *Server) { s.handleSignonTimeout(c) })
	})
}

// startKeepalive arms the first randomized ping tick. Called once signon
// completes.
func (c *Connection) startKeepalive() {
	c.scheduleNextPing()
}

func (c *Connection) scheduleNextPing() {
	c.scheduleJittered("ping", pingTickLow, pingTickHigh, func() {
		c.server.post(func(s *Server) { s.handlePingTick(c) })
	})
}

// onPingTick implements the keepalive state machine's ping_tick transition
// (spec §4.2). Runs on the event loop goroutine via server.post.
func (c *Connection) onPingTick() {
	if c.pingPending {
		c.Close("Ping timeout")
		return
	}
	c.pingPending = true
	_ = c.Send(frame.New("=server", "*", "ping"))
	c.scheduleNextPing()
}

// onPong clears the pending ping flag (Pending -> Alive).
func (c *Connection) onPong() {
	c.pingPending = false
}

// readLoop blocks reading from the socket, splitting the byte stream into
// frames via drain and handing each to handleFrameBytes.
// Runs on its own goroutine per connection; never touches server/graph
// state directly.
func (c *Connection) readLoop() {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	chunk := make([]byte, readBufferSize)

	for {
		n, err := c.conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			if !c.drain(buf) {
				return
			}
		}
		if err != nil {
			c.server.post(func(s *Server) { s.handleDisconnect(c) })
			return
		}
	}
}

// drain extracts and dispatches every complete frame currently in buf,
// leaving any trailing partial frame in place. Returns false if the
// connection was closed while draining (a fatal frame error).
//
// Framing is delegated to the codec's own FrameLen rather than a raw scan
// for Terminator: BinaryCodec's NUL-delimited tokens can themselves contain
// the terminator's bytes (an empty-string kv value writes a bare NUL right
// before the next token's leading NUL), so a free scan for two consecutive
// NULs finds a false terminator one byte early and desyncs the stream.
func (c *Connection) drain(buf *bytebufferpool.ByteBuffer) bool {
	for {
		data := buf.B
		n, ok, err := c.codec.FrameLen(data)
		if err != nil {
			c.Close("frame exceeds MAXFRAME")
			return false
		}
		if !ok {
			return true
		}
		frameBytes := append([]byte(nil), data[:n]...)
		rest := append([]byte(nil), data[n:]...)
		buf.Reset()
		buf.Write(rest)

		if !c.handleFrameBytes(frameBytes) {
			return false
		}
	}
}

// handleFrameBytes parses one terminator-delimited frame. A fatal size
// violation closes the connection; any other parse error is reported as a
// non-fatal error frame and the connection continues (spec §4.2, §7).
// Returns false if the connection was closed.
func (c *Connection) handleFrameBytes(data []byte) bool {
	f, err := c.codec.Parse(data)
	if err != nil {
		var sizeErr *frame.SizeError
		switch {
		case errors.As(err, &sizeErr):
			c.Close("frame size exceeds MAXFRAME")
			return false
		case errors.Is(err, frame.ErrDuplicateValue):
			c.sendError("parse", "Duplicate value not allowed")
		case errors.Is(err, frame.ErrIncomplete):
			// shouldn't happen once a terminator has been found, but
			// treat as non-fatal.
		default:
			c.sendError("parse", err.Error())
		}
		return true
	}

	sess := c.session
	c.server.post(func(s *Server) { s.dispatch(sess, f) })
	return true
}

