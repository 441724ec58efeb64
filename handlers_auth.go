package main

import (
	"database/sql"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dcp/server/frame"
	"dcp/server/store"
)

func init() {
	registerHandler("register", registerHandlerImpl{})
	registerHandler("fregister", fregisterHandlerImpl{})
	registerHandler("signon", signonHandlerImpl{})
	registerHandler("pong", pongHandlerImpl{})
}

// registerHandlerImpl implements the register command: creates a brand new
// user row and immediately signs the connection on as it (spec §4.6).
type registerHandlerImpl struct{ baseHandler }

func (registerHandlerImpl) Unregistered(s *Server, sess *Session, f frame.Frame) error {
	handle := f.Get("handle")
	gecos := f.Get("gecos")
	password := f.Get("password")
	if handle == "" || password == "" {
		return &UserError{Reason: "handle and password are required"}
	}
	if !validHandle(handle) {
		return &UserError{Reason: "invalid handle"}
	}
	if len(password) < 5 {
		return &UserError{Reason: "password must be at least 5 characters"}
	}
	if !s.cfg.RegistrationAllowed {
		return &UserError{Reason: "registration is disabled"}
	}

	canon := canonicalize(handle)
	if _, ok := s.onlineUsers[canon]; ok {
		return &UserError{Reason: "Handle already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return &UserError{Reason: "could not hash password"}
	}

	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.CreateUser(canon, gecos, string(hash))
	}, func(_ any, err error) {
		if err != nil {
			sess.conn.sendError("register", "Handle already registered")
			return
		}
		s.cache.Invalidate(canon)
		u := NewUser(canon, gecos, string(hash))
		s.completeSignon(sess, u)
	})
	return nil
}

// fregisterHandlerImpl implements fregister: admin-only forced registration
// of another handle over the IPC socket.
type fregisterHandlerImpl struct{ baseHandler }

func (fregisterHandlerImpl) IPC(s *Server, sess *Session, f frame.Frame) error {
	handle := f.Get("handle")
	gecos := f.Get("gecos")
	password := f.Get("password")
	if handle == "" || !validHandle(handle) {
		return &UserError{Reason: "invalid handle"}
	}

	hash := ""
	if password != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return &UserError{Reason: "could not hash password"}
		}
		hash = string(h)
	}

	canon := canonicalize(handle)
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.CreateUser(canon, gecos, hash)
	}, func(_ any, err error) {
		if err != nil {
			sess.conn.sendError("fregister", "handle already in use")
			return
		}
		s.cache.Invalidate(canon)
		ok := frame.New("=server", "*", "fregister")
		ok.Add("handle", canon)
		_ = sess.Send(ok)
	})
	return nil
}

// signonHandlerImpl implements signon: password verification against the
// stored bcrypt hash, then the same completeSignon burst as register. Spec
// §9's Open Question (i) — a second signon for an already-online handle is
// rejected rather than multiplexed.
type signonHandlerImpl struct{ baseHandler }

func (signonHandlerImpl) Unregistered(s *Server, sess *Session, f frame.Frame) error {
	handle := f.Get("handle")
	password := f.Get("password")
	if handle == "" {
		return &UserError{Reason: "handle is required"}
	}
	canon := canonicalize(handle)

	if _, ok := s.onlineUsers[canon]; ok {
		return &UserError{Reason: "Handle already registered"}
	}

	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return st.GetUser(canon)
	}, func(res any, err error) {
		if errors.Is(err, sql.ErrNoRows) {
			sess.conn.sendError("signon", "no such handle")
			return
		}
		if err != nil {
			sess.conn.sendError("signon", "internal error")
			return
		}
		row := res.(store.User)
		if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(password)) != nil {
			sess.conn.sendError("signon", "invalid password")
			return
		}

		s.resolveTarget(canon, func(u *User, _ *Group, rerr error) {
			if rerr != nil || u == nil {
				u = NewUser(row.Handle, row.Gecos, row.PasswordHash)
			}
			s.completeSignon(sess, u)
		})
	})
	return nil
}

// completeSignon attaches u to sess, cancels the pre-auth timer, starts the
// keepalive ticker, adds u to the online index, and sends the signon burst.
func (s *Server) completeSignon(sess *Session, u *User) {
	sess.Signon(u)
	sess.conn.cancelTimer("signon")
	sess.conn.startKeepalive()
	s.onlineUsers[u.Name] = u
	s.cache.Invalidate(u.Name)

	u.SignonTime = time.Now()
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.TouchUserSignon(u.Name, u.SignonTime.Unix())
	}, func(_ any, err error) {})

	ok := frame.New("=server", u.Name, "signon")
	ok.Add("handle", u.Name)
	ok.Add("gecos", u.Gecos)
	_ = sess.Send(ok)
	_ = s.sendMOTD(sess)
}

// pongHandlerImpl implements pong: the client's reply to a server ping,
// clearing the connection's pending flag.
type pongHandlerImpl struct{ baseHandler }

func (pongHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	sess.conn.onPong()
	return nil
}
