package main

import (
	"log"

	"dcp/server/frame"
)

// Handler is the three-entry-point contract every command implements (spec
// §4.3). A handler only needs to override the entry points that apply to
// it; baseHandler supplies CommandNotImplementedError for the rest.
type Handler interface {
	Unregistered(s *Server, sess *Session, f frame.Frame) error
	Registered(s *Server, u *User, sess *Session, f frame.Frame) error
	IPC(s *Server, sess *Session, f frame.Frame) error
}

// baseHandler gives every concrete handler CommandNotImplementedError defaults;
// embed it and override only the entry points a command actually supports.
type baseHandler struct{}

func (baseHandler) Unregistered(*Server, *Session, frame.Frame) error {
	return &CommandNotImplementedError{}
}
func (baseHandler) Registered(*Server, *User, *Session, frame.Frame) error {
	return &CommandNotImplementedError{}
}
func (baseHandler) IPC(*Server, *Session, frame.Frame) error {
	return &CommandNotImplementedError{}
}

// commandRegistry maps a lowercased command name to its handler. Populated
// by init() in each handlers_*.go file.
var commandRegistry = map[string]Handler{}

func registerHandler(name string, h Handler) {
	commandRegistry[name] = h
}

// dispatch routes one parsed frame to its handler's entry point based on
// the connection kind, recovering from handler panics the way the teacher's
// processing loop does (recover, log, surface as an internal error).
func (s *Server) dispatch(sess *Session, f frame.Frame) {
	h, ok := commandRegistry[f.Command]
	if !ok {
		sess.conn.sendError(f.Command, "Unknown command")
		return
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[dispatch] panic in %q: %v", f.Command, r)
				err = &UserError{Reason: "Internal server error"}
			}
		}()
		switch {
		case sess.conn.kind == connIPC:
			err = h.IPC(s, sess, f)
		case sess.Registered():
			err = h.Registered(s, sess.User, sess, f)
		default:
			err = h.Unregistered(s, sess, f)
		}
	}()

	if err != nil {
		s.surfaceError(sess, f, err)
	}
}

// surfaceError implements the §4.3/§7 error-surfacing rules: user-class
// errors become a reason string, CommandNotImplemented becomes a
// registered/unregistered-only message, everything else is logged and
// reported generically.
func (s *Server) surfaceError(sess *Session, f frame.Frame, err error) {
	reason := err.Error()

	switch e := err.(type) {
	case *CommandNotImplementedError:
		if sess.Registered() {
			reason = "This command is for unregistered connections only"
		} else {
			reason = "This command is for registered users only"
		}
	case *UserError, *GroupAdditionError, *GroupRemovalError,
		*CommandACLError, *ACLExistsError, *ACLDoesNotExistError, *ACLValueError,
		*PropertyDoesNotExistError, *PropertyValueError, *StorageBackendNotFoundError:
		// reason already holds the user-facing text
		_ = e
	default:
		log.Printf("[dispatch] %s: %v", f.Command, err)
		reason = "Internal server error"
	}

	sess.conn.sendError(f.Command, reason)
}
