package main

import "dcp/server/frame"

func init() {
	registerHandler("message", messageHandlerImpl{})
}

// messageHandlerImpl implements message: a user or group directed payload,
// relayed verbatim to every live session of the target (or every member of
// a target group), except sessions belonging to the sender. Spec §4.6. The
// recipient-blocked-sender case drops delivery with no error frame at all —
// a design choice, not a prototype behavior (the prototype's roster/message
// code has no blocking check) — so the sender can't use the error channel
// to probe whether they've been blocked.
type messageHandlerImpl struct{ baseHandler }

func (messageHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	target := f.Target
	if target == "" || target == "*" {
		return &UserError{Reason: "message requires a target"}
	}

	if entry, ok := u.Roster.Get(target); ok && entry.Blocked {
		return &UserError{Reason: target + " is blocked"}
	}

	s.resolveTarget(target, func(tu *User, tg *Group, err error) {
		if err != nil {
			s.surfaceError(sess, f, err)
			return
		}

		out := frame.New(u.Name, target, "message")
		for k, vs := range f.KVal {
			for _, v := range vs {
				out.Add(k, v)
			}
		}

		if tg != nil {
			if !tg.HasMember(u) {
				s.surfaceError(sess, f, &UserError{Reason: "not a member of " + target})
				return
			}
			s.fanoutToGroup(tg, out, u)
			return
		}

		if r, ok := tu.Roster.Get(u.Name); ok && r.Blocked {
			// Dropped silently: telling the sender would leak the block
			// itself, the thing the recipient blocked them to avoid.
			return
		}
		s.fanoutToUser(tu, out, sess)
	})
	return nil
}
