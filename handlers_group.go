package main

import "dcp/server/frame"

func init() {
	registerHandler("group-enter", groupEnterHandlerImpl{})
	registerHandler("group-exit", groupExitHandlerImpl{})
}

// groupEnterHandlerImpl implements group-enter: joins the target group,
// creating it first if this is the first member ever to join (spec §4.4).
type groupEnterHandlerImpl struct{ baseHandler }

func (groupEnterHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	target := f.Target
	if !validGroupName(target) {
		return &UserError{Reason: "invalid group name"}
	}
	canon := canonicalize(target)

	s.resolveTarget(canon, func(_ *User, g *Group, err error) {
		if err != nil {
			if _, ok := err.(*StorageBackendNotFoundError); !ok {
				s.surfaceError(sess, f, err)
				return
			}
			g = s.createGroup(canon)
		}
		if err := s.memberAdd(g, u, sess, f.Get("reason")); err != nil {
			s.surfaceError(sess, f, err)
		}
	})
	return nil
}

// groupExitHandlerImpl implements group-exit: leaves the target group.
type groupExitHandlerImpl struct{ baseHandler }

func (groupExitHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	target := f.Target
	canon := canonicalize(target)
	g, ok := s.groups[canon]
	if !ok {
		return &GroupRemovalError{Group: canon, User: u.Name}
	}
	return s.memberDel(g, u, sess, f.Get("reason"), false)
}
