package main

import "dcp/server/frame"

func init() {
	registerHandler("property-set", propertySetHandlerImpl{})
	registerHandler("property-del", propertyDelHandlerImpl{})
	registerHandler("property-list", propertyListHandlerImpl{})
}

// propertySetHandlerImpl implements property-set: the same grant check as
// acl-set, but mutating the property set instead (spec §4.5, §4.6).
type propertySetHandlerImpl struct{ baseHandler }

func (propertySetHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	property := f.Get("property")
	value := f.Get("value")
	if property == "" {
		return &UserError{Reason: "property name is required"}
	}

	target := f.Target
	if len(target) > 0 && target[0] == '#' {
		canon := canonicalize(target)
		g, ok := s.groups[canon]
		if !ok {
			return &StorageBackendNotFoundError{Name: canon}
		}
		if !g.HasMember(u) {
			return &CommandACLError{Verb: "property"}
		}
		if err := checkGroupGrant(g.combinedACLFor(u.Name), "property"); err != nil {
			return err
		}
		coerced, cerr := g.Properties.Set(property, value, u.Name)
		if cerr != nil {
			return cerr
		}
		s.persistGroupProperty(canon, property, coerced, u.Name)
		s.broadcastPropertyChange(g, nil, "property-set", property, coerced, u.Name)
		return nil
	}

	s.resolveTarget(target, func(tu *User, _ *Group, err error) {
		if err != nil {
			s.surfaceError(sess, f, err)
			return
		}
		if tu.Name != u.Name {
			if derr := checkUserGrant(u.ACL, "user:grant"); derr != nil {
				s.surfaceError(sess, f, &CommandACLError{Verb: "property"})
				return
			}
		}
		coerced, cerr := tu.Properties.Set(property, value, u.Name)
		if cerr != nil {
			s.surfaceError(sess, f, cerr)
			return
		}
		s.persistUserProperty(tu.Name, property, coerced, u.Name)
		s.broadcastPropertyChange(nil, tu, "property-set", property, coerced, u.Name)
	})
	return nil
}

// propertyDelHandlerImpl implements property-del.
type propertyDelHandlerImpl struct{ baseHandler }

func (propertyDelHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	property := f.Get("property")
	if property == "" {
		return &UserError{Reason: "property name is required"}
	}

	target := f.Target
	if len(target) > 0 && target[0] == '#' {
		canon := canonicalize(target)
		g, ok := s.groups[canon]
		if !ok {
			return &StorageBackendNotFoundError{Name: canon}
		}
		if !g.HasMember(u) {
			return &CommandACLError{Verb: "property"}
		}
		if err := checkGroupGrant(g.combinedACLFor(u.Name), "property"); err != nil {
			return err
		}
		if err := g.Properties.Delete(property); err != nil {
			return err
		}
		s.persistGroupPropertyDelete(canon, property)
		s.broadcastPropertyChange(g, nil, "property-del", property, "", u.Name)
		return nil
	}

	s.resolveTarget(target, func(tu *User, _ *Group, err error) {
		if err != nil {
			s.surfaceError(sess, f, err)
			return
		}
		if tu.Name != u.Name {
			if derr := checkUserGrant(u.ACL, "user:grant"); derr != nil {
				s.surfaceError(sess, f, &CommandACLError{Verb: "property"})
				return
			}
		}
		if derr := tu.Properties.Delete(property); derr != nil {
			s.surfaceError(sess, f, derr)
			return
		}
		s.persistUserPropertyDelete(tu.Name, property)
		s.broadcastPropertyChange(nil, tu, "property-del", property, "", u.Name)
	})
	return nil
}

// propertyListHandlerImpl implements property-list, with the visibility
// policy from §4.6: a user's properties require self or user:auspex; a
// group's require membership or group:auspex.
type propertyListHandlerImpl struct{ baseHandler }

func (propertyListHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	target := f.Target
	s.resolveTarget(target, func(tu *User, tg *Group, err error) {
		if err != nil {
			s.surfaceError(sess, f, err)
			return
		}

		var names []string
		if tg != nil {
			if !groupPropertyVisibleTo(tg.HasMember(u), u.ACL) {
				s.surfaceError(sess, f, &CommandACLError{Verb: "property"})
				return
			}
			names = tg.Properties.Properties()
		} else {
			if !userPropertyVisibleTo(u.Name, tu.Name, u.ACL) {
				s.surfaceError(sess, f, &CommandACLError{Verb: "property"})
				return
			}
			names = tu.Properties.Properties()
		}
		_ = sess.SendMultipart("=server", target, "property-list", []string{"property"}, map[string][]string{"property": names})
	})
	return nil
}
