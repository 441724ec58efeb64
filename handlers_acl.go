package main

import "dcp/server/frame"

func init() {
	registerHandler("acl-set", aclSetHandlerImpl{})
	registerHandler("acl-del", aclDelHandlerImpl{})
	registerHandler("acl-list", aclListHandlerImpl{})
}

// aclTarget resolves an acl-set/acl-del/acl-list target per the Open
// Question (ii) rule: target[0]=='#' is authoritative for a group target,
// and a group mutation is scoped to an explicit "user" key (subject "*" if
// absent) rather than ever inferring a user target from `line.target`.
func aclTarget(f frame.Frame) (isGroup bool, groupName, subject string) {
	target := f.Target
	if len(target) > 0 && target[0] == '#' {
		subject = f.Get("user")
		if subject == "" {
			subject = "*"
		} else {
			subject = canonicalize(subject)
		}
		return true, canonicalize(target), subject
	}
	return false, "", canonicalize(target)
}

// aclSetHandlerImpl implements acl-set (spec §4.5, §4.6, scenario 4).
type aclSetHandlerImpl struct{ baseHandler }

func (aclSetHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	verb := f.Get("acl")
	reason := f.Get("reason")
	if verb == "" {
		return &UserError{Reason: "acl verb is required"}
	}

	isGroup, groupName, subject := aclTarget(f)
	if isGroup {
		g, ok := s.groups[groupName]
		if !ok {
			return &StorageBackendNotFoundError{Name: groupName}
		}
		if !isValidGroupACLVerb(verb) {
			return &ACLValueError{Verb: verb}
		}
		if !g.HasMember(u) {
			return &CommandACLError{Verb: verb}
		}
		if err := checkGroupGrant(g.combinedACLFor(u.Name), verb); err != nil {
			return err
		}

		target := g.MemberACL[subject]
		if subject != "*" {
			if target == nil {
				target = NewACL()
				g.MemberACL[subject] = target
			}
		} else {
			target = g.ACL
		}
		if err := target.Grant(verb, u.Name, reason); err != nil {
			return err
		}

		s.persistGroupACLGrant(groupName, subject, verb, u.Name, reason)
		s.broadcastACLChange(g, nil, "acl-set", subject, verb, u.Name)
		return nil
	}

	if !isValidUserACLVerb(verb) {
		return &ACLValueError{Verb: verb}
	}
	if err := checkUserGrant(u.ACL, verb); err != nil {
		return err
	}

	s.resolveTarget(subject, func(tu *User, _ *Group, err error) {
		if err != nil {
			s.surfaceError(sess, f, err)
			return
		}
		if gerr := tu.ACL.Grant(verb, u.Name, reason); gerr != nil {
			s.surfaceError(sess, f, gerr)
			return
		}
		s.persistUserACLGrant(tu.Name, verb, u.Name, reason)
		s.broadcastACLChange(nil, tu, "acl-set", tu.Name, verb, u.Name)
	})
	return nil
}

// aclDelHandlerImpl implements acl-del: the symmetric revoke of acl-set.
type aclDelHandlerImpl struct{ baseHandler }

func (aclDelHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	verb := f.Get("acl")
	if verb == "" {
		return &UserError{Reason: "acl verb is required"}
	}

	isGroup, groupName, subject := aclTarget(f)
	if isGroup {
		g, ok := s.groups[groupName]
		if !ok {
			return &StorageBackendNotFoundError{Name: groupName}
		}
		if !g.HasMember(u) {
			return &CommandACLError{Verb: verb}
		}
		if err := checkGroupGrant(g.combinedACLFor(u.Name), verb); err != nil {
			return err
		}
		target := g.ACL
		if subject != "*" {
			target, ok = g.MemberACL[subject]
			if !ok {
				return &ACLDoesNotExistError{Verb: verb}
			}
		}
		if err := target.Revoke(verb); err != nil {
			return err
		}
		s.persistGroupACLRevoke(groupName, subject, verb)
		s.broadcastACLChange(g, nil, "acl-del", subject, verb, u.Name)
		return nil
	}

	if err := checkUserGrant(u.ACL, verb); err != nil {
		return err
	}
	s.resolveTarget(subject, func(tu *User, _ *Group, err error) {
		if err != nil {
			s.surfaceError(sess, f, err)
			return
		}
		if rerr := tu.ACL.Revoke(verb); rerr != nil {
			s.surfaceError(sess, f, rerr)
			return
		}
		s.persistUserACLRevoke(tu.Name, verb)
		s.broadcastACLChange(nil, tu, "acl-del", tu.Name, verb, u.Name)
	})
	return nil
}

// aclListHandlerImpl implements acl-list: reports the granted verbs for a
// target, multipart-chunked since the set may be large.
type aclListHandlerImpl struct{ baseHandler }

func (aclListHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	target := f.Target
	s.resolveTarget(target, func(tu *User, tg *Group, err error) {
		if err != nil {
			s.surfaceError(sess, f, err)
			return
		}
		var verbs []string
		if tg != nil {
			verbs = tg.ACL.Verbs()
		} else {
			verbs = tu.ACL.Verbs()
		}
		_ = sess.SendMultipart("=server", target, "acl-list", []string{"acl"}, map[string][]string{"acl": verbs})
	})
	return nil
}
