package main

import "dcp/server/frame"

func init() {
	registerHandler("whois", whoisHandlerImpl{})
	registerHandler("motd", motdHandlerImpl{})
}

// whoisHandlerImpl implements whois: handle and gecos are always public; IP,
// host, and ACL are disclosed only to a caller holding user:auspex; the
// groups list is disclosed to everyone but has its private groups (the
// group's own "private" property) filtered out unless the caller holds
// user:auspex (spec §4.6, scenario 5). Grounded on
// original_source/server/commands/whois.py, which builds the groups list
// unconditionally and filters it per-group against the caller's auspex
// grant, rather than gating the whole list behind it.
type whoisHandlerImpl struct{ baseHandler }

func (whoisHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	target := f.Target
	s.resolveTarget(target, func(tu *User, _ *Group, err error) {
		if err != nil {
			s.surfaceError(sess, f, err)
			return
		}

		out := frame.New("=server", tu.Name, "whois")
		out.Add("handle", tu.Name)
		out.Add("gecos", tu.Gecos)

		auspex := u.ACL.Has("user:auspex")
		if auspex {
			for sessOfTarget := range tu.Sessions {
				out.Add("ip", sessOfTarget.RemoteAddr)
				out.Add("host", sessOfTarget.RemoteHost)
			}
			for _, verb := range tu.ACL.Verbs() {
				out.Add("acl", verb)
			}
		}
		for name, g := range tu.Groups {
			if g.Properties.Has("private") && !auspex {
				continue
			}
			out.Add("groups", name)
		}

		_ = sendOrMultipart(sess, out, []string{"ip", "host", "acl", "groups"})
	})
	return nil
}

// motdHandlerImpl implements motd: the cached message-of-the-day text.
type motdHandlerImpl struct{ baseHandler }

func (motdHandlerImpl) Registered(s *Server, u *User, sess *Session, f frame.Frame) error {
	return s.sendMOTD(sess)
}
