package main

import (
	"regexp"
	"strings"
	"time"
)

// handlePattern implements the target-name grammar: the first byte excludes
// the group sigil and the reserved wire characters, the rest excludes only
// the reserved wire characters. Group names are the same grammar prefixed
// with '#', checked separately by validGroupName.
var handlePattern = regexp.MustCompile(`^[^#!=&$,?*\[\]][^=$,?*\[\]]+$`)
var bodyPattern = regexp.MustCompile(`^[^=$,?*\[\]]+$`)

// validHandle reports whether name is a syntactically valid user handle.
func validHandle(name string) bool {
	return len(name) <= 48 && handlePattern.MatchString(name)
}

// validGroupName reports whether name is a syntactically valid group name:
// a leading '#' followed by a valid handle body.
func validGroupName(name string) bool {
	if len(name) == 0 || name[0] != '#' || len(name) > 48 {
		return false
	}
	return bodyPattern.MatchString(name[1:])
}

// User is a registered handle: its ACL, property, and roster sets, the
// groups it has joined, and the sessions currently signed on as it. Spec
// §4.4 — shares ownership of its ACL/property/roster sets, and owns its
// Sessions only for the duration of their connection.
type User struct {
	Name       string // canonical, case-folded
	Gecos      string
	PasswordHash string
	ACL        *ACL
	Properties *PropertySet
	Roster     *Roster
	Groups     map[string]*Group // case-folded name -> Group, joined set
	Sessions   map[*Session]bool
	Options    []string
	SignonTime time.Time
}

// NewUser constructs an empty User for handle.
func NewUser(handle, gecos, passwordHash string) *User {
	return &User{
		Name:         canonicalize(handle),
		Gecos:        gecos,
		PasswordHash: passwordHash,
		ACL:          NewACL(),
		Properties:   NewUserPropertySet(),
		Roster:       NewRoster(),
		Groups:       map[string]*Group{},
		Sessions:     map[*Session]bool{},
	}
}

// canonicalize folds a handle/group name to its case-insensitive key form.
func canonicalize(name string) string {
	return strings.ToLower(name)
}

// AddSession attaches sess as one of this user's live connections.
func (u *User) AddSession(sess *Session) {
	u.Sessions[sess] = true
}

// RemoveSession detaches sess. Reports whether the user has no sessions left.
func (u *User) RemoveSession(sess *Session) bool {
	delete(u.Sessions, sess)
	return len(u.Sessions) == 0
}

// IsOnline reports whether the user has at least one live session.
func (u *User) IsOnline() bool {
	return len(u.Sessions) > 0
}

// JoinGroup records membership in g. The caller is responsible for also
// adding u to g's member set.
func (u *User) JoinGroup(g *Group) {
	u.Groups[g.Name] = g
}

// LeaveGroup removes membership in the group named by canonical name.
func (u *User) LeaveGroup(name string) {
	delete(u.Groups, canonicalize(name))
}

// InGroup reports whether the user has joined the named group.
func (u *User) InGroup(name string) bool {
	_, ok := u.Groups[canonicalize(name)]
	return ok
}

// SetGecos updates the in-memory display name only. Persisting the change
// (store.SetUserGecos) is the caller's responsibility.
func (u *User) SetGecos(gecos string) {
	u.Gecos = gecos
}

// SetPasswordHash updates the stored password hash.
func (u *User) SetPasswordHash(hash string) {
	u.PasswordHash = hash
}
