package main

import "time"

// Group is a named channel (`#name`, case-folded): its ACL, property, and
// member sets, and its topic. Spec §4.4 — created on first join of a valid
// name, persisted, never implicitly destroyed.
type Group struct {
	Name       string // canonical, case-folded, includes leading '#'
	Topic      string
	ACL        *ACL // the group's default grant, subject "*"
	MemberACL  map[string]*ACL // per-subject overrides, keyed by canonical handle
	Properties *PropertySet
	Members    map[*User]bool
	CreatedAt  time.Time
}

// NewGroup constructs an empty Group named name.
func NewGroup(name string) *Group {
	return &Group{
		Name:       canonicalize(name),
		ACL:        NewACL(),
		MemberACL:  map[string]*ACL{},
		Properties: NewGroupPropertySet(),
		Members:    map[*User]bool{},
		CreatedAt:  time.Now(),
	}
}

// AddMember records u as a member. The caller is responsible for also
// calling u.JoinGroup(g).
func (g *Group) AddMember(u *User) {
	g.Members[u] = true
}

// RemoveMember drops u from the member set.
func (g *Group) RemoveMember(u *User) {
	delete(g.Members, u)
}

// HasMember reports whether u is a member.
func (g *Group) HasMember(u *User) bool {
	return g.Members[u]
}

// MemberCount returns the number of members.
func (g *Group) MemberCount() int {
	return len(g.Members)
}

// SetTopic updates the topic. Write-through persistence is handled by the
// caller, same as User.SetGecos.
func (g *Group) SetTopic(topic string) {
	g.Topic = topic
}

// HasDefaultACL reports whether verb is held in the group's default ACL
// (subject "*"). Per-subject grants in MemberACL are not consulted; use
// combinedACLFor for the merged view.
func (g *Group) HasDefaultACL(verb string) bool {
	return g.ACL.Has(verb)
}

// combinedACLFor merges the group's default grant with handle's own
// per-subject overrides, for use by the grant check (spec §4.5: a setter's
// authority on a group target is default-grant-or-own-grant).
func (g *Group) combinedACLFor(handle string) *ACL {
	combined := NewACL()
	for v, gr := range g.ACL.entries {
		combined.entries[v] = gr
	}
	if m, ok := g.MemberACL[canonicalize(handle)]; ok {
		for v, gr := range m.entries {
			combined.entries[v] = gr
		}
	}
	return combined
}
