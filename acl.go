package main

import "strings"

// User-scope and group-scope ACL verbs are drawn from closed enumerations;
// anything outside them is rejected at the set layer with ACLValueError.
// Modeled on the verb lists acl.py enforces for grant/revoke.
var userACLVerbs = map[string]bool{
	"user:auspex":          true,
	"user:register":        true,
	"user:revoke":          true,
	"user:grant":           true,
	"user:disconnect":      true,
	"user:ban":             true,
	"group:auspex":         true,
	"group:register":       true,
	"group:override":       true,
	"group:revoke":         true,
	"group:ban":            true,
	"prohibit:ban":         true,
	"prohibit:usermessage": true,
}

var groupACLVerbs = map[string]bool{
	"kick":         true,
	"ban":          true,
	"mute":         true,
	"voice":        true,
	"invex":        true,
	"topic":        true,
	"property":     true,
	"clear":        true,
	"owner":        true,
	"admin":        true,
	"op":           true,
	"halfop":       true,
	"grant":        true,
	"prohibit:ban": true,
	"prohibit:mute": true,
}

// isValidUserACLVerb reports whether verb is a recognized user-scope verb.
func isValidUserACLVerb(verb string) bool {
	return userACLVerbs[verb]
}

// isValidGroupACLVerb reports whether verb is a recognized group-scope verb,
// including the scoped grant:<verb> form.
func isValidGroupACLVerb(verb string) bool {
	if groupACLVerbs[verb] {
		return true
	}
	if scoped, ok := strings.CutPrefix(verb, "grant:"); ok {
		return scoped == "*" || groupACLVerbs[scoped] || userACLVerbs[scoped]
	}
	return false
}

// ACL is the in-memory set of verbs granted to one subject, backed by
// write-through persistence. It is the Go analogue of the prototype's
// StorageSet specialised to ACL rows: add/set/has/delete all go through
// the same (subject, verb) key, with the database kept eventually
// consistent via the async storage façade.
type ACL struct {
	entries map[string]ACLGrant
}

// ACLGrant records who granted a verb and why.
type ACLGrant struct {
	Setter string
	Reason string
}

// NewACL returns an empty ACL set.
func NewACL() *ACL {
	return &ACL{entries: map[string]ACLGrant{}}
}

// Has reports whether verb is granted.
func (a *ACL) Has(verb string) bool {
	_, ok := a.entries[verb]
	return ok
}

// Get returns the grant record for verb.
func (a *ACL) Get(verb string) (ACLGrant, bool) {
	g, ok := a.entries[verb]
	return g, ok
}

// Grant adds verb to the set. Returns ACLExistsError if already held.
func (a *ACL) Grant(verb, setter, reason string) error {
	if a.Has(verb) {
		return &ACLExistsError{Verb: verb}
	}
	a.entries[verb] = ACLGrant{Setter: setter, Reason: reason}
	return nil
}

// Revoke removes verb from the set. Returns ACLDoesNotExistError if absent.
func (a *ACL) Revoke(verb string) error {
	if !a.Has(verb) {
		return &ACLDoesNotExistError{Verb: verb}
	}
	delete(a.entries, verb)
	return nil
}

// Verbs returns every granted verb, in no particular order.
func (a *ACL) Verbs() []string {
	out := make([]string, 0, len(a.entries))
	for v := range a.entries {
		out = append(out, v)
	}
	return out
}

// HasAnyGrantVerb reports whether the set authorizes mutating verb via a
// group-scope grant check: holding "grant", "grant:*", or "grant:<verb>".
func (a *ACL) HasAnyGrantVerb(verb string) bool {
	return a.Has("grant") || a.Has("grant:*") || a.Has("grant:"+verb)
}

// checkGroupGrant implements the §4.5 grant check for a group target: the
// setter must be a member (checked by the caller, which has the roster) and
// must hold grant/grant:*/grant:<verb>.
func checkGroupGrant(setterACL *ACL, verb string) error {
	if setterACL == nil || !setterACL.HasAnyGrantVerb(verb) {
		return &CommandACLError{Verb: verb}
	}
	return nil
}

// checkUserGrant implements the §4.5 grant check for a user target: the
// setter must hold user:grant and the verb being granted itself.
func checkUserGrant(setterACL *ACL, verb string) error {
	if setterACL == nil || !setterACL.Has("user:grant") || !setterACL.Has(verb) {
		return &CommandACLError{Verb: verb}
	}
	return nil
}
