package main

import "dcp/server/async"

// RosterEntry is one remembered peer in a user's roster: a user or group
// target, an alias, a grouping tag, and block/pending flags. Blocked is
// read from both sides of a message send: on the sender's own roster it
// rejects the send outright (visible error), and on the recipient's
// roster it drops the message with no error frame at all, so the sender
// can't probe their block status by watching for a rejection. Neither
// side of this is prototype behavior — supplemented, since the
// prototype's roster/message code never checked blocking.
type RosterEntry struct {
	Target   string
	Alias    string
	GroupTag string
	Pending  bool
	Blocked  bool
}

// Roster is the in-memory set of an entity's remembered peers, backed by
// the same generic store as the rest of the entity graph's keyed lookups.
type Roster struct {
	set *async.Set[RosterEntry]
}

// NewRoster returns an empty Roster.
func NewRoster() *Roster {
	return &Roster{set: async.NewSet[RosterEntry]()}
}

// Has reports whether target is in the roster.
func (r *Roster) Has(target string) bool {
	return r.set.Has(target)
}

// Get returns the roster entry for target.
func (r *Roster) Get(target string) (*RosterEntry, bool) {
	return r.set.Get(target)
}

// Add inserts a new roster entry for target. Returns an error if present.
func (r *Roster) Add(target string, e RosterEntry) error {
	if r.Has(target) {
		return &UserError{Reason: target + " is already on the roster"}
	}
	r.set.Add(target, &e)
	return nil
}

// Set updates an existing roster entry in place. Returns an error if absent.
func (r *Roster) Set(target string, e RosterEntry) error {
	if !r.set.Set(target, &e) {
		return &UserError{Reason: target + " is not on the roster"}
	}
	return nil
}

// Delete removes target from the roster. Returns an error if absent.
func (r *Roster) Delete(target string) error {
	if !r.Has(target) {
		return &UserError{Reason: target + " is not on the roster"}
	}
	r.set.Delete(target)
	return nil
}

// Targets returns every roster target, in no particular order.
func (r *Roster) Targets() []string {
	out := make([]string, 0, r.set.Len())
	r.set.Range(func(key string, _ *RosterEntry) {
		out = append(out, key)
	})
	return out
}

// IsBlocked reports whether target is present and flagged blocked.
func (r *Roster) IsBlocked(target string) bool {
	e, ok := r.set.Get(target)
	return ok && e.Blocked
}
