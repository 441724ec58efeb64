package main

import "fmt"

// UserError and GroupError are the two "user-class" error families the
// dispatcher treats as non-fatal protocol errors (spec §4.3, §7): they
// surface to the client as a reason string instead of a generic internal
// failure.

// UserError reports a problem with a user-targeted operation (e.g. signon,
// register, whois) that should be shown to the client as-is.
type UserError struct{ Reason string }

func (e *UserError) Error() string { return e.Reason }

// GroupAdditionError reports member_add being called on a user already a
// member of the group.
type GroupAdditionError struct{ Group, User string }

func (e *GroupAdditionError) Error() string {
	return fmt.Sprintf("%s is already a member of %s", e.User, e.Group)
}

// GroupRemovalError reports member_del being called on a user not a member.
type GroupRemovalError struct{ Group, User string }

func (e *GroupRemovalError) Error() string {
	return fmt.Sprintf("%s is not a member of %s", e.User, e.Group)
}

// CommandNotImplementedError is returned by a Handler entry point that does
// not apply to the calling connection's kind (spec §4.3). It is caught by
// the dispatcher and turned into a RegisteredOnly/UnregisteredOnly error.
type CommandNotImplementedError struct{}

func (e *CommandNotImplementedError) Error() string { return "not implemented" }

// CommandACLError reports a grant-check failure for a specific ACL verb
// (spec §4.5).
type CommandACLError struct{ Verb string }

func (e *CommandACLError) Error() string { return "No permission to alter ACL" }

// ACLExistsError reports acl-set add on a verb the subject already holds.
type ACLExistsError struct{ Verb string }

func (e *ACLExistsError) Error() string { return fmt.Sprintf("ACL %q already granted", e.Verb) }

// ACLDoesNotExistError reports acl-del on a verb the subject does not hold.
type ACLDoesNotExistError struct{ Verb string }

func (e *ACLDoesNotExistError) Error() string { return fmt.Sprintf("ACL %q not granted", e.Verb) }

// ACLValueError reports an ACL verb outside the closed enumeration (spec §3,§4.5).
type ACLValueError struct{ Verb string }

func (e *ACLValueError) Error() string { return fmt.Sprintf("unknown ACL verb %q", e.Verb) }

// PropertyDoesNotExistError reports property-del/get on an unset property.
type PropertyDoesNotExistError struct{ Property string }

func (e *PropertyDoesNotExistError) Error() string {
	return fmt.Sprintf("property %q is not set", e.Property)
}

// PropertyValueError reports a value the property's coercer rejected.
type PropertyValueError struct{ Property, Reason string }

func (e *PropertyValueError) Error() string {
	return fmt.Sprintf("invalid value for property %q: %s", e.Property, e.Reason)
}

// StorageBackendNotFoundError reports a target resolved to no storage row
// and no live in-memory object.
type StorageBackendNotFoundError struct{ Name string }

func (e *StorageBackendNotFoundError) Error() string { return "no such target" }
