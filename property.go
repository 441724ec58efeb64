package main

import "strconv"

// propertyKind is a property's value-coercer: None in the prototype's
// closed UserPropertyValues/GroupPropertyValues enums becomes propertyBool
// here (the value carries no meaning beyond the key's presence), otherwise
// it's the Go analogue of the enum's str/int type (spec §4.5).
type propertyKind int

const (
	propertyBool propertyKind = iota
	propertyString
	propertyInt
)

// userPropertyKinds and groupPropertyKinds are the closed property
// enumerations a user or group may carry, mirroring the prototype's
// UserPropertyValues/GroupPropertyValues.
var userPropertyKinds = map[string]propertyKind{
	"private": propertyBool,
	"wallops": propertyBool,
	"banned":  propertyInt,
}

var groupPropertyKinds = map[string]propertyKind{
	"private": propertyBool,
	"invite":  propertyString,
	"topic":   propertyString,
}

// coerceProperty rejects a property name outside kinds, and for a typed
// property rejects a value its coercer can't parse (spec §4.5: "the set
// layer coerces or rejects with PropertyValue on failure"). A boolean
// property carries no type coercion — the prototype stores whatever value
// it was given — so its value passes through unchanged.
func coerceProperty(kinds map[string]propertyKind, property, value string) (string, error) {
	kind, ok := kinds[property]
	if !ok {
		return "", &PropertyValueError{Property: property, Reason: "not a recognized property"}
	}
	if kind == propertyInt {
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", &PropertyValueError{Property: property, Reason: "must be an integer"}
		}
		return strconv.Itoa(n), nil
	}
	return value, nil
}

// PropertySet is the in-memory map of property→value for a user or group,
// backed by write-through persistence, mirroring the ACL set's shape (spec
// §4.5's property half of the entity graph). It is constructed bound to one
// of the two closed enumerations above, so Set rejects anything outside it.
type PropertySet struct {
	entries map[string]PropertyValue
	kinds   map[string]propertyKind
}

// PropertyValue records a stored property and who last set it.
type PropertyValue struct {
	Value  string
	Setter string
}

// NewUserPropertySet returns an empty PropertySet scoped to user properties.
func NewUserPropertySet() *PropertySet {
	return &PropertySet{entries: map[string]PropertyValue{}, kinds: userPropertyKinds}
}

// NewGroupPropertySet returns an empty PropertySet scoped to group properties.
func NewGroupPropertySet() *PropertySet {
	return &PropertySet{entries: map[string]PropertyValue{}, kinds: groupPropertyKinds}
}

// Has reports whether property is set.
func (p *PropertySet) Has(property string) bool {
	_, ok := p.entries[property]
	return ok
}

// Get returns property's stored value. Returns PropertyDoesNotExistError if unset.
func (p *PropertySet) Get(property string) (PropertyValue, error) {
	v, ok := p.entries[property]
	if !ok {
		return PropertyValue{}, &PropertyDoesNotExistError{Property: property}
	}
	return v, nil
}

// Set upserts property's value (add_or_set semantics) after running it
// through the family's coercer. Returns the coerced value actually stored,
// since a typed coercion (e.g. int normalization) may not echo the input
// byte-for-byte.
func (p *PropertySet) Set(property, value, setter string) (string, error) {
	coerced, err := coerceProperty(p.kinds, property, value)
	if err != nil {
		return "", err
	}
	p.entries[property] = PropertyValue{Value: coerced, Setter: setter}
	return coerced, nil
}

// SetRaw stores value verbatim, bypassing coercion — used only to replay
// rows already validated once at write time (server.go's storage inflate).
func (p *PropertySet) SetRaw(property, value, setter string) {
	p.entries[property] = PropertyValue{Value: value, Setter: setter}
}

// Delete removes property. Returns PropertyDoesNotExistError if unset.
func (p *PropertySet) Delete(property string) error {
	if !p.Has(property) {
		return &PropertyDoesNotExistError{Property: property}
	}
	delete(p.entries, property)
	return nil
}

// Properties returns every stored property name, in no particular order.
func (p *PropertySet) Properties() []string {
	out := make([]string, 0, len(p.entries))
	for k := range p.entries {
		out = append(out, k)
	}
	return out
}

// userPropertyVisibleTo and groupPropertyVisibleTo implement the visibility
// policy from spec §4.6:
// listing a user's properties requires the caller be that user or hold
// user:auspex; listing a group's requires membership or group:auspex.
func userPropertyVisibleTo(callerHandle, ownerHandle string, callerACL *ACL) bool {
	if callerHandle == ownerHandle {
		return true
	}
	return callerACL != nil && callerACL.Has("user:auspex")
}

func groupPropertyVisibleTo(isMember bool, callerACL *ACL) bool {
	if isMember {
		return true
	}
	return callerACL != nil && callerACL.Has("group:auspex")
}
