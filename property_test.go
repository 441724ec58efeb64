package main

import "testing"

func TestPropertySetLifecycle(t *testing.T) {
	p := NewUserPropertySet()

	if _, err := p.Get("wallops"); err == nil {
		t.Fatal("expected PropertyDoesNotExistError on fresh set")
	}

	if _, err := p.Set("wallops", "", "alice"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := p.Get("wallops")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Setter != "alice" {
		t.Errorf("unexpected value: %+v", v)
	}

	if _, err := p.Set("wallops", "on", "alice"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, _ = p.Get("wallops")
	if v.Value != "on" {
		t.Errorf("expected overwrite, got %q", v.Value)
	}

	if err := p.Delete("wallops"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := p.Delete("wallops"); err == nil {
		t.Fatal("expected PropertyDoesNotExistError on double delete")
	}
}

func TestPropertySetCoercion(t *testing.T) {
	up := NewUserPropertySet()

	if _, err := up.Set("nonsense", "x", "alice"); err == nil {
		t.Error("expected PropertyValueError for an unrecognized property")
	}

	if _, err := up.Set("banned", "not-a-number", "root"); err == nil {
		t.Error("expected PropertyValueError for a non-integer banned value")
	}
	coerced, err := up.Set("banned", "86400", "root")
	if err != nil {
		t.Fatalf("Set banned: %v", err)
	}
	if coerced != "86400" {
		t.Errorf("expected coerced int string, got %q", coerced)
	}

	gp := NewGroupPropertySet()
	if _, err := gp.Set("topic", "welcome", "alice"); err != nil {
		t.Fatalf("Set topic: %v", err)
	}
	if _, err := gp.Set("banned", "1", "alice"); err == nil {
		t.Error("expected PropertyValueError for a property outside the group enum")
	}
}

func TestUserPropertyVisibility(t *testing.T) {
	auspexACL := NewACL()
	auspexACL.Grant("user:auspex", "root", "")
	plainACL := NewACL()

	if !userPropertyVisibleTo("alice", "alice", plainACL) {
		t.Error("owner should always see their own properties")
	}
	if userPropertyVisibleTo("bob", "alice", plainACL) {
		t.Error("non-owner without user:auspex should not see properties")
	}
	if !userPropertyVisibleTo("bob", "alice", auspexACL) {
		t.Error("non-owner with user:auspex should see properties")
	}
}

func TestGroupPropertyVisibility(t *testing.T) {
	auspexACL := NewACL()
	auspexACL.Grant("group:auspex", "root", "")
	plainACL := NewACL()

	if !groupPropertyVisibleTo(true, plainACL) {
		t.Error("member should see group properties")
	}
	if groupPropertyVisibleTo(false, plainACL) {
		t.Error("non-member without group:auspex should not see properties")
	}
	if !groupPropertyVisibleTo(false, auspexACL) {
		t.Error("non-member with group:auspex should see properties")
	}
}
