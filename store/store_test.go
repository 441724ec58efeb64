package store

import (
	"database/sql"
	"testing"
)

// newMemStore opens an in-memory SQLite database, runs migrations, and returns
// the store. The database is discarded when the test process exits.
func newMemStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsApplied verifies that after opening a fresh database every
// migration has been recorded in schema_migrations.
func TestMigrationsApplied(t *testing.T) {
	s := newMemStore(t)

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query schema_migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

// TestMigrationsIdempotent verifies that re-running migrate() does not
// re-apply migrations already recorded.
func TestMigrationsIdempotent(t *testing.T) {
	s := newMemStore(t)

	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d rows after second migrate, got %d", len(migrations), count)
	}
}

// TestGetSetSetting verifies the basic read/write contract of the settings
// table.
func TestGetSetSetting(t *testing.T) {
	s := newMemStore(t)

	val, ok, err := s.GetSetting("server_name")
	if err != nil {
		t.Fatalf("GetSetting missing key: %v", err)
	}
	if ok {
		t.Errorf("expected ok=false for missing key, got %q", val)
	}

	if err := s.SetSetting("server_name", "My Server"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}

	val, ok, err = s.GetSetting("server_name")
	if err != nil {
		t.Fatalf("GetSetting after set: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true after set")
	}
	if val != "My Server" {
		t.Errorf("expected %q, got %q", "My Server", val)
	}
}

// TestSetSettingUpsert verifies that SetSetting overwrites an existing value.
func TestSetSettingUpsert(t *testing.T) {
	s := newMemStore(t)

	if err := s.SetSetting("x", "first"); err != nil {
		t.Fatal(err)
	}
	if err := s.SetSetting("x", "second"); err != nil {
		t.Fatal(err)
	}

	val, ok, err := s.GetSetting("x")
	if err != nil || !ok {
		t.Fatalf("GetSetting: val=%q ok=%v err=%v", val, ok, err)
	}
	if val != "second" {
		t.Errorf("expected %q after upsert, got %q", "second", val)
	}
}

// --- Users ---

func TestCreateAndGetUser(t *testing.T) {
	s := newMemStore(t)

	if err := s.CreateUser("alice", "Alice A", "hash1"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	u, err := s.GetUser("alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.Handle != "alice" || u.Gecos != "Alice A" || u.PasswordHash != "hash1" {
		t.Errorf("unexpected user row: %+v", u)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newMemStore(t)

	_, err := s.GetUser("nobody")
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestCreateUserDuplicateHandle(t *testing.T) {
	s := newMemStore(t)

	if err := s.CreateUser("bob", "", "h"); err != nil {
		t.Fatalf("first CreateUser: %v", err)
	}
	if err := s.CreateUser("bob", "", "h2"); err == nil {
		t.Fatal("expected error on duplicate handle")
	}
}

func TestSetUserGecos(t *testing.T) {
	s := newMemStore(t)
	s.CreateUser("carol", "Carol", "h")

	if err := s.SetUserGecos("carol", "Carol C"); err != nil {
		t.Fatalf("SetUserGecos: %v", err)
	}
	u, _ := s.GetUser("carol")
	if u.Gecos != "Carol C" {
		t.Errorf("expected updated gecos, got %q", u.Gecos)
	}
}

func TestSetUserGecosNotFound(t *testing.T) {
	s := newMemStore(t)
	if err := s.SetUserGecos("ghost", "X"); err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	s := newMemStore(t)
	s.CreateUser("dave", "", "h")
	s.AddUserACL("dave", "oper", "root", "")
	s.SetUserProperty("dave", "auspex", "true", "dave")
	s.AddRosterEntry(RosterEntry{Owner: "dave", Target: "erin"})

	if err := s.DeleteUser("dave"); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	if _, err := s.GetUser("dave"); err != sql.ErrNoRows {
		t.Errorf("expected user gone, got %v", err)
	}
	acls, _ := s.GetUserACLs("dave")
	if len(acls) != 0 {
		t.Errorf("expected ACL rows purged, got %v", acls)
	}
	props, _ := s.GetUserProperties("dave")
	if len(props) != 0 {
		t.Errorf("expected property rows purged, got %v", props)
	}
	roster, _ := s.GetRoster("dave")
	if len(roster) != 0 {
		t.Errorf("expected roster rows purged, got %v", roster)
	}
}

// --- Groups ---

func TestCreateAndGetGroup(t *testing.T) {
	s := newMemStore(t)

	if err := s.CreateGroup("#general"); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	g, err := s.GetGroup("#general")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if g.Name != "#general" || g.Topic != "" {
		t.Errorf("unexpected group row: %+v", g)
	}
}

func TestSetGroupTopic(t *testing.T) {
	s := newMemStore(t)
	s.CreateGroup("#general")

	if err := s.SetGroupTopic("#general", "welcome"); err != nil {
		t.Fatalf("SetGroupTopic: %v", err)
	}
	g, _ := s.GetGroup("#general")
	if g.Topic != "welcome" {
		t.Errorf("expected topic %q, got %q", "welcome", g.Topic)
	}
}

func TestDeleteGroupCascades(t *testing.T) {
	s := newMemStore(t)
	s.CreateGroup("#temp")
	s.AddGroupACL("#temp", "*", "speak", "root", "")
	s.SetGroupProperty("#temp", "topic-lock", "true", "root")

	if err := s.DeleteGroup("#temp"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if _, err := s.GetGroup("#temp"); err != sql.ErrNoRows {
		t.Errorf("expected group gone, got %v", err)
	}
	acls, _ := s.GetGroupACLs("#temp")
	if len(acls) != 0 {
		t.Errorf("expected group ACL rows purged, got %v", acls)
	}
}

// --- ACL ---

func TestUserACLLifecycle(t *testing.T) {
	s := newMemStore(t)
	s.CreateUser("alice", "", "h")

	if err := s.AddUserACL("alice", "oper", "root", "trusted"); err != nil {
		t.Fatalf("AddUserACL: %v", err)
	}
	if err := s.AddUserACL("alice", "oper", "root", "trusted"); err == nil {
		t.Fatal("expected error on duplicate grant")
	}

	acls, err := s.GetUserACLs("alice")
	if err != nil || len(acls) != 1 || acls[0].Verb != "oper" {
		t.Fatalf("GetUserACLs: %v %v", acls, err)
	}

	if err := s.DeleteUserACL("alice", "oper"); err != nil {
		t.Fatalf("DeleteUserACL: %v", err)
	}
	if err := s.DeleteUserACL("alice", "oper"); err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows on second delete, got %v", err)
	}
}

func TestGroupACLLifecycle(t *testing.T) {
	s := newMemStore(t)
	s.CreateGroup("#general")

	if err := s.AddGroupACL("#general", "*", "speak", "root", ""); err != nil {
		t.Fatalf("AddGroupACL default: %v", err)
	}
	if err := s.AddGroupACL("#general", "alice", "admin", "root", ""); err != nil {
		t.Fatalf("AddGroupACL alice: %v", err)
	}

	acls, err := s.GetGroupACLs("#general")
	if err != nil || len(acls) != 2 {
		t.Fatalf("GetGroupACLs: %v %v", acls, err)
	}

	if err := s.DeleteGroupACL("#general", "alice", "admin"); err != nil {
		t.Fatalf("DeleteGroupACL: %v", err)
	}
	acls, _ = s.GetGroupACLs("#general")
	if len(acls) != 1 {
		t.Errorf("expected 1 ACL row remaining, got %d", len(acls))
	}
}

// --- Properties ---

func TestUserPropertyUpsert(t *testing.T) {
	s := newMemStore(t)
	s.CreateUser("alice", "", "h")

	if err := s.SetUserProperty("alice", "auspex", "self", "alice"); err != nil {
		t.Fatalf("SetUserProperty: %v", err)
	}
	if err := s.SetUserProperty("alice", "auspex", "membership", "alice"); err != nil {
		t.Fatalf("SetUserProperty overwrite: %v", err)
	}

	props, err := s.GetUserProperties("alice")
	if err != nil || len(props) != 1 || props[0].Value != "membership" {
		t.Fatalf("GetUserProperties: %v %v", props, err)
	}

	if err := s.DeleteUserProperty("alice", "auspex"); err != nil {
		t.Fatalf("DeleteUserProperty: %v", err)
	}
	if err := s.DeleteUserProperty("alice", "auspex"); err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestGroupPropertyUpsert(t *testing.T) {
	s := newMemStore(t)
	s.CreateGroup("#general")

	if err := s.SetGroupProperty("#general", "topic-lock", "true", "root"); err != nil {
		t.Fatalf("SetGroupProperty: %v", err)
	}
	props, err := s.GetGroupProperties("#general")
	if err != nil || len(props) != 1 || props[0].Value != "true" {
		t.Fatalf("GetGroupProperties: %v %v", props, err)
	}
}

// --- Roster ---

func TestRosterLifecycle(t *testing.T) {
	s := newMemStore(t)
	s.CreateUser("alice", "", "h")

	e := RosterEntry{Owner: "alice", Target: "bob", Alias: "bobby", GroupTag: "friends"}
	if err := s.AddRosterEntry(e); err != nil {
		t.Fatalf("AddRosterEntry: %v", err)
	}
	if err := s.AddRosterEntry(e); err == nil {
		t.Fatal("expected error on duplicate roster entry")
	}

	entries, err := s.GetRoster("alice")
	if err != nil || len(entries) != 1 || entries[0].Alias != "bobby" {
		t.Fatalf("GetRoster: %v %v", entries, err)
	}

	e.Blocked = true
	if err := s.SetRosterEntry(e); err != nil {
		t.Fatalf("SetRosterEntry: %v", err)
	}
	entries, _ = s.GetRoster("alice")
	if !entries[0].Blocked {
		t.Errorf("expected blocked=true after update")
	}

	if err := s.DeleteRosterEntry("alice", "bob"); err != nil {
		t.Fatalf("DeleteRosterEntry: %v", err)
	}
	entries, _ = s.GetRoster("alice")
	if len(entries) != 0 {
		t.Errorf("expected empty roster after delete, got %v", entries)
	}
}

func TestSetRosterEntryNotFound(t *testing.T) {
	s := newMemStore(t)
	err := s.SetRosterEntry(RosterEntry{Owner: "alice", Target: "ghost"})
	if err != sql.ErrNoRows {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}
