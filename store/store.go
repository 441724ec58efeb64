// Package store provides persistent server state backed by an embedded
// SQLite database. It owns the database lifecycle and exposes one method
// family (add/get/set/delete) per entity kind in the data model: users,
// groups, their ACL and property rows, and roster entries.
//
// Migration design: SQL statements are kept in the [migrations] slice as
// ordered strings. Each is applied exactly once; the applied version is
// tracked in the schema_migrations table. To add a migration, append a new
// string — never edit or reorder existing entries.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"
)

// migrations holds the ordered list of DDL/DML statements that bring the
// schema up to date. Index i corresponds to version i+1.
var migrations = []string{
	// v1 — users
	`CREATE TABLE IF NOT EXISTS users (
		handle        TEXT PRIMARY KEY,
		gecos         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		signon_time   INTEGER NOT NULL DEFAULT 0,
		created_at    INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v2 — groups
	`CREATE TABLE IF NOT EXISTS groups (
		name       TEXT PRIMARY KEY,
		topic      TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch())
	)`,
	// v3 — user ACL rows
	`CREATE TABLE IF NOT EXISTS user_acl (
		handle     TEXT NOT NULL,
		verb       TEXT NOT NULL,
		setter     TEXT NOT NULL DEFAULT '',
		reason     TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch()),
		PRIMARY KEY (handle, verb)
	)`,
	// v4 — group ACL rows (subject is a user handle, or '*' for the group default)
	`CREATE TABLE IF NOT EXISTS group_acl (
		group_name TEXT NOT NULL,
		subject    TEXT NOT NULL,
		verb       TEXT NOT NULL,
		setter     TEXT NOT NULL DEFAULT '',
		reason     TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch()),
		PRIMARY KEY (group_name, subject, verb)
	)`,
	// v5 — user property rows
	`CREATE TABLE IF NOT EXISTS user_property (
		handle     TEXT NOT NULL,
		property   TEXT NOT NULL,
		value      TEXT NOT NULL DEFAULT '',
		setter     TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch()),
		PRIMARY KEY (handle, property)
	)`,
	// v6 — group property rows
	`CREATE TABLE IF NOT EXISTS group_property (
		group_name TEXT NOT NULL,
		property   TEXT NOT NULL,
		value      TEXT NOT NULL DEFAULT '',
		setter     TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (unixepoch()),
		PRIMARY KEY (group_name, property)
	)`,
	// v7 — roster entries. target is a user handle for a user-scoped entry or
	// a #group name for a group-scoped one; group_tag buckets peers within
	// the owner's own view and is unrelated to #group targets.
	`CREATE TABLE IF NOT EXISTS roster (
		owner     TEXT NOT NULL,
		target    TEXT NOT NULL,
		alias     TEXT NOT NULL DEFAULT '',
		group_tag TEXT NOT NULL DEFAULT '',
		pending   INTEGER NOT NULL DEFAULT 0,
		blocked   INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (owner, target)
	)`,
	// v8 — settings key/value store (MOTD, server name, and the like)
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	// v9, v10 — indexes for the lookups the dispatcher does on every message
	`CREATE INDEX IF NOT EXISTS idx_group_acl_group ON group_acl(group_name)`,
	`CREATE INDEX IF NOT EXISTS idx_roster_owner ON roster(owner)`,
	// v11 — enable WAL mode
	`PRAGMA journal_mode=WAL`,
}

// dbLock implements the single-writer/multi-reader discipline the storage
// layer is built around: a writer takes a starve-prevention gate before the
// real write lock so a steady stream of readers cannot starve it out.
// Every Store method takes it: reads take the shared side, and every write
// (including the multi-statement migration, delete-cascade and backup
// sequences) takes the exclusive side. The lock is per Store handle, so it
// does not serialize separate handles opened on the same database file.
type dbLock struct {
	mu         sync.RWMutex
	starveGate sync.Mutex
}

func (l *dbLock) rlock()   { l.mu.RLock() }
func (l *dbLock) runlock() { l.mu.RUnlock() }

func (l *dbLock) wlock() {
	l.starveGate.Lock()
	defer l.starveGate.Unlock()
	l.mu.Lock()
}
func (l *dbLock) wunlock() { l.mu.Unlock() }

// Store wraps a SQLite database and exposes the entity-family operations.
type Store struct {
	db   *sql.DB
	lock dbLock
}

// New opens (or creates) the SQLite database at path and applies any pending
// migrations. Use ":memory:" for ephemeral in-process storage — tests, and
// any async worker configured without durable persistence.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Allow multiple read connections but serialise writes.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	// Enable WAL mode for concurrent readers.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		log.Printf("[store] WAL mode: %v (non-fatal)", err)
	}
	// Busy timeout to avoid SQLITE_BUSY on concurrent access.
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[store] busy_timeout: %v (non-fatal)", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema_migrations table (if absent) and applies any
// migrations whose version number exceeds the current maximum.
func (s *Store) migrate() error {
	s.lock.wlock()
	defer s.lock.wunlock()

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		log.Printf("[store] applied migration v%d", v)
	}
	return nil
}

// GetSetting returns the value stored under key. The second return value is
// false when the key does not exist; an error is only returned for real I/O
// failures.
func (s *Store) GetSetting(key string) (string, bool, error) {
	s.lock.rlock()
	defer s.lock.runlock()
	var val string
	err := s.db.QueryRow(
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetSetting upserts key → value in the settings table.
func (s *Store) SetSetting(key, value string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetAllSettings returns all key/value pairs from the settings table.
func (s *Store) GetAllSettings() (map[string]string, error) {
	s.lock.rlock()
	defer s.lock.runlock()
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// User represents a row in the users table.
type User struct {
	Handle       string
	Gecos        string
	PasswordHash string
	SignonTime   int64
	CreatedAt    int64
}

// CreateUser inserts a new user row. Returns an error if handle already exists.
func (s *Store) CreateUser(handle, gecos, passwordHash string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(
		`INSERT INTO users(handle, gecos, password_hash) VALUES(?, ?, ?)`,
		handle, gecos, passwordHash,
	)
	return err
}

// GetUser returns the user row for handle. Returns sql.ErrNoRows if absent.
func (s *Store) GetUser(handle string) (User, error) {
	s.lock.rlock()
	defer s.lock.runlock()
	var u User
	err := s.db.QueryRow(
		`SELECT handle, gecos, password_hash, signon_time, created_at FROM users WHERE handle = ?`,
		handle,
	).Scan(&u.Handle, &u.Gecos, &u.PasswordHash, &u.SignonTime, &u.CreatedAt)
	return u, err
}

// SetUserGecos updates a user's display name (gecos field).
// Returns sql.ErrNoRows if no such user exists.
func (s *Store) SetUserGecos(handle, gecos string) error {
	return s.updateUser(`UPDATE users SET gecos = ? WHERE handle = ?`, gecos, handle)
}

// SetUserPasswordHash updates a user's stored password hash.
// Returns sql.ErrNoRows if no such user exists.
func (s *Store) SetUserPasswordHash(handle, hash string) error {
	return s.updateUser(`UPDATE users SET password_hash = ? WHERE handle = ?`, hash, handle)
}

// TouchUserSignon records the current signon time for a user.
func (s *Store) TouchUserSignon(handle string, at int64) error {
	return s.updateUser(`UPDATE users SET signon_time = ? WHERE handle = ?`, at, handle)
}

func (s *Store) updateUser(query string, args ...any) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteUser removes a user and all rows that reference its handle.
func (s *Store) DeleteUser(handle string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []struct {
		stmt string
		args []any
	}{
		{`DELETE FROM users WHERE handle = ?`, []any{handle}},
		{`DELETE FROM user_acl WHERE handle = ?`, []any{handle}},
		{`DELETE FROM user_property WHERE handle = ?`, []any{handle}},
		{`DELETE FROM roster WHERE owner = ? OR target = ?`, []any{handle, handle}},
	} {
		if _, err := tx.Exec(q.stmt, q.args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

// Group represents a row in the groups table.
type Group struct {
	Name      string
	Topic     string
	CreatedAt int64
}

// CreateGroup inserts a new group row.
func (s *Store) CreateGroup(name string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(`INSERT INTO groups(name) VALUES(?)`, name)
	return err
}

// GetGroup returns the group row for name. Returns sql.ErrNoRows if absent.
func (s *Store) GetGroup(name string) (Group, error) {
	s.lock.rlock()
	defer s.lock.runlock()
	var g Group
	err := s.db.QueryRow(
		`SELECT name, topic, created_at FROM groups WHERE name = ?`, name,
	).Scan(&g.Name, &g.Topic, &g.CreatedAt)
	return g, err
}

// SetGroupTopic updates a group's topic. Returns sql.ErrNoRows if absent.
func (s *Store) SetGroupTopic(name, topic string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	res, err := s.db.Exec(`UPDATE groups SET topic = ? WHERE name = ?`, topic, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteGroup removes a group and every ACL/property row scoped to it.
func (s *Store) DeleteGroup(name string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM groups WHERE name = ?`,
		`DELETE FROM group_acl WHERE group_name = ?`,
		`DELETE FROM group_property WHERE group_name = ?`,
		`DELETE FROM roster WHERE target = ?`,
	} {
		if _, err := tx.Exec(stmt, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// ACL rows
// ---------------------------------------------------------------------------

// ACLEntry is one granted verb, with who granted it and an optional reason.
type ACLEntry struct {
	Verb   string
	Setter string
	Reason string
}

// AddUserACL grants verb to a user. Returns an error on a duplicate grant.
func (s *Store) AddUserACL(handle, verb, setter, reason string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(
		`INSERT INTO user_acl(handle, verb, setter, reason) VALUES(?, ?, ?, ?)`,
		handle, verb, setter, reason,
	)
	return err
}

// DeleteUserACL revokes verb from a user. Returns sql.ErrNoRows if not held.
func (s *Store) DeleteUserACL(handle, verb string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	res, err := s.db.Exec(
		`DELETE FROM user_acl WHERE handle = ? AND verb = ?`, handle, verb,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetUserACLs returns every verb granted directly to a user.
func (s *Store) GetUserACLs(handle string) ([]ACLEntry, error) {
	s.lock.rlock()
	defer s.lock.runlock()
	rows, err := s.db.Query(
		`SELECT verb, setter, reason FROM user_acl WHERE handle = ? ORDER BY verb`, handle,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanACLEntries(rows)
}

// GroupACLEntry is one granted verb scoped to a subject within a group.
// Subject is a user handle, or "*" for the group's default grant.
type GroupACLEntry struct {
	Subject string
	Verb    string
	Setter  string
	Reason  string
}

// AddGroupACL grants verb to subject within group. Returns an error on a
// duplicate grant.
func (s *Store) AddGroupACL(group, subject, verb, setter, reason string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(
		`INSERT INTO group_acl(group_name, subject, verb, setter, reason) VALUES(?, ?, ?, ?, ?)`,
		group, subject, verb, setter, reason,
	)
	return err
}

// DeleteGroupACL revokes verb from subject within group.
// Returns sql.ErrNoRows if not held.
func (s *Store) DeleteGroupACL(group, subject, verb string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	res, err := s.db.Exec(
		`DELETE FROM group_acl WHERE group_name = ? AND subject = ? AND verb = ?`,
		group, subject, verb,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetGroupACLs returns every ACL row for a group, across all subjects.
func (s *Store) GetGroupACLs(group string) ([]GroupACLEntry, error) {
	s.lock.rlock()
	defer s.lock.runlock()
	rows, err := s.db.Query(
		`SELECT subject, verb, setter, reason FROM group_acl WHERE group_name = ? ORDER BY subject, verb`,
		group,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []GroupACLEntry
	for rows.Next() {
		var e GroupACLEntry
		if err := rows.Scan(&e.Subject, &e.Verb, &e.Setter, &e.Reason); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanACLEntries(rows *sql.Rows) ([]ACLEntry, error) {
	var entries []ACLEntry
	for rows.Next() {
		var e ACLEntry
		if err := rows.Scan(&e.Verb, &e.Setter, &e.Reason); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// Property rows
// ---------------------------------------------------------------------------

// PropertyEntry is one stored property value.
type PropertyEntry struct {
	Property string
	Value    string
	Setter   string
}

// SetUserProperty upserts a property value for a user.
func (s *Store) SetUserProperty(handle, property, value, setter string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(
		`INSERT INTO user_property(handle, property, value, setter) VALUES(?, ?, ?, ?)
		 ON CONFLICT(handle, property) DO UPDATE SET value = excluded.value, setter = excluded.setter`,
		handle, property, value, setter,
	)
	return err
}

// DeleteUserProperty removes a user's property. Returns sql.ErrNoRows if unset.
func (s *Store) DeleteUserProperty(handle, property string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	res, err := s.db.Exec(
		`DELETE FROM user_property WHERE handle = ? AND property = ?`, handle, property,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetUserProperties returns every property set on a user.
func (s *Store) GetUserProperties(handle string) ([]PropertyEntry, error) {
	s.lock.rlock()
	defer s.lock.runlock()
	rows, err := s.db.Query(
		`SELECT property, value, setter FROM user_property WHERE handle = ? ORDER BY property`, handle,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPropertyEntries(rows)
}

// SetGroupProperty upserts a property value for a group.
func (s *Store) SetGroupProperty(group, property, value, setter string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(
		`INSERT INTO group_property(group_name, property, value, setter) VALUES(?, ?, ?, ?)
		 ON CONFLICT(group_name, property) DO UPDATE SET value = excluded.value, setter = excluded.setter`,
		group, property, value, setter,
	)
	return err
}

// DeleteGroupProperty removes a group's property. Returns sql.ErrNoRows if unset.
func (s *Store) DeleteGroupProperty(group, property string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	res, err := s.db.Exec(
		`DELETE FROM group_property WHERE group_name = ? AND property = ?`, group, property,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetGroupProperties returns every property set on a group.
func (s *Store) GetGroupProperties(group string) ([]PropertyEntry, error) {
	s.lock.rlock()
	defer s.lock.runlock()
	rows, err := s.db.Query(
		`SELECT property, value, setter FROM group_property WHERE group_name = ? ORDER BY property`, group,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPropertyEntries(rows)
}

func scanPropertyEntries(rows *sql.Rows) ([]PropertyEntry, error) {
	var entries []PropertyEntry
	for rows.Next() {
		var e PropertyEntry
		if err := rows.Scan(&e.Property, &e.Value, &e.Setter); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// Roster
// ---------------------------------------------------------------------------

// RosterEntry is one row of a user's roster: a remembered peer (user or
// group target), plus the owner's alias/grouping and block/pending state.
type RosterEntry struct {
	Owner    string
	Target   string
	Alias    string
	GroupTag string
	Pending  bool
	Blocked  bool
}

// AddRosterEntry inserts a roster row. Returns an error if it already exists.
func (s *Store) AddRosterEntry(e RosterEntry) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(
		`INSERT INTO roster(owner, target, alias, group_tag, pending, blocked) VALUES(?, ?, ?, ?, ?, ?)`,
		e.Owner, e.Target, e.Alias, e.GroupTag, e.Pending, e.Blocked,
	)
	return err
}

// SetRosterEntry updates the mutable fields of an existing roster row.
// Returns sql.ErrNoRows if no such row exists.
func (s *Store) SetRosterEntry(e RosterEntry) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	res, err := s.db.Exec(
		`UPDATE roster SET alias = ?, group_tag = ?, pending = ?, blocked = ? WHERE owner = ? AND target = ?`,
		e.Alias, e.GroupTag, e.Pending, e.Blocked, e.Owner, e.Target,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteRosterEntry removes one roster row. Returns sql.ErrNoRows if absent.
func (s *Store) DeleteRosterEntry(owner, target string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	res, err := s.db.Exec(
		`DELETE FROM roster WHERE owner = ? AND target = ?`, owner, target,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetRoster returns every roster row an owner holds.
func (s *Store) GetRoster(owner string) ([]RosterEntry, error) {
	s.lock.rlock()
	defer s.lock.runlock()
	rows, err := s.db.Query(
		`SELECT owner, target, alias, group_tag, pending, blocked FROM roster WHERE owner = ? ORDER BY target`,
		owner,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RosterEntry
	for rows.Next() {
		var e RosterEntry
		if err := rows.Scan(&e.Owner, &e.Target, &e.Alias, &e.GroupTag, &e.Pending, &e.Blocked); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// Maintenance
// ---------------------------------------------------------------------------

// Optimize runs PRAGMA optimize for SQLite query planner statistics.
func (s *Store) Optimize() error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(`PRAGMA optimize`)
	return err
}

// Backup creates a copy of the database at the given path using SQLite's
// backup facility through VACUUM INTO.
func (s *Store) Backup(destPath string) error {
	s.lock.wlock()
	defer s.lock.wunlock()
	_, err := s.db.Exec(`VACUUM INTO ?`, destPath)
	return err
}
