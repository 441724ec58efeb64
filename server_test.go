package main

import (
	"path/filepath"
	"testing"
	"time"

	"dcp/server/async"
	"dcp/server/frame"
	"dcp/server/store"
)

// newTestServer wires a Server against a real, throwaway SQLite file plus a
// small async worker pool, with a goroutine draining events so resolveTarget
// callbacks actually run.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.sqlite3")

	st, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	st.Close()

	storage, err := async.NewStorage(dbPath, 2, 2)
	if err != nil {
		t.Fatalf("async.NewStorage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	cache, err := NewTargetCache(16)
	if err != nil {
		t.Fatalf("NewTargetCache: %v", err)
	}

	srv := NewServer(Config{MOTD: "hi"}, storage, cache, nil)
	go func() {
		for fn := range srv.events {
			fn(srv)
		}
	}()
	return srv
}

func await(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for resolveTarget callback")
	}
}

func TestResolveTargetHitsLiveOnlineIndex(t *testing.T) {
	srv := newTestServer(t)
	u := NewUser("alice", "Alice", "")

	done := make(chan struct{})
	srv.post(func(s *Server) {
		s.onlineUsers["alice"] = u
		s.resolveTarget("Alice", func(tu *User, tg *Group, err error) {
			defer close(done)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tg != nil {
				t.Errorf("expected no group, got %v", tg)
			}
			if tu != u {
				t.Errorf("expected live user, got %v", tu)
			}
		})
	})
	await(t, done)
}

func TestResolveTargetHitsLiveGroupIndex(t *testing.T) {
	srv := newTestServer(t)
	g := NewGroup("#general")

	done := make(chan struct{})
	srv.post(func(s *Server) {
		s.groups["#general"] = g
		s.resolveTarget("#General", func(tu *User, tg *Group, err error) {
			defer close(done)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tg != g {
				t.Errorf("expected live group, got %v", tg)
			}
		})
	})
	await(t, done)
}

func TestResolveTargetCacheHitAndCachedMiss(t *testing.T) {
	srv := newTestServer(t)
	u := NewUser("bob", "Bob", "")

	done := make(chan struct{})
	srv.post(func(s *Server) {
		s.cache.PutUser("bob", u)
		s.resolveTarget("bob", func(tu *User, tg *Group, err error) {
			defer close(done)
			if err != nil || tu != u {
				t.Errorf("expected cached user hit, got %v %v", tu, err)
			}
		})
	})
	await(t, done)

	done2 := make(chan struct{})
	srv.post(func(s *Server) {
		s.cache.PutMiss("ghost")
		s.resolveTarget("ghost", func(tu *User, tg *Group, err error) {
			defer close(done2)
			if err == nil {
				t.Error("expected cached-miss error")
			}
			if _, ok := err.(*StorageBackendNotFoundError); !ok {
				t.Errorf("expected StorageBackendNotFoundError, got %T", err)
			}
		})
	})
	await(t, done2)
}

func TestResolveTargetFallsThroughToStorageInflate(t *testing.T) {
	srv := newTestServer(t)

	createDone := make(chan struct{})
	srv.storage.Run(srv.post, func(st *store.Store) (any, error) {
		return nil, st.CreateUser("carol", "Carol Danvers", "hash")
	}, func(_ any, err error) {
		defer close(createDone)
		if err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
	})
	await(t, createDone)

	done := make(chan struct{})
	srv.post(func(s *Server) {
		s.resolveTarget("carol", func(tu *User, tg *Group, err error) {
			defer close(done)
			if err != nil {
				t.Fatalf("expected resolved user, got error: %v", err)
			}
			if tu == nil || tu.Name != "carol" {
				t.Fatalf("expected inflated user carol, got %v", tu)
			}
			if tu.Gecos != "Carol Danvers" {
				t.Errorf("expected gecos carried over, got %q", tu.Gecos)
			}
		})
	})
	await(t, done)

	// a second resolve should now be served from the cache, not storage.
	done2 := make(chan struct{})
	srv.post(func(s *Server) {
		if _, _, _, ok := s.cache.Get("carol"); !ok {
			t.Error("expected carol cached after first inflate")
		}
		s.resolveTarget("carol", func(tu *User, tg *Group, err error) {
			defer close(done2)
			if err != nil || tu == nil {
				t.Errorf("expected cached hit on second resolve, got %v %v", tu, err)
			}
		})
	})
	await(t, done2)
}

func TestMemberAddAndMemberDelAreSymmetric(t *testing.T) {
	srv := newTestServer(t)
	g := NewGroup("#lounge")
	u := NewUser("dave", "Dave", "")
	c := &Connection{codec: frame.BinaryCodec{}, closed: true}
	sess := &Session{User: u, conn: c, Codec: frame.BinaryCodec{}}

	done := make(chan struct{})
	srv.post(func(s *Server) {
		defer close(done)
		if err := s.memberAdd(g, u, sess, "hi"); err != nil {
			t.Fatalf("memberAdd: %v", err)
		}
		if !g.HasMember(u) {
			t.Fatal("expected group to report membership")
		}
		if _, ok := u.Groups[g.Name]; !ok {
			t.Fatal("expected user to carry the group back-reference")
		}

		if err := s.memberAdd(g, u, sess, "hi"); err == nil {
			t.Fatal("expected duplicate memberAdd to fail")
		}

		if err := s.memberDel(g, u, sess, "bye", false); err != nil {
			t.Fatalf("memberDel: %v", err)
		}
		if g.HasMember(u) {
			t.Fatal("expected membership removed")
		}
		if _, ok := u.Groups[g.Name]; ok {
			t.Fatal("expected user's back-reference removed")
		}

		if err := s.memberDel(g, u, sess, "bye", false); err == nil {
			t.Fatal("expected redundant memberDel to fail")
		}
	})
	await(t, done)
}
