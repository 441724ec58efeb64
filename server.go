package main

import (
	"context"
	"crypto/tls"
	"errors"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"dcp/server/async"
	"dcp/server/frame"
	"dcp/server/store"
)

const serverVersion = "dcp-1"

// Config collects the configuration surface spec §6 enumerates: listen
// addresses for both wire encodings, the admin UNIX socket, server
// identity, registration policy, TLS material, and storage sizing.
type Config struct {
	Addr                string // binary-framed TCP/TLS listen address
	JSONAddr            string // JSON-framed TCP/TLS listen address (empty to disable)
	UnixSocketPath      string // local admin IPC socket (empty to disable)
	ServerName          string
	ServerPassword      string
	RegistrationAllowed bool
	CertValidity        time.Duration
	CertHostname        string
	Verbose             bool
	CacheSize           int
	DBPath              string
	StorageWorkers      int
	StoragePoolSize     int
	MOTD                string
}

// Server is the single-threaded cooperative event-loop controller (spec §2
// item 6, §5). It owns the online-user and group indices, the LRU target
// cache, and the async storage façade. All graph mutation happens on the
// Run goroutine; everything else (connection I/O, storage, DNS) posts its
// continuation onto events rather than touching server state directly.
type Server struct {
	cfg       Config
	events    chan func(*Server)
	storage   *async.Storage
	cache     *TargetCache
	tlsConfig *tls.Config

	onlineUsers map[string]*User  // case-folded handle -> User, session set non-empty
	groups      map[string]*Group // case-folded name -> Group, loaded this run

	conns map[*Connection]bool

	bytesOut uint64
	started  time.Time
}

// NewServer constructs a Server. storage and cache are supplied by main so
// their lifetimes are explicit (spec §9's design note against hidden
// singletons).
func NewServer(cfg Config, storage *async.Storage, cache *TargetCache, tlsConfig *tls.Config) *Server {
	return &Server{
		cfg:         cfg,
		events:      make(chan func(*Server), 1024),
		storage:     storage,
		cache:       cache,
		tlsConfig:   tlsConfig,
		onlineUsers: map[string]*User{},
		groups:      map[string]*Group{},
		conns:       map[*Connection]bool{},
	}
}

// post schedules fn to run on the event loop goroutine. Any goroutine may
// call this — connection read loops, storage completions, timers — and it
// is the only way any of them may touch Server/User/Group state.
func (s *Server) post(fn func(*Server)) {
	s.events <- fn
}

// Run is the event loop: one goroutine, a select over events plus a
// maintenance ticker, until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.started = time.Now()

	listeners, err := s.startListeners(ctx)
	if err != nil {
		return err
	}
	defer func() {
		for _, ln := range listeners {
			_ = ln.Close()
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	log.Printf("[server] event loop running (addr=%s json=%s unix=%s)", s.cfg.Addr, s.cfg.JSONAddr, s.cfg.UnixSocketPath)
	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return nil
		case fn := <-s.events:
			fn(s)
		case <-ticker.C:
			s.maintenance()
		}
	}
}

func (s *Server) startListeners(ctx context.Context) ([]net.Listener, error) {
	var listeners []net.Listener

	if s.cfg.Addr != "" {
		ln, err := tls.Listen("tcp", s.cfg.Addr, s.tlsConfig)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, ln)
		go s.acceptLoop(ctx, ln, frame.BinaryCodec{}, connNetwork)
	}
	if s.cfg.JSONAddr != "" {
		ln, err := tls.Listen("tcp", s.cfg.JSONAddr, s.tlsConfig)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, ln)
		go s.acceptLoop(ctx, ln, frame.JSONCodec{}, connNetwork)
	}
	if s.cfg.UnixSocketPath != "" {
		ln, err := net.Listen("unix", s.cfg.UnixSocketPath)
		if err != nil {
			return nil, err
		}
		listeners = append(listeners, ln)
		go s.acceptLoop(ctx, ln, frame.JSONCodec{}, connIPC)
	}
	return listeners, nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, codec frame.Codec, kind connKind) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Printf("[server] accept: %v", err)
			continue
		}
		go s.handleAccept(conn, codec, kind)
	}
}

// handleAccept builds the Connection/Session pair for a freshly accepted
// socket, kicks off rdns resolution and the pre-auth timer, then blocks in
// the connection's own read loop for the lifetime of the socket.
func (s *Server) handleAccept(conn net.Conn, codec frame.Codec, kind connKind) {
	c := NewConnection(conn, codec, s, kind)
	remoteAddr := conn.RemoteAddr().String()
	sess := NewSession(c, codec, remoteAddr)
	c.session = sess

	s.post(func(srv *Server) { srv.conns[c] = true })

	if kind == connNetwork {
		go func() {
			host := resolveHost(c.ctx, remoteAddr)
			s.post(func(srv *Server) {
				if c.ctx.Err() != nil {
					return // connection closed before resolution landed
				}
				sess.RemoteHost = host
			})
		}()
		c.startSignonTimer()
	} else {
		sess.State = stateRegistered // IPC is trusted, no signon required
	}

	c.readLoop()
}

// handleDisconnect cleans up a closed connection: detaches its Session from
// any User, updates the online index, and removes the bookkeeping entry.
func (s *Server) handleDisconnect(c *Connection) {
	delete(s.conns, c)
	sess := c.session
	if sess == nil || sess.User == nil {
		return
	}
	u := sess.User
	if empty := u.RemoveSession(sess); empty {
		delete(s.onlineUsers, u.Name)
		s.cache.Invalidate(u.Name)
	}
}

func (s *Server) handleSignonTimeout(c *Connection) {
	if c.session != nil && c.session.Registered() {
		return
	}
	c.Close("Connection timed out")
}

func (s *Server) handlePingTick(c *Connection) {
	c.onPingTick()
}

// maintenance runs periodic housekeeping: a metrics log line sized with
// go-humanize, matching the teacher's RunMetrics cadence but promoted from
// hand-rolled "%.1f KB/s" arithmetic to a real formatting call.
func (s *Server) maintenance() {
	online := len(s.onlineUsers)
	groups := len(s.groups)
	uptime := time.Since(s.started)
	log.Printf("[server] online=%d groups=%d uptime=%s sent=%s",
		online, groups, uptime.Round(time.Second), humanize.Bytes(s.bytesOut))
}

func (s *Server) shutdown() {
	for c := range s.conns {
		c.Close("Server shutting down")
	}
}

// inflatedTarget is the result of pulling a cold target's full row set
// (core fields, ACL, properties) off the storage worker pool in one job.
type inflatedTarget struct {
	user  *User
	group *Group
}

func inflateTargetJob(canon string, isGroup bool) async.Job {
	return func(st *store.Store) (any, error) {
		if isGroup {
			row, err := st.GetGroup(canon)
			if err != nil {
				return nil, err
			}
			g := NewGroup(row.Name)
			g.Topic = row.Topic
			g.CreatedAt = time.Unix(row.CreatedAt, 0)

			acls, err := st.GetGroupACLs(canon)
			if err != nil {
				return nil, err
			}
			for _, a := range acls {
				grant := ACLGrant{Setter: a.Setter, Reason: a.Reason}
				if a.Subject == "*" {
					g.ACL.entries[a.Verb] = grant
				} else {
					m, ok := g.MemberACL[a.Subject]
					if !ok {
						m = NewACL()
						g.MemberACL[a.Subject] = m
					}
					m.entries[a.Verb] = grant
				}
			}

			props, err := st.GetGroupProperties(canon)
			if err != nil {
				return nil, err
			}
			for _, p := range props {
				g.Properties.SetRaw(p.Property, p.Value, p.Setter)
			}
			return inflatedTarget{group: g}, nil
		}

		row, err := st.GetUser(canon)
		if err != nil {
			return nil, err
		}
		u := NewUser(row.Handle, row.Gecos, row.PasswordHash)
		if row.SignonTime > 0 {
			u.SignonTime = time.Unix(row.SignonTime, 0)
		}

		acls, err := st.GetUserACLs(canon)
		if err != nil {
			return nil, err
		}
		for _, a := range acls {
			u.ACL.entries[a.Verb] = ACLGrant{Setter: a.Setter, Reason: a.Reason}
		}

		props, err := st.GetUserProperties(canon)
		if err != nil {
			return nil, err
		}
		for _, p := range props {
			u.Properties.SetRaw(p.Property, p.Value, p.Setter)
		}
		return inflatedTarget{user: u}, nil
	}
}

// resolveTarget implements get_any_target (spec §4.4, §9): check the live
// online/group indices, then the LRU cache (including cached misses), then
// fall through to an async storage inflate. cont is invoked on the event
// loop goroutine exactly once, synchronously for a hit or asynchronously
// for a storage round trip.
func (s *Server) resolveTarget(name string, cont func(u *User, g *Group, err error)) {
	canon := canonicalize(name)
	if canon == "" || canon == "*" {
		cont(nil, nil, &UserError{Reason: "no such target"})
		return
	}

	switch canon[0] {
	case '=', '&':
		cont(nil, nil, &UserError{Reason: name + ": not yet supported"})
		return
	case '#':
		if g, ok := s.groups[canon]; ok {
			cont(nil, g, nil)
			return
		}
	default:
		if u, ok := s.onlineUsers[canon]; ok {
			cont(u, nil, nil)
			return
		}
	}

	if u, g, miss, ok := s.cache.Get(canon); ok {
		if miss {
			cont(nil, nil, &StorageBackendNotFoundError{Name: canon})
			return
		}
		cont(u, g, nil)
		return
	}

	isGroup := canon[0] == '#'
	s.storage.Run(s.post, inflateTargetJob(canon, isGroup), func(res any, err error) {
		if err != nil {
			s.cache.PutMiss(canon)
			cont(nil, nil, &StorageBackendNotFoundError{Name: canon})
			return
		}
		infl := res.(inflatedTarget)
		if infl.group != nil {
			s.groups[canon] = infl.group
			s.cache.PutGroup(canon, infl.group)
			cont(nil, infl.group, nil)
			return
		}
		s.cache.PutUser(canon, infl.user)
		cont(infl.user, nil, nil)
	})
}

// createGroup brings a brand-new group into existence on first join,
// persists it asynchronously, and invalidates any cached miss for its name.
func (s *Server) createGroup(name string) *Group {
	canon := canonicalize(name)
	g := NewGroup(canon)
	s.groups[canon] = g
	s.cache.Invalidate(canon)

	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.CreateGroup(canon)
	}, func(_ any, err error) {
		if err != nil {
			log.Printf("[store] create group %s: %v", canon, err)
		}
	})
	return g
}

// persistGroupACLGrant/persistGroupACLRevoke/persistUserACLGrant/
// persistUserACLRevoke schedule the write-through half of an ACL mutation
// (spec §4.5's StorageSet contract) without blocking the event loop.
func (s *Server) persistGroupACLGrant(group, subject, verb, setter, reason string) {
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.AddGroupACL(group, subject, verb, setter, reason)
	}, func(_ any, err error) {
		if err != nil {
			log.Printf("[store] add group acl %s/%s/%s: %v", group, subject, verb, err)
		}
	})
}

func (s *Server) persistGroupACLRevoke(group, subject, verb string) {
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.DeleteGroupACL(group, subject, verb)
	}, func(_ any, err error) {
		if err != nil {
			log.Printf("[store] delete group acl %s/%s/%s: %v", group, subject, verb, err)
		}
	})
}

func (s *Server) persistUserACLGrant(handle, verb, setter, reason string) {
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.AddUserACL(handle, verb, setter, reason)
	}, func(_ any, err error) {
		if err != nil {
			log.Printf("[store] add user acl %s/%s: %v", handle, verb, err)
		}
	})
}

func (s *Server) persistUserACLRevoke(handle, verb string) {
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.DeleteUserACL(handle, verb)
	}, func(_ any, err error) {
		if err != nil {
			log.Printf("[store] delete user acl %s/%s: %v", handle, verb, err)
		}
	})
}

// broadcastACLChange notifies the affected target of an acl-set/acl-del
// mutation: every member if the target is a group, every session if it's a
// user (spec §4.6: "broadcast the change to the affected target").
func (s *Server) broadcastACLChange(g *Group, u *User, command, subject, verb, setter string) {
	out := frame.New(setter, "*", command)
	out.Add("acl", verb)
	out.Add("user", subject)
	if g != nil {
		out.Target = g.Name
		s.fanoutToGroup(g, out, nil)
		return
	}
	out.Target = u.Name
	s.fanoutToUser(u, out, nil)
}

// persistGroupProperty/persistUserProperty/persistGroupPropertyDelete/
// persistUserPropertyDelete schedule the write-through half of a property
// mutation without blocking the event loop.
func (s *Server) persistGroupProperty(group, property, value, setter string) {
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.SetGroupProperty(group, property, value, setter)
	}, func(_ any, err error) {
		if err != nil {
			log.Printf("[store] set group property %s/%s: %v", group, property, err)
		}
	})
}

func (s *Server) persistGroupPropertyDelete(group, property string) {
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.DeleteGroupProperty(group, property)
	}, func(_ any, err error) {
		if err != nil {
			log.Printf("[store] delete group property %s/%s: %v", group, property, err)
		}
	})
}

func (s *Server) persistUserProperty(handle, property, value, setter string) {
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.SetUserProperty(handle, property, value, setter)
	}, func(_ any, err error) {
		if err != nil {
			log.Printf("[store] set user property %s/%s: %v", handle, property, err)
		}
	})
}

func (s *Server) persistUserPropertyDelete(handle, property string) {
	s.storage.Run(s.post, func(st *store.Store) (any, error) {
		return nil, st.DeleteUserProperty(handle, property)
	}, func(_ any, err error) {
		if err != nil {
			log.Printf("[store] delete user property %s/%s: %v", handle, property, err)
		}
	})
}

// broadcastPropertyChange notifies the affected target of a property-set/
// property-del mutation, mirroring broadcastACLChange.
func (s *Server) broadcastPropertyChange(g *Group, u *User, command, property, value, setter string) {
	out := frame.New(setter, "*", command)
	out.Add("property", property)
	if value != "" {
		out.Add("value", value)
	}
	if g != nil {
		out.Target = g.Name
		s.fanoutToGroup(g, out, nil)
		return
	}
	out.Target = u.Name
	s.fanoutToUser(u, out, nil)
}

// fanoutToGroup writes f to every session of every member except exceptUser.
func (s *Server) fanoutToGroup(g *Group, f frame.Frame, exceptUser *User) {
	for m := range g.Members {
		if m == exceptUser {
			continue
		}
		s.fanoutToUser(m, f, nil)
	}
}

// fanoutToUser writes f to every session of u except exceptSession.
func (s *Server) fanoutToUser(u *User, f frame.Frame, exceptSession *Session) {
	for sess := range u.Sessions {
		if sess == exceptSession {
			continue
		}
		_ = sess.Send(f)
	}
}

// memberAdd implements §4.4's member_add: asserts u isn't already a member,
// updates both sides of the symmetric relation, then emits the group-enter/
// group-info/group-names burst. Membership itself is not persisted (spec
// §6's persisted-state list names only users/groups/ACL/property/roster).
func (s *Server) memberAdd(g *Group, u *User, sess *Session, reason string) error {
	if g.HasMember(u) {
		return &GroupAdditionError{Group: g.Name, User: u.Name}
	}
	g.AddMember(u)
	u.JoinGroup(g)

	enter := frame.New(u.Name, g.Name, "group-enter")
	if reason != "" {
		enter.Add("reason", reason)
	}
	s.fanoutToGroup(g, enter, nil)

	info := frame.New("=server", g.Name, "group-info")
	info.Add("topic", g.Topic)
	info.Add("created", strconv.FormatInt(g.CreatedAt.Unix(), 10))
	_ = sess.Send(info)

	names := make([]string, 0, len(g.Members))
	for m := range g.Members {
		names = append(names, m.Name)
	}
	_ = sess.SendMultipart("=server", g.Name, "group-names", []string{"name"}, map[string][]string{"name": names})

	return nil
}

// memberDel implements §4.4's member_del: the symmetric reversal of
// memberAdd, emitting group-exit with reason and, if permanent, a quit:*
// marker.
func (s *Server) memberDel(g *Group, u *User, sess *Session, reason string, permanent bool) error {
	if !g.HasMember(u) {
		return &GroupRemovalError{Group: g.Name, User: u.Name}
	}
	g.RemoveMember(u)
	u.LeaveGroup(g.Name)

	exit := frame.New(u.Name, g.Name, "group-exit")
	if reason != "" {
		exit.Add("reason", reason)
	}
	if permanent {
		exit.Add("quit", "*")
	}
	s.fanoutToGroup(g, exit, nil)
	if sess != nil {
		_ = sess.Send(exit)
	}
	return nil
}

// sendMOTD writes the cached MOTD text, falling back to a multipart split
// if it doesn't fit in one frame.
func (s *Server) sendMOTD(sess *Session) error {
	out := frame.New("=server", "*", "motd")
	out.Add("text", s.cfg.MOTD)
	return sendOrMultipart(sess, out, []string{"text"})
}

// sendOrMultipart serializes out directly; on a SizeError it falls back to
// SendMultipart over keys — the pattern scenario 5 (§8) describes for an
// oversized whois/motd.
func sendOrMultipart(sess *Session, out frame.Frame, keys []string) error {
	data, err := sess.Codec.Serialize(out)
	if err == nil {
		return sess.conn.enqueue(data)
	}
	var sizeErr *frame.SizeError
	if errors.As(err, &sizeErr) {
		return sess.SendMultipart(out.Source, out.Target, out.Command, keys, out.KVal)
	}
	return err
}
