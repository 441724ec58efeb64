// Package async keeps every blocking call to the SQLite-backed store off
// the event-loop goroutine. A fixed pool of workers checks out a store
// handle, runs one call, and returns the handle to the pool — the same
// "pool of cached storage objects" shape the prototype's asyncstorage
// façade used around a thread pool. Because the server's entity graph is
// single-owner (see the concurrency note in server.go), a worker never
// touches server state directly: it hands its result to a completion
// function which the caller re-posts onto the event loop's own channel.
package async

import (
	"fmt"
	"sync"

	"dcp/server/store"
)

// Job is a blocking unit of work against a store handle.
type Job func(*store.Store) (any, error)

// Storage runs Jobs on a worker pool backed by a small number of store
// handles, and serialises their results back through a caller-supplied
// post function so they land on the owning goroutine.
type Storage struct {
	jobs chan func()
	pool chan *store.Store
	wg   sync.WaitGroup
}

// NewStorage starts workers goroutines pulling from a shared job queue, and
// opens poolSize store handles (all against the same dbPath — SQLite's WAL
// mode allows the concurrent readers this implies) for them to share.
func NewStorage(dbPath string, workers, poolSize int) (*Storage, error) {
	if workers < 1 {
		workers = 1
	}
	if poolSize < 1 {
		poolSize = 1
	}

	s := &Storage{
		jobs: make(chan func(), 256),
		pool: make(chan *store.Store, poolSize),
	}
	for i := 0; i < poolSize; i++ {
		st, err := store.New(dbPath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("async: open store handle %d: %w", i, err)
		}
		s.pool <- st
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s, nil
}

func (s *Storage) worker() {
	defer s.wg.Done()
	for job := range s.jobs {
		job()
	}
}

// checkout blocks until a store handle is available.
func (s *Storage) checkout() *store.Store {
	return <-s.pool
}

func (s *Storage) checkin(st *store.Store) {
	s.pool <- st
}

// Run submits fn to the worker pool. Once fn returns, post(continuation) is
// called with a closure that invokes done(result, err) — post is expected to
// be the event loop's own scheduling function, so done always executes on
// the loop goroutine and never concurrently with graph mutation.
func (s *Storage) Run(post func(func()), fn Job, done func(any, error)) {
	s.jobs <- func() {
		st := s.checkout()
		defer s.checkin(st)
		res, err := fn(st)
		post(func() { done(res, err) })
	}
}

// Close drains the job queue and closes every pooled store handle. Callers
// must ensure no further Run calls are made once Close has started.
func (s *Storage) Close() error {
	close(s.jobs)
	s.wg.Wait()
	close(s.pool)
	var firstErr error
	for st := range s.pool {
		if err := st.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
