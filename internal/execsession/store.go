package execsession

import (
	"strconv"
	"sync"
)

// Store is a worker-scoped registry of running exec sessions keyed by the
// integer process id handed back from exec_command. Created once at worker
// startup, shared across activities, so a session spawned by one activity
// invocation can be written to or collected from by a later one.
//
// Follows the same pattern as mcp.McpStore.
type Store struct {
	mu       sync.Mutex
	nextID   int
	sessions map[int]*ExecSession
}

// NewStore creates a new empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[int]*ExecSession)}
}

// Start spawns a process and registers it under a freshly allocated id.
func (s *Store) Start(opts SessionOpts) (int, *ExecSession, error) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	opts.ProcessID = strconv.Itoa(id)
	sess, err := StartSession(opts)
	if err != nil {
		return 0, nil, err
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	return id, sess, nil
}

// Get returns the session for a process id, or nil if unknown.
func (s *Store) Get(processID int) *ExecSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[processID]
}

// Remove closes and forgets the session for a process id, if present.
func (s *Store) Remove(processID int) {
	s.mu.Lock()
	sess, ok := s.sessions[processID]
	if ok {
		delete(s.sessions, processID)
	}
	s.mu.Unlock()

	if ok {
		sess.Close()
	}
}
