package eio

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/karagenc/eio-server/internal/sync"
)

type socketStore struct {
	sessions map[int64]*session
	mu       sync.RWMutex

	// Sessions with an upgrade in progress. At most one upgrade per session.
	upgrading mapset.Set[int64]
}

func newSocketStore() *socketStore {
	return &socketStore{
		sessions:  make(map[int64]*session),
		upgrading: mapset.NewSet[int64](),
	}
}

func (s *socketStore) get(sid int64) (ss *session, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ss, ok = s.sessions[sid]
	return
}

func (s *socketStore) set(ss *session) (ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sid := ss.socket.ID()
	_, exists := s.sessions[sid]
	if exists {
		return false
	}

	s.sessions[sid] = ss
	return true
}

func (s *socketStore) delete(sid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	s.upgrading.Remove(sid)
}

func (s *socketStore) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *socketStore) getAll() (sessions []*session) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ss := range s.sessions {
		sessions = append(sessions, ss)
	}
	return
}

// beginUpgrade returns false if an upgrade of sid is already in progress.
func (s *socketStore) beginUpgrade(sid int64) bool {
	return s.upgrading.Add(sid)
}

func (s *socketStore) endUpgrade(sid int64) {
	s.upgrading.Remove(sid)
}
