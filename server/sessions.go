package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"auto_wordpress_post_publisher/generator"
	"auto_wordpress_post_publisher/wizard"
)

// session is one open wizard.
type session struct {
	id       string
	userID   string
	siteID   string
	ctrl     *wizard.Controller
	defaults generator.ModelParams
	lastUsed time.Time
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	maxIdle  time.Duration
	now      func() time.Time
}

func newSessionStore(maxIdle time.Duration) *sessionStore {
	return &sessionStore{sessions: make(map[string]*session), maxIdle: maxIdle, now: time.Now}
}

// add registers sess under a fresh id and drops wizards idle for too long.
func (s *sessionStore) add(sess *session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, old := range s.sessions {
		if now.Sub(old.lastUsed) > s.maxIdle {
			old.ctrl.Cancel()
			delete(s.sessions, id)
		}
	}
	sess.id = uuid.NewString()
	sess.lastUsed = now
	s.sessions[sess.id] = sess
	return sess.id
}

// get only returns sessions owned by userID.
func (s *sessionStore) get(userID, id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.userID != userID {
		return nil, false
	}
	sess.lastUsed = s.now()
	return sess, true
}

func (s *sessionStore) remove(userID, id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || sess.userID != userID {
		return nil, false
	}
	delete(s.sessions, id)
	return sess, true
}

func (s *sessionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
