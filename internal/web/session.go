package web

import (
	"net/http"
	"sync"
	"time"

	"heritage-atlas/internal/verify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionCookie names the cookie that ties a browser to its verify page.
const SessionCookie = "verify_session"

type session struct {
	page     *verify.Page
	lastSeen time.Time
}

// SessionStore keeps one verify.Page per browser and forgets pages that
// have been idle for longer than ttl.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	newPage  func() *verify.Page
	now      func() time.Time
	logger   *zap.Logger
	stop     chan struct{}
	once     sync.Once
}

// NewSessionStore starts a janitor that sweeps idle sessions every minute
// or every ttl, whichever is shorter. Call Close to stop it.
func NewSessionStore(ttl time.Duration, newPage func() *verify.Page, logger *zap.Logger) *SessionStore {
	s := &SessionStore{
		sessions: make(map[string]*session),
		ttl:      ttl,
		newPage:  newPage,
		now:      time.Now,
		logger:   logger,
		stop:     make(chan struct{}),
	}

	interval := time.Minute
	if ttl > 0 && ttl < interval {
		interval = ttl
	}
	go s.janitor(interval)

	return s
}

// Page returns the page of the requesting browser, creating the session
// and its cookie when the request carries none or an expired one.
func (s *SessionStore) Page(w http.ResponseWriter, r *http.Request) *verify.Page {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			if sess, ok := s.sessions[cookie.Value]; ok && !s.expired(sess, now) {
				sess.lastSeen = now
				return sess.page
			}
		}
	}

	id := uuid.NewString()
	sess := &session{page: s.newPage(), lastSeen: now}
	s.sessions[id] = sess

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.Debug("Started verify session", zap.String("session_id", id))
	return sess.page
}

func (s *SessionStore) expired(sess *session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) sweep() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			sess.page.Close()
			delete(s.sessions, id)
		}
	}
}

func (s *SessionStore) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// Close stops the janitor and cancels every in-flight lookup.
func (s *SessionStore) Close() {
	s.once.Do(func() {
		close(s.stop)

		s.mu.Lock()
		defer s.mu.Unlock()
		for id, sess := range s.sessions {
			sess.page.Close()
			delete(s.sessions, id)
		}
	})
}
