package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"retailcast/internal/cache"
	"retailcast/internal/core"
	"retailcast/internal/loader"
)

const SessionCookie = "retailcast_session"

// Session is one logged-in browser. The uploaded dataset lives here so each
// user works on their own table.
type Session struct {
	Token    string
	Username string

	mu       sync.RWMutex
	table    *core.Table
	report   loader.Report
	source   string
	loadedAt time.Time
}

// Dataset is a read-only view of the session's current upload.
type Dataset struct {
	Table    *core.Table
	Report   loader.Report
	Source   string
	LoadedAt time.Time
}

// SetDataset replaces the session table. Tables are immutable so readers
// holding the previous one are unaffected.
func (s *Session) SetDataset(t *core.Table, r loader.Report, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table, s.report, s.source, s.loadedAt = t, r, source, time.Now()
}

// Dataset returns the current upload, or false when nothing was loaded.
func (s *Session) Dataset() (Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.table == nil {
		return Dataset{}, false
	}
	return Dataset{Table: s.table, Report: s.report, Source: s.source, LoadedAt: s.loadedAt}, true
}

// Sessions maps cookie tokens to sessions with sliding expiry.
type Sessions struct {
	store *cache.LRUCache[*Session]
	ttl   time.Duration
}

func NewSessions(maxSessions int, ttl time.Duration) *Sessions {
	return &Sessions{store: cache.NewLRUCache[*Session](maxSessions, ttl), ttl: ttl}
}

// Cache exposes the backing cache so it can be registered for cleanup.
func (s *Sessions) Cache() *cache.LRUCache[*Session] {
	return s.store
}

func (s *Sessions) Create(username string) (*Session, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	sess := &Session{Token: token, Username: username}
	s.store.Set(token, sess)
	return sess, nil
}

// Get looks up a session and refreshes its expiry.
func (s *Sessions) Get(token string) (*Session, bool) {
	if token == "" {
		return nil, false
	}
	sess, ok := s.store.Get(token)
	if ok {
		s.store.Set(token, sess)
	}
	return sess, ok
}

func (s *Sessions) Delete(token string) {
	s.store.Delete(token)
}

// FromRequest resolves the session cookie on r.
func (s *Sessions) FromRequest(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil, false
	}
	return s.Get(c.Value)
}

// Cookie builds the session cookie for sess. A nil session clears it.
func (s *Sessions) Cookie(sess *Session, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     SessionCookie,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if sess == nil {
		c.MaxAge = -1
		return c
	}
	c.Value = sess.Token
	c.MaxAge = int(s.ttl.Seconds())
	return c
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
