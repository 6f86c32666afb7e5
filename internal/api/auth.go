package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"barter/internal/store"
)

// DefaultSessionTTL is how long a login stays valid
const DefaultSessionTTL = 24 * time.Hour

// Session is a logged in user
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

func (s *Session) expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore keeps sessions in the database with a read-through cache
type SessionStore struct {
	store *store.Store
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]*Session
	stop  chan struct{}
}

func NewSessionStore(st *store.Store, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	ss := &SessionStore{
		store: st,
		ttl:   ttl,
		cache: make(map[string]*Session),
		stop:  make(chan struct{}),
	}
	go ss.cleanupLoop(5 * time.Minute)
	return ss
}

func (ss *SessionStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ss.cleanup(time.Now())
		case <-ss.stop:
			return
		}
	}
}

func (ss *SessionStore) cleanup(now time.Time) {
	ss.mu.Lock()
	for token, session := range ss.cache {
		if session.expired(now) {
			delete(ss.cache, token)
		}
	}
	ss.mu.Unlock()

	if err := ss.store.CleanupExpiredSessions(); err != nil {
		log.Printf("[Auth] session cleanup failed: %v", err)
	}
}

// Stop halts the cleanup goroutine
func (ss *SessionStore) Stop() {
	close(ss.stop)
}

// Create starts a session for the user
func (ss *SessionStore) Create(userID string) *Session {
	session := &Session{
		Token:     generateToken(),
		UserID:    userID,
		ExpiresAt: time.Now().Add(ss.ttl),
	}
	if err := ss.store.CreateSession(session.Token, userID, session.ExpiresAt); err != nil {
		log.Printf("[Auth] failed to persist session for %s: %v", userID, err)
	}

	ss.mu.Lock()
	ss.cache[session.Token] = session
	ss.mu.Unlock()
	return session
}

// Get returns the live session for a token, or nil
func (ss *SessionStore) Get(token string) *Session {
	now := time.Now()

	ss.mu.RLock()
	session, ok := ss.cache[token]
	ss.mu.RUnlock()
	if ok && !session.expired(now) {
		return session
	}

	stored, err := ss.store.GetSession(token)
	if err != nil || stored == nil {
		return nil
	}
	session = &Session{Token: stored.Token, UserID: stored.UserID, ExpiresAt: stored.ExpiresAt}

	ss.mu.Lock()
	ss.cache[token] = session
	ss.mu.Unlock()
	return session
}

// Delete ends a session
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	delete(ss.cache, token)
	ss.mu.Unlock()

	if err := ss.store.DeleteSession(token); err != nil {
		log.Printf("[Auth] failed to delete session: %v", err)
	}
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "username and password required", http.StatusBadRequest)
		return
	}

	if len(req.Username) < 3 || len(req.Username) > 32 {
		http.Error(w, "username must be 3-32 characters", http.StatusBadRequest)
		return
	}

	if len(req.Password) < 6 {
		http.Error(w, "password must be at least 6 characters", http.StatusBadRequest)
		return
	}

	user, err := s.svc.Register(req.Username, req.Password)
	if errors.Is(err, store.ErrUserExists) {
		http.Error(w, "username already taken", http.StatusConflict)
		return
	}
	if err != nil {
		log.Printf("[Auth] register %s failed: %v", req.Username, err)
		http.Error(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	s.writeAuth(w, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.store.AuthenticateUser(req.Username, req.Password)
	if errors.Is(err, store.ErrUserNotFound) || errors.Is(err, store.ErrInvalidPassword) {
		http.Error(w, "invalid username or password", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	s.writeAuth(w, user)
}

func (s *Server) writeAuth(w http.ResponseWriter, user *store.User) {
	session := s.sessions.Create(user.ID)
	writeJSON(w, AuthResponse{
		Token:    session.Token,
		UserID:   user.ID,
		Username: user.Username,
	})
}

// getSession reads a bearer token, or the token query parameter used by
// WebSocket clients that cannot set headers
func (s *Server) getSession(r *http.Request) *Session {
	if token := r.URL.Query().Get("token"); token != "" {
		return s.sessions.Get(token)
	}

	auth := r.Header.Get("Authorization")
	if auth == "" {
		return nil
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil
	}

	return s.sessions.Get(parts[1])
}

// requireUser resolves the session's user or writes 401
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) *store.User {
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil
	}
	user, err := s.store.GetUserByID(session.UserID)
	if err != nil {
		http.Error(w, "user not found", http.StatusUnauthorized)
		return nil
	}
	return user
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	s.sessions.Delete(session.Token)
	writeJSON(w, map[string]string{"status": "logged out"})
}
