// Package auth implements signup, login and cookie sessions for the
// dashboard. Credentials are stored as bcrypt hashes behind UserStore.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidPassword    = errors.New("invalid password")
)

type User struct {
	Username     string
	PasswordHash []byte
	CreatedAt    time.Time
}

// UserStore persists users. Implementations must be safe for concurrent use.
type UserStore interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, username string) (User, error)
}

// MemoryStore keeps users in a map. Contents are lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (s *MemoryStore) CreateUser(_ context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.Username]; ok {
		return ErrUserExists
	}
	u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	s.users[u.Username] = u
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, username string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}
