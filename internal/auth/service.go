package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	applog "retailcast/internal/log"
)

const (
	maxUsernameLen = 64
	maxPasswordLen = 72 // bcrypt ignores bytes past this
)

// Service validates credentials against a UserStore.
type Service struct {
	store  UserStore
	cost   int
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(store UserStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateCredentials(username, password string) error {
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLen {
		return fmt.Errorf("%w: must be 1-%d characters", ErrInvalidUsername, maxUsernameLen)
	}
	if password == "" || len(password) > maxPasswordLen {
		return fmt.Errorf("%w: must be 1-%d bytes", ErrInvalidPassword, maxPasswordLen)
	}
	return nil
}

// Signup creates a user. The username is trimmed; the password is used as is.
func (s *Service) Signup(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{Username: username, PasswordHash: hash, CreatedAt: s.now().UTC()}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, ErrUserExists) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User signed up", applog.FieldUsername, username)
	return u, nil
}

// Login returns ErrInvalidCredentials for both unknown users and wrong passwords.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	u, err := s.store.GetUser(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

type seedFile struct {
	Users []struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"users"`
}

// SeedFromFile creates the users listed in a YAML file. Users that already
// exist are left untouched. It returns how many users were created.
func (s *Service) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for i, entry := range f.Users {
		_, err := s.Signup(ctx, entry.Username, entry.Password)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrUserExists):
			s.logger.DebugContext(ctx, "Seed user already exists", applog.FieldUsername, entry.Username)
		default:
			return created, fmt.Errorf("seed user %d: %w", i, err)
		}
	}
	return created, nil
}
