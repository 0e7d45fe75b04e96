// Package memory is an in-process credential store, optionally seeded from a
// TOML users file. Changes are not persisted.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/extauthd/internal/auth"
)

// Store keeps bcrypt hashes keyed by user and server.
type Store struct {
	mu    sync.RWMutex
	users map[account]string
}

type account struct {
	user, server string
}

// User is one entry of a users file. Exactly one of Password or
// PasswordHash is expected; plaintext passwords are hashed on load.
type User struct {
	User         string `toml:"user"`
	Server       string `toml:"server"`
	Password     string `toml:"password"`
	PasswordHash string `toml:"password_hash"`
}

type usersFile struct {
	Users []User `toml:"users"`
}

func New() *Store {
	return &Store{users: make(map[account]string)}
}

// LoadFile builds a Store from a users file.
func LoadFile(path string) (*Store, error) {
	var raw usersFile
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("users file load failed (%s): %w", path, err)
	}
	s := New()
	for i, u := range raw.Users {
		if err := s.add(u); err != nil {
			return nil, fmt.Errorf("users[%d] invalid: %w", i, err)
		}
	}
	return s, nil
}

func (s *Store) add(u User) error {
	user := strings.TrimSpace(u.User)
	server := strings.TrimSpace(u.Server)
	if user == "" || server == "" {
		return fmt.Errorf("user and server are required")
	}
	hash := strings.TrimSpace(u.PasswordHash)
	switch {
	case hash != "":
		if !auth.IsHash(hash) {
			return fmt.Errorf("password_hash for %s@%s is not a bcrypt hash", user, server)
		}
	default:
		h, err := auth.HashPassword(u.Password)
		if err != nil {
			return err
		}
		hash = h
	}
	s.users[key(user, server)] = hash
	return nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Store) Authenticate(_ context.Context, user, server, password string) (bool, error) {
	s.mu.RLock()
	hash, ok := s.users[key(user, server)]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return auth.CheckPassword(hash, password)
}

func (s *Store) Exists(_ context.Context, user, server string) (bool, error) {
	s.mu.RLock()
	_, ok := s.users[key(user, server)]
	s.mu.RUnlock()
	return ok, nil
}

func (s *Store) SetPassword(_ context.Context, user, server, password string) (bool, error) {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(user, server)
	if _, ok := s.users[k]; !ok {
		return false, nil
	}
	s.users[k] = hash
	return true, nil
}

func (s *Store) Register(_ context.Context, user, server, password string) (bool, error) {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(user, server)
	if _, ok := s.users[k]; ok {
		return false, nil
	}
	s.users[k] = hash
	return true, nil
}

func (s *Store) Remove(_ context.Context, user, server string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(user, server)
	if _, ok := s.users[k]; !ok {
		return false, nil
	}
	delete(s.users, k)
	return true, nil
}

func (s *Store) RemoveSafely(_ context.Context, user, server, password string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(user, server)
	hash, ok := s.users[k]
	if !ok {
		return false, nil
	}
	match, err := auth.CheckPassword(hash, password)
	if err != nil || !match {
		return false, err
	}
	delete(s.users, k)
	return true, nil
}

func key(user, server string) account {
	return account{user: user, server: server}
}
