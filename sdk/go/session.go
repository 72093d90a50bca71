package ramplinesdk

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Session persists the auth token and user between CLI invocations.
// It is a small JSON file with fixed keys.
type Session struct {
	path string

	mu    sync.Mutex
	token string
	user  *User
}

type sessionFile struct {
	AuthToken string `json:"auth_token,omitempty"`
	AuthUser  *User  `json:"auth_user,omitempty"`
}

// OpenSession loads the session file at path, creating parent directories
// lazily on first save. A missing file is an empty session.
func OpenSession(path string) (*Session, error) {
	s := &Session{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	var f sessionFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	s.token = f.AuthToken
	s.user = f.AuthUser
	return s, nil
}

func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *Session) User() *User {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetAuth stores the token and user and writes the file.
func (s *Session) SetAuth(token string, user User) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
	return s.save()
}

// Clear wipes the stored credentials. Called on logout and on 401 responses.
func (s *Session) Clear() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	return s.save()
}

func (s *Session) save() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(sessionFile{AuthToken: s.token, AuthUser: s.user}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o600)
}
