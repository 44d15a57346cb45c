package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vaultDeposit/internal/model"
)

// SessionStore keeps one JSON file per session next to the journal.
type SessionStore struct {
	dir string
}

func NewSessionStore(dir string) *SessionStore {
	return &SessionStore{dir: dir}
}

func (s *SessionStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

// Load returns the stored session, reporting false when none exists.
func (s *SessionStore) Load(id string) (model.Session, bool, error) {
	path, err := s.path(id)
	if err != nil {
		return model.Session{}, false, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.Session{}, false, nil
		}
		return model.Session{}, false, fmt.Errorf("read session: %w", err)
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return model.Session{}, false, fmt.Errorf("parse session: %w", err)
	}
	return session, true, nil
}

// Save writes the session atomically through a temp file.
func (s *SessionStore) Save(session model.Session) error {
	path, err := s.path(session.ID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write session tmp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	return nil
}
