// ABOUTME: File-backed persistence for the provider-issued session tokens
// ABOUTME: Stores one JSON session per console installation in the data directory

package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoSession is returned when no persisted session exists.
var ErrNoSession = errors.New("no session")

// SessionFile persists the current session between console runs, the role
// browser storage played for the original dashboard.
type SessionFile struct {
	path string
}

// NewSessionFile creates a session store at the given path. Parent
// directories are created on first save.
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

// Load reads the persisted session. Returns ErrNoSession when the file does
// not exist, and resets to no-session on a corrupted file rather than
// propagating a parse error.
func (f *SessionFile) Load() (*Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// Corrupted session state is treated as signed out.
		_ = os.Remove(f.path)
		return nil, ErrNoSession
	}
	if sess.AccessToken == "" {
		return nil, ErrNoSession
	}
	return &sess, nil
}

// Save writes the session to disk, replacing any previous one.
func (f *SessionFile) Save(sess *Session) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	// Tokens are credentials; keep the file owner-only.
	if err := os.WriteFile(f.path, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	return nil
}

// Clear removes the persisted session, if any.
func (f *SessionFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}
