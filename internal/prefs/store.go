package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	autoLaunchFile  = "auto-launch.json"
	closeActionFile = "close-action.json"
)

type autoLaunchPref struct {
	Enabled bool `json:"enabled"`
}

type closeActionPref struct {
	Action string `json:"action"`
}

// Store reads and writes preference files in one directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// AutoLaunch returns the saved auto-launch opt-in. ok is false when nothing
// readable has been saved.
func (s *Store) AutoLaunch() (enabled, ok bool) {
	var p autoLaunchPref
	if err := s.load(autoLaunchFile, &p); err != nil {
		return false, false
	}
	return p.Enabled, true
}

// SetAutoLaunch saves the auto-launch opt-in.
func (s *Store) SetAutoLaunch(enabled bool) error {
	return s.save(autoLaunchFile, autoLaunchPref{Enabled: enabled})
}

// CloseAction returns the saved close action. ok is false when nothing valid
// has been saved.
func (s *Store) CloseAction() (action string, ok bool) {
	var p closeActionPref
	if err := s.load(closeActionFile, &p); err != nil || !ValidCloseAction(p.Action) {
		return "", false
	}
	return p.Action, true
}

// SetCloseAction saves action. Invalid actions are rejected.
func (s *Store) SetCloseAction(action string) error {
	if !ValidCloseAction(action) {
		return fmt.Errorf("invalid close action %q", action)
	}
	return s.save(closeActionFile, closeActionPref{Action: action})
}

func (s *Store) load(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

func (s *Store) save(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create preference directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
