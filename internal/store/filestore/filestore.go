package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/strandpine/warden/internal/models"
	"github.com/strandpine/warden/internal/store"
)

const schemaVersion = 1

const (
	attemptsFile = "attempts.json"
	sessionsFile = "sessions.json"
	blocksFile   = "blocked.json"
)

type attemptsPayload struct {
	SchemaVersion int                   `json:"schema_version"`
	Attempts      []models.LoginAttempt `json:"attempts"`
}

type sessionsPayload struct {
	SchemaVersion int                      `json:"schema_version"`
	Sessions      []models.SecuritySession `json:"sessions"`
}

type blocksPayload struct {
	SchemaVersion int                     `json:"schema_version"`
	Blocks        []models.BlockedAddress `json:"blocks"`
}

// Store persists each collection as a JSON file in a state directory.
// Writes go to a tmp file first and are renamed into place, so a crash
// mid-write never leaves a truncated state file.
type Store struct {
	mu  sync.Mutex
	dir string
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("empty state dir")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Load reads all three collections. Missing files mean a fresh state
// and load as empty collections.
func (s *Store) Load(_ context.Context) (*store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &store.Snapshot{}

	var attempts attemptsPayload
	if err := s.readFile(attemptsFile, &attempts); err != nil {
		return nil, err
	}
	snap.Attempts = attempts.Attempts

	var sessions sessionsPayload
	if err := s.readFile(sessionsFile, &sessions); err != nil {
		return nil, err
	}
	snap.Sessions = sessions.Sessions

	var blocks blocksPayload
	if err := s.readFile(blocksFile, &blocks); err != nil {
		return nil, err
	}
	snap.Blocks = blocks.Blocks

	return snap, nil
}

func (s *Store) SaveAttempts(_ context.Context, attempts []models.LoginAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(attemptsFile, attemptsPayload{SchemaVersion: schemaVersion, Attempts: attempts})
}

func (s *Store) SaveSessions(_ context.Context, sessions []models.SecuritySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(sessionsFile, sessionsPayload{SchemaVersion: schemaVersion, Sessions: sessions})
}

func (s *Store) SaveBlocks(_ context.Context, blocks []models.BlockedAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFile(blocksFile, blocksPayload{SchemaVersion: schemaVersion, Blocks: blocks})
}

func (s *Store) readFile(name string, out any) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *Store) writeFile(name string, payload any) error {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	path := filepath.Join(s.dir, name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o640); err != nil {
		return fmt.Errorf("write tmp %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
