package store

import (
	"context"

	"github.com/strandpine/warden/internal/models"
)

// Snapshot is the persisted security state: three independently
// serialized collections.
type Snapshot struct {
	Attempts []models.LoginAttempt    `json:"attempts"`
	Sessions []models.SecuritySession `json:"sessions"`
	Blocks   []models.BlockedAddress  `json:"blocks"`
}

// Store is the write-through backend for the in-memory state. Each
// collection is saved independently after every mutation to it. The
// in-memory state stays authoritative; callers log and swallow save
// errors.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	SaveAttempts(ctx context.Context, attempts []models.LoginAttempt) error
	SaveSessions(ctx context.Context, sessions []models.SecuritySession) error
	SaveBlocks(ctx context.Context, blocks []models.BlockedAddress) error
}
