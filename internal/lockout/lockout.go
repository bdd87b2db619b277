package lockout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/strandpine/warden/internal/config"
	"github.com/strandpine/warden/internal/models"
)

// failureWindow is the rolling window for counting failures toward a
// block.
const failureWindow = time.Hour

// AttemptCounter is the ledger view the manager consults before
// blocking.
type AttemptCounter interface {
	CountFailures(identity, address string, since time.Time) int
}

// ConfigSource supplies the active security config.
type ConfigSource interface {
	Current() config.SecurityConfig
}

// Persister receives the full block collection after every mutation.
type Persister interface {
	SaveBlocks(ctx context.Context, blocks []models.BlockedAddress) error
}

// Manager tracks temporarily blocked addresses. Blocking is
// address-scoped: the attacker is penalized, not the victim account.
type Manager struct {
	mu        sync.Mutex
	blocks    map[string]models.BlockedAddress
	counter   AttemptCounter
	cfg       ConfigSource
	persister Persister
	logger    *slog.Logger
}

func NewManager(counter AttemptCounter, cfg ConfigSource, persister Persister, logger *slog.Logger) *Manager {
	return &Manager{
		blocks:    make(map[string]models.BlockedAddress),
		counter:   counter,
		cfg:       cfg,
		persister: persister,
		logger:    logger,
	}
}

// IsBlocked reports whether the address is currently blocked. An entry
// past its expiry is removed lazily and reported as not blocked.
func (m *Manager) IsBlocked(ctx context.Context, address string) bool {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	block, ok := m.blocks[address]
	if !ok {
		return false
	}
	if block.Expired(now) {
		delete(m.blocks, address)
		m.persistLocked(ctx)
		return false
	}
	return true
}

// RecordFailureAndMaybeBlock consults the ledger for failures from
// address against identity within the trailing hour and blocks the
// address once the configured threshold is reached. Returns whether
// the address is blocked after this failure and, if so, until when.
func (m *Manager) RecordFailureAndMaybeBlock(ctx context.Context, identity, address string) (bool, time.Time) {
	cfg := m.cfg.Current()
	now := time.Now().UTC()

	// Ledger query happens before taking our lock; no operation holds
	// two store locks at once.
	failures := m.counter.CountFailures(identity, address, now.Add(-failureWindow))
	if failures < cfg.MaxLoginAttempts {
		return false, time.Time{}
	}

	until := now.Add(cfg.LockoutDuration)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks[address] = models.BlockedAddress{
		Address:   address,
		CreatedAt: now,
		ExpiresAt: until,
	}
	m.persistLocked(ctx)

	m.logger.Warn("address blocked",
		slog.String("address", address),
		slog.Int("failures", failures),
		slog.Time("blocked_until", until))

	return true, until
}

// BlockedCount returns the number of unexpired blocks.
func (m *Manager) BlockedCount() int {
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, block := range m.blocks {
		if !block.Expired(now) {
			count++
		}
	}
	return count
}

// Sweep removes blocks whose expiry has passed and returns how many
// were removed. Idempotent.
func (m *Manager) Sweep(ctx context.Context, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for address, block := range m.blocks {
		if block.Expired(now) {
			delete(m.blocks, address)
			removed++
		}
	}
	if removed > 0 {
		m.persistLocked(ctx)
	}
	return removed
}

// Restore replaces the block set from a persisted snapshot.
func (m *Manager) Restore(blocks []models.BlockedAddress) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.blocks = make(map[string]models.BlockedAddress, len(blocks))
	for _, block := range blocks {
		m.blocks[block.Address] = block
	}
}

func (m *Manager) persistLocked(ctx context.Context) {
	if m.persister == nil {
		return
	}
	snapshot := make([]models.BlockedAddress, 0, len(m.blocks))
	for _, block := range m.blocks {
		snapshot = append(snapshot, block)
	}
	if err := m.persister.SaveBlocks(ctx, snapshot); err != nil {
		m.logger.Error("failed to persist blocked addresses", slog.Any("error", err))
	}
}
