package ledger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/strandpine/warden/internal/models"
)

// DefaultCapacity is the retention cap for login attempts. Once the
// cap is exceeded the oldest entries are dropped, FIFO.
const DefaultCapacity = 1000

// Persister receives the full attempt collection after every mutation.
// Persistence is best effort; the in-memory ledger stays authoritative
// when a save fails.
type Persister interface {
	SaveAttempts(ctx context.Context, attempts []models.LoginAttempt) error
}

// Filter narrows a ledger query. Zero values are wildcards.
type Filter struct {
	Identity string
	Address  string
	Since    time.Time
}

// Ledger is the append-only, bounded record of login attempts.
type Ledger struct {
	mu sync.Mutex
	// attempts stays ordered by Timestamp ascending, so reverse
	// iteration is newest-first even when callers record backdated
	// entries.
	attempts  []models.LoginAttempt
	capacity  int
	persister Persister
	logger    *slog.Logger
}

// NewLedger creates a ledger retaining at most capacity attempts.
func NewLedger(capacity int, persister Persister, logger *slog.Logger) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		attempts:  make([]models.LoginAttempt, 0, capacity),
		capacity:  capacity,
		persister: persister,
		logger:    logger,
	}
}

// Record appends an attempt and returns its id, assigning a ksuid when
// the attempt carries none. The attempt is copied; callers cannot
// mutate it afterwards.
func (l *Ledger) Record(ctx context.Context, attempt *models.LoginAttempt) string {
	entry := *attempt
	if entry.ID == "" {
		entry.ID = ksuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts = append(l.attempts, entry)
	// Most entries arrive in time order; a backdated one bubbles back
	// to its slot.
	for i := len(l.attempts) - 1; i > 0 && l.attempts[i].Timestamp.Before(l.attempts[i-1].Timestamp); i-- {
		l.attempts[i], l.attempts[i-1] = l.attempts[i-1], l.attempts[i]
	}
	if len(l.attempts) > l.capacity {
		overflow := len(l.attempts) - l.capacity
		l.attempts = append(l.attempts[:0:0], l.attempts[overflow:]...)
	}

	l.persistLocked(ctx)
	return entry.ID
}

// Query returns attempts matching the filter, newest first.
func (l *Ledger) Query(filter Filter) []models.LoginAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.LoginAttempt
	for i := len(l.attempts) - 1; i >= 0; i-- {
		a := l.attempts[i]
		if filter.Identity != "" && a.Identity != filter.Identity {
			continue
		}
		if filter.Address != "" && a.Address != filter.Address {
			continue
		}
		if !filter.Since.IsZero() && a.Timestamp.Before(filter.Since) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// CountFailures counts failed attempts matching identity and address
// since the given instant. Empty identity or address are wildcards.
func (l *Ledger) CountFailures(identity, address string, since time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for i := len(l.attempts) - 1; i >= 0; i-- {
		a := l.attempts[i]
		if a.Timestamp.Before(since) {
			continue
		}
		if a.Success {
			continue
		}
		if identity != "" && a.Identity != identity {
			continue
		}
		if address != "" && a.Address != address {
			continue
		}
		count++
	}
	return count
}

// CountSince counts all attempts, successes included, since the given
// instant.
func (l *Ledger) CountSince(since time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for i := len(l.attempts) - 1; i >= 0; i-- {
		if l.attempts[i].Timestamp.Before(since) {
			continue
		}
		count++
	}
	return count
}

// Recent returns up to limit attempts since the given instant, newest
// first.
func (l *Ledger) Recent(limit int, since time.Time) []models.LoginAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.LoginAttempt
	for i := len(l.attempts) - 1; i >= 0 && len(out) < limit; i-- {
		a := l.attempts[i]
		if !since.IsZero() && a.Timestamp.Before(since) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Len returns the number of retained attempts.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// Restore replaces the ledger contents from a persisted snapshot,
// dropping the oldest entries if the snapshot exceeds capacity.
func (l *Ledger) Restore(attempts []models.LoginAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()

	restored := append([]models.LoginAttempt(nil), attempts...)
	sort.SliceStable(restored, func(i, j int) bool {
		return restored[i].Timestamp.Before(restored[j].Timestamp)
	})
	if len(restored) > l.capacity {
		restored = restored[len(restored)-l.capacity:]
	}
	l.attempts = restored
}

func (l *Ledger) persistLocked(ctx context.Context) {
	if l.persister == nil {
		return
	}
	snapshot := append([]models.LoginAttempt(nil), l.attempts...)
	if err := l.persister.SaveAttempts(ctx, snapshot); err != nil {
		l.logger.Error("failed to persist login attempts", slog.Any("error", err))
	}
}
