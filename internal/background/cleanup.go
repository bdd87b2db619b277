package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/strandpine/warden/internal/models"
)

const (
	// DefaultLockSweepInterval is how often expired address blocks are
	// purged.
	DefaultLockSweepInterval = time.Hour

	// DefaultSessionSweepInterval is how often timed-out sessions are
	// terminated.
	DefaultSessionSweepInterval = 5 * time.Minute

	// sweepTimeout bounds one sweep run.
	sweepTimeout = 30 * time.Second
)

// LockSweeper purges expired address blocks and reports how many were
// removed.
type LockSweeper interface {
	Sweep(ctx context.Context, now time.Time) int
}

// SessionSweeper terminates sessions whose inactivity exceeded the
// timeout and returns the terminated records.
type SessionSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) []models.SecuritySession
}

// TerminationNotifier receives sessions a sweep terminated, so logout
// events reach the audit trail even when nobody called logout.
type TerminationNotifier interface {
	NotifyTerminated(ctx context.Context, sessions []models.SecuritySession)
}

// CleanupManager runs the periodic sweeps: expired address blocks on a
// slow ticker, timed-out sessions on a fast one. Both run once
// immediately on startup so a restart doesn't wait a full interval to
// converge.
type CleanupManager struct {
	locks           LockSweeper
	sessions        SessionSweeper
	notifier        TerminationNotifier
	logger          *slog.Logger
	lockInterval    time.Duration
	sessionInterval time.Duration
	stopCh          chan struct{}
}

// NewCleanupManager creates a cleanup manager. notifier may be nil
// when no audit trail is wired.
func NewCleanupManager(
	locks LockSweeper,
	sessions SessionSweeper,
	notifier TerminationNotifier,
	logger *slog.Logger,
	lockInterval time.Duration,
	sessionInterval time.Duration,
) *CleanupManager {
	if lockInterval <= 0 {
		lockInterval = DefaultLockSweepInterval
	}
	if sessionInterval <= 0 {
		sessionInterval = DefaultSessionSweepInterval
	}
	return &CleanupManager{
		locks:           locks,
		sessions:        sessions,
		notifier:        notifier,
		logger:          logger,
		lockInterval:    lockInterval,
		sessionInterval: sessionInterval,
		stopCh:          make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	lockTicker := time.NewTicker(cm.lockInterval)
	defer lockTicker.Stop()
	sessionTicker := time.NewTicker(cm.sessionInterval)
	defer sessionTicker.Stop()

	// Run immediately on startup
	cm.sweepLocks(ctx)
	cm.sweepSessions(ctx)

	for {
		select {
		case <-lockTicker.C:
			cm.sweepLocks(ctx)
		case <-sessionTicker.C:
			cm.sweepSessions(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) sweepLocks(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	removed := cm.locks.Sweep(sweepCtx, time.Now().UTC())
	if removed > 0 {
		cm.logger.Info("expired block cleanup completed", slog.Int("removed", removed))
	}
}

func (cm *CleanupManager) sweepSessions(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	terminated := cm.sessions.SweepExpired(sweepCtx, time.Now().UTC())
	if len(terminated) == 0 {
		return
	}

	cm.logger.Info("timed-out session cleanup completed", slog.Int("terminated", len(terminated)))
	if cm.notifier != nil {
		cm.notifier.NotifyTerminated(sweepCtx, terminated)
	}
}

// Stop signals the cleanup manager to stop.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
