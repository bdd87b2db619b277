package background_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/strandpine/warden/internal/background"
	"github.com/strandpine/warden/internal/models"
	"github.com/stretchr/testify/assert"
)

type mockLockSweeper struct {
	mu    sync.Mutex
	runs  int
	stale int
}

func (m *mockLockSweeper) Sweep(_ context.Context, _ time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	return m.stale
}

func (m *mockLockSweeper) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

type mockSessionSweeper struct {
	mu         sync.Mutex
	runs       int
	terminated []models.SecuritySession
}

func (m *mockSessionSweeper) SweepExpired(_ context.Context, _ time.Time) []models.SecuritySession {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	return m.terminated
}

func (m *mockSessionSweeper) runCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs
}

type mockNotifier struct {
	mu       sync.Mutex
	received []models.SecuritySession
}

func (m *mockNotifier) NotifyTerminated(_ context.Context, sessions []models.SecuritySession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, sessions...)
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func TestCleanupManager_RunsImmediatelyOnStart(t *testing.T) {
	locks := &mockLockSweeper{}
	sessions := &mockSessionSweeper{}
	cm := background.NewCleanupManager(locks, sessions, nil, testLogger(), time.Hour, time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return locks.runCount() >= 1 && sessions.runCount() >= 1
	}, time.Second, 5*time.Millisecond)

	cm.Stop()
	<-done

	// Hour-long tickers never fired; only the startup runs happened.
	assert.Equal(t, 1, locks.runCount())
	assert.Equal(t, 1, sessions.runCount())
}

func TestCleanupManager_SweepsOnInterval(t *testing.T) {
	locks := &mockLockSweeper{stale: 2}
	sessions := &mockSessionSweeper{}
	cm := background.NewCleanupManager(locks, sessions, nil, testLogger(), 10*time.Millisecond, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return locks.runCount() >= 3 && sessions.runCount() >= 3
	}, time.Second, 5*time.Millisecond)

	cm.Stop()
	<-done
}

func TestCleanupManager_NotifiesTerminatedSessions(t *testing.T) {
	reason := models.TerminationExpiredCleanup
	sessions := &mockSessionSweeper{terminated: []models.SecuritySession{
		{ID: "s1", Identity: "u1@example.com", TerminationReason: &reason},
		{ID: "s2", Identity: "u2@example.com", TerminationReason: &reason},
	}}
	notifier := &mockNotifier{}
	cm := background.NewCleanupManager(&mockLockSweeper{}, sessions, notifier, testLogger(), time.Hour, time.Hour)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return notifier.count() == 2
	}, time.Second, 5*time.Millisecond)

	cm.Stop()
	<-done
}

func TestCleanupManager_StopsOnContextCancel(t *testing.T) {
	cm := background.NewCleanupManager(&mockLockSweeper{}, &mockSessionSweeper{}, nil, testLogger(), time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		cm.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup manager did not stop on context cancel")
	}
}

func TestCleanupManager_DefaultsIntervals(t *testing.T) {
	// Zero intervals fall back to defaults rather than panicking the
	// tickers.
	locks := &mockLockSweeper{}
	cm := background.NewCleanupManager(locks, &mockSessionSweeper{}, nil, testLogger(), 0, 0)

	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return locks.runCount() >= 1
	}, time.Second, 5*time.Millisecond)

	cm.Stop()
	<-done
}
