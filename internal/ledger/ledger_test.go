package ledger_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/strandpine/warden/internal/ledger"
	"github.com/strandpine/warden/internal/models"
	"github.com/stretchr/testify/assert"
)

// MockPersister implements Persister for testing
type MockPersister struct {
	saved [][]models.LoginAttempt
	err   error
}

func (m *MockPersister) SaveAttempts(ctx context.Context, attempts []models.LoginAttempt) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, attempts)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func failedAttempt(identity, address string, at time.Time) *models.LoginAttempt {
	return &models.LoginAttempt{
		Identity:      identity,
		Address:       address,
		Timestamp:     at,
		Success:       false,
		FailureReason: models.FailureReasonPtr(models.FailureInvalidCredentials),
	}
}

func TestLedgerRecord_AssignsID(t *testing.T) {
	l := ledger.NewLedger(10, nil, testLogger())

	id := l.Record(context.Background(), &models.LoginAttempt{
		Identity: "u1@example.com",
		Address:  "203.0.113.10",
		Success:  true,
	})

	assert.NotEmpty(t, id)
	assert.Equal(t, 1, l.Len())
}

func TestLedgerRecord_KeepsProvidedID(t *testing.T) {
	l := ledger.NewLedger(10, nil, testLogger())

	id := l.Record(context.Background(), &models.LoginAttempt{
		ID:       "attempt-1",
		Identity: "u1@example.com",
		Success:  true,
	})

	assert.Equal(t, "attempt-1", id)
}

func TestLedgerRecord_EvictsOldestBeyondCapacity(t *testing.T) {
	l := ledger.NewLedger(3, nil, testLogger())
	now := time.Now().UTC()

	for i := 0; i < 4; i++ {
		l.Record(context.Background(), &models.LoginAttempt{
			ID:        string(rune('a' + i)),
			Identity:  "u1@example.com",
			Timestamp: now.Add(time.Duration(i) * time.Second),
			Success:   true,
		})
	}

	assert.Equal(t, 3, l.Len())

	all := l.Query(ledger.Filter{})
	assert.Len(t, all, 3)
	// Newest first; the oldest entry "a" is gone
	assert.Equal(t, "d", all[0].ID)
	assert.Equal(t, "c", all[1].ID)
	assert.Equal(t, "b", all[2].ID)
}

func TestLedgerQuery_FiltersAndOrders(t *testing.T) {
	l := ledger.NewLedger(10, nil, testLogger())
	now := time.Now().UTC()

	l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.10", now.Add(-2*time.Hour)))
	l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.11", now.Add(-30*time.Minute)))
	l.Record(context.Background(), failedAttempt("u2@example.com", "203.0.113.10", now.Add(-10*time.Minute)))

	byIdentity := l.Query(ledger.Filter{Identity: "u1@example.com"})
	assert.Len(t, byIdentity, 2)
	assert.True(t, byIdentity[0].Timestamp.After(byIdentity[1].Timestamp), "expected newest first")

	byAddress := l.Query(ledger.Filter{Address: "203.0.113.10"})
	assert.Len(t, byAddress, 2)

	recent := l.Query(ledger.Filter{Since: now.Add(-1 * time.Hour)})
	assert.Len(t, recent, 2)
}

func TestLedgerCountFailures_WindowAndWildcards(t *testing.T) {
	l := ledger.NewLedger(10, nil, testLogger())
	now := time.Now().UTC()

	// Two failures inside the window, one outside, one success inside
	l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.10", now.Add(-50*time.Minute)))
	l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.10", now.Add(-5*time.Minute)))
	l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.10", now.Add(-2*time.Hour)))
	l.Record(context.Background(), &models.LoginAttempt{
		Identity: "u1@example.com", Address: "203.0.113.10", Timestamp: now, Success: true,
	})

	since := now.Add(-1 * time.Hour)
	assert.Equal(t, 2, l.CountFailures("u1@example.com", "203.0.113.10", since))
	assert.Equal(t, 2, l.CountFailures("u1@example.com", "", since), "empty address is a wildcard")
	assert.Equal(t, 2, l.CountFailures("", "203.0.113.10", since), "empty identity is a wildcard")
	assert.Equal(t, 0, l.CountFailures("u2@example.com", "", since))
}

func TestLedgerRecent_RespectsLimitAndWindow(t *testing.T) {
	l := ledger.NewLedger(10, nil, testLogger())
	now := time.Now().UTC()

	for i := 0; i < 5; i++ {
		l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.10", now.Add(time.Duration(-i)*time.Minute)))
	}
	l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.10", now.Add(-25*time.Hour)))

	recent := l.Recent(3, now.Add(-24*time.Hour))
	assert.Len(t, recent, 3)
	for i := 1; i < len(recent); i++ {
		assert.False(t, recent[i-1].Timestamp.Before(recent[i].Timestamp), "expected newest first")
	}
}

func TestLedgerRecord_BackdatedEntriesKeepTimestampOrder(t *testing.T) {
	l := ledger.NewLedger(10, nil, testLogger())
	now := time.Now().UTC()

	// Insertion order deliberately disagrees with timestamp order
	l.Record(context.Background(), &models.LoginAttempt{ID: "mid", Identity: "u1@example.com", Timestamp: now.Add(-time.Minute)})
	l.Record(context.Background(), &models.LoginAttempt{ID: "new", Identity: "u1@example.com", Timestamp: now})
	l.Record(context.Background(), &models.LoginAttempt{ID: "old", Identity: "u1@example.com", Timestamp: now.Add(-2 * time.Minute)})

	all := l.Query(ledger.Filter{})
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	recent := l.Recent(2, time.Time{})
	assert.Equal(t, "new", recent[0].ID)
	assert.Equal(t, "mid", recent[1].ID)
}

func TestLedgerCapacity_DropsOldestTimestampNotOldestInsert(t *testing.T) {
	l := ledger.NewLedger(2, nil, testLogger())
	now := time.Now().UTC()

	l.Record(context.Background(), &models.LoginAttempt{ID: "a", Identity: "u1@example.com", Timestamp: now.Add(-time.Minute)})
	l.Record(context.Background(), &models.LoginAttempt{ID: "b", Identity: "u1@example.com", Timestamp: now})
	l.Record(context.Background(), &models.LoginAttempt{ID: "stale", Identity: "u1@example.com", Timestamp: now.Add(-time.Hour)})

	all := l.Query(ledger.Filter{})
	assert.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)
	assert.Equal(t, "a", all[1].ID)
}

func TestLedgerRestore_SortsUnorderedSnapshot(t *testing.T) {
	l := ledger.NewLedger(10, nil, testLogger())
	now := time.Now().UTC()

	l.Restore([]models.LoginAttempt{
		{ID: "b", Identity: "u1@example.com", Timestamp: now.Add(-time.Minute)},
		{ID: "c", Identity: "u1@example.com", Timestamp: now},
		{ID: "a", Identity: "u1@example.com", Timestamp: now.Add(-2 * time.Minute)},
	})

	all := l.Query(ledger.Filter{})
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestLedgerRecord_WritesThrough(t *testing.T) {
	persister := &MockPersister{}
	l := ledger.NewLedger(10, persister, testLogger())

	l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.10", time.Now().UTC()))
	l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.10", time.Now().UTC()))

	assert.Len(t, persister.saved, 2, "every mutation writes the collection through")
	assert.Len(t, persister.saved[1], 2)
}

func TestLedgerRecord_SwallowsPersistErrors(t *testing.T) {
	persister := &MockPersister{err: errors.New("disk full")}
	l := ledger.NewLedger(10, persister, testLogger())

	id := l.Record(context.Background(), failedAttempt("u1@example.com", "203.0.113.10", time.Now().UTC()))

	// In-memory state stays authoritative
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, l.Len())
}

func TestLedgerRestore_ReplacesContents(t *testing.T) {
	l := ledger.NewLedger(3, nil, testLogger())
	l.Record(context.Background(), failedAttempt("old@example.com", "203.0.113.9", time.Now().UTC()))

	now := time.Now().UTC()
	l.Restore([]models.LoginAttempt{
		{ID: "a", Identity: "u1@example.com", Timestamp: now.Add(-3 * time.Minute)},
		{ID: "b", Identity: "u1@example.com", Timestamp: now.Add(-2 * time.Minute)},
		{ID: "c", Identity: "u1@example.com", Timestamp: now.Add(-1 * time.Minute)},
		{ID: "d", Identity: "u1@example.com", Timestamp: now},
	})

	// Snapshot larger than capacity keeps the newest entries
	assert.Equal(t, 3, l.Len())
	all := l.Query(ledger.Filter{})
	assert.Equal(t, "d", all[0].ID)
	assert.Equal(t, "b", all[2].ID)
}
