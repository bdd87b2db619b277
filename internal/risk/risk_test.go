package risk_test

import (
	"testing"
	"time"

	"github.com/strandpine/warden/internal/risk"
	"github.com/stretchr/testify/assert"
)

// midday is a weekday noon so the off-hours rule stays quiet unless a
// test opts in.
var midday = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

func cleanInput() risk.Input {
	return risk.Input{
		Address:        "203.0.113.10",
		RecentFailures: 0,
		KnownAddress:   true,
		DeviceKnown:    true,
		Now:            midday,
	}
}

func TestEngineScore_CleanLogin(t *testing.T) {
	engine := risk.NewEngine(nil)

	score, factors := engine.Score(cleanInput())

	assert.Equal(t, 0, score)
	assert.Empty(t, factors)
}

func TestEngineScore_RecentFailures(t *testing.T) {
	engine := risk.NewEngine(nil)

	input := cleanInput()
	input.RecentFailures = 2

	score, factors := engine.Score(input)

	assert.Equal(t, 4, score, "+2 per failed attempt in the last 24h")
	assert.Contains(t, factors, risk.FactorRecentFailures)
}

func TestEngineScore_NewAddress(t *testing.T) {
	engine := risk.NewEngine(nil)

	input := cleanInput()
	input.KnownAddress = false

	score, factors := engine.Score(input)

	assert.Equal(t, 3, score)
	assert.Contains(t, factors, risk.FactorNewAddress)
}

func TestEngineScore_UnknownDevice(t *testing.T) {
	engine := risk.NewEngine(nil)

	input := cleanInput()
	input.DeviceKnown = false

	score, factors := engine.Score(input)

	assert.Equal(t, 2, score)
	assert.Contains(t, factors, risk.FactorUnknownDevice)
}

func TestEngineScore_SuspiciousAddress(t *testing.T) {
	engine := risk.NewEngine(nil)

	input := cleanInput()
	input.Address = "10.1.2.3"

	score, factors := engine.Score(input)

	assert.Equal(t, 5, score)
	assert.Contains(t, factors, risk.FactorSuspiciousAddress)
}

func TestEngineScore_OffHours(t *testing.T) {
	engine := risk.NewEngine(nil)

	tests := []struct {
		name     string
		hour     int
		offHours bool
	}{
		{"05:59 is off-hours", 5, true},
		{"06:00 is business hours", 6, false},
		{"22:00 is business hours", 22, false},
		{"23:00 is off-hours", 23, true},
		{"02:00 is off-hours", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := cleanInput()
			input.Now = time.Date(2025, 6, 2, tt.hour, 30, 0, 0, time.UTC)

			score, factors := engine.Score(input)

			if tt.offHours {
				assert.Equal(t, 1, score)
				assert.Contains(t, factors, risk.FactorOffHours)
			} else {
				assert.Equal(t, 0, score)
				assert.NotContains(t, factors, risk.FactorOffHours)
			}
		})
	}
}

func TestEngineScore_ClampsAtMax(t *testing.T) {
	engine := risk.NewEngine(nil)

	input := risk.Input{
		Address:        "10.1.2.3", // +5
		RecentFailures: 6,          // +12
		KnownAddress:   false,      // +3
		DeviceKnown:    false,      // +2
		Now:            time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC), // +1
	}

	score, factors := engine.Score(input)

	assert.Equal(t, risk.MaxScore, score)
	assert.Len(t, factors, 5)
}

func TestEngineScore_MonotonicInFactors(t *testing.T) {
	engine := risk.NewEngine(nil)

	// Add one negative factor at a time; the score must never decrease
	input := cleanInput()
	prev, _ := engine.Score(input)

	input.RecentFailures = 1
	next, _ := engine.Score(input)
	assert.GreaterOrEqual(t, next, prev)
	prev = next

	input.KnownAddress = false
	next, _ = engine.Score(input)
	assert.GreaterOrEqual(t, next, prev)
	prev = next

	input.DeviceKnown = false
	next, _ = engine.Score(input)
	assert.GreaterOrEqual(t, next, prev)
	prev = next

	input.Address = "192.168.0.9"
	next, _ = engine.Score(input)
	assert.GreaterOrEqual(t, next, prev)
	prev = next

	input.Now = time.Date(2025, 6, 2, 23, 30, 0, 0, time.UTC)
	next, _ = engine.Score(input)
	assert.GreaterOrEqual(t, next, prev)
	assert.LessOrEqual(t, next, risk.MaxScore)
}

func TestCIDRPolicy_CustomRanges(t *testing.T) {
	policy, err := risk.NewCIDRPolicy([]string{"198.51.100.0/24"})
	assert.NoError(t, err)

	assert.True(t, policy.Suspicious("198.51.100.7"))
	assert.False(t, policy.Suspicious("203.0.113.10"))
	assert.False(t, policy.Suspicious("not-an-address"))
}

func TestCIDRPolicy_RejectsInvalidRange(t *testing.T) {
	_, err := risk.NewCIDRPolicy([]string{"not-a-cidr"})
	assert.Error(t, err)
}

func TestDefaultPolicy_CoversPrivateRanges(t *testing.T) {
	policy := risk.DefaultPolicy()

	for _, addr := range []string{"10.0.0.1", "172.16.5.5", "192.168.1.1", "127.0.0.1", "::1"} {
		assert.True(t, policy.Suspicious(addr), "expected %s to be suspicious", addr)
	}
	assert.False(t, policy.Suspicious("203.0.113.10"))
}
