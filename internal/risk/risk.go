package risk

import "time"

// MaxScore is the upper clamp for risk scores.
const MaxScore = 10

// MFAThreshold is the score at or above which a second factor is
// required regardless of configuration.
const MFAThreshold = 5

// Factor tags attached to scored attempts.
const (
	FactorRecentFailures    = "recent_failures"
	FactorNewAddress        = "new_address"
	FactorUnknownDevice     = "unknown_device"
	FactorSuspiciousAddress = "suspicious_address"
	FactorOffHours          = "off_hours"
)

// Input is the snapshot an attempt is scored over. The engine is pure
// with respect to it: same input, same score, no hidden reads.
type Input struct {
	Address        string
	RecentFailures int  // failed attempts by the identity in the last 24h
	KnownAddress   bool // address appears in an active session for the identity
	DeviceKnown    bool // device signature registered for the identity
	Now            time.Time
}

// Engine computes additive risk scores clamped to [0, MaxScore].
type Engine struct {
	policy Policy
}

// NewEngine creates an engine using the given suspicious-address
// policy, or the default private/reserved range policy when nil.
func NewEngine(policy Policy) *Engine {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Engine{policy: policy}
}

// Score computes the risk score for the input along with the factor
// tags that contributed. Side-effect free.
func (e *Engine) Score(input Input) (int, []string) {
	score := 0
	var factors []string

	if input.RecentFailures > 0 {
		score += 2 * input.RecentFailures
		factors = append(factors, FactorRecentFailures)
	}

	if !input.KnownAddress {
		score += 3
		factors = append(factors, FactorNewAddress)
	}

	if !input.DeviceKnown {
		score += 2
		factors = append(factors, FactorUnknownDevice)
	}

	if e.policy.Suspicious(input.Address) {
		score += 5
		factors = append(factors, FactorSuspiciousAddress)
	}

	hour := input.Now.Hour()
	if hour < 6 || hour > 22 {
		score += 1
		factors = append(factors, FactorOffHours)
	}

	if score > MaxScore {
		score = MaxScore
	}
	return score, factors
}
