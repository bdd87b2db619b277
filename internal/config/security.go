package config

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strandpine/warden/internal/models"
)

// SecurityConfig is the process-wide security tuning. It is read on
// every login and validation, so readers go through an atomic Holder
// and never block on writers.
type SecurityConfig struct {
	MaxLoginAttempts            int
	LockoutDuration             time.Duration
	SessionTimeout              time.Duration
	MaxConcurrentSessions       int
	RequireMFA                  bool
	MinPasswordLength           int
	RequirePasswordComplexity   bool
	SuspiciousActivityThreshold int
}

func (c *SecurityConfig) Validate() error {
	if c.MaxLoginAttempts < 1 {
		return fmt.Errorf("max login attempts must be at least 1 (got %d)", c.MaxLoginAttempts)
	}
	if c.LockoutDuration <= 0 {
		return fmt.Errorf("lockout duration must be positive (got %s)", c.LockoutDuration)
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("session timeout must be positive (got %s)", c.SessionTimeout)
	}
	if c.MaxConcurrentSessions < 1 {
		return fmt.Errorf("max concurrent sessions must be at least 1 (got %d)", c.MaxConcurrentSessions)
	}
	if c.MinPasswordLength < 1 {
		return fmt.Errorf("min password length must be at least 1 (got %d)", c.MinPasswordLength)
	}
	if c.SuspiciousActivityThreshold < 0 {
		return fmt.Errorf("suspicious activity threshold must not be negative (got %d)", c.SuspiciousActivityThreshold)
	}
	return nil
}

// SecurityPatch is a partial config update. Nil fields keep the
// current value.
type SecurityPatch struct {
	MaxLoginAttempts            *int
	LockoutDuration             *time.Duration
	SessionTimeout              *time.Duration
	MaxConcurrentSessions       *int
	RequireMFA                  *bool
	MinPasswordLength           *int
	RequirePasswordComplexity   *bool
	SuspiciousActivityThreshold *int
}

// Holder publishes the active SecurityConfig. Reads are lock-free;
// updates validate the merged config and swap the whole value.
type Holder struct {
	mu      sync.Mutex
	current atomic.Pointer[SecurityConfig]
}

func NewHolder(initial SecurityConfig) *Holder {
	h := &Holder{}
	h.current.Store(&initial)
	return h
}

// Current returns the active config by value.
func (h *Holder) Current() SecurityConfig {
	return *h.current.Load()
}

// Apply merges the patch over the active config, validates the result
// and makes it the new active config. On validation failure nothing
// changes.
func (h *Holder) Apply(patch SecurityPatch) (SecurityConfig, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := *h.current.Load()
	if patch.MaxLoginAttempts != nil {
		next.MaxLoginAttempts = *patch.MaxLoginAttempts
	}
	if patch.LockoutDuration != nil {
		next.LockoutDuration = *patch.LockoutDuration
	}
	if patch.SessionTimeout != nil {
		next.SessionTimeout = *patch.SessionTimeout
	}
	if patch.MaxConcurrentSessions != nil {
		next.MaxConcurrentSessions = *patch.MaxConcurrentSessions
	}
	if patch.RequireMFA != nil {
		next.RequireMFA = *patch.RequireMFA
	}
	if patch.MinPasswordLength != nil {
		next.MinPasswordLength = *patch.MinPasswordLength
	}
	if patch.RequirePasswordComplexity != nil {
		next.RequirePasswordComplexity = *patch.RequirePasswordComplexity
	}
	if patch.SuspiciousActivityThreshold != nil {
		next.SuspiciousActivityThreshold = *patch.SuspiciousActivityThreshold
	}

	if err := next.Validate(); err != nil {
		return *h.current.Load(), fmt.Errorf("%w: %s", models.ErrConfigInvalid, err)
	}

	h.current.Store(&next)
	return next, nil
}
