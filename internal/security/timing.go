package security

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingDelay pads failed login responses so fast failures (an address
// block, an unknown identity) and slow ones (a bcrypt comparison) take
// roughly the same wall time. The jitter comes from crypto/rand.
type TimingDelay struct {
	base   time.Duration
	jitter time.Duration
}

// NewTimingDelay creates a delay of base plus a random amount in
// [0, jitter).
func NewTimingDelay(base, jitter time.Duration) *TimingDelay {
	return &TimingDelay{base: base, jitter: jitter}
}

// Wait sleeps until at least base + rand(jitter) has elapsed since
// start. Work already done between start and the call counts toward
// the target, so fast and slow failure paths converge.
func (d *TimingDelay) Wait(start time.Time) {
	if d == nil {
		return
	}
	target := d.base + randomDuration(d.jitter)
	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// randomDuration returns a crypto/rand duration in [0, max).
func randomDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	n := binary.BigEndian.Uint64(buf[:])
	return time.Duration(n % uint64(max))
}
