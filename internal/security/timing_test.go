package security_test

import (
	"testing"
	"time"

	"github.com/strandpine/warden/internal/security"
	"github.com/stretchr/testify/assert"
)

func TestTimingDelay_Wait_EnforcesMinimum(t *testing.T) {
	delay := security.NewTimingDelay(100*time.Millisecond, 50*time.Millisecond)
	startTime := time.Now()

	delay.Wait(startTime)

	elapsed := time.Since(startTime)
	// At least 100ms (base), below 250ms (base + max jitter + slack)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 250*time.Millisecond)
}

func TestTimingDelay_Wait_CountsWorkTowardTarget(t *testing.T) {
	delay := security.NewTimingDelay(80*time.Millisecond, 0)
	startTime := time.Now()

	time.Sleep(50 * time.Millisecond)
	delay.Wait(startTime)

	elapsed := time.Since(startTime)
	// The 50ms of work is not added on top of the base delay
	assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond)
	assert.Less(t, elapsed, 160*time.Millisecond)
}

func TestTimingDelay_Wait_NoSleepWhenTargetAlreadyPassed(t *testing.T) {
	delay := security.NewTimingDelay(10*time.Millisecond, 0)
	startTime := time.Now().Add(-time.Second)

	before := time.Now()
	delay.Wait(startTime)

	assert.Less(t, time.Since(before), 10*time.Millisecond)
}

func TestTimingDelay_Wait_NilReceiver(t *testing.T) {
	var delay *security.TimingDelay

	start := time.Now()
	delay.Wait(start)

	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestTimingDelay_Wait_ZeroJitter(t *testing.T) {
	delay := security.NewTimingDelay(20*time.Millisecond, 0)
	startTime := time.Now()

	delay.Wait(startTime)

	elapsed := time.Since(startTime)
	assert.GreaterOrEqual(t, elapsed, 20*time.Millisecond)
	assert.Less(t, elapsed, 80*time.Millisecond)
}
