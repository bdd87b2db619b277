package fingerprint_test

import (
	"testing"

	"github.com/strandpine/warden/internal/fingerprint"
	"github.com/stretchr/testify/assert"
)

func TestDerive_Stable(t *testing.T) {
	first := fingerprint.Derive("203.0.113.10", "Mozilla/5.0")
	second := fingerprint.Derive("203.0.113.10", "Mozilla/5.0")

	assert.Equal(t, first, second, "same address and client signature must derive the same device signature")
	assert.Len(t, first, 32)
}

func TestDerive_DiffersByAddress(t *testing.T) {
	a := fingerprint.Derive("203.0.113.10", "Mozilla/5.0")
	b := fingerprint.Derive("203.0.113.11", "Mozilla/5.0")

	assert.NotEqual(t, a, b)
}

func TestDerive_DiffersByClientSignature(t *testing.T) {
	a := fingerprint.Derive("203.0.113.10", "Mozilla/5.0")
	b := fingerprint.Derive("203.0.113.10", "curl/8.0")

	assert.NotEqual(t, a, b)
}
