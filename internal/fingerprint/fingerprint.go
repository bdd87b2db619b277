package fingerprint

import (
	"crypto/sha256"
	"fmt"
)

// Derive creates a stable device signature from the network address
// and raw client signature. The algorithm only needs a stable
// signature per device, not a hard-to-forge one; the risk engine
// treats an unknown signature as one more risk factor, never as proof
// of identity.
func Derive(address, clientSignature string) string {
	data := []byte(fmt.Sprintf("%s:%s", address, clientSignature))
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)[:32] // Use first 32 chars of hex hash
}
