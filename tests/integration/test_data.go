package integration

import (
	"fmt"
	"time"
)

// TestIdentity generates unique test credentials using a timestamp
func TestIdentity(suffix string) (identity, secret string) {
	ts := time.Now().UnixNano()
	identity = fmt.Sprintf("test-%d-%s@example.com", ts, suffix)
	secret = "correct horse battery staple"
	return
}
