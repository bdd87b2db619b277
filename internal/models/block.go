package models

import "time"

// BlockedAddress is a temporary ban on login attempts from a network
// address. Blocking is address-scoped, not identity-scoped; the
// attacker is penalized, not the victim account.
type BlockedAddress struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the block has lapsed at the supplied instant.
func (b *BlockedAddress) Expired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}
