package models

import "time"

// MFAEnrollment represents an enrolled TOTP second factor for an identity.
// The TOTP secret is held AES-256-GCM encrypted and only decrypted for
// code validation.
type MFAEnrollment struct {
	Identity            string     `json:"identity"`
	TOTPSecretEncrypted []byte     `json:"totp_secret_encrypted"`
	TOTPSecretNonce     []byte     `json:"totp_secret_nonce"`
	EnrolledAt          time.Time  `json:"enrolled_at"`
	VerifiedAt          *time.Time `json:"verified_at,omitempty"`
	LastUsedAt          *time.Time `json:"last_used_at,omitempty"`
}

// Verified reports whether the enrollment has been confirmed with a
// valid code at least once.
func (e *MFAEnrollment) Verified() bool {
	return e.VerifiedAt != nil
}
