package mfa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

// replayWindow is the span within which an already-used code is
// rejected: one 30s period plus one step of skew on each side.
const replayWindow = 90 * time.Second

// validateOpts pins the code parameters both ends must agree on.
var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      1,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// TOTP generates, encrypts and validates time-based one-time
// passwords. Secrets are base32 strings as produced by the otp
// library; they are AES-256-GCM encrypted before they touch storage.
type TOTP struct {
	encryptionKey []byte
	issuer        string
}

// NewTOTP creates a TOTP helper. encryptionKey must be exactly 32
// bytes for AES-256.
func NewTOTP(encryptionKey []byte, issuer string) (*TOTP, error) {
	if len(encryptionKey) != 32 {
		return nil, fmt.Errorf("encryption key must be exactly 32 bytes, got %d", len(encryptionKey))
	}
	return &TOTP{encryptionKey: encryptionKey, issuer: issuer}, nil
}

// aead builds the AES-256-GCM primitive for the configured key.
func (t *TOTP) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(t.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}

// Generate creates a fresh secret for the identity. Returns the
// base32 secret, the otpauth provisioning URL and a PNG QR code of
// that URL as a data URL for enrollment UIs.
func (t *TOTP) Generate(identity string) (secret, url, qrDataURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: identity,
		SecretSize:  32,
		Period:      30,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", "", fmt.Errorf("generate totp key: %w", err)
	}

	qr, err := qrcode.New(key.URL(), qrcode.Medium)
	if err != nil {
		return "", "", "", fmt.Errorf("build qr code: %w", err)
	}
	png, err := qr.PNG(200)
	if err != nil {
		return "", "", "", fmt.Errorf("render qr code: %w", err)
	}

	return key.Secret(), key.URL(), "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// EncryptSecret encrypts a secret with AES-256-GCM. Returns the
// ciphertext and the 12-byte nonce.
func (t *TOTP) EncryptSecret(secret string) ([]byte, []byte, error) {
	gcm, err := t.aead()
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, []byte(secret), nil), nonce, nil
}

// DecryptSecret reverses EncryptSecret.
func (t *TOTP) DecryptSecret(ciphertext, nonce []byte) (string, error) {
	gcm, err := t.aead()
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt secret: %w", err)
	}
	return string(plaintext), nil
}

// ValidateCode checks a six-digit code against the secret, allowing
// one 30s step of clock drift each way. A code presented within the
// replay window of the previous successful use is rejected even when
// arithmetically valid.
func (t *TOTP) ValidateCode(secret, code string, lastUsedAt *time.Time) (bool, error) {
	valid, err := totp.ValidateCustom(code, secret, time.Now(), validateOpts)
	if err != nil {
		return false, fmt.Errorf("validate code: %w", err)
	}
	if !valid {
		return false, nil
	}

	if lastUsedAt != nil && time.Since(*lastUsedAt) < replayWindow {
		return false, fmt.Errorf("code replay detected")
	}
	return true, nil
}
