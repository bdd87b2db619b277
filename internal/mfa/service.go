package mfa

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/strandpine/warden/internal/models"
)

// EnrollmentResult is handed back once at enrollment time. The plain
// secret and QR code are never stored or returned again.
type EnrollmentResult struct {
	Secret    string `json:"secret"`
	URL       string `json:"url"`
	QRDataURL string `json:"qr_data_url"`
}

// Service manages TOTP enrollments. Enrollments live in memory for
// the process lifetime; identities re-enroll after a restart. Secrets
// are held encrypted and decrypted only for the duration of one code
// check.
type Service struct {
	mu          sync.Mutex
	enrollments map[string]*models.MFAEnrollment
	totp        *TOTP
	logger      *slog.Logger
}

func NewService(totp *TOTP, logger *slog.Logger) *Service {
	return &Service{
		enrollments: make(map[string]*models.MFAEnrollment),
		totp:        totp,
		logger:      logger,
	}
}

// Enroll creates a fresh secret for the identity. Re-enrolling
// replaces the previous secret, so a lost authenticator can be
// rotated out.
func (s *Service) Enroll(_ context.Context, identity string) (*EnrollmentResult, error) {
	secret, url, qrDataURL, err := s.totp.Generate(identity)
	if err != nil {
		return nil, err
	}
	encrypted, nonce, err := s.totp.EncryptSecret(secret)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.enrollments[identity] = &models.MFAEnrollment{
		Identity:            identity,
		TOTPSecretEncrypted: encrypted,
		TOTPSecretNonce:     nonce,
		EnrolledAt:          time.Now().UTC(),
	}
	s.mu.Unlock()

	s.logger.Info("second factor enrolled", slog.String("identity", identity))
	return &EnrollmentResult{Secret: secret, URL: url, QRDataURL: qrDataURL}, nil
}

// Validate checks a code for the identity. On success the enrollment
// is stamped verified and the replay clock starts.
func (s *Service) Validate(_ context.Context, identity, code string) error {
	s.mu.Lock()
	enrollment, ok := s.enrollments[identity]
	if !ok {
		s.mu.Unlock()
		return models.ErrMFANotEnrolled
	}
	encrypted := enrollment.TOTPSecretEncrypted
	nonce := enrollment.TOTPSecretNonce
	lastUsed := enrollment.LastUsedAt
	s.mu.Unlock()

	secret, err := s.totp.DecryptSecret(encrypted, nonce)
	if err != nil {
		s.logger.Error("failed to decrypt TOTP secret", slog.Any("error", err))
		return models.ErrMFACodeInvalid
	}

	valid, err := s.totp.ValidateCode(secret, code, lastUsed)
	if err != nil || !valid {
		return models.ErrMFACodeInvalid
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if current, ok := s.enrollments[identity]; ok {
		current.LastUsedAt = &now
		if current.VerifiedAt == nil {
			current.VerifiedAt = &now
		}
	}
	s.mu.Unlock()
	return nil
}

// Enrolled reports whether the identity has a second factor on file.
func (s *Service) Enrolled(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.enrollments[identity]
	return ok
}
