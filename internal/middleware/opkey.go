package middleware

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	pkghttp "github.com/strandpine/warden/pkg/http"
)

// operatorKeyPrefix marks operator keys so they are recognizable in
// config files and never mistaken for session ids.
const operatorKeyPrefix = "wdn_"

// GenerateOperatorKey creates a new operator key in the format
// wdn_<64 hex chars>. Returns the plaintext key (shown once) and its
// SHA-256 hash (what the server stores).
func GenerateOperatorKey() (plainKey, hash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plainKey = operatorKeyPrefix + hex.EncodeToString(randomBytes)
	hashBytes := sha256.Sum256([]byte(plainKey))
	return plainKey, hex.EncodeToString(hashBytes[:]), nil
}

// HashOperatorKey validates the key format and returns its SHA-256
// hash.
func HashOperatorKey(plainKey string) (string, error) {
	if !strings.HasPrefix(plainKey, operatorKeyPrefix) {
		return "", errors.New("invalid operator key format: missing prefix")
	}
	if len(plainKey) != len(operatorKeyPrefix)+64 {
		return "", fmt.Errorf("invalid operator key format: expected %d chars, got %d", len(operatorKeyPrefix)+64, len(plainKey))
	}
	hashBytes := sha256.Sum256([]byte(plainKey))
	return hex.EncodeToString(hashBytes[:]), nil
}

// RequireOperatorKey gates the operator surface behind a pre-shared
// key sent in the X-Operator-Key header. When no key hash is
// configured the surface fails closed with 503 rather than opening
// up.
func RequireOperatorKey(keyHash string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				pkghttp.WriteError(w, http.StatusServiceUnavailable, "operator_surface_disabled", "Operator endpoints are not configured")
				return
			}

			presented := r.Header.Get("X-Operator-Key")
			if presented == "" {
				pkghttp.WriteUnauthorized(w, "Missing operator key")
				return
			}

			presentedHash, err := HashOperatorKey(presented)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid operator key")
				return
			}

			if subtle.ConstantTimeCompare([]byte(presentedHash), []byte(keyHash)) != 1 {
				logger.Warn("operator key rejected", slog.String("path", r.URL.Path))
				pkghttp.WriteUnauthorized(w, "Invalid operator key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
