package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/strandpine/warden/pkg/auth"
)

// TokenClaims is the JWT payload of a locally issued identity token.
type TokenClaims struct {
	Identity string `json:"identity"`
	jwt.RegisteredClaims
}

type credential struct {
	passwordHash string
	confirmed    bool
}

// LocalProvider is an in-memory Provider for development and tests. It
// verifies bcrypt-hashed secrets and issues short-lived HS256 identity
// tokens. No persistence, no password reset, no account states beyond
// the confirmed flag.
type LocalProvider struct {
	mu          sync.RWMutex
	credentials map[string]credential
	secret      string
	tokenExpiry time.Duration
}

// NewLocalProvider creates an empty provider signing tokens with
// secret. Seed identities via Register.
func NewLocalProvider(secret string, tokenExpiry time.Duration) *LocalProvider {
	return &LocalProvider{
		credentials: make(map[string]credential),
		secret:      secret,
		tokenExpiry: tokenExpiry,
	}
}

// Register adds or replaces a credential. The secret is validated
// against the supplied password policy and stored bcrypt-hashed.
func (p *LocalProvider) Register(identity, secret string, confirmed bool, policy auth.PasswordPolicy) error {
	identity = normalizeIdentity(identity)
	if identity == "" {
		return fmt.Errorf("identity is required")
	}
	if err := auth.ValidatePassword(secret, policy); err != nil {
		return err
	}

	hash, err := auth.HashPassword(secret)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.credentials[identity] = credential{passwordHash: hash, confirmed: confirmed}
	return nil
}

// Verify checks the secret against the stored hash and issues an
// identity token. Unknown identities and wrong secrets both map to
// ErrInvalidCredentials so the two cases are indistinguishable to
// callers.
func (p *LocalProvider) Verify(ctx context.Context, identity, secret string) (*Verified, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	identity = normalizeIdentity(identity)

	p.mu.RLock()
	cred, ok := p.credentials[identity]
	p.mu.RUnlock()

	if !ok {
		// Burn a bcrypt comparison anyway so a missing identity costs
		// the same as a wrong secret.
		auth.ComparePassword(missingIdentityHash, secret)
		return nil, ErrInvalidCredentials
	}

	if err := auth.ComparePassword(cred.passwordHash, secret); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !cred.confirmed {
		return nil, ErrEmailUnconfirmed
	}

	token, err := p.issueToken(identity)
	if err != nil {
		return nil, fmt.Errorf("issue identity token: %w", err)
	}

	return &Verified{Identity: identity, Token: token}, nil
}

// issueToken signs an HS256 identity token with a uuid JTI.
func (p *LocalProvider) issueToken(identity string) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		Identity: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(p.secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken validates a locally issued identity token and returns its
// claims. Used by tests and by callers that accept local tokens.
func (p *LocalProvider) ParseToken(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(p.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func normalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

// missingIdentityHash is a valid bcrypt hash of random bytes, compared
// against when the identity does not exist.
const missingIdentityHash = "$2a$14$5FJbNLZUbt3Nwu0T0Ym49u4htUxvIJHemz3cCge6Euf1d5Ej9bKNm"
