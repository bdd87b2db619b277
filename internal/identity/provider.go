package identity

import (
	"context"
	"errors"
)

// Typed provider errors. The security facade categorizes failures by
// matching these with errors.Is; providers must wrap or return them
// directly rather than encoding the cause in a message string.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailUnconfirmed   = errors.New("email unconfirmed")
	ErrRateLimited        = errors.New("provider rate limited")
)

// Verified is the opaque value a provider returns for a successful
// credential check. Token is provider-issued; the security manager
// passes it through without inspecting it.
type Verified struct {
	Identity string
	Token    string
}

// Provider is the external collaborator that verifies credentials.
// Implementations own credential storage and hashing; the security
// manager never sees secrets at rest. Verify must honor ctx deadlines:
// the facade treats a timeout as a generic auth error.
type Provider interface {
	Verify(ctx context.Context, identity, secret string) (*Verified, error)
}
