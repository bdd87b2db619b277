package devices

import "sync"

// Registry maps device signatures to the identity that last presented
// them. Entries are added on successful login and never removed;
// retention is an external concern.
type Registry struct {
	mu    sync.RWMutex
	known map[string]string // signature → identity
}

func NewRegistry() *Registry {
	return &Registry{
		known: make(map[string]string),
	}
}

// Register records the signature as a known device for the identity.
func (r *Registry) Register(signature, identity string) {
	if signature == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[signature] = identity
}

// KnownFor reports whether the signature is a known device for the
// given identity. A signature registered to a different identity does
// not count.
func (r *Registry) KnownFor(signature, identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	owner, ok := r.known[signature]
	return ok && owner == identity
}

// Known reports whether the signature has been seen for any identity.
func (r *Registry) Known(signature string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.known[signature]
	return ok
}

// Len returns the number of registered signatures.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.known)
}
