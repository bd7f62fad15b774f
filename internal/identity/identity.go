// Package identity hands out the stable per-profile identifier used to tell
// this kiosk's bookings apart from everybody else's.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"laundry-kiosk/internal/store"
)

const prefix = "user_"

// Provider resolves the profile identity, generating and persisting it on
// first use.
type Provider struct {
	store store.Store

	mu sync.Mutex
	id string
}

// NewProvider creates a provider backed by the profile store.
func NewProvider(s store.Store) *Provider {
	return &Provider{store: s}
}

// Identity returns the profile identity.
func (p *Provider) Identity(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.id != "" {
		return p.id, nil
	}

	existing, ok, err := p.store.Get(ctx, store.KeyIdentity)
	if err != nil {
		return "", fmt.Errorf("failed to read identity: %w", err)
	}
	if ok && existing != "" {
		p.id = existing
		return p.id, nil
	}

	id := Generate()
	if err := p.store.Set(ctx, store.KeyIdentity, id); err != nil {
		return "", fmt.Errorf("failed to persist identity: %w", err)
	}
	p.id = id
	return p.id, nil
}

// Generate returns a fresh opaque identity such as "user_3f9a1c0b2".
func Generate() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + raw[:9]
}

// Tail returns the last four characters of an identity, as shown in the kiosk
// header.
func Tail(id string) string {
	if len(id) <= 4 {
		return id
	}
	return id[len(id)-4:]
}
