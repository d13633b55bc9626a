package prefs

import (
	"context"
	"sync"
)

// Resolver looks up delivery preferences by user id. Implementations must
// return Default() rather than an error when no record exists for the user;
// errors are reserved for lookup failures (store unavailable, bad data).
type Resolver interface {
	Resolve(ctx context.Context, userID string) (Preference, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, userID string) (Preference, error)

func (f ResolverFunc) Resolve(ctx context.Context, userID string) (Preference, error) {
	return f(ctx, userID)
}

// StaticResolver serves preferences from an in-memory map, falling back to
// Default() for unknown users. Suitable for tests and local development.
type StaticResolver struct {
	mu    sync.RWMutex
	prefs map[string]Preference
}

// NewStaticResolver creates a resolver seeded with the given preferences.
func NewStaticResolver(seed map[string]Preference) *StaticResolver {
	prefs := make(map[string]Preference, len(seed))
	for userID, p := range seed {
		prefs[userID] = p
	}
	return &StaticResolver{prefs: prefs}
}

func (r *StaticResolver) Resolve(ctx context.Context, userID string) (Preference, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.prefs[userID]; ok {
		return p, nil
	}
	return Default(), nil
}

// Set stores or replaces the preference for a user.
func (r *StaticResolver) Set(userID string, p Preference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[userID] = p
}
