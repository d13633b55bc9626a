package delivery

import (
	"fmt"
	"sync"

	"github.com/dmitrymomot/ridekit/pkg/dispatch"
)

// Registry maps channels to their adapters so callers can wire one worker
// per channel without hardcoding the adapter set.
type Registry struct {
	mu       sync.RWMutex
	adapters map[dispatch.Channel]dispatch.Sender
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[dispatch.Channel]dispatch.Sender),
	}
}

// Register binds an adapter to a channel, replacing any previous binding.
func (r *Registry) Register(channel dispatch.Channel, adapter dispatch.Sender) error {
	if !channel.Valid() {
		return fmt.Errorf("cannot register adapter: invalid channel %q", channel)
	}
	if adapter == nil {
		return fmt.Errorf("cannot register nil adapter for channel %q", channel)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[channel] = adapter
	return nil
}

// Adapter returns the adapter bound to the channel.
func (r *Registry) Adapter(channel dispatch.Channel) (dispatch.Sender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[channel]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotRegistered, channel)
	}
	return adapter, nil
}

// Channels returns the channels with a registered adapter.
func (r *Registry) Channels() []dispatch.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]dispatch.Channel, 0, len(r.adapters))
	for channel := range r.adapters {
		channels = append(channels, channel)
	}
	return channels
}
