package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/ridekit/pkg/dispatch"
	"github.com/dmitrymomot/ridekit/pkg/presence"
)

// InAppAdapter delivers notifications over the user's live connections via
// the presence manager. Delivery is confirmed synchronously: the event
// reached at least one open connection.
type InAppAdapter struct {
	manager *presence.Manager
}

// NewInAppAdapter creates an in-app adapter on top of the presence manager.
func NewInAppAdapter(manager *presence.Manager) (*InAppAdapter, error) {
	if manager == nil {
		return nil, fmt.Errorf("%w: presence manager is required", ErrInvalidConfig)
	}
	return &InAppAdapter{manager: manager}, nil
}

func (a *InAppAdapter) Send(ctx context.Context, payload dispatch.Payload) (dispatch.SendResult, error) {
	inApp, ok := payload.(dispatch.InAppPayload)
	if !ok {
		return dispatch.SendResult{}, Permanent(fmt.Errorf("%w: %T", ErrUnexpectedPayload, payload))
	}

	data := map[string]any{
		"title":   inApp.Title,
		"message": inApp.Message,
	}
	for k, v := range inApp.Data {
		data[k] = v
	}

	delivered := a.manager.SendToUser(inApp.UserID, presence.Event{
		Type:   presence.EventNotification,
		UserID: inApp.UserID,
		At:     time.Now(),
		Data:   data,
	})
	if !delivered {
		// The user may connect before the next retry.
		return dispatch.SendResult{}, Transient(fmt.Errorf("%w: user %s", ErrUserOffline, inApp.UserID))
	}

	return dispatch.SendResult{Delivered: true}, nil
}
