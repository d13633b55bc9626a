package delivery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/ridekit/pkg/dispatch"
)

// DevPushSender is a development push adapter: it validates the device token
// and logs the notification instead of calling a push gateway.
type DevPushSender struct {
	logger *slog.Logger
}

// NewDevPushSender creates a logging push adapter.
func NewDevPushSender(logger *slog.Logger) *DevPushSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevPushSender{logger: logger}
}

func (s *DevPushSender) Send(ctx context.Context, payload dispatch.Payload) (dispatch.SendResult, error) {
	push, ok := payload.(dispatch.PushPayload)
	if !ok {
		return dispatch.SendResult{}, Permanent(fmt.Errorf("%w: %T", ErrUnexpectedPayload, payload))
	}
	if push.DeviceToken == "" {
		return dispatch.SendResult{}, Permanent(fmt.Errorf("%w: empty device token", ErrInvalidRecipient))
	}

	s.logger.InfoContext(ctx, "push sent (dev)",
		slog.String("device_token", push.DeviceToken),
		slog.String("title", push.Title))

	return dispatch.SendResult{}, nil
}
