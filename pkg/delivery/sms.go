package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/dmitrymomot/ridekit/pkg/dispatch"
)

// e164Regex matches E.164 international phone numbers.
var e164Regex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// DevSMSSender is a development SMS adapter: it validates the target number
// like a real provider would and logs the message instead of sending it.
type DevSMSSender struct {
	logger *slog.Logger
}

// NewDevSMSSender creates a logging SMS adapter.
func NewDevSMSSender(logger *slog.Logger) *DevSMSSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &DevSMSSender{logger: logger}
}

func (s *DevSMSSender) Send(ctx context.Context, payload dispatch.Payload) (dispatch.SendResult, error) {
	sms, ok := payload.(dispatch.SMSPayload)
	if !ok {
		return dispatch.SendResult{}, Permanent(fmt.Errorf("%w: %T", ErrUnexpectedPayload, payload))
	}
	if !e164Regex.MatchString(sms.PhoneNumber) {
		return dispatch.SendResult{}, Permanent(fmt.Errorf("%w: phone number %q is not E.164", ErrInvalidRecipient, sms.PhoneNumber))
	}

	s.logger.InfoContext(ctx, "sms sent (dev)",
		slog.String("phone_number", sms.PhoneNumber),
		slog.Int("text_length", len(sms.Text)))

	return dispatch.SendResult{}, nil
}
