package dispatch

import (
	"context"
	"errors"
)

// SendResult reports the outcome of a provider send.
type SendResult struct {
	// ProviderMessageID is the provider-assigned identifier, when available.
	ProviderMessageID string
	// Delivered is true when the provider confirms end-user delivery
	// synchronously (e.g. an in-app send over a live connection). Most
	// providers only confirm acceptance, leaving this false.
	Delivered bool
}

// Sender delivers a payload through a concrete channel provider. Adapters in
// pkg/delivery implement this interface.
type Sender interface {
	Send(ctx context.Context, payload Payload) (SendResult, error)
}

// retryableError is implemented by adapter errors that know whether a retry
// could succeed. Errors that don't implement it are treated as retryable, so
// unknown provider failures get the benefit of the doubt.
type retryableError interface {
	Retryable() bool
}

func isRetryable(err error) bool {
	var re retryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}
