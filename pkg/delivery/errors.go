package delivery

import "errors"

var (
	// ErrInvalidConfig is returned when an adapter is constructed with
	// incomplete configuration.
	ErrInvalidConfig = errors.New("invalid adapter config")
	// ErrUnexpectedPayload is returned when an adapter receives a payload
	// for a different channel.
	ErrUnexpectedPayload = errors.New("unexpected payload type")
	// ErrInvalidRecipient is returned when the target address fails format
	// validation. Always permanent: a malformed address never fixes itself.
	ErrInvalidRecipient = errors.New("invalid recipient")
	// ErrUserOffline is returned by the in-app adapter when the user has no
	// live connection. Transient: a retry may catch the user online.
	ErrUserOffline = errors.New("user has no live connection")
	// ErrSendFailed wraps provider failures.
	ErrSendFailed = errors.New("failed to send notification")
	// ErrAdapterNotRegistered is returned by the registry for channels
	// without an adapter.
	ErrAdapterNotRegistered = errors.New("no adapter registered for channel")
)

// Error classifies an adapter failure as retryable or permanent so the
// dispatch worker knows whether another attempt could succeed.
type Error struct {
	Err       error
	retryable bool
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "delivery error"
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a retry of the failed send could succeed.
func (e *Error) Retryable() bool { return e.retryable }

// Permanent wraps err as a non-retryable delivery error.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, retryable: false}
}

// Transient wraps err as a retryable delivery error.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, retryable: true}
}

// IsRetryable reports whether the error permits another delivery attempt.
// Errors without an explicit classification are treated as retryable.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Retryable()
	}
	return true
}
