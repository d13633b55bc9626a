package dispatch

import "errors"

var (
	// ErrStorageNil is returned when a nil storage is passed to a constructor.
	ErrStorageNil = errors.New("storage cannot be nil")
	// ErrSenderNil is returned when a worker is created without a sender.
	ErrSenderNil = errors.New("sender cannot be nil")
	// ErrResolverNil is returned when the engine is created without a
	// preference resolver.
	ErrResolverNil = errors.New("preference resolver cannot be nil")
	// ErrJobNotFound is returned when no job exists with the given id.
	ErrJobNotFound = errors.New("job not found")
	// ErrNoJobToClaim signals an empty queue; workers treat it as a normal
	// idle tick.
	ErrNoJobToClaim = errors.New("no job available to claim")
	// ErrJobNotCancellable is returned when cancellation targets a job that
	// is already claimed, terminal, or due.
	ErrJobNotCancellable = errors.New("job is not cancellable")
	// ErrInvalidRequest is returned when a dispatch request is missing
	// required identifiers.
	ErrInvalidRequest = errors.New("invalid dispatch request")
	// ErrInvalidPayload is returned for payloads that fail validation or
	// cannot be decoded.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrInvalidChannel is returned when a request names an unsupported channel.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrInvalidSchedule is returned when a scheduled time is not strictly
	// in the future.
	ErrInvalidSchedule = errors.New("scheduled time must be in the future")
	// ErrNoChannels is returned when a dispatch request carries no channel
	// content.
	ErrNoChannels = errors.New("request has no channels")
	// ErrWorkerAlreadyStarted is returned on double Start.
	ErrWorkerAlreadyStarted = errors.New("worker already started")
	// ErrWorkerNotStarted is returned when Stop is called before Start.
	ErrWorkerNotStarted = errors.New("worker not started")
)
