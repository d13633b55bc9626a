// Package dispatch is the notification dispatch engine: it gates outbound
// notifications against user delivery preferences, fans them out into
// per-channel jobs, and delivers the jobs through channel workers with
// retries and exponential backoff.
//
// # Flow
//
// The Engine receives a Request carrying one payload per target channel.
// Gating happens in order: a disabled category suppresses the whole
// notification; quiet hours defer non-urgent jobs to the window end; a
// disabled channel suppresses just that channel. Whatever survives becomes
// one Job per channel in Storage, plus a pending delivery log entry.
//
// Workers (one per channel) claim due jobs with a lock, invoke a Sender,
// and settle the outcome: success completes the job and marks the log entry
// sent (delivered when the provider confirms synchronously); retryable
// failures reschedule with doubling backoff until MaxAttempts; non-retryable
// failures and exhausted jobs fail terminally. Expired locks from crashed
// workers are requeued once, then count as a failed attempt.
//
// # Usage
//
//	store := dispatch.NewMemoryStorage()
//	defer store.Close()
//
//	engine, err := dispatch.NewEngine(store, resolver, logStore)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	receipt, err := engine.Dispatch(ctx, dispatch.Request{
//		NotificationID: uuid.New(),
//		UserID:         "user-42",
//		Category:       "ride_updates",
//		Priority:       dispatch.PriorityNormal,
//		Payloads: []dispatch.Payload{
//			dispatch.EmailPayload{To: "rider@example.com", Subject: "Driver arriving", BodyHTML: "<p>2 minutes away</p>"},
//			dispatch.PushPayload{DeviceToken: "tok", Title: "Driver arriving", Body: "2 minutes away"},
//		},
//	})
//
//	worker, err := dispatch.NewWorker(store, dispatch.ChannelEmail, emailSender, logStore,
//		dispatch.WithMaxConcurrentSends(4))
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = worker.Start(ctx)
//	defer worker.Stop()
//
// For multi-process deployments back the engine with NewRedisStorage and run
// RecoverExpired periodically per channel.
package dispatch
