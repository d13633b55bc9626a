// Package delivery provides channel adapters for the dispatch engine: email
// via Postmark, in-app via the presence manager, and logging dev adapters
// for SMS and push.
//
// Adapters implement dispatch.Sender and classify their failures with
// Permanent and Transient so the dispatch worker knows whether to retry.
// Malformed targets (bad email address, non-E.164 phone number, empty device
// token) are always permanent; provider and network failures are transient.
// Unwrapped errors default to retryable.
//
// # Usage
//
//	registry := delivery.NewRegistry()
//
//	emailAdapter, err := delivery.NewPostmarkAdapter(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = registry.Register(dispatch.ChannelEmail, emailAdapter)
//	_ = registry.Register(dispatch.ChannelSMS, delivery.NewDevSMSSender(logger))
//
//	inApp, _ := delivery.NewInAppAdapter(presenceManager)
//	_ = registry.Register(dispatch.ChannelInApp, inApp)
//
//	for _, channel := range registry.Channels() {
//		adapter, _ := registry.Adapter(channel)
//		worker, _ := dispatch.NewWorker(store, channel, adapter, logStore)
//		_ = worker.Start(ctx)
//	}
package delivery
