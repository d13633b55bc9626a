// Package logger provides a small factory around log/slog plus typed
// attribute helpers shared by all ridekit components.
//
// The factory produces JSON logs with INFO level by default, which is what
// log aggregation pipelines expect in production. Development setups switch
// to text output with debug level via WithDevelopment.
//
// # Usage
//
//	log := logger.New(logger.WithProduction("dispatch"))
//	log.Info("worker started", logger.Channel("email"))
//
// The attribute helpers keep log field names consistent across packages:
// user_id, conn_id, room_id, job_id, notification_id, channel and so on.
// Components accept a *slog.Logger through a functional option and fall
// back to slog.Default() when none is supplied.
package logger
