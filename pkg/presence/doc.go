// Package presence is the in-process connection manager: it authenticates
// persistent connections at handshake time, indexes them by user and
// provides targeted and broadcast send primitives.
//
// A user may hold any number of concurrent connections (multi-device);
// every connection belongs to exactly one user. Presence is single-process
// and in-memory: connections live exactly as long as the manager tracks
// them, nothing is persisted.
//
// # Lifecycle
//
//	identity, err := mgr.Authenticate(ctx, token) // exactly once, before anything else
//	if err != nil { /* close the connection, never retry */ }
//	mgr.Register(conn, identity)                  // acks the client, notifies observers
//	defer mgr.Unregister(conn)                    // idempotent, evicts from all rooms
//
// Authentication failures are terminal for the connection. Mid-session send
// failures close the one failing connection and are reported to callers as
// undelivered for that connection only; the user's other connections are
// unaffected.
//
// Fan-out into logical rooms lives in the rooms package, which builds on
// SendToUser and registers itself as the manager's RoomEvictor.
package presence
