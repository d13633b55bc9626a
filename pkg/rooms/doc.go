// Package rooms tracks who is currently listening to a logical room (chat
// room or ride-tracking channel) and fans events out to the live members.
//
// Join is gated by an Authorizer collaborator: the CRUD layer owns the
// persisted "who may join" records, this service only caches who is present
// right now. Membership is per user, not per connection: a user joined from
// two devices receives room events on both, and remains a member until the
// last of their joined connections leaves or disconnects.
//
// State per (connection, room) pair is strictly absent -> joined -> absent.
// Joined implies inclusion in fan-out; the member snapshot for a fan-out is
// taken under the room lock, so a join or leave racing with a fan-out on
// the same room serializes against it.
//
// Typing indicators are ephemeral fan-outs: at-most-once, unordered, no
// retry, no persistence.
package rooms
