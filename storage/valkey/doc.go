// Package valkey provides a Valkey storage backend for the
// dualeat-auth library.
//
// Valkey is a high-performance key-value store that is wire-compatible
// with Redis. This backend is suitable for production deployments that
// require:
//
//   - Distributed storage for horizontal scaling
//   - Persistence across server restarts
//   - Automatic TTL-based expiration
//
// # Key Schema
//
// All keys use a configurable prefix (default "dualeat:") to avoid
// conflicts with other applications sharing the same Valkey instance.
// On top of the prefix, the session package writes:
//
//	{prefix}session:{sessionID}            -> JSON(session.Data)
//	{prefix}user-session:{userID}:{device} -> sessionID
//	{prefix}refresh:{sessionID}:{hashedID} -> "valid"
//
// The prefix is invisible to callers: Keys returns logical keys with
// the prefix stripped.
//
// # Consistency
//
// The store provides no cross-key atomicity. The session and token
// layers are written to tolerate read-then-write races; see the
// session package documentation for the accepted race windows.
package valkey
