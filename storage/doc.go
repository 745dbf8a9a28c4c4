// Package storage defines the key-value contract for the dualeat-auth
// library and hosts its backend implementations.
//
// # Available Backends
//
//   - [github.com/Galoniax/dualeat-auth/storage/memory]: In-memory
//     store for development, testing, and single-instance deployments.
//   - [github.com/Galoniax/dualeat-auth/storage/valkey]: Valkey/Redis
//     store for production deployments requiring persistence and
//     horizontal scaling.
//
// Both backends enforce TTL-based expiry; expired keys behave exactly
// like absent keys.
package storage
