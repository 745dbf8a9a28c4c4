// Package auth implements dual-channel session authentication with
// single-use rotating refresh tokens.
//
// The Orchestrator type ties the pieces together: it verifies
// credentials, issues JWT access and refresh token pairs bound to
// server-side sessions, rotates refresh tokens on every use, and tears
// sessions down on logout or account deactivation. Sessions and
// refresh-token state live in a storage.KV backend, so any store that
// satisfies that interface (Valkey in production, the in-memory store
// in tests) works unchanged.
//
// Two client channels are supported. Web clients carry tokens in
// httpOnly cookies and mobile clients use Authorization bearer headers
// and response bodies. The Handler type exposes login, refresh and
// logout over HTTP and a Guard middleware that authenticates requests
// on either channel.
package auth
