package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span and metric attribute keys.
//
// SECURITY: Never put actual credential values (tokens, passwords,
// session ids) into traces or metrics. Only metadata such as device
// class, rejection reason, and operation names is safe: traces are
// persisted, replicated, and readable by wider audiences than the
// production store.
const (
	// Auth flow attributes
	AttrDevice       = "auth.device"         // Device class (web/mobile)
	AttrRejectReason = "auth.reject_reason"  // Rejection reason code
	AttrSessionReuse = "auth.session_reused" // Whether a live session was reused (boolean)
	AttrTokenRotated = "auth.token_rotated"  //nolint:gosec // Whether the refresh token was rotated (boolean)

	// Storage attributes
	AttrStoreOperation = "store.operation"
	AttrStoreResult    = "store.result"
)

// RecordError records an error on a span with proper status codes (nil-safe)
func RecordError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetAttributes sets attributes on a span (nil-safe)
func SetAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}
