package instrumentation

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the auth library
type Metrics struct {
	// Auth flow metrics
	LoginsTotal     metric.Int64Counter
	LoginFailures   metric.Int64Counter
	TokenRefreshed  metric.Int64Counter
	RefreshRejected metric.Int64Counter
	TokenRevoked    metric.Int64Counter

	// Session metrics
	SessionsCreated metric.Int64Counter
	SessionsReused  metric.Int64Counter
	SessionsDeleted metric.Int64Counter

	// Security metrics
	RefreshReuseDetected metric.Int64Counter

	// Storage metrics
	StoreOperationTotal    metric.Int64Counter
	StoreOperationDuration metric.Float64Histogram
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	authMeter := inst.Meter("auth")
	sessionMeter := inst.Meter("session")
	storageMeter := inst.Meter("storage")

	m := &Metrics{}

	var err error
	m.LoginsTotal, err = authMeter.Int64Counter(
		"auth.logins.total",
		metric.WithDescription("Number of successful logins"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logins.total counter: %w", err)
	}

	m.LoginFailures, err = authMeter.Int64Counter(
		"auth.logins.failed",
		metric.WithDescription("Number of failed login attempts"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logins.failed counter: %w", err)
	}

	m.TokenRefreshed, err = authMeter.Int64Counter(
		"auth.token.refreshed",
		metric.WithDescription("Number of successful refresh exchanges (rotations)"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.refreshed counter: %w", err)
	}

	m.RefreshRejected, err = authMeter.Int64Counter(
		"auth.refresh.rejected",
		metric.WithDescription("Number of rejected refresh attempts by reason"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh.rejected counter: %w", err)
	}

	m.TokenRevoked, err = authMeter.Int64Counter(
		"auth.token.revoked",
		metric.WithDescription("Number of refresh tokens revoked"),
		metric.WithUnit("{revocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.revoked counter: %w", err)
	}

	m.SessionsCreated, err = sessionMeter.Int64Counter(
		"auth.sessions.created",
		metric.WithDescription("Number of sessions created"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions.created counter: %w", err)
	}

	m.SessionsReused, err = sessionMeter.Int64Counter(
		"auth.sessions.reused",
		metric.WithDescription("Number of logins that reused a live session"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions.reused counter: %w", err)
	}

	m.SessionsDeleted, err = sessionMeter.Int64Counter(
		"auth.sessions.deleted",
		metric.WithDescription("Number of sessions deleted"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions.deleted counter: %w", err)
	}

	m.RefreshReuseDetected, err = authMeter.Int64Counter(
		"auth.refresh.reuse_detected",
		metric.WithDescription("Number of revoked or unknown refresh tokens presented"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh.reuse_detected counter: %w", err)
	}

	m.StoreOperationTotal, err = storageMeter.Int64Counter(
		"auth.store.operations.total",
		metric.WithDescription("Number of key-value store operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store.operations.total counter: %w", err)
	}

	m.StoreOperationDuration, err = storageMeter.Float64Histogram(
		"auth.store.operation.duration",
		metric.WithDescription("Key-value store operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store.operation.duration histogram: %w", err)
	}

	return m, nil
}

// RecordStoreOperation records one key-value store operation with its
// duration and result (nil-safe).
func (m *Metrics) RecordStoreOperation(ctx context.Context, operation string, start time.Time, err error) {
	if m == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrStoreOperation, operation),
		attribute.String(AttrStoreResult, result),
	)

	m.StoreOperationTotal.Add(ctx, 1, attrs)
	m.StoreOperationDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000.0, attrs)
}
