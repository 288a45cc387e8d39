// Package metrics exposes the service's OpenTelemetry instruments.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var ErrNilMeter = errors.New("nil meter")

// Recorder records service events. A nil *Recorder discards everything.
type Recorder struct {
	authDecisions metric.Int64Counter
	logins        metric.Int64Counter
	attendance    metric.Int64Counter
	httpDuration  metric.Float64Histogram
	meter         metric.Meter
	registration  metric.Registration
}

// New creates the instruments on meter.
func New(meter metric.Meter) (*Recorder, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	r := &Recorder{meter: meter}
	var err error
	if r.authDecisions, err = meter.Int64Counter("emargement.auth.decisions",
		metric.WithDescription("Authorization decisions by outcome.")); err != nil {
		return nil, fmt.Errorf("create auth decisions counter: %w", err)
	}
	if r.logins, err = meter.Int64Counter("emargement.auth.logins",
		metric.WithDescription("Login attempts by outcome.")); err != nil {
		return nil, fmt.Errorf("create logins counter: %w", err)
	}
	if r.attendance, err = meter.Int64Counter("emargement.attendance.recorded",
		metric.WithDescription("Attendance records created.")); err != nil {
		return nil, fmt.Errorf("create attendance counter: %w", err)
	}
	if r.httpDuration, err = meter.Float64Histogram("emargement.http.request.duration",
		metric.WithDescription("HTTP request latency."), metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("create http duration histogram: %w", err)
	}
	return r, nil
}

// AuthDecision counts one authorization decision.
func (r *Recorder) AuthDecision(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.authDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// LoginAttempt counts one login attempt.
func (r *Recorder) LoginAttempt(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// AttendanceRecorded counts one new attendance record.
func (r *Recorder) AttendanceRecorded(ctx context.Context) {
	if r == nil {
		return
	}
	r.attendance.Add(ctx, 1)
}

// HTTPRequest records the latency of one served request.
func (r *Recorder) HTTPRequest(ctx context.Context, method, route string, status int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpDuration.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}

// ObservePool reports connection pool gauges from stats at collection time.
func (r *Recorder) ObservePool(stats func() sql.DBStats) error {
	if r == nil {
		return nil
	}
	open, err := r.meter.Int64ObservableGauge("emargement.db.connections.open",
		metric.WithDescription("Open connections in the store pool."))
	if err != nil {
		return fmt.Errorf("create pool open gauge: %w", err)
	}
	inUse, err := r.meter.Int64ObservableGauge("emargement.db.connections.in_use",
		metric.WithDescription("Store connections currently in use."))
	if err != nil {
		return fmt.Errorf("create pool in-use gauge: %w", err)
	}
	reg, err := r.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := stats()
		o.ObserveInt64(open, int64(s.OpenConnections))
		o.ObserveInt64(inUse, int64(s.InUse))
		return nil
	}, open, inUse)
	if err != nil {
		return fmt.Errorf("register pool callback: %w", err)
	}
	r.registration = reg
	return nil
}

// Close unregisters observable callbacks.
func (r *Recorder) Close() error {
	if r == nil || r.registration == nil {
		return nil
	}
	return r.registration.Unregister()
}
