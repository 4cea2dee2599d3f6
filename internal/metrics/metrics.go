// Package metrics records compliance counters through the OpenTelemetry metric API.
// Without a configured MeterProvider every instrument is a no-op.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/vytor/ceplayer"

type Recorder struct {
	secondsCredited   metric.Int64Counter
	sessionsClosed    metric.Int64Counter
	corruptStarts     metric.Int64Counter
	hoursCompleted    metric.Int64Counter
	completionRefused metric.Int64Counter
	gateBypassed      metric.Int64Counter
	autoAdvanced      metric.Int64Counter
	suspended         metric.Int64Counter
	activePlayers     metric.Int64UpDownCounter
}

// New builds the instruments on mp, or on the global provider when mp is nil.
func New(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(meterName)

	var (
		r   Recorder
		err error
	)
	if r.secondsCredited, err = m.Int64Counter("ceplayer.seconds_credited",
		metric.WithDescription("Seconds of dwell time credited to hour totals"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.sessionsClosed, err = m.Int64Counter("ceplayer.sessions_closed",
		metric.WithDescription("Dwell sessions closed")); err != nil {
		return nil, err
	}
	if r.corruptStarts, err = m.Int64Counter("ceplayer.sessions_unreadable_start",
		metric.WithDescription("Sessions closed with a missing or unusable start, credited zero")); err != nil {
		return nil, err
	}
	if r.hoursCompleted, err = m.Int64Counter("ceplayer.hours_completed",
		metric.WithDescription("Hours marked complete")); err != nil {
		return nil, err
	}
	if r.completionRefused, err = m.Int64Counter("ceplayer.hour_completion_refused",
		metric.WithDescription("Hour completions refused for insufficient time")); err != nil {
		return nil, err
	}
	if r.gateBypassed, err = m.Int64Counter("ceplayer.gate_bypassed",
		metric.WithDescription("Manual advances through a closed gate under developer mode")); err != nil {
		return nil, err
	}
	if r.autoAdvanced, err = m.Int64Counter("ceplayer.auto_advanced",
		metric.WithDescription("Blocks left by auto-advance")); err != nil {
		return nil, err
	}
	if r.suspended, err = m.Int64Counter("ceplayer.players_suspended",
		metric.WithDescription("Players suspended because their learner went away")); err != nil {
		return nil, err
	}
	if r.activePlayers, err = m.Int64UpDownCounter("ceplayer.active_players",
		metric.WithDescription("Players currently loaded")); err != nil {
		return nil, err
	}
	return &r, nil
}

// Noop returns a recorder that discards everything.
func Noop() *Recorder {
	r, _ := New(noop.NewMeterProvider())
	return r
}

func hourAttr(hour int) metric.MeasurementOption {
	return metric.WithAttributes(attribute.Int("hour", hour))
}

func (r *Recorder) SessionClosed(ctx context.Context, hour, seconds int, startUsable bool) {
	r.sessionsClosed.Add(ctx, 1, hourAttr(hour))
	if seconds > 0 {
		r.secondsCredited.Add(ctx, int64(seconds), hourAttr(hour))
	}
	if !startUsable {
		r.corruptStarts.Add(ctx, 1, hourAttr(hour))
	}
}

func (r *Recorder) HourCompleted(ctx context.Context, hour int) {
	r.hoursCompleted.Add(ctx, 1, hourAttr(hour))
}

func (r *Recorder) HourCompletionRefused(ctx context.Context, hour int) {
	r.completionRefused.Add(ctx, 1, hourAttr(hour))
}

func (r *Recorder) GateBypassed(ctx context.Context) {
	r.gateBypassed.Add(ctx, 1)
}

func (r *Recorder) AutoAdvanced(ctx context.Context) {
	r.autoAdvanced.Add(ctx, 1)
}

func (r *Recorder) PlayerSuspended(ctx context.Context) {
	r.suspended.Add(ctx, 1)
}

func (r *Recorder) PlayerOpened(ctx context.Context) {
	r.activePlayers.Add(ctx, 1)
}

func (r *Recorder) PlayerClosed(ctx context.Context) {
	r.activePlayers.Add(ctx, -1)
}
