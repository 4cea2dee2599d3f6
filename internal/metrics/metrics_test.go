package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/metrics"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type fakeCounter struct {
	noop.Int64Counter
	total int64
}

func (c *fakeCounter) Add(_ context.Context, n int64, _ ...metric.AddOption) { c.total += n }

type fakeUpDown struct {
	noop.Int64UpDownCounter
	total int64
}

func (c *fakeUpDown) Add(_ context.Context, n int64, _ ...metric.AddOption) { c.total += n }

type fakeMeter struct {
	noop.Meter
	counters map[string]*fakeCounter
	updowns  map[string]*fakeUpDown
}

func (m *fakeMeter) Int64Counter(name string, _ ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	c := &fakeCounter{}
	m.counters[name] = c
	return c, nil
}

func (m *fakeMeter) Int64UpDownCounter(name string, _ ...metric.Int64UpDownCounterOption) (metric.Int64UpDownCounter, error) {
	c := &fakeUpDown{}
	m.updowns[name] = c
	return c, nil
}

type fakeProvider struct {
	noop.MeterProvider
	meter *fakeMeter
}

func (p fakeProvider) Meter(string, ...metric.MeterOption) metric.Meter { return p.meter }

func TestRecorder(t *testing.T) {
	meter := &fakeMeter{counters: map[string]*fakeCounter{}, updowns: map[string]*fakeUpDown{}}
	rec, err := metrics.New(fakeProvider{meter: meter})
	require.NoError(t, err)

	ctx := context.Background()
	rec.SessionClosed(ctx, 1, 95, true)
	rec.SessionClosed(ctx, 1, 0, false)
	rec.HourCompleted(ctx, 1)
	rec.HourCompletionRefused(ctx, 2)
	rec.PlayerOpened(ctx)
	rec.PlayerOpened(ctx)
	rec.PlayerClosed(ctx)
	rec.PlayerSuspended(ctx)

	assert.EqualValues(t, 95, meter.counters["ceplayer.seconds_credited"].total)
	assert.EqualValues(t, 2, meter.counters["ceplayer.sessions_closed"].total)
	assert.EqualValues(t, 1, meter.counters["ceplayer.sessions_unreadable_start"].total)
	assert.EqualValues(t, 1, meter.counters["ceplayer.hours_completed"].total)
	assert.EqualValues(t, 1, meter.counters["ceplayer.hour_completion_refused"].total)
	assert.EqualValues(t, 1, meter.counters["ceplayer.players_suspended"].total)
	assert.EqualValues(t, 1, meter.updowns["ceplayer.active_players"].total)
}

func TestNoop(t *testing.T) {
	rec := metrics.Noop()
	assert.NotPanics(t, func() {
		rec.GateBypassed(context.Background())
		rec.AutoAdvanced(context.Background())
	})
}
