package metrics_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/ceplayer/internal/metrics"
	"go.opentelemetry.io/otel"
)

func TestSetup_Stdout(t *testing.T) {
	prevMeters, prevTracers := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMeters)
		otel.SetTracerProvider(prevTracers)
	})

	var out bytes.Buffer
	shutdown, err := metrics.Setup(metrics.ExporterStdout, time.Hour, &out)
	require.NoError(t, err)

	rec, err := metrics.New(nil)
	require.NoError(t, err)
	ctx := context.Background()
	rec.SessionClosed(ctx, 1, 42, true)
	_, span := otel.Tracer("ceplayer-test").Start(ctx, "close_session")
	span.End()

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, out.String(), "ceplayer.seconds_credited")
	assert.Contains(t, out.String(), "close_session")
}

func TestSetup_None(t *testing.T) {
	shutdown, err := metrics.Setup(metrics.ExporterNone, time.Minute, nil)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, err = metrics.Setup("zipkin", time.Minute, nil)
	assert.Error(t, err)
}
