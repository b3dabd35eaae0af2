// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pdiddy/daily-papers/pkg/types"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), types.TelemetryConfig{}, "dev")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestResource_DefaultsServiceName(t *testing.T) {
	res := Resource(types.TelemetryConfig{}, "1.2.3")
	attrs := res.Set()

	v, ok := attrs.Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "daily-papers", v.AsString())

	v, ok = attrs.Value(attribute.Key("service.version"))
	require.True(t, ok)
	assert.Equal(t, "1.2.3", v.AsString())
}

func TestNewProvider_RecordsSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := NewProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "date")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "date", ended[0].Name())
}
