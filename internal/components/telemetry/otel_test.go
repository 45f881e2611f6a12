package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupOtelWithoutEndpoints(t *testing.T) {
	o, err := SetupOtel(context.Background(), "milesfare-test", OtelConfig{})
	require.Nil(t, err)
	require.Nil(t, o.traces)
	require.Nil(t, o.metrics)
	require.Nil(t, o.Shutdown(context.Background()))
}

func TestOtlpEndpoint(t *testing.T) {
	require.False(t, OtlpEndpoint{}.configured())
	require.True(t, OtlpEndpoint{HttpEndpoint: "http://localhost:4318"}.configured())
	require.False(t, OtlpEndpoint{HttpEndpoint: "http://localhost:4318"}.useGrpc())
	require.True(t, OtlpEndpoint{GrpcEndpoint: "http://localhost:4317", HttpEndpoint: "x"}.useGrpc())
}
