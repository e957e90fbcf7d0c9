package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaders(t *testing.T) {
	got := parseHeaders(" authorization = Bearer x ,broken,=v, k2=v2")
	require.Equal(t, map[string]string{"authorization": "Bearer x", "k2": "v2"}, got)
	require.Nil(t, parseHeaders(""))
}

func TestOtelConfigFromEnvClampsRatio(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLER_RATIO", "4")
	cfg := OtelConfigFromEnv()
	require.True(t, cfg.Enabled)
	require.Equal(t, 1.0, cfg.SampleRatio)

	t.Setenv("OTEL_SAMPLER_RATIO", "nope")
	require.Equal(t, 0.1, OtelConfigFromEnv().SampleRatio)
	t.Setenv("OTEL_SAMPLER_RATIO", "-1")
	require.Equal(t, 0.0, OtelConfigFromEnv().SampleRatio)
}

func TestNewSpanExporterFallsBackToStdout(t *testing.T) {
	exp, err := newSpanExporter(context.Background(), OtelConfig{})
	require.NoError(t, err)
	require.NotNil(t, exp)
	require.NoError(t, exp.Shutdown(context.Background()))
}
