package otelcol

import (
	"testing"

	"license-service/pkg/config"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx/fxtest"
)

func TestProvideTracerProviderWithoutCollector(t *testing.T) {
	cfg := &config.Config{AppName: "license-service"}
	lc := fxtest.NewLifecycle(t)

	tp, err := ProvideTracerProvider(lc, cfg)
	require.NoError(t, err)
	require.IsType(t, noop.TracerProvider{}, tp)
	require.Equal(t, tp, otel.GetTracerProvider())

	lc.RequireStart().RequireStop()
}

func TestServiceResource(t *testing.T) {
	cfg := &config.Config{AppName: "license-service", AppVersion: "1.2.3", AppEnv: "test"}

	res := serviceResource(cfg)
	found := map[string]string{}
	for _, kv := range res.Attributes() {
		found[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "license-service", found["service.name"])
	require.Equal(t, "1.2.3", found["service.version"])
}
