package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"nonsense", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.in))
		})
	}
}

func TestInitLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("info", "json", &buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("account", "ACC1000").Msg("validated")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "validated", entry["message"])
	assert.Equal(t, "ACC1000", entry["account"])
	assert.Equal(t, "info", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestInitLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("debug", "console", &buf)

	logger.Debug().Msg("retrying")

	assert.Contains(t, buf.String(), "retrying")
	assert.Contains(t, buf.String(), "DBG")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := WithContext(InitLogger("info", "json", &buf), map[string]any{"scope": "transfer"})

	logger.Info().Msg("token fetched")

	assert.Contains(t, buf.String(), `"scope":"transfer"`)
}

func TestNewMetrics_RegistersOnInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.ClientRequests.WithLabelValues("GET", "/accounts/validate", "success").Inc()
	m.TokenCacheLookups.WithLabelValues("transfer", "hit").Add(2)
	m.CircuitBreakerState.WithLabelValues("bank").Set(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClientRequests.WithLabelValues("GET", "/accounts/validate", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TokenCacheLookups.WithLabelValues("transfer", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("bank")))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "test_client_requests_total")
	assert.Contains(t, names, "test_token_cache_lookups_total")
}

func TestNewMetrics_SeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetrics("test", prometheus.NewRegistry())
		NewMetrics("test", prometheus.NewRegistry())
	})
}

func TestInitTracer(t *testing.T) {
	tp, err := InitTracer("bankclient-test", "http://localhost:14268/api/traces")
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(t.Context(), "op")
	span.End()

	Shutdown(t.Context(), tp)
}

func TestShutdown_NilProvider(t *testing.T) {
	assert.NotPanics(t, func() { Shutdown(t.Context(), nil) })
}
