package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"linkgate/internal/models"
	"linkgate/internal/store"
	"linkgate/internal/version"
)

var testInfo = version.Info{
	Version:    "1.2.3",
	GitCommit:  "abc1234",
	GoVersion:  "go1.25.0",
	InstanceID: "instance-1",
	Hostname:   "gate-1",
}

// promName folds OpenTelemetry dots into Prometheus underscores so
// assertions hold under either name translation.
func promName(s string) string {
	return strings.ReplaceAll(s, ".", "_")
}

func setupMetrics(t *testing.T, mutate func(*models.Config)) (*Provider, *models.Config) {
	t.Helper()
	cfg := models.NewDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Observability.Tracing.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	provider, err := Setup(cfg, testInfo)
	require.NoError(t, err)
	t.Cleanup(func() { provider.Shutdown(context.Background()) })
	return provider, cfg
}

func gather(t *testing.T, p *Provider, prefix string) []*dto.MetricFamily {
	t.Helper()
	families, err := p.registry.Gather()
	require.NoError(t, err)

	var out []*dto.MetricFamily
	for _, mf := range families {
		if strings.HasPrefix(promName(mf.GetName()), prefix) {
			out = append(out, mf)
		}
	}
	return out
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if promName(lp.GetName()) == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestSetup_GateDecisionsReachRegistry(t *testing.T) {
	provider, _ := setupMetrics(t, nil)

	metrics, err := provider.GateMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordDecision(ctx, "challenge")
	metrics.RecordDecision(ctx, "challenge")
	metrics.RecordDecision(ctx, "redirect")
	metrics.RecordDecision(ctx, "denied")

	families := gather(t, provider, "gate_decisions")
	require.Len(t, families, 1)
	assert.Equal(t, dto.MetricType_COUNTER, families[0].GetType())

	byOutcome := make(map[string]float64)
	for _, m := range families[0].GetMetric() {
		byOutcome[label(m, "outcome")] += m.GetCounter().GetValue()
	}
	assert.Equal(t, map[string]float64{"challenge": 2, "redirect": 1, "denied": 1}, byOutcome)
}

func TestSetup_ScrapeThroughMetricsServer(t *testing.T) {
	provider, cfg := setupMetrics(t, nil)

	metrics, err := provider.GateMetrics()
	require.NoError(t, err)
	metrics.RecordDecision(context.Background(), "rate_limited")
	metrics.RecordScore(context.Background(), 2, true)

	ms := NewMetricsServer(cfg.Metrics, provider)
	rec := httptest.NewRecorder()
	ms.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, cfg.Metrics.Path, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := promName(rec.Body.String())
	assert.Contains(t, body, "gate_decisions")
	assert.Contains(t, body, `outcome="rate_limited"`)
	assert.Contains(t, body, "gate_proof_score")
}

func TestSetup_TargetInfoDescribesGate(t *testing.T) {
	provider, _ := setupMetrics(t, func(cfg *models.Config) {
		cfg.Proof.Difficulty = 14
		cfg.Storage.Type = models.StorageTypeSQLite
	})

	metrics, err := provider.GateMetrics()
	require.NoError(t, err)
	metrics.RecordDecision(context.Background(), "challenge")

	families := gather(t, provider, "target_info")
	require.Len(t, families, 1)
	require.NotEmpty(t, families[0].GetMetric())

	info := families[0].GetMetric()[0]
	assert.Equal(t, "14", label(info, "gate_proof_difficulty"))
	assert.Equal(t, models.StorageTypeSQLite, label(info, "gate_storage_backend"))
	assert.Equal(t, "go1.25.0", label(info, "process_runtime_version"))
}

func TestSetup_ResourceAttributes(t *testing.T) {
	cfg := models.NewDefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.RateLimit.Enabled = false
	cfg.Session.Enabled = false
	cfg.Proof.Threshold = 3

	provider, err := Setup(cfg, testInfo)
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	set := provider.resource.Set()
	value := func(key string) attribute.Value {
		v, ok := set.Value(attribute.Key(key))
		require.True(t, ok, "missing resource attribute %s", key)
		return v
	}

	assert.Equal(t, cfg.Observability.ServiceName, value("service.name").AsString())
	assert.Equal(t, "instance-1", value("service.instance.id").AsString())
	assert.Equal(t, "go1.25.0", value("process.runtime.version").AsString())
	assert.Equal(t, cfg.Storage.Type, value("gate.storage.backend").AsString())
	assert.Equal(t, int64(cfg.Proof.Difficulty), value("gate.proof.difficulty").AsInt64())
	assert.Equal(t, int64(3), value("gate.proof.threshold").AsInt64())
	assert.Equal(t, int64(0), value("gate.rate_limit.max_requests").AsInt64())
	assert.False(t, value("gate.session.enabled").AsBool())
	assert.False(t, value("gate.geoip.enabled").AsBool())

	_, hasSecret := set.Value(attribute.Key("gate.secret"))
	assert.False(t, hasSecret)
}

func TestProvider_InstrumentStoreReachesRegistry(t *testing.T) {
	provider, _ := setupMetrics(t, nil)

	backend := store.NewMemoryStore(time.Minute)
	defer backend.Close()

	instrumented, err := provider.InstrumentStore(backend)
	require.NoError(t, err)

	ctx := context.Background()
	_, _, err = instrumented.Incr(ctx, "rl:203.0.113.9", time.Minute)
	require.NoError(t, err)
	_, _, err = instrumented.Incr(ctx, "rl:203.0.113.9", time.Minute)
	require.NoError(t, err)

	families := gather(t, provider, "store_operation_duration")
	require.Len(t, families, 1)

	var samples uint64
	for _, m := range families[0].GetMetric() {
		if label(m, "operation") == "Incr" {
			samples += m.GetHistogram().GetSampleCount()
		}
		for _, lp := range m.GetLabel() {
			assert.NotContains(t, lp.GetValue(), "203.0.113.9")
		}
	}
	assert.Equal(t, uint64(2), samples)
}

func TestSetup_MetricsDisabled(t *testing.T) {
	cfg := models.NewDefaultConfig()
	cfg.Metrics.Enabled = false

	provider, err := Setup(cfg, testInfo)
	require.NoError(t, err)
	assert.False(t, provider.MetricsEnabled())
	assert.Nil(t, provider.tracerProvider)

	// Instruments fall back to the global provider and must still record.
	metrics, err := provider.GateMetrics()
	require.NoError(t, err)
	metrics.RecordDecision(context.Background(), "challenge")

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestSetup_Tracing(t *testing.T) {
	tests := []struct {
		name       string
		exporter   string
		sampleRate float64
		wantErr    string
	}{
		{name: "stdout always", exporter: "stdout", sampleRate: 1.0},
		{name: "stdout never", exporter: "stdout", sampleRate: 0},
		{name: "stdout ratio", exporter: "stdout", sampleRate: 0.25},
		{name: "unknown exporter", exporter: "zipkin", sampleRate: 1.0, wantErr: "unsupported trace exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := models.NewDefaultConfig()
			cfg.Metrics.Enabled = false
			cfg.Observability.Tracing = models.TracingConfig{
				Enabled:    true,
				Exporter:   tt.exporter,
				SampleRate: tt.sampleRate,
			}

			provider, err := Setup(cfg, testInfo)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, provider)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, provider.tracerProvider)
			assert.NoError(t, provider.Shutdown(context.Background()))
		})
	}
}

func TestProvider_ShutdownEmpty(t *testing.T) {
	assert.NoError(t, (&Provider{}).Shutdown(context.Background()))
	assert.False(t, (*Provider)(nil).MetricsEnabled())
}
