package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grigta/sentinel/internal/models"
)

const testYAML = `
service:
  name: monitor-test
  http_port: 9999

monitoring:
  history_size: 50
  rules:
    - id: high-errors
      name: High error rate
      category: performance
      interval_seconds: 30
      max_executions: 5
      active_hours:
        start: 8
        end: 20
      conditions:
        - type: metric_threshold
          metric: error_rate
          operator: gt
          threshold: 100
          window_minutes: 5
          aggregation: avg
      actions:
        - type: alert
          severity: high
          alert_type: error_rate
    - id: disabled-rule
      name: Disabled
      enabled: false
      interval_seconds: 60
      conditions:
        - type: health_status
          operator: eq
          expected: unhealthy
      actions:
        - type: log
  correlations:
    - name: burst
      window_minutes: 10
      min_count: 5
      alert_types: [a, b]
      action: escalate
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o644))
	return path
}

func TestLoadParsesYAML(t *testing.T) {
	cfg, err := Load(writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, "monitor-test", cfg.Service.Name)
	assert.Equal(t, 9999, cfg.Service.HTTPPort)
	assert.Equal(t, 50, cfg.Monitoring.HistorySize)
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "monitor-service", cfg.Service.Name)
	assert.Equal(t, 8020, cfg.Service.HTTPPort)
	assert.Equal(t, 1000, cfg.Monitoring.HistorySize)
	assert.Equal(t, 60, cfg.Monitoring.CorrelationIntervalSeconds)
	assert.Equal(t, []string{"log", "bus", "email"}, cfg.Monitoring.DefaultChannels.Critical)
	assert.Equal(t, []string{"log", "bus"}, cfg.Monitoring.DefaultChannels.Warning)
	assert.Equal(t, 90, cfg.MongoDB.AlertsTTLDays)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "7777")
	t.Setenv("PROMETHEUS_URL", "http://prom.test:9090")

	cfg, err := Load(writeTestConfig(t))
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Service.HTTPPort)
	assert.Equal(t, "http://prom.test:9090", cfg.Prometheus.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestRulesConversion(t *testing.T) {
	cfg, err := Load(writeTestConfig(t))
	require.NoError(t, err)

	rules := cfg.Rules()
	require.Len(t, rules, 2)

	first := rules[0]
	assert.Equal(t, "high-errors", first.ID)
	assert.Equal(t, models.CategoryPerformance, first.Category)
	assert.True(t, first.Enabled, "enabled defaults to true when omitted")
	assert.Equal(t, 30*time.Second, first.Schedule.Interval)
	assert.Equal(t, 5, first.Schedule.MaxExecutions)
	require.NotNil(t, first.Schedule.ActiveHours)
	assert.Equal(t, 8, first.Schedule.ActiveHours.Start)

	require.Len(t, first.Conditions, 1)
	assert.Equal(t, models.ConditionMetricThreshold, first.Conditions[0].Type)
	assert.Equal(t, models.OpGreaterThan, first.Conditions[0].Operator)

	assert.False(t, rules[1].Enabled, "explicit enabled false is honored")
}

func TestPatternsConversion(t *testing.T) {
	cfg, err := Load(writeTestConfig(t))
	require.NoError(t, err)

	patterns := cfg.Patterns()
	require.Len(t, patterns, 1)

	assert.Equal(t, "burst", patterns[0].Name)
	assert.Equal(t, 10*time.Minute, patterns[0].Window)
	assert.Equal(t, 5, patterns[0].MinCount)
	assert.Equal(t, models.CorrelationEscalate, patterns[0].Action)
}
