package service

import (
	"math"
	"testing"
	"time"

	"github.com/prometheus/common/model"
	"github.com/stretchr/testify/assert"

	"github.com/grigta/sentinel/internal/models"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name   string
		metric string
		window time.Duration
		agg    models.Aggregation
		want   string
	}{
		{"avg over window", "error_rate", 5 * time.Minute, models.AggAvg, "avg_over_time(error_rate[5m])"},
		{"sum over window", "requests", 15 * time.Minute, models.AggSum, "sum_over_time(requests[15m])"},
		{"count over window", "requests", time.Minute, models.AggCount, "count_over_time(requests[1m])"},
		{"min over window", "latency", 10 * time.Minute, models.AggMin, "min_over_time(latency[10m])"},
		{"max over window", "latency", 10 * time.Minute, models.AggMax, "max_over_time(latency[10m])"},
		{"unset aggregation defaults to avg", "latency", 10 * time.Minute, "", "avg_over_time(latency[10m])"},
		{"no window means instant query", "up", 0, models.AggAvg, "up"},
		{"sub-minute window in seconds", "up", 30 * time.Second, models.AggAvg, "avg_over_time(up[30s])"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildQuery(tt.metric, tt.window, tt.agg))
		})
	}
}

func TestSampleValueSanitizesNonFinite(t *testing.T) {
	assert.Equal(t, 42.5, sampleValue(42.5))
	assert.Zero(t, sampleValue(model.SampleValue(math.NaN())))
	assert.Zero(t, sampleValue(model.SampleValue(math.Inf(1))))
}
