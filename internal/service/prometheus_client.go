package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

// PrometheusClient implements MetricAggregator on top of the Prometheus HTTP
// API.
type PrometheusClient struct {
	api v1.API
	log *logger.Logger
}

func NewPrometheusClient(url string, log *logger.Logger) (*PrometheusClient, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &PrometheusClient{
		api: v1.NewAPI(client),
		log: log,
	}, nil
}

// Query evaluates the metric over [now-window, now] with the requested
// aggregation. Missing data yields 0 and no error.
func (c *PrometheusClient) Query(ctx context.Context, metric string, window time.Duration, agg models.Aggregation) (float64, error) {
	query := buildQuery(metric, window, agg)

	result, warnings, err := c.api.Query(ctx, query, time.Now())
	if err != nil {
		c.log.WithError(err).WithField("query", query).Error("Prometheus query failed")
		return 0, err
	}

	if len(warnings) > 0 {
		c.log.WithField("warnings", warnings).Warn("Prometheus query warnings")
	}

	switch v := result.(type) {
	case *model.Scalar:
		return sampleValue(v.Value), nil
	case model.Vector:
		if len(v) > 0 {
			return sampleValue(v[0].Value), nil
		}
	}

	return 0, nil
}

func buildQuery(metric string, window time.Duration, agg models.Aggregation) string {
	if window <= 0 {
		return metric
	}

	rangeStr := formatRange(window)

	switch agg {
	case models.AggSum:
		return fmt.Sprintf("sum_over_time(%s[%s])", metric, rangeStr)
	case models.AggCount:
		return fmt.Sprintf("count_over_time(%s[%s])", metric, rangeStr)
	case models.AggMin:
		return fmt.Sprintf("min_over_time(%s[%s])", metric, rangeStr)
	case models.AggMax:
		return fmt.Sprintf("max_over_time(%s[%s])", metric, rangeStr)
	default:
		return fmt.Sprintf("avg_over_time(%s[%s])", metric, rangeStr)
	}
}

func formatRange(window time.Duration) string {
	minutes := int(window.Minutes())
	if minutes < 1 {
		return fmt.Sprintf("%ds", int(window.Seconds()))
	}
	return fmt.Sprintf("%dm", minutes)
}

func sampleValue(v model.SampleValue) float64 {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
