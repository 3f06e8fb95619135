package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/grigta/sentinel/pkg/cache"
	"github.com/grigta/sentinel/pkg/logger"
)

const healthCacheKey = "monitor:health:snapshot"

// HTTPHealthReporter implements HealthReporter against the health endpoint of
// the watched web product. Snapshots are cached in Redis so several
// health-status conditions firing in the same window share one upstream call.
type HTTPHealthReporter struct {
	url      string
	client   *http.Client
	cache    *cache.RedisCache
	cacheTTL time.Duration
	log      *logger.Logger
}

func NewHTTPHealthReporter(url string, redisCache *cache.RedisCache, cacheTTL time.Duration, log *logger.Logger) *HTTPHealthReporter {
	return &HTTPHealthReporter{
		url:      url,
		client:   &http.Client{Timeout: 10 * time.Second},
		cache:    redisCache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

func (h *HTTPHealthReporter) CurrentReport(ctx context.Context) (*HealthReport, error) {
	if h.cache != nil {
		var cached HealthReport
		if err := h.cache.GetJSON(ctx, healthCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	var report HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode health report: %w", err)
	}

	// A non-2xx response still carries a report body in our deployment, but
	// an empty status means the endpoint is degraded beyond self-reporting.
	if report.OverallStatus == "" {
		return nil, fmt.Errorf("health endpoint returned status %d with no report", resp.StatusCode)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, healthCacheKey, &report, h.cacheTTL); err != nil {
			h.log.WithError(err).Warn("Failed to cache health report")
		}
	}

	return &report, nil
}
