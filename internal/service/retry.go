package service

import (
	"context"
	"sync"
	"time"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

const (
	maxDeliveryRetries = 3
	retryBaseDelay     = 1 * time.Second
	retryMaxDelay      = 5 * time.Minute
)

// DeliverFunc re-attempts delivery of a persisted alert on every requested
// channel. It returns an error only when all channels failed.
type DeliverFunc func(ctx context.Context, alert *models.Alert) error

// RetryCoordinator reschedules whole-alert delivery with bounded exponential
// backoff after a total delivery failure.
type RetryCoordinator struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	log    *logger.Logger
}

func NewRetryCoordinator(log *logger.Logger) *RetryCoordinator {
	return &RetryCoordinator{
		timers: make(map[string]*time.Timer),
		log:    log,
	}
}

// Backoff returns the delay before the given attempt: 1s, 2s, 4s, ... capped
// at 5 minutes.
func Backoff(retryCount int) time.Duration {
	delay := retryBaseDelay << uint(retryCount)
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	return delay
}

// Schedule arms a re-delivery attempt for the alert. Returns false when the
// retry budget is exhausted; the alert then stays persisted but undelivered.
func (r *RetryCoordinator) Schedule(alert *models.Alert, deliver DeliverFunc) bool {
	if alert.RetryCount >= maxDeliveryRetries {
		r.log.WithFields(map[string]interface{}{
			"alert_id":    alert.ID.Hex(),
			"alert_type":  alert.Type,
			"retry_count": alert.RetryCount,
		}).Error("Alert delivery failed permanently, giving up")
		return false
	}

	delay := Backoff(alert.RetryCount)
	alert.RetryCount++
	deliveryRetries.Inc()

	r.log.WithFields(map[string]interface{}{
		"alert_id":    alert.ID.Hex(),
		"retry_count": alert.RetryCount,
		"delay":       delay.String(),
	}).Warn("Scheduling alert delivery retry")

	key := alert.ID.Hex()

	r.mu.Lock()
	defer r.mu.Unlock()

	if timer, ok := r.timers[key]; ok {
		timer.Stop()
	}

	r.timers[key] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, key)
		r.mu.Unlock()

		if err := deliver(context.Background(), alert); err != nil {
			r.Schedule(alert, deliver)
		}
	})

	return true
}

// Stop cancels all pending retries.
func (r *RetryCoordinator) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, timer := range r.timers {
		timer.Stop()
		delete(r.timers, key)
	}
}
