package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/grigta/sentinel/internal/channels"
	"github.com/grigta/sentinel/internal/config"
	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

const dedupWindow = 1 * time.Hour

// ErrDuplicate means an unresolved alert of the same type already exists
// within the dedup window; no new alert was created.
var ErrDuplicate = errors.New("duplicate of an unresolved alert")

// AlertDispatcher owns the admission and delivery pipeline. The order is
// fixed: suppression, then throttle, then duplicate-check, then persistence,
// then channel fan-out.
type AlertDispatcher struct {
	store    AlertStore
	governor *FrequencyGovernor
	registry *channels.Registry
	retry    *RetryCoordinator
	defaults config.DefaultChannelConfig
	log      *logger.Logger
}

func NewAlertDispatcher(
	store AlertStore,
	governor *FrequencyGovernor,
	registry *channels.Registry,
	retry *RetryCoordinator,
	defaults config.DefaultChannelConfig,
	log *logger.Logger,
) *AlertDispatcher {
	return &AlertDispatcher{
		store:    store,
		governor: governor,
		registry: registry,
		retry:    retry,
		defaults: defaults,
		log:      log,
	}
}

// SendCritical dispatches an alert on the critical path: critical default
// channels when the action names none.
func (d *AlertDispatcher) SendCritical(ctx context.Context, alert *models.Alert) error {
	if len(alert.Channels) == 0 {
		alert.Channels = d.defaults.Critical
	}
	return d.SendAlert(ctx, alert)
}

// SendWarning dispatches an alert on the warning path.
func (d *AlertDispatcher) SendWarning(ctx context.Context, alert *models.Alert) error {
	if len(alert.Channels) == 0 {
		alert.Channels = d.defaults.Warning
	}
	return d.SendAlert(ctx, alert)
}

// SendAlert runs the full admission pipeline and, on admission, persists the
// alert and fans it out to every requested channel.
func (d *AlertDispatcher) SendAlert(ctx context.Context, alert *models.Alert) error {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	if len(alert.Channels) == 0 {
		alert.Channels = d.defaults.Warning
	}

	class := models.AlertClass{Type: alert.Type, Severity: alert.Severity}

	if err := d.governor.Admit(class); err != nil {
		switch {
		case errors.Is(err, ErrSuppressed):
			alertsSuppressed.WithLabelValues(string(alert.Severity), alert.Type).Inc()
			d.log.WithFields(map[string]interface{}{
				"class": class.Key(),
				"title": alert.Title,
			}).Info("Alert denied by active suppression")
		case errors.Is(err, ErrThrottled):
			alertsThrottled.WithLabelValues(string(alert.Severity), alert.Type).Inc()
			d.log.WithField("class", class.Key()).Warn("Alert denied by throttle")
		}
		return err
	}

	// Secondary noise guard on top of throttling: an identical unresolved
	// alert within the last hour means the operators already know.
	existing, err := d.store.FindUnresolvedByType(ctx, alert.Type, time.Now().Add(-dedupWindow))
	if err != nil {
		d.log.WithError(err).Warn("Duplicate check failed, proceeding with dispatch")
	} else if existing != nil {
		alertsDeduplicated.Inc()
		d.log.WithFields(map[string]interface{}{
			"type":        alert.Type,
			"existing_id": existing.ID.Hex(),
		}).Debug("Skipping duplicate of unresolved alert")
		return ErrDuplicate
	}

	if _, err := d.store.Insert(ctx, alert); err != nil {
		// Persistence failures are not retried at this layer; the alert is
		// dropped and the failure is surfaced through logs and metrics.
		alertsDropped.Inc()
		d.log.WithError(err).WithField("type", alert.Type).Error("Failed to persist alert, dropping")
		return fmt.Errorf("failed to persist alert: %w", err)
	}

	alertsFired.WithLabelValues(string(alert.Severity), alert.Type).Inc()

	if err := d.deliver(ctx, alert); err != nil {
		d.retry.Schedule(alert, d.redeliver)
	}

	return nil
}

// deliver attempts every requested channel independently and returns an error
// only when all of them failed.
func (d *AlertDispatcher) deliver(ctx context.Context, alert *models.Alert) error {
	if len(alert.Channels) == 0 {
		return nil
	}

	var delivered int
	for _, name := range alert.Channels {
		if err := d.sendOn(ctx, name, alert); err != nil {
			deliveriesTotal.WithLabelValues(name, "error").Inc()
			d.log.WithError(err).WithFields(map[string]interface{}{
				"channel":  name,
				"alert_id": alert.ID.Hex(),
			}).Error("Channel delivery failed")
			continue
		}
		deliveriesTotal.WithLabelValues(name, "success").Inc()
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("all %d delivery channels failed for alert %s", len(alert.Channels), alert.ID.Hex())
	}

	return nil
}

func (d *AlertDispatcher) sendOn(ctx context.Context, name string, alert *models.Alert) error {
	ch, err := d.registry.Get(name)
	if err != nil {
		return err
	}
	return ch.Send(ctx, alert)
}

// redeliver is the retry coordinator's delivery function: it records the
// attempt on the persisted alert and re-runs the fan-out.
func (d *AlertDispatcher) redeliver(ctx context.Context, alert *models.Alert) error {
	if err := d.store.IncrementRetry(ctx, alert.ID); err != nil {
		d.log.WithError(err).WithField("alert_id", alert.ID.Hex()).Warn("Failed to persist retry count")
	}
	return d.deliver(ctx, alert)
}

// Acknowledge marks an alert acknowledged.
func (d *AlertDispatcher) Acknowledge(ctx context.Context, id primitive.ObjectID, acknowledgedBy string) error {
	return d.store.Acknowledge(ctx, id, acknowledgedBy)
}

// Resolve marks an alert resolved (and therefore acknowledged).
func (d *AlertDispatcher) Resolve(ctx context.Context, id primitive.ObjectID, resolvedBy string) error {
	return d.store.Resolve(ctx, id, resolvedBy)
}

// Stop cancels pending delivery retries.
func (d *AlertDispatcher) Stop() {
	d.retry.Stop()
}
