package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

const correlatedTypePrefix = "correlated:"

// AlertCorrelator periodically scans recent alerts for configured cross-alert
// patterns and escalates, suppresses or groups the matches.
type AlertCorrelator struct {
	store      AlertStore
	dispatcher *AlertDispatcher
	governor   *FrequencyGovernor
	patterns   []models.CorrelationPattern
	interval   time.Duration
	log        *logger.Logger
	nowFn      func() time.Time
}

func NewAlertCorrelator(
	store AlertStore,
	dispatcher *AlertDispatcher,
	governor *FrequencyGovernor,
	patterns []models.CorrelationPattern,
	interval time.Duration,
	log *logger.Logger,
) *AlertCorrelator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &AlertCorrelator{
		store:      store,
		dispatcher: dispatcher,
		governor:   governor,
		patterns:   patterns,
		interval:   interval,
		log:        log,
		nowFn:      time.Now,
	}
}

// Run scans on a fixed interval until the context is cancelled.
func (c *AlertCorrelator) Run(ctx context.Context) {
	if len(c.patterns) == 0 {
		c.log.Info("No correlation patterns configured, correlator idle")
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log.WithField("patterns", len(c.patterns)).Info("Alert correlator started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("Alert correlator stopped")
			return
		case <-ticker.C:
			RecordWorkerRun("correlator")
			if err := c.RunOnce(ctx); err != nil {
				RecordWorkerError("correlator")
				c.log.WithError(err).Error("Correlation scan failed")
			}
		}
	}
}

// RunOnce evaluates every pattern against the recent alert history.
func (c *AlertCorrelator) RunOnce(ctx context.Context) error {
	for _, pattern := range c.patterns {
		if err := c.evaluatePattern(ctx, pattern); err != nil {
			return fmt.Errorf("pattern %q: %w", pattern.Name, err)
		}
	}
	return nil
}

func (c *AlertCorrelator) evaluatePattern(ctx context.Context, pattern models.CorrelationPattern) error {
	recent, err := c.store.RecentAlerts(ctx, pattern.Window)
	if err != nil {
		return fmt.Errorf("failed to load recent alerts: %w", err)
	}

	matched := c.matchAlerts(recent, pattern)
	if len(matched) < pattern.MinCount {
		return nil
	}

	correlationsMatched.WithLabelValues(pattern.Name, string(pattern.Action)).Inc()
	c.log.WithFields(map[string]interface{}{
		"pattern": pattern.Name,
		"action":  string(pattern.Action),
		"matched": len(matched),
		"window":  pattern.Window.String(),
	}).Info("Correlation pattern matched")

	switch pattern.Action {
	case models.CorrelationEscalate:
		return c.escalate(ctx, pattern, matched)
	case models.CorrelationSuppress:
		c.suppress(pattern, matched)
		return nil
	case models.CorrelationGroup:
		return c.group(ctx, pattern, matched)
	default:
		return fmt.Errorf("unknown correlation action %q", pattern.Action)
	}
}

// matchAlerts returns the recent alerts whose type belongs to the pattern's
// watch-set. Meta-alerts produced by escalation never match, so a pattern can
// not feed on its own output.
func (c *AlertCorrelator) matchAlerts(recent []models.Alert, pattern models.CorrelationPattern) []models.Alert {
	watched := make(map[string]bool, len(pattern.AlertTypes))
	for _, t := range pattern.AlertTypes {
		watched[t] = true
	}

	var matched []models.Alert
	for _, a := range recent {
		if strings.HasPrefix(a.Type, correlatedTypePrefix) {
			continue
		}
		if watched[a.Type] {
			matched = append(matched, a)
		}
	}
	return matched
}

// escalate dispatches one critical meta-alert summarizing the matched burst.
// The dispatcher's duplicate check keeps repeated scans from re-raising it
// while the previous one is unresolved.
func (c *AlertCorrelator) escalate(ctx context.Context, pattern models.CorrelationPattern, matched []models.Alert) error {
	byType := make(map[string]int)
	for _, a := range matched {
		byType[a.Type]++
	}

	alert := &models.Alert{
		Type:     correlatedTypePrefix + pattern.Name,
		Severity: models.SeverityCritical,
		Title:    fmt.Sprintf("Correlated alert burst: %s", pattern.Name),
		Message: fmt.Sprintf("%d related alerts within %s matched pattern %q",
			len(matched), pattern.Window, pattern.Name),
		Metadata: map[string]interface{}{
			"pattern":        pattern.Name,
			"matched_count":  len(matched),
			"matched_types":  byType,
			"window_minutes": int(pattern.Window.Minutes()),
		},
	}

	err := c.dispatcher.SendCritical(ctx, alert)
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrSuppressed) || errors.Is(err, ErrThrottled) {
		return nil
	}
	return err
}

// suppress installs a type-wide suppression for every watched type.
func (c *AlertCorrelator) suppress(pattern models.CorrelationPattern, matched []models.Alert) {
	until := c.nowFn().Add(suppressionDuration)
	for _, alertType := range pattern.AlertTypes {
		c.governor.SuppressType(alertType, until)
	}

	c.log.WithFields(map[string]interface{}{
		"pattern": pattern.Name,
		"types":   pattern.AlertTypes,
		"until":   until,
	}).Warn("Correlated alert types suppressed")
}

// group stamps the matched alerts that are not yet grouped with a shared
// correlation id.
func (c *AlertCorrelator) group(ctx context.Context, pattern models.CorrelationPattern, matched []models.Alert) error {
	var ungrouped []models.Alert
	for _, a := range matched {
		if a.CorrelationID == "" {
			ungrouped = append(ungrouped, a)
		}
	}
	if len(ungrouped) < pattern.MinCount {
		return nil
	}

	correlationID := uuid.NewString()
	alertIDs := make([]primitive.ObjectID, 0, len(ungrouped))
	for _, a := range ungrouped {
		alertIDs = append(alertIDs, a.ID)
	}

	if err := c.store.SetCorrelationID(ctx, alertIDs, correlationID); err != nil {
		return fmt.Errorf("failed to group alerts: %w", err)
	}

	c.log.WithFields(map[string]interface{}{
		"pattern":        pattern.Name,
		"correlation_id": correlationID,
		"grouped":        len(ungrouped),
	}).Info("Alerts grouped under correlation id")

	return nil
}
