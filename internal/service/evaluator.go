package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

const defaultConditionWindow = 5 * time.Minute

// ConditionEvaluator evaluates one condition kind.
type ConditionEvaluator interface {
	Type() models.ConditionType
	Evaluate(ctx context.Context, cond models.MonitoringCondition) (models.ConditionResult, error)
}

// Evaluator routes conditions to their registered evaluator. Evaluation
// failures never propagate: a failing condition is reported as not met with
// an error detail so the scheduler keeps running.
type Evaluator struct {
	handlers map[models.ConditionType]ConditionEvaluator
	log      *logger.Logger
}

func NewEvaluator(metrics MetricAggregator, health HealthReporter, logs LogSearcher, log *logger.Logger) *Evaluator {
	e := &Evaluator{
		handlers: make(map[models.ConditionType]ConditionEvaluator),
		log:      log,
	}

	e.Register(&metricEvaluator{metrics: metrics})
	e.Register(&healthEvaluator{health: health})
	e.Register(&logPatternEvaluator{logs: logs})
	e.Register(newCustomEvaluator())

	return e
}

// Register installs an evaluator for its condition type.
func (e *Evaluator) Register(handler ConditionEvaluator) {
	e.handlers[handler.Type()] = handler
}

// RegisterPredicate installs a named custom predicate.
func (e *Evaluator) RegisterPredicate(name string, predicate CustomPredicate) {
	if custom, ok := e.handlers[models.ConditionCustom].(*customEvaluator); ok {
		custom.register(name, predicate)
	}
}

// Evaluate runs one condition and degrades any failure to not-met.
func (e *Evaluator) Evaluate(ctx context.Context, cond models.MonitoringCondition) models.ConditionResult {
	handler, ok := e.handlers[cond.Type]
	if !ok {
		return models.ConditionResult{
			Met:     false,
			Details: map[string]interface{}{"error": fmt.Sprintf("unknown condition type %q", cond.Type)},
		}
	}

	result, err := handler.Evaluate(ctx, cond)
	if err != nil {
		e.log.WithError(err).WithField("condition_type", cond.Type).Warn("Condition evaluation failed")
		if result.Details == nil {
			result.Details = make(map[string]interface{})
		}
		result.Met = false
		result.Details["error"] = err.Error()
	}

	return result
}

func conditionWindow(cond models.MonitoringCondition) time.Duration {
	if cond.WindowMinutes > 0 {
		return time.Duration(cond.WindowMinutes) * time.Minute
	}
	return defaultConditionWindow
}

// compareNumeric applies a numeric operator: strict inequality for gt/lt,
// inclusive for gte/lte, exact for eq.
func compareNumeric(value, threshold float64, op models.Operator) (bool, error) {
	switch op {
	case models.OpGreaterThan:
		return value > threshold, nil
	case models.OpGreaterOrEqual:
		return value >= threshold, nil
	case models.OpLessThan:
		return value < threshold, nil
	case models.OpLessOrEqual:
		return value <= threshold, nil
	case models.OpEqual:
		return value == threshold, nil
	default:
		return false, fmt.Errorf("operator %q is not valid for numeric comparison", op)
	}
}

// compareString applies a string operator.
func compareString(value, expected string, op models.Operator) (bool, error) {
	switch op {
	case models.OpEqual:
		return value == expected, nil
	case models.OpContains:
		return strings.Contains(value, expected), nil
	case models.OpNotContains:
		return !strings.Contains(value, expected), nil
	default:
		return false, fmt.Errorf("operator %q is not valid for string comparison", op)
	}
}

type metricEvaluator struct {
	metrics MetricAggregator
}

func (m *metricEvaluator) Type() models.ConditionType { return models.ConditionMetricThreshold }

func (m *metricEvaluator) Evaluate(ctx context.Context, cond models.MonitoringCondition) (models.ConditionResult, error) {
	window := conditionWindow(cond)

	value, err := m.metrics.Query(ctx, cond.Metric, window, cond.Aggregation)
	if err != nil {
		return models.ConditionResult{}, fmt.Errorf("metric query for %q failed: %w", cond.Metric, err)
	}

	met, err := compareNumeric(value, cond.Threshold, cond.Operator)
	if err != nil {
		return models.ConditionResult{Value: value}, err
	}

	return models.ConditionResult{
		Met:   met,
		Value: value,
		Details: map[string]interface{}{
			"metric":      cond.Metric,
			"aggregation": string(cond.Aggregation),
			"window":      window.String(),
			"threshold":   cond.Threshold,
		},
	}, nil
}

type healthEvaluator struct {
	health HealthReporter
}

func (h *healthEvaluator) Type() models.ConditionType { return models.ConditionHealthStatus }

func (h *healthEvaluator) Evaluate(ctx context.Context, cond models.MonitoringCondition) (models.ConditionResult, error) {
	report, err := h.health.CurrentReport(ctx)
	if err != nil {
		return models.ConditionResult{}, fmt.Errorf("health report unavailable: %w", err)
	}

	met, err := compareString(report.OverallStatus, cond.Expected, cond.Operator)
	if err != nil {
		return models.ConditionResult{Value: report.OverallStatus}, err
	}

	return models.ConditionResult{
		Met:   met,
		Value: report.OverallStatus,
		Details: map[string]interface{}{
			"expected":   cond.Expected,
			"components": len(report.Components),
		},
	}, nil
}

type logPatternEvaluator struct {
	logs LogSearcher
}

func (l *logPatternEvaluator) Type() models.ConditionType { return models.ConditionLogPattern }

func (l *logPatternEvaluator) Evaluate(ctx context.Context, cond models.MonitoringCondition) (models.ConditionResult, error) {
	window := conditionWindow(cond)

	count, err := l.logs.CountMatches(ctx, cond.Pattern, window)
	if err != nil {
		return models.ConditionResult{}, fmt.Errorf("log search for %q failed: %w", cond.Pattern, err)
	}

	met, err := compareNumeric(float64(count), cond.Threshold, cond.Operator)
	if err != nil {
		return models.ConditionResult{Value: count}, err
	}

	return models.ConditionResult{
		Met:   met,
		Value: count,
		Details: map[string]interface{}{
			"pattern":   cond.Pattern,
			"window":    window.String(),
			"threshold": cond.Threshold,
		},
	}, nil
}

type customEvaluator struct {
	mu         sync.RWMutex
	predicates map[string]CustomPredicate
}

func newCustomEvaluator() *customEvaluator {
	return &customEvaluator{predicates: make(map[string]CustomPredicate)}
}

func (c *customEvaluator) Type() models.ConditionType { return models.ConditionCustom }

func (c *customEvaluator) register(name string, predicate CustomPredicate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.predicates[name] = predicate
}

func (c *customEvaluator) Evaluate(ctx context.Context, cond models.MonitoringCondition) (models.ConditionResult, error) {
	c.mu.RLock()
	predicate, ok := c.predicates[cond.CustomName]
	c.mu.RUnlock()

	if !ok {
		return models.ConditionResult{
			Met:     false,
			Details: map[string]interface{}{"reason": fmt.Sprintf("no custom predicate registered as %q", cond.CustomName)},
		}, nil
	}

	return predicate(ctx, cond)
}
