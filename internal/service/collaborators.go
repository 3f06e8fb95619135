package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/grigta/sentinel/internal/models"
)

// MetricAggregator queries one numeric value for a metric over a window.
// Absence of data yields 0, not an error.
type MetricAggregator interface {
	Query(ctx context.Context, metric string, window time.Duration, agg models.Aggregation) (float64, error)
}

// HealthReport is the current health snapshot of the watched product.
type HealthReport struct {
	OverallStatus string            `json:"status"`
	Components    map[string]string `json:"components,omitempty"`
}

// HealthReporter fetches the current health report.
type HealthReporter interface {
	CurrentReport(ctx context.Context) (*HealthReport, error)
}

// LogSearcher counts log entries matching a pattern within a window.
type LogSearcher interface {
	CountMatches(ctx context.Context, pattern string, window time.Duration) (int64, error)
}

// AlertStore is the persistence surface the dispatcher and correlator need.
// Implemented by repository.AlertRepository.
type AlertStore interface {
	Insert(ctx context.Context, alert *models.Alert) (primitive.ObjectID, error)
	FindUnresolvedByType(ctx context.Context, alertType string, since time.Time) (*models.Alert, error)
	IncrementRetry(ctx context.Context, id primitive.ObjectID) error
	Update(ctx context.Context, id primitive.ObjectID, patch bson.M) error
	Acknowledge(ctx context.Context, id primitive.ObjectID, acknowledgedBy string) error
	Resolve(ctx context.Context, id primitive.ObjectID, resolvedBy string) error
	RecentAlerts(ctx context.Context, window time.Duration) ([]models.Alert, error)
	SetCorrelationID(ctx context.Context, ids []primitive.ObjectID, correlationID string) error
}

// RecoveryInvoker executes an opaque recovery action by identifier.
type RecoveryInvoker interface {
	Execute(ctx context.Context, recoveryActionID string) error
}

// CustomPredicate is an injected condition evaluator.
type CustomPredicate func(ctx context.Context, cond models.MonitoringCondition) (models.ConditionResult, error)

// CustomAction is an injected action handler.
type CustomAction func(ctx context.Context, action models.MonitoringAction) error
