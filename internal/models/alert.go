package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Severity levels, lowest to highest.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Alert is a persisted alert record. History is append-only: alerts are
// acknowledged and resolved but never deleted.
type Alert struct {
	ID             primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	Type           string                 `bson:"type" json:"type"`
	Severity       Severity               `bson:"severity" json:"severity"`
	Title          string                 `bson:"title" json:"title"`
	Message        string                 `bson:"message" json:"message"`
	Metadata       map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Channels       []string               `bson:"channels,omitempty" json:"channels,omitempty"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
	Acknowledged   bool                   `bson:"acknowledged" json:"acknowledged"`
	AcknowledgedBy string                 `bson:"acknowledged_by,omitempty" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time             `bson:"acknowledged_at,omitempty" json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time             `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	RetryCount     int                    `bson:"retry_count" json:"retry_count"`
	CorrelationID  string                 `bson:"correlation_id,omitempty" json:"correlation_id,omitempty"`
}

// ClassKey is the throttling/suppression key: one class per (type, severity).
func (a *Alert) ClassKey() string {
	return a.Type + ":" + string(a.Severity)
}

// AlertClass is the (type, severity) pair used by the frequency governor.
type AlertClass struct {
	Type     string
	Severity Severity
}

func (c AlertClass) Key() string {
	return c.Type + ":" + string(c.Severity)
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Type               string
	Severity           Severity
	UnacknowledgedOnly bool
	Since              time.Time
}

// Pagination bounds alert listings.
type Pagination struct {
	Limit  int64
	Offset int64
}

// AlertPage is one page of alerts plus the unpaginated total.
type AlertPage struct {
	Items []Alert `json:"items"`
	Total int64   `json:"total"`
}

// AlertSummary aggregates the alert history for the operational API.
type AlertSummary struct {
	TotalAlerts         int64            `bson:"total_alerts" json:"total_alerts"`
	UnacknowledgedCount int64            `bson:"unacknowledged_count" json:"unacknowledged_count"`
	BySeverity          map[string]int64 `bson:"by_severity" json:"by_severity"`
	ByType              map[string]int64 `bson:"by_type" json:"by_type"`
	RecentAlerts        []Alert          `bson:"recent_alerts" json:"recent_alerts"`
}

// CorrelationAction is what a matched correlation pattern does.
type CorrelationAction string

const (
	CorrelationEscalate CorrelationAction = "escalate"
	CorrelationSuppress CorrelationAction = "suppress"
	CorrelationGroup    CorrelationAction = "group"
)

// CorrelationPattern is a statically configured cross-alert rule: when the
// number of recent alerts whose type is in the watch-set reaches MinCount
// within Window, Action is applied.
type CorrelationPattern struct {
	Name       string            `json:"name" yaml:"name"`
	Window     time.Duration     `json:"window" yaml:"window"`
	MinCount   int               `json:"min_count" yaml:"min_count"`
	AlertTypes []string          `json:"alert_types" yaml:"alert_types"`
	Action     CorrelationAction `json:"action" yaml:"action"`
}

// AlertEvent is the payload published to the message bus when an alert is
// dispatched.
type AlertEvent struct {
	Type      string                 `json:"type"`
	AlertID   string                 `json:"alert_id"`
	Severity  Severity               `json:"severity"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}
