package models

import (
	"fmt"
	"time"
)

// RuleCategory groups rules by the kind of signal they watch.
type RuleCategory string

const (
	CategoryHealth      RuleCategory = "health"
	CategoryPerformance RuleCategory = "performance"
	CategoryBusiness    RuleCategory = "business"
	CategorySecurity    RuleCategory = "security"
)

// ConditionType selects which evaluator handles a condition.
type ConditionType string

const (
	ConditionMetricThreshold ConditionType = "metric_threshold"
	ConditionHealthStatus    ConditionType = "health_status"
	ConditionLogPattern      ConditionType = "log_pattern"
	ConditionCustom          ConditionType = "custom"
)

// Operator is the comparison applied between observed value and threshold.
type Operator string

const (
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpEqual          Operator = "eq"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
)

// Aggregation is applied to metric samples inside the condition window.
type Aggregation string

const (
	AggAvg   Aggregation = "avg"
	AggSum   Aggregation = "sum"
	AggCount Aggregation = "count"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
)

// ActionType selects which handler runs an action.
type ActionType string

const (
	ActionAlert    ActionType = "alert"
	ActionRecovery ActionType = "recovery"
	ActionLog      ActionType = "log"
	ActionCustom   ActionType = "custom"
)

// MonitoringCondition is a single predicate evaluated against a time-windowed
// data source. Conditions on a rule are implicitly ANDed.
type MonitoringCondition struct {
	Type          ConditionType `json:"type" yaml:"type"`
	Metric        string        `json:"metric,omitempty" yaml:"metric,omitempty"`
	Pattern       string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Operator      Operator      `json:"operator" yaml:"operator"`
	Threshold     float64       `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Expected      string        `json:"expected,omitempty" yaml:"expected,omitempty"`
	WindowMinutes int           `json:"window_minutes,omitempty" yaml:"window_minutes,omitempty"`
	Aggregation   Aggregation   `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	CustomName    string        `json:"custom_name,omitempty" yaml:"custom_name,omitempty"`
}

// MonitoringAction is one effect executed when all conditions of a rule hold.
type MonitoringAction struct {
	Type           ActionType             `json:"type" yaml:"type"`
	Severity       Severity               `json:"severity,omitempty" yaml:"severity,omitempty"`
	AlertType      string                 `json:"alert_type,omitempty" yaml:"alert_type,omitempty"`
	RecoveryAction string                 `json:"recovery_action,omitempty" yaml:"recovery_action,omitempty"`
	Channels       []string               `json:"channels,omitempty" yaml:"channels,omitempty"`
	CustomName     string                 `json:"custom_name,omitempty" yaml:"custom_name,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// ActiveHours restricts rule execution to an hour-of-day window. Start > End
// describes an overnight range, e.g. 22 -> 6.
type ActiveHours struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Contains reports whether the given hour falls inside the window.
func (a ActiveHours) Contains(hour int) bool {
	if a.Start > a.End {
		return hour >= a.Start || hour < a.End
	}
	return hour >= a.Start && hour <= a.End
}

// Schedule describes when and how often a rule runs.
type Schedule struct {
	Interval      time.Duration `json:"interval" yaml:"interval"`
	MaxExecutions int           `json:"max_executions,omitempty" yaml:"max_executions,omitempty"`
	ActiveHours   *ActiveHours  `json:"active_hours,omitempty" yaml:"active_hours,omitempty"`
}

// MonitoringRule pairs an ordered condition list with an ordered action list
// under a schedule.
type MonitoringRule struct {
	ID         string                `json:"id" yaml:"id"`
	Name       string                `json:"name" yaml:"name"`
	Category   RuleCategory          `json:"category" yaml:"category"`
	Enabled    bool                  `json:"enabled" yaml:"enabled"`
	Conditions []MonitoringCondition `json:"conditions" yaml:"conditions"`
	Actions    []MonitoringAction    `json:"actions" yaml:"actions"`
	Schedule   Schedule              `json:"schedule" yaml:"schedule"`
	CreatedAt  time.Time             `json:"created_at" yaml:"-"`
	UpdatedAt  time.Time             `json:"updated_at" yaml:"-"`
}

// Validate checks the rule invariants before registration.
func (r *MonitoringRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Schedule.Interval <= 0 {
		return fmt.Errorf("rule %s: interval must be positive", r.ID)
	}
	if ah := r.Schedule.ActiveHours; ah != nil {
		if ah.Start < 0 || ah.Start > 23 || ah.End < 0 || ah.End > 23 {
			return fmt.Errorf("rule %s: active hours must be within 0-23", r.ID)
		}
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %s: at least one condition is required", r.ID)
	}
	return nil
}

// ConditionResult is the outcome of evaluating one condition.
type ConditionResult struct {
	Met     bool                   `json:"met"`
	Value   interface{}            `json:"value,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MonitoringExecution records one scheduled tick of a rule. Immutable after
// creation; retained in a bounded in-memory history.
type MonitoringExecution struct {
	RuleID          string                 `json:"rule_id"`
	RuleName        string                 `json:"rule_name"`
	Timestamp       time.Time              `json:"timestamp"`
	ConditionsMet   bool                   `json:"conditions_met"`
	ActionsExecuted int                    `json:"actions_executed"`
	Duration        time.Duration          `json:"duration"`
	Error           string                 `json:"error,omitempty"`
	Details         map[string]interface{} `json:"details,omitempty"`
}
