package service

import (
	"sync"
	"time"

	"github.com/grigta/sentinel/internal/models"
)

// ExecutionHistory is a bounded, insertion-ordered record of past rule
// executions. Entries are appended in completion order; the oldest entry is
// evicted once the cap is reached.
type ExecutionHistory struct {
	mu      sync.Mutex
	entries []models.MonitoringExecution
	cap     int
}

func NewExecutionHistory(capacity int) *ExecutionHistory {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ExecutionHistory{
		entries: make([]models.MonitoringExecution, 0, capacity),
		cap:     capacity,
	}
}

// Add appends one execution record, evicting the oldest when full.
func (h *ExecutionHistory) Add(exec models.MonitoringExecution) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.entries) >= h.cap {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, exec)
}

// List returns up to limit records for a rule (all rules when ruleID is
// empty), newest last. limit <= 0 means no limit.
func (h *ExecutionHistory) List(ruleID string, limit int) []models.MonitoringExecution {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []models.MonitoringExecution
	for _, e := range h.entries {
		if ruleID == "" || e.RuleID == ruleID {
			out = append(out, e)
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}

	return out
}

// Len returns the current number of records.
func (h *ExecutionHistory) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// RuleStats summarizes the recorded executions of one rule.
type RuleStats struct {
	RuleID        string        `json:"rule_id"`
	Executions    int           `json:"executions"`
	ConditionsMet int           `json:"conditions_met"`
	Errors        int           `json:"errors"`
	AvgDuration   time.Duration `json:"avg_duration"`
	LastRun       time.Time     `json:"last_run"`
}

// Stats aggregates per-rule statistics over the retained window.
func (h *ExecutionHistory) Stats() map[string]RuleStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	totals := make(map[string]time.Duration)
	stats := make(map[string]RuleStats)

	for _, e := range h.entries {
		s := stats[e.RuleID]
		s.RuleID = e.RuleID
		s.Executions++
		if e.ConditionsMet {
			s.ConditionsMet++
		}
		if e.Error != "" {
			s.Errors++
		}
		if e.Timestamp.After(s.LastRun) {
			s.LastRun = e.Timestamp
		}
		totals[e.RuleID] += e.Duration
		stats[e.RuleID] = s
	}

	for id, s := range stats {
		if s.Executions > 0 {
			s.AvgDuration = totals[id] / time.Duration(s.Executions)
			stats[id] = s
		}
	}

	return stats
}
