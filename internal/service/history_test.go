package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grigta/sentinel/internal/models"
)

func TestHistoryEvictsOldestAtCap(t *testing.T) {
	h := NewExecutionHistory(3)

	for i := 0; i < 5; i++ {
		h.Add(models.MonitoringExecution{RuleID: fmt.Sprintf("rule-%d", i)})
	}

	require.Equal(t, 3, h.Len())

	entries := h.List("", 0)
	require.Len(t, entries, 3)
	assert.Equal(t, "rule-2", entries[0].RuleID, "oldest surviving entry")
	assert.Equal(t, "rule-4", entries[2].RuleID, "newest entry")
}

func TestHistoryListFiltersByRule(t *testing.T) {
	h := NewExecutionHistory(10)
	h.Add(models.MonitoringExecution{RuleID: "a"})
	h.Add(models.MonitoringExecution{RuleID: "b"})
	h.Add(models.MonitoringExecution{RuleID: "a"})

	assert.Len(t, h.List("a", 0), 2)
	assert.Len(t, h.List("b", 0), 1)
	assert.Empty(t, h.List("c", 0))
}

func TestHistoryListLimitKeepsNewest(t *testing.T) {
	h := NewExecutionHistory(10)
	for i := 0; i < 5; i++ {
		h.Add(models.MonitoringExecution{RuleID: "a", ActionsExecuted: i})
	}

	limited := h.List("a", 2)
	require.Len(t, limited, 2)
	assert.Equal(t, 3, limited[0].ActionsExecuted)
	assert.Equal(t, 4, limited[1].ActionsExecuted)
}

func TestHistoryStats(t *testing.T) {
	h := NewExecutionHistory(10)
	now := time.Now()

	h.Add(models.MonitoringExecution{RuleID: "a", ConditionsMet: true, Duration: 100 * time.Millisecond, Timestamp: now.Add(-time.Minute)})
	h.Add(models.MonitoringExecution{RuleID: "a", Error: "boom", Duration: 300 * time.Millisecond, Timestamp: now})
	h.Add(models.MonitoringExecution{RuleID: "b", Duration: 50 * time.Millisecond, Timestamp: now})

	stats := h.Stats()
	require.Len(t, stats, 2)

	a := stats["a"]
	assert.Equal(t, 2, a.Executions)
	assert.Equal(t, 1, a.ConditionsMet)
	assert.Equal(t, 1, a.Errors)
	assert.Equal(t, 200*time.Millisecond, a.AvgDuration)
	assert.Equal(t, now, a.LastRun)
}

func TestHistoryDefaultCapacity(t *testing.T) {
	h := NewExecutionHistory(0)
	for i := 0; i < 1001; i++ {
		h.Add(models.MonitoringExecution{RuleID: "a"})
	}
	assert.Equal(t, 1000, h.Len())
}
