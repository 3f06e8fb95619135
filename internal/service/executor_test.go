package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

func newTestExecutor(store *fakeStore, recovery RecoveryInvoker) (*ActionExecutor, *recordChannel) {
	dispatcher, ch := newTestDispatcher(store)
	return NewActionExecutor(dispatcher, recovery, logger.NewNop()), ch
}

func testRule(actions ...models.MonitoringAction) *models.MonitoringRule {
	return &models.MonitoringRule{
		ID:       "r1",
		Name:     "test rule",
		Category: models.CategoryHealth,
		Actions:  actions,
	}
}

func TestExecuteAlertActionRoutesBySeverity(t *testing.T) {
	store := newFakeStore()
	executor, ch := newTestExecutor(store, nil)

	rule := testRule(
		models.MonitoringAction{Type: models.ActionAlert, Severity: models.SeverityCritical, AlertType: "crit"},
		models.MonitoringAction{Type: models.ActionAlert, Severity: models.SeverityMedium, AlertType: "med"},
	)

	executed, err := executor.ExecuteAll(context.Background(), rule, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, executed)

	stored := store.stored()
	require.Len(t, stored, 2)
	assert.Equal(t, models.SeverityCritical, stored[0].Severity)
	assert.Equal(t, models.SeverityMedium, stored[1].Severity)
	assert.Len(t, ch.delivered(), 2)
}

func TestExecuteAlertCarriesRuleMetadata(t *testing.T) {
	store := newFakeStore()
	executor, _ := newTestExecutor(store, nil)

	rule := testRule(models.MonitoringAction{Type: models.ActionAlert, Severity: models.SeverityHigh, AlertType: "x"})
	details := map[string]interface{}{"condition_0": "met"}

	_, err := executor.ExecuteAll(context.Background(), rule, details)
	require.NoError(t, err)

	stored := store.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "r1", stored[0].Metadata["rule_id"])
	assert.Equal(t, "met", stored[0].Metadata["condition_0"])
}

func TestExecuteAlertDefaultsTypeToRuleID(t *testing.T) {
	store := newFakeStore()
	executor, _ := newTestExecutor(store, nil)

	rule := testRule(models.MonitoringAction{Type: models.ActionAlert, Severity: models.SeverityHigh})
	_, err := executor.ExecuteAll(context.Background(), rule, nil)
	require.NoError(t, err)

	stored := store.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "r1", stored[0].Type)
}

func TestExecuteRecoveryAction(t *testing.T) {
	recovery := &fakeRecovery{}
	executor, _ := newTestExecutor(newFakeStore(), recovery)

	rule := testRule(models.MonitoringAction{Type: models.ActionRecovery, RecoveryAction: "restart_workers"})
	executed, err := executor.ExecuteAll(context.Background(), rule, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	assert.Equal(t, []string{"restart_workers"}, recovery.invoked())
}

func TestExecuteFailingActionDoesNotStopSiblings(t *testing.T) {
	recovery := &fakeRecovery{err: errors.New("remediation bus down")}
	store := newFakeStore()
	executor, _ := newTestExecutor(store, recovery)

	rule := testRule(
		models.MonitoringAction{Type: models.ActionRecovery, RecoveryAction: "restart"},
		models.MonitoringAction{Type: models.ActionAlert, Severity: models.SeverityHigh, AlertType: "after_failure"},
	)

	executed, err := executor.ExecuteAll(context.Background(), rule, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, executed)
	assert.Len(t, store.stored(), 1, "alert action still ran after the recovery failure")
}

func TestExecuteCustomAction(t *testing.T) {
	executor, _ := newTestExecutor(newFakeStore(), nil)

	var got models.MonitoringAction
	executor.RegisterAction("notify_oncall", func(ctx context.Context, action models.MonitoringAction) error {
		got = action
		return nil
	})

	rule := testRule(models.MonitoringAction{Type: models.ActionCustom, CustomName: "notify_oncall"})
	executed, err := executor.ExecuteAll(context.Background(), rule, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	assert.Equal(t, "notify_oncall", got.CustomName)
}

func TestExecuteUnregisteredCustomActionFails(t *testing.T) {
	executor, _ := newTestExecutor(newFakeStore(), nil)

	rule := testRule(models.MonitoringAction{Type: models.ActionCustom, CustomName: "ghost"})
	executed, err := executor.ExecuteAll(context.Background(), rule, nil)

	assert.Error(t, err)
	assert.Zero(t, executed)
}

func TestExecuteLogAction(t *testing.T) {
	executor, _ := newTestExecutor(newFakeStore(), nil)

	rule := testRule(models.MonitoringAction{Type: models.ActionLog})
	executed, err := executor.ExecuteAll(context.Background(), rule, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, executed)
}

func TestExecuteThrottledAlertIsNotAnActionFailure(t *testing.T) {
	store := newFakeStore()
	executor, _ := newTestExecutor(store, nil)

	rule := testRule(models.MonitoringAction{Type: models.ActionAlert, Severity: models.SeverityCritical, AlertType: "x"})

	for i := 0; i < 5; i++ {
		executed, err := executor.ExecuteAll(context.Background(), rule, nil)
		require.NoError(t, err, "run %d", i+1)
		assert.Equal(t, 1, executed)
	}

	assert.Len(t, store.stored(), 3, "governed denials stop persistence, not the action")
}
