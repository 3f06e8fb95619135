package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

// ActionExecutor runs a rule's actions in declared order. One failing action
// is recorded and does not stop the remaining ones.
type ActionExecutor struct {
	dispatcher *AlertDispatcher
	recovery   RecoveryInvoker
	log        *logger.Logger

	mu      sync.RWMutex
	customs map[string]CustomAction
}

func NewActionExecutor(dispatcher *AlertDispatcher, recovery RecoveryInvoker, log *logger.Logger) *ActionExecutor {
	return &ActionExecutor{
		dispatcher: dispatcher,
		recovery:   recovery,
		log:        log,
		customs:    make(map[string]CustomAction),
	}
}

// RegisterAction installs a named handler for custom actions.
func (e *ActionExecutor) RegisterAction(name string, fn CustomAction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.customs[name] = fn
}

// ExecuteAll runs every action of a triggered rule in order and returns how
// many succeeded, plus the joined errors of those that did not.
func (e *ActionExecutor) ExecuteAll(ctx context.Context, rule *models.MonitoringRule, details map[string]interface{}) (int, error) {
	var executed int
	var errs []error

	for i, action := range rule.Actions {
		if err := e.execute(ctx, rule, action, details); err != nil {
			e.log.WithError(err).WithFields(map[string]interface{}{
				"rule_id": rule.ID,
				"action":  string(action.Type),
				"index":   i,
			}).Error("Action failed")
			errs = append(errs, fmt.Errorf("action %d (%s): %w", i, action.Type, err))
			continue
		}
		executed++
	}

	return executed, errors.Join(errs...)
}

func (e *ActionExecutor) execute(ctx context.Context, rule *models.MonitoringRule, action models.MonitoringAction, details map[string]interface{}) error {
	switch action.Type {
	case models.ActionAlert:
		return e.executeAlert(ctx, rule, action, details)
	case models.ActionRecovery:
		return e.executeRecovery(ctx, rule, action)
	case models.ActionLog:
		e.log.WithFields(map[string]interface{}{
			"rule_id":   rule.ID,
			"rule_name": rule.Name,
			"category":  string(rule.Category),
			"details":   details,
		}).Warn("Monitoring rule triggered")
		return nil
	case models.ActionCustom:
		return e.executeCustom(ctx, action)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

func (e *ActionExecutor) executeAlert(ctx context.Context, rule *models.MonitoringRule, action models.MonitoringAction, details map[string]interface{}) error {
	alertType := action.AlertType
	if alertType == "" {
		alertType = rule.ID
	}

	metadata := map[string]interface{}{
		"rule_id":   rule.ID,
		"rule_name": rule.Name,
		"category":  string(rule.Category),
	}
	for k, v := range action.Metadata {
		metadata[k] = v
	}
	for k, v := range details {
		metadata[k] = v
	}

	alert := &models.Alert{
		Type:     alertType,
		Severity: action.Severity,
		Title:    rule.Name,
		Message:  fmt.Sprintf("Monitoring rule %q triggered", rule.Name),
		Metadata: metadata,
		Channels: action.Channels,
	}

	var err error
	if action.Severity == models.SeverityCritical {
		err = e.dispatcher.SendCritical(ctx, alert)
	} else {
		err = e.dispatcher.SendWarning(ctx, alert)
	}

	// Governance denials are the pipeline working as intended, not action
	// failures.
	if errors.Is(err, ErrSuppressed) || errors.Is(err, ErrThrottled) || errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}

func (e *ActionExecutor) executeRecovery(ctx context.Context, rule *models.MonitoringRule, action models.MonitoringAction) error {
	if e.recovery == nil {
		return fmt.Errorf("no recovery invoker configured")
	}
	if action.RecoveryAction == "" {
		return fmt.Errorf("recovery action id is required")
	}

	e.log.WithFields(map[string]interface{}{
		"rule_id":         rule.ID,
		"recovery_action": action.RecoveryAction,
	}).Info("Invoking recovery action")

	return e.recovery.Execute(ctx, action.RecoveryAction)
}

func (e *ActionExecutor) executeCustom(ctx context.Context, action models.MonitoringAction) error {
	e.mu.RLock()
	fn, ok := e.customs[action.CustomName]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("custom action %q is not registered", action.CustomName)
	}
	return fn(ctx, action)
}
