package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

// RuleScheduler owns the rule registry and runs each enabled rule on its own
// ticker goroutine. Executions of the same rule never overlap.
type RuleScheduler struct {
	evaluator *Evaluator
	executor  *ActionExecutor
	history   *ExecutionHistory
	log       *logger.Logger

	mu       sync.Mutex
	rules    map[string]*models.MonitoringRule
	running  map[string]context.CancelFunc
	counts   map[string]int
	locks    map[string]*sync.Mutex
	started  bool
	parent   context.Context
	wg       sync.WaitGroup

	nowFn func() time.Time
}

func NewRuleScheduler(evaluator *Evaluator, executor *ActionExecutor, history *ExecutionHistory, log *logger.Logger) *RuleScheduler {
	return &RuleScheduler{
		evaluator: evaluator,
		executor:  executor,
		history:   history,
		log:       log,
		rules:     make(map[string]*models.MonitoringRule),
		running:   make(map[string]context.CancelFunc),
		counts:    make(map[string]int),
		locks:     make(map[string]*sync.Mutex),
		nowFn:     time.Now,
	}
}

// Register validates and adds a rule. If the scheduler is already started and
// the rule is enabled, its timer is armed immediately.
func (s *RuleScheduler) Register(rule *models.MonitoringRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule %s is already registered", rule.ID)
	}

	now := s.nowFn()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	s.rules[rule.ID] = rule
	s.locks[rule.ID] = &sync.Mutex{}

	s.log.WithFields(map[string]interface{}{
		"rule_id":  rule.ID,
		"interval": rule.Schedule.Interval.String(),
		"enabled":  rule.Enabled,
	}).Info("Registered monitoring rule")

	if s.started && rule.Enabled {
		s.armLocked(rule)
	}

	return nil
}

// Unregister disarms and removes a rule.
func (s *RuleScheduler) Unregister(ruleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[ruleID]; !exists {
		return fmt.Errorf("rule %s is not registered", ruleID)
	}

	s.disarmLocked(ruleID)
	delete(s.rules, ruleID)
	delete(s.locks, ruleID)
	delete(s.counts, ruleID)

	s.log.WithField("rule_id", ruleID).Info("Unregistered monitoring rule")
	return nil
}

// SetEnabled flips a rule on or off, arming or disarming its timer when the
// scheduler is running. Re-enabling resets the execution count.
func (s *RuleScheduler) SetEnabled(ruleID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[ruleID]
	if !exists {
		return fmt.Errorf("rule %s is not registered", ruleID)
	}

	if rule.Enabled == enabled {
		return nil
	}

	rule.Enabled = enabled
	rule.UpdatedAt = s.nowFn()

	if enabled {
		s.counts[ruleID] = 0
		if s.started {
			s.armLocked(rule)
		}
	} else {
		s.disarmLocked(ruleID)
	}

	s.log.WithFields(map[string]interface{}{
		"rule_id": ruleID,
		"enabled": enabled,
	}).Info("Rule state changed")

	return nil
}

// Rules returns a snapshot of all registered rules.
func (s *RuleScheduler) Rules() []models.MonitoringRule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.MonitoringRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, *r)
	}
	return out
}

// GetRule returns one registered rule by id.
func (s *RuleScheduler) GetRule(ruleID string) (*models.MonitoringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[ruleID]
	if !exists {
		return nil, fmt.Errorf("rule %s is not registered", ruleID)
	}
	copied := *rule
	return &copied, nil
}

// Start arms a timer for every enabled rule. Calling Start on a running
// scheduler is a no-op.
func (s *RuleScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	s.parent = ctx

	for _, rule := range s.rules {
		if rule.Enabled {
			s.armLocked(rule)
		}
	}

	s.log.WithField("armed", len(s.running)).Info("Rule scheduler started")
}

// Stop disarms every timer and waits for in-flight executions to finish.
// Safe to call more than once.
func (s *RuleScheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false

	for id := range s.running {
		s.disarmLocked(id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("Rule scheduler stopped")
}

// RunRule executes a rule once, outside its schedule. The active hours gate
// and per-rule serialization still apply.
func (s *RuleScheduler) RunRule(ctx context.Context, ruleID string) (*models.MonitoringExecution, error) {
	s.mu.Lock()
	rule, exists := s.rules[ruleID]
	if !exists {
		s.mu.Unlock()
		return nil, fmt.Errorf("rule %s is not registered", ruleID)
	}
	snapshot := *rule
	lock := s.locks[ruleID]
	s.mu.Unlock()

	exec := s.execute(ctx, &snapshot, lock)
	return &exec, nil
}

// armLocked starts the ticker goroutine for a rule. Caller holds s.mu.
func (s *RuleScheduler) armLocked(rule *models.MonitoringRule) {
	if _, already := s.running[rule.ID]; already {
		return
	}

	ctx, cancel := context.WithCancel(s.parent)
	s.running[rule.ID] = cancel
	activeRules.Inc()

	s.wg.Add(1)
	go s.runLoop(ctx, rule.ID, rule.Schedule.Interval)
}

// disarmLocked cancels a rule's ticker goroutine. Caller holds s.mu.
func (s *RuleScheduler) disarmLocked(ruleID string) {
	if cancel, ok := s.running[ruleID]; ok {
		cancel()
		delete(s.running, ruleID)
		activeRules.Dec()
	}
}

func (s *RuleScheduler) runLoop(ctx context.Context, ruleID string, interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, ruleID)
		}
	}
}

// tick runs one scheduled execution and disarms the rule when it reaches its
// execution cap.
func (s *RuleScheduler) tick(ctx context.Context, ruleID string) {
	s.mu.Lock()
	rule, exists := s.rules[ruleID]
	if !exists || !rule.Enabled {
		s.mu.Unlock()
		return
	}
	snapshot := *rule
	lock := s.locks[ruleID]
	s.mu.Unlock()

	exec := s.execute(ctx, &snapshot, lock)

	if skipped(exec) {
		return
	}

	max := snapshot.Schedule.MaxExecutions
	if max <= 0 {
		return
	}

	s.mu.Lock()
	s.counts[ruleID]++
	reached := s.counts[ruleID] >= max
	if reached {
		s.disarmLocked(ruleID)
		if r, ok := s.rules[ruleID]; ok {
			r.Enabled = false
			r.UpdatedAt = s.nowFn()
		}
	}
	s.mu.Unlock()

	if reached {
		s.log.WithFields(map[string]interface{}{
			"rule_id":        ruleID,
			"max_executions": max,
		}).Info("Rule reached its execution cap, disarming")
	}
}

func skipped(exec models.MonitoringExecution) bool {
	if exec.Details == nil {
		return false
	}
	_, ok := exec.Details["skipped"]
	return ok
}

// execute runs the rule pipeline once: active hours gate, concurrent condition
// evaluation, then actions if every condition held. The result is always
// recorded in the history.
func (s *RuleScheduler) execute(ctx context.Context, rule *models.MonitoringRule, lock *sync.Mutex) models.MonitoringExecution {
	lock.Lock()
	defer lock.Unlock()

	start := s.nowFn()
	exec := models.MonitoringExecution{
		RuleID:    rule.ID,
		RuleName:  rule.Name,
		Timestamp: start,
	}

	if ah := rule.Schedule.ActiveHours; ah != nil && !ah.Contains(start.Hour()) {
		exec.Details = map[string]interface{}{"skipped": "Outside active hours"}
		exec.Duration = time.Since(start)
		s.history.Add(exec)
		ruleExecutions.WithLabelValues(rule.ID, "skipped").Inc()
		return exec
	}

	results := s.evaluateAll(ctx, rule.Conditions)

	allMet := true
	details := make(map[string]interface{}, len(results))
	for i, res := range results {
		if !res.Met {
			allMet = false
		}
		details[fmt.Sprintf("condition_%d", i)] = map[string]interface{}{
			"met":     res.Met,
			"value":   res.Value,
			"details": res.Details,
		}
	}

	exec.ConditionsMet = allMet
	exec.Details = details

	outcome := "not_met"
	if allMet {
		executed, err := s.executor.ExecuteAll(ctx, rule, details)
		exec.ActionsExecuted = executed
		if err != nil {
			exec.Error = err.Error()
			outcome = "error"
		} else {
			outcome = "triggered"
		}
	}

	exec.Duration = time.Since(start)
	s.history.Add(exec)

	ruleExecutions.WithLabelValues(rule.ID, outcome).Inc()
	ruleExecutionDuration.WithLabelValues(rule.ID).Observe(exec.Duration.Seconds())

	if allMet {
		s.log.WithFields(map[string]interface{}{
			"rule_id":  rule.ID,
			"actions":  exec.ActionsExecuted,
			"duration": exec.Duration.String(),
		}).Info("Rule triggered")
	}

	return exec
}

// evaluateAll evaluates every condition concurrently and returns results in
// condition order.
func (s *RuleScheduler) evaluateAll(ctx context.Context, conditions []models.MonitoringCondition) []models.ConditionResult {
	results := make([]models.ConditionResult, len(conditions))

	var wg sync.WaitGroup
	for i, cond := range conditions {
		wg.Add(1)
		go func(i int, cond models.MonitoringCondition) {
			defer wg.Done()
			results[i] = s.evaluator.Evaluate(ctx, cond)
		}(i, cond)
	}
	wg.Wait()

	return results
}
