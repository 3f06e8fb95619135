package service

import (
	"errors"
	"sync"
	"time"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

const (
	throttleWindow      = 15 * time.Minute
	suppressionDuration = 1 * time.Hour
	defaultThrottleCap  = 10
)

var severityCaps = map[models.Severity]int{
	models.SeverityCritical: 3,
	models.SeverityHigh:     5,
	models.SeverityMedium:   10,
	models.SeverityLow:      20,
}

var (
	// ErrSuppressed means the alert class is under an active suppression.
	ErrSuppressed = errors.New("alert class is suppressed")
	// ErrThrottled means the class exceeded its cap; a suppression was installed.
	ErrThrottled = errors.New("alert class exceeded throttle cap")
)

type throttleState struct {
	count       int
	windowStart time.Time
}

// FrequencyGovernor owns the per-class throttle counters and suppression
// timestamps. All state lives behind one mutex: the counter increment and the
// cap check must be atomic together since concurrent rule ticks can race on
// the same class.
type FrequencyGovernor struct {
	mu           sync.Mutex
	throttles    map[string]*throttleState
	suppressions map[string]time.Time
	log          *logger.Logger
	now          func() time.Time
}

func NewFrequencyGovernor(log *logger.Logger) *FrequencyGovernor {
	return &FrequencyGovernor{
		throttles:    make(map[string]*throttleState),
		suppressions: make(map[string]time.Time),
		log:          log,
		now:          time.Now,
	}
}

// Admit decides whether an alert of the given class may proceed to delivery.
// Suppression is checked before the throttle; a suppressed class does not
// advance its counter.
func (g *FrequencyGovernor) Admit(class models.AlertClass) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	key := class.Key()

	if until, ok := g.suppressions[key]; ok {
		if now.Before(until) {
			return ErrSuppressed
		}
		delete(g.suppressions, key)
	}

	state, ok := g.throttles[key]
	if !ok || now.Sub(state.windowStart) >= throttleWindow {
		g.throttles[key] = &throttleState{count: 1, windowStart: now}
		return nil
	}

	state.count++

	cap := defaultThrottleCap
	if c, ok := severityCaps[class.Severity]; ok {
		cap = c
	}

	if state.count > cap {
		g.suppressions[key] = now.Add(suppressionDuration)
		g.log.WithFields(map[string]interface{}{
			"class":            key,
			"count":            state.count,
			"cap":              cap,
			"suppressed_until": g.suppressions[key],
		}).Warn("Alert class exceeded throttle cap, suppressing")
		return ErrThrottled
	}

	return nil
}

// Suppress installs a suppression for one class until the given time. Used by
// the correlator.
func (g *FrequencyGovernor) Suppress(class models.AlertClass, until time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suppressions[class.Key()] = until
}

// SuppressType installs a suppression across all severities of a type.
func (g *FrequencyGovernor) SuppressType(alertType string, until time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, sev := range []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical} {
		g.suppressions[models.AlertClass{Type: alertType, Severity: sev}.Key()] = until
	}
}

// Reset clears all throttle and suppression state.
func (g *FrequencyGovernor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.throttles = make(map[string]*throttleState)
	g.suppressions = make(map[string]time.Time)
}
