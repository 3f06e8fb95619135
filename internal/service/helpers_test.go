package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/grigta/sentinel/internal/channels"
	"github.com/grigta/sentinel/internal/config"
	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

// fakeStore is an in-memory AlertStore.
type fakeStore struct {
	mu        sync.Mutex
	alerts    []*models.Alert
	insertErr error
	dedup     bool

	acknowledged   []string
	resolved       []string
	correlationIDs map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{correlationIDs: make(map[string]string)}
}

func (s *fakeStore) Insert(ctx context.Context, alert *models.Alert) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return primitive.NilObjectID, s.insertErr
	}
	alert.ID = primitive.NewObjectID()
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	copied := *alert
	s.alerts = append(s.alerts, &copied)
	return alert.ID, nil
}

func (s *fakeStore) FindUnresolvedByType(ctx context.Context, alertType string, since time.Time) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dedup {
		return nil, nil
	}
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if a.Type == alertType && a.ResolvedAt == nil && !a.CreatedAt.Before(since) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) IncrementRetry(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == id {
			a.RetryCount++
			return nil
		}
	}
	return errors.New("alert not found")
}

func (s *fakeStore) Update(ctx context.Context, id primitive.ObjectID, patch bson.M) error {
	return nil
}

func (s *fakeStore) Acknowledge(ctx context.Context, id primitive.ObjectID, acknowledgedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acknowledged = append(s.acknowledged, id.Hex())
	return nil
}

func (s *fakeStore) Resolve(ctx context.Context, id primitive.ObjectID, resolvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolved = append(s.resolved, id.Hex())
	return nil
}

func (s *fakeStore) RecentAlerts(ctx context.Context, window time.Duration) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var out []models.Alert
	for _, a := range s.alerts {
		if !a.CreatedAt.Before(cutoff) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) SetCorrelationID(ctx context.Context, ids []primitive.ObjectID, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.correlationIDs[id.Hex()] = correlationID
		for _, a := range s.alerts {
			if a.ID == id {
				a.CorrelationID = correlationID
			}
		}
	}
	return nil
}

func (s *fakeStore) stored() []*models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// fakeMetrics returns a fixed value for every query.
type fakeMetrics struct {
	value float64
	err   error
}

func (f *fakeMetrics) Query(ctx context.Context, metric string, window time.Duration, agg models.Aggregation) (float64, error) {
	return f.value, f.err
}

// fakeHealth returns a fixed health report.
type fakeHealth struct {
	status string
	err    error
}

func (f *fakeHealth) CurrentReport(ctx context.Context) (*HealthReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &HealthReport{OverallStatus: f.status}, nil
}

// fakeLogs returns a fixed match count.
type fakeLogs struct {
	count int64
	err   error
}

func (f *fakeLogs) CountMatches(ctx context.Context, pattern string, window time.Duration) (int64, error) {
	return f.count, f.err
}

// recordChannel records every alert it is asked to deliver.
type recordChannel struct {
	name string

	mu    sync.Mutex
	sent  []models.Alert
	fail  bool
	calls int
}

func newRecordChannel(name string) *recordChannel {
	return &recordChannel{name: name}
}

func (c *recordChannel) Name() string { return c.name }

func (c *recordChannel) Send(ctx context.Context, alert *models.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail {
		return errors.New("delivery failed")
	}
	c.sent = append(c.sent, *alert)
	return nil
}

func (c *recordChannel) delivered() []models.Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Alert, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *recordChannel) setFailing(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

// fakeRecovery records invoked recovery actions.
type fakeRecovery struct {
	mu      sync.Mutex
	actions []string
	err     error
}

func (f *fakeRecovery) Execute(ctx context.Context, recoveryActionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.actions = append(f.actions, recoveryActionID)
	return nil
}

func (f *fakeRecovery) invoked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.actions))
	copy(out, f.actions)
	return out
}

var testDefaults = config.DefaultChannelConfig{
	Critical: []string{"test"},
	Warning:  []string{"test"},
}

// newTestDispatcher wires a dispatcher against in-memory fakes with one
// recording channel named "test".
func newTestDispatcher(store *fakeStore) (*AlertDispatcher, *recordChannel) {
	log := logger.NewNop()
	registry := channels.NewRegistry()
	ch := newRecordChannel("test")
	registry.Register(ch)

	dispatcher := NewAlertDispatcher(
		store,
		NewFrequencyGovernor(log),
		registry,
		NewRetryCoordinator(log),
		testDefaults,
		log,
	)
	return dispatcher, ch
}
