package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

func newTestCorrelator(store *fakeStore, patterns []models.CorrelationPattern) (*AlertCorrelator, *recordChannel, *FrequencyGovernor) {
	dispatcher, ch := newTestDispatcher(store)
	correlator := NewAlertCorrelator(store, dispatcher, dispatcher.governor, patterns, time.Minute, logger.NewNop())
	return correlator, ch, dispatcher.governor
}

func seedAlerts(store *fakeStore, alertType string, count int) {
	for i := 0; i < count; i++ {
		alert := &models.Alert{
			Type:     alertType,
			Severity: models.SeverityHigh,
			Title:    alertType,
		}
		store.Insert(context.Background(), alert)
	}
}

func TestCorrelatorBelowMinCountDoesNothing(t *testing.T) {
	store := newFakeStore()
	correlator, ch, _ := newTestCorrelator(store, []models.CorrelationPattern{{
		Name:       "burst",
		Window:     10 * time.Minute,
		MinCount:   5,
		AlertTypes: []string{"db_down"},
		Action:     models.CorrelationEscalate,
	}})

	seedAlerts(store, "db_down", 4)

	require.NoError(t, correlator.RunOnce(context.Background()))
	assert.Len(t, store.stored(), 4, "no meta-alert below the threshold")
	assert.Empty(t, ch.delivered())
}

func TestCorrelatorEscalatesBurst(t *testing.T) {
	store := newFakeStore()
	correlator, ch, _ := newTestCorrelator(store, []models.CorrelationPattern{{
		Name:       "burst",
		Window:     10 * time.Minute,
		MinCount:   3,
		AlertTypes: []string{"db_down", "api_slow"},
		Action:     models.CorrelationEscalate,
	}})

	seedAlerts(store, "db_down", 2)
	seedAlerts(store, "api_slow", 1)

	require.NoError(t, correlator.RunOnce(context.Background()))

	stored := store.stored()
	require.Len(t, stored, 4)

	meta := stored[3]
	assert.Equal(t, "correlated:burst", meta.Type)
	assert.Equal(t, models.SeverityCritical, meta.Severity)
	assert.Equal(t, 3, meta.Metadata["matched_count"])

	require.Len(t, ch.delivered(), 1)
}

func TestCorrelatorEscalationDoesNotFeedItself(t *testing.T) {
	store := newFakeStore()
	store.dedup = true
	correlator, _, _ := newTestCorrelator(store, []models.CorrelationPattern{{
		Name:       "burst",
		Window:     10 * time.Minute,
		MinCount:   3,
		AlertTypes: []string{"db_down"},
		Action:     models.CorrelationEscalate,
	}})

	seedAlerts(store, "db_down", 3)

	require.NoError(t, correlator.RunOnce(context.Background()))
	require.NoError(t, correlator.RunOnce(context.Background()))
	require.NoError(t, correlator.RunOnce(context.Background()))

	metaCount := 0
	for _, a := range store.stored() {
		if a.Type == "correlated:burst" {
			metaCount++
		}
	}
	assert.Equal(t, 1, metaCount, "repeated scans do not stack meta-alerts")
}

func TestCorrelatorSuppressAction(t *testing.T) {
	store := newFakeStore()
	correlator, _, governor := newTestCorrelator(store, []models.CorrelationPattern{{
		Name:       "storm",
		Window:     15 * time.Minute,
		MinCount:   3,
		AlertTypes: []string{"http_errors"},
		Action:     models.CorrelationSuppress,
	}})

	seedAlerts(store, "http_errors", 3)

	require.NoError(t, correlator.RunOnce(context.Background()))

	err := governor.Admit(models.AlertClass{Type: "http_errors", Severity: models.SeverityHigh})
	assert.ErrorIs(t, err, ErrSuppressed, "matched type is suppressed across severities")

	err = governor.Admit(models.AlertClass{Type: "other", Severity: models.SeverityHigh})
	assert.NoError(t, err)
}

func TestCorrelatorGroupAction(t *testing.T) {
	store := newFakeStore()
	correlator, _, _ := newTestCorrelator(store, []models.CorrelationPattern{{
		Name:       "related",
		Window:     30 * time.Minute,
		MinCount:   3,
		AlertTypes: []string{"queue_backlog", "http_errors"},
		Action:     models.CorrelationGroup,
	}})

	seedAlerts(store, "queue_backlog", 2)
	seedAlerts(store, "http_errors", 1)

	require.NoError(t, correlator.RunOnce(context.Background()))

	var ids []string
	for _, a := range store.stored() {
		require.NotEmpty(t, a.CorrelationID)
		ids = append(ids, a.CorrelationID)
	}
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2], "all matched alerts share one correlation id")
}

func TestCorrelatorGroupSkipsAlreadyGrouped(t *testing.T) {
	store := newFakeStore()
	correlator, _, _ := newTestCorrelator(store, []models.CorrelationPattern{{
		Name:       "related",
		Window:     30 * time.Minute,
		MinCount:   3,
		AlertTypes: []string{"queue_backlog"},
		Action:     models.CorrelationGroup,
	}})

	seedAlerts(store, "queue_backlog", 3)
	require.NoError(t, correlator.RunOnce(context.Background()))

	first := store.stored()[0].CorrelationID
	require.NotEmpty(t, first)

	require.NoError(t, correlator.RunOnce(context.Background()))
	assert.Equal(t, first, store.stored()[0].CorrelationID, "grouped alerts keep their id on later scans")
}

func TestCorrelatorIgnoresAlertsOutsideWatchSet(t *testing.T) {
	store := newFakeStore()
	correlator, ch, _ := newTestCorrelator(store, []models.CorrelationPattern{{
		Name:       "burst",
		Window:     10 * time.Minute,
		MinCount:   3,
		AlertTypes: []string{"db_down"},
		Action:     models.CorrelationEscalate,
	}})

	seedAlerts(store, "unrelated", 5)
	seedAlerts(store, "db_down", 2)

	require.NoError(t, correlator.RunOnce(context.Background()))
	assert.Empty(t, ch.delivered(), "unwatched types never count toward the pattern")
}
