package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grigta/sentinel/pkg/logger"
	"github.com/grigta/sentinel/pkg/testutil"
)

func TestHealthReporterFetchesReport(t *testing.T) {
	server := testutil.NewMockHealthServer("healthy")
	defer server.Close()

	reporter := NewHTTPHealthReporter(server.URL(), nil, 30*time.Second, logger.NewNop())

	report, err := reporter.CurrentReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", report.OverallStatus)
	assert.Equal(t, "healthy", report.Components["database"])
}

func TestHealthReporterSeesStatusChanges(t *testing.T) {
	server := testutil.NewMockHealthServer("healthy")
	defer server.Close()

	reporter := NewHTTPHealthReporter(server.URL(), nil, 30*time.Second, logger.NewNop())

	report, err := reporter.CurrentReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, "healthy", report.OverallStatus)

	server.SetStatus("unhealthy")

	report, err = reporter.CurrentReport(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unhealthy", report.OverallStatus)
}

func TestHealthReporterUnreachableEndpoint(t *testing.T) {
	reporter := NewHTTPHealthReporter("http://127.0.0.1:1", nil, 30*time.Second, logger.NewNop())

	_, err := reporter.CurrentReport(context.Background())
	assert.Error(t, err)
}
