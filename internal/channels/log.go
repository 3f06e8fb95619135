package channels

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/logger"
)

// LogChannel writes alerts to the structured log.
type LogChannel struct {
	log *logger.Logger
}

func NewLogChannel(log *logger.Logger) *LogChannel {
	return &LogChannel{log: log}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(ctx context.Context, alert *models.Alert) error {
	c.log.WithFields(map[string]interface{}{
		"alert_id": alert.ID.Hex(),
		"type":     alert.Type,
		"severity": alert.Severity,
		"title":    alert.Title,
	}).Warn(alert.Message)
	return nil
}

// ConsoleChannel prints alerts to stdout. Mostly useful in development.
type ConsoleChannel struct{}

func NewConsoleChannel() *ConsoleChannel {
	return &ConsoleChannel{}
}

func (c *ConsoleChannel) Name() string { return "console" }

func (c *ConsoleChannel) Send(ctx context.Context, alert *models.Alert) error {
	_, err := fmt.Fprintf(os.Stdout, "[%s] ALERT %s/%s: %s - %s\n",
		alert.CreatedAt.Format(time.RFC3339), alert.Type, alert.Severity, alert.Title, alert.Message)
	return err
}
