package channels

import (
	"context"
	"fmt"

	"github.com/grigta/sentinel/internal/models"
	"github.com/grigta/sentinel/pkg/messaging"
)

// BusChannel publishes alerts to the message bus so downstream consumers
// (ops bots, escalation workers) can react to them.
type BusChannel struct {
	publisher messaging.Publisher
	exchange  string
}

func NewBusChannel(publisher messaging.Publisher, exchange string) *BusChannel {
	return &BusChannel{publisher: publisher, exchange: exchange}
}

func (c *BusChannel) Name() string { return "bus" }

func (c *BusChannel) Send(ctx context.Context, alert *models.Alert) error {
	if c.publisher == nil {
		return fmt.Errorf("bus channel is not configured: no publisher")
	}

	event := models.AlertEvent{
		Type:      alert.Type,
		AlertID:   alert.ID.Hex(),
		Severity:  alert.Severity,
		Title:     alert.Title,
		Message:   alert.Message,
		Timestamp: alert.CreatedAt,
		Metadata:  alert.Metadata,
	}

	routingKey := fmt.Sprintf("alert.%s", alert.Severity)

	if err := c.publisher.Publish(c.exchange, routingKey, event); err != nil {
		return fmt.Errorf("failed to publish alert event: %w", err)
	}

	return nil
}
