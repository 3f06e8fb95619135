package service

import (
	"context"
	"fmt"
	"time"

	"github.com/grigta/sentinel/pkg/logger"
	"github.com/grigta/sentinel/pkg/messaging"
)

const (
	commandExchange    = "monitor.commands"
	recoveryRoutingKey = "recovery"
)

// RecoveryCommand is published to the command exchange for the remediation
// workers to pick up.
type RecoveryCommand struct {
	Action      string    `json:"action"`
	RequestedAt time.Time `json:"requested_at"`
	Source      string    `json:"source"`
}

// BusRecoveryInvoker hands recovery actions off to the message bus. The
// engine never runs remediation in-process; it only requests it.
type BusRecoveryInvoker struct {
	publisher messaging.Publisher
	log       *logger.Logger
}

func NewBusRecoveryInvoker(publisher messaging.Publisher, log *logger.Logger) *BusRecoveryInvoker {
	return &BusRecoveryInvoker{publisher: publisher, log: log}
}

func (r *BusRecoveryInvoker) Execute(ctx context.Context, recoveryActionID string) error {
	if r.publisher == nil {
		return fmt.Errorf("recovery invoker is not configured: no publisher")
	}

	cmd := RecoveryCommand{
		Action:      recoveryActionID,
		RequestedAt: time.Now(),
		Source:      "monitor-service",
	}

	if err := r.publisher.Publish(commandExchange, recoveryRoutingKey, cmd); err != nil {
		return fmt.Errorf("failed to publish recovery command %q: %w", recoveryActionID, err)
	}

	r.log.WithField("action", recoveryActionID).Info("Recovery command published")
	return nil
}
