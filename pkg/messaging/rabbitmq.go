package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/grigta/sentinel/pkg/logger"
)

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	url     string
	log     *logger.Logger
	stopCh  chan struct{}
}

func NewRabbitMQ(url string, log *logger.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	rabbitmq := &RabbitMQ{
		conn:    conn,
		channel: ch,
		url:     url,
		log:     log,
		stopCh:  make(chan struct{}),
	}

	go rabbitmq.monitorConnection()

	return rabbitmq, nil
}

func (r *RabbitMQ) Close() error {
	close(r.stopCh)

	if err := r.channel.Close(); err != nil {
		return fmt.Errorf("failed to close channel: %w", err)
	}
	if err := r.conn.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (r *RabbitMQ) DeclareExchange(name, kind string, durable, autoDelete bool) error {
	return r.channel.ExchangeDeclare(
		name,
		kind,
		durable,
		autoDelete,
		false,
		false,
		nil,
	)
}

func (r *RabbitMQ) DeclareQueue(name string, durable, autoDelete, exclusive bool) (amqp.Queue, error) {
	return r.channel.QueueDeclare(
		name,
		durable,
		autoDelete,
		exclusive,
		false,
		nil,
	)
}

func (r *RabbitMQ) BindQueue(queueName, routingKey, exchangeName string) error {
	return r.channel.QueueBind(
		queueName,
		routingKey,
		exchangeName,
		false,
		nil,
	)
}

func (r *RabbitMQ) Publish(exchange, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return r.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		},
	)
}

func (r *RabbitMQ) Consume(queueName, consumerName string, autoAck bool) (<-chan amqp.Delivery, error) {
	return r.channel.Consume(
		queueName,
		consumerName,
		autoAck,
		false,
		false,
		false,
		nil,
	)
}

func (r *RabbitMQ) ConsumeWithHandler(ctx context.Context, queueName, consumerName string, handler func([]byte) error) error {
	msgs, err := r.Consume(queueName, consumerName, false)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				r.log.WithField("queue", queueName).Info("Stopping consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					r.log.WithField("queue", queueName).Warn("Consumer channel closed")
					return
				}

				if err := handler(msg.Body); err != nil {
					r.log.WithError(err).WithField("queue", queueName).Error("Failed to process message")
					msg.Nack(false, true)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

// SetupTopology declares the exchanges and queues the monitoring engine
// publishes to: alert events fan out by severity routing key, recovery
// commands are consumed by the remediation workers.
func (r *RabbitMQ) SetupTopology() error {
	if err := r.DeclareExchange("monitor.events", "topic", true, false); err != nil {
		return fmt.Errorf("failed to declare monitor.events exchange: %w", err)
	}

	if err := r.DeclareExchange("monitor.commands", "direct", true, false); err != nil {
		return fmt.Errorf("failed to declare monitor.commands exchange: %w", err)
	}

	if _, err := r.DeclareQueue("monitor.recovery", true, false, false); err != nil {
		return fmt.Errorf("failed to declare monitor.recovery queue: %w", err)
	}

	if err := r.BindQueue("monitor.recovery", "recovery", "monitor.commands"); err != nil {
		return fmt.Errorf("failed to bind monitor.recovery queue: %w", err)
	}

	return nil
}

func (r *RabbitMQ) Reconnect() error {
	if r.conn != nil && !r.conn.IsClosed() {
		r.conn.Close()
	}

	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("failed to reconnect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to reopen channel: %w", err)
	}

	r.conn = conn
	r.channel = ch

	r.log.Info("Reconnected to RabbitMQ")

	if err := r.SetupTopology(); err != nil {
		r.log.WithError(err).Error("Failed to setup topology after reconnect")
	}

	return nil
}

func (r *RabbitMQ) monitorConnection() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			if r.conn != nil && r.conn.IsClosed() {
				r.log.Warn("RabbitMQ connection lost, attempting to reconnect...")
				for i := 0; i < 5; i++ {
					if err := r.Reconnect(); err != nil {
						r.log.WithError(err).WithField("attempt", i+1).Error("Failed to reconnect to RabbitMQ")
						time.Sleep(time.Duration(i+1) * time.Second)
					} else {
						break
					}
				}
			}
		}
	}
}

type Publisher interface {
	Publish(exchange, routingKey string, message interface{}) error
}
