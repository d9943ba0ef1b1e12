package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/event-ticketing/internal/queue"
)

// EventPublisher delivers reservation events.  Publishing happens after
// the transaction commits and failures never undo a transition.
type EventPublisher interface {
	Publish(ctx context.Context, event q.ReservationEvent) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, q.ReservationEvent) error { return nil }

// AMQPPublisher publishes events to a durable RabbitMQ queue.  It dials per
// publish so a broker restart never leaves it holding a dead connection.
type AMQPPublisher struct {
	URL   string
	Queue string
	Log   *slog.Logger
}

// NewAMQPPublisher returns a publisher for the reservation events queue.
func NewAMQPPublisher(url string, log *slog.Logger) *AMQPPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &AMQPPublisher{URL: url, Queue: q.ReservationQueue, Log: log}
}

// Publish sends event to the queue as a persistent JSON message.  Any
// error is logged and returned so the caller can choose to ignore it.
func (p *AMQPPublisher) Publish(ctx context.Context, event q.ReservationEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.WarnContext(ctx, "rabbitmq: dial failed", "err", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.WarnContext(ctx, "rabbitmq: channel open failed", "err", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.Queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		p.Log.WarnContext(ctx, "rabbitmq: queue declare failed", "err", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.Queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.Log.WarnContext(ctx, "rabbitmq: publish failed", "err", err, "event", event.Type)
		return err
	}
	return nil
}
