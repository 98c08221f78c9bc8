package queue

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Names of the broker objects. The exchange needs the
// rabbitmq_delayed_message_exchange plugin.
const (
	DelayedExchange = "glucodiary.delayed"
	FireQueue       = "glucodiary.reminders.fire"
	FireRoutingKey  = "reminder.fire"
	consumerTag     = "glucodiary-dispatcher"
)

// Setup declares the delayed exchange and the work queue bound to it.
func Setup(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		DelayedExchange,
		"x-delayed-message",
		true,
		false,
		false,
		false,
		amqp.Table{"x-delayed-type": "direct"},
	)
	if err != nil {
		return fmt.Errorf("declare delayed exchange: %w", err)
	}

	q, err := ch.QueueDeclare(FireQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, FireRoutingKey, DelayedExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// AMQPDelayer publishes reminder ids with an x-delay header; the broker holds
// them back until the delay is over. Published messages cannot be withdrawn,
// so a reminder scheduled twice is delivered twice.
type AMQPDelayer struct {
	ch *amqp.Channel
}

func NewAMQPDelayer(ch *amqp.Channel) *AMQPDelayer {
	return &AMQPDelayer{ch: ch}
}

func (d *AMQPDelayer) Schedule(ctx context.Context, reminderID uint, delay time.Duration) error {
	if d.ch.IsClosed() {
		return ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := d.ch.PublishWithContext(
		ctx,
		DelayedExchange,
		FireRoutingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "text/plain",
			Body:         []byte(strconv.FormatUint(uint64(reminderID), 10)),
			Headers:      amqp.Table{"x-delay": delay.Milliseconds()},
		},
	)
	if err != nil {
		return fmt.Errorf("publish reminder %d: %w", reminderID, err)
	}
	return nil
}

// Consume hands every delivered reminder id to handler until ctx is done.
// Messages with a malformed body are dropped; handler errors requeue once.
func Consume(ctx context.Context, ch *amqp.Channel, handler Handler) error {
	deliveries, err := ch.Consume(FireQueue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", FireQueue, err)
	}

	go func() {
		<-ctx.Done()
		if err := ch.Cancel(consumerTag, false); err != nil && !ch.IsClosed() {
			log.Printf("cancel consumer: %v", err)
		}
	}()

	log.Printf("[info] consuming %s", FireQueue)
	for d := range deliveries {
		id, err := strconv.ParseUint(string(d.Body), 10, 64)
		if err != nil {
			log.Printf("drop malformed delivery %q: %v", d.Body, err)
			_ = d.Nack(false, false)
			continue
		}
		if err := handler(ctx, uint(id)); err != nil {
			log.Printf("fire reminder %d: %v", id, err)
			_ = d.Nack(false, !d.Redelivered)
			continue
		}
		if err := d.Ack(false); err != nil {
			log.Printf("ack reminder %d: %v", id, err)
		}
	}
	return ctx.Err()
}
