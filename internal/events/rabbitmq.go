// Package events delivers committed domain events to the outside world.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/georgemunganga/printa-garments/internal/domain"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "garments.events"

var ErrClosed = errors.New("rabbitmq: connection closed")

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func encode(event domain.Event, now time.Time) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", event.Type())
	}
	return json.Marshal(Envelope{
		ID:         uuid.NewString(),
		Type:       event.Type(),
		OccurredAt: now.UTC(),
		Payload:    payload,
	})
}

// RabbitMQ publishes events to a topic exchange, routed by event type
// (e.g. "order.status_changed").
type RabbitMQ struct {
	url      string
	exchange string
	log      logrus.FieldLogger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitMQ(url, exchange string, log logrus.FieldLogger) (*RabbitMQ, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	r := &RabbitMQ{url: url, exchange: exchange, log: log}
	if err := r.connect(); err != nil {
		return nil, err
	}
	return r, nil
}

// connect must be called with mu held or before r is shared.
func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return errors.Wrap(err, "dial rabbitmq")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "open rabbitmq channel")
	}
	err = ch.ExchangeDeclare(r.exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "declare exchange %s", r.exchange)
	}
	r.conn = conn
	r.ch = ch
	return nil
}

func (r *RabbitMQ) Dispatch(ctx context.Context, event domain.Event) error {
	body, err := encode(event, time.Now())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil || r.conn.IsClosed() || r.ch == nil || r.ch.IsClosed() {
		r.log.Warn("rabbitmq connection lost, reconnecting")
		if err := r.connect(); err != nil {
			return errors.Wrap(ErrClosed, err.Error())
		}
	}

	err = r.ch.PublishWithContext(ctx, r.exchange, event.Type(), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Type:         event.Type(),
		Body:         body,
	})
	if err != nil {
		return errors.Wrapf(err, "publish %s", event.Type())
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil && !r.ch.IsClosed() {
		if err := r.ch.Close(); err != nil {
			return errors.Wrap(err, "close rabbitmq channel")
		}
	}
	if r.conn != nil && !r.conn.IsClosed() {
		if err := r.conn.Close(); err != nil {
			return errors.Wrap(err, "close rabbitmq connection")
		}
	}
	return nil
}
