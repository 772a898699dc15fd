package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/bazaar-market/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient wraps a RabbitMQ connection/channel pair.
//
// Without an exchange, channels map to named queues on the default exchange
// and subscribers compete for messages. With an exchange, channels are
// routing keys on a fanout exchange and every subscriber gets its own
// exclusive queue, so every server instance sees every change event.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	exchange        string
	queueDurable    bool
	queueAutoDelete bool
	prefetchCount   int
}

// NewRabbitMQClient constructs a RabbitMQ client from config.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	client := &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		exchange:        strings.TrimSpace(cfg.Exchange),
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		prefetchCount:   cfg.PrefetchCount,
	}
	if err := client.declareExchange(ch); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// Publish sends a message to the named queue, or to the exchange with
// channel as routing key in fanout mode.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	exchange, key := "", channel
	if r.exchange != "" {
		exchange = r.exchange
	} else if _, err := r.declareQueue(r.channel, channel); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := newMessageID()
	err := r.channel.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		MessageId:   messageID,
		Headers:     headers,
		Body:        data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes messages for channel until ctx is done. Handler errors
// requeue the delivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	// Consumers get their own channel so deliveries never interleave with
	// publishes issued by request handlers.
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()
	if r.prefetchCount > 0 {
		if err := ch.Qos(r.prefetchCount, 0, false); err != nil {
			return err
		}
	}

	queueName, err := r.bindQueue(ch, channel)
	if err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("consumer-%s", newMessageID())
	deliveries, err := ch.Consume(queueName, consumerTag, false, r.exchange != "", false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		name,
		r.queueDurable,
		r.queueAutoDelete,
		false,
		false,
		nil,
	)
}

func (r *RabbitMQClient) declareExchange(ch *amqp.Channel) error {
	if r.exchange == "" {
		return nil
	}
	return ch.ExchangeDeclare(r.exchange, amqp.ExchangeFanout, true, false, false, false, nil)
}

// bindQueue returns the queue a subscriber consumes from: the named queue in
// queue mode, or a fresh exclusive queue bound to the exchange in fanout mode.
func (r *RabbitMQClient) bindQueue(ch *amqp.Channel, channel string) (string, error) {
	if r.exchange == "" {
		queue, err := r.declareQueue(ch, channel)
		if err != nil {
			return "", err
		}
		return queue.Name, nil
	}

	queue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return "", err
	}
	if err := ch.QueueBind(queue.Name, channel, r.exchange, false, nil); err != nil {
		return "", err
	}
	return queue.Name, nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
