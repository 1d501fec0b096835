package mq

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/havenline/casekeeper/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DialFunc establishes a RabbitMQ connection; used for connect and reconnect.
type DialFunc func() (*amqp.Connection, error)

// NewDialFunc builds a DialFunc from config, upgrading to TLS when enabled
// or when the URL already uses the amqps scheme.
func NewDialFunc(cfg *config.Config) DialFunc {
	return func() (*amqp.Connection, error) {
		useTLS := cfg.RabbitMQ.EnableTLS || strings.HasPrefix(cfg.RabbitMQ.URL, "amqps://")

		if useTLS {
			tlsConfig := &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
			url := cfg.RabbitMQ.URL
			if strings.HasPrefix(url, "amqp://") {
				url = strings.Replace(url, "amqp://", "amqps://", 1)
			}
			return amqp.DialTLS(url, tlsConfig)
		}

		return amqp.Dial(cfg.RabbitMQ.URL)
	}
}

type Publisher struct {
	ch  *amqp.Channel
	log *zap.Logger
	cfg *config.Config
}

func NewPublisher(conn *amqp.Connection, log *zap.Logger, cfg *config.Config) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(0, 0, false); err != nil {
		return nil, err
	}
	if cfg.RabbitMQ.AuditExchange != "" {
		if err := ch.ExchangeDeclare(cfg.RabbitMQ.AuditExchange, "topic", true, false, false, false, nil); err != nil {
			return nil, err
		}
	}
	return &Publisher{ch: ch, log: log, cfg: cfg}, nil
}

func (p *Publisher) Close() error { return p.ch.Close() }

func (p *Publisher) PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error {
	b, err := sonic.Marshal(body)
	if err != nil {
		return err
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         b,
	}

	if err := p.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, publishing); err != nil {
		p.log.Warn("audit publish failed",
			zap.String("exchange", exchangeName),
			zap.String("routing_key", routingKey),
			zap.Error(err))
		return err
	}
	return nil
}
