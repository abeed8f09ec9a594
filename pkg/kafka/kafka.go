package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"

	cb "github.com/smabibs/SiPerpus/pkg/circuit_breaker"
)

type Config struct {
	Addrs []string `envconfig:"KAFKA_ADDRS"`
	// AuditTopic receives one message per audit entry; empty disables forwarding.
	AuditTopic string        `envconfig:"KAFKA_AUDIT_TOPIC" default:"library.audit"`
	Timeout    time.Duration `envconfig:"KAFKA_TIMEOUT" default:"5s"`
}

func (c Config) Enabled() bool {
	return len(c.Addrs) > 0 && c.AuditTopic != ""
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	if cfg.Timeout > 0 {
		defaultCfg.Producer.Timeout = cfg.Timeout
		defaultCfg.Net.DialTimeout = cfg.Timeout
	}

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

// Publisher sends JSON encoded values to one topic through a circuit breaker,
// so a broker outage fails fast instead of stalling every caller.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
	breaker  cb.CircuitBreaker
}

func NewPublisher(producer sarama.SyncProducer, topic string, breaker cb.CircuitBreaker) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		breaker:  breaker,
	}
}

func (p *Publisher) Publish(ctx context.Context, key string, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "kafka.Publish marshal")
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}

	send := func() error {
		_, _, err := p.producer.SendMessage(msg)
		return err
	}
	if p.breaker == nil {
		return errors.Wrap(send(), "kafka.Publish")
	}
	if err := p.breaker.Call(send); err != nil {
		return errors.Wrap(err, "kafka.Publish")
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
