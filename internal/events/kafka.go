package events

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/sirupsen/logrus"
)

// KafkaConfig holds broker access settings.
type KafkaConfig struct {
	Brokers  string // comma separated
	Topic    string
	Username string
	Password string
	CACert   string // PEM
}

// KafkaPublisher writes events as JSON to one topic.
type KafkaPublisher struct {
	writer  *kafka.Writer
	dialer  *kafka.Dialer
	brokers []string
	logger  *logrus.Logger
}

// NewKafkaPublisher builds a publisher. It does not connect until the
// first write or Ping.
func NewKafkaPublisher(cfg KafkaConfig, logger *logrus.Logger) (*KafkaPublisher, error) {
	brokers := ParseKafkaBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no Kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is empty")
	}

	mechanism, tlsConfig := kafkaSecurity(cfg, logger)

	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
			Transport: &kafka.Transport{
				SASL: mechanism,
				TLS:  tlsConfig,
			},
		},
		dialer:  CreateKafkaDialer(cfg, logger),
		brokers: brokers,
		logger:  logger,
	}, nil
}

// Publish writes one message keyed by the aggregate id.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s event to kafka: %w", event.Type, err)
	}
	return nil
}

// Ping dials the first reachable broker.
func (p *KafkaPublisher) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := p.dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("no Kafka broker reachable: %w", lastErr)
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// CreateKafkaDialer builds a dialer with SASL/PLAIN and TLS when
// credentials or a CA certificate are given.
func CreateKafkaDialer(cfg KafkaConfig, logger *logrus.Logger) *kafka.Dialer {
	mechanism, tlsConfig := kafkaSecurity(cfg, logger)
	return &kafka.Dialer{
		Timeout:       10 * time.Second,
		DualStack:     true,
		SASLMechanism: mechanism,
		TLS:           tlsConfig,
	}
}

// kafkaSecurity returns nil values for a plaintext cluster. SASL always
// travels over TLS; without a CA the system pool is used.
func kafkaSecurity(cfg KafkaConfig, logger *logrus.Logger) (sasl.Mechanism, *tls.Config) {
	var mechanism sasl.Mechanism
	if cfg.Username != "" && cfg.Password != "" {
		mechanism = plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	if mechanism == nil && cfg.CACert == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.CACert != "" {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM([]byte(cfg.CACert)) {
			tlsConfig.RootCAs = pool
		} else {
			logger.Warn("kafka: could not parse CA certificate, using system roots")
		}
	}
	return mechanism, tlsConfig
}

// ParseKafkaBrokers splits a comma separated broker list.
func ParseKafkaBrokers(brokers string) []string {
	if brokers == "" {
		return []string{}
	}
	var result []string
	for _, broker := range strings.Split(strings.ReplaceAll(brokers, " ", ""), ",") {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
