package events

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestMultiPublishesToAllAndJoinsErrors(t *testing.T) {
	rec := &Recorder{}
	boom := errors.New("broker down")
	multi := Multi{rec, nil, failingPublisher{err: boom}}

	err := multi.Publish(context.Background(), New(StockMovementCreated, "p-1", nil))
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error to contain %v, got %v", boom, err)
	}
	if got := len(rec.OfType(StockMovementCreated)); got != 1 {
		t.Fatalf("recorder got %d events, want 1", got)
	}
}

func TestParseKafkaBrokers(t *testing.T) {
	got := ParseKafkaBrokers(" a:9092, b:9092,,")
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Fatalf("ParseKafkaBrokers = %v", got)
	}
	if len(ParseKafkaBrokers("")) != 0 {
		t.Fatal("empty broker string should yield no brokers")
	}
}

func TestKafkaSecurity(t *testing.T) {
	logger := logrus.New()

	mech, tlsConfig := kafkaSecurity(KafkaConfig{}, logger)
	if mech != nil || tlsConfig != nil {
		t.Fatal("plaintext cluster should not configure SASL or TLS")
	}

	mech, tlsConfig = kafkaSecurity(KafkaConfig{Username: "u", Password: "p"}, logger)
	if mech == nil || tlsConfig == nil {
		t.Fatal("SASL credentials should enable SASL over TLS")
	}
	if tlsConfig.RootCAs != nil {
		t.Fatal("without a CA the system roots should be used")
	}
}

func TestNewKafkaPublisherRequiresBrokersAndTopic(t *testing.T) {
	logger := logrus.New()
	if _, err := NewKafkaPublisher(KafkaConfig{Topic: "t"}, logger); err == nil {
		t.Fatal("expected error without brokers")
	}
	if _, err := NewKafkaPublisher(KafkaConfig{Brokers: "localhost:9092"}, logger); err == nil {
		t.Fatal("expected error without topic")
	}
	p, err := NewKafkaPublisher(KafkaConfig{Brokers: "localhost:9092", Topic: "inventory-events"}, logger)
	if err != nil {
		t.Fatalf("NewKafkaPublisher: %v", err)
	}
	if p.writer.Topic != "inventory-events" {
		t.Fatalf("writer topic = %q", p.writer.Topic)
	}
	_ = p.Close()
}
