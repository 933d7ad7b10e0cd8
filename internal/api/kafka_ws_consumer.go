package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"stockledger/server/internal/events"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// KafkaWSConsumer relays inventory events from Kafka to the local hub so
// that dashboards see writes made on any instance.
type KafkaWSConsumer struct {
	topic     string
	groupID   string
	reader    *kafka.Reader
	hub       *Hub
	logger    *logrus.Logger
	processed int64
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewKafkaWSConsumer(cfg events.KafkaConfig, groupID string, hub *Hub, logger *logrus.Logger) *KafkaWSConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     events.ParseKafkaBrokers(cfg.Brokers),
		Topic:       cfg.Topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
		Dialer:      events.CreateKafkaDialer(cfg, logger),
	})

	return &KafkaWSConsumer{
		topic:   cfg.Topic,
		groupID: groupID,
		reader:  reader,
		hub:     hub,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start reads in a goroutine until Stop is called.
func (kc *KafkaWSConsumer) Start(ctx context.Context) {
	ctx, kc.cancel = context.WithCancel(ctx)
	kc.logger.WithFields(logrus.Fields{"topic": kc.topic, "group_id": kc.groupID}).Info("kafka websocket relay started")

	go func() {
		defer close(kc.done)
		for {
			msg, err := kc.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || ctx.Err() != nil {
					return
				}
				kc.logger.WithError(err).Warn("kafka websocket relay read failed")
				select {
				case <-ctx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}
			kc.relay(ctx, msg)
		}
	}()
}

func (kc *KafkaWSConsumer) relay(ctx context.Context, msg kafka.Message) {
	var event events.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		kc.logger.WithFields(logrus.Fields{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		}).WithError(err).Warn("skipping malformed inventory event")
		return
	}
	kc.hub.Publish(ctx, event)

	if n := atomic.AddInt64(&kc.processed, 1); n%1000 == 0 {
		kc.logger.WithField("processed", n).Info("kafka websocket relay progress")
	}
}

// Processed returns how many events were relayed.
func (kc *KafkaWSConsumer) Processed() int64 {
	return atomic.LoadInt64(&kc.processed)
}

func (kc *KafkaWSConsumer) Stop() error {
	if kc.cancel != nil {
		kc.cancel()
		<-kc.done
	}
	err := kc.reader.Close()
	kc.logger.Info("kafka websocket relay stopped")
	return err
}
