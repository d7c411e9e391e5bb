package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/yuzvak/flashsale-engine/internal/config"
	"github.com/yuzvak/flashsale-engine/internal/domain/analytics"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events from a background worker so callers never wait
// on the broker. Events that do not fit in the queue are dropped and counted.
type KafkaSink struct {
	writer messageWriter
	log    *logger.Logger
	queue  chan analytics.Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool

	maxElapsed time.Duration
}

func NewKafkaSink(cfg config.KafkaConfig, log *logger.Logger) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout.Duration,
		RequiredAcks: kafka.RequireOne,
	}

	return newKafkaSink(writer, cfg.BatchSize*10, log)
}

func newKafkaSink(writer messageWriter, queueSize int, log *logger.Logger) *KafkaSink {
	if queueSize < 1 {
		queueSize = 1024
	}

	s := &KafkaSink{
		writer:     writer,
		log:        log,
		queue:      make(chan analytics.Event, queueSize),
		done:       make(chan struct{}),
		maxElapsed: 30 * time.Second,
	}
	go s.run()
	return s
}

func (s *KafkaSink) Publish(ctx context.Context, events ...analytics.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}

	for _, event := range events {
		select {
		case s.queue <- event:
		default:
			monitoring.AnalyticsPublishFailuresTotal.WithLabelValues(string(event.Type)).Inc()
			s.log.Warn("Analytics queue full, dropping event", "event_type", event.Type, "event_id", event.ID)
		}
	}
	return nil
}

// Close stops accepting events and flushes what is queued.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return s.writer.Close()
}

func (s *KafkaSink) run() {
	defer close(s.done)

	batch := make([]analytics.Event, 0, 64)
	for event := range s.queue {
		batch = append(batch[:0], event)
	drain:
		for len(batch) < cap(batch) {
			select {
			case next, ok := <-s.queue:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		s.write(batch)
	}
}

func (s *KafkaSink) write(events []analytics.Event) {
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			s.log.Error("Failed to encode analytics event", "error", err, "event_id", event.ID)
			continue
		}
		messages = append(messages, kafka.Message{
			Key:   event.PartitionKey(),
			Value: payload,
			Time:  event.OccurredAt,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.Type)},
			},
		})
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = s.maxElapsed

	err := backoff.Retry(func() error {
		return s.writer.WriteMessages(context.Background(), messages...)
	}, policy)
	if err != nil {
		for _, event := range events {
			monitoring.AnalyticsPublishFailuresTotal.WithLabelValues(string(event.Type)).Inc()
		}
		s.log.Error("Failed to publish analytics events", "error", err, "count", len(events))
	}
}
