package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/core/domain/model/batch"
	"dispatch/internal/core/ports"
	"dispatch/internal/pkg/metrics"
	"dispatch/internal/pkg/resilience"

	"github.com/segmentio/kafka-go"
)

var _ ports.Notifier = (*Kafka)(nil)

// MessageWriter is the part of *kafka.Writer the notifier uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Source       string
	QueueSize    int
	WriteTimeout time.Duration
}

func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Topic:        "dispatch.batch-lifecycle",
		Source:       DefaultSource,
		QueueSize:    1024,
		WriteTimeout: 5 * time.Second,
	}
}

// NewKafkaWriter builds a synchronous writer keyed by batch id.
func NewKafkaWriter(config KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  false,
	}
}

// Kafka is a fire-and-forget ports.Notifier. A single background goroutine
// drains the queue through the circuit breaker.
type Kafka struct {
	writer  MessageWriter
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
	config  KafkaConfig

	queue chan kafka.Message
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewKafka(
	writer MessageWriter,
	config KafkaConfig,
	breaker *resilience.CircuitBreaker,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Kafka {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultKafkaConfig().QueueSize
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultKafkaConfig().WriteTimeout
	}
	if config.Source == "" {
		config.Source = DefaultSource
	}

	k := &Kafka{
		writer:  writer,
		breaker: breaker,
		metrics: m,
		logger:  logger.With("component", "notifier"),
		config:  config,
		queue:   make(chan kafka.Message, config.QueueSize),
		done:    make(chan struct{}),
	}

	k.wg.Add(1)
	go k.run()

	return k
}

// Notify queues the event and returns immediately. When the queue is full
// or the notifier is closed the event is dropped and counted.
func (k *Kafka) Notify(ctx context.Context, event batch.LifecycleEvent) {
	envelope := NewEnvelope(k.config.Source, event)
	payload, err := json.Marshal(envelope)
	if err != nil {
		k.logger.ErrorContext(ctx, "failed to encode lifecycle event", "batch_id", envelope.Subject, "error", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(envelope.Subject),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "ce-specversion", Value: []byte(envelope.SpecVersion)},
			{Key: "ce-type", Value: []byte(envelope.Type)},
			{Key: "ce-source", Value: []byte(envelope.Source)},
			{Key: "ce-id", Value: []byte(envelope.ID)},
			{Key: "ce-time", Value: []byte(envelope.Time.Format(time.RFC3339))},
			{Key: "content-type", Value: []byte(envelope.DataContentType)},
		},
		Time: envelope.Time,
	}

	select {
	case <-k.done:
		k.drop(ctx, envelope, "closed")
		return
	default:
	}

	select {
	case k.queue <- msg:
	default:
		k.drop(ctx, envelope, "queue full")
	}
}

func (k *Kafka) drop(ctx context.Context, envelope Envelope, reason string) {
	if k.metrics != nil {
		k.metrics.NotificationsDropped.Inc()
	}
	k.logger.WarnContext(ctx, "lifecycle event dropped",
		"reason", reason, "type", envelope.Type, "batch_id", envelope.Subject)
}

func (k *Kafka) run() {
	defer k.wg.Done()

	for {
		select {
		case msg := <-k.queue:
			k.publish(msg)
		case <-k.done:
			for {
				select {
				case msg := <-k.queue:
					k.publish(msg)
				default:
					return
				}
			}
		}
	}
}

func (k *Kafka) publish(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), k.config.WriteTimeout)
	defer cancel()

	_, err := resilience.Execute(ctx, k.breaker, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, k.writer.WriteMessages(ctx, msg)
	})

	status := "ok"
	if err != nil {
		status = "error"
		k.logger.Warn("failed to publish lifecycle event", "key", string(msg.Key), "error", err)
	}
	if k.metrics != nil {
		k.metrics.NotificationsPublished.WithLabelValues(status).Inc()
	}
}

// Close stops accepting events, flushes what is queued and closes the
// writer. It gives up on the flush when ctx ends.
func (k *Kafka) Close(ctx context.Context) error {
	k.once.Do(func() { close(k.done) })

	flushed := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(flushed)
	}()

	select {
	case <-flushed:
	case <-ctx.Done():
		k.logger.Warn("lifecycle event flush interrupted", "pending", len(k.queue))
	}

	return k.writer.Close()
}

// Discard is a ports.Notifier that drops every event. It is used when no
// broker is configured.
type Discard struct {
	logger *slog.Logger
}

func NewDiscard(logger *slog.Logger) *Discard {
	return &Discard{logger: logger.With("component", "notifier")}
}

func (d *Discard) Notify(ctx context.Context, event batch.LifecycleEvent) {
	d.logger.DebugContext(ctx, "lifecycle event", "type", event.Type, "batch_id", event.BatchID.String())
}
