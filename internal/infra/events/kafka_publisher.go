// Package events publishes recalculation events to Kafka.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/legal-assistant-bfa-go/internal/domain"
	"github.com/boddenberg/legal-assistant-bfa-go/internal/infra/resilience"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("events")

// TipoRecalculado is the event type emitted when a recompute changes dates.
const TipoRecalculado = domain.TipoEventoRecalculado

// KafkaConfig contains configurable parameters for the publisher.
type KafkaConfig struct {
	// Brokers is the list of Kafka broker addresses (host:port).
	Brokers []string

	// Topic receives every event.
	Topic string

	// WriteTimeout is the per-attempt timeout. Defaults to 10s if zero.
	WriteTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher implements port.EventPublisher. Messages are keyed by
// processo id so all events of one case land on the same partition.
type KafkaPublisher struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	guard        *resilience.Guard
	logger       *zap.Logger
}

// NewKafkaPublisher validates cfg and builds a synchronous kafka-go writer.
func NewKafkaPublisher(cfg KafkaConfig, guard *resilience.Guard, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})

	return newKafkaPublisher(w, cfg.Topic, cfg.WriteTimeout, guard, logger), nil
}

func newKafkaPublisher(w messageWriter, topic string, writeTimeout time.Duration, guard *resilience.Guard, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer:       w,
		topic:        topic,
		writeTimeout: writeTimeout,
		guard:        guard,
		logger:       logger,
	}
}

// Publicar writes one event. Failures are reported as
// *domain.ErrExternalService once retries are exhausted.
func (p *KafkaPublisher) Publicar(ctx context.Context, evento *domain.EventoRecalculo) error {
	ctx, span := tracer.Start(ctx, "Kafka.Publicar")
	defer span.End()
	span.SetAttributes(
		attribute.String("processo.id", evento.ProcessoID),
		attribute.String("evento.tipo", evento.Tipo),
	)

	value, err := json.Marshal(evento)
	if err != nil {
		return fmt.Errorf("marshal evento: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(evento.ProcessoID),
		Value: value,
		Time:  evento.OcorridoEm,
		Headers: []kafka.Header{
			{Key: "tipo", Value: []byte(evento.Tipo)},
			{Key: "evento_id", Value: []byte(evento.ID)},
		},
	}

	err = p.guard.Do(ctx, "kafka.publicar", func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
		defer cancel()
		return p.writer.WriteMessages(attemptCtx, msg)
	})
	if err != nil {
		p.logger.Error("kafka: publish failed",
			zap.String("topic", p.topic),
			zap.String("processo_id", evento.ProcessoID),
			zap.Error(err),
		)
		return &domain.ErrExternalService{Service: "kafka/" + p.topic, Err: err}
	}

	p.logger.Debug("kafka: event published",
		zap.String("topic", p.topic),
		zap.String("processo_id", evento.ProcessoID),
		zap.String("evento_id", evento.ID),
	)
	return nil
}

// Close shuts down the underlying writer and releases resources.
func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
