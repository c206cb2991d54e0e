// Package events provides practice event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"violin-coach-service/internal/models"
	"violin-coach-service/internal/observability/metrics"
)

const summaryEventType = "session_summary"

// Publisher publishes practice events and session summaries to separate
// Kafka topics.
type Publisher struct {
	writerEvents    *kafka.Writer
	writerSummaries *kafka.Writer
	principal       string
	topicEvents     string
	topicSummaries  string
	enabled         bool
	metrics         *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers        []string
	TopicEvents    string
	TopicSummaries string
	Principal      string
	Enabled        bool
}

// New creates a new Kafka publisher with separate topics for practice
// events and session summaries. Disabled or broker-less configurations
// produce a log-only publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:      cfg.Principal,
			topicEvents:    cfg.TopicEvents,
			topicSummaries: cfg.TopicSummaries,
			enabled:        false,
			metrics:        m,
		}
	}

	// Longer dial timeout for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerEvents := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicEvents,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerSummaries := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSummaries,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicEvents", cfg.TopicEvents).
		Str("topicSummaries", cfg.TopicSummaries).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerEvents:    writerEvents,
		writerSummaries: writerSummaries,
		principal:       cfg.Principal,
		topicEvents:     cfg.TopicEvents,
		topicSummaries:  cfg.TopicSummaries,
		enabled:         true,
		metrics:         m,
	}
}

// PublishEvent publishes one practice event, keyed by session so a
// session's events stay ordered within a partition.
func (p *Publisher) PublishEvent(ctx context.Context, event *models.PracticeEvent) error {
	if err := event.Validate(); err != nil {
		log.Error().Err(err).Msg("Refusing to publish invalid practice event")
		return err
	}
	return p.publish(ctx, p.writerEvents, p.topicEvents, string(event.Type), event.SessionID, event)
}

// PublishSummary publishes a session summary to the summaries topic.
func (p *Publisher) PublishSummary(ctx context.Context, summary *models.SessionSummary) error {
	if err := summary.Validate(); err != nil {
		log.Error().Err(err).Msg("Refusing to publish invalid session summary")
		return err
	}
	return p.publish(ctx, p.writerSummaries, p.topicSummaries, summaryEventType, summary.SessionID, summary)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("eventType", eventType).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerEvents != nil {
		if e := p.writerEvents.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing events writer")
			err = e
		}
	}
	if p.writerSummaries != nil {
		if e := p.writerSummaries.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing summaries writer")
			err = e
		}
	}
	return err
}
