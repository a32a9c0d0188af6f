package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/HarvardViz/data-processing/internal/config"
	"github.com/HarvardViz/data-processing/internal/domain"
)

// Collections published by the sink. Each goes to the topic prefix + name.
const (
	CollectionIncidents     = "incidents"
	CollectionCitations     = "citations"
	CollectionWeather       = "weather"
	CollectionNeighborhoods = "neighborhoods"
	CollectionReports       = "run-reports"
)

const (
	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 2 * time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Sink publishes output collections as keyed JSON messages, one message per
// record. It implements pipeline.Loader.
type Sink struct {
	writer messageWriter
	prefix string
	zone   *time.Location
	logger *slog.Logger
}

// NewSink creates a Kafka producer for the configured brokers. Topics are
// chosen per message, so one producer serves every collection.
func NewSink(cfg *config.Config, logger *slog.Logger) *Sink {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchSize:              cfg.KafkaBatchSize,
		BatchTimeout:           cfg.KafkaBatchFlush,
		AllowAutoTopicCreation: true,
	}
	return newSink(w, cfg.KafkaTopicPrefix, cfg.SourceZone, logger)
}

func newSink(w messageWriter, prefix string, zone *time.Location, logger *slog.Logger) *Sink {
	if zone == nil {
		zone = time.UTC
	}
	return &Sink{writer: w, prefix: prefix, zone: zone, logger: logger}
}

func (s *Sink) LoadIncidents(ctx context.Context, records []domain.IncidentRecord) error {
	return publish(ctx, s, CollectionIncidents, records,
		func(r domain.IncidentRecord) (string, time.Time) { return r.ID, r.Date })
}

func (s *Sink) LoadCitations(ctx context.Context, records []domain.CitationRecord) error {
	return publish(ctx, s, CollectionCitations, records,
		func(r domain.CitationRecord) (string, time.Time) { return r.ID, r.Date })
}

// LoadWeather keys each day by its calendar date in the source zone, so a
// rerun produces the same keys.
func (s *Sink) LoadWeather(ctx context.Context, records []domain.WeatherRecord) error {
	return publish(ctx, s, CollectionWeather, records,
		func(r domain.WeatherRecord) (string, time.Time) { return domain.DayOf(r.Date, s.zone).String(), r.Date })
}

func (s *Sink) LoadNeighborhoods(ctx context.Context, stats []domain.NeighborhoodStat) error {
	return publish(ctx, s, CollectionNeighborhoods, stats,
		func(r domain.NeighborhoodStat) (string, time.Time) { return r.ID, time.Time{} })
}

func (s *Sink) LoadReport(ctx context.Context, report domain.RunReport) error {
	return publish(ctx, s, CollectionReports, []domain.RunReport{report},
		func(r domain.RunReport) (string, time.Time) { return r.RunID, r.FinishedAt })
}

func (s *Sink) Close() error {
	return s.writer.Close()
}

// Topic returns the topic a collection is published to.
func (s *Sink) Topic(collection string) string {
	return s.prefix + collection
}

// publish serializes records and writes them in one WriteMessages call,
// retrying transient failures with exponential backoff.
func publish[T any](ctx context.Context, s *Sink, collection string, records []T, keyOf func(T) (string, time.Time)) error {
	if len(records) == 0 {
		return nil
	}
	topic := s.Topic(collection)
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		key, date := keyOf(records[i])
		msg, err := serializeToMessage(collection, key, date, records[i])
		if err != nil {
			return err
		}
		msg.Topic = topic
		msgs[i] = msg
	}

	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = s.writer.WriteMessages(ctx, msgs...); err == nil {
			s.logger.Info("collection published", "topic", topic, "messages", len(msgs))
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		s.logger.Warn("kafka write failed, retrying",
			"topic", topic, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return fmt.Errorf("publish %s: %w", topic, err)
}

// serializeToMessage marshals one record into a Kafka message. A zero date
// omits the date header.
func serializeToMessage(collection, key string, date time.Time, v any) (kafkago.Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize %s record %s: %w", collection, key, err)
	}
	headers := []kafkago.Header{{Key: "collection", Value: []byte(collection)}}
	if !date.IsZero() {
		headers = append(headers, kafkago.Header{Key: "date", Value: []byte(date.UTC().Format(time.RFC3339))})
	}
	return kafkago.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: headers,
	}, nil
}
