// Package events defines the messages the pipeline stages exchange over Kafka
// and the publisher the indexer reports through.
package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/metrics"
)

// IndexComplete is published once per successful indexing run.
type IndexComplete struct {
	Collection  string    `json:"collection"`
	SourceDir   string    `json:"source_dir"`
	Collections int       `json:"collections"`
	Resources   int       `json:"resources"`
	Skipped     int       `json:"skipped"`
	CompletedAt time.Time `json:"completed_at"`
}

// Producer is satisfied by *kafka.Producer.
type Producer interface {
	Publish(ctx context.Context, key string, value any) error
}

// Publisher sends IndexComplete events keyed by collection path, so every run
// for one collection lands on the same partition in order.
type Publisher struct {
	producer Producer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewPublisher wraps producer. m may be nil.
func NewPublisher(producer Producer, m *metrics.Metrics) *Publisher {
	return &Publisher{
		producer: producer,
		metrics:  m,
		logger:   slog.Default().With("component", "events"),
	}
}

func (p *Publisher) IndexComplete(ctx context.Context, ev IndexComplete) error {
	err := p.producer.Publish(ctx, ev.Collection, ev)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if p.metrics != nil {
		p.metrics.EventsPublishedTotal.WithLabelValues(status).Inc()
	}
	if err != nil {
		return err
	}
	p.logger.Debug("index completion published", "collection", ev.Collection, "resources", ev.Resources)
	return nil
}
