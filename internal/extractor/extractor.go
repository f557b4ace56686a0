// Package extractor mines a stored collection for its label vocabulary.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/pathquery"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/vocabulary"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/vocabulary/normalizer"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/tracing"
)

type Extractor struct {
	store        store.Store
	expr         pathquery.Expr
	normalize    vocabulary.NormalizeFunc
	cooccurrence bool
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New builds an Extractor for cfg.Path. m may be nil.
func New(s store.Store, cfg config.ExtractorConfig, m *metrics.Metrics) (*Extractor, error) {
	expr, err := pathquery.Parse(cfg.Path)
	if err != nil {
		return nil, err
	}
	normalize := normalizer.Normalize
	if cfg.FoldCase {
		normalize = normalizer.Fold
	}
	return &Extractor{
		store:        s,
		expr:         expr,
		normalize:    normalize,
		cooccurrence: cfg.Cooccurrence,
		metrics:      m,
		logger:       logger.WithComponent("extractor"),
	}, nil
}

// Extract runs the label query over collectionPath and everything below it
// and aggregates the normalised results. Any query failure is fatal.
func (e *Extractor) Extract(ctx context.Context, collectionPath string) (vocab *vocabulary.Vocabulary, err error) {
	start := time.Now()
	log := logger.WithCollection(ctx, "extractor", collectionPath)
	ctx, span := tracing.StartSpan(ctx, "extract", "")
	defer func() {
		span.End()
		span.Log(log)
		e.observe(vocab, time.Since(start), err)
	}()

	res, err := e.store.Query(ctx, collectionPath, e.expr)
	if err != nil {
		if errors.Is(err, apperrors.ErrCollectionNotFound) {
			return nil, apperrors.Wrap(apperrors.ErrCollectionResolution, err, "resolving %s", collectionPath)
		}
		return nil, apperrors.Wrap(apperrors.ErrQueryExecution, err, "starting query %s on %s", e.expr, collectionPath)
	}
	defer res.Close()

	agg := vocabulary.NewAggregator(e.normalize)
	var (
		current string
		pending []string
	)
	flush := func() {
		if current != "" {
			agg.AddDocument(current, pending)
		}
		pending = pending[:0]
	}
	for res.Next(ctx) {
		m := res.Match()
		if !e.cooccurrence {
			agg.Add(m.Text)
			continue
		}
		if m.Resource != current {
			flush()
			current = m.Resource
		}
		pending = append(pending, m.Text)
	}
	if err := res.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrQueryExecution, err, "reading results of %s", collectionPath)
	}
	if e.cooccurrence {
		flush()
	}

	vocab = agg.Vocabulary()
	span.SetAttr("labels", vocab.Len())
	span.SetAttr("occurrences", agg.Observed())
	log.Info("vocabulary extracted",
		"size", vocab.Len(),
		"occurrences", agg.Observed(),
		"documents", agg.Documents(),
		"duration", time.Since(start),
	)
	return vocab, nil
}

func (e *Extractor) observe(vocab *vocabulary.Vocabulary, took time.Duration, err error) {
	if e.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metrics.StageRunsTotal.WithLabelValues("extract", status).Inc()
	e.metrics.StageDuration.WithLabelValues("extract").Observe(took.Seconds())
	if vocab != nil {
		e.metrics.VocabularySize.Set(float64(vocab.Len()))
		e.metrics.LabelOccurrencesTotal.Add(float64(vocab.TotalOccurrences()))
	}
}

// OnIndexComplete returns a Kafka handler that re-extracts the collection
// named by each IndexComplete event and passes the result to report. A failed
// extraction is returned to the consumer, which logs it and moves on; the
// next completed index run triggers a fresh extraction.
func (e *Extractor) OnIndexComplete(report func(events.IndexComplete, *vocabulary.Vocabulary)) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		ev, err := kafka.DecodeJSON[events.IndexComplete](value)
		if err != nil {
			return err
		}
		e.logger.Info("index completion received", "collection", ev.Collection, "resources", ev.Resources)
		vocab, err := e.Extract(ctx, ev.Collection)
		if err != nil {
			return fmt.Errorf("extracting after index of %s: %w", ev.Collection, err)
		}
		report(ev, vocab)
		return nil
	}
}
