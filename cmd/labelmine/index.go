package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/kafka"
)

func indexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index <dir>",
		Short: "Replace the dataset collection with the annotation files under dir",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd.Context())
			defer cancel()

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			defer a.serveMetrics(s)(context.Background())

			sum, err := a.index(ctx, s, args[0])
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

// index runs the indexer, publishing completion to Kafka when enabled.
func (a *app) index(ctx context.Context, s store.Store, dir string) (indexer.Summary, error) {
	var notifier indexer.Notifier
	if a.cfg.Kafka.Enabled {
		producer := kafka.NewProducer(a.cfg.Kafka, a.cfg.Kafka.Topics.IndexComplete)
		defer func() {
			if err := producer.Close(); err != nil {
				slog.Warn("closing kafka producer", "error", err)
			}
		}()
		notifier = events.NewPublisher(producer, a.metrics)
	}
	ix := indexer.New(s, a.cfg.Store, a.cfg.Indexer, a.metrics, notifier)
	return ix.IndexDataset(ctx, dir)
}

func printSummary(w io.Writer, sum indexer.Summary) {
	fmt.Fprintf(w, "indexed %s into %s\n", sum.SourceDir, sum.Collection)
	fmt.Fprintf(w, "  collections:        %d\n", sum.Collections)
	fmt.Fprintf(w, "  resources:          %d\n", sum.Resources)
	fmt.Fprintf(w, "  skipped files:      %d\n", sum.SkippedFiles)
	fmt.Fprintf(w, "  ignored files:      %d\n", sum.IgnoredFiles)
	fmt.Fprintf(w, "  failed resources:   %d\n", sum.FailedResources)
	fmt.Fprintf(w, "  failed collections: %d\n", sum.FailedCollections)
	fmt.Fprintf(w, "  duration:           %s\n", sum.Duration.Round(time.Millisecond))
}
