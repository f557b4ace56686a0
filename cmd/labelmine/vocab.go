package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/extractor"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/vocabulary"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/kafka"
)

// outputOptions controls how a vocabulary is printed.
type outputOptions struct {
	dump      bool
	format    string
	top       int
	neighbors int
}

func (o *outputOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&o.dump, "dump", false, "print every record, not just the vocabulary size")
	cmd.Flags().StringVar(&o.format, "format", "text", "dump format (text, json, yaml)")
	cmd.Flags().IntVar(&o.top, "top", 0, "dump only the N most frequent labels (0 = all)")
	cmd.Flags().IntVar(&o.neighbors, "neighbors", 3, "co-occurring labels shown per record in text dumps")
}

func (o *outputOptions) validate() error {
	switch o.format {
	case "text", "json", "yaml":
	default:
		return apperrors.Newf(apperrors.ErrInvalidInput, "unknown format %q (want text, json or yaml)", o.format)
	}
	if o.top < 0 {
		return apperrors.Newf(apperrors.ErrInvalidInput, "--top must not be negative, got %d", o.top)
	}
	return nil
}

func vocabCmd(a *app) *cobra.Command {
	var (
		out    outputOptions
		follow bool
	)
	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "Extract the label vocabulary from the dataset collection",
		Long: `Extract the label vocabulary from the dataset collection.

Co-occurrence counts need labels grouped by source document. With
extractor.cooccurrence disabled the labels are counted as one flat stream
and every record's co-occurrences stay empty.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := out.validate(); err != nil {
				return err
			}
			ctx, cancel := a.context(cmd.Context())
			defer cancel()

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			ex, err := extractor.New(s, a.cfg.Extractor, a.metrics)
			if err != nil {
				return err
			}
			if follow {
				return a.follow(ctx, s, ex, cmd.OutOrStdout(), out)
			}
			defer a.serveMetrics(s)(context.Background())

			vocab, err := ex.Extract(ctx, a.cfg.Store.CollectionPath())
			if err != nil {
				return err
			}
			return printVocabulary(cmd.OutOrStdout(), vocab, out)
		},
	}
	out.register(cmd)
	cmd.Flags().BoolVar(&follow, "follow", false, "stay running and re-extract after every index run announced on Kafka")
	return cmd
}

// follow consumes IndexComplete events until ctx ends, next to the metrics
// server when that is enabled.
func (a *app) follow(ctx context.Context, s store.Store, ex *extractor.Extractor, w io.Writer, out outputOptions) error {
	if !a.cfg.Kafka.Enabled {
		return apperrors.New(apperrors.ErrInvalidInput, "--follow needs kafka.enabled")
	}
	handler := ex.OnIndexComplete(func(ev events.IndexComplete, vocab *vocabulary.Vocabulary) {
		fmt.Fprintf(w, "# %s indexed at %s\n", ev.Collection, ev.CompletedAt.Format(time.RFC3339))
		if err := printVocabulary(w, vocab, out); err != nil {
			fmt.Fprintf(w, "# printing vocabulary: %v\n", err)
		}
	})
	consumer := kafka.NewConsumer(a.cfg.Kafka, a.cfg.Kafka.Topics.IndexComplete, handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.Start(gctx)
	})
	if a.cfg.Metrics.Enabled {
		shutdown := a.serveMetrics(s)
		g.Go(func() error {
			<-gctx.Done()
			return shutdown(context.Background())
		})
	}
	return g.Wait()
}

func printVocabulary(w io.Writer, vocab *vocabulary.Vocabulary, out outputOptions) error {
	if !out.dump {
		fmt.Fprintln(w, vocab.Len())
		return nil
	}
	records := vocab.Records()
	if out.top > 0 && out.top < len(records) {
		records = records[:out.top]
	}
	switch out.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(records)
	default:
		fmt.Fprintf(w, "vocabulary size: %d\n", vocab.Len())
		for _, rec := range records {
			fmt.Fprintf(w, "%6d  %s", rec.Multiplicity, rec.Label)
			if nb := vocab.Neighbors(rec.Label, out.neighbors); len(nb) > 0 {
				parts := make([]string, 0, len(nb))
				for _, n := range nb {
					parts = append(parts, fmt.Sprintf("%s:%d", n.Label, n.Count))
				}
				fmt.Fprintf(w, "  [%s]", strings.Join(parts, " "))
			}
			fmt.Fprintln(w)
		}
		return nil
	}
}
