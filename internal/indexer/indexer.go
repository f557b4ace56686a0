// Package indexer loads a directory tree of annotation files into the
// document store, mirroring every directory as a collection and every
// matching file as a resource.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/events"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/tracing"
)

// Notifier is told about every successful run. *events.Publisher implements
// it over Kafka.
type Notifier interface {
	IndexComplete(ctx context.Context, ev events.IndexComplete) error
}

// Summary describes one indexing run.
type Summary struct {
	Collection        string        `json:"collection"`
	SourceDir         string        `json:"source_dir"`
	Collections       int           `json:"collections"`
	Resources         int           `json:"resources"`
	SkippedFiles      int           `json:"skipped_files"`
	IgnoredFiles      int           `json:"ignored_files"`
	FailedResources   int           `json:"failed_resources"`
	FailedCollections int           `json:"failed_collections"`
	Duration          time.Duration `json:"duration"`
}

type Indexer struct {
	store    store.Store
	cfg      config.StoreConfig
	suffix   string
	metrics  *metrics.Metrics
	notifier Notifier
	logger   *slog.Logger
}

// New returns an Indexer writing below cfg.CollectionPath(). m and n may be
// nil.
func New(s store.Store, cfg config.StoreConfig, idx config.IndexerConfig, m *metrics.Metrics, n Notifier) *Indexer {
	return &Indexer{
		store:    s,
		cfg:      cfg,
		suffix:   idx.Suffix,
		metrics:  m,
		notifier: n,
		logger:   logger.WithComponent("indexer"),
	}
}

// IndexDataset indexes the directory tree at rootDir.
func (ix *Indexer) IndexDataset(ctx context.Context, rootDir string) (Summary, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return Summary{}, apperrors.Wrap(apperrors.ErrInvalidInput, err, "dataset directory %s", rootDir)
	}
	if !info.IsDir() {
		return Summary{}, apperrors.Newf(apperrors.ErrInvalidInput, "dataset path %s is not a directory", rootDir)
	}
	return ix.index(ctx, os.DirFS(rootDir), rootDir)
}

// IndexFS indexes the tree rooted at "." in fsys.
func (ix *Indexer) IndexFS(ctx context.Context, fsys fs.FS) (Summary, error) {
	return ix.index(ctx, fsys, ".")
}

func (ix *Indexer) index(ctx context.Context, fsys fs.FS, source string) (sum Summary, err error) {
	start := time.Now()
	target := ix.cfg.CollectionPath()
	sum = Summary{Collection: target, SourceDir: source}
	log := logger.WithCollection(ctx, "indexer", target)

	ctx, span := tracing.StartSpan(ctx, "index", "")
	defer func() {
		sum.Duration = time.Since(start)
		span.SetAttr("resources", sum.Resources)
		span.End()
		span.Log(log)
		ix.observe(sum, err)
	}()

	if err := ix.replace(ctx, target); err != nil {
		return sum, err
	}
	log.Info("indexing dataset", "source", source, "suffix", ix.suffix)

	if err := ix.walk(ctx, fsys, ".", target, &sum, log); err != nil {
		return sum, err
	}

	log.Info("indexing complete",
		"collections", sum.Collections,
		"resources", sum.Resources,
		"skipped_files", sum.SkippedFiles,
		"failed_resources", sum.FailedResources,
		"failed_collections", sum.FailedCollections,
		"duration", time.Since(start),
	)
	ix.notify(ctx, sum, log)
	return sum, nil
}

// replace drops the target collection if present and creates it afresh.
// Every failure here is fatal.
func (ix *Indexer) replace(ctx context.Context, target string) error {
	ctx, span := tracing.StartChildSpan(ctx, "replace")
	defer span.End()

	_, exists, err := ix.store.GetCollection(ctx, target)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCollectionResolution, err, "resolving %s", target)
	}
	if exists {
		if err := ix.store.RemoveCollection(ctx, target); err != nil {
			return apperrors.Wrap(apperrors.ErrCollectionResolution, err, "removing %s", target)
		}
		span.SetAttr("replaced", true)
	}
	if _, err := ix.store.CreateCollection(ctx, ix.cfg.RootCollection, ix.cfg.Collection); err != nil {
		return apperrors.Wrap(apperrors.ErrCollectionResolution, err, "creating %s", target)
	}
	return nil
}

// walk mirrors dir of fsys into collection. Only fatal errors are returned;
// everything else is logged and counted in sum.
func (ix *Indexer) walk(ctx context.Context, fsys fs.FS, dir, collection string, sum *Summary, log *slog.Logger) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if dir == "." {
			return apperrors.Wrap(apperrors.ErrUnreadableFile, err, "reading dataset root")
		}
		log.Warn("skipping unreadable directory", "dir", dir, "error", err)
		sum.FailedCollections++
		return nil
	}
	log.Debug("storing directory", "dir", dir, "entries", len(entries))

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		rel := path.Join(dir, name)

		if entry.IsDir() {
			child, err := ix.store.CreateCollection(ctx, collection, name)
			if err != nil {
				if ctx.Err() != nil || apperrors.IsFatal(err) {
					return fmt.Errorf("creating collection for %s: %w", rel, err)
				}
				log.Error("collection creation failed, skipping branch", "dir", rel, "error", err)
				sum.FailedCollections++
				continue
			}
			sum.Collections++
			if ix.metrics != nil {
				ix.metrics.CollectionsCreatedTotal.Inc()
			}
			if err := ix.walk(ctx, fsys, rel, child.Path, sum, log); err != nil {
				return err
			}
			continue
		}

		if !strings.HasSuffix(name, ix.suffix) {
			sum.IgnoredFiles++
			ix.skipped("suffix")
			continue
		}
		ix.storeFile(ctx, fsys, rel, collection, sum, log)
	}
	return nil
}

func (ix *Indexer) storeFile(ctx context.Context, fsys fs.FS, rel, collection string, sum *Summary, log *slog.Logger) {
	content, err := fs.ReadFile(fsys, rel)
	if err != nil {
		err = apperrors.Wrap(apperrors.ErrUnreadableFile, err, "%s", rel)
		log.Warn("cannot read file", "file", rel, "error", err)
		sum.SkippedFiles++
		ix.skipped("unreadable")
		return
	}
	res, err := ix.store.CreateResource(ctx, collection, content)
	if err != nil {
		log.Error("storing resource failed", "file", rel, "error", err)
		sum.FailedResources++
		ix.skipped("write_failed")
		return
	}
	sum.Resources++
	if ix.metrics != nil {
		ix.metrics.ResourcesStoredTotal.Inc()
	}
	log.Debug("resource stored", "file", rel, "resource", res.Name, "size", res.Size)
}

func (ix *Indexer) skipped(reason string) {
	if ix.metrics != nil {
		ix.metrics.FilesSkippedTotal.WithLabelValues(reason).Inc()
	}
}

func (ix *Indexer) observe(sum Summary, err error) {
	if ix.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	ix.metrics.StageRunsTotal.WithLabelValues("index", status).Inc()
	ix.metrics.StageDuration.WithLabelValues("index").Observe(sum.Duration.Seconds())
}

func (ix *Indexer) notify(ctx context.Context, sum Summary, log *slog.Logger) {
	if ix.notifier == nil {
		return
	}
	ev := events.IndexComplete{
		Collection:  sum.Collection,
		SourceDir:   sum.SourceDir,
		Collections: sum.Collections,
		Resources:   sum.Resources,
		Skipped:     sum.SkippedFiles + sum.FailedResources,
		CompletedAt: time.Now().UTC(),
	}
	if err := ix.notifier.IndexComplete(ctx, ev); err != nil {
		log.Warn("publishing index completion failed", "error", err)
	}
}
