package main

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store/driver"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/labelmine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/labelmine/pkg/metrics"
)

// app is the state shared by all subcommands once flags are parsed.
type app struct {
	configPath string
	driver     string
	uri        string
	logLevel   string
	timeout    time.Duration

	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "labelmine",
		Short: "Index LabelMe annotations and extract their label vocabulary",
		Long: `labelmine mirrors a directory tree of LabelMe XML annotation files into
a collection hierarchy of a document store, then queries the stored
annotations for object names and aggregates them into a vocabulary with
per-label multiplicities and co-occurrence counts.

Store backends: memory, sqlite, postgres, redis.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err, "%s", cmd.CommandPath())
	})

	flags := cmd.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&a.driver, "driver", "", "store driver (memory, sqlite, postgres, redis)")
	flags.StringVar(&a.uri, "uri", "", "store connection URI or sqlite file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.DurationVar(&a.timeout, "timeout", 0, "abort the command after this long (0 = no limit)")

	cmd.AddCommand(
		indexCmd(a),
		vocabCmd(a),
		runCmd(a),
		collectionsCmd(a),
	)
	return cmd
}

// setup loads configuration, applies flag overrides and installs logging.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err, "loading config")
	}
	if a.driver != "" {
		cfg.Store.Driver = a.driver
	}
	if a.uri != "" {
		cfg.Store.URI = a.uri
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)

	a.cfg = cfg
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	return nil
}

// context bounds ctx by --timeout and tags its log lines with a fresh run id.
func (a *app) context(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = logger.WithRunID(ctx, ulid.Make().String())
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	return driver.Open(ctx, a.cfg)
}

// serveMetrics starts the metrics server when enabled. The returned func
// stops it and is always safe to call.
func (a *app) serveMetrics(s store.Store) func(context.Context) error {
	if !a.cfg.Metrics.Enabled {
		return func(context.Context) error { return nil }
	}
	checker := health.NewChecker()
	checker.Register("store", health.PingCheck(s))
	return metrics.StartServer(a.cfg.Metrics.Port, a.registry, checker)
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalidInput, err, "%s", cmd.CommandPath())
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return apperrors.Wrap(apperrors.ErrInvalidInput, err, "%s", cmd.CommandPath())
		}
		return nil
	}
}
