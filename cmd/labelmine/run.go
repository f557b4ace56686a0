package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/extractor"
)

func runCmd(a *app) *cobra.Command {
	var out outputOptions
	cmd := &cobra.Command{
		Use:   "run <dir>",
		Short: "Index dir and extract its vocabulary in one process",
		Long: `run performs index followed by vocab against the same store handle. It is
the only way to use the memory driver end to end.`,
		Args: exactArgs(1),
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
			defer a.serveMetrics(s)(context.Background())

			ex, err := extractor.New(s, a.cfg.Extractor, a.metrics)
			if err != nil {
				return err
			}
			sum, err := a.index(ctx, s, args[0])
			if err != nil {
				return err
			}
			printSummary(cmd.ErrOrStderr(), sum)

			vocab, err := ex.Extract(ctx, sum.Collection)
			if err != nil {
				return err
			}
			return printVocabulary(cmd.OutOrStdout(), vocab, out)
		},
	}
	out.register(cmd)
	return cmd
}
