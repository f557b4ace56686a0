package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/labelmine/internal/store"
)

func collectionsCmd(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "collections [path]",
		Short: "List child collections and their resource counts",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd.Context())
			defer cancel()

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			p := a.cfg.Store.CollectionPath()
			if len(args) == 1 {
				p = args[0]
			}
			return listTree(ctx, s, store.Clean(p), recursive, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into child collections")
	return cmd
}

// listTree prints p and its children as "path<TAB>resource count" lines.
func listTree(ctx context.Context, s store.Store, p string, recursive bool, w io.Writer) error {
	resources, err := s.ListResources(ctx, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\t%d\n", p, len(resources))
	children, err := s.ListCollections(ctx, p)
	if err != nil {
		return err
	}
	for _, c := range children {
		if recursive {
			if err := listTree(ctx, s, c.Path, true, w); err != nil {
				return err
			}
			continue
		}
		res, err := s.ListResources(ctx, c.Path)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\n", c.Path, len(res))
	}
	return nil
}
