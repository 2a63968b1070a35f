package main

import (
	"fmt"

	"github.com/agenthands/amane/pkg/accessor"
	"github.com/agenthands/amane/pkg/bucket"
	"github.com/agenthands/amane/pkg/catalog"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReindexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the listing index from the sidecars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acc, err := accessor.NewDir(a.cfg.Dir)
			if err != nil {
				return err
			}
			cat, err := catalog.Open(a.cfg.IndexDir())
			if err != nil {
				return err
			}
			defer cat.Close()

			res, err := bucket.Rebuild(cmd.Context(), acc, cat)
			if err != nil {
				return err
			}
			a.log.Info("index rebuilt",
				zap.String("index", a.cfg.IndexDir()),
				zap.Int("indexed", res.Indexed),
				zap.Int("skipped", res.Skipped))
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d objects into %s (%d skipped)\n", res.Indexed, a.cfg.IndexDir(), res.Skipped)
			return nil
		},
	}
}
