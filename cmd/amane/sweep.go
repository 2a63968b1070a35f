package main

import (
	"fmt"

	"github.com/agenthands/amane/pkg/accessor"
	"github.com/agenthands/amane/pkg/sweep"
	"github.com/spf13/cobra"
)

func newSweepCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Report objects whose payload and sidecar disagree",
		Long: `sweep scans the data directory once and reports sidecars without a payload,
payloads without a sidecar and sidecars that do not decode. With
--remove-orphans it deletes the sidecars whose payload is gone.

Run it while no server writes to the same directory: locks are per process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			acc, err := accessor.NewDir(a.cfg.Dir)
			if err != nil {
				return err
			}
			res, err := sweep.NewRunner(a.cfg.Sweep, acc, sweep.WithLogger(a.log)).RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "scanned:         %d\n", res.Scanned)
			fmt.Fprintf(out, "orphan sidecars: %d\n", len(res.OrphanSidecars))
			fmt.Fprintf(out, "orphan payloads: %d\n", len(res.OrphanPayloads))
			fmt.Fprintf(out, "corrupt:         %d\n", len(res.Corrupt))
			fmt.Fprintf(out, "foreign:         %d\n", len(res.Foreign))
			fmt.Fprintf(out, "removed:         %d\n", res.Removed)
			for _, id := range res.OrphanPayloads {
				fmt.Fprintf(out, "orphan payload %s\n", id)
			}
			for _, id := range res.Corrupt {
				fmt.Fprintf(out, "corrupt sidecar %s\n", id)
			}
			return nil
		},
	}
}
