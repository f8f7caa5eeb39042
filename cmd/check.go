package cmd

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"
)

var checkCMD = &cobra.Command{
	Use:   "check",
	Short: "load every input and validate the retention matrix",
	Long: "Loads all six inputs and builds the cohort matrix. Exits 2 when a file " +
		"cannot be loaded and 3 when the retention data is inconsistent.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := setup(ctx, "RetailDash-Check")
		if err != nil {
			return err
		}
		defer app.Close()

		out := cmd.OutOrStdout()
		missing, err := app.Loader.Missing(ctx)
		if err != nil {
			return err
		}
		for _, name := range missing {
			fmt.Fprintf(out, "%-20s missing from %s\n", name, app.Source)
		}

		if err := loadData(ctx, app); err != nil {
			return err
		}
		ds, _, err := app.Store.Dataset()
		if err != nil {
			return err
		}
		mx, err := app.Store.Matrix()
		if err != nil {
			return err
		}

		summary := ds.Summary()
		names := make([]string, 0, len(summary))
		for name := range summary {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "%-20s %d rows\n", name, summary[name])
		}
		fmt.Fprintf(out, "%-20s %d cohorts, offsets 0..%d, %d skipped\n", "retention", len(mx.Cohorts), mx.MaxOffset, mx.Skipped)

		if unmapped := app.Loader.Taxonomy().Unmapped(ds.Losses); len(unmapped) > 0 {
			slog.Warn("Loss descriptions fell through to the fallback category",
				slog.String("type", "data"),
				slog.Int("descriptions", len(unmapped)),
				slog.String("fallback", app.Loader.Taxonomy().Fallback()))
		}
		fmt.Fprintln(out, "ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCMD)
}
