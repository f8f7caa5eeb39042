package cmd

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/retaildash/dashboard"
	"github.com/ellavondegurechaff/retaildash/dashboard/services"
	"github.com/ellavondegurechaff/retaildash/dashboard/views"
)

var (
	snapshotURL    string
	snapshotOut    string
	snapshotTop    int
	snapshotCohort string
	snapshotOffset int
)

var snapshotCMD = &cobra.Command{
	Use:   "snapshot <view>",
	Short: "render a view of a running server to PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dashboard.SetupLogger("RetailDash-Snapshot", dashboard.LogConfig{Level: "info"})

		v, err := views.Parse(args[0])
		if err != nil {
			return err
		}

		svc, err := services.NewSnapshotService(snapshotURL)
		if err != nil {
			return err
		}

		query := url.Values{}
		if snapshotTop > 0 {
			query.Set("top", strconv.Itoa(snapshotTop))
		}
		if snapshotCohort != "" {
			query.Set("cohort", snapshotCohort)
		}
		if snapshotOffset > 0 {
			query.Set("offset", strconv.Itoa(snapshotOffset))
		}

		png, err := svc.Capture(cmd.Context(), string(v), query)
		if err != nil {
			return err
		}

		out := snapshotOut
		if out == "" {
			out = string(v) + ".png"
		}
		if err := os.WriteFile(out, png, 0o644); err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		slog.Info("Snapshot written",
			slog.String("type", "sys"),
			slog.String("view", string(v)),
			slog.String("file", out),
			slog.Int("bytes", len(png)))
		return nil
	},
}

func init() {
	f := snapshotCMD.Flags()
	f.StringVar(&snapshotURL, "url", "http://localhost:8080", "base URL of a running dashboard")
	f.StringVarP(&snapshotOut, "out", "o", "", "output file, defaults to <view>.png")
	f.IntVar(&snapshotTop, "top", 0, "ranking length")
	f.StringVar(&snapshotCohort, "cohort", "", "highlight cohort, YYYY-MM")
	f.IntVar(&snapshotOffset, "offset", 0, "highlight month offset")
	rootCmd.AddCommand(snapshotCMD)
}
