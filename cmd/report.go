package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ellavondegurechaff/retaildash/dashboard/utils"
	"github.com/ellavondegurechaff/retaildash/internal/domain/analytics"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

var (
	reportMaxOffset int
	reportCSV       bool
)

var reportCMD = &cobra.Command{
	Use:   "report",
	Short: "print the cohort retention matrix",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := setup(ctx, "RetailDash-Report")
		if err != nil {
			return err
		}
		defer app.Close()

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

		bar := progressbar.NewOptions(len(mx.Cohorts),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("cohorts"),
			progressbar.OptionClearOnFinish(),
		)
		rows := matrixRows(mx, reportMaxOffset, func() { _ = bar.Add(1) })
		_ = bar.Finish()

		out := cmd.OutOrStdout()
		if reportCSV {
			return writeCSV(out, rows)
		}

		k := analytics.ComputeKPIs(ds.Transactions)
		fmt.Fprintf(out, "Revenue %s  Orders %s  Customers %s  Median AOV %s\n\n",
			utils.FormatMoney(k.Revenue, 0),
			utils.FormatNumber(int64(k.Orders)),
			utils.FormatNumber(int64(k.Customers)),
			utils.FormatMoney(k.MedianAOV, 2))
		if err := writeTable(out, rows); err != nil {
			return err
		}
		if mx.Skipped > 0 {
			slog.Warn("Transactions without a customer or date were skipped",
				slog.String("type", "data"),
				slog.Int("skipped", mx.Skipped))
		}
		return nil
	},
}

func init() {
	reportCMD.Flags().IntVar(&reportMaxOffset, "max-offset", -1, "last month offset to print, -1 for all")
	reportCMD.Flags().BoolVar(&reportCSV, "csv", false, "write CSV instead of a table")
	rootCmd.AddCommand(reportCMD)
}

// matrixRows lays the matrix out as text: a header, one row per cohort and a
// closing row of non-zero column means. step is called once per cohort.
func matrixRows(mx *cohort.Matrix, maxOffset int, step func()) [][]string {
	last := mx.MaxOffset
	if maxOffset >= 0 && maxOffset < last {
		last = maxOffset
	}

	header := []string{"Cohort", "Customers"}
	for k := 0; k <= last; k++ {
		header = append(header, "M"+strconv.Itoa(k))
	}
	rows := [][]string{header}

	for i, c := range mx.Cohorts {
		row := []string{c.String(), strconv.Itoa(mx.Size(c))}
		for k := 0; k <= last; k++ {
			row = append(row, utils.FormatPercent(mx.Retention[i][k], 1))
		}
		rows = append(rows, row)
		if step != nil {
			step()
		}
	}

	mean := []string{"Mean", ""}
	for k := 0; k <= last; k++ {
		v, ok := mx.MeanAt(k)
		if !ok {
			mean = append(mean, "N/A")
			continue
		}
		mean = append(mean, utils.FormatPercent(v, 1))
	}
	return append(rows, mean)
}

func writeTable(w io.Writer, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, row := range rows {
		for _, cell := range row {
			fmt.Fprint(tw, cell, "\t")
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}
