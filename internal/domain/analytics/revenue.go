package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

type MonthRevenue struct {
	Month   cohort.Month `json:"month"`
	Revenue float64      `json:"revenue"`
}

type YearRevenue struct {
	Year    int     `json:"year"`
	Revenue float64 `json:"revenue"`
}

// MonthlyRevenue sums revenue per calendar month in ascending order.
// Undated rows are left out.
func MonthlyRevenue(txs []loader.Transaction) []MonthRevenue {
	sums := make(map[cohort.Month]decimal.Decimal)
	for _, tx := range txs {
		if tx.InvoiceDate.IsZero() {
			continue
		}
		sums[tx.InvoiceMonth] = sums[tx.InvoiceMonth].Add(decimal.NewFromFloat(tx.Revenue))
	}
	out := make([]MonthRevenue, 0, len(sums))
	for m, v := range sums {
		out = append(out, MonthRevenue{Month: m, Revenue: v.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func YearlyRevenue(txs []loader.Transaction) []YearRevenue {
	sums := make(map[int]decimal.Decimal)
	for _, tx := range txs {
		if tx.InvoiceDate.IsZero() {
			continue
		}
		sums[tx.InvoiceYear] = sums[tx.InvoiceYear].Add(decimal.NewFromFloat(tx.Revenue))
	}
	out := make([]YearRevenue, 0, len(sums))
	for y, v := range sums {
		out = append(out, YearRevenue{Year: y, Revenue: v.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// PartialMonth describes a trailing month whose data stops before the
// month's last day.
type PartialMonth struct {
	Month   cohort.Month `json:"month"`
	EndsOn  time.Time    `json:"ends_on"`
	Revenue float64      `json:"revenue"`
}

// LatestPartialMonth reports the last month of data when it is incomplete.
func LatestPartialMonth(txs []loader.Transaction) (PartialMonth, bool) {
	var last time.Time
	for _, tx := range txs {
		if tx.InvoiceDate.After(last) {
			last = tx.InvoiceDate
		}
	}
	if last.IsZero() {
		return PartialMonth{}, false
	}

	m := cohort.MonthOf(last)
	if last.Day() >= m.LastDay() {
		return PartialMonth{}, false
	}

	var rev decimal.Decimal
	for _, tx := range txs {
		if !tx.InvoiceDate.IsZero() && tx.InvoiceMonth == m {
			rev = rev.Add(decimal.NewFromFloat(tx.Revenue))
		}
	}
	return PartialMonth{Month: m, EndsOn: last, Revenue: rev.InexactFloat64()}, true
}
