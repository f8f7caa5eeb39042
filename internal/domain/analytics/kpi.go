package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
)

// KPIs is the header row shown above every view.
type KPIs struct {
	Revenue          float64 `json:"revenue"`
	Orders           int     `json:"orders"`
	Customers        int     `json:"customers"`
	MedianAOV        float64 `json:"median_aov"`
	MeanAOV          float64 `json:"mean_aov"`
	AvgItemsPerOrder float64 `json:"avg_items_per_order"`
}

type invoiceTotal struct {
	revenue decimal.Decimal
	items   int64
}

// ComputeKPIs derives order value statistics from per-invoice totals, so a
// many-line order counts once.
func ComputeKPIs(txs []loader.Transaction) KPIs {
	var total decimal.Decimal
	invoices := make(map[string]*invoiceTotal)
	customers := make(map[string]struct{})

	for _, tx := range txs {
		rev := decimal.NewFromFloat(tx.Revenue)
		total = total.Add(rev)
		if tx.CustomerID != "" {
			customers[tx.CustomerID] = struct{}{}
		}
		if tx.Invoice == "" {
			continue
		}
		it, ok := invoices[tx.Invoice]
		if !ok {
			it = &invoiceTotal{}
			invoices[tx.Invoice] = it
		}
		it.revenue = it.revenue.Add(rev)
		it.items += tx.Quantity
	}

	k := KPIs{
		Revenue:   total.InexactFloat64(),
		Orders:    len(invoices),
		Customers: len(customers),
	}
	if len(invoices) == 0 {
		return k
	}

	values := make([]decimal.Decimal, 0, len(invoices))
	var orderSum decimal.Decimal
	var items int64
	for _, it := range invoices {
		values = append(values, it.revenue)
		orderSum = orderSum.Add(it.revenue)
		items += it.items
	}
	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })

	n := int64(len(values))
	k.MeanAOV = orderSum.Div(decimal.NewFromInt(n)).InexactFloat64()
	k.MedianAOV = median(values).InexactFloat64()
	k.AvgItemsPerOrder = float64(items) / float64(n)
	return k
}

func median(sorted []decimal.Decimal) decimal.Decimal {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}
