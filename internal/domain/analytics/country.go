package analytics

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
)

type CountryStats struct {
	Country   string  `json:"country"`
	Revenue   float64 `json:"revenue"`
	Orders    int     `json:"orders"`
	Customers int     `json:"customers"`
	AOV       float64 `json:"aov"`
}

type countryAcc struct {
	revenue   decimal.Decimal
	orders    map[string]struct{}
	customers map[string]struct{}
}

// CountryPerformance aggregates revenue, distinct orders and distinct
// customers per country, highest revenue first. AOV is rounded to pence.
// Lines without a country are left out.
func CountryPerformance(txs []loader.Transaction) []CountryStats {
	accs := make(map[string]*countryAcc)
	for _, tx := range txs {
		if strings.TrimSpace(tx.Country) == "" {
			continue
		}
		a, ok := accs[tx.Country]
		if !ok {
			a = &countryAcc{orders: map[string]struct{}{}, customers: map[string]struct{}{}}
			accs[tx.Country] = a
		}
		a.revenue = a.revenue.Add(decimal.NewFromFloat(tx.Revenue))
		if tx.Invoice != "" {
			a.orders[tx.Invoice] = struct{}{}
		}
		if tx.CustomerID != "" {
			a.customers[tx.CustomerID] = struct{}{}
		}
	}

	out := make([]CountryStats, 0, len(accs))
	for country, a := range accs {
		s := CountryStats{
			Country:   country,
			Revenue:   a.revenue.InexactFloat64(),
			Orders:    len(a.orders),
			Customers: len(a.customers),
		}
		if s.Orders > 0 {
			s.AOV = a.revenue.Div(decimal.NewFromInt(int64(s.Orders))).Round(2).InexactFloat64()
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Country < out[j].Country
	})
	return out
}
