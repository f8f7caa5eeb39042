package analytics

import (
	"sort"
	"strings"

	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
)

func limit[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// TopProducts ranks the precomputed product table by revenue. n <= 0 keeps
// every row.
func TopProducts(products []loader.TopProduct, n int) []loader.TopProduct {
	out := make([]loader.TopProduct, len(products))
	copy(out, products)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Description < out[j].Description
	})
	return limit(out, n)
}

type SegmentCount struct {
	Segment   string `json:"segment"`
	Customers int    `json:"customers"`
}

// SegmentCounts counts customers per RFM segment, largest first. Rows with
// no segment are not counted.
func SegmentCounts(rfm []loader.RFMRecord) []SegmentCount {
	counts := make(map[string]int)
	for _, r := range rfm {
		if r.Segment == "" {
			continue
		}
		counts[r.Segment]++
	}
	out := make([]SegmentCount, 0, len(counts))
	for s, n := range counts {
		out = append(out, SegmentCount{Segment: s, Customers: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Customers != out[j].Customers {
			return out[i].Customers > out[j].Customers
		}
		return out[i].Segment < out[j].Segment
	})
	return out
}

type ReturnCount struct {
	Description string `json:"description"`
	Returns     int    `json:"returns"`
}

// TopReturns counts return lines per product description. Lines with a
// blank quantity or description are not counted.
func TopReturns(returns []loader.ReturnRecord, n int) []ReturnCount {
	counts := make(map[string]int)
	for _, r := range returns {
		if !r.HasQuantity || strings.TrimSpace(r.Description) == "" {
			continue
		}
		counts[r.Description]++
	}
	out := make([]ReturnCount, 0, len(counts))
	for d, c := range counts {
		out = append(out, ReturnCount{Description: d, Returns: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Returns != out[j].Returns {
			return out[i].Returns > out[j].Returns
		}
		return out[i].Description < out[j].Description
	})
	return limit(out, n)
}

type CategoryLoss struct {
	Category  string `json:"category"`
	UnitsLost int64  `json:"units_lost"`
}

// LossesByCategory sums write-off quantities per category and reports the
// magnitude of each sum.
func LossesByCategory(losses []loader.LossRecord) []CategoryLoss {
	sums := make(map[string]int64)
	for _, l := range losses {
		sums[l.Category] += l.Quantity
	}
	out := make([]CategoryLoss, 0, len(sums))
	for c, q := range sums {
		if q < 0 {
			q = -q
		}
		out = append(out, CategoryLoss{Category: c, UnitsLost: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UnitsLost != out[j].UnitsLost {
			return out[i].UnitsLost > out[j].UnitsLost
		}
		return out[i].Category < out[j].Category
	})
	return out
}
