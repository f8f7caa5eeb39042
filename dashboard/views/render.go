package views

import (
	"fmt"
	"strconv"

	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/dashboard/utils"
	"github.com/ellavondegurechaff/retaildash/internal/domain/analytics"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

// Source is the data context a page is rendered from.
type Source interface {
	Dataset() *loader.Dataset
	Matrix() (*cohort.Matrix, error)
}

type Renderer struct {
	defaults Params
}

// NewRenderer uses defaults for the cohort highlight when a request does
// not name one.
func NewRenderer(defaults Params) *Renderer {
	d := DefaultParams()
	if defaults.Cohort == 0 {
		defaults.Cohort = d.Cohort
	}
	if defaults.Offset == nil || *defaults.Offset < 0 {
		defaults.Offset = d.Offset
	} else {
		defaults.Offset = OffsetOf(*defaults.Offset)
	}
	return &Renderer{defaults: defaults}
}

// Normalize fills unset params and drops the ones a view ignores, so
// equivalent requests share one cache key.
func (r *Renderer) Normalize(v View, p Params) Params {
	if p.Top > maxTop {
		p.Top = maxTop
	}
	if p.Top <= 0 {
		p.Top = defaultTop[v]
	}
	if v != Retention {
		p.Cohort, p.Offset = 0, nil
	} else {
		if p.Cohort == 0 {
			p.Cohort = r.defaults.Cohort
		}
		if p.Offset == nil {
			p.Offset = OffsetOf(*r.defaults.Offset)
		} else {
			p.Offset = OffsetOf(*p.Offset)
		}
	}
	if v == Segments || v == Retention {
		p.Top = 0
	}
	return p
}

// Render builds the page for v. Params are normalized first.
func (r *Renderer) Render(v View, src Source, p Params) (*Page, error) {
	ds := src.Dataset()
	p = r.Normalize(v, p)

	page := &Page{
		View:   v,
		Title:  v.Title(),
		Header: headerMetrics(analytics.ComputeKPIs(ds.Transactions)),
	}

	switch v {
	case Overview:
		overview(page, ds, p)
	case Segments:
		segments(page, ds)
	case Retention:
		mx, err := src.Matrix()
		if err != nil {
			return nil, err
		}
		retention(page, mx, p)
	case Returns:
		returns(page, ds, p)
	case Countries:
		countries(page, ds, p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, v)
	}
	return page, nil
}

func headerMetrics(k analytics.KPIs) []Metric {
	return []Metric{
		{Label: "💰 Loyalty Revenue", Value: utils.FormatMoney(k.Revenue, 0)},
		{Label: "📦 Total Orders", Value: utils.FormatNumber(int64(k.Orders))},
		{Label: "👤 Active Customers", Value: utils.FormatNumber(int64(k.Customers))},
		{
			Label: "🛒 Median AOV",
			Value: utils.FormatMoney(k.MedianAOV, 2),
			Help:  fmt.Sprintf("Median order value. Mean %s skewed by wholesale.", utils.FormatMoney(k.MeanAOV, 2)),
		},
		{
			Label: "📏 Avg Items / Order",
			Value: utils.FormatDecimal(k.AvgItemsPerOrder, 1),
			Help:  "Avg units per invoice, distinct from AOV.",
		},
	}
}

func hbar(x, y any, colorscale string) Trace {
	return Trace{
		"type":        "bar",
		"orientation": "h",
		"x":           x,
		"y":           y,
		"marker":      map[string]any{"color": x, "colorscale": colorscale},
	}
}

func withText(t Trace, text any) Trace {
	t["text"] = text
	t["textposition"] = "outside"
	t["textfont"] = map[string]any{"color": "#ffffff"}
	return t
}

func overview(page *Page, ds *loader.Dataset, p Params) {
	monthly := analytics.MonthlyRevenue(ds.Transactions)
	months := make([]string, len(monthly))
	monthRev := make([]float64, len(monthly))
	for i, m := range monthly {
		months[i] = m.Month.String()
		monthRev[i] = utils.Round(m.Revenue, 2)
	}
	revLayout := themedLayout("Monthly Revenue — Loyalty Customers", "")
	if pm, ok := analytics.LatestPartialMonth(ds.Transactions); ok {
		revLayout["annotations"] = []map[string]any{{
			"x":           pm.Month.String(),
			"y":           utils.Round(pm.Revenue, 2),
			"text":        PartialMonthLabel(pm),
			"showarrow":   true,
			"arrowhead":   2,
			"ax":          50,
			"ay":          -40,
			"bgcolor":     annotationBg,
			"bordercolor": annotationBorder,
			"font":        map[string]any{"color": "#ffffff"},
		}}
	}
	page.Charts = append(page.Charts, Chart{
		ID: "monthly-revenue",
		Data: []Trace{{
			"type":      "scatter",
			"mode":      "lines",
			"x":         months,
			"y":         monthRev,
			"line":      map[string]any{"color": revenueLineColor, "width": 2.5},
			"fill":      "tozeroy",
			"fillcolor": revenueFillColor,
		}},
		Layout: revLayout,
	})

	top := analytics.TopProducts(ds.TopProducts, p.Top)
	names := make([]string, len(top))
	revenue := make([]float64, len(top))
	for i, t := range top {
		names[i] = t.Description
		revenue[i] = utils.Round(t.Revenue, 2)
	}
	page.Charts = append(page.Charts, Chart{
		ID:     "top-products",
		Data:   []Trace{hbar(revenue, names, "Blues")},
		Layout: themedLayout(fmt.Sprintf("Top %d Products by Revenue", p.Top), "total ascending"),
	})

	yearly := analytics.YearlyRevenue(ds.Transactions)
	years := make([]string, len(yearly))
	yearRev := make([]float64, len(yearly))
	for i, y := range yearly {
		years[i] = strconv.Itoa(y.Year)
		yearRev[i] = utils.Round(y.Revenue, 2)
	}
	page.Charts = append(page.Charts, Chart{
		ID: "yearly-revenue",
		Data: []Trace{{
			"type":   "bar",
			"x":      years,
			"y":      yearRev,
			"marker": map[string]any{"color": yearlyBarColor},
		}},
		Layout: themedLayout("Revenue by Year", ""),
	})

	k := analytics.ComputeKPIs(ds.Transactions)
	page.Notes = append(page.Notes, Note{
		Kind: Insight,
		Text: fmt.Sprintf("ℹ️ <b>Basket Size vs AOV:</b> Median AOV = <b>%s</b>. Mean AOV = %s, inflated by wholesale bulk orders. "+
			"Avg items/order: <b>%s units</b>. These are distinct metrics.",
			utils.FormatMoney(k.MedianAOV, 2), utils.FormatMoney(k.MeanAOV, 2), utils.FormatDecimal(k.AvgItemsPerOrder, 1)),
	})
}

// PartialMonthLabel annotates a month whose data ends early.
func PartialMonthLabel(pm analytics.PartialMonth) string {
	return fmt.Sprintf("⚠ Partial (ends %s)", pm.EndsOn.Format("Jan 2"))
}

func segments(page *Page, ds *loader.Dataset) {
	counts := analytics.SegmentCounts(ds.RFM)
	n := len(counts)
	names := make([]string, n)
	values := make([]int, n)
	colors := make([]string, n)
	// smallest first so the largest bar sits on top
	for i, c := range counts {
		j := n - 1 - i
		names[j] = c.Segment
		values[j] = c.Customers
		colors[j] = SegmentColor(c.Segment)
	}
	trace := withText(Trace{
		"type":        "bar",
		"orientation": "h",
		"x":           values,
		"y":           names,
		"marker":      map[string]any{"color": colors},
	}, values)
	layout := themedLayout("Customer Count by Segment", "total ascending")
	layout["showlegend"] = false

	page.Charts = append(page.Charts, Chart{ID: "segment-counts", Data: []Trace{trace}, Layout: layout})
	page.Tables = append(page.Tables, TableBlock{
		Title:   "📋 Segment Definitions & Thresholds",
		Columns: ds.SegmentDefinitions.Columns,
		Rows:    ds.SegmentDefinitions.Rows,
	})
}

func retention(page *Page, mx *cohort.Matrix, p Params) {
	offset := p.MonthOffset()
	at := utils.NotAvailable
	if v, ok := mx.At(p.Cohort, offset); ok {
		at = utils.FormatPercent(v, 1)
	}
	mean := utils.NotAvailable
	if v, ok := mx.MeanAt(offset); ok {
		mean = utils.FormatPercent(v, 1)
	}
	page.Metrics = []Metric{
		{
			Label: fmt.Sprintf("%s Cohort — Month %d Retention", p.Cohort.Time().Format("Jan-2006"), offset),
			Value: at,
		},
		{
			Label: fmt.Sprintf("Avg %d-Month Retention (All Cohorts)", offset),
			Value: mean,
			Help:  "Cohorts with no observations at this offset are left out of the average.",
		},
	}
	page.Notes = append(page.Notes, Note{
		Kind: Finding,
		Text: "📌 <b>Finding:</b> Dec-2010 cohort drop reflects seasonal gift-buyers. Mid-2011 cohorts show stronger retention. " +
			"Retention stabilises ~35% after Month 1. <b>Action:</b> reactivation campaigns at Month 1–2 window.",
	})

	col := mx.Column(offset)
	cohorts := make([]string, len(col))
	pct := make([]float64, len(col))
	for i, pt := range col {
		cohorts[i] = pt.Cohort.String()
		pct[i] = utils.Round(pt.Value*100, 1)
	}
	bar := withText(Trace{
		"type":          "bar",
		"x":             cohorts,
		"y":             pct,
		"marker":        map[string]any{"color": pct, "colorscale": "Blues"},
		"texttemplate":  "%{text}%",
		"hovertemplate": "Cohort %{x}<br>Retention %{y}%<extra></extra>",
	}, pct)
	barLayout := themedLayout(fmt.Sprintf("%d-Month Retention Rate by Cohort (%%)", offset), "")
	barLayout["xaxis"].(map[string]any)["tickangle"] = 45
	barLayout["xaxis"].(map[string]any)["title"] = map[string]any{"text": "Cohort"}
	barLayout["yaxis"].(map[string]any)["title"] = map[string]any{"text": "Retention %"}
	page.Charts = append(page.Charts, Chart{ID: "retention-offset", Data: []Trace{bar}, Layout: barLayout})

	rows := make([]string, len(mx.Cohorts))
	z := make([][]float64, len(mx.Cohorts))
	for i, c := range mx.Cohorts {
		rows[i] = c.String()
		z[i] = make([]float64, len(mx.Retention[i]))
		for k, v := range mx.Retention[i] {
			z[i][k] = utils.Round(v*100, 1)
		}
	}
	heatLayout := themedLayout("Retention Matrix (% of cohort active)", "")
	heatLayout["yaxis"].(map[string]any)["autorange"] = "reversed"
	heatLayout["xaxis"].(map[string]any)["title"] = map[string]any{"text": "Months since first purchase"}
	page.Charts = append(page.Charts, Chart{
		ID: "retention-matrix",
		Data: []Trace{{
			"type":       "heatmap",
			"x":          mx.Offsets(),
			"y":          rows,
			"z":          z,
			"colorscale": "Blues",
			"zmin":       0,
			"zmax":       100,
		}},
		Layout: heatLayout,
	})
}

const (
	returnsTab = "🔴 Customer Returns — Product Quality Signal"
	lossesTab  = "🟡 Operational Losses — Warehouse Write-offs"
)

func returns(page *Page, ds *loader.Dataset, p Params) {
	page.Notes = append(page.Notes, Note{
		Kind: Insight,
		Text: "ℹ️ Returns are split into two distinct categories. Mixing them produces misleading product-quality signals.",
	})
	page.Tabs = []string{returnsTab, lossesTab}

	top := analytics.TopReturns(ds.Returns, p.Top)
	names := make([]string, len(top))
	counts := make([]int, len(top))
	for i, r := range top {
		names[i] = r.Description
		counts[i] = r.Returns
	}
	crLayout := themedLayout(fmt.Sprintf("Top %d Customer Returns (Product Quality Signal)", p.Top), "total ascending")
	crLayout["showlegend"] = false
	page.Charts = append(page.Charts, Chart{
		ID:     "top-returns",
		Tab:    returnsTab,
		Data:   []Trace{withText(hbar(counts, names, "Reds"), counts)},
		Layout: crLayout,
	})

	losses := analytics.LossesByCategory(ds.Losses)
	cats := make([]string, len(losses))
	units := make([]int64, len(losses))
	for i, l := range losses {
		cats[i] = l.Category
		units[i] = l.UnitsLost
	}
	olLayout := themedLayout("Operational Losses by Root Cause Category", "total ascending")
	olLayout["showlegend"] = false
	page.Charts = append(page.Charts, Chart{
		ID:     "loss-categories",
		Tab:    lossesTab,
		Data:   []Trace{withText(hbar(units, cats, "Oranges"), units)},
		Layout: olLayout,
	})
}

func countries(page *Page, ds *loader.Dataset, p Params) {
	stats := analytics.CountryPerformance(ds.Transactions)

	top := stats
	if len(top) > p.Top {
		top = top[:p.Top]
	}
	names := make([]string, len(top))
	revenue := make([]float64, len(top))
	for i, s := range top {
		names[i] = s.Country
		revenue[i] = utils.Round(s.Revenue, 2)
	}
	page.Charts = append(page.Charts, Chart{
		ID:     "country-revenue",
		Data:   []Trace{hbar(revenue, names, "Blues")},
		Layout: themedLayout(fmt.Sprintf("Top %d Countries by Revenue", p.Top), "total ascending"),
	})

	all := make([]string, len(stats))
	allRev := make([]float64, len(stats))
	rows := make([][]string, len(stats))
	for i, s := range stats {
		all[i] = s.Country
		allRev[i] = utils.Round(s.Revenue, 2)
		rows[i] = []string{
			s.Country,
			utils.FormatMoney(s.Revenue, 2),
			utils.FormatNumber(int64(s.Orders)),
			utils.FormatNumber(int64(s.Customers)),
			utils.FormatMoney(s.AOV, 2),
		}
	}
	mapLayout := themedLayout("Revenue by Country", "")
	mapLayout["geo"] = map[string]any{
		"bgcolor":        "rgba(0,0,0,0)",
		"showframe":      false,
		"showcoastlines": false,
	}
	page.Charts = append(page.Charts, Chart{
		ID: "country-map",
		Data: []Trace{{
			"type":         "choropleth",
			"locations":    all,
			"locationmode": "country names",
			"z":            allRev,
			"colorscale":   "Blues",
		}},
		Layout: mapLayout,
	})
	page.Tables = append(page.Tables, TableBlock{
		Title:   "Country Performance",
		Columns: []string{"Country", "Revenue", "Orders", "Customers", "AOV"},
		Rows:    rows,
	})
}
