package views

// Dark dashboard palette shared by every chart.
var (
	ChartTheme = map[string]any{
		"paper_bgcolor": "rgba(0,0,0,0)",
		"plot_bgcolor":  "rgba(45,55,72,0.4)",
		"font":          map[string]any{"color": "#ffffff"},
		"legend":        map[string]any{"font": map[string]any{"color": "#ffffff"}},
	}

	AxisStyle = map[string]any{
		"gridcolor": "#2d3748",
		"linecolor": "#4a5568",
		"tickcolor": "#e2e8f0",
		"tickfont":  map[string]any{"color": "#ffffff"},
	}

	// SegmentColors is fixed per RFM segment so colours stay stable across
	// reloads. Segments not listed fall back to OtherSegmentColor.
	SegmentColors = map[string]string{
		"Champions":           "#63b3ed",
		"Loyal Customers":     "#667eea",
		"At Risk":             "#fc8181",
		"Cannot Lose Them":    "#e53e3e",
		"About to Sleep":      "#f6ad55",
		"Promising":           "#68d391",
		"Recent Customers":    "#4fd1c7",
		"Potential Loyalists": "#b794f4",
		"Need Attention":      "#fbd38d",
		"Lost":                "#a0aec0",
	}
)

const (
	OtherSegmentColor = "#718096"
	revenueLineColor  = "#63b3ed"
	revenueFillColor  = "rgba(99,179,237,0.08)"
	yearlyBarColor    = "#667eea"
	annotationBg      = "#4a2f0a"
	annotationBorder  = "#ed8936"
)

func SegmentColor(segment string) string {
	if c, ok := SegmentColors[segment]; ok {
		return c
	}
	return OtherSegmentColor
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// themedLayout applies ChartTheme and AxisStyle. A non-empty yOrder sets the
// y axis category order, e.g. "total ascending" for horizontal bars.
func themedLayout(title, yOrder string) Layout {
	l := Layout(copyMap(ChartTheme))
	l["title"] = map[string]any{"text": title, "font": map[string]any{"color": "#ffffff"}}
	l["xaxis"] = copyMap(AxisStyle)
	y := copyMap(AxisStyle)
	if yOrder != "" {
		y["categoryorder"] = yOrder
	}
	l["yaxis"] = y
	l["margin"] = map[string]any{"l": 40, "r": 20, "t": 60, "b": 40}
	return l
}
