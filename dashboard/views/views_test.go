package views

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader/loadertest"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

type fixture struct {
	ds  *loader.Dataset
	mx  *cohort.Matrix
	err error
}

func (f fixture) Dataset() *loader.Dataset        { return f.ds }
func (f fixture) Matrix() (*cohort.Matrix, error) { return f.mx, f.err }

func newFixture(t *testing.T) fixture {
	t.Helper()
	files, err := loadertest.Files()
	if err != nil {
		t.Fatalf("loadertest.Files() error = %v", err)
	}
	ds, err := loader.New(loadertest.MemorySource(files), loader.DefaultFiles()).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	mx, err := cohort.Build(ds.CohortRecords())
	if err != nil {
		t.Fatalf("cohort.Build() error = %v", err)
	}
	return fixture{ds: ds, mx: mx}
}

func month(t *testing.T, s string) cohort.Month {
	t.Helper()
	m, err := cohort.ParseMonth(s)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func chart(t *testing.T, p *Page, id string) Chart {
	t.Helper()
	for _, c := range p.Charts {
		if c.ID == id {
			return c
		}
	}
	t.Fatalf("page %s has no chart %q", p.View, id)
	return Chart{}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    View
		wantErr bool
	}{
		{in: "", want: Overview},
		{in: "retention", want: Retention},
		{in: "Countries", want: Countries},
		{in: "🔄 Cohort Retention", want: Retention},
		{in: "↩️ Returns Analysis", want: Returns},
		{in: "inventory", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownView) {
				t.Errorf("Parse(%q) error = %v, want ErrUnknownView", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Parse(%q) = %q, %v, want %q", tt.in, got, err, tt.want)
		}
	}
	if len(Navigation) != 5 || Navigation[0].View != Default {
		t.Errorf("Navigation = %+v", Navigation)
	}
}

func TestRenderer_Normalize(t *testing.T) {
	r := NewRenderer(DefaultParams())
	dec := month(t, "2010-12")
	jan := month(t, "2011-01")

	tests := []struct {
		name string
		view View
		in   Params
		want Params
	}{
		{"overview default top", Overview, Params{}, Params{Top: 10}},
		{"overview drops cohort", Overview, Params{Top: 5, Cohort: jan, Offset: OffsetOf(2)}, Params{Top: 5}},
		{"countries default top", Countries, Params{}, Params{Top: 15}},
		{"top capped", Returns, Params{Top: 5000}, Params{Top: 100}},
		{"segments ignore params", Segments, Params{Top: 3, Offset: OffsetOf(4)}, Params{}},
		{"retention defaults", Retention, Params{Top: 7}, Params{Cohort: dec, Offset: OffsetOf(3)}},
		{"retention keeps request", Retention, Params{Cohort: jan, Offset: OffsetOf(6)}, Params{Cohort: jan, Offset: OffsetOf(6)}},
		{"retention keeps offset zero", Retention, Params{Offset: OffsetOf(0)}, Params{Cohort: dec, Offset: OffsetOf(0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Normalize(tt.view, tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}

	zero := r.Normalize(Retention, Params{Offset: OffsetOf(0)})
	dflt := r.Normalize(Retention, Params{})
	if zero.Key(Retention) == dflt.Key(Retention) {
		t.Errorf("offset 0 and the default offset share key %q", zero.Key(Retention))
	}

	a := r.Normalize(Overview, Params{})
	b := r.Normalize(Overview, Params{Top: 10, Offset: OffsetOf(9)})
	if a.Key(Overview) != b.Key(Overview) {
		t.Errorf("equivalent params produced keys %q and %q", a.Key(Overview), b.Key(Overview))
	}
}

func TestRender_Header(t *testing.T) {
	f := newFixture(t)
	page, err := NewRenderer(DefaultParams()).Render(Segments, f, Params{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	want := []string{"£233", "7", "3", "£25.50", "8.3"}
	if len(page.Header) != len(want) {
		t.Fatalf("header has %d metrics, want %d", len(page.Header), len(want))
	}
	for i, w := range want {
		if page.Header[i].Value != w {
			t.Errorf("header[%d] %s = %q, want %q", i, page.Header[i].Label, page.Header[i].Value, w)
		}
	}
	if got := page.Header[3].Help; got != "Median order value. Mean £33.23 skewed by wholesale." {
		t.Errorf("median AOV help = %q", got)
	}
	if page.Title != "👥 RFM Customer Segmentation" {
		t.Errorf("Title = %q", page.Title)
	}
}

func TestRender_Overview(t *testing.T) {
	f := newFixture(t)
	page, err := NewRenderer(DefaultParams()).Render(Overview, f, Params{Top: 2})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	rev := chart(t, page, "monthly-revenue")
	ann, ok := rev.Layout["annotations"].([]map[string]any)
	if !ok || len(ann) != 1 {
		t.Fatalf("annotations = %#v", rev.Layout["annotations"])
	}
	if ann[0]["text"] != "⚠ Partial (ends Dec 9)" || ann[0]["x"] != "2011-12" {
		t.Errorf("annotation = %v", ann[0])
	}

	top := chart(t, page, "top-products")
	names := top.Data[0]["y"].([]string)
	if !reflect.DeepEqual(names, []string{"ALARM CLOCK BAKELIKE PINK", "REGENCY CAKESTAND 3 TIER"}) {
		t.Errorf("top products = %v", names)
	}

	years := chart(t, page, "yearly-revenue").Data[0]["x"].([]string)
	if !reflect.DeepEqual(years, []string{"2010", "2011"}) {
		t.Errorf("years = %v", years)
	}
	if len(page.Notes) != 1 || page.Notes[0].Kind != Insight {
		t.Errorf("Notes = %+v", page.Notes)
	}
}

func TestRender_Segments(t *testing.T) {
	f := newFixture(t)
	page, err := NewRenderer(DefaultParams()).Render(Segments, f, Params{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	bar := chart(t, page, "segment-counts").Data[0]
	if got := bar["y"].([]string); !reflect.DeepEqual(got, []string{"Loyal Customers", "Champions", "At Risk"}) {
		t.Errorf("segments = %v", got)
	}
	colors := bar["marker"].(map[string]any)["color"].([]string)
	if colors[1] != SegmentColors["Champions"] {
		t.Errorf("Champions colour = %q", colors[1])
	}
	if len(page.Tables) != 1 || len(page.Tables[0].Rows) != 2 {
		t.Errorf("Tables = %+v", page.Tables)
	}
}

func TestRender_Retention(t *testing.T) {
	f := newFixture(t)
	r := NewRenderer(DefaultParams())

	tests := []struct {
		name      string
		params    Params
		wantLabel string
		wantAt    string
		wantMean  string
	}{
		{
			name:      "default highlight",
			wantLabel: "Dec-2010 Cohort — Month 3 Retention",
			wantAt:    "50.0%",
			wantMean:  "75.0%",
		},
		{
			name:      "observed zero",
			params:    Params{Cohort: month(t, "2011-01"), Offset: OffsetOf(1)},
			wantLabel: "Jan-2011 Cohort — Month 1 Retention",
			wantAt:    "0.0%",
			wantMean:  "N/A",
		},
		{
			name:      "unknown cohort",
			params:    Params{Cohort: month(t, "2009-01"), Offset: OffsetOf(3)},
			wantLabel: "Jan-2009 Cohort — Month 3 Retention",
			wantAt:    "N/A",
			wantMean:  "75.0%",
		},
		{
			name:      "offset zero",
			params:    Params{Offset: OffsetOf(0)},
			wantLabel: "Dec-2010 Cohort — Month 0 Retention",
			wantAt:    "100.0%",
			wantMean:  "100.0%",
		},
		{
			name:      "offset beyond data",
			params:    Params{Offset: OffsetOf(40)},
			wantLabel: "Dec-2010 Cohort — Month 40 Retention",
			wantAt:    "N/A",
			wantMean:  "N/A",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := r.Render(Retention, f, tt.params)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if page.Metrics[0].Label != tt.wantLabel || page.Metrics[0].Value != tt.wantAt {
				t.Errorf("cohort metric = %+v, want %s %s", page.Metrics[0], tt.wantLabel, tt.wantAt)
			}
			if page.Metrics[1].Value != tt.wantMean {
				t.Errorf("mean metric = %q, want %q", page.Metrics[1].Value, tt.wantMean)
			}
		})
	}

	page, err := r.Render(Retention, f, Params{})
	if err != nil {
		t.Fatal(err)
	}
	bar := chart(t, page, "retention-offset").Data[0]
	if got := bar["y"].([]float64); !reflect.DeepEqual(got, []float64{50, 100}) {
		t.Errorf("offset 3 column = %v", got)
	}
	if got := bar["x"].([]string); !reflect.DeepEqual(got, []string{"2010-12", "2011-01"}) {
		t.Errorf("offset 3 cohorts = %v", got)
	}
	heat := chart(t, page, "retention-matrix").Data[0]
	z := heat["z"].([][]float64)
	if len(z) != 2 || z[0][0] != 100 || z[1][0] != 100 {
		t.Errorf("heatmap z = %v", z)
	}
}

func TestRender_RetentionIntegrity(t *testing.T) {
	f := newFixture(t)
	f.mx = nil
	f.err = &cohort.IntegrityError{Cohort: month(t, "2011-02"), Offset: 1, Reason: "activity without a base"}

	_, err := NewRenderer(DefaultParams()).Render(Retention, f, Params{})
	if !errors.Is(err, cohort.ErrIntegrity) {
		t.Fatalf("Render() error = %v, want ErrIntegrity", err)
	}

	// other views do not need the matrix
	if _, err := NewRenderer(DefaultParams()).Render(Overview, f, Params{}); err != nil {
		t.Errorf("Render(overview) error = %v", err)
	}
}

func TestRender_Returns(t *testing.T) {
	f := newFixture(t)
	page, err := NewRenderer(DefaultParams()).Render(Returns, f, Params{})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if len(page.Tabs) != 2 {
		t.Fatalf("Tabs = %v", page.Tabs)
	}

	cr := chart(t, page, "top-returns")
	if cr.Tab != page.Tabs[0] {
		t.Errorf("top-returns tab = %q", cr.Tab)
	}
	if got := cr.Data[0]["y"].([]string)[0]; got != "SET OF 3 COLOURED  FLYING DUCKS" {
		t.Errorf("top return = %q", got)
	}
	if got := cr.Data[0]["x"].([]int)[0]; got != 2 {
		t.Errorf("top return count = %d", got)
	}

	ol := chart(t, page, "loss-categories")
	if ol.Tab != page.Tabs[1] {
		t.Errorf("loss-categories tab = %q", ol.Tab)
	}
	if got := ol.Data[0]["y"].([]string)[0]; got != "Disposed / Unsaleable" {
		t.Errorf("largest loss category = %q", got)
	}
	if got := ol.Data[0]["x"].([]int64)[0]; got != 50 {
		t.Errorf("largest loss = %d", got)
	}
}

func TestRender_Countries(t *testing.T) {
	f := newFixture(t)
	page, err := NewRenderer(DefaultParams()).Render(Countries, f, Params{Top: 1})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if got := chart(t, page, "country-revenue").Data[0]["y"].([]string); !reflect.DeepEqual(got, []string{"France"}) {
		t.Errorf("top countries = %v", got)
	}
	m := chart(t, page, "country-map").Data[0]
	if m["locationmode"] != "country names" || len(m["locations"].([]string)) != 2 {
		t.Errorf("choropleth = %v", m)
	}
	want := [][]string{
		{"France", "£135.00", "2", "1", "£67.50"},
		{"United Kingdom", "£97.62", "5", "2", "£19.52"},
	}
	if !reflect.DeepEqual(page.Tables[0].Rows, want) {
		t.Errorf("table rows = %v, want %v", page.Tables[0].Rows, want)
	}
}

func TestRender_UnknownView(t *testing.T) {
	_, err := NewRenderer(DefaultParams()).Render(View("inventory"), newFixture(t), Params{})
	if !errors.Is(err, ErrUnknownView) {
		t.Errorf("Render() error = %v, want ErrUnknownView", err)
	}
}
