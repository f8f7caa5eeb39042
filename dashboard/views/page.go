package views

import (
	"fmt"
	"strconv"

	"github.com/ellavondegurechaff/retaildash/dashboard/config"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

// Trace and Layout are plotly.js figure fragments, serialized as-is.
type (
	Trace  map[string]any
	Layout map[string]any
)

type Chart struct {
	ID     string  `json:"id"`
	Tab    string  `json:"tab,omitempty"`
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Help  string `json:"help,omitempty"`
}

type NoteKind string

const (
	Insight   NoteKind = "insight"
	Finding   NoteKind = "finding"
	Warning   NoteKind = "warning"
	Recommend NoteKind = "recommend"
)

// Note is a callout box. Text may carry <b> emphasis and is rendered as
// trusted HTML by the shell.
type Note struct {
	Kind NoteKind `json:"kind"`
	Text string   `json:"text"`
}

type TableBlock struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Page is everything the shell needs to draw one view.
type Page struct {
	View    View         `json:"view"`
	Title   string       `json:"title"`
	Header  []Metric     `json:"header"`
	Metrics []Metric     `json:"metrics,omitempty"`
	Charts  []Chart      `json:"charts"`
	Notes   []Note       `json:"notes,omitempty"`
	Tables  []TableBlock `json:"tables,omitempty"`
	Tabs    []string     `json:"tabs,omitempty"`
}

// Params are the per-request inputs a view may depend on. Together with
// the view they form the memoization key.
type Params struct {
	Top    int          `json:"top,omitempty"`
	Cohort cohort.Month `json:"cohort,omitempty"`
	// Offset is nil when the request names none. Zero is a valid offset.
	Offset *int `json:"offset,omitempty"`
}

func OffsetOf(n int) *int { return &n }

func DefaultParams() Params {
	c, _ := cohort.ParseMonth(config.DefaultHighlightCohort)
	return Params{Cohort: c, Offset: OffsetOf(config.DefaultHighlightOffset)}
}

// MonthOffset is the requested offset, or -1 when unset.
func (p Params) MonthOffset() int {
	if p.Offset == nil {
		return -1
	}
	return *p.Offset
}

func (p Params) Key(v View) string {
	offset := "-"
	if p.Offset != nil {
		offset = strconv.Itoa(*p.Offset)
	}
	return fmt.Sprintf("%s:top=%d:cohort=%s:offset=%s", v, p.Top, p.Cohort, offset)
}

const maxTop = config.MaxTopN

// defaultTop is the ranking length per view. Views not listed do not rank.
var defaultTop = map[View]int{
	Overview:  config.DefaultTopProducts,
	Returns:   config.DefaultTopReturns,
	Countries: config.DefaultTopCountries,
}
