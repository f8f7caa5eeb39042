package views

import (
	"errors"
	"fmt"
	"strings"
)

// View identifies one of the dashboard pages. The current selection lives in
// the request, never on the server.
type View string

const (
	Overview  View = "overview"
	Segments  View = "segments"
	Retention View = "retention"
	Returns   View = "returns"
	Countries View = "countries"
)

var ErrUnknownView = errors.New("unknown view")

type NavItem struct {
	View  View   `json:"view"`
	Label string `json:"label"`
	Title string `json:"title"`
}

// Navigation is the fixed sidebar order.
var Navigation = []NavItem{
	{View: Overview, Label: "📊 Overview", Title: "📊 Revenue Overview"},
	{View: Segments, Label: "👥 Customer Segments", Title: "👥 RFM Customer Segmentation"},
	{View: Retention, Label: "🔄 Cohort Retention", Title: "🔄 Cohort Retention Analysis"},
	{View: Returns, Label: "↩️ Returns Analysis", Title: "↩️ Returns Analysis"},
	{View: Countries, Label: "🌍 Country Performance", Title: "🌍 Country Performance"},
}

// Default is the view shown when none is selected.
const Default = Overview

// Parse accepts a view slug or its sidebar label.
func Parse(s string) (View, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Default, nil
	}
	for _, n := range Navigation {
		if strings.EqualFold(s, string(n.View)) || s == n.Label {
			return n.View, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
}

func (v View) item() NavItem {
	for _, n := range Navigation {
		if n.View == v {
			return n
		}
	}
	return NavItem{View: v, Label: string(v), Title: string(v)}
}

func (v View) Title() string { return v.item().Title }
