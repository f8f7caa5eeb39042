package utils

import (
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/ellavondegurechaff/retaildash/dashboard/views"
)

// TemplateFuncs returns a map of functions that can be used in templates
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"safeHTML":  safeHTML,
		"toJSON":    toJSON,
		"noteClass": noteClass,
		"chartsFor": chartsFor,
	}
}

// safeHTML returns HTML content that won't be escaped. Only used for note
// text built by the view layer.
func safeHTML(s string) template.HTML {
	return template.HTML(s)
}

// toJSON embeds a value in a script block.
func toJSON(v interface{}) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode template data: %w", err)
	}
	return template.JS(b), nil
}

func noteClass(kind views.NoteKind) string {
	switch kind {
	case views.Finding:
		return "finding-box"
	case views.Warning:
		return "warning-box"
	case views.Recommend:
		return "recommend-box"
	default:
		return "insight-box"
	}
}

// chartsFor returns the charts placed on tab. An empty tab selects the
// untabbed charts.
func chartsFor(charts []views.Chart, tab string) []views.Chart {
	var out []views.Chart
	for _, ch := range charts {
		if ch.Tab == tab {
			out = append(out, ch)
		}
	}
	return out
}
