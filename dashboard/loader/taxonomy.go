package loader

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
)

const DefaultFallbackCategory = "Other"

// DefaultReturnExclusions are return lines that are fees or adjustments
// rather than products.
var DefaultReturnExclusions = []string{
	"manual", "dotcom postage", "postage", "bank charges", "samples", "discount",
}

// DefaultLossCategories maps normalized write-off descriptions to a root cause.
var DefaultLossCategories = map[string]string{
	"printing smudges/thrown away": "Printing Issues",
	"damages":                      "Damaged Stock",
	"damaged":                      "Damaged Stock",
	"wet damages":                  "Storage Conditions",
	"damages wax":                  "Damaged Stock",
	"mouldy, thrown away.":         "Storage Conditions",
	"thrown away":                  "Disposed / Unsaleable",
	"check":                        "Uncategorised — needs review",
	"found":                        "Uncategorised — needs review",
	"lost":                         "Uncategorised — needs review",
	"samples":                      "Samples / Write-offs",
}

// Taxonomy holds the return exclusion list and the loss category map.
// Matching is exact after normalization; no partial or fuzzy matching.
type Taxonomy struct {
	exclusions map[string]struct{}
	categories map[string]string
	keys       []string
	fallback   string
}

func NewTaxonomy(exclusions []string, categories map[string]string, fallback string) *Taxonomy {
	if fallback == "" {
		fallback = DefaultFallbackCategory
	}
	t := &Taxonomy{
		exclusions: make(map[string]struct{}, len(exclusions)),
		categories: make(map[string]string, len(categories)),
		fallback:   fallback,
	}
	for _, e := range exclusions {
		t.exclusions[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	for k, v := range categories {
		key := NormalizeDescription(k)
		t.categories[key] = v
		t.keys = append(t.keys, key)
	}
	sort.Strings(t.keys)
	return t
}

func DefaultTaxonomy() *Taxonomy {
	return NewTaxonomy(DefaultReturnExclusions, DefaultLossCategories, DefaultFallbackCategory)
}

// NormalizeDescription lower-cases, trims and collapses internal whitespace.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Excluded reports whether a return line description is a non-product line.
func (t *Taxonomy) Excluded(desc string) bool {
	_, ok := t.exclusions[strings.ToLower(strings.TrimSpace(desc))]
	return ok
}

func (t *Taxonomy) Categorize(desc string) string {
	if c, ok := t.categories[NormalizeDescription(desc)]; ok {
		return c
	}
	return t.fallback
}

func (t *Taxonomy) Fallback() string {
	return t.fallback
}

// Suggestion proposes a known mapping for a description that fell through to
// the fallback category.
type Suggestion struct {
	Key      string `json:"key"`
	Category string `json:"category"`
	Score    int    `json:"score"`
}

type UnmappedLoss struct {
	Description string       `json:"description"`
	Rows        int          `json:"rows"`
	UnitsLost   int64        `json:"units_lost"`
	Suggestions []Suggestion `json:"suggestions"`
}

type descriptions []UnmappedLoss

func (d descriptions) String(i int) string { return d[i].Description }
func (d descriptions) Len() int            { return len(d) }

const maxSuggestions = 3

// Unmapped groups loss rows that fell to the fallback category and ranks the
// known keys that fuzzily appear in each description. It only advises; the
// category of a row is never changed by a suggestion.
func (t *Taxonomy) Unmapped(losses []LossRecord) []UnmappedLoss {
	pos := make(map[string]int)
	var items descriptions
	for _, l := range losses {
		if _, ok := t.categories[l.Description]; ok {
			continue
		}
		i, seen := pos[l.Description]
		if !seen {
			i = len(items)
			pos[l.Description] = i
			items = append(items, UnmappedLoss{Description: l.Description})
		}
		items[i].Rows++
		items[i].UnitsLost += l.Quantity
	}

	for _, key := range t.keys {
		for _, m := range fuzzy.FindFrom(key, items) {
			items[m.Index].Suggestions = append(items[m.Index].Suggestions, Suggestion{
				Key:      key,
				Category: t.categories[key],
				Score:    m.Score,
			})
		}
	}

	for i := range items {
		if items[i].UnitsLost < 0 {
			items[i].UnitsLost = -items[i].UnitsLost
		}
		s := items[i].Suggestions
		sort.SliceStable(s, func(a, b int) bool { return s[a].Score > s[b].Score })
		if len(s) > maxSuggestions {
			items[i].Suggestions = s[:maxSuggestions]
		}
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].Rows != items[b].Rows {
			return items[a].Rows > items[b].Rows
		}
		return items[a].Description < items[b].Description
	})
	return items
}
