package models

import (
	"time"

	"github.com/ellavondegurechaff/retaildash/dashboard/views"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

// RetentionMatrix is the full cohort table as served by the API.
type RetentionMatrix struct {
	Generation uint64         `json:"generation"`
	Cohorts    []cohort.Month `json:"cohorts"`
	Offsets    []int          `json:"offsets"`
	Sizes      []int          `json:"sizes"`
	Counts     [][]int        `json:"counts"`
	Retention  [][]float64    `json:"retention"`
	Skipped    int            `json:"skipped"`
}

func NewRetentionMatrix(mx *cohort.Matrix, gen uint64) *RetentionMatrix {
	sizes := make([]int, len(mx.Cohorts))
	for i, c := range mx.Cohorts {
		sizes[i] = mx.Size(c)
	}
	return &RetentionMatrix{
		Generation: gen,
		Cohorts:    mx.Cohorts,
		Offsets:    mx.Offsets(),
		Sizes:      sizes,
		Counts:     mx.Counts,
		Retention:  mx.Retention,
		Skipped:    mx.Skipped,
	}
}

// RetentionValue is a single cohort/offset lookup.
type RetentionValue struct {
	Cohort    cohort.Month `json:"cohort"`
	Offset    int          `json:"offset"`
	Retention float64      `json:"retention"`
	Customers int          `json:"customers"`
	Size      int          `json:"cohort_size"`
}

type MeanRetention struct {
	Offset    int     `json:"offset"`
	Retention float64 `json:"retention"`
	Cohorts   int     `json:"cohorts"`
}

// PageResponse wraps a rendered view with the dataset generation it came from.
type PageResponse struct {
	Generation uint64       `json:"generation"`
	Params     views.Params `json:"params"`
	*views.Page
}

type ReloadResult struct {
	Generation uint64         `json:"generation"`
	Rows       map[string]int `json:"rows"`
	LoadedAt   time.Time      `json:"loaded_at"`
	Took       string         `json:"took"`
}
