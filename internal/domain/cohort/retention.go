package cohort

import (
	"fmt"
	"sort"
	"time"
)

// Record is the slice of a transaction the retention engine needs.
type Record struct {
	CustomerID string
	Date       time.Time
}

// Point is one cohort's value in a single offset column.
type Point struct {
	Cohort Month   `json:"cohort"`
	Value  float64 `json:"value"`
}

// Matrix holds distinct-customer counts and offset-0 normalized retention,
// one dense row per cohort and one column per offset 0..MaxOffset.
type Matrix struct {
	Cohorts   []Month     `json:"cohorts"`
	MaxOffset int         `json:"max_offset"`
	Counts    [][]int     `json:"counts"`
	Retention [][]float64 `json:"retention"`
	// Skipped counts records without a customer id or a date.
	Skipped int `json:"skipped"`

	index map[Month]int
}

type cell struct {
	cohort Month
	offset int
}

type visit struct {
	cell
	customer string
}

func usable(r Record) bool {
	return r.CustomerID != "" && !r.Date.IsZero()
}

// AssignCohorts maps every customer to the month of their earliest dated
// transaction. It must see the full history before offsets are derived.
func AssignCohorts(records []Record) map[string]Month {
	cohorts := make(map[string]Month)
	for _, r := range records {
		if !usable(r) {
			continue
		}
		m := MonthOf(r.Date)
		if cur, ok := cohorts[r.CustomerID]; !ok || m < cur {
			cohorts[r.CustomerID] = m
		}
	}
	return cohorts
}

// Build assigns cohorts over records and returns the retention matrix.
func Build(records []Record) (*Matrix, error) {
	return Tally(records, AssignCohorts(records))
}

// Tally counts distinct customers per (cohort, offset) using the given
// cohort assignment, then assembles and normalizes the matrix. Customers
// missing from cohorts are skipped.
func Tally(records []Record, cohorts map[string]Month) (*Matrix, error) {
	seen := make(map[visit]struct{})
	counts := make(map[cell]int)
	rows := make(map[Month]struct{})
	maxOffset := -1
	skipped := 0

	for _, r := range records {
		if !usable(r) {
			skipped++
			continue
		}
		c, ok := cohorts[r.CustomerID]
		if !ok {
			skipped++
			continue
		}
		offset := MonthOf(r.Date).Sub(c)
		if offset < 0 {
			return nil, &IntegrityError{
				Cohort:     c,
				Offset:     offset,
				CustomerID: r.CustomerID,
				Reason:     "transaction precedes cohort month",
			}
		}

		v := visit{cell: cell{cohort: c, offset: offset}, customer: r.CustomerID}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		counts[v.cell]++
		rows[c] = struct{}{}
		if offset > maxOffset {
			maxOffset = offset
		}
	}

	months := make([]Month, 0, len(rows))
	for m := range rows {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })

	dense := make([][]int, len(months))
	for i, m := range months {
		dense[i] = make([]int, maxOffset+1)
		for k := 0; k <= maxOffset; k++ {
			dense[i][k] = counts[cell{cohort: m, offset: k}]
		}
	}

	mx, err := FromCounts(months, dense)
	if err != nil {
		return nil, err
	}
	mx.Skipped = skipped
	return mx, nil
}

// FromCounts normalizes a dense count table. Each row is divided by its
// offset-0 count; an empty row stays at zero, while a row with later activity
// but no offset-0 customers is an integrity error. The inputs are copied and
// left untouched.
func FromCounts(cohorts []Month, counts [][]int) (*Matrix, error) {
	if len(counts) != len(cohorts) {
		return nil, fmt.Errorf("%d cohorts but %d count rows", len(cohorts), len(counts))
	}
	mx := &Matrix{
		Cohorts:   append([]Month(nil), cohorts...),
		MaxOffset: -1,
		Counts:    make([][]int, len(counts)),
		Retention: make([][]float64, len(counts)),
		index:     make(map[Month]int, len(cohorts)),
	}
	for i, m := range cohorts {
		mx.index[m] = i
	}

	for i, row := range counts {
		mx.Counts[i] = append([]int(nil), row...)
		if len(row)-1 > mx.MaxOffset {
			mx.MaxOffset = len(row) - 1
		}
		mx.Retention[i] = make([]float64, len(row))
		if len(row) == 0 || row[0] == 0 {
			for k, n := range row {
				if n != 0 {
					return nil, &IntegrityError{
						Cohort: cohorts[i],
						Offset: k,
						Reason: "active customers without an offset-0 base",
					}
				}
			}
			continue
		}
		base := float64(row[0])
		for k, n := range row {
			mx.Retention[i][k] = float64(n) / base
		}
	}

	// pad ragged input so every row spans 0..MaxOffset
	for i := range mx.Retention {
		for len(mx.Retention[i]) <= mx.MaxOffset {
			mx.Retention[i] = append(mx.Retention[i], 0)
			mx.Counts[i] = append(mx.Counts[i], 0)
		}
	}
	return mx, nil
}

// Offsets lists the offset columns present in the matrix.
func (m *Matrix) Offsets() []int {
	out := make([]int, 0, m.MaxOffset+1)
	for k := 0; k <= m.MaxOffset; k++ {
		out = append(out, k)
	}
	return out
}

func (m *Matrix) hasOffset(offset int) bool {
	return offset >= 0 && offset <= m.MaxOffset
}

// At reports the retention of cohort at offset. ok is false when either the
// cohort row or the offset column does not exist.
func (m *Matrix) At(cohort Month, offset int) (float64, bool) {
	i, ok := m.index[cohort]
	if !ok || !m.hasOffset(offset) {
		return 0, false
	}
	return m.Retention[i][offset], true
}

// Count is the number of distinct customers of cohort active at offset.
func (m *Matrix) Count(cohort Month, offset int) (int, bool) {
	i, ok := m.index[cohort]
	if !ok || !m.hasOffset(offset) {
		return 0, false
	}
	return m.Counts[i][offset], true
}

// Size is the cohort's offset-0 customer count.
func (m *Matrix) Size(cohort Month) int {
	i, ok := m.index[cohort]
	if !ok || len(m.Counts[i]) == 0 {
		return 0
	}
	return m.Counts[i][0]
}

// Column returns the non-zero cells of an offset column in cohort order.
// Zero cells are cohorts with no observations at that offset.
func (m *Matrix) Column(offset int) []Point {
	if !m.hasOffset(offset) {
		return nil
	}
	var out []Point
	for i, c := range m.Cohorts {
		if v := m.Retention[i][offset]; v != 0 {
			out = append(out, Point{Cohort: c, Value: v})
		}
	}
	return out
}

// MeanAt averages an offset column over cohorts with a non-zero value, so
// cohorts too young to reach the offset do not pull the mean down.
func (m *Matrix) MeanAt(offset int) (float64, bool) {
	col := m.Column(offset)
	if len(col) == 0 {
		return 0, false
	}
	var sum float64
	for _, p := range col {
		sum += p.Value
	}
	return sum / float64(len(col)), true
}
