package loader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

type csvTable struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// readCSV parses a headed CSV file and checks that every required column is
// present. Rows may be ragged; missing trailing cells read as blank.
func readCSV(b []byte, required ...string) (*csvTable, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	t := &csvTable{header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		t.index[strings.TrimSpace(h)] = i
	}
	for _, col := range required {
		if _, ok := t.index[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

func (t *csvTable) get(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// float parses a numeric cell. ok is false for a blank cell.
func (t *csvTable) float(row []string, col string) (float64, bool, error) {
	s := t.get(row, col)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s=%q", ErrMalformed, col, s)
	}
	return f, true, nil
}

func (t *csvTable) integer(row []string, col string) (int64, bool, error) {
	f, ok, err := t.float(row, col)
	return int64(math.Round(f)), ok, err
}

func decodeRFM(b []byte) ([]RFMRecord, error) {
	t, err := readCSV(b, "Segment")
	if err != nil {
		return nil, err
	}
	out := make([]RFMRecord, 0, len(t.rows))
	for n, row := range t.rows {
		rec := RFMRecord{
			CustomerID: t.get(row, "CustomerID"),
			Segment:    t.get(row, "Segment"),
		}
		for col, dst := range map[string]*float64{
			"Recency":   &rec.Recency,
			"Frequency": &rec.Frequency,
			"Monetary":  &rec.Monetary,
		} {
			if *dst, _, err = t.float(row, col); err != nil {
				return nil, fmt.Errorf("row %d: %w", n+1, err)
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// decodeReturns drops non-product lines (postage, fees and similar) listed
// in the taxonomy.
func decodeReturns(b []byte, tax *Taxonomy) ([]ReturnRecord, error) {
	t, err := readCSV(b, "Description", "Quantity")
	if err != nil {
		return nil, err
	}
	out := make([]ReturnRecord, 0, len(t.rows))
	for n, row := range t.rows {
		desc := t.get(row, "Description")
		if tax.Excluded(desc) {
			continue
		}
		qty, ok, err := t.integer(row, "Quantity")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
		out = append(out, ReturnRecord{
			Invoice:     t.get(row, "Invoice"),
			CustomerID:  t.get(row, "CustomerID"),
			Description: desc,
			Country:     t.get(row, "Country"),
			Quantity:    qty,
			HasQuantity: ok,
		})
	}
	return out, nil
}

func decodeLosses(b []byte, tax *Taxonomy) ([]LossRecord, error) {
	t, err := readCSV(b, "Description", "Quantity")
	if err != nil {
		return nil, err
	}
	out := make([]LossRecord, 0, len(t.rows))
	for n, row := range t.rows {
		qty, _, err := t.integer(row, "Quantity")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
		desc := NormalizeDescription(t.get(row, "Description"))
		out = append(out, LossRecord{
			Description: desc,
			Quantity:    qty,
			Category:    tax.Categorize(desc),
		})
	}
	return out, nil
}

func decodeTopProducts(b []byte) ([]TopProduct, error) {
	t, err := readCSV(b, "Description", "Revenue")
	if err != nil {
		return nil, err
	}
	out := make([]TopProduct, 0, len(t.rows))
	for n, row := range t.rows {
		rev, _, err := t.float(row, "Revenue")
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
		out = append(out, TopProduct{Description: t.get(row, "Description"), Revenue: rev})
	}
	return out, nil
}

func decodeTable(b []byte) (Table, error) {
	t, err := readCSV(b)
	if err != nil {
		return Table{}, err
	}
	cols := make([]string, len(t.header))
	for i, h := range t.header {
		cols[i] = strings.TrimSpace(h)
	}
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		rows[i] = make([]string, len(cols))
		copy(rows[i], row)
	}
	return Table{Columns: cols, Rows: rows}, nil
}
