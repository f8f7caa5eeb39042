package loader

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

const parquetBatchSize = 64 * 1024

var transactionColumns = []string{
	"Invoice", "CustomerID", "Description", "Country", "Quantity", "Revenue", "InvoiceDate",
}

// ParquetTransactions decodes the transaction table from a parquet file.
type ParquetTransactions struct {
	Source Source
	Name   string
}

func (p *ParquetTransactions) Transactions(ctx context.Context) ([]Transaction, error) {
	b, err := p.Source.ReadFile(ctx, p.Name)
	if err != nil {
		return nil, loadErr(p.Name, err)
	}
	txs, err := DecodeTransactions(ctx, b)
	if err != nil {
		return nil, loadErr(p.Name, err)
	}
	return txs, nil
}

// DecodeTransactions reads every row group of a parquet file into
// transactions. All columns in transactionColumns must be present.
func DecodeTransactions(ctx context.Context, b []byte) ([]Transaction, error) {
	mem := memory.NewGoAllocator()
	tbl, err := pqarrow.ReadTable(ctx, bytes.NewReader(b), parquet.NewReaderProperties(mem),
		pqarrow.ArrowReadProperties{BatchSize: parquetBatchSize}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet: %w", err)
	}
	defer tbl.Release()

	idx := make(map[string]int, len(transactionColumns))
	for _, name := range transactionColumns {
		found := tbl.Schema().FieldIndices(name)
		if len(found) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
		idx[name] = found[0]
	}

	out := make([]Transaction, 0, tbl.NumRows())
	tr := array.NewTableReader(tbl, parquetBatchSize)
	defer tr.Release()

	for tr.Next() {
		rec := tr.Record()
		col := func(name string) arrow.Array { return rec.Column(idx[name]) }
		for i := 0; i < int(rec.NumRows()); i++ {
			tx, err := decodeRow(col, i)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", len(out)+1, err)
			}
			out = append(out, tx)
		}
	}
	if err := tr.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parquet records: %w", err)
	}
	return out, nil
}

func decodeRow(col func(string) arrow.Array, i int) (Transaction, error) {
	var (
		tx  Transaction
		err error
	)
	if tx.Invoice, err = stringAt(col("Invoice"), i); err != nil {
		return tx, fmt.Errorf("Invoice: %w", err)
	}
	if tx.CustomerID, err = stringAt(col("CustomerID"), i); err != nil {
		return tx, fmt.Errorf("CustomerID: %w", err)
	}
	if tx.Description, err = stringAt(col("Description"), i); err != nil {
		return tx, fmt.Errorf("Description: %w", err)
	}
	if tx.Country, err = stringAt(col("Country"), i); err != nil {
		return tx, fmt.Errorf("Country: %w", err)
	}
	qty, _, err := floatAt(col("Quantity"), i)
	if err != nil {
		return tx, fmt.Errorf("Quantity: %w", err)
	}
	tx.Quantity = int64(math.Round(qty))
	if tx.Revenue, _, err = floatAt(col("Revenue"), i); err != nil {
		return tx, fmt.Errorf("Revenue: %w", err)
	}
	if tx.InvoiceDate, err = timeAt(col("InvoiceDate"), i); err != nil {
		return tx, fmt.Errorf("InvoiceDate: %w", err)
	}
	if !tx.InvoiceDate.IsZero() {
		tx.InvoiceMonth = cohort.MonthOf(tx.InvoiceDate)
		tx.InvoiceYear = tx.InvoiceDate.Year()
	}
	return tx, nil
}

func stringAt(arr arrow.Array, i int) (string, error) {
	if arr.IsNull(i) {
		return "", nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Binary:
		return string(a.Value(i)), nil
	case *array.Dictionary:
		return stringAt(a.Dictionary(), a.GetValueIndex(i))
	case *array.Int64:
		return strconv.FormatInt(a.Value(i), 10), nil
	case *array.Int32:
		return strconv.FormatInt(int64(a.Value(i)), 10), nil
	case *array.Float64:
		return formatID(a.Value(i)), nil
	case *array.Float32:
		return formatID(float64(a.Value(i))), nil
	}
	return "", fmt.Errorf("%w: unsupported type %s", ErrMalformed, arr.DataType())
}

// formatID renders float-typed identifiers (12346.0) without the fraction.
func formatID(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func floatAt(arr arrow.Array, i int) (float64, bool, error) {
	if arr.IsNull(i) {
		return 0, false, nil
	}
	switch a := arr.(type) {
	case *array.Float64:
		return a.Value(i), true, nil
	case *array.Float32:
		return float64(a.Value(i)), true, nil
	case *array.Int64:
		return float64(a.Value(i)), true, nil
	case *array.Int32:
		return float64(a.Value(i)), true, nil
	case *array.Int16:
		return float64(a.Value(i)), true, nil
	case *array.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(a.Value(i)), 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %q", ErrMalformed, a.Value(i))
		}
		return f, true, nil
	}
	return 0, false, fmt.Errorf("%w: unsupported type %s", ErrMalformed, arr.DataType())
}

func timeAt(arr arrow.Array, i int) (time.Time, error) {
	if arr.IsNull(i) {
		return time.Time{}, nil
	}
	switch a := arr.(type) {
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC(), nil
	case *array.Date32:
		return a.Value(i).ToTime().UTC(), nil
	case *array.Date64:
		return a.Value(i).ToTime().UTC(), nil
	case *array.String:
		return parseDate(a.Value(i))
	case *array.LargeString:
		return parseDate(a.Value(i))
	}
	return time.Time{}, fmt.Errorf("%w: unsupported type %s", ErrMalformed, arr.DataType())
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.DateTime,
	"2006-01-02 15:04",
	time.DateOnly,
	"1/2/2006 15:04",
	"01/02/2006 15:04",
}

// parseDate accepts the layouts the upstream extracts have been seen in.
// A blank value is a missing date, not an error.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: date %q", ErrMalformed, s)
}
