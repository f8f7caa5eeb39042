// Package loadertest builds a small, consistent set of input files for tests.
package loadertest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
)

// Row is one transaction line. A zero CustomerID or Date is written as null.
type Row struct {
	Invoice     string
	CustomerID  float64
	Description string
	Country     string
	Quantity    int64
	Revenue     float64
	Date        time.Time
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

// Rows: customers 17850 and 12583 start in Dec 2010, 13047 in Jan 2011.
// 17850 returns at offsets 3 and 6, 12583 at offset 12, 13047 at offset 3.
var Rows = []Row{
	{"536365", 17850, "WHITE HANGING HEART T-LIGHT HOLDER", "United Kingdom", 6, 15.30, at(2010, time.December, 1, 8, 26)},
	{"536365", 17850, "WHITE METAL LANTERN", "United Kingdom", 6, 20.34, at(2010, time.December, 1, 8, 26)},
	{"536366", 12583, "ALARM CLOCK BAKELIKE PINK", "France", 24, 90.00, at(2010, time.December, 1, 9, 0)},
	{"541000", 13047, "REGENCY CAKESTAND 3 TIER", "United Kingdom", 2, 25.50, at(2011, time.January, 15, 11, 0)},
	{"540001", 17850, "WHITE METAL LANTERN", "United Kingdom", 4, 13.56, at(2011, time.March, 10, 10, 0)},
	{"545000", 13047, "REGENCY CAKESTAND 3 TIER", "United Kingdom", 1, 12.75, at(2011, time.April, 20, 14, 5)},
	{"560000", 17850, "WHITE HANGING HEART T-LIGHT HOLDER", "United Kingdom", 3, 10.17, at(2011, time.June, 5, 9, 30)},
	{"580000", 12583, "ALARM CLOCK BAKELIKE PINK", "France", 12, 45.00, at(2011, time.December, 9, 12, 50)},
}

const RFM = `CustomerID,Recency,Frequency,Monetary,Segment
17850,1,4,59.37,Champions
12583,0,2,135.0,Loyal Customers
13047,233,2,38.25,At Risk
`

const CustomerReturns = `Invoice,CustomerID,Description,Quantity,Country
C536379,14527,Discount,-1,United Kingdom
C536383,15311,SET OF 3 COLOURED  FLYING DUCKS,-1,United Kingdom
C536391,17548, POSTAGE ,-1,United Kingdom
C536506,17897,SET OF 3 COLOURED  FLYING DUCKS,-2,United Kingdom
C536548,12472,WOOD BLACK BOARD ANT WHITE FINISH,-1,Germany
C536549,12472,Manual,-1,Germany
`

const OpLosses = `Description,Quantity
Damages,-12
 damages ,-3
WET  DAMAGES,-20
thrown away,-50
supplier recall,-7
check,5
`

const TopProducts = `Description,Revenue
ALARM CLOCK BAKELIKE PINK,135.0
REGENCY CAKESTAND 3 TIER,38.25
WHITE METAL LANTERN,33.90
`

const SegmentDefinitions = `Segment,Recency,Frequency,Monetary,Description
Champions,R>=4,F>=4,M>=4,Bought recently and often
At Risk,R<=2,F>=3,M>=3,"Used to buy often, not lately"
`

// Parquet encodes rows the way the upstream extract is written: float
// customer ids and microsecond timestamps.
func Parquet(rows []Row) ([]byte, error) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "Invoice", Type: arrow.BinaryTypes.String},
		{Name: "CustomerID", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "Description", Type: arrow.BinaryTypes.String},
		{Name: "Country", Type: arrow.BinaryTypes.String},
		{Name: "Quantity", Type: arrow.PrimitiveTypes.Int64},
		{Name: "Revenue", Type: arrow.PrimitiveTypes.Float64},
		{Name: "InvoiceDate", Type: &arrow.TimestampType{Unit: arrow.Microsecond}, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	for _, r := range rows {
		b.Field(0).(*array.StringBuilder).Append(r.Invoice)
		if r.CustomerID == 0 {
			b.Field(1).(*array.Float64Builder).AppendNull()
		} else {
			b.Field(1).(*array.Float64Builder).Append(r.CustomerID)
		}
		b.Field(2).(*array.StringBuilder).Append(r.Description)
		b.Field(3).(*array.StringBuilder).Append(r.Country)
		b.Field(4).(*array.Int64Builder).Append(r.Quantity)
		b.Field(5).(*array.Float64Builder).Append(r.Revenue)
		if r.Date.IsZero() {
			b.Field(6).(*array.TimestampBuilder).AppendNull()
		} else {
			b.Field(6).(*array.TimestampBuilder).Append(arrow.Timestamp(r.Date.UnixMicro()))
		}
	}

	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	if err := pqarrow.WriteTable(tbl, &buf, 1024, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps()); err != nil {
		return nil, fmt.Errorf("failed to write parquet: %w", err)
	}
	return buf.Bytes(), nil
}

// Files returns every default input file keyed by name.
func Files() (map[string][]byte, error) {
	pq, err := Parquet(Rows)
	if err != nil {
		return nil, err
	}
	names := loader.DefaultFiles()
	return map[string][]byte{
		names.Transactions:       pq,
		names.RFM:                []byte(RFM),
		names.CustomerReturns:    []byte(CustomerReturns),
		names.OpLosses:           []byte(OpLosses),
		names.TopProducts:        []byte(TopProducts),
		names.SegmentDefinitions: []byte(SegmentDefinitions),
	}, nil
}

// WriteDir writes the default input files into dir.
func WriteDir(dir string) error {
	files, err := Files()
	if err != nil {
		return err
	}
	for name, b := range files {
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// MemorySource serves files from a map.
type MemorySource map[string][]byte

func (m MemorySource) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := m[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return b, nil
}
