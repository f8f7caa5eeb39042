package loader

import (
	"time"

	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

// Transaction is one invoice line of the customer transaction table.
type Transaction struct {
	Invoice      string       `json:"invoice"`
	CustomerID   string       `json:"customer_id"`
	Description  string       `json:"description"`
	Country      string       `json:"country"`
	Quantity     int64        `json:"quantity"`
	Revenue      float64      `json:"revenue"`
	InvoiceDate  time.Time    `json:"invoice_date"`
	InvoiceMonth cohort.Month `json:"invoice_month"`
	InvoiceYear  int          `json:"invoice_year"`
}

type RFMRecord struct {
	CustomerID string  `json:"customer_id"`
	Recency    float64 `json:"recency"`
	Frequency  float64 `json:"frequency"`
	Monetary   float64 `json:"monetary"`
	Segment    string  `json:"segment"`
}

// ReturnRecord is a customer return line. HasQuantity is false when the
// source cell was blank; such rows are not counted as returns.
type ReturnRecord struct {
	Invoice     string `json:"invoice"`
	CustomerID  string `json:"customer_id"`
	Description string `json:"description"`
	Country     string `json:"country"`
	Quantity    int64  `json:"quantity"`
	HasQuantity bool   `json:"-"`
}

// LossRecord is an operational write-off. Description holds the normalized
// text the category was matched on.
type LossRecord struct {
	Description string `json:"description"`
	Quantity    int64  `json:"quantity"`
	Category    string `json:"category"`
}

type TopProduct struct {
	Description string  `json:"description"`
	Revenue     float64 `json:"revenue"`
}

// Table is a summary file kept as-is for display.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Dataset is the loaded, read-only data context. Nothing mutates it after
// Load returns.
type Dataset struct {
	Transactions       []Transaction
	RFM                []RFMRecord
	Returns            []ReturnRecord
	Losses             []LossRecord
	TopProducts        []TopProduct
	SegmentDefinitions Table
	LoadedAt           time.Time
}

// CohortRecords projects the transactions onto the retention engine input.
func (d *Dataset) CohortRecords() []cohort.Record {
	out := make([]cohort.Record, len(d.Transactions))
	for i, t := range d.Transactions {
		out[i] = cohort.Record{CustomerID: t.CustomerID, Date: t.InvoiceDate}
	}
	return out
}

// Summary reports row counts per table for logs and health output.
func (d *Dataset) Summary() map[string]int {
	return map[string]int{
		"transactions":        len(d.Transactions),
		"rfm":                 len(d.RFM),
		"customer_returns":    len(d.Returns),
		"op_losses":           len(d.Losses),
		"top_products":        len(d.TopProducts),
		"segment_definitions": len(d.SegmentDefinitions.Rows),
	}
}
