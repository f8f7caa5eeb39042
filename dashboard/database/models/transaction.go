package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Transaction mirrors one row of the loyalty-customer transaction extract.
type Transaction struct {
	bun.BaseModel `bun:"table:retail_transactions,alias:rt"`

	ID          int64     `bun:"id,pk,autoincrement"`
	Invoice     string    `bun:"invoice,notnull"`
	CustomerID  string    `bun:"customer_id"`
	Description string    `bun:"description"`
	Country     string    `bun:"country"`
	Quantity    int64     `bun:"quantity,notnull"`
	Revenue     float64   `bun:"revenue,notnull"`
	InvoiceDate time.Time `bun:"invoice_date,nullzero"`
}
