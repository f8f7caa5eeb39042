package loader

import (
	"context"
	"fmt"

	"github.com/ellavondegurechaff/retaildash/dashboard/database/repositories"
	"github.com/ellavondegurechaff/retaildash/internal/domain/cohort"
)

// RepositoryTransactions reads the transaction table from the database
// instead of the parquet extract.
type RepositoryTransactions struct {
	Repo repositories.TransactionRepository
}

func (r *RepositoryTransactions) Transactions(ctx context.Context) ([]Transaction, error) {
	rows, err := r.Repo.GetAll(ctx)
	if err != nil {
		return nil, loadErr("retail_transactions", fmt.Errorf("failed to query transactions: %w", err))
	}
	out := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		tx := Transaction{
			Invoice:     row.Invoice,
			CustomerID:  row.CustomerID,
			Description: row.Description,
			Country:     row.Country,
			Quantity:    row.Quantity,
			Revenue:     row.Revenue,
			InvoiceDate: row.InvoiceDate.UTC(),
		}
		if !row.InvoiceDate.IsZero() {
			tx.InvoiceMonth = cohort.MonthOf(tx.InvoiceDate)
			tx.InvoiceYear = tx.InvoiceDate.Year()
		}
		out = append(out, tx)
	}
	return out, nil
}
