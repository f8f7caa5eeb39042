package repositories

//go:generate mockgen -source=transaction_repository.go -destination=mock/transaction_repository.go -package=mock

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/ellavondegurechaff/retaildash/dashboard/config"
	"github.com/ellavondegurechaff/retaildash/dashboard/database/models"
	"github.com/ellavondegurechaff/retaildash/dashboard/logger"
)

// TransactionRepository is read-only; the dashboard never writes retail data.
type TransactionRepository interface {
	GetAll(ctx context.Context) ([]*models.Transaction, error)
}

type transactionRepository struct {
	db *bun.DB
}

func NewTransactionRepository(db *bun.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetAll(ctx context.Context) ([]*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultLoadTimeout)
	defer cancel()

	start := time.Now()
	var txs []*models.Transaction
	query := r.db.NewSelect().
		Model(&txs).
		Order("invoice_date ASC", "id ASC")
	err := query.Scan(ctx)
	logger.LogQuery("retail_transactions.GetAll", time.Since(start), err)

	return txs, err
}
