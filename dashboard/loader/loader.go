package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ellavondegurechaff/retaildash/dashboard/logger"
)

// Files names the six input files relative to the source root.
type Files struct {
	Transactions       string `toml:"transactions"`
	RFM                string `toml:"rfm"`
	CustomerReturns    string `toml:"customer_returns"`
	OpLosses           string `toml:"op_losses"`
	TopProducts        string `toml:"top_products"`
	SegmentDefinitions string `toml:"segment_definitions"`
}

func DefaultFiles() Files {
	return Files{
		Transactions:       "online_retail_customers.parquet",
		RFM:                "online_retail_rfm.csv",
		CustomerReturns:    "online_retail_customer_returns.csv",
		OpLosses:           "online_retail_op_losses.csv",
		TopProducts:        "online_retail_top_products.csv",
		SegmentDefinitions: "online_retail_segment_definitions.csv",
	}
}

type Loader struct {
	source       Source
	transactions TransactionSource
	files        Files
	taxonomy     *Taxonomy
}

type Option func(*Loader)

// WithTransactionSource replaces the parquet transaction file with another
// provider, such as the database repository.
func WithTransactionSource(ts TransactionSource) Option {
	return func(l *Loader) {
		l.transactions = ts
	}
}

func WithTaxonomy(t *Taxonomy) Option {
	return func(l *Loader) {
		l.taxonomy = t
	}
}

func New(source Source, files Files, opts ...Option) *Loader {
	l := &Loader{
		source:   source,
		files:    files,
		taxonomy: DefaultTaxonomy(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.transactions == nil {
		l.transactions = &ParquetTransactions{Source: source, Name: files.Transactions}
	}
	return l
}

func (l *Loader) Taxonomy() *Taxonomy {
	return l.taxonomy
}

// Load reads every input concurrently. The first failure cancels the other
// reads and no partial dataset is returned.
func (l *Loader) Load(ctx context.Context) (*Dataset, error) {
	start := time.Now()
	ds := &Dataset{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ds.Transactions, err = l.transactions.Transactions(gctx)
		return err
	})
	g.Go(func() (err error) {
		ds.RFM, err = readWith(gctx, l.source, l.files.RFM, decodeRFM)
		return err
	})
	g.Go(func() (err error) {
		ds.Returns, err = readWith(gctx, l.source, l.files.CustomerReturns, func(b []byte) ([]ReturnRecord, error) {
			return decodeReturns(b, l.taxonomy)
		})
		return err
	})
	g.Go(func() (err error) {
		ds.Losses, err = readWith(gctx, l.source, l.files.OpLosses, func(b []byte) ([]LossRecord, error) {
			return decodeLosses(b, l.taxonomy)
		})
		return err
	})
	g.Go(func() (err error) {
		ds.TopProducts, err = readWith(gctx, l.source, l.files.TopProducts, decodeTopProducts)
		return err
	})
	g.Go(func() (err error) {
		ds.SegmentDefinitions, err = readWith(gctx, l.source, l.files.SegmentDefinitions, decodeTable)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds.LoadedAt = time.Now()
	logger.LogData("Dataset loaded",
		slog.Any("rows", ds.Summary()),
		slog.Duration("took", time.Since(start)))
	return ds, nil
}

// Lister is implemented by sources that can enumerate the files they hold.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Missing returns the configured input files the source does not hold, in
// load order. Sources that cannot list report nothing.
func (l *Loader) Missing(ctx context.Context) ([]string, error) {
	lister, ok := l.source.(Lister)
	if !ok {
		return nil, nil
	}
	names, err := lister.List(ctx)
	if err != nil {
		return nil, loadErr(fmt.Sprint(l.source), err)
	}
	have := make(map[string]bool, len(names))
	for _, name := range names {
		have[name] = true
	}

	var want []string
	if pt, ok := l.transactions.(*ParquetTransactions); ok {
		want = append(want, pt.Name)
	}
	want = append(want, l.files.RFM, l.files.CustomerReturns, l.files.OpLosses,
		l.files.TopProducts, l.files.SegmentDefinitions)

	var missing []string
	for _, name := range want {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

func readWith[T any](ctx context.Context, src Source, name string, decode func([]byte) (T, error)) (T, error) {
	var zero T
	b, err := src.ReadFile(ctx, name)
	if err != nil {
		return zero, loadErr(name, err)
	}
	v, err := decode(b)
	if err != nil {
		return zero, loadErr(name, err)
	}
	return v, nil
}
