package loader_test

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/ellavondegurechaff/retaildash/dashboard/database/models"
	repomock "github.com/ellavondegurechaff/retaildash/dashboard/database/repositories/mock"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader/loadertest"
	"github.com/ellavondegurechaff/retaildash/dashboard/loader/mock"
)

func sourceMock(t *testing.T, files map[string][]byte) *mock.MockSource {
	src := mock.NewMockSource(gomock.NewController(t))
	src.EXPECT().
		ReadFile(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, name string) ([]byte, error) {
			b, ok := files[name]
			if !ok {
				return nil, os.ErrNotExist
			}
			return b, nil
		}).
		AnyTimes()
	return src
}

func fixtureFiles(t *testing.T) map[string][]byte {
	t.Helper()
	files, err := loadertest.Files()
	if err != nil {
		t.Fatalf("loadertest.Files() error = %v", err)
	}
	return files
}

func TestLoader_Load(t *testing.T) {
	l := loader.New(sourceMock(t, fixtureFiles(t)), loader.DefaultFiles())

	ds, err := l.Load(context.Background())
	if err != nil {
		t.Fatalf("Loader.Load() error = %v", err)
	}

	want := map[string]int{
		"transactions":        len(loadertest.Rows),
		"rfm":                 3,
		"customer_returns":    3,
		"op_losses":           6,
		"top_products":        3,
		"segment_definitions": 2,
	}
	for table, n := range want {
		if got := ds.Summary()[table]; got != n {
			t.Errorf("Loader.Load() %s rows = %d, want %d", table, got, n)
		}
	}

	first := ds.Transactions[0]
	if first.CustomerID != "17850" {
		t.Errorf("CustomerID = %q, want 17850", first.CustomerID)
	}
	if first.InvoiceMonth.String() != "2010-12" || first.InvoiceYear != 2010 {
		t.Errorf("derived month/year = %s/%d, want 2010-12/2010", first.InvoiceMonth, first.InvoiceYear)
	}
	if !first.InvoiceDate.Equal(time.Date(2010, time.December, 1, 8, 26, 0, 0, time.UTC)) {
		t.Errorf("InvoiceDate = %v", first.InvoiceDate)
	}

	for _, r := range ds.Returns {
		if r.Description == "Discount" || r.Description == "Manual" || r.Description == "POSTAGE" {
			t.Errorf("excluded return line %q kept", r.Description)
		}
	}

	for _, l := range ds.Losses {
		if l.Description == "damages" && l.Category != "Damaged Stock" {
			t.Errorf("loss %q category = %q, want Damaged Stock", l.Description, l.Category)
		}
		if l.Description == "supplier recall" && l.Category != "Other" {
			t.Errorf("loss %q category = %q, want Other", l.Description, l.Category)
		}
	}
}

func TestLoader_LoadFailure(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string][]byte)
		wantFile string
	}{
		{
			name:     "missing rfm",
			mutate:   func(f map[string][]byte) { delete(f, loader.DefaultFiles().RFM) },
			wantFile: loader.DefaultFiles().RFM,
		},
		{
			name: "malformed parquet",
			mutate: func(f map[string][]byte) {
				f[loader.DefaultFiles().Transactions] = []byte("not a parquet file")
			},
			wantFile: loader.DefaultFiles().Transactions,
		},
		{
			name: "losses without quantity column",
			mutate: func(f map[string][]byte) {
				f[loader.DefaultFiles().OpLosses] = []byte("Description\ndamages\n")
			},
			wantFile: loader.DefaultFiles().OpLosses,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := fixtureFiles(t)
			tt.mutate(files)

			ds, err := loader.New(sourceMock(t, files), loader.DefaultFiles()).Load(context.Background())
			if ds != nil {
				t.Errorf("Loader.Load() returned a partial dataset")
			}
			if !errors.Is(err, loader.ErrLoad) {
				t.Fatalf("Loader.Load() error = %v, want ErrLoad", err)
			}
			var le *loader.LoadError
			if !errors.As(err, &le) || le.File != tt.wantFile {
				t.Errorf("Loader.Load() failed file = %v, want %s", err, tt.wantFile)
			}
		})
	}
}

func TestLoader_TransactionSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	txs := mock.NewMockTransactionSource(ctrl)
	txs.EXPECT().
		Transactions(gomock.Any()).
		Return([]loader.Transaction{{Invoice: "1", CustomerID: "A"}}, nil)

	files := fixtureFiles(t)
	delete(files, loader.DefaultFiles().Transactions)

	ds, err := loader.New(sourceMock(t, files), loader.DefaultFiles(), loader.WithTransactionSource(txs)).
		Load(context.Background())
	if err != nil {
		t.Fatalf("Loader.Load() error = %v", err)
	}
	if len(ds.Transactions) != 1 {
		t.Errorf("Loader.Load() transactions = %d, want 1", len(ds.Transactions))
	}
}

func TestRepositoryTransactions(t *testing.T) {
	repo := repomock.NewMockTransactionRepository(gomock.NewController(t))
	repo.EXPECT().
		GetAll(gomock.Any()).
		Return([]*models.Transaction{
			{Invoice: "536365", CustomerID: "17850", Quantity: 6, Revenue: 15.3,
				InvoiceDate: time.Date(2010, time.December, 1, 8, 26, 0, 0, time.UTC)},
			{Invoice: "536999", CustomerID: "", Quantity: 1, Revenue: 2},
		}, nil)

	got, err := (&loader.RepositoryTransactions{Repo: repo}).Transactions(context.Background())
	if err != nil {
		t.Fatalf("RepositoryTransactions.Transactions() error = %v", err)
	}
	if got[0].InvoiceMonth.String() != "2010-12" || got[0].InvoiceYear != 2010 {
		t.Errorf("derived month = %s year = %d", got[0].InvoiceMonth, got[0].InvoiceYear)
	}
	if got[1].InvoiceYear != 0 {
		t.Errorf("undated row year = %d, want 0", got[1].InvoiceYear)
	}
}

func TestRepositoryTransactions_Error(t *testing.T) {
	repo := repomock.NewMockTransactionRepository(gomock.NewController(t))
	repo.EXPECT().GetAll(gomock.Any()).Return(nil, errors.New("connection refused"))

	_, err := (&loader.RepositoryTransactions{Repo: repo}).Transactions(context.Background())
	if !errors.Is(err, loader.ErrLoad) {
		t.Errorf("RepositoryTransactions.Transactions() error = %v, want ErrLoad", err)
	}
}

func TestDecodeTransactions_Nulls(t *testing.T) {
	b, err := loadertest.Parquet([]loadertest.Row{
		{Invoice: "1", CustomerID: 12346, Description: "A", Country: "UK", Quantity: 1, Revenue: 1.5,
			Date: time.Date(2011, time.January, 18, 10, 1, 0, 0, time.UTC)},
		{Invoice: "2", Description: "B", Country: "UK", Quantity: 2, Revenue: 3},
	})
	if err != nil {
		t.Fatalf("loadertest.Parquet() error = %v", err)
	}

	got, err := loader.DecodeTransactions(context.Background(), b)
	if err != nil {
		t.Fatalf("DecodeTransactions() error = %v", err)
	}
	if got[0].CustomerID != "12346" {
		t.Errorf("CustomerID = %q, want 12346", got[0].CustomerID)
	}
	if got[1].CustomerID != "" || !got[1].InvoiceDate.IsZero() {
		t.Errorf("null row = %+v, want empty customer and zero date", got[1])
	}
}

func TestLocalSource(t *testing.T) {
	dir := t.TempDir()
	if err := loadertest.WriteDir(dir); err != nil {
		t.Fatalf("WriteDir() error = %v", err)
	}

	ds, err := loader.New(loader.NewLocalSource(dir), loader.DefaultFiles()).Load(context.Background())
	if err != nil {
		t.Fatalf("Loader.Load() error = %v", err)
	}
	if len(ds.TopProducts) != 3 {
		t.Errorf("TopProducts = %d, want 3", len(ds.TopProducts))
	}

	_, err = loader.NewLocalSource(t.TempDir()).ReadFile(context.Background(), "missing.csv")
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile() error = %v, want ErrNotExist", err)
	}
}

type listSource struct {
	loadertest.MemorySource
	err error
}

func (s listSource) List(context.Context) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	names := make([]string, 0, len(s.MemorySource))
	for name := range s.MemorySource {
		names = append(names, name)
	}
	return names, nil
}

func TestLoader_Missing(t *testing.T) {
	files := fixtureFiles(t)
	delete(files, loader.DefaultFiles().OpLosses)
	delete(files, loader.DefaultFiles().Transactions)

	tests := []struct {
		name   string
		source loader.Source
		opts   []loader.Option
		want   []string
	}{
		{
			name:   "parquet transactions",
			source: listSource{MemorySource: files},
			want:   []string{loader.DefaultFiles().Transactions, loader.DefaultFiles().OpLosses},
		},
		{
			name:   "database transactions",
			source: listSource{MemorySource: files},
			opts:   []loader.Option{loader.WithTransactionSource(&loader.RepositoryTransactions{})},
			want:   []string{loader.DefaultFiles().OpLosses},
		},
		{
			name:   "source cannot list",
			source: loadertest.MemorySource(files),
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loader.New(tt.source, loader.DefaultFiles(), tt.opts...).Missing(context.Background())
			if err != nil {
				t.Fatalf("Missing() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Missing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoader_MissingListError(t *testing.T) {
	src := listSource{err: errors.New("access denied")}
	_, err := loader.New(src, loader.DefaultFiles()).Missing(context.Background())
	if !errors.Is(err, loader.ErrLoad) {
		t.Errorf("Missing() error = %v, want ErrLoad", err)
	}
}
