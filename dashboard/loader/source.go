package loader

//go:generate mockgen -source=source.go -destination=mock/source.go -package=mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Source returns the raw bytes of a named input file.
type Source interface {
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// TransactionSource yields the customer transaction table.
type TransactionSource interface {
	Transactions(ctx context.Context) ([]Transaction, error)
}

// LocalSource reads input files from a directory on disk.
type LocalSource struct {
	Dir string
}

func NewLocalSource(dir string) *LocalSource {
	return &LocalSource{Dir: dir}
}

func (s *LocalSource) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(s.Dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return b, nil
}

func (s *LocalSource) String() string {
	return "local:" + s.Dir
}
