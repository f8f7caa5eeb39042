package loader

import (
	"errors"
	"fmt"
)

// ErrLoad is wrapped by every failure to read or decode an input file.
var ErrLoad = errors.New("load failure")

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrMalformed     = errors.New("malformed value")
)

type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrLoad, e.File, e.Err)
}

func (e *LoadError) Unwrap() []error {
	return []error{ErrLoad, e.Err}
}

func loadErr(file string, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{File: file, Err: err}
}
