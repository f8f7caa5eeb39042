package cohort

import (
	"errors"
	"fmt"
)

// ErrIntegrity marks data that cannot produce a meaningful retention ratio.
var ErrIntegrity = errors.New("data integrity anomaly")

type IntegrityError struct {
	Cohort     Month
	Offset     int
	CustomerID string
	Reason     string
}

func (e *IntegrityError) Error() string {
	if e.CustomerID != "" {
		return fmt.Sprintf("%s: cohort %s offset %d customer %s: %s", ErrIntegrity, e.Cohort, e.Offset, e.CustomerID, e.Reason)
	}
	return fmt.Sprintf("%s: cohort %s offset %d: %s", ErrIntegrity, e.Cohort, e.Offset, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}
