package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrPolicy matches every PolicyError via errors.Is.
	ErrPolicy = stderrors.New("cash policy rejected")
	// ErrInvariant matches every InvariantViolation via errors.Is.
	ErrInvariant = stderrors.New("computation invariant violated")
)

// ErrValidation rejects a single row before it is stored.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}

// PolicyError rejects a whole accrual call for a portfolio. Nothing is posted
// when one is returned.
type PolicyError struct {
	PortfolioID string
	Field       string
	Message     string
}

func (e *PolicyError) Error() string {
	if e.PortfolioID == "" {
		return fmt.Sprintf("cash policy: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("cash policy %s: %s: %s", e.PortfolioID, e.Field, e.Message)
}

func (e *PolicyError) Is(target error) bool { return target == ErrPolicy }

// InvariantViolation is a programming-contract failure: it must never happen
// on valid input and always aborts the computation.
type InvariantViolation struct {
	Op            string
	TransactionID string
	Message       string
}

func (e *InvariantViolation) Error() string {
	if e.TransactionID == "" {
		return fmt.Sprintf("invariant violation in %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("invariant violation in %s (tx %s): %s", e.Op, e.TransactionID, e.Message)
}

func (e *InvariantViolation) Is(target error) bool { return target == ErrInvariant }

// AnomalyKind classifies a non-fatal data problem.
type AnomalyKind string

const (
	AnomalyUnparsableAmount   AnomalyKind = "unparsable_amount"
	AnomalyUnparsableQuantity AnomalyKind = "unparsable_quantity"
	AnomalyUnparsableDate     AnomalyKind = "unparsable_date"
	AnomalyUnknownType        AnomalyKind = "unknown_type"
	AnomalyMissingPrice       AnomalyKind = "missing_price"
	AnomalyStalePrice         AnomalyKind = "stale_price"
	AnomalyNegativeCash       AnomalyKind = "negative_cash"
	AnomalyRejected           AnomalyKind = "rejected_transaction"
)

// Anomaly is a degraded record: the offending field or contribution was
// skipped and processing continued. It carries enough context for the API
// layer to map it to a structured error code.
type Anomaly struct {
	Kind          AnomalyKind
	TransactionID string
	Ticker        string
	Field         string
	Date          string
	Message       string
}

func (a Anomaly) Error() string {
	msg := string(a.Kind)
	if a.TransactionID != "" {
		msg += " tx=" + a.TransactionID
	}
	if a.Ticker != "" {
		msg += " ticker=" + a.Ticker
	}
	if a.Field != "" {
		msg += " field=" + a.Field
	}
	if a.Date != "" {
		msg += " date=" + a.Date
	}
	if a.Message != "" {
		msg += ": " + a.Message
	}
	return msg
}
