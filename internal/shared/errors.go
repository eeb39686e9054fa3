package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates a missing party, product, warehouse or document.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a request that breaks a business rule.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock indicates a movement or check exceeding available stock.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrCreditLimitExceeded indicates a customer exposure above the credit limit.
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")
	// ErrInvalidStatusTransition indicates a lifecycle move the document does not allow.
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	// ErrDuplicateEntry indicates a uniqueness violation.
	ErrDuplicateEntry = errors.New("duplicate entry")
)

// ValidationError carries field level details in addition to ErrValidation.
type ValidationError struct {
	Message string
	Details map[string]string
}

// NewValidationError builds a ValidationError with an optional single field detail.
func NewValidationError(message string, kv ...string) *ValidationError {
	v := &ValidationError{Message: message}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Add(kv[i], kv[i+1])
	}
	return v
}

// Add records a field detail.
func (e *ValidationError) Add(field, msg string) {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[field] = msg
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Details[k])
	}
	return fmt.Sprintf("%s: %s (%s)", ErrValidation, e.Message, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError names the product and the shortfall.
type InsufficientStockError struct {
	ProductID   int64
	WarehouseID int64
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

// Shortfall returns how many units are missing.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

func (e *InsufficientStockError) Error() string {
	scope := "all warehouses"
	if e.WarehouseID != 0 {
		scope = fmt.Sprintf("warehouse %d", e.WarehouseID)
	}
	return fmt.Sprintf("%s: product %d in %s requested %s available %s short by %s",
		ErrInsufficientStock, e.ProductID, scope, e.Requested.String(), e.Available.String(), e.Shortfall().String())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// CreditLimitError reports the remaining headroom of a customer.
type CreditLimitError struct {
	PartyID   int64
	Limit     decimal.Decimal
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

// Headroom returns the amount still available under the limit, never below zero.
func (e *CreditLimitError) Headroom() decimal.Decimal {
	h := e.Limit.Sub(e.Balance)
	if h.IsNegative() {
		return decimal.Zero
	}
	return h
}

func (e *CreditLimitError) Error() string {
	return fmt.Sprintf("%s: party %d limit %s balance %s requested %s headroom %s",
		ErrCreditLimitExceeded, e.PartyID, e.Limit.StringFixed(2), e.Balance.StringFixed(2), e.Requested.StringFixed(2), e.Headroom().StringFixed(2))
}

func (e *CreditLimitError) Unwrap() error { return ErrCreditLimitExceeded }

// NotFoundf wraps ErrNotFound with a formatted subject.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// InvalidTransitionf wraps ErrInvalidStatusTransition with a formatted reason.
func InvalidTransitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidStatusTransition, fmt.Sprintf(format, args...))
}
