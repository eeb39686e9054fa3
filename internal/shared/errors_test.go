package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsUnwrapToSentinels(t *testing.T) {
	stock := &InsufficientStockError{ProductID: 7, WarehouseID: 2, Requested: decimal.NewFromInt(5), Available: decimal.NewFromInt(3)}
	wrapped := fmt.Errorf("create delivery: %w", stock)
	require.ErrorIs(t, wrapped, ErrInsufficientStock)

	var target *InsufficientStockError
	require.True(t, errors.As(wrapped, &target))
	assert.True(t, target.Shortfall().Equal(decimal.NewFromInt(2)))
	assert.Contains(t, stock.Error(), "product 7")

	credit := &CreditLimitError{PartyID: 1, Limit: decimal.NewFromInt(1000), Balance: decimal.NewFromInt(800), Requested: decimal.NewFromInt(500)}
	require.ErrorIs(t, credit, ErrCreditLimitExceeded)
	assert.True(t, credit.Headroom().Equal(decimal.NewFromInt(200)))

	over := &CreditLimitError{Limit: decimal.NewFromInt(100), Balance: decimal.NewFromInt(150)}
	assert.True(t, over.Headroom().IsZero())

	v := NewValidationError("bad line", "lines[0].quantity", "must be positive")
	require.ErrorIs(t, v, ErrValidation)
	assert.Contains(t, v.Error(), "lines[0].quantity")

	require.ErrorIs(t, NotFoundf("product %d", 9), ErrNotFound)
	require.ErrorIs(t, InvalidTransitionf("document is %s", "COMPLETED"), ErrInvalidStatusTransition)
}
