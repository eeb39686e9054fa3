// Package totals computes line and header amounts for business documents.
package totals

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// LineInput is the priced part of a document line.
type LineInput struct {
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	TaxRate        decimal.Decimal
	DiscountAmount decimal.Decimal
}

// LineResult holds the computed amounts of one line.
type LineResult struct {
	Subtotal  decimal.Decimal
	Taxable   decimal.Decimal
	TaxAmount decimal.Decimal
	Amount    decimal.Decimal
}

// Result holds per-line results in input order plus header totals.
type Result struct {
	Lines          []LineResult
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

// CalculateLine computes one line. Tax and amount are rounded to cents.
func CalculateLine(in LineInput) LineResult {
	subtotal := in.Quantity.Mul(in.UnitPrice).Round(2)
	taxable := subtotal.Sub(in.DiscountAmount)
	tax := taxable.Mul(in.TaxRate).Div(hundred).Round(2)
	return LineResult{
		Subtotal:  subtotal,
		Taxable:   taxable,
		TaxAmount: tax,
		Amount:    taxable.Add(tax),
	}
}

// Calculate computes every line and sums the header. The header is always the sum of
// the rounded line values.
func Calculate(lines []LineInput) Result {
	res := Result{Lines: make([]LineResult, 0, len(lines))}
	for _, in := range lines {
		lr := CalculateLine(in)
		res.Lines = append(res.Lines, lr)
		res.Subtotal = res.Subtotal.Add(lr.Subtotal)
		res.DiscountAmount = res.DiscountAmount.Add(in.DiscountAmount)
		res.TaxAmount = res.TaxAmount.Add(lr.TaxAmount)
	}
	res.Total = res.Subtotal.Sub(res.DiscountAmount).Add(res.TaxAmount)
	return res
}

// Validate checks the numeric ranges of the lines.
func Validate(lines []LineInput) error {
	if len(lines) == 0 {
		return shared.NewValidationError("at least one line is required", "lines", "required")
	}
	verr := shared.NewValidationError("invalid line amounts")
	for i, in := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		switch {
		case !in.Quantity.IsPositive():
			verr.Add(field+".quantity", "must be greater than zero")
		case in.UnitPrice.IsNegative():
			verr.Add(field+".unit_price", "must not be negative")
		case in.TaxRate.IsNegative():
			verr.Add(field+".tax_rate", "must not be negative")
		case in.DiscountAmount.IsNegative():
			verr.Add(field+".discount_amount", "must not be negative")
		case in.DiscountAmount.GreaterThan(in.Quantity.Mul(in.UnitPrice).Round(2)):
			verr.Add(field+".discount_amount", "must not exceed the line subtotal")
		}
	}
	if len(verr.Details) > 0 {
		return verr
	}
	return nil
}
