package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// MovementObserver is notified after each movement is written.
type MovementObserver interface {
	ObserveMovement(m Movement)
}

// Ledger owns stock balances and the append-only movement log.
type Ledger struct {
	observer MovementObserver
	now      func() time.Time
}

// NewLedger builds a Ledger. observer may be nil.
func NewLedger(observer MovementObserver) *Ledger {
	return &Ledger{observer: observer, now: func() time.Time { return time.Now().UTC() }}
}

// ResolveWarehouse picks the explicit warehouse, else the company default, else the
// first active warehouse.
func (l *Ledger) ResolveWarehouse(ctx context.Context, store WarehouseReader, companyID, warehouseID int64) (masterdata.Warehouse, error) {
	if warehouseID != 0 {
		wh, err := store.GetWarehouse(ctx, companyID, warehouseID)
		if err != nil {
			return masterdata.Warehouse{}, err
		}
		if !wh.IsActive {
			return masterdata.Warehouse{}, shared.NewValidationError(fmt.Sprintf("warehouse %d is inactive", wh.ID), "warehouse_id", "inactive")
		}
		return wh, nil
	}
	wh, err := store.DefaultWarehouse(ctx, companyID)
	if err == nil {
		return wh, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return masterdata.Warehouse{}, err
	}
	wh, err = store.FirstActiveWarehouse(ctx, companyID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return masterdata.Warehouse{}, shared.NotFoundf("no active warehouse for company %d", companyID)
		}
		return masterdata.Warehouse{}, err
	}
	return wh, nil
}

// Apply moves stock by the signed quantity and appends one movement. The resulting
// quantity never goes below zero.
func (l *Ledger) Apply(ctx context.Context, store LedgerStore, e Entry) (Movement, error) {
	if e.Quantity.IsZero() {
		return Movement{}, shared.NewValidationError("movement quantity must be non zero", "quantity", "zero")
	}
	if e.ProductID == 0 {
		return Movement{}, shared.NewValidationError("movement product is required", "product_id", "required")
	}
	if e.UnitPrice.IsNegative() {
		return Movement{}, shared.NewValidationError("unit price must not be negative", "unit_price", "min")
	}
	wh, err := l.ResolveWarehouse(ctx, store, e.CompanyID, e.WarehouseID)
	if err != nil {
		return Movement{}, err
	}
	stock, err := store.LockStock(ctx, e.CompanyID, e.ProductID, wh.ID)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: lock stock: %w", err)
	}
	next := stock.Quantity.Add(e.Quantity)
	if next.IsNegative() {
		return Movement{}, &shared.InsufficientStockError{
			ProductID:   e.ProductID,
			WarehouseID: wh.ID,
			Requested:   e.Quantity.Neg(),
			Available:   stock.Quantity,
		}
	}
	stock.Quantity = next
	stock.AvailableQty = stock.AvailableQty.Add(e.Quantity)
	if err := store.UpdateStock(ctx, stock); err != nil {
		return Movement{}, fmt.Errorf("inventory: update stock: %w", err)
	}

	at := e.MovementDate
	if at.IsZero() {
		at = l.now()
	}
	m := Movement{
		CompanyID:       e.CompanyID,
		ProductID:       e.ProductID,
		WarehouseID:     wh.ID,
		Type:            e.Type,
		Quantity:        e.Quantity,
		UnitPrice:       e.UnitPrice,
		TotalValue:      e.Quantity.Mul(e.UnitPrice).Round(2),
		BalanceAfter:    next,
		ReferenceType:   e.ReferenceType,
		ReferenceID:     e.ReferenceID,
		ReferenceNumber: e.ReferenceNumber,
		Note:            e.Note,
		MovementDate:    at,
		CreatedBy:       e.ActorID,
	}
	m.ID, err = store.InsertMovement(ctx, m)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	if l.observer != nil {
		l.observer.ObserveMovement(m)
	}
	return m, nil
}

// Reverse applies the negated quantity of m under the reversal reference type.
func (l *Ledger) Reverse(ctx context.Context, store LedgerStore, m Movement, actorID int64) (Movement, error) {
	if m.IsReversal() {
		return Movement{}, shared.InvalidTransitionf("movement %d is already a reversal", m.ID)
	}
	return l.Apply(ctx, store, Entry{
		CompanyID:       m.CompanyID,
		ProductID:       m.ProductID,
		WarehouseID:     m.WarehouseID,
		Type:            m.Type,
		Quantity:        m.Quantity.Neg(),
		UnitPrice:       m.UnitPrice,
		ReferenceType:   m.ReferenceType + ReversalSuffix,
		ReferenceID:     m.ReferenceID,
		ReferenceNumber: m.ReferenceNumber,
		Note:            fmt.Sprintf("reversal of movement %d", m.ID),
		ActorID:         actorID,
	})
}

// ReverseReference reverses every movement tied to the document, newest first. A
// reference that was already reversed is left untouched.
func (l *Ledger) ReverseReference(ctx context.Context, store LedgerStore, companyID int64, referenceType string, referenceID int64, actorID int64) ([]Movement, error) {
	reversed, err := store.ListMovementsByReference(ctx, companyID, referenceType+ReversalSuffix, referenceID)
	if err != nil {
		return nil, fmt.Errorf("inventory: list reversals: %w", err)
	}
	if len(reversed) > 0 {
		return nil, nil
	}
	originals, err := store.ListMovementsByReference(ctx, companyID, referenceType, referenceID)
	if err != nil {
		return nil, fmt.Errorf("inventory: list movements: %w", err)
	}
	out := make([]Movement, 0, len(originals))
	for i := len(originals) - 1; i >= 0; i-- {
		m, err := l.Reverse(ctx, store, originals[i], actorID)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// NetQuantity sums movement quantities.
func NetQuantity(movements []Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range movements {
		total = total.Add(m.Quantity)
	}
	return total
}
