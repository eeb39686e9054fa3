// Package guard runs the read-only eligibility, stock and credit checks that gate every
// document write.
package guard

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/parties"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Flow is the trading side of a document.
type Flow string

const (
	FlowSales    Flow = "sales"
	FlowPurchase Flow = "purchase"
)

// StockScope selects how outbound availability is checked.
type StockScope int

const (
	// StockNone skips availability checks.
	StockNone StockScope = iota
	// StockOrder sums availability over every active warehouse. Products without
	// any stock row are accepted as backorders.
	StockOrder
	// StockWarehouse checks the single resolved warehouse. A missing row counts as zero.
	StockWarehouse
)

// Line is one requested product quantity.
type Line struct {
	ProductID int64
	Quantity  decimal.Decimal
}

// Request describes a candidate document.
type Request struct {
	CompanyID   int64
	Flow        Flow
	Lines       []Line
	Stock       StockScope
	WarehouseID int64
	// Party enables the credit check on the sales flow when set.
	Party *parties.Party
	Total decimal.Decimal
}

// Reader is the lookup surface the guard needs.
type Reader interface {
	GetProduct(ctx context.Context, companyID, id int64) (masterdata.Product, error)
	Availability(ctx context.Context, companyID, productID, warehouseID int64) (inventory.Availability, error)
}

// Rejection reasons reported to the observer.
const (
	ReasonEligibility = "eligibility"
	ReasonStock       = "stock"
	ReasonCredit      = "credit"
)

// Observer counts rejected checks.
type Observer interface {
	ObserveGuardRejection(flow, reason string)
}

// Guard evaluates requests. The zero value is usable.
type Guard struct {
	observer Observer
}

// New builds a Guard. observer may be nil.
func New(observer Observer) *Guard {
	return &Guard{observer: observer}
}

// Check validates the request in line order and returns the resolved products keyed by
// id. The first failing line aborts.
func (g *Guard) Check(ctx context.Context, reader Reader, req Request) (map[int64]masterdata.Product, error) {
	requested := make(map[int64]decimal.Decimal, len(req.Lines))
	for _, l := range req.Lines {
		requested[l.ProductID] = requested[l.ProductID].Add(l.Quantity)
	}
	products := make(map[int64]masterdata.Product, len(requested))
	checked := make(map[int64]bool, len(requested))
	for i, l := range req.Lines {
		product, ok := products[l.ProductID]
		if !ok {
			var err error
			product, err = reader.GetProduct(ctx, req.CompanyID, l.ProductID)
			if err != nil {
				return nil, err
			}
			products[l.ProductID] = product
		}
		if err := eligible(req.Flow, i, product); err != nil {
			g.reject(req.Flow, ReasonEligibility)
			return nil, err
		}
		if req.Stock == StockNone || !product.TrackInventory || checked[product.ID] {
			continue
		}
		checked[product.ID] = true
		if err := g.checkStock(ctx, reader, req, product.ID, requested[product.ID]); err != nil {
			return nil, err
		}
	}
	if err := g.Credit(req.Flow, req.Party, req.Total); err != nil {
		return nil, err
	}
	return products, nil
}

func eligible(flow Flow, idx int, p masterdata.Product) error {
	field := fmt.Sprintf("lines[%d].product_id", idx)
	if !p.IsActive {
		return shared.NewValidationError(fmt.Sprintf("product %s is inactive", p.Code), field, "inactive")
	}
	switch flow {
	case FlowSales:
		if !p.IsSaleable {
			return shared.NewValidationError(fmt.Sprintf("product %s is not saleable", p.Code), field, "not_saleable")
		}
	case FlowPurchase:
		if !p.IsPurchasable {
			return shared.NewValidationError(fmt.Sprintf("product %s is not purchasable", p.Code), field, "not_purchasable")
		}
	default:
		return shared.NewValidationError(fmt.Sprintf("unknown flow %q", flow), "flow", "oneof")
	}
	return nil
}

func (g *Guard) checkStock(ctx context.Context, reader Reader, req Request, productID int64, want decimal.Decimal) error {
	warehouseID := int64(0)
	if req.Stock == StockWarehouse {
		warehouseID = req.WarehouseID
	}
	avail, err := reader.Availability(ctx, req.CompanyID, productID, warehouseID)
	if err != nil {
		return err
	}
	if req.Stock == StockOrder && !avail.Quantity.IsPositive() {
		return nil
	}
	if avail.Quantity.GreaterThanOrEqual(want) {
		return nil
	}
	g.reject(req.Flow, ReasonStock)
	return &shared.InsufficientStockError{
		ProductID:   productID,
		WarehouseID: warehouseID,
		Requested:   want,
		Available:   avail.Quantity,
	}
}

// Credit checks that a sales document of the given total keeps the customer within a
// positive credit limit. A zero limit means unlimited.
func (g *Guard) Credit(flow Flow, party *parties.Party, total decimal.Decimal) error {
	if flow != FlowSales || party == nil || !party.CreditLimit.IsPositive() {
		return nil
	}
	exposure := party.CurrentBalance.Add(total)
	if exposure.LessThanOrEqual(party.CreditLimit) {
		return nil
	}
	g.reject(flow, ReasonCredit)
	return &shared.CreditLimitError{
		PartyID:   party.ID,
		Limit:     party.CreditLimit,
		Balance:   party.CurrentBalance,
		Requested: total,
	}
}

func (g *Guard) reject(flow Flow, reason string) {
	if g != nil && g.observer != nil {
		g.observer.ObserveGuardRejection(string(flow), reason)
	}
}
