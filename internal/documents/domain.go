// Package documents implements the chained business documents of both trading flows
// and the conversions between them.
package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/guard"
	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/lifecycle"
	"github.com/maanisingh/Accounting-software-sub001/internal/parties"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Kind identifies a document type.
type Kind string

const (
	KindQuotation       Kind = "QUOTATION"
	KindSalesOrder      Kind = "SALES_ORDER"
	KindDeliveryChallan Kind = "DELIVERY_CHALLAN"
	KindInvoice         Kind = "INVOICE"
	KindSalesReturn     Kind = "SALES_RETURN"
	KindPurchaseOrder   Kind = "PURCHASE_ORDER"
	KindGoodsReceipt    Kind = "GOODS_RECEIPT"
	KindBill            Kind = "BILL"
	KindPurchaseReturn  Kind = "PURCHASE_RETURN"
)

// Family groups kinds that share a lifecycle.
type Family string

const (
	FamilyQuotation  Family = "quotation"
	FamilyOrder      Family = "order"
	FamilyFulfilment Family = "fulfilment"
	FamilyBilling    Family = "billing"
	FamilyReturn     Family = "return"
)

type kindInfo struct {
	flow    guard.Flow
	family  Family
	prefix  string
	machine lifecycle.Machine
	role    parties.Role
}

var kinds = map[Kind]kindInfo{
	KindQuotation:       {guard.FlowSales, FamilyQuotation, "QT", lifecycle.Quotation, parties.RoleCustomer},
	KindSalesOrder:      {guard.FlowSales, FamilyOrder, "SO", lifecycle.Order, parties.RoleCustomer},
	KindDeliveryChallan: {guard.FlowSales, FamilyFulfilment, "DC", lifecycle.Fulfilment, parties.RoleCustomer},
	KindInvoice:         {guard.FlowSales, FamilyBilling, "INV", lifecycle.Billing, parties.RoleCustomer},
	KindSalesReturn:     {guard.FlowSales, FamilyReturn, "SR", lifecycle.Return, parties.RoleCustomer},
	KindPurchaseOrder:   {guard.FlowPurchase, FamilyOrder, "PO", lifecycle.Order, parties.RoleVendor},
	KindGoodsReceipt:    {guard.FlowPurchase, FamilyFulfilment, "GRN", lifecycle.Fulfilment, parties.RoleVendor},
	KindBill:            {guard.FlowPurchase, FamilyBilling, "BILL", lifecycle.Billing, parties.RoleVendor},
	KindPurchaseReturn:  {guard.FlowPurchase, FamilyReturn, "PR", lifecycle.Return, parties.RoleVendor},
}

// ParseKind validates a raw kind.
func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if _, ok := kinds[k]; !ok {
		return "", shared.NewValidationError(fmt.Sprintf("unknown document kind %q", raw), "kind", "oneof")
	}
	return k, nil
}

// Flow returns the trading side of the kind.
func (k Kind) Flow() guard.Flow { return kinds[k].flow }

// Family returns the lifecycle family of the kind.
func (k Kind) Family() Family { return kinds[k].family }

// Prefix returns the number prefix of the kind.
func (k Kind) Prefix() string { return kinds[k].prefix }

// Machine returns the status machine of the kind.
func (k Kind) Machine() lifecycle.Machine { return kinds[k].machine }

// PartyRole returns the role the document party must have.
func (k Kind) PartyRole() parties.Role { return kinds[k].role }

// KindOf returns the kind of a family on a flow. Quotations exist only on the sales flow.
func KindOf(flow guard.Flow, family Family) (Kind, error) {
	for k, info := range kinds {
		if info.flow == flow && info.family == family {
			return k, nil
		}
	}
	return "", shared.NewValidationError(fmt.Sprintf("no %s document on the %s flow", family, flow), "flow", "oneof")
}

// ParseFlow validates a raw flow.
func ParseFlow(raw string) (guard.Flow, error) {
	switch f := guard.Flow(raw); f {
	case guard.FlowSales, guard.FlowPurchase:
		return f, nil
	}
	return "", shared.NewValidationError(fmt.Sprintf("unknown flow %q", raw), "flow", "oneof")
}

// ReturnReason is the fixed set of reasons accepted on returns.
type ReturnReason string

const (
	ReasonDamaged        ReturnReason = "DAMAGED"
	ReasonDefective      ReturnReason = "DEFECTIVE"
	ReasonWrongItem      ReturnReason = "WRONG_ITEM"
	ReasonExcessQuantity ReturnReason = "EXCESS_QUANTITY"
	ReasonQualityIssue   ReturnReason = "QUALITY_ISSUE"
	ReasonOther          ReturnReason = "OTHER"
)

// ParseReturnReason validates a raw reason.
func ParseReturnReason(raw string) (ReturnReason, error) {
	switch r := ReturnReason(raw); r {
	case ReasonDamaged, ReasonDefective, ReasonWrongItem, ReasonExcessQuantity, ReasonQualityIssue, ReasonOther:
		return r, nil
	}
	return "", shared.NewValidationError(fmt.Sprintf("unknown return reason %q", raw), "reason", "oneof")
}

// Document is the aggregate of a header and its lines.
type Document struct {
	ID              int64            `json:"id"`
	CompanyID       int64            `json:"company_id"`
	Kind            Kind             `json:"kind"`
	Number          string           `json:"number"`
	Status          lifecycle.Status `json:"status"`
	PartyID         int64            `json:"party_id"`
	PartyName       string           `json:"party_name,omitempty"`
	SourceID        int64            `json:"source_id,omitempty"`
	WarehouseID     int64            `json:"warehouse_id,omitempty"`
	ReturnReason    ReturnReason     `json:"return_reason,omitempty"`
	IssueDate       time.Time        `json:"issue_date"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	Reference       string           `json:"reference,omitempty"`
	Notes           string           `json:"notes,omitempty"`
	BillingAddress  string           `json:"billing_address,omitempty"`
	ShippingAddress string           `json:"shipping_address,omitempty"`
	Subtotal        decimal.Decimal  `json:"subtotal"`
	DiscountAmount  decimal.Decimal  `json:"discount_amount"`
	TaxAmount       decimal.Decimal  `json:"tax_amount"`
	Total           decimal.Decimal  `json:"total"`
	Lines           []Line           `json:"lines"`
	CreatedBy       int64            `json:"created_by"`
	UpdatedBy       int64            `json:"updated_by"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Line is one document line. FulfilledQty is the delivered quantity on sales orders and
// the received quantity on purchase orders.
type Line struct {
	ID             int64           `json:"id"`
	DocumentID     int64           `json:"document_id"`
	LineNo         int             `json:"line_no"`
	ProductID      int64           `json:"product_id"`
	Description    string          `json:"description"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	Amount         decimal.Decimal `json:"amount"`
	FulfilledQty   decimal.Decimal `json:"fulfilled_qty"`
	SourceLineID   int64           `json:"source_line_id,omitempty"`
}

// Remaining is the quantity not yet fulfilled.
func (l Line) Remaining() decimal.Decimal {
	r := l.Quantity.Sub(l.FulfilledQty)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// FullyFulfilled reports whether every line has been fulfilled.
func (d Document) FullyFulfilled() bool {
	for _, l := range d.Lines {
		if l.FulfilledQty.LessThan(l.Quantity) {
			return false
		}
	}
	return len(d.Lines) > 0
}

// LineRequest is one requested line. Nil prices and rates default from the product.
type LineRequest struct {
	ProductID      int64            `json:"product_id" validate:"required"`
	Description    string           `json:"description" validate:"max=500"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	TaxRate        *decimal.Decimal `json:"tax_rate"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
}

// DocumentRequest creates or replaces a quotation, order or standalone billing document.
type DocumentRequest struct {
	PartyID         int64         `json:"party_id" validate:"required"`
	WarehouseID     int64         `json:"warehouse_id"`
	IssueDate       time.Time     `json:"issue_date"`
	DueDate         *time.Time    `json:"due_date"`
	Reference       string        `json:"reference" validate:"max=100"`
	Notes           string        `json:"notes" validate:"max=2000"`
	BillingAddress  string        `json:"billing_address" validate:"max=500"`
	ShippingAddress string        `json:"shipping_address" validate:"max=500"`
	Lines           []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// FulfilmentLineRequest fulfils part of an order line.
type FulfilmentLineRequest struct {
	OrderLineID int64           `json:"order_line_id" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
}

// FulfilmentRequest creates a delivery challan or goods receipt. No lines fulfils the
// whole remaining quantity.
type FulfilmentRequest struct {
	WarehouseID int64                   `json:"warehouse_id"`
	IssueDate   time.Time               `json:"issue_date"`
	Reference   string                  `json:"reference" validate:"max=100"`
	Notes       string                  `json:"notes" validate:"max=2000"`
	Lines       []FulfilmentLineRequest `json:"lines" validate:"dive"`
}

// BillingRequest converts an order into an invoice or bill.
type BillingRequest struct {
	AllowPartial bool       `json:"allow_partial"`
	IssueDate    time.Time  `json:"issue_date"`
	DueDate      *time.Time `json:"due_date"`
	Reference    string     `json:"reference" validate:"max=100"`
	Notes        string     `json:"notes" validate:"max=2000"`
}

// ReturnRequest creates a sales or purchase return.
type ReturnRequest struct {
	PartyID     int64         `json:"party_id" validate:"required"`
	SourceID    int64         `json:"source_id"`
	WarehouseID int64         `json:"warehouse_id"`
	Reason      string        `json:"reason" validate:"required"`
	IssueDate   time.Time     `json:"issue_date"`
	Reference   string        `json:"reference" validate:"max=100"`
	Notes       string        `json:"notes" validate:"max=2000"`
	Lines       []LineRequest `json:"lines" validate:"required,min=1,dive"`
}

// TransitionRequest asks for a manual status change.
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// ListFilters filters document lists.
type ListFilters struct {
	CompanyID int64
	Kind      Kind
	Status    lifecycle.Status
	PartyID   int64
	SourceID  int64
	Limit     int
	Offset    int
}

// Tx is the transactional surface of a document operation. One Tx spans documents,
// stock, parties and numbering so every mutation commits together.
type Tx interface {
	inventory.LedgerStore
	guard.Reader
	NextSequence(ctx context.Context, companyID int64, prefix string) (int64, error)

	GetPartyForUpdate(ctx context.Context, companyID, id int64) (parties.Party, error)
	AdjustPartyBalance(ctx context.Context, companyID, id int64, delta decimal.Decimal) (decimal.Decimal, error)

	GetDocumentForUpdate(ctx context.Context, companyID, id int64) (Document, error)
	InsertDocument(ctx context.Context, doc Document) (Document, error)
	UpdateDocument(ctx context.Context, doc Document) error
	ReplaceLines(ctx context.Context, documentID int64, lines []Line) ([]Line, error)
	SetLineFulfilled(ctx context.Context, lineID int64, qty decimal.Decimal) error
	SetStatus(ctx context.Context, companyID, id int64, status lifecycle.Status, actorID int64) error
	DeleteDocument(ctx context.Context, companyID, id int64) error
	ListDependents(ctx context.Context, companyID, sourceID int64) ([]Document, error)

	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// Store opens transactions and serves reads.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
	GetDocument(ctx context.Context, companyID, id int64) (Document, error)
	ListDocuments(ctx context.Context, filters ListFilters) ([]Document, error)
}
