package inventory

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// MovementType enumerates supported inventory movements.
type MovementType string

const (
	// MovementDelivery is an outbound movement for a delivery challan.
	MovementDelivery MovementType = "DELIVERY"
	// MovementReceipt is an inbound movement for a goods receipt.
	MovementReceipt MovementType = "RECEIPT"
	// MovementReturn is a sales (inbound) or purchase (outbound) return.
	MovementReturn MovementType = "RETURN"
	// MovementAdjustment indicates manual adjustments.
	MovementAdjustment MovementType = "ADJUSTMENT"
	// MovementTransfer is one leg of a warehouse transfer.
	MovementTransfer MovementType = "TRANSFER"
)

// ReversalSuffix marks the reference type of reversing movements.
const ReversalSuffix = "-REVERSAL"

// Reference types used by inventory's own postings.
const (
	RefAdjustment = "ADJUSTMENT"
	RefTransfer   = "TRANSFER"
)

// Stock is the balance of one product in one warehouse. It is a projection of the
// movement log and is only written through Ledger.Apply.
type Stock struct {
	CompanyID    int64           `json:"company_id"`
	ProductID    int64           `json:"product_id"`
	WarehouseID  int64           `json:"warehouse_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	ReservedQty  decimal.Decimal `json:"reserved_qty"`
	AvailableQty decimal.Decimal `json:"available_qty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Movement is one immutable ledger row.
type Movement struct {
	ID              int64           `json:"id"`
	CompanyID       int64           `json:"company_id"`
	ProductID       int64           `json:"product_id"`
	WarehouseID     int64           `json:"warehouse_id"`
	Type            MovementType    `json:"type"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TotalValue      decimal.Decimal `json:"total_value"`
	BalanceAfter    decimal.Decimal `json:"balance_after"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceID     int64           `json:"reference_id"`
	ReferenceNumber string          `json:"reference_number"`
	Note            string          `json:"note,omitempty"`
	MovementDate    time.Time       `json:"movement_date"`
	CreatedBy       int64           `json:"created_by"`
}

// IsReversal reports whether the movement reverses another one.
func (m Movement) IsReversal() bool {
	return strings.HasSuffix(m.ReferenceType, ReversalSuffix)
}

// Entry is a request to move stock. WarehouseID 0 lets the ledger resolve the
// warehouse.
type Entry struct {
	CompanyID       int64
	ProductID       int64
	WarehouseID     int64
	Type            MovementType
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	ReferenceType   string
	ReferenceID     int64
	ReferenceNumber string
	Note            string
	MovementDate    time.Time
	ActorID         int64
}

// Availability is the free quantity of a product.
type Availability struct {
	Quantity decimal.Decimal
}

// Drift is a stock row that disagrees with its movement log.
type Drift struct {
	CompanyID   int64           `json:"company_id"`
	ProductID   int64           `json:"product_id"`
	WarehouseID int64           `json:"warehouse_id"`
	Stock       decimal.Decimal `json:"stock_quantity"`
	Ledger      decimal.Decimal `json:"ledger_quantity"`
}

// StockCardFilter filters card entries.
type StockCardFilter struct {
	CompanyID   int64
	WarehouseID int64
	ProductID   int64
	From        time.Time
	To          time.Time
	Limit       int
}

// AdjustmentInput describes request to adjust stock.
type AdjustmentInput struct {
	WarehouseID int64           `json:"warehouse_id"`
	ProductID   int64           `json:"product_id" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Note        string          `json:"note" validate:"max=500"`
}

// TransferInput describes transfer request between warehouses.
type TransferInput struct {
	ProductID    int64           `json:"product_id" validate:"required"`
	Quantity     decimal.Decimal `json:"quantity"`
	SrcWarehouse int64           `json:"src_warehouse_id" validate:"required"`
	DstWarehouse int64           `json:"dst_warehouse_id" validate:"required,nefield=SrcWarehouse"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	Note         string          `json:"note" validate:"max=500"`
}

// ErrStockNotFound indicates missing stock row.
var ErrStockNotFound = errors.New("inventory: stock not found")

// WarehouseReader resolves warehouses of a company.
type WarehouseReader interface {
	GetWarehouse(ctx context.Context, companyID, id int64) (masterdata.Warehouse, error)
	DefaultWarehouse(ctx context.Context, companyID int64) (masterdata.Warehouse, error)
	FirstActiveWarehouse(ctx context.Context, companyID int64) (masterdata.Warehouse, error)
}

// LedgerStore is the transactional surface the ledger writes through.
type LedgerStore interface {
	WarehouseReader
	// LockStock returns the stock row locked for update, creating it at zero when it
	// does not exist yet.
	LockStock(ctx context.Context, companyID, productID, warehouseID int64) (Stock, error)
	UpdateStock(ctx context.Context, stock Stock) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	ListMovementsByReference(ctx context.Context, companyID int64, referenceType string, referenceID int64) ([]Movement, error)
}

// StockReader answers availability questions without locking.
type StockReader interface {
	Availability(ctx context.Context, companyID, productID, warehouseID int64) (Availability, error)
}

// TxRepository exposes transactional operations used by service.
type TxRepository interface {
	LedgerStore
	GetProduct(ctx context.Context, companyID, id int64) (masterdata.Product, error)
	NextSequence(ctx context.Context, companyID int64, prefix string) (int64, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, companyID, productID, warehouseID int64) (Stock, error)
	ListStock(ctx context.Context, companyID, productID int64) ([]Stock, error)
	StockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error)
	Reconcile(ctx context.Context, companyID int64) ([]Drift, error)
	ListCompanies(ctx context.Context) ([]int64, error)
}
