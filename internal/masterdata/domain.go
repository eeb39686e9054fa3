package masterdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListFilters represents standard list filters.
type ListFilters struct {
	CompanyID int64
	Search    string
	IsActive  *bool
	Limit     int
	Offset    int
}

// Product is read-only lookup data for the document engine.
type Product struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	SalePrice      decimal.Decimal `json:"sale_price"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	IsActive       bool            `json:"is_active"`
	IsSaleable     bool            `json:"is_saleable"`
	IsPurchasable  bool            `json:"is_purchasable"`
	TrackInventory bool            `json:"track_inventory"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Warehouse scopes stock.
type Warehouse struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	IsDefault bool      `json:"is_default"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProductRequest is the payload for a new product.
type CreateProductRequest struct {
	Code           string          `json:"code" validate:"required,max=50"`
	Name           string          `json:"name" validate:"required,max=200"`
	SalePrice      decimal.Decimal `json:"sale_price"`
	PurchasePrice  decimal.Decimal `json:"purchase_price"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	IsActive       *bool           `json:"is_active"`
	IsSaleable     *bool           `json:"is_saleable"`
	IsPurchasable  *bool           `json:"is_purchasable"`
	TrackInventory bool            `json:"track_inventory"`
}

// CreateWarehouseRequest is the payload for a new warehouse.
type CreateWarehouseRequest struct {
	Code      string `json:"code" validate:"required,max=50"`
	Name      string `json:"name" validate:"required,max=200"`
	Address   string `json:"address" validate:"max=500"`
	IsDefault bool   `json:"is_default"`
}

// Reader is the lookup surface used inside document transactions.
type Reader interface {
	GetProduct(ctx context.Context, companyID, id int64) (Product, error)
	GetWarehouse(ctx context.Context, companyID, id int64) (Warehouse, error)
	DefaultWarehouse(ctx context.Context, companyID int64) (Warehouse, error)
	FirstActiveWarehouse(ctx context.Context, companyID int64) (Warehouse, error)
}

// Repository persists master data.
type Repository interface {
	Reader
	ListProducts(ctx context.Context, filters ListFilters) ([]Product, error)
	CreateProduct(ctx context.Context, product Product) (Product, error)
	ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, error)
	CreateWarehouse(ctx context.Context, warehouse Warehouse) (Warehouse, error)
}

// Service exposes master data operations.
type Service interface {
	GetProduct(ctx context.Context, companyID, id int64) (Product, error)
	ListProducts(ctx context.Context, filters ListFilters) ([]Product, error)
	CreateProduct(ctx context.Context, companyID int64, req CreateProductRequest) (Product, error)
	ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, error)
	CreateWarehouse(ctx context.Context, companyID int64, req CreateWarehouseRequest) (Warehouse, error)
}
