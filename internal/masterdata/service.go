package masterdata

import (
	"context"
	"strings"

	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// service implements Service interface
type service struct {
	repo Repository
}

// NewService creates a new master data service
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetProduct(ctx context.Context, companyID, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.NotFoundf("product %d", id)
	}
	return s.repo.GetProduct(ctx, companyID, id)
}

func (s *service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, error) {
	return s.repo.ListProducts(ctx, filters)
}

func (s *service) CreateProduct(ctx context.Context, companyID int64, req CreateProductRequest) (Product, error) {
	p := Product{
		CompanyID:      companyID,
		Code:           strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:           strings.TrimSpace(req.Name),
		SalePrice:      req.SalePrice,
		PurchasePrice:  req.PurchasePrice,
		TaxRate:        req.TaxRate,
		IsActive:       boolOr(req.IsActive, true),
		IsSaleable:     boolOr(req.IsSaleable, true),
		IsPurchasable:  boolOr(req.IsPurchasable, true),
		TrackInventory: req.TrackInventory,
	}
	if err := validateProduct(p); err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, p)
}

func (s *service) ListWarehouses(ctx context.Context, filters ListFilters) ([]Warehouse, error) {
	return s.repo.ListWarehouses(ctx, filters)
}

func (s *service) CreateWarehouse(ctx context.Context, companyID int64, req CreateWarehouseRequest) (Warehouse, error) {
	w := Warehouse{
		CompanyID: companyID,
		Code:      strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:      strings.TrimSpace(req.Name),
		Address:   strings.TrimSpace(req.Address),
		IsDefault: req.IsDefault,
		IsActive:  true,
	}
	if w.Code == "" || w.Name == "" {
		return Warehouse{}, shared.NewValidationError("warehouse code and name are required", "code", "required")
	}
	return s.repo.CreateWarehouse(ctx, w)
}

func validateProduct(p Product) error {
	verr := shared.NewValidationError("invalid product")
	if p.Code == "" {
		verr.Add("code", "required")
	}
	if p.Name == "" {
		verr.Add("name", "required")
	}
	if p.SalePrice.IsNegative() {
		verr.Add("sale_price", "must not be negative")
	}
	if p.PurchasePrice.IsNegative() {
		verr.Add("purchase_price", "must not be negative")
	}
	if p.TaxRate.IsNegative() {
		verr.Add("tax_rate", "must not be negative")
	}
	if len(verr.Details) > 0 {
		return verr
	}
	return nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
