package inventory

import (
	"context"
	"maps"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

type stockKey struct {
	productID   int64
	warehouseID int64
}

type memoryRepo struct {
	products     map[int64]masterdata.Product
	warehouses   []masterdata.Warehouse
	stock        map[stockKey]Stock
	movements    []Movement
	sequences    map[string]int64
	audits       []shared.AuditLog
	nextMovement int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:  make(map[int64]masterdata.Product),
		stock:     make(map[stockKey]Stock),
		sequences: make(map[string]int64),
	}
}

func (r *memoryRepo) addProduct(p masterdata.Product) {
	r.products[p.ID] = p
}

func (r *memoryRepo) addWarehouse(w masterdata.Warehouse) {
	r.warehouses = append(r.warehouses, w)
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	stock := maps.Clone(r.stock)
	sequences := maps.Clone(r.sequences)
	movements := len(r.movements)
	audits := len(r.audits)
	next := r.nextMovement
	if err := fn(ctx, r); err != nil {
		r.stock = stock
		r.sequences = sequences
		r.movements = r.movements[:movements]
		r.audits = r.audits[:audits]
		r.nextMovement = next
		return err
	}
	return nil
}

func (r *memoryRepo) GetProduct(_ context.Context, companyID, id int64) (masterdata.Product, error) {
	p, ok := r.products[id]
	if !ok || p.CompanyID != companyID {
		return masterdata.Product{}, shared.NotFoundf("product %d", id)
	}
	return p, nil
}

func (r *memoryRepo) GetWarehouse(_ context.Context, companyID, id int64) (masterdata.Warehouse, error) {
	for _, w := range r.warehouses {
		if w.ID == id && w.CompanyID == companyID {
			return w, nil
		}
	}
	return masterdata.Warehouse{}, shared.NotFoundf("warehouse %d", id)
}

func (r *memoryRepo) DefaultWarehouse(_ context.Context, companyID int64) (masterdata.Warehouse, error) {
	for _, w := range r.warehouses {
		if w.CompanyID == companyID && w.IsDefault && w.IsActive {
			return w, nil
		}
	}
	return masterdata.Warehouse{}, shared.NotFoundf("default warehouse")
}

func (r *memoryRepo) FirstActiveWarehouse(_ context.Context, companyID int64) (masterdata.Warehouse, error) {
	var found *masterdata.Warehouse
	for i := range r.warehouses {
		w := r.warehouses[i]
		if w.CompanyID == companyID && w.IsActive && (found == nil || w.ID < found.ID) {
			found = &r.warehouses[i]
		}
	}
	if found == nil {
		return masterdata.Warehouse{}, shared.NotFoundf("active warehouse")
	}
	return *found, nil
}

func (r *memoryRepo) LockStock(_ context.Context, companyID, productID, warehouseID int64) (Stock, error) {
	k := stockKey{productID, warehouseID}
	s, ok := r.stock[k]
	if !ok {
		s = Stock{CompanyID: companyID, ProductID: productID, WarehouseID: warehouseID}
		r.stock[k] = s
	}
	return s, nil
}

func (r *memoryRepo) UpdateStock(_ context.Context, s Stock) error {
	k := stockKey{s.ProductID, s.WarehouseID}
	if _, ok := r.stock[k]; !ok {
		return ErrStockNotFound
	}
	r.stock[k] = s
	return nil
}

func (r *memoryRepo) InsertMovement(_ context.Context, m Movement) (int64, error) {
	r.nextMovement++
	m.ID = r.nextMovement
	r.movements = append(r.movements, m)
	return m.ID, nil
}

func (r *memoryRepo) ListMovementsByReference(_ context.Context, companyID int64, referenceType string, referenceID int64) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.CompanyID == companyID && m.ReferenceType == referenceType && m.ReferenceID == referenceID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryRepo) NextSequence(_ context.Context, companyID int64, prefix string) (int64, error) {
	k := strconv.FormatInt(companyID, 10) + ":" + prefix
	r.sequences[k]++
	return r.sequences[k], nil
}

func (r *memoryRepo) RecordAudit(_ context.Context, log shared.AuditLog) error {
	if err := shared.ValidateAudit(log); err != nil {
		return err
	}
	r.audits = append(r.audits, log)
	return nil
}

func (r *memoryRepo) GetStock(_ context.Context, companyID, productID, warehouseID int64) (Stock, error) {
	s, ok := r.stock[stockKey{productID, warehouseID}]
	if !ok || s.CompanyID != companyID {
		return Stock{}, shared.NotFoundf("stock")
	}
	return s, nil
}

func (r *memoryRepo) ListStock(_ context.Context, companyID, productID int64) ([]Stock, error) {
	var out []Stock
	for _, s := range r.stock {
		if s.CompanyID == companyID && (productID == 0 || s.ProductID == productID) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].WarehouseID < out[j].WarehouseID
	})
	return out, nil
}

func (r *memoryRepo) StockCard(_ context.Context, f StockCardFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.CompanyID != f.CompanyID || m.ProductID != f.ProductID || m.WarehouseID != f.WarehouseID {
			continue
		}
		if !f.From.IsZero() && m.MovementDate.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && m.MovementDate.After(f.To) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *memoryRepo) Reconcile(_ context.Context, companyID int64) ([]Drift, error) {
	sums := make(map[stockKey]decimal.Decimal)
	for _, m := range r.movements {
		k := stockKey{m.ProductID, m.WarehouseID}
		sums[k] = sums[k].Add(m.Quantity)
	}
	var out []Drift
	for k, s := range r.stock {
		if s.CompanyID != companyID {
			continue
		}
		if !s.Quantity.Equal(sums[k]) {
			out = append(out, Drift{CompanyID: companyID, ProductID: k.productID, WarehouseID: k.warehouseID, Stock: s.Quantity, Ledger: sums[k]})
		}
	}
	return out, nil
}

func (r *memoryRepo) ListCompanies(context.Context) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, s := range r.stock {
		if !seen[s.CompanyID] {
			seen[s.CompanyID] = true
			out = append(out, s.CompanyID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// movementSum is the ledger-side quantity of a pair.
func (r *memoryRepo) movementSum(productID, warehouseID int64) decimal.Decimal {
	total := decimal.Zero
	for _, m := range r.movements {
		if m.ProductID == productID && m.WarehouseID == warehouseID {
			total = total.Add(m.Quantity)
		}
	}
	return total
}
