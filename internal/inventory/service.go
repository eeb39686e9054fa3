package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/maanisingh/Accounting-software-sub001/internal/numbering"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Number prefixes of inventory's own postings.
const (
	PrefixAdjustment = "ADJ"
	PrefixTransfer   = "TRF"
)

// DriftRecorder receives the outcome of a reconciliation run.
type DriftRecorder interface {
	SetStockDrift(companyID int64, rows int)
}

// Service coordinates inventory operations.
type Service struct {
	repo   RepositoryPort
	ledger *Ledger
	logger *slog.Logger
	drift  DriftRecorder
}

// NewService builds Service. drift may be nil.
func NewService(repo RepositoryPort, ledger *Ledger, logger *slog.Logger, drift DriftRecorder) *Service {
	if ledger == nil {
		ledger = NewLedger(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, logger: logger, drift: drift}
}

// Ledger exposes the ledger used by the service.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Adjust posts a positive or negative adjustment of a tracked product.
func (s *Service) Adjust(ctx context.Context, actor shared.Actor, input AdjustmentInput) (Movement, error) {
	if input.Quantity.IsZero() {
		return Movement{}, shared.NewValidationError("adjustment quantity must be non zero", "quantity", "zero")
	}
	if input.UnitCost.IsNegative() {
		return Movement{}, shared.NewValidationError("unit cost must not be negative", "unit_cost", "min")
	}
	var posted Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requireTracked(ctx, tx, actor.CompanyID, input.ProductID); err != nil {
			return err
		}
		number, refID, err := nextReference(ctx, tx, actor.CompanyID, PrefixAdjustment)
		if err != nil {
			return err
		}
		posted, err = s.ledger.Apply(ctx, tx, Entry{
			CompanyID:       actor.CompanyID,
			ProductID:       input.ProductID,
			WarehouseID:     input.WarehouseID,
			Type:            MovementAdjustment,
			Quantity:        input.Quantity,
			UnitPrice:       input.UnitCost,
			ReferenceType:   RefAdjustment,
			ReferenceID:     refID,
			ReferenceNumber: number,
			Note:            input.Note,
			ActorID:         actor.UserID,
		})
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			CompanyID: actor.CompanyID,
			ActorID:   actor.UserID,
			Action:    "inventory.adjust",
			Entity:    "stock_movement",
			EntityID:  strconv.FormatInt(posted.ID, 10),
			Meta: map[string]any{
				"number":       number,
				"product_id":   posted.ProductID,
				"warehouse_id": posted.WarehouseID,
				"quantity":     posted.Quantity.String(),
			},
		})
	})
	if err != nil {
		return Movement{}, err
	}
	s.logger.Info("stock adjusted",
		slog.Int64("company_id", actor.CompanyID),
		slog.String("number", posted.ReferenceNumber),
		slog.String("quantity", posted.Quantity.String()))
	return posted, nil
}

// Transfer moves stock between two warehouses as one outbound and one inbound leg.
func (s *Service) Transfer(ctx context.Context, actor shared.Actor, input TransferInput) (Movement, Movement, error) {
	if !input.Quantity.IsPositive() {
		return Movement{}, Movement{}, shared.NewValidationError("transfer quantity must be positive", "quantity", "min")
	}
	if input.SrcWarehouse == 0 || input.DstWarehouse == 0 {
		return Movement{}, Movement{}, shared.NewValidationError("source and destination warehouse are required", "warehouse_id", "required")
	}
	if input.SrcWarehouse == input.DstWarehouse {
		return Movement{}, Movement{}, shared.NewValidationError("source and destination warehouse must differ", "dst_warehouse_id", "nefield")
	}
	var out, in Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requireTracked(ctx, tx, actor.CompanyID, input.ProductID); err != nil {
			return err
		}
		number, refID, err := nextReference(ctx, tx, actor.CompanyID, PrefixTransfer)
		if err != nil {
			return err
		}
		leg := Entry{
			CompanyID:       actor.CompanyID,
			ProductID:       input.ProductID,
			Type:            MovementTransfer,
			UnitPrice:       input.UnitCost,
			ReferenceType:   RefTransfer,
			ReferenceID:     refID,
			ReferenceNumber: number,
			ActorID:         actor.UserID,
		}
		leg.WarehouseID = input.SrcWarehouse
		leg.Quantity = input.Quantity.Neg()
		leg.Note = fmt.Sprintf("transfer to warehouse %d: %s", input.DstWarehouse, input.Note)
		if out, err = s.ledger.Apply(ctx, tx, leg); err != nil {
			return err
		}
		leg.WarehouseID = input.DstWarehouse
		leg.Quantity = input.Quantity
		leg.Note = fmt.Sprintf("transfer from warehouse %d: %s", input.SrcWarehouse, input.Note)
		if in, err = s.ledger.Apply(ctx, tx, leg); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			CompanyID: actor.CompanyID,
			ActorID:   actor.UserID,
			Action:    "inventory.transfer",
			Entity:    "stock_movement",
			EntityID:  number,
			Meta: map[string]any{
				"product_id":   input.ProductID,
				"src":          input.SrcWarehouse,
				"dst":          input.DstWarehouse,
				"quantity":     input.Quantity.String(),
				"movement_ids": []int64{out.ID, in.ID},
			},
		})
	})
	if err != nil {
		return Movement{}, Movement{}, err
	}
	s.logger.Info("stock transferred",
		slog.Int64("company_id", actor.CompanyID),
		slog.String("number", out.ReferenceNumber),
		slog.Int64("src", out.WarehouseID),
		slog.Int64("dst", in.WarehouseID))
	return out, in, nil
}

// GetStock loads the stock row of a product in a warehouse.
func (s *Service) GetStock(ctx context.Context, companyID, productID, warehouseID int64) (Stock, error) {
	return s.repo.GetStock(ctx, companyID, productID, warehouseID)
}

// ListStock lists stock rows, optionally of one product.
func (s *Service) ListStock(ctx context.Context, companyID, productID int64) ([]Stock, error) {
	return s.repo.ListStock(ctx, companyID, productID)
}

// StockCard lists movements of a product in a warehouse.
func (s *Service) StockCard(ctx context.Context, filter StockCardFilter) ([]Movement, error) {
	if filter.ProductID == 0 || filter.WarehouseID == 0 {
		return nil, shared.NewValidationError("product and warehouse are required", "product_id", "required")
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, shared.NewValidationError("date range is inverted", "to", "gtefield")
	}
	return s.repo.StockCard(ctx, filter)
}

// Reconcile compares every stock row of the company with the sum of its movements.
func (s *Service) Reconcile(ctx context.Context, companyID int64) ([]Drift, error) {
	drifts, err := s.repo.Reconcile(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if s.drift != nil {
		s.drift.SetStockDrift(companyID, len(drifts))
	}
	for _, d := range drifts {
		s.logger.Warn("stock drift",
			slog.Int64("company_id", d.CompanyID),
			slog.Int64("product_id", d.ProductID),
			slog.Int64("warehouse_id", d.WarehouseID),
			slog.String("stock", d.Stock.String()),
			slog.String("ledger", d.Ledger.String()))
	}
	return drifts, nil
}

// Companies lists companies with stock rows.
func (s *Service) Companies(ctx context.Context) ([]int64, error) {
	return s.repo.ListCompanies(ctx)
}

func requireTracked(ctx context.Context, tx TxRepository, companyID, productID int64) error {
	product, err := tx.GetProduct(ctx, companyID, productID)
	if err != nil {
		return err
	}
	if !product.IsActive {
		return shared.NewValidationError(fmt.Sprintf("product %s is inactive", product.Code), "product_id", "inactive")
	}
	if !product.TrackInventory {
		return shared.NewValidationError(fmt.Sprintf("product %s does not track inventory", product.Code), "product_id", "untracked")
	}
	return nil
}

func nextReference(ctx context.Context, tx TxRepository, companyID int64, prefix string) (string, int64, error) {
	number, err := numbering.Next(ctx, tx, companyID, prefix)
	if err != nil {
		return "", 0, err
	}
	_, n, err := numbering.Parse(number)
	if err != nil {
		return "", 0, err
	}
	return number, n, nil
}
