package documents

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/guard"
	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/lifecycle"
	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// CreateReturn books a sales or purchase return. Sales returns put stock back and lower
// what the customer owes; purchase returns take stock out and lower what is owed to the
// vendor. With a source billing document, quantities are capped at billed minus already
// returned, and stock only moves for quantities the source order actually fulfilled.
func (s *Service) CreateReturn(ctx context.Context, actor shared.Actor, flow guard.Flow, req ReturnRequest) (Document, error) {
	kind, err := KindOf(flow, FamilyReturn)
	if err != nil {
		return Document{}, err
	}
	reason, err := ParseReturnReason(req.Reason)
	if err != nil {
		return Document{}, err
	}
	if len(req.Lines) == 0 {
		return Document{}, shared.NewValidationError("at least one line is required", "lines", "required")
	}
	var ret Document
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		party, err := partyFor(ctx, tx, actor.CompanyID, kind, req.PartyID)
		if err != nil {
			return err
		}
		var plan returnPlan
		if req.SourceID != 0 {
			plan, err = returnSources(ctx, tx, actor.CompanyID, flow, party.ID, req)
			if err != nil {
				return err
			}
		}
		wh, err := s.ledger.ResolveWarehouse(ctx, tx, actor.CompanyID, req.WarehouseID)
		if err != nil {
			return err
		}
		products, err := s.guard.Check(ctx, tx, guard.Request{CompanyID: actor.CompanyID, Flow: flow, Lines: guardLines(req.Lines)})
		if err != nil {
			return err
		}
		moved := plan.stockQuantities(products, req.Lines)
		if flow == guard.FlowPurchase {
			if _, err := s.guard.Check(ctx, tx, guard.Request{
				CompanyID:   actor.CompanyID,
				Flow:        flow,
				Lines:       movedLines(req.Lines, moved),
				Stock:       guard.StockWarehouse,
				WarehouseID: wh.ID,
			}); err != nil {
				return err
			}
		}
		lines, result, err := buildLines(flow, products, plan.sources, req.Lines)
		if err != nil {
			return err
		}
		ret = Document{
			CompanyID:    actor.CompanyID,
			Kind:         kind,
			Status:       lifecycle.StatusDraft,
			PartyID:      party.ID,
			PartyName:    party.Name,
			SourceID:     req.SourceID,
			WarehouseID:  wh.ID,
			ReturnReason: reason,
			IssueDate:    req.IssueDate,
			Reference:    req.Reference,
			Notes:        req.Notes,
			Lines:        lines,
			CreatedBy:    actor.UserID,
		}
		if ret.IssueDate.IsZero() {
			ret.IssueDate = s.now()
		}
		setTotals(&ret, result)
		ret, err = s.insert(ctx, tx, actor, ret, map[string]any{"reason": reason})
		if err != nil {
			return err
		}
		sign := decimal.NewFromInt(1)
		if flow == guard.FlowPurchase {
			sign = sign.Neg()
		}
		for i, l := range ret.Lines {
			if !moved[i].IsPositive() {
				continue
			}
			if _, err := s.ledger.Apply(ctx, tx, inventory.Entry{
				CompanyID:       actor.CompanyID,
				ProductID:       l.ProductID,
				WarehouseID:     wh.ID,
				Type:            inventory.MovementReturn,
				Quantity:        moved[i].Mul(sign),
				UnitPrice:       l.UnitPrice,
				ReferenceType:   string(kind),
				ReferenceID:     ret.ID,
				ReferenceNumber: ret.Number,
				Note:            string(reason),
				MovementDate:    ret.IssueDate,
				ActorID:         actor.UserID,
			}); err != nil {
				return err
			}
		}
		_, err = tx.AdjustPartyBalance(ctx, actor.CompanyID, party.ID, ret.Total.Neg())
		return err
	})
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("return booked",
		slog.String("kind", string(kind)),
		slog.String("number", ret.Number),
		slog.String("reason", string(reason)),
		slog.String("total", ret.Total.String()))
	return ret, nil
}

// returnPlan carries what a sourced return may reference and move.
type returnPlan struct {
	sources map[int64]Line
	// stockable caps the stock each product may still move. Nil means uncapped.
	stockable map[int64]decimal.Decimal
}

// stockQuantities returns, per request line, the quantity that moves stock. Untracked
// products never move; tracked ones draw down stockable in line order.
func (p returnPlan) stockQuantities(products map[int64]masterdata.Product, reqLines []LineRequest) []decimal.Decimal {
	left := make(map[int64]decimal.Decimal, len(p.stockable))
	for id, q := range p.stockable {
		left[id] = decimal.Max(q, decimal.Zero)
	}
	out := make([]decimal.Decimal, len(reqLines))
	for i, l := range reqLines {
		if !products[l.ProductID].TrackInventory {
			out[i] = decimal.Zero
			continue
		}
		q := l.Quantity
		if p.stockable != nil {
			q = decimal.Min(q, left[l.ProductID])
			left[l.ProductID] = left[l.ProductID].Sub(q)
		}
		out[i] = q
	}
	return out
}

func movedLines(reqLines []LineRequest, moved []decimal.Decimal) []guard.Line {
	out := make([]guard.Line, 0, len(reqLines))
	for i, l := range reqLines {
		if moved[i].IsPositive() {
			out = append(out, guard.Line{ProductID: l.ProductID, Quantity: moved[i]})
		}
	}
	return out
}

// returnSources validates the source billing document and the requested quantities
// against what is still returnable. Stock may only come back for what the billed order
// fulfilled, less what earlier returns already moved; a standalone billing document
// fulfilled nothing.
func returnSources(ctx context.Context, tx Tx, companyID int64, flow guard.Flow, partyID int64, req ReturnRequest) (returnPlan, error) {
	src, err := tx.GetDocumentForUpdate(ctx, companyID, req.SourceID)
	if err != nil {
		return returnPlan{}, err
	}
	billingKind, err := KindOf(flow, FamilyBilling)
	if err != nil {
		return returnPlan{}, err
	}
	if src.Kind != billingKind {
		return returnPlan{}, shared.NewValidationError(fmt.Sprintf("document %s is not a %s", src.Number, billingKind), "source_id", "kind")
	}
	if src.Status == lifecycle.StatusCancelled {
		return returnPlan{}, shared.NewValidationError(fmt.Sprintf("document %s is cancelled", src.Number), "source_id", "cancelled")
	}
	if src.PartyID != partyID {
		return returnPlan{}, shared.NewValidationError(fmt.Sprintf("document %s belongs to another party", src.Number), "source_id", "party")
	}
	returnable := make(map[int64]decimal.Decimal, len(src.Lines))
	sources := make(map[int64]Line, len(src.Lines))
	for _, l := range src.Lines {
		returnable[l.ProductID] = returnable[l.ProductID].Add(l.Quantity)
		if _, ok := sources[l.ProductID]; !ok {
			sources[l.ProductID] = l
		}
	}
	stockable := make(map[int64]decimal.Decimal, len(src.Lines))
	if src.SourceID != 0 {
		order, err := tx.GetDocumentForUpdate(ctx, companyID, src.SourceID)
		if err != nil {
			return returnPlan{}, err
		}
		for _, l := range order.Lines {
			stockable[l.ProductID] = stockable[l.ProductID].Add(l.FulfilledQty)
		}
	}
	previous, err := activeDependents(ctx, tx, companyID, src.ID, FamilyReturn)
	if err != nil {
		return returnPlan{}, err
	}
	for _, p := range previous {
		full, err := tx.GetDocumentForUpdate(ctx, companyID, p.ID)
		if err != nil {
			return returnPlan{}, err
		}
		for _, l := range full.Lines {
			returnable[l.ProductID] = returnable[l.ProductID].Sub(l.Quantity)
		}
		moves, err := tx.ListMovementsByReference(ctx, companyID, string(p.Kind), p.ID)
		if err != nil {
			return returnPlan{}, err
		}
		for _, m := range moves {
			stockable[m.ProductID] = stockable[m.ProductID].Sub(m.Quantity.Abs())
		}
	}
	requested := make(map[int64]decimal.Decimal, len(req.Lines))
	for i, l := range req.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if _, ok := sources[l.ProductID]; !ok {
			return returnPlan{}, shared.NewValidationError(fmt.Sprintf("product %d is not on %s", l.ProductID, src.Number), field+".product_id", "not billed")
		}
		requested[l.ProductID] = requested[l.ProductID].Add(l.Quantity)
		if requested[l.ProductID].GreaterThan(returnable[l.ProductID]) {
			left := decimal.Max(returnable[l.ProductID], decimal.Zero)
			return returnPlan{}, shared.NewValidationError(
				fmt.Sprintf("product %d has %s left to return on %s", l.ProductID, left.String(), src.Number), field+".quantity", "exceeds billed")
		}
	}
	return returnPlan{sources: sources, stockable: stockable}, nil
}
