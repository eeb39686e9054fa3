package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/guard"
	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/lifecycle"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
	"github.com/maanisingh/Accounting-software-sub001/internal/totals"
)

// ConvertQuotationToOrder copies a quotation into a new sales order and completes the
// quotation. Lines and totals are copied as they are.
func (s *Service) ConvertQuotationToOrder(ctx context.Context, actor shared.Actor, quotationID int64) (Document, error) {
	var order Document
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		quote, err := tx.GetDocumentForUpdate(ctx, actor.CompanyID, quotationID)
		if err != nil {
			return err
		}
		if quote.Kind != KindQuotation {
			return shared.NewValidationError(fmt.Sprintf("document %s is not a quotation", quote.Number), "id", "kind")
		}
		if err := lifecycle.Quotation.Transition(quote.Status, lifecycle.StatusCompleted); err != nil {
			return err
		}
		order = successor(quote, KindSalesOrder, actor, s.now())
		order.WarehouseID = quote.WarehouseID
		order.DueDate = quote.DueDate
		order.Lines = copyLines(quote.Lines)
		order, err = s.insert(ctx, tx, actor, order, nil)
		if err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, actor.CompanyID, quote.ID, lifecycle.StatusCompleted, actor.UserID); err != nil {
			return err
		}
		quote.Status = lifecycle.StatusCompleted
		return s.audit(ctx, tx, actor, "document.convert", quote, map[string]any{"order_id": order.ID, "order_number": order.Number})
	})
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("quotation converted", slog.Int64("quotation_id", quotationID), slog.String("order", order.Number))
	return order, nil
}

// CreateFulfillment delivers or receives part or all of an order. Deliveries check and
// consume stock at the resolved warehouse, receipts add to it.
func (s *Service) CreateFulfillment(ctx context.Context, actor shared.Actor, orderID int64, req FulfilmentRequest) (Document, error) {
	var doc Document
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		order, err := tx.GetDocumentForUpdate(ctx, actor.CompanyID, orderID)
		if err != nil {
			return err
		}
		if order.Kind.Family() != FamilyOrder {
			return shared.NewValidationError(fmt.Sprintf("document %s is not an order", order.Number), "id", "kind")
		}
		if order.Status.IsTerminal() {
			return shared.InvalidTransitionf("order %s is %s", order.Number, order.Status)
		}
		picked, err := pickFulfilment(order, req.Lines)
		if err != nil {
			return err
		}
		warehouseID := req.WarehouseID
		if warehouseID == 0 {
			warehouseID = order.WarehouseID
		}
		wh, err := s.ledger.ResolveWarehouse(ctx, tx, actor.CompanyID, warehouseID)
		if err != nil {
			return err
		}
		flow := order.Kind.Flow()
		check := guard.Request{CompanyID: actor.CompanyID, Flow: flow, WarehouseID: wh.ID}
		for _, p := range picked {
			check.Lines = append(check.Lines, guard.Line{ProductID: p.line.ProductID, Quantity: p.qty})
		}
		if flow == guard.FlowSales {
			check.Stock = guard.StockWarehouse
		}
		products, err := s.guard.Check(ctx, tx, check)
		if err != nil {
			return err
		}

		kind, err := KindOf(flow, FamilyFulfilment)
		if err != nil {
			return err
		}
		doc = successor(order, kind, actor, s.now())
		if !req.IssueDate.IsZero() {
			doc.IssueDate = req.IssueDate
		}
		doc.WarehouseID = wh.ID
		doc.Reference = req.Reference
		doc.Notes = req.Notes
		inputs := make([]totals.LineInput, 0, len(picked))
		for _, p := range picked {
			l := Line{
				ProductID:      p.line.ProductID,
				Description:    p.line.Description,
				Quantity:       p.qty,
				UnitPrice:      p.line.UnitPrice,
				TaxRate:        p.line.TaxRate,
				DiscountAmount: prorate(p.line.DiscountAmount, p.qty, p.line.Quantity),
				FulfilledQty:   decimal.Zero,
				SourceLineID:   p.line.ID,
			}
			doc.Lines = append(doc.Lines, l)
			inputs = append(inputs, lineInput(l))
		}
		result := totals.Calculate(inputs)
		for i := range doc.Lines {
			doc.Lines[i].TaxAmount = result.Lines[i].TaxAmount
			doc.Lines[i].Amount = result.Lines[i].Amount
		}
		setTotals(&doc, result)
		doc, err = s.insert(ctx, tx, actor, doc, map[string]any{"order_id": order.ID, "warehouse_id": wh.ID})
		if err != nil {
			return err
		}

		movement, sign := inventory.MovementDelivery, decimal.NewFromInt(-1)
		if flow == guard.FlowPurchase {
			movement, sign = inventory.MovementReceipt, decimal.NewFromInt(1)
		}
		for _, l := range doc.Lines {
			if !products[l.ProductID].TrackInventory {
				continue
			}
			if _, err := s.ledger.Apply(ctx, tx, inventory.Entry{
				CompanyID:       actor.CompanyID,
				ProductID:       l.ProductID,
				WarehouseID:     wh.ID,
				Type:            movement,
				Quantity:        l.Quantity.Mul(sign),
				UnitPrice:       l.UnitPrice,
				ReferenceType:   string(doc.Kind),
				ReferenceID:     doc.ID,
				ReferenceNumber: doc.Number,
				MovementDate:    doc.IssueDate,
				ActorID:         actor.UserID,
			}); err != nil {
				return err
			}
		}
		for _, p := range picked {
			order.Lines[p.index].FulfilledQty = order.Lines[p.index].FulfilledQty.Add(p.qty)
			if err := tx.SetLineFulfilled(ctx, p.line.ID, order.Lines[p.index].FulfilledQty); err != nil {
				return err
			}
		}
		return s.syncOrderStatus(ctx, tx, actor, order)
	})
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("order fulfilled",
		slog.Int64("order_id", orderID),
		slog.String("number", doc.Number),
		slog.Int64("warehouse_id", doc.WarehouseID))
	return doc, nil
}

type pickedLine struct {
	index int
	line  Line
	qty   decimal.Decimal
}

// pickFulfilment resolves requested quantities against the order lines. No request
// lines picks every remaining quantity.
func pickFulfilment(order Document, req []FulfilmentLineRequest) ([]pickedLine, error) {
	var picked []pickedLine
	if len(req) == 0 {
		for i, l := range order.Lines {
			if rem := l.Remaining(); rem.IsPositive() {
				picked = append(picked, pickedLine{index: i, line: l, qty: rem})
			}
		}
		if len(picked) == 0 {
			return nil, shared.NewValidationError(fmt.Sprintf("order %s has nothing left to fulfil", order.Number), "lines", "empty")
		}
		return picked, nil
	}
	byID := make(map[int64]int, len(order.Lines))
	for i, l := range order.Lines {
		byID[l.ID] = i
	}
	requested := make(map[int64]decimal.Decimal, len(req))
	for i, r := range req {
		field := fmt.Sprintf("lines[%d]", i)
		idx, ok := byID[r.OrderLineID]
		if !ok {
			return nil, shared.NewValidationError(fmt.Sprintf("line %d is not on order %s", r.OrderLineID, order.Number), field+".order_line_id", "unknown")
		}
		if !r.Quantity.IsPositive() {
			return nil, shared.NewValidationError("fulfilment quantity must be positive", field+".quantity", "min")
		}
		line := order.Lines[idx]
		requested[line.ID] = requested[line.ID].Add(r.Quantity)
		if requested[line.ID].GreaterThan(line.Remaining()) {
			return nil, shared.NewValidationError(
				fmt.Sprintf("line %d has %s remaining", line.LineNo, line.Remaining().String()), field+".quantity", "exceeds remaining")
		}
		picked = append(picked, pickedLine{index: idx, line: line, qty: r.Quantity})
	}
	return picked, nil
}

// unwindFulfilment reverses the stock of a delivery or receipt and takes its quantities
// back off the order.
func (s *Service) unwindFulfilment(ctx context.Context, tx Tx, actor shared.Actor, doc Document) error {
	order, err := tx.GetDocumentForUpdate(ctx, actor.CompanyID, doc.SourceID)
	if err != nil {
		return err
	}
	if order.Status.IsTerminal() {
		return shared.InvalidTransitionf("order %s is %s", order.Number, order.Status)
	}
	billing, err := activeDependents(ctx, tx, actor.CompanyID, order.ID, FamilyBilling)
	if err != nil {
		return err
	}
	if len(billing) > 0 {
		return shared.InvalidTransitionf("order %s has %d active billing document(s)", order.Number, len(billing))
	}
	if _, err := s.ledger.ReverseReference(ctx, tx, actor.CompanyID, string(doc.Kind), doc.ID, actor.UserID); err != nil {
		return err
	}
	index := make(map[int64]int, len(order.Lines))
	for i, l := range order.Lines {
		index[l.ID] = i
	}
	for _, l := range doc.Lines {
		i, ok := index[l.SourceLineID]
		if !ok {
			continue
		}
		next := order.Lines[i].FulfilledQty.Sub(l.Quantity)
		if next.IsNegative() {
			next = decimal.Zero
		}
		order.Lines[i].FulfilledQty = next
		if err := tx.SetLineFulfilled(ctx, order.Lines[i].ID, next); err != nil {
			return err
		}
	}
	return s.syncOrderStatus(ctx, tx, actor, order)
}

// syncOrderStatus derives the order status from its fulfilled quantities.
func (s *Service) syncOrderStatus(ctx context.Context, tx Tx, actor shared.Actor, order Document) error {
	target := order.Status
	switch {
	case order.FullyFulfilled():
		target = lifecycle.StatusReceived
	case order.Status == lifecycle.StatusReceived:
		target = lifecycle.StatusApproved
	}
	if target == order.Status {
		return nil
	}
	if err := lifecycle.Order.Transition(order.Status, target); err != nil {
		return err
	}
	if err := tx.SetStatus(ctx, actor.CompanyID, order.ID, target, actor.UserID); err != nil {
		return err
	}
	from := order.Status
	order.Status = target
	return s.audit(ctx, tx, actor, "document.status", order, map[string]any{"from": from, "to": target})
}

// ConvertOrderToBilling copies an approved or received order into an invoice or bill,
// raises the party balance and completes the order.
func (s *Service) ConvertOrderToBilling(ctx context.Context, actor shared.Actor, orderID int64, req BillingRequest) (Document, error) {
	var bill Document
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		order, err := tx.GetDocumentForUpdate(ctx, actor.CompanyID, orderID)
		if err != nil {
			return err
		}
		if order.Kind.Family() != FamilyOrder {
			return shared.NewValidationError(fmt.Sprintf("document %s is not an order", order.Number), "id", "kind")
		}
		if order.Status != lifecycle.StatusApproved && order.Status != lifecycle.StatusReceived {
			return shared.InvalidTransitionf("order %s is %s, billing requires APPROVED or RECEIVED", order.Number, order.Status)
		}
		if err := lifecycle.Order.Transition(order.Status, lifecycle.StatusCompleted); err != nil {
			return err
		}
		if !req.AllowPartial {
			for i, l := range order.Lines {
				if l.FulfilledQty.LessThan(l.Quantity) {
					return shared.NewValidationError(
						fmt.Sprintf("line %d is not fully fulfilled", l.LineNo), fmt.Sprintf("lines[%d].fulfilled_qty", i), "incomplete")
				}
			}
		}
		party, err := tx.GetPartyForUpdate(ctx, actor.CompanyID, order.PartyID)
		if err != nil {
			return err
		}
		kind, err := KindOf(order.Kind.Flow(), FamilyBilling)
		if err != nil {
			return err
		}
		bill = successor(order, kind, actor, s.now())
		if !req.IssueDate.IsZero() {
			bill.IssueDate = req.IssueDate
		}
		bill.DueDate = req.DueDate
		if bill.DueDate == nil {
			bill.DueDate = dueDate(bill.IssueDate, party.CreditDays)
		}
		if req.Reference != "" {
			bill.Reference = req.Reference
		}
		if req.Notes != "" {
			bill.Notes = req.Notes
		}
		bill.PartyName = party.Name
		bill.Lines = copyLines(order.Lines)
		bill, err = s.insert(ctx, tx, actor, bill, map[string]any{"order_id": order.ID, "allow_partial": req.AllowPartial})
		if err != nil {
			return err
		}
		if _, err := tx.AdjustPartyBalance(ctx, actor.CompanyID, party.ID, bill.Total); err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, actor.CompanyID, order.ID, lifecycle.StatusCompleted, actor.UserID); err != nil {
			return err
		}
		from := order.Status
		order.Status = lifecycle.StatusCompleted
		return s.audit(ctx, tx, actor, "document.status", order, map[string]any{"from": from, "to": order.Status})
	})
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("order billed", slog.Int64("order_id", orderID), slog.String("number", bill.Number), slog.String("total", bill.Total.String()))
	return bill, nil
}

// successor starts a DRAFT document of kind that copies the header and totals of src.
func successor(src Document, kind Kind, actor shared.Actor, now time.Time) Document {
	return Document{
		CompanyID:       actor.CompanyID,
		Kind:            kind,
		Status:          lifecycle.StatusDraft,
		PartyID:         src.PartyID,
		PartyName:       src.PartyName,
		SourceID:        src.ID,
		IssueDate:       now,
		Reference:       src.Reference,
		Notes:           src.Notes,
		BillingAddress:  src.BillingAddress,
		ShippingAddress: src.ShippingAddress,
		Subtotal:        src.Subtotal,
		DiscountAmount:  src.DiscountAmount,
		TaxAmount:       src.TaxAmount,
		Total:           src.Total,
		CreatedBy:       actor.UserID,
	}
}

// copyLines snapshots source lines for a successor document.
func copyLines(src []Line) []Line {
	out := make([]Line, 0, len(src))
	for _, l := range src {
		l.SourceLineID = l.ID
		l.ID = 0
		l.DocumentID = 0
		l.FulfilledQty = decimal.Zero
		out = append(out, l)
	}
	return out
}

// prorate scales a line discount to a partial quantity.
func prorate(discount, part, whole decimal.Decimal) decimal.Decimal {
	if discount.IsZero() || whole.IsZero() || part.Equal(whole) {
		return discount
	}
	return discount.Mul(part).Div(whole).Round(2)
}
