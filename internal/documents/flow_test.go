package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/maanisingh/Accounting-software-sub001/internal/guard"
	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/lifecycle"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// FlowSuite walks both trading flows end to end on one store.
type FlowSuite struct {
	suite.Suite
	ctx   context.Context
	store *memoryStore
	svc   *Service
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = seededStore()
	s.svc = newTestService(s.store)
}

func (s *FlowSuite) requireDec(want string, got string) {
	s.Require().Equal(want, got)
}

func (s *FlowSuite) TestSalesFlow() {
	order, err := s.svc.CreateOrder(s.ctx, actor, guard.FlowSales, DocumentRequest{
		PartyID: customerC,
		Lines:   []LineRequest{line(productP1, 5)},
	})
	s.Require().NoError(err, "never stocked products are backordered")

	_, err = s.svc.CreateFulfillment(s.ctx, actor, order.ID, FulfilmentRequest{WarehouseID: warehouseW1})
	var stockErr *shared.InsufficientStockError
	s.Require().ErrorAs(err, &stockErr)
	s.Equal(warehouseW1, stockErr.WarehouseID)
	s.requireDec("5", stockErr.Shortfall().String())

	stockIn(s.T(), s.store, productP1, warehouseW1, 10)

	dc, err := s.svc.CreateFulfillment(s.ctx, actor, order.ID, FulfilmentRequest{WarehouseID: warehouseW1})
	s.Require().NoError(err)
	s.Equal("DC-0001", dc.Number)
	s.requireDec("5", s.store.quantity(productP1, warehouseW1).String())

	moves, err := s.store.ListMovementsByReference(s.ctx, company, string(KindDeliveryChallan), dc.ID)
	s.Require().NoError(err)
	s.Require().Len(moves, 1)
	s.Equal(inventory.MovementDelivery, moves[0].Type)
	s.requireDec("-5", moves[0].Quantity.String())
	s.requireDec("5", moves[0].BalanceAfter.String())

	order, err = s.svc.Get(s.ctx, company, order.ID)
	s.Require().NoError(err)
	s.requireDec("5", order.Lines[0].FulfilledQty.String())
	s.Equal(lifecycle.StatusReceived, order.Status)

	inv, err := s.svc.ConvertOrderToBilling(s.ctx, actor, order.ID, BillingRequest{})
	s.Require().NoError(err)
	s.Equal("INV-0001", inv.Number)
	s.requireDec("500", inv.Total.String())
	s.requireDec("500", s.store.balance(customerC).String())

	order, err = s.svc.Get(s.ctx, company, order.ID)
	s.Require().NoError(err)
	s.Equal(lifecycle.StatusCompleted, order.Status)

	ret, err := s.svc.CreateReturn(s.ctx, actor, guard.FlowSales, ReturnRequest{
		PartyID:  customerC,
		SourceID: inv.ID,
		Reason:   string(ReasonDamaged),
		Lines:    []LineRequest{line(productP1, 2)},
	})
	s.Require().NoError(err)
	s.Equal("SR-0001", ret.Number)
	s.Equal(ReasonDamaged, ret.ReturnReason)
	s.requireDec("200", ret.Total.String())
	s.requireDec("7", s.store.quantity(productP1, warehouseW1).String())
	s.requireDec("300", s.store.balance(customerC).String())

	_, err = s.svc.CreateReturn(s.ctx, actor, guard.FlowSales, ReturnRequest{
		PartyID:  customerC,
		SourceID: inv.ID,
		Reason:   string(ReasonOther),
		Lines:    []LineRequest{line(productP1, 4)},
	})
	var verr *shared.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("exceeds billed", verr.Details["lines[0].quantity"])

	s.Require().ErrorIs(s.svc.DeleteDocument(s.ctx, actor, inv.ID), shared.ErrInvalidStatusTransition)

	_, err = s.svc.Transition(s.ctx, actor, ret.ID, "CANCELLED")
	s.Require().NoError(err)
	s.requireDec("5", s.store.quantity(productP1, warehouseW1).String())
	s.requireDec("500", s.store.balance(customerC).String())

	_, err = s.svc.CreateReturn(s.ctx, actor, guard.FlowSales, ReturnRequest{
		PartyID:  customerC,
		SourceID: inv.ID,
		Reason:   string(ReasonOther),
		Lines:    []LineRequest{line(productP1, 5)},
	})
	s.Require().NoError(err, "cancelled returns free their quantity")
}

func (s *FlowSuite) TestPurchaseFlow() {
	po, err := s.svc.CreateOrder(s.ctx, actor, guard.FlowPurchase, DocumentRequest{
		PartyID: vendorV,
		Lines:   []LineRequest{line(productP1, 10)},
	})
	s.Require().NoError(err)
	s.Equal("PO-0001", po.Number)
	s.requireDec("600", po.Total.String())

	grn, err := s.svc.CreateFulfillment(s.ctx, actor, po.ID, FulfilmentRequest{})
	s.Require().NoError(err)
	s.Equal(KindGoodsReceipt, grn.Kind)
	s.Equal(warehouseW1, grn.WarehouseID)
	s.requireDec("10", s.store.quantity(productP1, warehouseW1).String())

	bill, err := s.svc.ConvertOrderToBilling(s.ctx, actor, po.ID, BillingRequest{})
	s.Require().NoError(err)
	s.Equal("BILL-0001", bill.Number)
	s.requireDec("600", s.store.balance(vendorV).String())

	ret, err := s.svc.CreateReturn(s.ctx, actor, guard.FlowPurchase, ReturnRequest{
		PartyID:  vendorV,
		SourceID: bill.ID,
		Reason:   string(ReasonDefective),
		Lines:    []LineRequest{line(productP1, 4)},
	})
	s.Require().NoError(err)
	s.Equal("PR-0001", ret.Number)
	s.requireDec("240", ret.Total.String())
	s.requireDec("6", s.store.quantity(productP1, warehouseW1).String())
	s.requireDec("360", s.store.balance(vendorV).String())

	moves, err := s.store.ListMovementsByReference(s.ctx, company, string(KindPurchaseReturn), ret.ID)
	s.Require().NoError(err)
	s.Require().Len(moves, 1)
	s.requireDec("-4", moves[0].Quantity.String())
}

func (s *FlowSuite) TestPurchaseReturnNeedsStock() {
	stockIn(s.T(), s.store, productP1, warehouseW1, 1)

	_, err := s.svc.CreateReturn(s.ctx, actor, guard.FlowPurchase, ReturnRequest{
		PartyID: vendorV,
		Reason:  string(ReasonExcessQuantity),
		Lines:   []LineRequest{line(productP1, 2)},
	})
	s.Require().ErrorIs(err, shared.ErrInsufficientStock)
	s.requireDec("0", s.store.balance(vendorV).String())
	s.Empty(s.store.docs)
}

func (s *FlowSuite) TestReturnValidation() {
	_, err := s.svc.CreateReturn(s.ctx, actor, guard.FlowSales, ReturnRequest{
		PartyID: customerC,
		Reason:  "CHANGED_MIND",
		Lines:   []LineRequest{line(productP1, 1)},
	})
	s.Require().ErrorIs(err, shared.ErrValidation)

	inv, err := s.svc.CreateBilling(s.ctx, actor, guard.FlowSales, DocumentRequest{
		PartyID: customerC,
		Lines:   []LineRequest{line(productP1, 1)},
	})
	s.Require().NoError(err)

	_, err = s.svc.CreateReturn(s.ctx, actor, guard.FlowSales, ReturnRequest{
		PartyID:  customerC,
		SourceID: inv.ID,
		Reason:   string(ReasonWrongItem),
		Lines:    []LineRequest{line(productService, 1)},
	})
	var verr *shared.ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal("not billed", verr.Details["lines[0].product_id"])

	_, err = s.svc.CreateReturn(s.ctx, actor, guard.FlowSales, ReturnRequest{
		PartyID:  customerLimited,
		SourceID: inv.ID,
		Reason:   string(ReasonWrongItem),
		Lines:    []LineRequest{line(productP1, 1)},
	})
	s.Require().ErrorAs(err, &verr)
	s.Equal("party", verr.Details["source_id"])

	_, err = s.svc.CreateReturn(s.ctx, actor, guard.FlowPurchase, ReturnRequest{
		PartyID:  vendorV,
		SourceID: inv.ID,
		Reason:   string(ReasonWrongItem),
		Lines:    []LineRequest{line(productP1, 1)},
	})
	s.Require().ErrorAs(err, &verr)
	s.Equal("kind", verr.Details["source_id"])
}

func (s *FlowSuite) TestReturnOnPartialBillMovesOnlyDelivered() {
	stockIn(s.T(), s.store, productP1, warehouseW1, 10)
	order, err := s.svc.CreateOrder(s.ctx, actor, guard.FlowSales, DocumentRequest{
		PartyID: customerC,
		Lines:   []LineRequest{line(productP1, 10)},
	})
	s.Require().NoError(err)
	_, err = s.svc.Transition(s.ctx, actor, order.ID, "APPROVED")
	s.Require().NoError(err)

	_, err = s.svc.CreateFulfillment(s.ctx, actor, order.ID, FulfilmentRequest{
		Lines: []FulfilmentLineRequest{{OrderLineID: order.Lines[0].ID, Quantity: qty(2)}},
	})
	s.Require().NoError(err)
	s.requireDec("8", s.store.quantity(productP1, warehouseW1).String())

	inv, err := s.svc.ConvertOrderToBilling(s.ctx, actor, order.ID, BillingRequest{AllowPartial: true})
	s.Require().NoError(err)

	ret, err := s.svc.CreateReturn(s.ctx, actor, guard.FlowSales, ReturnRequest{
		PartyID:  customerC,
		SourceID: inv.ID,
		Reason:   string(ReasonDefective),
		Lines:    []LineRequest{line(productP1, 10)},
	})
	s.Require().NoError(err)
	s.requireDec(inv.Total.String(), ret.Total.String())
	s.requireDec("0", s.store.balance(customerC).String())
	s.requireDec("10", s.store.quantity(productP1, warehouseW1).String())

	moves, err := s.store.ListMovementsByReference(s.ctx, company, string(KindSalesReturn), ret.ID)
	s.Require().NoError(err)
	s.Require().Len(moves, 1)
	s.requireDec("2", moves[0].Quantity.String())
}

func (s *FlowSuite) TestReturnSharesDeliveredCapAcrossReturns() {
	stockIn(s.T(), s.store, productP1, warehouseW1, 10)
	order, err := s.svc.CreateOrder(s.ctx, actor, guard.FlowSales, DocumentRequest{
		PartyID: customerC,
		Lines:   []LineRequest{line(productP1, 10)},
	})
	s.Require().NoError(err)
	_, err = s.svc.Transition(s.ctx, actor, order.ID, "APPROVED")
	s.Require().NoError(err)
	_, err = s.svc.CreateFulfillment(s.ctx, actor, order.ID, FulfilmentRequest{
		Lines: []FulfilmentLineRequest{{OrderLineID: order.Lines[0].ID, Quantity: qty(3)}},
	})
	s.Require().NoError(err)
	inv, err := s.svc.ConvertOrderToBilling(s.ctx, actor, order.ID, BillingRequest{AllowPartial: true})
	s.Require().NoError(err)

	for _, n := range []int64{2, 4} {
		_, err = s.svc.CreateReturn(s.ctx, actor, guard.FlowSales, ReturnRequest{
			PartyID:  customerC,
			SourceID: inv.ID,
			Reason:   string(ReasonDefective),
			Lines:    []LineRequest{line(productP1, n)},
		})
		s.Require().NoError(err)
	}
	s.requireDec("10", s.store.quantity(productP1, warehouseW1).String())
}

func (s *FlowSuite) TestReturnOnStandaloneInvoiceMovesNoStock() {
	inv, err := s.svc.CreateBilling(s.ctx, actor, guard.FlowSales, DocumentRequest{
		PartyID: customerC,
		Lines:   []LineRequest{line(productP1, 5)},
	})
	s.Require().NoError(err)

	ret, err := s.svc.CreateReturn(s.ctx, actor, guard.FlowSales, ReturnRequest{
		PartyID:  customerC,
		SourceID: inv.ID,
		Reason:   string(ReasonDefective),
		Lines:    []LineRequest{line(productP1, 5)},
	})
	s.Require().NoError(err)
	s.requireDec("0", s.store.balance(customerC).String())
	s.requireDec("0", s.store.quantity(productP1, warehouseW1).String())

	moves, err := s.store.ListMovementsByReference(s.ctx, company, string(KindSalesReturn), ret.ID)
	s.Require().NoError(err)
	s.Empty(moves)
}
