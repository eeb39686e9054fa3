package documents

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/guard"
	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/lifecycle"
	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/numbering"
	"github.com/maanisingh/Accounting-software-sub001/internal/parties"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
	"github.com/maanisingh/Accounting-software-sub001/internal/totals"
)

// Service coordinates document operations. Every mutating method runs in one Store
// transaction.
type Service struct {
	store  Store
	ledger *inventory.Ledger
	guard  *guard.Guard
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds Service. ledger and g may be nil.
func NewService(store Store, ledger *inventory.Ledger, g *guard.Guard, logger *slog.Logger) *Service {
	if ledger == nil {
		ledger = inventory.NewLedger(nil)
	}
	if g == nil {
		g = guard.New(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, ledger: ledger, guard: g, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Get loads a document with its lines.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Document, error) {
	return s.store.GetDocument(ctx, companyID, id)
}

// List lists document headers.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Document, error) {
	return s.store.ListDocuments(ctx, filters)
}

// CreateQuotation creates a DRAFT quotation after the eligibility check.
func (s *Service) CreateQuotation(ctx context.Context, actor shared.Actor, req DocumentRequest) (Document, error) {
	return s.createPriced(ctx, actor, KindQuotation, req)
}

// CreateOrder creates a DRAFT sales or purchase order. Sales orders are checked against
// stock over all warehouses and against the customer's credit limit.
func (s *Service) CreateOrder(ctx context.Context, actor shared.Actor, flow guard.Flow, req DocumentRequest) (Document, error) {
	kind, err := KindOf(flow, FamilyOrder)
	if err != nil {
		return Document{}, err
	}
	return s.createPriced(ctx, actor, kind, req)
}

// CreateBilling creates a standalone invoice or bill and raises the party balance.
func (s *Service) CreateBilling(ctx context.Context, actor shared.Actor, flow guard.Flow, req DocumentRequest) (Document, error) {
	kind, err := KindOf(flow, FamilyBilling)
	if err != nil {
		return Document{}, err
	}
	return s.createPriced(ctx, actor, kind, req)
}

func (s *Service) createPriced(ctx context.Context, actor shared.Actor, kind Kind, req DocumentRequest) (Document, error) {
	var created Document
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		party, err := partyFor(ctx, tx, actor.CompanyID, kind, req.PartyID)
		if err != nil {
			return err
		}
		if req.WarehouseID != 0 {
			if _, err := s.ledger.ResolveWarehouse(ctx, tx, actor.CompanyID, req.WarehouseID); err != nil {
				return err
			}
		}
		doc, err := s.price(ctx, tx, actor.CompanyID, kind, party, req.Lines)
		if err != nil {
			return err
		}
		applyHeader(&doc, req, s.now())
		doc.CompanyID = actor.CompanyID
		doc.Kind = kind
		doc.Status = lifecycle.StatusDraft
		doc.PartyID = party.ID
		doc.PartyName = party.Name
		doc.CreatedBy = actor.UserID
		if kind.Family() == FamilyBilling && doc.DueDate == nil {
			doc.DueDate = dueDate(doc.IssueDate, party.CreditDays)
		}
		created, err = s.insert(ctx, tx, actor, doc, nil)
		if err != nil {
			return err
		}
		if kind.Family() == FamilyBilling {
			if _, err := tx.AdjustPartyBalance(ctx, actor.CompanyID, party.ID, created.Total); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("document created",
		slog.String("kind", string(kind)),
		slog.String("number", created.Number),
		slog.Int64("company_id", actor.CompanyID),
		slog.String("total", created.Total.String()))
	return created, nil
}

// price runs the guard for a newly priced document and computes its lines and totals.
func (s *Service) price(ctx context.Context, tx Tx, companyID int64, kind Kind, party parties.Party, reqLines []LineRequest) (Document, error) {
	if len(reqLines) == 0 {
		return Document{}, shared.NewValidationError("at least one line is required", "lines", "required")
	}
	check := guard.Request{CompanyID: companyID, Flow: kind.Flow(), Lines: guardLines(reqLines)}
	if kind == KindSalesOrder {
		check.Stock = guard.StockOrder
	}
	products, err := s.guard.Check(ctx, tx, check)
	if err != nil {
		return Document{}, err
	}
	lines, result, err := buildLines(kind.Flow(), products, nil, reqLines)
	if err != nil {
		return Document{}, err
	}
	if kind == KindSalesOrder || kind == KindInvoice {
		if err := s.guard.Credit(kind.Flow(), &party, result.Total); err != nil {
			return Document{}, err
		}
	}
	doc := Document{Lines: lines}
	setTotals(&doc, result)
	return doc, nil
}

// UpdateDocument replaces the header and lines of a quotation or an order that has not
// been fulfilled. The guard and the calculator run again.
func (s *Service) UpdateDocument(ctx context.Context, actor shared.Actor, id int64, req DocumentRequest) (Document, error) {
	var updated Document
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := tx.GetDocumentForUpdate(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		family := doc.Kind.Family()
		if family != FamilyQuotation && family != FamilyOrder {
			return shared.InvalidTransitionf("%s %s cannot be edited", doc.Kind, doc.Number)
		}
		if err := doc.Kind.Machine().EnsureEditable(doc.Status); err != nil {
			return err
		}
		for _, l := range doc.Lines {
			if l.FulfilledQty.IsPositive() {
				return shared.InvalidTransitionf("%s %s is already being fulfilled", doc.Kind, doc.Number)
			}
		}
		party, err := partyFor(ctx, tx, actor.CompanyID, doc.Kind, req.PartyID)
		if err != nil {
			return err
		}
		if req.WarehouseID != 0 {
			if _, err := s.ledger.ResolveWarehouse(ctx, tx, actor.CompanyID, req.WarehouseID); err != nil {
				return err
			}
		}
		priced, err := s.price(ctx, tx, actor.CompanyID, doc.Kind, party, req.Lines)
		if err != nil {
			return err
		}
		applyHeader(&doc, req, doc.IssueDate)
		doc.PartyID = party.ID
		doc.PartyName = party.Name
		doc.UpdatedBy = actor.UserID
		setTotals(&doc, priced.totals())
		if err := tx.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		doc.Lines, err = tx.ReplaceLines(ctx, doc.ID, priced.Lines)
		if err != nil {
			return err
		}
		updated = doc
		return s.audit(ctx, tx, actor, "document.update", doc, map[string]any{"total": doc.Total.String()})
	})
	if err != nil {
		return Document{}, err
	}
	return updated, nil
}

// Transition applies a manual status change. CANCELLED reverses the side effects of
// the document first and keeps it as a cancelled record.
func (s *Service) Transition(ctx context.Context, actor shared.Actor, id int64, target string) (Document, error) {
	status, err := lifecycle.ParseStatus(strings.ToUpper(strings.TrimSpace(target)))
	if err != nil {
		return Document{}, err
	}
	var result Document
	err = s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := tx.GetDocumentForUpdate(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		from := doc.Status
		if status == lifecycle.StatusCancelled {
			if err := s.unwind(ctx, tx, actor, doc); err != nil {
				return err
			}
		} else if err := doc.Kind.Machine().ManualTransition(doc.Status, status); err != nil {
			return err
		}
		if from == status {
			result = doc
			return nil
		}
		if err := tx.SetStatus(ctx, actor.CompanyID, doc.ID, status, actor.UserID); err != nil {
			return err
		}
		doc.Status = status
		doc.UpdatedBy = actor.UserID
		result = doc
		return s.audit(ctx, tx, actor, "document.status", doc, map[string]any{"from": from, "to": status})
	})
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("document status changed",
		slog.String("number", result.Number),
		slog.String("status", string(result.Status)))
	return result, nil
}

// DeleteDocument reverses the side effects of a non-terminal document without active
// dependents and removes it.
func (s *Service) DeleteDocument(ctx context.Context, actor shared.Actor, id int64) error {
	var deleted Document
	err := s.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		doc, err := tx.GetDocumentForUpdate(ctx, actor.CompanyID, id)
		if err != nil {
			return err
		}
		if err := s.unwind(ctx, tx, actor, doc); err != nil {
			return err
		}
		if err := tx.DeleteDocument(ctx, actor.CompanyID, doc.ID); err != nil {
			return err
		}
		deleted = doc
		return s.audit(ctx, tx, actor, "document.delete", doc, nil)
	})
	if err != nil {
		return err
	}
	s.logger.Info("document deleted", slog.String("kind", string(deleted.Kind)), slog.String("number", deleted.Number))
	return nil
}

// unwind checks that doc may be removed and reverses what creating it did.
func (s *Service) unwind(ctx context.Context, tx Tx, actor shared.Actor, doc Document) error {
	machine := doc.Kind.Machine()
	if err := machine.Transition(doc.Status, lifecycle.StatusCancelled); err != nil {
		return err
	}
	if doc.Kind.Family() != FamilyFulfilment {
		active, err := activeDependents(ctx, tx, actor.CompanyID, doc.ID, "")
		if err != nil {
			return err
		}
		if err := machine.EnsureDeletable(doc.Status, len(active)); err != nil {
			return err
		}
	}
	switch doc.Kind.Family() {
	case FamilyOrder:
		return s.reopenSource(ctx, tx, actor, doc.SourceID, FamilyQuotation)
	case FamilyFulfilment:
		return s.unwindFulfilment(ctx, tx, actor, doc)
	case FamilyBilling:
		if _, err := tx.AdjustPartyBalance(ctx, actor.CompanyID, doc.PartyID, doc.Total.Neg()); err != nil {
			return err
		}
		return s.reopenSource(ctx, tx, actor, doc.SourceID, FamilyOrder)
	case FamilyReturn:
		if _, err := s.ledger.ReverseReference(ctx, tx, actor.CompanyID, string(doc.Kind), doc.ID, actor.UserID); err != nil {
			return err
		}
		_, err := tx.AdjustPartyBalance(ctx, actor.CompanyID, doc.PartyID, doc.Total)
		return err
	}
	return nil
}

// reopenSource moves a COMPLETED predecessor back to an open state.
func (s *Service) reopenSource(ctx context.Context, tx Tx, actor shared.Actor, sourceID int64, family Family) error {
	if sourceID == 0 {
		return nil
	}
	src, err := tx.GetDocumentForUpdate(ctx, actor.CompanyID, sourceID)
	if err != nil {
		return err
	}
	if src.Kind.Family() != family || src.Status != lifecycle.StatusCompleted {
		return nil
	}
	target := lifecycle.StatusApproved
	if family == FamilyOrder && src.FullyFulfilled() {
		target = lifecycle.StatusReceived
	}
	if err := src.Kind.Machine().Reopen(src.Status, target); err != nil {
		return err
	}
	if err := tx.SetStatus(ctx, actor.CompanyID, src.ID, target, actor.UserID); err != nil {
		return err
	}
	src.Status = target
	return s.audit(ctx, tx, actor, "document.reopen", src, map[string]any{"status": target})
}

func (s *Service) insert(ctx context.Context, tx Tx, actor shared.Actor, doc Document, meta map[string]any) (Document, error) {
	number, err := numbering.Next(ctx, tx, actor.CompanyID, doc.Kind.Prefix())
	if err != nil {
		return Document{}, err
	}
	doc.Number = number
	doc.UpdatedBy = doc.CreatedBy
	created, err := tx.InsertDocument(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	created.PartyName = doc.PartyName
	if meta == nil {
		meta = map[string]any{}
	}
	meta["number"] = created.Number
	meta["total"] = created.Total.String()
	if created.SourceID != 0 {
		meta["source_id"] = created.SourceID
	}
	return created, s.audit(ctx, tx, actor, "document.create", created, meta)
}

func (s *Service) audit(ctx context.Context, tx Tx, actor shared.Actor, action string, doc Document, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	meta["kind"] = doc.Kind
	return tx.RecordAudit(ctx, shared.AuditLog{
		CompanyID: actor.CompanyID,
		ActorID:   actor.UserID,
		Action:    action,
		Entity:    "document",
		EntityID:  strconv.FormatInt(doc.ID, 10),
		Meta:      meta,
		At:        s.now(),
	})
}

// partyFor loads the party of a new document with its row locked.
func partyFor(ctx context.Context, tx Tx, companyID int64, kind Kind, partyID int64) (parties.Party, error) {
	if partyID == 0 {
		return parties.Party{}, shared.NewValidationError("party is required", "party_id", "required")
	}
	party, err := tx.GetPartyForUpdate(ctx, companyID, partyID)
	if err != nil {
		return parties.Party{}, err
	}
	if party.Role != kind.PartyRole() {
		return parties.Party{}, shared.NewValidationError(fmt.Sprintf("%s requires a %s party", kind, strings.ToLower(string(kind.PartyRole()))), "party_id", "role")
	}
	if !party.IsActive {
		return parties.Party{}, shared.NewValidationError(fmt.Sprintf("party %d is inactive", party.ID), "party_id", "inactive")
	}
	return party, nil
}

func activeDependents(ctx context.Context, tx Tx, companyID, sourceID int64, family Family) ([]Document, error) {
	deps, err := tx.ListDependents(ctx, companyID, sourceID)
	if err != nil {
		return nil, err
	}
	out := deps[:0]
	for _, d := range deps {
		if d.Status == lifecycle.StatusCancelled {
			continue
		}
		if family != "" && d.Kind.Family() != family {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func guardLines(reqLines []LineRequest) []guard.Line {
	out := make([]guard.Line, 0, len(reqLines))
	for _, l := range reqLines {
		out = append(out, guard.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

// buildLines prices requested lines. Prices and tax rates default from the matching
// source line when sources holds one for the product, else from the product.
func buildLines(flow guard.Flow, products map[int64]masterdata.Product, sources map[int64]Line, reqLines []LineRequest) ([]Line, totals.Result, error) {
	inputs := make([]totals.LineInput, 0, len(reqLines))
	lines := make([]Line, 0, len(reqLines))
	for _, r := range reqLines {
		product := products[r.ProductID]
		line := Line{
			ProductID:      r.ProductID,
			Description:    strings.TrimSpace(r.Description),
			Quantity:       r.Quantity,
			DiscountAmount: r.DiscountAmount,
			FulfilledQty:   decimal.Zero,
		}
		if line.Description == "" {
			line.Description = product.Name
		}
		src, fromSource := sources[r.ProductID]
		switch {
		case r.UnitPrice != nil:
			line.UnitPrice = *r.UnitPrice
		case fromSource:
			line.UnitPrice = src.UnitPrice
		case flow == guard.FlowPurchase:
			line.UnitPrice = product.PurchasePrice
		default:
			line.UnitPrice = product.SalePrice
		}
		switch {
		case r.TaxRate != nil:
			line.TaxRate = *r.TaxRate
		case fromSource:
			line.TaxRate = src.TaxRate
		default:
			line.TaxRate = product.TaxRate
		}
		if fromSource {
			line.SourceLineID = src.ID
		}
		lines = append(lines, line)
		inputs = append(inputs, lineInput(line))
	}
	if err := totals.Validate(inputs); err != nil {
		return nil, totals.Result{}, err
	}
	result := totals.Calculate(inputs)
	for i := range lines {
		lines[i].TaxAmount = result.Lines[i].TaxAmount
		lines[i].Amount = result.Lines[i].Amount
	}
	return lines, result, nil
}

func lineInput(l Line) totals.LineInput {
	return totals.LineInput{Quantity: l.Quantity, UnitPrice: l.UnitPrice, TaxRate: l.TaxRate, DiscountAmount: l.DiscountAmount}
}

func setTotals(doc *Document, r totals.Result) {
	doc.Subtotal = r.Subtotal
	doc.DiscountAmount = r.DiscountAmount
	doc.TaxAmount = r.TaxAmount
	doc.Total = r.Total
}

func (d Document) totals() totals.Result {
	return totals.Result{Subtotal: d.Subtotal, DiscountAmount: d.DiscountAmount, TaxAmount: d.TaxAmount, Total: d.Total}
}

func applyHeader(doc *Document, req DocumentRequest, now time.Time) {
	doc.WarehouseID = req.WarehouseID
	doc.IssueDate = req.IssueDate
	if doc.IssueDate.IsZero() {
		doc.IssueDate = now
	}
	doc.DueDate = req.DueDate
	doc.Reference = strings.TrimSpace(req.Reference)
	doc.Notes = req.Notes
	doc.BillingAddress = req.BillingAddress
	doc.ShippingAddress = req.ShippingAddress
}

func dueDate(issue time.Time, creditDays int) *time.Time {
	if creditDays <= 0 {
		return nil
	}
	due := issue.AddDate(0, 0, creditDays)
	return &due
}
