package documents

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/maanisingh/Accounting-software-sub001/internal/inventory"
	"github.com/maanisingh/Accounting-software-sub001/internal/lifecycle"
	"github.com/maanisingh/Accounting-software-sub001/internal/masterdata"
	"github.com/maanisingh/Accounting-software-sub001/internal/parties"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

type stockKey struct {
	productID   int64
	warehouseID int64
}

// memoryStore is a single-goroutine Store. Every Tx call writes through and WithTx
// restores a snapshot when the callback fails.
type memoryStore struct {
	products   map[int64]masterdata.Product
	warehouses []masterdata.Warehouse
	parties    map[int64]parties.Party
	stock      map[stockKey]inventory.Stock
	movements  []inventory.Movement
	sequences  map[string]int64
	docs       map[int64]Document
	audits     []shared.AuditLog

	nextDoc      int64
	nextLine     int64
	nextMovement int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		products:  make(map[int64]masterdata.Product),
		parties:   make(map[int64]parties.Party),
		stock:     make(map[stockKey]inventory.Stock),
		sequences: make(map[string]int64),
		docs:      make(map[int64]Document),
	}
}

type snapshot struct {
	parties   map[int64]parties.Party
	stock     map[stockKey]inventory.Stock
	sequences map[string]int64
	docs      map[int64]Document
	movements int
	audits    int
	counters  [3]int64
}

func (m *memoryStore) snapshot() snapshot {
	return snapshot{
		parties:   maps.Clone(m.parties),
		stock:     maps.Clone(m.stock),
		sequences: maps.Clone(m.sequences),
		docs:      maps.Clone(m.docs),
		movements: len(m.movements),
		audits:    len(m.audits),
		counters:  [3]int64{m.nextDoc, m.nextLine, m.nextMovement},
	}
}

func (m *memoryStore) restore(s snapshot) {
	m.parties = s.parties
	m.stock = s.stock
	m.sequences = s.sequences
	m.docs = s.docs
	m.movements = m.movements[:s.movements]
	m.audits = m.audits[:s.audits]
	m.nextDoc, m.nextLine, m.nextMovement = s.counters[0], s.counters[1], s.counters[2]
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	snap := m.snapshot()
	if err := fn(ctx, m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memoryStore) GetDocument(_ context.Context, companyID, id int64) (Document, error) {
	d, ok := m.docs[id]
	if !ok || d.CompanyID != companyID {
		return Document{}, shared.NotFoundf("document %d", id)
	}
	d.Lines = slices.Clone(d.Lines)
	return d, nil
}

func (m *memoryStore) GetDocumentForUpdate(ctx context.Context, companyID, id int64) (Document, error) {
	return m.GetDocument(ctx, companyID, id)
}

func (m *memoryStore) ListDocuments(_ context.Context, f ListFilters) ([]Document, error) {
	var out []Document
	for _, d := range m.docs {
		if d.CompanyID != f.CompanyID {
			continue
		}
		if (f.Kind != "" && d.Kind != f.Kind) || (f.Status != "" && d.Status != f.Status) {
			continue
		}
		if (f.PartyID != 0 && d.PartyID != f.PartyID) || (f.SourceID != 0 && d.SourceID != f.SourceID) {
			continue
		}
		d.Lines = nil
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryStore) ListDependents(ctx context.Context, companyID, sourceID int64) ([]Document, error) {
	return m.ListDocuments(ctx, ListFilters{CompanyID: companyID, SourceID: sourceID})
}

func (m *memoryStore) InsertDocument(_ context.Context, doc Document) (Document, error) {
	for _, d := range m.docs {
		if d.CompanyID == doc.CompanyID && d.Number == doc.Number {
			return Document{}, shared.ErrDuplicateEntry
		}
	}
	m.nextDoc++
	doc.ID = m.nextDoc
	doc.Lines = m.stampLines(doc.ID, doc.Lines)
	m.docs[doc.ID] = doc
	doc.Lines = slices.Clone(doc.Lines)
	return doc, nil
}

func (m *memoryStore) stampLines(docID int64, lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for i, l := range lines {
		m.nextLine++
		l.ID = m.nextLine
		l.DocumentID = docID
		l.LineNo = i + 1
		out = append(out, l)
	}
	return out
}

func (m *memoryStore) UpdateDocument(_ context.Context, doc Document) error {
	cur, ok := m.docs[doc.ID]
	if !ok {
		return shared.NotFoundf("document %d", doc.ID)
	}
	doc.Lines = cur.Lines
	m.docs[doc.ID] = doc
	return nil
}

func (m *memoryStore) ReplaceLines(_ context.Context, documentID int64, lines []Line) ([]Line, error) {
	d, ok := m.docs[documentID]
	if !ok {
		return nil, shared.NotFoundf("document %d", documentID)
	}
	d.Lines = m.stampLines(documentID, lines)
	m.docs[documentID] = d
	return slices.Clone(d.Lines), nil
}

func (m *memoryStore) SetLineFulfilled(_ context.Context, lineID int64, qty decimal.Decimal) error {
	for id, d := range m.docs {
		for i, l := range d.Lines {
			if l.ID != lineID {
				continue
			}
			d.Lines = slices.Clone(d.Lines)
			d.Lines[i].FulfilledQty = qty
			m.docs[id] = d
			return nil
		}
	}
	return shared.NotFoundf("line %d", lineID)
}

func (m *memoryStore) SetStatus(_ context.Context, companyID, id int64, status lifecycle.Status, actorID int64) error {
	d, ok := m.docs[id]
	if !ok || d.CompanyID != companyID {
		return shared.NotFoundf("document %d", id)
	}
	d.Status = status
	d.UpdatedBy = actorID
	m.docs[id] = d
	return nil
}

func (m *memoryStore) DeleteDocument(_ context.Context, companyID, id int64) error {
	d, ok := m.docs[id]
	if !ok || d.CompanyID != companyID {
		return shared.NotFoundf("document %d", id)
	}
	delete(m.docs, id)
	for k, other := range m.docs {
		if other.SourceID == id {
			other.SourceID = 0
			m.docs[k] = other
		}
	}
	return nil
}

func (m *memoryStore) GetPartyForUpdate(_ context.Context, companyID, id int64) (parties.Party, error) {
	p, ok := m.parties[id]
	if !ok || p.CompanyID != companyID {
		return parties.Party{}, shared.NotFoundf("party %d", id)
	}
	return p, nil
}

func (m *memoryStore) AdjustPartyBalance(_ context.Context, companyID, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	p, ok := m.parties[id]
	if !ok || p.CompanyID != companyID {
		return decimal.Zero, shared.NotFoundf("party %d", id)
	}
	p.CurrentBalance = p.CurrentBalance.Add(delta)
	m.parties[id] = p
	return p.CurrentBalance, nil
}

func (m *memoryStore) GetProduct(_ context.Context, companyID, id int64) (masterdata.Product, error) {
	p, ok := m.products[id]
	if !ok || p.CompanyID != companyID {
		return masterdata.Product{}, shared.NotFoundf("product %d", id)
	}
	return p, nil
}

func (m *memoryStore) GetWarehouse(_ context.Context, companyID, id int64) (masterdata.Warehouse, error) {
	for _, w := range m.warehouses {
		if w.ID == id && w.CompanyID == companyID {
			return w, nil
		}
	}
	return masterdata.Warehouse{}, shared.NotFoundf("warehouse %d", id)
}

func (m *memoryStore) DefaultWarehouse(_ context.Context, companyID int64) (masterdata.Warehouse, error) {
	for _, w := range m.warehouses {
		if w.CompanyID == companyID && w.IsDefault && w.IsActive {
			return w, nil
		}
	}
	return masterdata.Warehouse{}, shared.NotFoundf("default warehouse")
}

func (m *memoryStore) FirstActiveWarehouse(_ context.Context, companyID int64) (masterdata.Warehouse, error) {
	for _, w := range m.warehouses {
		if w.CompanyID == companyID && w.IsActive {
			return w, nil
		}
	}
	return masterdata.Warehouse{}, shared.NotFoundf("active warehouse")
}

func (m *memoryStore) isActiveWarehouse(id int64) bool {
	for _, w := range m.warehouses {
		if w.ID == id {
			return w.IsActive
		}
	}
	return false
}

func (m *memoryStore) Availability(_ context.Context, companyID, productID, warehouseID int64) (inventory.Availability, error) {
	out := inventory.Availability{Quantity: decimal.Zero}
	for k, s := range m.stock {
		if s.CompanyID != companyID || k.productID != productID || !m.isActiveWarehouse(k.warehouseID) {
			continue
		}
		if warehouseID != 0 && k.warehouseID != warehouseID {
			continue
		}
		out.Quantity = out.Quantity.Add(s.AvailableQty)
	}
	return out, nil
}

func (m *memoryStore) LockStock(_ context.Context, companyID, productID, warehouseID int64) (inventory.Stock, error) {
	k := stockKey{productID, warehouseID}
	s, ok := m.stock[k]
	if !ok {
		s = inventory.Stock{CompanyID: companyID, ProductID: productID, WarehouseID: warehouseID}
		m.stock[k] = s
	}
	return s, nil
}

func (m *memoryStore) UpdateStock(_ context.Context, s inventory.Stock) error {
	k := stockKey{s.ProductID, s.WarehouseID}
	if _, ok := m.stock[k]; !ok {
		return inventory.ErrStockNotFound
	}
	m.stock[k] = s
	return nil
}

func (m *memoryStore) InsertMovement(_ context.Context, mv inventory.Movement) (int64, error) {
	m.nextMovement++
	mv.ID = m.nextMovement
	m.movements = append(m.movements, mv)
	return mv.ID, nil
}

func (m *memoryStore) ListMovementsByReference(_ context.Context, companyID int64, referenceType string, referenceID int64) ([]inventory.Movement, error) {
	var out []inventory.Movement
	for _, mv := range m.movements {
		if mv.CompanyID == companyID && mv.ReferenceType == referenceType && mv.ReferenceID == referenceID {
			out = append(out, mv)
		}
	}
	return out, nil
}

func (m *memoryStore) NextSequence(_ context.Context, companyID int64, prefix string) (int64, error) {
	k := strconv.FormatInt(companyID, 10) + ":" + prefix
	m.sequences[k]++
	return m.sequences[k], nil
}

func (m *memoryStore) RecordAudit(_ context.Context, log shared.AuditLog) error {
	if err := shared.ValidateAudit(log); err != nil {
		return err
	}
	m.audits = append(m.audits, log)
	return nil
}

func (m *memoryStore) quantity(productID, warehouseID int64) decimal.Decimal {
	return m.stock[stockKey{productID, warehouseID}].Quantity
}

func (m *memoryStore) balance(partyID int64) decimal.Decimal {
	return m.parties[partyID].CurrentBalance
}

func (m *memoryStore) auditActions() []string {
	out := make([]string, 0, len(m.audits))
	for _, a := range m.audits {
		out = append(out, a.Action)
	}
	return out
}
