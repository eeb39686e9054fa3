// Package lifecycle holds the document status machines.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Status is a document lifecycle state.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusApproved  Status = "APPROVED"
	StatusReceived  Status = "RECEIVED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

var allStatuses = []Status{StatusDraft, StatusSent, StatusApproved, StatusReceived, StatusCompleted, StatusCancelled}

// ParseStatus converts user input into a Status.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range allStatuses {
		if s == known {
			return s, nil
		}
	}
	return "", shared.NewValidationError(fmt.Sprintf("unknown status %q", raw), "status", "unknown")
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Machine is the transition table of one document family.
type Machine struct {
	name    string
	allowed map[Status][]Status
	manual  map[Status]bool
	reopen  []Status
}

func newMachine(name string, allowed map[Status][]Status, manual []Status, reopen []Status) Machine {
	m := Machine{name: name, allowed: make(map[Status][]Status), manual: make(map[Status]bool), reopen: reopen}
	for from, targets := range allowed {
		if from.IsTerminal() {
			continue
		}
		m.allowed[from] = append(append([]Status{}, targets...), StatusCancelled)
	}
	for _, s := range manual {
		m.manual[s] = true
	}
	m.manual[StatusCancelled] = true
	return m
}

var (
	// Quotation machine. COMPLETED is set by conversion to an order.
	Quotation = newMachine("quotation", map[Status][]Status{
		StatusDraft:    {StatusSent, StatusApproved, StatusCompleted},
		StatusSent:     {StatusApproved, StatusCompleted},
		StatusApproved: {StatusCompleted},
	}, []Status{StatusSent, StatusApproved}, []Status{StatusApproved})

	// Order machine for sales and purchase orders. RECEIVED follows full fulfilment and
	// COMPLETED follows billing.
	Order = newMachine("order", map[Status][]Status{
		StatusDraft:    {StatusSent, StatusApproved, StatusReceived},
		StatusSent:     {StatusApproved, StatusReceived},
		StatusApproved: {StatusReceived, StatusCompleted},
		StatusReceived: {StatusApproved, StatusCompleted},
	}, []Status{StatusSent, StatusApproved}, []Status{StatusApproved, StatusReceived})

	// Fulfilment machine for delivery challans and goods receipts.
	Fulfilment = newMachine("fulfilment", map[Status][]Status{
		StatusDraft:    {StatusSent, StatusReceived},
		StatusSent:     {StatusReceived},
		StatusReceived: {StatusCompleted},
	}, []Status{StatusSent, StatusReceived, StatusCompleted}, nil)

	// Billing machine for invoices and bills.
	Billing = newMachine("billing", map[Status][]Status{
		StatusDraft:    {StatusSent, StatusApproved, StatusCompleted},
		StatusSent:     {StatusApproved, StatusCompleted},
		StatusApproved: {StatusCompleted},
	}, []Status{StatusSent, StatusApproved, StatusCompleted}, nil)

	// Return machine for sales and purchase returns.
	Return = newMachine("return", map[Status][]Status{
		StatusDraft:    {StatusApproved, StatusCompleted},
		StatusApproved: {StatusCompleted},
	}, []Status{StatusApproved, StatusCompleted}, nil)
)

// Name identifies the machine in error messages.
func (m Machine) Name() string { return m.name }

// Can reports whether from -> to is in the table.
func (m Machine) Can(from, to Status) bool {
	for _, t := range m.allowed[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to. A same-state move is a no-op for non-terminal states.
func (m Machine) Transition(from, to Status) error {
	if from == to && !from.IsTerminal() {
		return nil
	}
	if !m.Can(from, to) {
		return shared.InvalidTransitionf("%s cannot move from %s to %s", m.name, from, to)
	}
	return nil
}

// ManualTransition validates a user requested move. Targets the system derives are
// rejected as validation errors.
func (m Machine) ManualTransition(from, to Status) error {
	if !m.manual[to] {
		return shared.NewValidationError(fmt.Sprintf("%s status %s is not set manually", m.name, to), "status", "not allowed")
	}
	return m.Transition(from, to)
}

// Reopen validates moving a COMPLETED document back to an open state after the
// successor that completed it was removed.
func (m Machine) Reopen(from, to Status) error {
	if from != StatusCompleted {
		return shared.InvalidTransitionf("%s cannot reopen from %s", m.name, from)
	}
	for _, s := range m.reopen {
		if s == to {
			return nil
		}
	}
	return shared.InvalidTransitionf("%s cannot reopen to %s", m.name, to)
}

// CanEdit reports whether a document in status s can be edited.
func (m Machine) CanEdit(s Status) bool { return !s.IsTerminal() }

// EnsureEditable returns InvalidStatusTransition for terminal documents.
func (m Machine) EnsureEditable(s Status) error {
	if !m.CanEdit(s) {
		return shared.InvalidTransitionf("%s is %s and can no longer be changed", m.name, s)
	}
	return nil
}

// EnsureDeletable returns InvalidStatusTransition for terminal documents and for
// documents that still have active dependents.
func (m Machine) EnsureDeletable(s Status, activeDependents int) error {
	if err := m.EnsureEditable(s); err != nil {
		return err
	}
	if activeDependents > 0 {
		return shared.InvalidTransitionf("%s has %d dependent document(s)", m.name, activeDependents)
	}
	return nil
}
