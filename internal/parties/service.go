package parties

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Service coordinates party operations.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Create registers a customer or vendor. Emails are unique per company and role after
// case folding.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreatePartyRequest) (Party, error) {
	if !req.Role.IsValid() {
		return Party{}, shared.NewValidationError("unknown party role", "role", string(req.Role))
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return Party{}, shared.NewValidationError("party name is required", "name", "required")
	}
	if req.CreditLimit.IsNegative() {
		return Party{}, shared.NewValidationError("credit limit must not be negative", "credit_limit", "min")
	}
	if req.CreditDays < 0 {
		return Party{}, shared.NewValidationError("credit days must not be negative", "credit_days", "min")
	}
	party := Party{
		CompanyID:   actor.CompanyID,
		Role:        req.Role,
		Name:        name,
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		CreditLimit: req.CreditLimit,
		CreditDays:  req.CreditDays,
		IsActive:    true,
		CreatedBy:   actor.UserID,
	}
	var created Party
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if party.Email != "" {
			_, err := tx.FindByEmailKey(ctx, party.CompanyID, party.Role, EmailKey(party.Email))
			if err == nil {
				return fmt.Errorf("%w: party email %s", shared.ErrDuplicateEntry, party.Email)
			}
			if !errors.Is(err, shared.ErrNotFound) {
				return err
			}
		}
		var err error
		created, err = tx.Create(ctx, party)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			CompanyID: actor.CompanyID,
			ActorID:   actor.UserID,
			Action:    "party.create",
			Entity:    "party",
			EntityID:  strconv.FormatInt(created.ID, 10),
			Meta:      map[string]any{"role": created.Role},
		})
	})
	if err != nil {
		return Party{}, err
	}
	return created, nil
}

// Get loads a party.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Party, error) {
	return s.repo.Get(ctx, companyID, id)
}

// List lists parties.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Party, error) {
	return s.repo.List(ctx, filters)
}

// RecordPayment decreases the party balance by the paid amount.
func (s *Service) RecordPayment(ctx context.Context, actor shared.Actor, partyID int64, req RecordPaymentRequest) (Payment, error) {
	if !req.Amount.IsPositive() {
		return Payment{}, shared.NewValidationError("payment amount must be positive", "amount", "min")
	}
	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		party, err := tx.GetForUpdate(ctx, actor.CompanyID, partyID)
		if err != nil {
			return err
		}
		if !party.IsActive {
			return shared.NewValidationError("party is inactive", "party_id", strconv.FormatInt(partyID, 10))
		}
		balance, err := tx.AdjustBalance(ctx, actor.CompanyID, partyID, req.Amount.Neg())
		if err != nil {
			return err
		}
		payment = Payment{
			CompanyID:    actor.CompanyID,
			PartyID:      partyID,
			Amount:       req.Amount,
			PaidAt:       paidAt,
			Reference:    strings.TrimSpace(req.Reference),
			BalanceAfter: balance,
			RecordedBy:   actor.UserID,
		}
		payment.ID, err = tx.InsertPayment(ctx, payment)
		if err != nil {
			return err
		}
		return tx.RecordAudit(ctx, shared.AuditLog{
			CompanyID: actor.CompanyID,
			ActorID:   actor.UserID,
			Action:    "party.payment",
			Entity:    "party",
			EntityID:  strconv.FormatInt(partyID, 10),
			Meta:      map[string]any{"amount": req.Amount.String(), "balance_after": balance.String()},
		})
	})
	if err != nil {
		return Payment{}, err
	}
	s.logger.Info("payment recorded", slog.Int64("party_id", partyID), slog.String("amount", req.Amount.String()))
	return payment, nil
}
