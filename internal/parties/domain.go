package parties

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Role distinguishes customers from vendors.
type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleVendor   Role = "VENDOR"
)

// IsValid reports whether the role is known.
func (r Role) IsValid() bool { return r == RoleCustomer || r == RoleVendor }

// Party is a customer or vendor of a company.
type Party struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	Role           Role            `json:"role"`
	Name           string          `json:"name"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	CreditLimit    decimal.Decimal `json:"credit_limit"`
	CreditDays     int             `json:"credit_days"`
	IsActive       bool            `json:"is_active"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Payment reduces what a party owes or is owed.
type Payment struct {
	ID           int64           `json:"id"`
	CompanyID    int64           `json:"company_id"`
	PartyID      int64           `json:"party_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaidAt       time.Time       `json:"paid_at"`
	Reference    string          `json:"reference,omitempty"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	RecordedBy   int64           `json:"recorded_by"`
}

// CreatePartyRequest is the payload for a new party.
type CreatePartyRequest struct {
	Role        Role            `json:"role" validate:"required,oneof=CUSTOMER VENDOR"`
	Name        string          `json:"name" validate:"required,max=200"`
	Email       string          `json:"email" validate:"omitempty,email"`
	Phone       string          `json:"phone" validate:"max=50"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	CreditDays  int             `json:"credit_days" validate:"min=0"`
}

// RecordPaymentRequest is the payload for a payment.
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paid_at"`
	Reference string          `json:"reference" validate:"max=100"`
}

// ListFilters narrows party listings.
type ListFilters struct {
	CompanyID int64
	Role      Role
	Limit     int
	Offset    int
}

// EmailKey folds an email for uniqueness checks.
func EmailKey(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// TxRepository exposes the operations used inside a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, companyID, id int64) (Party, error)
	FindByEmailKey(ctx context.Context, companyID int64, role Role, key string) (Party, error)
	Create(ctx context.Context, p Party) (Party, error)
	AdjustBalance(ctx context.Context, companyID, id int64, delta decimal.Decimal) (decimal.Decimal, error)
	InsertPayment(ctx context.Context, p Payment) (int64, error)
	RecordAudit(ctx context.Context, log shared.AuditLog) error
}

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID, id int64) (Party, error)
	List(ctx context.Context, filters ListFilters) ([]Party, error)
}
