package service

import (
	"time"

	"github.com/mmynk/expenseledger/internal/ledger"
	"github.com/mmynk/expenseledger/internal/models"
)

// DateLayout is the wire format of calendar days.
const DateLayout = "2006-01-02"

type Empty struct{}

type ExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type GetAllocationResponse struct {
	Allocation *ledger.Allocation `json:"allocation"`
	Locked     bool               `json:"locked"`
}

type ChangeSplitModeRequest struct {
	ExpenseID    string           `json:"expense_id"`
	Mode         models.SplitMode `json:"mode"`
	ConfirmClear bool             `json:"confirm_clear"`
}

type ChangeSplitModeResponse struct {
	Plan ledger.TransitionPlan `json:"plan"`
}

type SetSharesRequest struct {
	ExpenseID string         `json:"expense_id"`
	OwnShares int            `json:"own_shares"`
	Shares    []ledger.Share `json:"shares"`
}

type AssignItemsRequest struct {
	ExpenseID string `json:"expense_id"`
	// Assignments maps line item ID to party ID; "" unassigns.
	Assignments map[string]string `json:"assignments"`
}

// AllocationResponse returns the allocation after a mutation.
type AllocationResponse struct {
	Allocation *ledger.Allocation `json:"allocation"`
}

type SettleRequest struct {
	ExpenseID string  `json:"expense_id"`
	PartyID   string  `json:"party_id"`
	Amount    float64 `json:"amount"`
	// Date is YYYY-MM-DD; empty means today.
	Date            string `json:"date,omitempty"`
	PaymentMethodID string `json:"payment_method_id"`
}

type Settlement struct {
	ID        string `json:"id"`
	ExpenseID string `json:"expense_id"`
	PartyID   string `json:"party_id"`
	CreditID  string `json:"credit_id"`
	Date      string `json:"date"`
}

type SettleResponse struct {
	Settlement Settlement `json:"settlement"`
}

type UnsettleRequest struct {
	ExpenseID string `json:"expense_id"`
	PartyID   string `json:"party_id"`
}

type MarkExpensePaidRequest struct {
	ExpenseID       string `json:"expense_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

type IsLockedResponse struct {
	Locked bool `json:"locked"`
}

type GetStatsRequest struct {
	PartyID       string `json:"party_id"`
	UnsettledOnly bool   `json:"unsettled_only"`
}

type GetStatsResponse struct {
	Stats        ledger.Stats         `json:"stats"`
	Transactions []ledger.Transaction `json:"transactions"`
}

type GetTimeSeriesRequest struct {
	PartyID string `json:"party_id"`
}

type GetPaymentMethodSeriesRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

type SeriesResponse struct {
	Points []ledger.Point `json:"points"`
}

type BulkAssignResponse struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

type LineItem struct {
	ID             string  `json:"id,omitempty"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	PartyID        string  `json:"party_id,omitempty"`
	DiscountExempt bool    `json:"discount_exempt,omitempty"`
}

// Expense is the wire form of an expense. NetTotal and Locked are only
// set in responses.
type Expense struct {
	ID              string           `json:"id,omitempty"`
	Description     string           `json:"description"`
	Date            string           `json:"date,omitempty"`
	Items           []LineItem       `json:"items,omitempty"`
	TotalOnly       bool             `json:"total_only,omitempty"`
	FlatTotal       float64          `json:"flat_total,omitempty"`
	DiscountPercent float64          `json:"discount_percent,omitempty"`
	SplitMode       models.SplitMode `json:"split_mode,omitempty"`
	OwnShares       int              `json:"own_shares,omitempty"`
	Shares          []ledger.Share   `json:"shares,omitempty"`
	Status          models.Status    `json:"status,omitempty"`
	OwedTo          string           `json:"owed_to,omitempty"`
	PaymentMethodID string           `json:"payment_method_id,omitempty"`
	NetTotal        float64          `json:"net_total"`
	Locked          bool             `json:"locked"`
}

type ExpenseMessage struct {
	Expense Expense `json:"expense"`
}

type Party struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type PaymentMethod struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type PartyResponse struct {
	Party Party `json:"party"`
}

type ListPartiesResponse struct {
	Parties []Party `json:"parties"`
}

type PaymentMethodResponse struct {
	PaymentMethod PaymentMethod `json:"payment_method"`
}

type ListPaymentMethodsResponse struct {
	PaymentMethods []PaymentMethod `json:"payment_methods"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

func toUser(u *models.User) User {
	return User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   time.Unix(u.CreatedAt, 0).UTC(),
	}
}

func toSettlement(r *models.SettlementRecord) Settlement {
	return Settlement{
		ID:        r.ID,
		ExpenseID: r.ExpenseID,
		PartyID:   r.PartyID,
		CreditID:  r.CreditID,
		Date:      r.Date.Format(DateLayout),
	}
}

// fromExpense converts a wire expense. An empty date means today.
func fromExpense(x Expense, today time.Time) (*models.Expense, error) {
	date := today
	if x.Date != "" {
		parsed, err := time.Parse(DateLayout, x.Date)
		if err != nil {
			return nil, err
		}
		date = parsed
	}

	expense := &models.Expense{
		ID:              x.ID,
		Description:     x.Description,
		Date:            date,
		TotalOnly:       x.TotalOnly,
		FlatTotal:       x.FlatTotal,
		DiscountPercent: x.DiscountPercent,
		SplitMode:       x.SplitMode,
		OwnShares:       x.OwnShares,
		Status:          x.Status,
		OwedTo:          x.OwedTo,
		PaymentMethodID: x.PaymentMethodID,
	}
	for _, item := range x.Items {
		expense.Items = append(expense.Items, models.LineItem{
			ID:             item.ID,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			PartyID:        item.PartyID,
			DiscountExempt: item.DiscountExempt,
		})
	}
	for _, share := range x.Shares {
		expense.Splits = append(expense.Splits, models.SplitRecord{PartyID: share.PartyID, Shares: share.Shares})
	}
	return expense, nil
}

func toExpense(e *models.Expense, locked bool) Expense {
	x := Expense{
		ID:              e.ID,
		Description:     e.Description,
		Date:            e.Date.Format(DateLayout),
		TotalOnly:       e.TotalOnly,
		FlatTotal:       e.FlatTotal,
		DiscountPercent: e.DiscountPercent,
		SplitMode:       e.SplitMode,
		OwnShares:       e.OwnShares,
		Status:          e.Status,
		OwedTo:          e.OwedTo,
		PaymentMethodID: e.PaymentMethodID,
		NetTotal:        ledger.NetTotal(e),
		Locked:          locked,
	}
	for _, item := range e.Items {
		x.Items = append(x.Items, LineItem{
			ID:             item.ID,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			PartyID:        item.PartyID,
			DiscountExempt: item.DiscountExempt,
		})
	}
	for _, split := range e.Splits {
		x.Shares = append(x.Shares, ledger.Share{PartyID: split.PartyID, Shares: split.Shares})
	}
	return x
}

func toParty(p *models.Party) Party {
	return Party{ID: p.ID, Name: p.Name, Active: p.Active}
}

func toPaymentMethod(m *models.PaymentMethod) PaymentMethod {
	return PaymentMethod{ID: m.ID, Name: m.Name}
}
