package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/expenseledger/internal/ledger"
	"github.com/mmynk/expenseledger/internal/middleware"
)

// LedgerService exposes the allocation and settlement engine.
type LedgerService struct {
	engine *ledger.Engine
	now    func() time.Time
}

// NewLedgerService creates a LedgerService backed by engine.
func NewLedgerService(engine *ledger.Engine) *LedgerService {
	return &LedgerService{engine: engine, now: time.Now}
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return connect.NewError(connect.CodeInvalidArgument, &ledger.ValidationError{Reason: field + " is required"})
	}
	return nil
}

// GetAllocation returns what each party owes on an expense.
func (s *LedgerService) GetAllocation(ctx context.Context, req *ExpenseRequest) (*GetAllocationResponse, error) {
	if err := required("expense_id", req.ExpenseID); err != nil {
		return nil, err
	}
	alloc, err := s.engine.Allocation(ctx, req.ExpenseID)
	if err != nil {
		return nil, err
	}
	locked, err := s.engine.IsLocked(ctx, req.ExpenseID)
	if err != nil {
		return nil, err
	}
	return &GetAllocationResponse{Allocation: alloc, Locked: locked}, nil
}

// ChangeSplitMode switches the split mode of an expense.
func (s *LedgerService) ChangeSplitMode(ctx context.Context, req *ChangeSplitModeRequest) (*ChangeSplitModeResponse, error) {
	if err := required("expense_id", req.ExpenseID); err != nil {
		return nil, err
	}
	plan, err := s.engine.ChangeSplitMode(ctx, req.ExpenseID, req.Mode, req.ConfirmClear)
	if err != nil {
		return nil, err
	}
	return &ChangeSplitModeResponse{Plan: plan}, nil
}

// SetShares replaces the share records of an expense.
func (s *LedgerService) SetShares(ctx context.Context, req *SetSharesRequest) (*AllocationResponse, error) {
	if err := required("expense_id", req.ExpenseID); err != nil {
		return nil, err
	}
	if err := s.engine.SetShares(ctx, req.ExpenseID, req.OwnShares, req.Shares); err != nil {
		return nil, err
	}
	return s.allocation(ctx, req.ExpenseID)
}

// AssignItems assigns line items to parties.
func (s *LedgerService) AssignItems(ctx context.Context, req *AssignItemsRequest) (*AllocationResponse, error) {
	if err := required("expense_id", req.ExpenseID); err != nil {
		return nil, err
	}
	if err := s.engine.AssignItems(ctx, req.ExpenseID, req.Assignments); err != nil {
		return nil, err
	}
	return s.allocation(ctx, req.ExpenseID)
}

func (s *LedgerService) allocation(ctx context.Context, expenseID string) (*AllocationResponse, error) {
	alloc, err := s.engine.Allocation(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	return &AllocationResponse{Allocation: alloc}, nil
}

// Settle records a party's payment of its share.
func (s *LedgerService) Settle(ctx context.Context, req *SettleRequest) (*SettleResponse, error) {
	date := s.now()
	if req.Date != "" {
		parsed, err := time.Parse(DateLayout, req.Date)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, err)
		}
		date = parsed
	}

	record, err := s.engine.Settle(ctx, ledger.SettleRequest{
		ExpenseID:       req.ExpenseID,
		PartyID:         req.PartyID,
		Amount:          req.Amount,
		Date:            date,
		PaymentMethodID: req.PaymentMethodID,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("settlement recorded", "user_id", middleware.GetUserID(ctx), "settlement_id", record.ID)
	return &SettleResponse{Settlement: toSettlement(record)}, nil
}

// Unsettle reverses a settlement.
func (s *LedgerService) Unsettle(ctx context.Context, req *UnsettleRequest) (*Empty, error) {
	if err := s.engine.Unsettle(ctx, req.ExpenseID, req.PartyID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// MarkExpensePaid marks the whole expense paid to the party it is owed to.
func (s *LedgerService) MarkExpensePaid(ctx context.Context, req *MarkExpensePaidRequest) (*Empty, error) {
	if err := s.engine.MarkExpensePaid(ctx, req.ExpenseID, req.PaymentMethodID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// MarkExpenseUnpaid reverts MarkExpensePaid.
func (s *LedgerService) MarkExpenseUnpaid(ctx context.Context, req *ExpenseRequest) (*Empty, error) {
	if err := s.engine.MarkExpenseUnpaid(ctx, req.ExpenseID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// IsLocked tells whether allocation edits are blocked by settlements.
func (s *LedgerService) IsLocked(ctx context.Context, req *ExpenseRequest) (*IsLockedResponse, error) {
	locked, err := s.engine.IsLocked(ctx, req.ExpenseID)
	if err != nil {
		return nil, err
	}
	return &IsLockedResponse{Locked: locked}, nil
}

// GetStats returns the party's balance summary and its transactions.
func (s *LedgerService) GetStats(ctx context.Context, req *GetStatsRequest) (*GetStatsResponse, error) {
	if err := required("party_id", req.PartyID); err != nil {
		return nil, err
	}
	stats, err := s.engine.Stats(ctx, req.PartyID)
	if err != nil {
		return nil, err
	}
	txs, err := s.engine.Transactions(ctx, req.PartyID, ledger.Filter{UnsettledOnly: req.UnsettledOnly})
	if err != nil {
		return nil, err
	}
	return &GetStatsResponse{Stats: stats, Transactions: txs}, nil
}

// GetTimeSeries returns the party's daily running balance.
func (s *LedgerService) GetTimeSeries(ctx context.Context, req *GetTimeSeriesRequest) (*SeriesResponse, error) {
	if err := required("party_id", req.PartyID); err != nil {
		return nil, err
	}
	points, err := s.engine.TimeSeries(ctx, req.PartyID)
	if err != nil {
		return nil, err
	}
	return &SeriesResponse{Points: points}, nil
}

// GetPaymentMethodSeries returns the daily running balance of a payment method.
func (s *LedgerService) GetPaymentMethodSeries(ctx context.Context, req *GetPaymentMethodSeriesRequest) (*SeriesResponse, error) {
	if err := required("payment_method_id", req.PaymentMethodID); err != nil {
		return nil, err
	}
	points, err := s.engine.PaymentMethodSeries(ctx, req.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	return &SeriesResponse{Points: points}, nil
}

// BulkAssign allocates a batch of expenses to one party.
func (s *LedgerService) BulkAssign(ctx context.Context, req *ledger.BulkRequest) (*BulkAssignResponse, error) {
	result, err := s.engine.BulkAssign(ctx, *req, func(percent int) {
		slog.Debug("bulk assign progress", "party_id", req.PartyID, "percent", percent)
	})
	if err != nil {
		return nil, err
	}
	return &BulkAssignResponse{Applied: result.Applied, Skipped: result.Skipped}, nil
}

// CreateExpense records a new expense.
func (s *LedgerService) CreateExpense(ctx context.Context, req *ExpenseMessage) (*ExpenseMessage, error) {
	expense, err := fromExpense(req.Expense, s.now())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	expense.ID = ""
	if err := s.engine.CreateExpense(ctx, expense); err != nil {
		return nil, err
	}
	slog.Debug("expense recorded", "user_id", middleware.GetUserID(ctx), "expense_id", expense.ID)
	return &ExpenseMessage{Expense: toExpense(expense, false)}, nil
}

// GetExpense returns an expense with its items and shares.
func (s *LedgerService) GetExpense(ctx context.Context, req *ExpenseRequest) (*ExpenseMessage, error) {
	if err := required("expense_id", req.ExpenseID); err != nil {
		return nil, err
	}
	expense, err := s.engine.Expense(ctx, req.ExpenseID)
	if err != nil {
		return nil, err
	}
	locked, err := s.engine.IsLocked(ctx, req.ExpenseID)
	if err != nil {
		return nil, err
	}
	return &ExpenseMessage{Expense: toExpense(expense, locked)}, nil
}

// UpdateExpense replaces the details and line items of an expense.
func (s *LedgerService) UpdateExpense(ctx context.Context, req *ExpenseMessage) (*ExpenseMessage, error) {
	if err := required("expense.id", req.Expense.ID); err != nil {
		return nil, err
	}
	expense, err := fromExpense(req.Expense, s.now())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	updated, err := s.engine.UpdateExpense(ctx, expense)
	if err != nil {
		return nil, err
	}
	locked, err := s.engine.IsLocked(ctx, updated.ID)
	if err != nil {
		return nil, err
	}
	return &ExpenseMessage{Expense: toExpense(updated, locked)}, nil
}

// DeleteExpense removes an expense and its settlements.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *ExpenseRequest) (*Empty, error) {
	if err := required("expense_id", req.ExpenseID); err != nil {
		return nil, err
	}
	if err := s.engine.DeleteExpense(ctx, req.ExpenseID); err != nil {
		return nil, err
	}
	return &Empty{}, nil
}

// CreateParty adds a party.
func (s *LedgerService) CreateParty(ctx context.Context, req *NameRequest) (*PartyResponse, error) {
	party, err := s.engine.CreateParty(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return &PartyResponse{Party: toParty(party)}, nil
}

// ListParties returns every party.
func (s *LedgerService) ListParties(ctx context.Context, _ *Empty) (*ListPartiesResponse, error) {
	parties, err := s.engine.Parties(ctx)
	if err != nil {
		return nil, err
	}
	resp := &ListPartiesResponse{Parties: make([]Party, 0, len(parties))}
	for _, p := range parties {
		resp.Parties = append(resp.Parties, toParty(p))
	}
	return resp, nil
}

// CreatePaymentMethod adds a payment method.
func (s *LedgerService) CreatePaymentMethod(ctx context.Context, req *NameRequest) (*PaymentMethodResponse, error) {
	method, err := s.engine.CreatePaymentMethod(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	return &PaymentMethodResponse{PaymentMethod: toPaymentMethod(method)}, nil
}

// ListPaymentMethods returns every payment method.
func (s *LedgerService) ListPaymentMethods(ctx context.Context, _ *Empty) (*ListPaymentMethodsResponse, error) {
	methods, err := s.engine.PaymentMethods(ctx)
	if err != nil {
		return nil, err
	}
	resp := &ListPaymentMethodsResponse{PaymentMethods: make([]PaymentMethod, 0, len(methods))}
	for _, m := range methods {
		resp.PaymentMethods = append(resp.PaymentMethods, toPaymentMethod(m))
	}
	return resp, nil
}
