package ledger

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mmynk/expenseledger/internal/cache"
	"github.com/mmynk/expenseledger/internal/models"
	"github.com/mmynk/expenseledger/internal/storage"
	"github.com/mmynk/expenseledger/internal/storage/sqlite"
)

const tolerance = 0.01

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	engine *Engine
	store  *sqlite.SQLiteStore
	cache  *cache.InMemoryCache
	alice  *models.Party
	bob    *models.Party
	cash   *models.PaymentMethod
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "ledger-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	store, err := sqlite.New(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	f := &fixture{
		store: store,
		cache: cache.NewInMemoryCache(),
		alice: &models.Party{Name: "Alice", Active: true},
		bob:   &models.Party{Name: "Bob", Active: true},
		cash:  &models.PaymentMethod{Name: "Cash"},
	}
	for _, p := range []*models.Party{f.alice, f.bob} {
		if err := store.CreateParty(ctx, p); err != nil {
			t.Fatalf("CreateParty failed: %v", err)
		}
	}
	if err := store.CreatePaymentMethod(ctx, f.cash); err != nil {
		t.Fatalf("CreatePaymentMethod failed: %v", err)
	}

	f.engine = New(store,
		WithCache(f.cache),
		WithClock(func() time.Time { return day(20) }),
	)
	return f
}

func (f *fixture) createExpense(t *testing.T, expense *models.Expense) *models.Expense {
	t.Helper()
	if expense.Date.IsZero() {
		expense.Date = day(3)
	}
	if err := f.engine.CreateExpense(context.Background(), expense); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	return expense
}

// shareExpense is a €100 expense split 1:3 between Alice and Bob.
func (f *fixture) shareExpense(t *testing.T) *models.Expense {
	t.Helper()
	return f.createExpense(t, &models.Expense{
		Description: "Dinner",
		TotalOnly:   true,
		FlatTotal:   100,
		SplitMode:   models.SplitShares,
		Splits: []models.SplitRecord{
			{PartyID: f.alice.ID, Shares: 1},
			{PartyID: f.bob.ID, Shares: 3},
		},
	})
}

func TestAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("share split 1:3", func(t *testing.T) {
		expense := f.shareExpense(t)

		a, err := f.engine.Allocation(ctx, expense.ID)
		if err != nil {
			t.Fatalf("Allocation failed: %v", err)
		}
		if !floatEquals(a.PartyAmounts[f.alice.ID], 25) {
			t.Errorf("Alice owes %.2f, want 25.00", a.PartyAmounts[f.alice.ID])
		}
		if !floatEquals(a.PartyAmounts[f.bob.ID], 75) {
			t.Errorf("Bob owes %.2f, want 75.00", a.PartyAmounts[f.bob.ID])
		}
		if a.OwnAmount != nil {
			t.Errorf("OwnAmount = %v, want nil with zero own shares", *a.OwnAmount)
		}
	})

	t.Run("per item with discount", func(t *testing.T) {
		expense := f.createExpense(t, &models.Expense{
			Description:     "Shop",
			DiscountPercent: 10,
			SplitMode:       models.SplitPerItem,
			Items: []models.LineItem{
				{Description: "A", Quantity: 1, UnitPrice: 50, PartyID: f.alice.ID},
				{Description: "B", Quantity: 1, UnitPrice: 50},
			},
		})

		a, err := f.engine.Allocation(ctx, expense.ID)
		if err != nil {
			t.Fatalf("Allocation failed: %v", err)
		}
		if !floatEquals(a.NetTotal, 90) {
			t.Errorf("NetTotal = %.2f, want 90.00", a.NetTotal)
		}
		if !floatEquals(a.PartyAmounts[f.alice.ID], 45) {
			t.Errorf("Alice owes %.2f, want 45.00", a.PartyAmounts[f.alice.ID])
		}
	})

	t.Run("discount exempt item keeps raw amount", func(t *testing.T) {
		expense := f.createExpense(t, &models.Expense{
			Description:     "Mixed",
			DiscountPercent: 20,
			Items: []models.LineItem{
				{Description: "Exempt", Quantity: 1, UnitPrice: 10, DiscountExempt: true},
				{Description: "Regular", Quantity: 1, UnitPrice: 10},
			},
		})

		a, err := f.engine.Allocation(ctx, expense.ID)
		if err != nil {
			t.Fatalf("Allocation failed: %v", err)
		}
		if !floatEquals(a.NetTotal, 18) {
			t.Errorf("NetTotal = %.2f, want 18.00", a.NetTotal)
		}
	})

	t.Run("missing expense", func(t *testing.T) {
		_, err := f.engine.Allocation(ctx, "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSetShares(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expense := f.shareExpense(t)

	tests := []struct {
		name    string
		own     int
		shares  []Share
		wantErr error
	}{
		{name: "zero total", own: 0, shares: nil, wantErr: ErrValidation},
		{name: "negative own", own: -1, shares: []Share{{PartyID: f.alice.ID, Shares: 1}}, wantErr: ErrValidation},
		{name: "zero share record", own: 1, shares: []Share{{PartyID: f.alice.ID, Shares: 0}}, wantErr: ErrValidation},
		{name: "unknown party", own: 1, shares: []Share{{PartyID: "ghost", Shares: 1}}, wantErr: ErrNotFound},
		{name: "valid", own: 2, shares: []Share{{PartyID: f.alice.ID, Shares: 2}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.SetShares(ctx, expense.ID, tt.own, tt.shares)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetShares failed: %v", err)
			}
		})
	}

	a, err := f.engine.Allocation(ctx, expense.ID)
	if err != nil {
		t.Fatalf("Allocation failed: %v", err)
	}
	if !floatEquals(a.PartyAmounts[f.alice.ID], 50) {
		t.Errorf("Alice owes %.2f after SetShares, want 50.00", a.PartyAmounts[f.alice.ID])
	}
	if _, ok := a.PartyAmounts[f.bob.ID]; ok {
		t.Error("Bob should no longer be allocated")
	}
	if a.OwnAmount == nil || !floatEquals(*a.OwnAmount, 50) {
		t.Errorf("OwnAmount = %v, want 50.00", a.OwnAmount)
	}
}

func TestChangeSplitMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("requires confirmation before clearing", func(t *testing.T) {
		expense := f.shareExpense(t)

		_, err := f.engine.ChangeSplitMode(ctx, expense.ID, models.SplitPerItem, false)
		if !errors.Is(err, ErrValidation) || !errors.Is(err, ErrClearNotConfirmed) {
			t.Fatalf("expected unconfirmed clear error, got %v", err)
		}

		plan, err := f.engine.ChangeSplitMode(ctx, expense.ID, models.SplitPerItem, true)
		if err != nil {
			t.Fatalf("ChangeSplitMode failed: %v", err)
		}
		if !plan.ClearsSplits {
			t.Error("expected split records to be cleared")
		}

		got, err := f.store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.SplitMode != models.SplitPerItem || len(got.Splits) != 0 || got.OwnShares != 0 {
			t.Errorf("unexpected state after change: mode=%s splits=%d own=%d", got.SplitMode, len(got.Splits), got.OwnShares)
		}
	})

	t.Run("locked by settlement", func(t *testing.T) {
		expense := f.shareExpense(t)
		_, err := f.engine.Settle(ctx, SettleRequest{
			ExpenseID: expense.ID, PartyID: f.alice.ID, Amount: 25, Date: day(5), PaymentMethodID: f.cash.ID,
		})
		if err != nil {
			t.Fatalf("Settle failed: %v", err)
		}

		_, err = f.engine.ChangeSplitMode(ctx, expense.ID, models.SplitNone, true)
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
		err = f.engine.SetShares(ctx, expense.ID, 0, []Share{{PartyID: f.alice.ID, Shares: 1}})
		if !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict from SetShares, got %v", err)
		}
	})

	t.Run("own shares alone need confirmation", func(t *testing.T) {
		expense := f.createExpense(t, &models.Expense{
			Description: "Cake",
			TotalOnly:   true,
			FlatTotal:   12,
			SplitMode:   models.SplitShares,
			OwnShares:   2,
		})

		plan, err := f.engine.PlanSplitModeChange(ctx, expense.ID, models.SplitNone)
		if err != nil {
			t.Fatalf("PlanSplitModeChange failed: %v", err)
		}
		if !plan.ClearsSplits || !plan.NeedsConfirmation() {
			t.Errorf("plan = %+v, want own shares to be cleared", plan)
		}

		_, err = f.engine.ChangeSplitMode(ctx, expense.ID, models.SplitNone, false)
		if !errors.Is(err, ErrClearNotConfirmed) {
			t.Fatalf("expected unconfirmed clear error, got %v", err)
		}
		got, err := f.store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.OwnShares != 2 || got.SplitMode != models.SplitShares {
			t.Errorf("expense changed without confirmation: mode=%s own=%d", got.SplitMode, got.OwnShares)
		}

		if _, err := f.engine.ChangeSplitMode(ctx, expense.ID, models.SplitNone, true); err != nil {
			t.Fatalf("ChangeSplitMode failed: %v", err)
		}
		got, err = f.store.GetExpense(ctx, expense.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.OwnShares != 0 {
			t.Errorf("own shares = %d after confirmed change, want 0", got.OwnShares)
		}
	})

	t.Run("no data means no lock", func(t *testing.T) {
		expense := f.createExpense(t, &models.Expense{Description: "Solo", TotalOnly: true, FlatTotal: 10})
		if _, err := f.engine.ChangeSplitMode(ctx, expense.ID, models.SplitShares, false); err != nil {
			t.Errorf("ChangeSplitMode failed: %v", err)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := f.engine.ChangeSplitMode(ctx, "whatever", models.SplitMode("half"), true)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestAssignItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expense := f.createExpense(t, &models.Expense{
		Description: "Shop",
		SplitMode:   models.SplitPerItem,
		Items: []models.LineItem{
			{Description: "A", Quantity: 2, UnitPrice: 5},
			{Description: "B", Quantity: 1, UnitPrice: 20},
		},
	})
	itemA, itemB := expense.Items[0].ID, expense.Items[1].ID

	if err := f.engine.AssignItems(ctx, expense.ID, map[string]string{itemA: f.alice.ID, itemB: f.bob.ID}); err != nil {
		t.Fatalf("AssignItems failed: %v", err)
	}
	a, err := f.engine.Allocation(ctx, expense.ID)
	if err != nil {
		t.Fatalf("Allocation failed: %v", err)
	}
	if !floatEquals(a.PartyAmounts[f.bob.ID], 20) {
		t.Errorf("Bob owes %.2f, want 20.00", a.PartyAmounts[f.bob.ID])
	}

	// The cached allocation must be dropped by the next assignment.
	if err := f.engine.AssignItems(ctx, expense.ID, map[string]string{itemB: ""}); err != nil {
		t.Fatalf("AssignItems failed: %v", err)
	}
	a, err = f.engine.Allocation(ctx, expense.ID)
	if err != nil {
		t.Fatalf("Allocation failed: %v", err)
	}
	if _, ok := a.PartyAmounts[f.bob.ID]; ok {
		t.Error("Bob should be unassigned")
	}

	err = f.engine.AssignItems(ctx, expense.ID, map[string]string{"nope": f.alice.ID})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown item, got %v", err)
	}
	err = f.engine.AssignItems(ctx, expense.ID, map[string]string{itemA: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown party, got %v", err)
	}
}

func TestSettle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expense := f.shareExpense(t)
	req := SettleRequest{
		ExpenseID:       expense.ID,
		PartyID:         f.alice.ID,
		Amount:          25,
		Date:            day(5),
		PaymentMethodID: f.cash.ID,
	}

	before, err := f.engine.Stats(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	record, err := f.engine.Settle(ctx, req)
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	credit, err := f.store.GetCredit(ctx, record.CreditID)
	if err != nil {
		t.Fatalf("GetCredit failed: %v", err)
	}
	if credit.Note != "Settlement from Alice for expense of 2024-01-03" {
		t.Errorf("unexpected credit note %q", credit.Note)
	}
	if !floatEquals(credit.Amount, 25) || !credit.Date.Equal(day(5)) {
		t.Errorf("unexpected credit %+v", credit)
	}

	t.Run("totals ignore settlement", func(t *testing.T) {
		after, err := f.engine.Stats(ctx, f.alice.ID)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if !floatEquals(after.TotalOwedToMe, before.TotalOwedToMe) {
			t.Errorf("TotalOwedToMe changed from %.2f to %.2f", before.TotalOwedToMe, after.TotalOwedToMe)
		}
		if !floatEquals(after.OpenOwedToMe, 0) {
			t.Errorf("OpenOwedToMe = %.2f, want 0", after.OpenOwedToMe)
		}
	})

	t.Run("unsettled filter excludes expense", func(t *testing.T) {
		txs, err := f.engine.Transactions(ctx, f.alice.ID, Filter{UnsettledOnly: true})
		if err != nil {
			t.Fatalf("Transactions failed: %v", err)
		}
		if len(txs) != 0 {
			t.Errorf("expected no unsettled transactions, got %d", len(txs))
		}
	})

	t.Run("double settle conflicts", func(t *testing.T) {
		_, err := f.engine.Settle(ctx, req)
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
		records, err := f.engine.Settlements(ctx, expense.ID)
		if err != nil {
			t.Fatalf("Settlements failed: %v", err)
		}
		if len(records) != 1 {
			t.Errorf("expected 1 settlement record, got %d", len(records))
		}
		credits, err := f.store.ListCreditsByPaymentMethod(ctx, f.cash.ID)
		if err != nil {
			t.Fatalf("ListCreditsByPaymentMethod failed: %v", err)
		}
		if len(credits) != 1 {
			t.Errorf("expected 1 credit, got %d", len(credits))
		}
	})

	t.Run("locked", func(t *testing.T) {
		locked, err := f.engine.IsLocked(ctx, expense.ID)
		if err != nil {
			t.Fatalf("IsLocked failed: %v", err)
		}
		if !locked {
			t.Error("expected expense to be locked")
		}
	})

	t.Run("unsettle round trip", func(t *testing.T) {
		if err := f.engine.Unsettle(ctx, expense.ID, f.alice.ID); err != nil {
			t.Fatalf("Unsettle failed: %v", err)
		}
		if _, err := f.store.GetCredit(ctx, record.CreditID); err == nil {
			t.Error("credit should be deleted")
		}
		n, err := f.store.CountSettlements(ctx, expense.ID)
		if err != nil {
			t.Fatalf("CountSettlements failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 settlements, got %d", n)
		}
		settled, err := f.engine.IsSettled(ctx, expense.ID, f.alice.ID)
		if err != nil || settled {
			t.Errorf("IsSettled = %v, %v; want false", settled, err)
		}

		err = f.engine.Unsettle(ctx, expense.ID, f.alice.ID)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound on second unsettle, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		bad := req
		bad.Amount = 0
		if _, err := f.engine.Settle(ctx, bad); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation for zero amount, got %v", err)
		}
		bad = req
		bad.PaymentMethodID = "ghost"
		if _, err := f.engine.Settle(ctx, bad); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for unknown method, got %v", err)
		}
	})
}

func TestMarkExpensePaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	owed := f.createExpense(t, &models.Expense{
		Description: "Rent",
		TotalOnly:   true,
		FlatTotal:   60,
		Status:      models.StatusUnpaid,
		OwedTo:      f.bob.ID,
	})

	stats, err := f.engine.Stats(ctx, f.bob.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !floatEquals(stats.OpenIOwe, 60) || !floatEquals(stats.Net, -60) {
		t.Errorf("unexpected stats before payment: %+v", stats)
	}

	if err := f.engine.MarkExpensePaid(ctx, owed.ID, f.cash.ID); err != nil {
		t.Fatalf("MarkExpensePaid failed: %v", err)
	}
	stats, err = f.engine.Stats(ctx, f.bob.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !floatEquals(stats.TotalIOwe, 60) || !floatEquals(stats.OpenIOwe, 0) {
		t.Errorf("unexpected stats after payment: %+v", stats)
	}

	if err := f.engine.MarkExpenseUnpaid(ctx, owed.ID); err != nil {
		t.Fatalf("MarkExpenseUnpaid failed: %v", err)
	}
	got, err := f.store.GetExpense(ctx, owed.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if got.Status != models.StatusUnpaid || got.PaymentMethodID != "" {
		t.Errorf("unexpected expense after unpaid: status=%s method=%q", got.Status, got.PaymentMethodID)
	}

	mine := f.createExpense(t, &models.Expense{Description: "Mine", TotalOnly: true, FlatTotal: 5})
	if err := f.engine.MarkExpenseUnpaid(ctx, mine.ID); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation without OwedTo, got %v", err)
	}
}

func TestTimeSeries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.createExpense(t, &models.Expense{
		Description: "Lunch",
		Date:        day(5),
		TotalOnly:   true,
		FlatTotal:   40,
		SplitMode:   models.SplitShares,
		Splits:      []models.SplitRecord{{PartyID: f.alice.ID, Shares: 1}},
	})
	f.createExpense(t, &models.Expense{
		Description: "Taxi",
		Date:        day(10),
		TotalOnly:   true,
		FlatTotal:   10,
		Status:      models.StatusUnpaid,
		OwedTo:      f.alice.ID,
	})

	points, err := f.engine.TimeSeries(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("TimeSeries failed: %v", err)
	}
	if len(points) != 20 {
		t.Fatalf("expected 20 points, got %d", len(points))
	}
	for i, p := range points {
		want := 0.0
		switch d := i + 1; {
		case d >= 10:
			want = 30
		case d >= 5:
			want = 40
		}
		if !floatEquals(p.Balance, want) {
			t.Errorf("day %d: balance %.2f, want %.2f", i+1, p.Balance, want)
		}
	}
}

func TestPaymentMethodSeries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expense := f.shareExpense(t)
	if _, err := f.engine.Settle(ctx, SettleRequest{
		ExpenseID: expense.ID, PartyID: f.bob.ID, Amount: 75, Date: day(4), PaymentMethodID: f.cash.ID,
	}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}
	f.createExpense(t, &models.Expense{
		Description:     "Coffee",
		Date:            day(8),
		TotalOnly:       true,
		FlatTotal:       5,
		PaymentMethodID: f.cash.ID,
	})

	points, err := f.engine.PaymentMethodSeries(ctx, f.cash.ID)
	if err != nil {
		t.Fatalf("PaymentMethodSeries failed: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("expected a series")
	}
	if last := points[len(points)-1]; !floatEquals(last.Balance, 70) {
		t.Errorf("final balance %.2f, want 70.00", last.Balance)
	}
}

func TestBulkAssign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	itemized := f.createExpense(t, &models.Expense{
		Description: "Shop",
		Items: []models.LineItem{
			{Description: "A", Quantity: 1, UnitPrice: 10},
			{Description: "B", Quantity: 1, UnitPrice: 30},
		},
	})
	flat := f.createExpense(t, &models.Expense{Description: "Flat", TotalOnly: true, FlatTotal: 12})
	locked := f.shareExpense(t)
	if _, err := f.engine.Settle(ctx, SettleRequest{
		ExpenseID: locked.ID, PartyID: f.bob.ID, Amount: 75, Date: day(6), PaymentMethodID: f.cash.ID,
	}); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	t.Run("per item", func(t *testing.T) {
		var progress []int
		result, err := f.engine.BulkAssign(ctx, BulkRequest{
			ExpenseIDs: []string{itemized.ID, flat.ID, locked.ID, "missing"},
			PartyID:    f.alice.ID,
			Mode:       models.SplitPerItem,
		}, func(p int) { progress = append(progress, p) })
		if err != nil {
			t.Fatalf("BulkAssign failed: %v", err)
		}
		if result.Applied != 1 || result.Skipped != 3 {
			t.Errorf("result = %+v, want 1 applied, 3 skipped", result)
		}
		want := []int{25, 50, 75, 100}
		if len(progress) != len(want) {
			t.Fatalf("progress = %v, want %v", progress, want)
		}
		for i := range want {
			if progress[i] != want[i] {
				t.Errorf("progress = %v, want %v", progress, want)
				break
			}
		}

		a, err := f.engine.Allocation(ctx, itemized.ID)
		if err != nil {
			t.Fatalf("Allocation failed: %v", err)
		}
		if !floatEquals(a.PartyAmounts[f.alice.ID], 40) {
			t.Errorf("Alice owes %.2f, want 40.00", a.PartyAmounts[f.alice.ID])
		}
	})

	t.Run("share split", func(t *testing.T) {
		result, err := f.engine.BulkAssign(ctx, BulkRequest{
			ExpenseIDs: []string{itemized.ID, flat.ID},
			PartyID:    f.bob.ID,
			Mode:       models.SplitShares,
		}, nil)
		if err != nil {
			t.Fatalf("BulkAssign failed: %v", err)
		}
		if result.Applied != 2 || result.Skipped != 0 {
			t.Errorf("result = %+v, want 2 applied", result)
		}

		got, err := f.store.GetExpense(ctx, itemized.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if got.HasAssignments() {
			t.Error("item assignments should be cleared")
		}
		if len(got.Splits) != 1 || got.Splits[0].PartyID != f.bob.ID || got.Splits[0].Shares != 1 {
			t.Errorf("unexpected splits %+v", got.Splits)
		}
	})

	t.Run("unknown party aborts", func(t *testing.T) {
		_, err := f.engine.BulkAssign(ctx, BulkRequest{
			ExpenseIDs: []string{itemized.ID},
			PartyID:    "ghost",
			Mode:       models.SplitShares,
		}, nil)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSettleRequiresAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expense := f.createExpense(t, &models.Expense{Description: "Solo", TotalOnly: true, FlatTotal: 99})
	_, err := f.engine.Settle(ctx, SettleRequest{
		ExpenseID: expense.ID, PartyID: f.alice.ID, Amount: 99, Date: day(5), PaymentMethodID: f.cash.ID,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for a party without allocation, got %v", err)
	}

	locked, err := f.engine.IsLocked(ctx, expense.ID)
	if err != nil {
		t.Fatalf("IsLocked failed: %v", err)
	}
	if locked {
		t.Error("rejected settlement must not lock the expense")
	}
	credits, err := f.store.ListCreditsByPaymentMethod(ctx, f.cash.ID)
	if err != nil {
		t.Fatalf("ListCreditsByPaymentMethod failed: %v", err)
	}
	if len(credits) != 0 {
		t.Errorf("expected no credits, got %d", len(credits))
	}

	// Bob shares a different expense; that does not let him settle this one.
	f.shareExpense(t)
	_, err = f.engine.Settle(ctx, SettleRequest{
		ExpenseID: expense.ID, PartyID: f.bob.ID, Amount: 10, Date: day(5), PaymentMethodID: f.cash.ID,
	})
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for Bob, got %v", err)
	}
}

// unseenSettlements hides settlement records from lookups, the way a
// concurrent settle that committed after our read would.
type unseenSettlements struct {
	storage.Store
}

func (s unseenSettlements) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.Store.InTx(ctx, func(tx storage.Store) error {
		return fn(unseenSettlements{tx})
	})
}

func (unseenSettlements) GetSettlement(context.Context, string, string) (*models.SettlementRecord, error) {
	return nil, storage.ErrNotFound
}

func TestSettleLosingRace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expense := f.shareExpense(t)
	req := SettleRequest{
		ExpenseID: expense.ID, PartyID: f.alice.ID, Amount: 25, Date: day(5), PaymentMethodID: f.cash.ID,
	}

	if _, err := f.engine.Settle(ctx, req); err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	racing := New(unseenSettlements{f.store}, WithClock(func() time.Time { return day(20) }))
	_, err := racing.Settle(ctx, req)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("expected the uniqueness violation to be wrapped, got %v", err)
	}

	credits, err := f.store.ListCreditsByPaymentMethod(ctx, f.cash.ID)
	if err != nil {
		t.Fatalf("ListCreditsByPaymentMethod failed: %v", err)
	}
	if len(credits) != 1 {
		t.Errorf("expected the losing credit to be rolled back, got %d credits", len(credits))
	}
}

var errCreditStore = errors.New("credit store unavailable")

// failingCreditDelete fails every credit deletion.
type failingCreditDelete struct {
	storage.Store
}

func (s failingCreditDelete) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.Store.InTx(ctx, func(tx storage.Store) error {
		return fn(failingCreditDelete{tx})
	})
}

func (failingCreditDelete) DeleteCredit(context.Context, string) error {
	return errCreditStore
}

func TestUnsettleIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expense := f.shareExpense(t)

	record, err := f.engine.Settle(ctx, SettleRequest{
		ExpenseID: expense.ID, PartyID: f.alice.ID, Amount: 25, Date: day(5), PaymentMethodID: f.cash.ID,
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	broken := New(failingCreditDelete{f.store})
	if err := broken.Unsettle(ctx, expense.ID, f.alice.ID); !errors.Is(err, errCreditStore) {
		t.Fatalf("expected credit deletion error, got %v", err)
	}

	settled, err := f.engine.IsSettled(ctx, expense.ID, f.alice.ID)
	if err != nil {
		t.Fatalf("IsSettled failed: %v", err)
	}
	if !settled {
		t.Error("settlement record must survive a failed unsettle")
	}
	if _, err := f.store.GetCredit(ctx, record.CreditID); err != nil {
		t.Errorf("credit must survive a failed unsettle: %v", err)
	}
}
