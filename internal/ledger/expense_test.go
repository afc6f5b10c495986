package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/mmynk/expenseledger/internal/models"
)

func TestCreateExpense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		expense models.Expense
		wantErr error
	}{
		{
			name:    "unpaid without party",
			expense: models.Expense{Description: "Rent", Date: day(1), TotalOnly: true, FlatTotal: 50, Status: models.StatusUnpaid},
			wantErr: ErrValidation,
		},
		{
			name:    "missing description",
			expense: models.Expense{Date: day(1), TotalOnly: true, FlatTotal: 5},
			wantErr: ErrValidation,
		},
		{
			name:    "missing date",
			expense: models.Expense{Description: "Bus", TotalOnly: true, FlatTotal: 5},
			wantErr: ErrValidation,
		},
		{
			name:    "itemized without items",
			expense: models.Expense{Description: "Shop", Date: day(1)},
			wantErr: ErrValidation,
		},
		{
			name: "zero quantity",
			expense: models.Expense{Description: "Shop", Date: day(1), Items: []models.LineItem{
				{Description: "Milk", Quantity: 0, UnitPrice: 1},
			}},
			wantErr: ErrValidation,
		},
		{
			name:    "discount above 100",
			expense: models.Expense{Description: "Sale", Date: day(1), TotalOnly: true, FlatTotal: 5, DiscountPercent: 120},
			wantErr: ErrValidation,
		},
		{
			name: "assigned item outside per-item mode",
			expense: models.Expense{Description: "Shop", Date: day(1), Items: []models.LineItem{
				{Description: "Milk", Quantity: 1, UnitPrice: 1, PartyID: "someone"},
			}},
			wantErr: ErrValidation,
		},
		{
			name: "split records outside share mode",
			expense: models.Expense{Description: "Cab", Date: day(1), TotalOnly: true, FlatTotal: 20,
				Splits: []models.SplitRecord{{PartyID: "someone", Shares: 1}}},
			wantErr: ErrValidation,
		},
		{
			name:    "unknown party owed",
			expense: models.Expense{Description: "Rent", Date: day(1), TotalOnly: true, FlatTotal: 50, Status: models.StatusUnpaid, OwedTo: "ghost"},
			wantErr: ErrNotFound,
		},
		{
			name:    "unknown payment method",
			expense: models.Expense{Description: "Bus", Date: day(1), TotalOnly: true, FlatTotal: 5, PaymentMethodID: "ghost"},
			wantErr: ErrNotFound,
		},
		{
			name:    "defaults",
			expense: models.Expense{Description: "  Bus  ", Date: day(1), TotalOnly: true, FlatTotal: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expense := tt.expense
			err := f.engine.CreateExpense(ctx, &expense)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateExpense failed: %v", err)
			}

			got, err := f.engine.Expense(ctx, expense.ID)
			if err != nil {
				t.Fatalf("Expense failed: %v", err)
			}
			if got.Description != "Bus" || got.SplitMode != models.SplitNone || got.Status != models.StatusPaid {
				t.Errorf("unexpected stored expense %+v", got)
			}
		})
	}
}

func TestUpdateExpense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expense := f.createExpense(t, &models.Expense{
		Description: "Shop",
		SplitMode:   models.SplitPerItem,
		Items: []models.LineItem{
			{Description: "A", Quantity: 1, UnitPrice: 10, PartyID: f.alice.ID},
			{Description: "B", Quantity: 1, UnitPrice: 30},
		},
	})

	if _, err := f.engine.Stats(ctx, f.alice.ID); err != nil {
		t.Fatalf("Stats failed: %v", err)
	}

	edit := *expense
	edit.Description = "Corner shop"
	edit.Items = []models.LineItem{
		expense.Items[0],
		{Description: "C", Quantity: 2, UnitPrice: 5, PartyID: f.bob.ID},
	}
	edit.Items[0].UnitPrice = 12

	updated, err := f.engine.UpdateExpense(ctx, &edit)
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	if updated.Description != "Corner shop" || len(updated.Items) != 2 {
		t.Errorf("unexpected update result %+v", updated)
	}

	a, err := f.engine.Allocation(ctx, expense.ID)
	if err != nil {
		t.Fatalf("Allocation failed: %v", err)
	}
	if !floatEquals(a.PartyAmounts[f.alice.ID], 12) || !floatEquals(a.PartyAmounts[f.bob.ID], 10) {
		t.Errorf("unexpected allocation after edit %+v", a.PartyAmounts)
	}
	stats, err := f.engine.Stats(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !floatEquals(stats.TotalOwedToMe, 12) {
		t.Errorf("Alice's cached stats not refreshed: TotalOwedToMe = %.2f, want 12.00", stats.TotalOwedToMe)
	}

	t.Run("unpaid without party", func(t *testing.T) {
		bad := *updated
		bad.Status = models.StatusUnpaid
		bad.OwedTo = ""
		if _, err := f.engine.UpdateExpense(ctx, &bad); !errors.Is(err, ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("foreign item", func(t *testing.T) {
		bad := *updated
		bad.Items = []models.LineItem{{ID: "elsewhere", Description: "X", Quantity: 1, UnitPrice: 1}}
		if _, err := f.engine.UpdateExpense(ctx, &bad); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("locked amounts", func(t *testing.T) {
		if _, err := f.engine.Settle(ctx, SettleRequest{
			ExpenseID: expense.ID, PartyID: f.alice.ID, Amount: 12, Date: day(6), PaymentMethodID: f.cash.ID,
		}); err != nil {
			t.Fatalf("Settle failed: %v", err)
		}

		pricier := *updated
		pricier.Items = append([]models.LineItem(nil), updated.Items...)
		pricier.Items[0].UnitPrice = 99
		if _, err := f.engine.UpdateExpense(ctx, &pricier); !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}

		renamed := *updated
		renamed.Description = "Renamed"
		if _, err := f.engine.UpdateExpense(ctx, &renamed); err != nil {
			t.Errorf("renaming a locked expense failed: %v", err)
		}
	})
}

func TestDeleteExpense(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expense := f.shareExpense(t)

	record, err := f.engine.Settle(ctx, SettleRequest{
		ExpenseID: expense.ID, PartyID: f.bob.ID, Amount: 75, Date: day(4), PaymentMethodID: f.cash.ID,
	})
	if err != nil {
		t.Fatalf("Settle failed: %v", err)
	}

	before, err := f.engine.Stats(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !floatEquals(before.TotalOwedToMe, 25) {
		t.Fatalf("TotalOwedToMe = %.2f, want 25.00", before.TotalOwedToMe)
	}
	if _, err := f.engine.Allocation(ctx, expense.ID); err != nil {
		t.Fatalf("Allocation failed: %v", err)
	}

	if err := f.engine.DeleteExpense(ctx, expense.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	after, err := f.engine.Stats(ctx, f.alice.ID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if !floatEquals(after.TotalOwedToMe, 0) {
		t.Errorf("TotalOwedToMe = %.2f after delete, want 0", after.TotalOwedToMe)
	}
	if _, err := f.engine.Allocation(ctx, expense.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for deleted allocation, got %v", err)
	}
	if _, err := f.store.GetCredit(ctx, record.CreditID); err == nil {
		t.Error("settlement credit should be deleted with the expense")
	}

	if err := f.engine.DeleteExpense(ctx, expense.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPartiesAndPaymentMethods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.CreateParty(ctx, "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for blank party name, got %v", err)
	}
	carol, err := f.engine.CreateParty(ctx, " Carol ")
	if err != nil {
		t.Fatalf("CreateParty failed: %v", err)
	}
	if carol.Name != "Carol" || !carol.Active || carol.ID == "" {
		t.Errorf("unexpected party %+v", carol)
	}
	parties, err := f.engine.Parties(ctx)
	if err != nil {
		t.Fatalf("Parties failed: %v", err)
	}
	if len(parties) != 3 {
		t.Errorf("expected 3 parties, got %d", len(parties))
	}

	if _, err := f.engine.CreatePaymentMethod(ctx, ""); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for blank method name, got %v", err)
	}
	if _, err := f.engine.CreatePaymentMethod(ctx, "Card"); err != nil {
		t.Fatalf("CreatePaymentMethod failed: %v", err)
	}
	methods, err := f.engine.PaymentMethods(ctx)
	if err != nil {
		t.Fatalf("PaymentMethods failed: %v", err)
	}
	if len(methods) != 2 || methods[0].Name != "Card" {
		t.Errorf("unexpected methods %+v", methods)
	}
}
