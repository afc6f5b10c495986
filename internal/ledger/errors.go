package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Operation names carried by errors.
const (
	OpAllocate        = "allocate"
	OpChangeSplitMode = "change split mode"
	OpSetShares       = "set shares"
	OpAssignItems     = "assign items"
	OpSettle          = "settle"
	OpUnsettle        = "unsettle"
	OpMarkPaid        = "mark expense paid"
	OpMarkUnpaid      = "mark expense unpaid"
	OpIsLocked        = "check lock"
	OpBalance         = "compute balance"
	OpBulkAssign      = "bulk assign"
	OpGetExpense      = "get expense"
	OpCreateExpense   = "create expense"
	OpUpdateExpense   = "update expense"
	OpDeleteExpense   = "delete expense"
	OpCreateParty     = "create party"
	OpCreateMethod    = "create payment method"
)

var (
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("conflict")
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("not found")

	// ErrClearNotConfirmed is wrapped by the ValidationError returned when a
	// split mode change would delete allocation data the caller has not
	// agreed to lose.
	ErrClearNotConfirmed = errors.New("clearing allocation data requires confirmation")
)

// ValidationError reports input rejected before any mutation.
type ValidationError struct {
	Op        string
	ExpenseID string
	PartyID   string
	Reason    string
	Err       error
}

func (e *ValidationError) Error() string {
	return describe(e.Op, e.ExpenseID, e.PartyID, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
func (e *ValidationError) Unwrap() error         { return e.Err }

// ConflictError reports an operation the current state forbids, such as
// settling an already settled pair or editing a locked allocation.
type ConflictError struct {
	Op        string
	ExpenseID string
	PartyID   string
	Reason    string
	Err       error
}

func (e *ConflictError) Error() string {
	return describe(e.Op, e.ExpenseID, e.PartyID, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }
func (e *ConflictError) Unwrap() error         { return e.Err }

// NotFoundError reports a missing expense, party, item, payment method or
// settlement record.
type NotFoundError struct {
	Op        string
	ExpenseID string
	PartyID   string
	Entity    string
	ID        string
	Err       error
}

func (e *NotFoundError) Error() string {
	return describe(e.Op, e.ExpenseID, e.PartyID, fmt.Sprintf("%s %s not found", e.Entity, e.ID))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Unwrap() error         { return e.Err }

func describe(op, expenseID, partyID, detail string) string {
	var b strings.Builder
	b.WriteString(op)
	if expenseID != "" {
		fmt.Fprintf(&b, " expense=%s", expenseID)
	}
	if partyID != "" {
		fmt.Fprintf(&b, " party=%s", partyID)
	}
	b.WriteString(": ")
	b.WriteString(detail)
	return b.String()
}
