// Package models defines the core domain models for the expense ledger.
//
// # Entities
//
//   - Expense: one shared purchase, with its line items and split records
//   - LineItem: a priced quantity inside an expense
//   - SplitRecord: a share-count allocation of an expense to a party
//   - Party: an external person who owes or is owed money
//   - PaymentMethod: where money comes from or goes to
//   - Credit: a ledger top-up created when a party pays back
//   - SettlementRecord: proof that a party's share of an expense was paid
//   - User: the owner account used by the API
//
// # Relationships
//
// Models reference each other by ID strings, never by pointers. An
// Expense owns its line items and split records; parties and payment
// methods have independent lifecycles.
//
// # Settlement directions
//
// A party owing the payer ("toMe") is settled per party with a
// SettlementRecord pointing at a Credit. The payer owing a party
// ("toEntity") is settled for the whole expense by flipping
// Expense.Status to StatusPaid and recording the payment method.
package models
