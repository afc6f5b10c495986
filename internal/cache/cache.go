// Package cache stores computed allocations and balances so they are not
// recomputed on every read. Entries are invalidated by the engine whenever
// a settlement or allocation changes.
package cache

import (
	"context"
	"fmt"
)

// Cache is an interface used for caching allocation and balance results.
type Cache interface {
	// Get decodes the entry stored under key into dest. It reports false
	// when there is no entry.
	Get(ctx context.Context, key string, dest any) (bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key string, value any) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// AllocationKey is the key of an expense's allocation.
func AllocationKey(expenseID string) string {
	return fmt.Sprintf("alloc:%s", expenseID)
}

// StatsKey is the key of a party's balance statistics.
func StatsKey(partyID string) string {
	return fmt.Sprintf("stats:%s", partyID)
}
