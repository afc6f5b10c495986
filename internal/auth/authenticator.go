// Package auth authenticates the ledger owner for the API surface.
package auth

import (
	"context"

	"github.com/mmynk/expenseledger/internal/models"
)

// Authenticator registers and verifies ledger owners. The credential format
// depends on the implementation.
type Authenticator interface {
	// Register creates an account and returns it.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate returns the account matching the credentials, or
	// ErrInvalidCredentials.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential rejects credentials the implementation would not accept.
	ValidateCredential(credential string) error
}
