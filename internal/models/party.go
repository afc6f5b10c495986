package models

// Party is a person or counterpart who can owe or be owed money.
// Parties are created and deactivated outside the engine.
type Party struct {
	// ID is the unique identifier for the party (UUID format).
	ID string

	// Name is the display name (e.g., "Alice").
	Name string

	// Active is false once the party has been deactivated.
	Active bool

	// CreatedAt is the Unix timestamp when the party was created.
	CreatedAt int64
}

// PaymentMethod is a source or destination of money, such as "Cash".
type PaymentMethod struct {
	ID   string
	Name string
}
