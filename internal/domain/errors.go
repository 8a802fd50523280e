package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Settlement validation errors
	ErrActorNotFound   = errors.New("buyer or merchant account not found")
	ErrProductNotFound = errors.New("product not found")

	// Concurrency errors
	ErrConflict               = errors.New("record modified by a concurrent settlement")
	ErrConflictRetryExhausted = errors.New("settlement conflict retries exhausted")

	// Negotiation outcome: a valid terminal state the caller branches on,
	// not an infrastructure failure.
	ErrNegotiationBreakdown = errors.New("negotiation ended with breakdown")
)

// ─── Typed Errors ───────────────────────────────────────────────────────────
// These carry enough context to explain a refusal verbatim to the caller.

// OwnershipError reports a cart line referencing a product the merchant
// does not own.
type OwnershipError struct {
	ProductID string
	OwnerID   string
	WantOwner string
}

func (e *OwnershipError) Error() string {
	return fmt.Sprintf("product %s belongs to %s, not merchant %s", e.ProductID, e.OwnerID, e.WantOwner)
}

// StockError reports a requested quantity exceeding available stock.
type StockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("not enough stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

// QuantityError reports a cart line requesting a non-positive quantity.
type QuantityError struct {
	ProductID string
	Quantity  int
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s", e.Quantity, e.ProductID)
}

// FundsError reports a buyer balance below the final total.
type FundsError struct {
	Required  float64
	Available float64
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %.2f, have %.2f", e.Required, e.Available)
}
