package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// ActorFacts carries the role-specific, read-once facts an actor negotiates
// with. Balance is set for the buyer, Inventory for the seller; the id triple
// is set for both and forms the opening request.
type ActorFacts struct {
	BuyerID   string
	SellerID  string
	ProductID string
	Balance   float64
	Inventory []InventoryItem
}

// DialogueActor abstracts a negotiating participant. The implementation is
// opaque and possibly slow (an LLM call); the protocol only constrains turn
// order and the two terminal tokens.
type DialogueActor interface {
	Respond(ctx context.Context, transcript []Turn, facts ActorFacts) (string, error)
}

// TradeSnapshot is a consistent read of every record a settlement touches,
// stamped with per-record versions for the commit-time validation.
type TradeSnapshot struct {
	Buyer  *Account
	Seller *Account
	Items  map[string]*InventoryItem // keyed by product id, owner = seller
}

// TradeWrites is the write set applied together with the snapshot validation.
type TradeWrites struct {
	BuyerBalance  float64
	SellerBalance float64
	StockDeltas   map[string]int // product id → quantity moved from seller to buyer
	Receipt       *Receipt
}

// TradeStore is the transactional read-validate-write primitive over the
// document store. It is an explicit handle passed in at construction, not
// a package-level singleton.
type TradeStore interface {
	// GetAccount returns an account or ErrActorNotFound.
	GetAccount(ctx context.Context, id string) (*Account, error)

	// InventoryByOwner returns the owner's current stock.
	InventoryByOwner(ctx context.Context, ownerID string) ([]InventoryItem, error)

	// ReadTradeSet reads the buyer, the seller, and every referenced
	// inventory record in one consistent snapshot. Missing products are
	// simply absent from Items; a missing account leaves the field nil.
	ReadTradeSet(ctx context.Context, buyerID, sellerID string, productIDs []string) (*TradeSnapshot, error)

	// CommitTrade applies the write set iff no snapshot record changed since
	// the read. Returns ErrConflict when a concurrent settlement won.
	CommitTrade(ctx context.Context, snap *TradeSnapshot, writes TradeWrites) error

	// SaveSession persists a terminal negotiation session.
	SaveSession(ctx context.Context, session *NegotiationSession) error
}
