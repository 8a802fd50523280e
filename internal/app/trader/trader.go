// Package trader composes the two core units: a negotiation produces a
// final outcome, and an agreed outcome is fed into settlement. The trader
// also owns the side effects the core units refuse to have: archiving the
// terminal session and shaping the caller-facing response.
package trader

import (
	"context"
	"errors"
	"log"

	"github.com/haggle-network/haggle/internal/domain"
	"github.com/haggle-network/haggle/internal/negotiation"
	"github.com/haggle-network/haggle/internal/settlement"
)

// Trader runs the end-to-end flow for one trade request.
type Trader struct {
	store        domain.TradeStore
	orchestrator *negotiation.Orchestrator
	engine       *settlement.Engine
}

// New wires the trader from its three collaborators.
func New(store domain.TradeStore, orchestrator *negotiation.Orchestrator, engine *settlement.Engine) *Trader {
	return &Trader{store: store, orchestrator: orchestrator, engine: engine}
}

// Result is the outcome of one end-to-end trade.
type Result struct {
	Session *domain.NegotiationSession
	Receipt *domain.Receipt
}

// Execute negotiates the first cart line's product, then settles the whole
// cart when the dialogue agreed. A Broken session returns
// domain.ErrNegotiationBreakdown with the session attached in the Result,
// a valid terminal outcome the caller branches on; settlement is never
// invoked for it.
//
// The negotiated price is advisory only: the committed discount is the
// deterministic midpoint of the two accounts' negotiation limits.
func (t *Trader) Execute(ctx context.Context, buyerID, sellerID string, cart []domain.CartLine) (*Result, error) {
	if len(cart) == 0 {
		return nil, errors.New("cart is empty")
	}

	session, err := t.orchestrator.Negotiate(ctx, buyerID, sellerID, cart[0].ProductID)
	if err != nil {
		return nil, err
	}
	if err := t.store.SaveSession(ctx, session); err != nil {
		// The transcript is informational; losing the archive must not void
		// an otherwise valid outcome.
		log.Printf("[trader] archiving session %s failed: %v", session.ID, err)
	}

	result := &Result{Session: session}
	if session.State == domain.SessionBroken {
		return result, domain.ErrNegotiationBreakdown
	}

	buyer, err := t.store.GetAccount(ctx, buyerID)
	if err != nil {
		return result, err
	}
	seller, err := t.store.GetAccount(ctx, sellerID)
	if err != nil {
		return result, err
	}

	receipt, err := t.engine.Settle(ctx, buyerID, sellerID, cart, buyer.NegotiationLimit, seller.NegotiationLimit)
	if err != nil {
		return result, err
	}
	result.Receipt = receipt
	return result, nil
}
