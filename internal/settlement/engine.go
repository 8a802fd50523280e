// Package settlement atomically validates and applies a single trade.
//
// The engine is the sole mutator of accounts and inventory. Every attempt
// reads its whole working set in one snapshot, validates, and commits with a
// compare-and-set against the snapshot versions. A conflict triggers a full
// retry from fresh reads, never a partial reapply, up to a bounded number
// of attempts.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/haggle-network/haggle/internal/domain"
	"github.com/haggle-network/haggle/internal/infra/observability"
)

// Config controls engine behavior.
type Config struct {
	MaxRetries int // attempts after the first before giving up (default: 3)
}

// DefaultConfig returns safe engine defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 3}
}

// Engine performs atomic validate-and-commit settlements over a TradeStore.
type Engine struct {
	store  domain.TradeStore
	config Config

	// Injected for deterministic tests; settlement retried after a conflict
	// must reproduce the same totals and differ only in id and timestamp.
	now   func() time.Time
	newID func() string
}

// New creates a settlement engine over an explicit store handle.
func New(store domain.TradeStore, cfg Config) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	return &Engine{
		store:  store,
		config: cfg,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Settle validates and applies one trade as a single atomic unit. On any
// violation it fails with a typed error and no state change. The discount is
// the deterministic midpoint of the two negotiation limits: the authoritative
// pricing policy, regardless of what the dialogue agreed on.
func (e *Engine) Settle(ctx context.Context, buyerID, sellerID string, cart []domain.CartLine, buyerLimit, sellerLimit float64) (*domain.Receipt, error) {
	start := time.Now()
	defer func() {
		observability.SettlementDuration.Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		receipt, err := e.attempt(ctx, buyerID, sellerID, cart, buyerLimit, sellerLimit)
		if err == nil {
			observability.SettlementsTotal.WithLabelValues("committed").Inc()
			return receipt, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			observability.SettlementsTotal.WithLabelValues("rejected").Inc()
			return nil, err
		}
		observability.SettlementConflicts.Inc()
		log.Printf("[settlement] conflict on attempt %d for buyer=%s seller=%s, retrying", attempt+1, buyerID, sellerID)
		lastErr = err
	}

	observability.SettlementsTotal.WithLabelValues("conflict_exhausted").Inc()
	return nil, fmt.Errorf("%w: %v", domain.ErrConflictRetryExhausted, lastErr)
}

// attempt runs one read-validate-write cycle. All validation happens before
// any mutation; the write set is committed together or not at all.
func (e *Engine) attempt(ctx context.Context, buyerID, sellerID string, cart []domain.CartLine, buyerLimit, sellerLimit float64) (*domain.Receipt, error) {
	// Duplicate cart lines are folded together up front so stock is
	// validated against the total requested per product, not per line.
	quantities := make(map[string]int, len(cart))
	productIDs := make([]string, 0, len(cart))
	for _, line := range cart {
		if line.Quantity <= 0 {
			return nil, &domain.QuantityError{ProductID: line.ProductID, Quantity: line.Quantity}
		}
		if _, seen := quantities[line.ProductID]; !seen {
			productIDs = append(productIDs, line.ProductID)
		}
		quantities[line.ProductID] += line.Quantity
	}

	snap, err := e.store.ReadTradeSet(ctx, buyerID, sellerID, productIDs)
	if err != nil {
		return nil, err
	}
	if snap.Buyer == nil || snap.Seller == nil {
		return nil, domain.ErrActorNotFound
	}

	var originalTotal float64
	items := make([]domain.ReceiptItem, 0, len(productIDs))

	for _, pid := range productIDs {
		requested := quantities[pid]
		record, ok := snap.Items[pid]
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductNotFound, pid)
		}
		if record.OwnerID != sellerID {
			return nil, &domain.OwnershipError{ProductID: pid, OwnerID: record.OwnerID, WantOwner: sellerID}
		}
		if record.Quantity < requested {
			return nil, &domain.StockError{
				ProductID:   pid,
				ProductName: record.ProductName,
				Requested:   requested,
				Available:   record.Quantity,
			}
		}
		originalTotal += record.UnitPrice * float64(requested)
		items = append(items, domain.ReceiptItem{
			ProductName: record.ProductName,
			Quantity:    requested,
			Price:       record.UnitPrice,
		})
	}

	discount, finalTotal := domain.MidpointDiscount(originalTotal, buyerLimit, sellerLimit)
	if snap.Buyer.Balance < finalTotal {
		return nil, &domain.FundsError{Required: finalTotal, Available: snap.Buyer.Balance}
	}

	receipt := &domain.Receipt{
		TransactionID:      e.newID(),
		BuyerName:          snap.Buyer.Name,
		MerchantName:       snap.Seller.Name,
		Items:              items,
		OriginalTotal:      originalTotal,
		NegotiatedDiscount: discount,
		FinalTotal:         finalTotal,
		Timestamp:          e.now(),
	}

	writes := domain.TradeWrites{
		BuyerBalance:  snap.Buyer.Balance - finalTotal,
		SellerBalance: snap.Seller.Balance + finalTotal,
		StockDeltas:   quantities,
		Receipt:       receipt,
	}
	if err := e.store.CommitTrade(ctx, snap, writes); err != nil {
		return nil, err
	}

	log.Printf("[settlement] committed %s: %s paid %.2f to %s (%d line items)",
		receipt.TransactionID, buyerID, finalTotal, sellerID, len(items))
	return receipt, nil
}
