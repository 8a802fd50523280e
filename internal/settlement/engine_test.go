package settlement

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/haggle-network/haggle/internal/domain"
	"github.com/haggle-network/haggle/internal/infra/sqlite"
)

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedMarket(t *testing.T, db *sqlite.DB, stock int) {
	t.Helper()
	ctx := context.Background()

	accounts := []domain.Account{
		{ID: "cust1", Name: "Asha", Balance: 100, NegotiationLimit: 0.1},
		{ID: "merch1", Name: "Bazaar Traders", Balance: 500, NegotiationLimit: 0.1},
	}
	for _, a := range accounts {
		if err := db.UpsertAccount(ctx, a); err != nil {
			t.Fatalf("UpsertAccount(%s): %v", a.ID, err)
		}
	}
	item := domain.InventoryItem{ProductID: "prod1", OwnerID: "merch1", ProductName: "Clay Pot", UnitPrice: 10, Quantity: stock}
	if err := db.UpsertInventory(ctx, item); err != nil {
		t.Fatalf("UpsertInventory: %v", err)
	}
}

// conflictStore injects commit conflicts before delegating to the real store.
type conflictStore struct {
	domain.TradeStore
	mu        sync.Mutex
	conflicts int // commits to fail before letting one through
	commits   int
}

func (s *conflictStore) CommitTrade(ctx context.Context, snap *domain.TradeSnapshot, writes domain.TradeWrites) error {
	s.mu.Lock()
	fail := s.conflicts > 0
	if fail {
		s.conflicts--
	}
	s.commits++
	s.mu.Unlock()

	if fail {
		return domain.ErrConflict
	}
	return s.TradeStore.CommitTrade(ctx, snap, writes)
}

// ─── Happy Path ─────────────────────────────────────────────────────────────

func TestSettle(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	engine := New(db, DefaultConfig())
	ctx := context.Background()

	receipt, err := engine.Settle(ctx, "cust1", "merch1", []domain.CartLine{{ProductID: "prod1", Quantity: 5}}, 0.1, 0.1)
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	if receipt.OriginalTotal != 50 {
		t.Errorf("OriginalTotal = %v, want 50", receipt.OriginalTotal)
	}
	if receipt.NegotiatedDiscount != 5 {
		t.Errorf("NegotiatedDiscount = %v, want 5", receipt.NegotiatedDiscount)
	}
	if receipt.FinalTotal != 45 {
		t.Errorf("FinalTotal = %v, want 45", receipt.FinalTotal)
	}
	if receipt.BuyerName != "Asha" || receipt.MerchantName != "Bazaar Traders" {
		t.Errorf("receipt names = %q / %q", receipt.BuyerName, receipt.MerchantName)
	}
	if receipt.TransactionID == "" {
		t.Error("receipt missing transaction id")
	}

	buyer, _ := db.GetAccount(ctx, "cust1")
	if buyer.Balance != 55 {
		t.Errorf("buyer balance = %v, want 55", buyer.Balance)
	}
	seller, _ := db.GetAccount(ctx, "merch1")
	if seller.Balance != 545 {
		t.Errorf("seller balance = %v, want 545", seller.Balance)
	}
	stock, _ := db.InventoryByOwner(ctx, "merch1")
	if stock[0].Quantity != 0 {
		t.Errorf("stock = %d, want 0", stock[0].Quantity)
	}
	bought, _ := db.InventoryByOwner(ctx, "cust1")
	if len(bought) != 1 || bought[0].Quantity != 5 {
		t.Errorf("buyer inventory = %+v, want 5 clay pots", bought)
	}

	stored, err := db.GetReceipt(ctx, receipt.TransactionID)
	if err != nil {
		t.Fatalf("GetReceipt() error: %v", err)
	}
	if stored == nil || stored.FinalTotal != 45 {
		t.Errorf("stored receipt = %+v", stored)
	}
}

// ─── Validation Failures ────────────────────────────────────────────────────

func TestSettle_InsufficientStock(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	engine := New(db, DefaultConfig())
	ctx := context.Background()

	_, err := engine.Settle(ctx, "cust1", "merch1", []domain.CartLine{{ProductID: "prod1", Quantity: 6}}, 0.1, 0.1)

	var stockErr *domain.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Settle() error = %v, want StockError", err)
	}
	if stockErr.Requested != 6 || stockErr.Available != 5 {
		t.Errorf("StockError = %+v", stockErr)
	}

	// No state change on rejection.
	buyer, _ := db.GetAccount(ctx, "cust1")
	if buyer.Balance != 100 {
		t.Errorf("buyer balance = %v, want 100", buyer.Balance)
	}
	stock, _ := db.InventoryByOwner(ctx, "merch1")
	if stock[0].Quantity != 5 {
		t.Errorf("stock = %d, want 5", stock[0].Quantity)
	}
}

func TestSettle_DuplicateLinesExceedStock(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	engine := New(db, DefaultConfig())
	ctx := context.Background()

	// Two lines for the same product pass any per-line check individually;
	// the aggregate of 6 must still be refused against stock 5, before any
	// mutation.
	cart := []domain.CartLine{
		{ProductID: "prod1", Quantity: 3},
		{ProductID: "prod1", Quantity: 3},
	}
	_, err := engine.Settle(ctx, "cust1", "merch1", cart, 0.1, 0.1)

	var stockErr *domain.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("Settle() error = %v, want StockError", err)
	}
	if stockErr.Requested != 6 || stockErr.Available != 5 {
		t.Errorf("StockError = %+v, want requested 6 available 5", stockErr)
	}

	buyer, _ := db.GetAccount(ctx, "cust1")
	if buyer.Balance != 100 {
		t.Errorf("buyer balance = %v, want 100", buyer.Balance)
	}
	stock, _ := db.InventoryByOwner(ctx, "merch1")
	if stock[0].Quantity != 5 {
		t.Errorf("stock = %d, want 5", stock[0].Quantity)
	}
}

func TestSettle_DuplicateLinesWithinStock(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	engine := New(db, DefaultConfig())
	ctx := context.Background()

	cart := []domain.CartLine{
		{ProductID: "prod1", Quantity: 2},
		{ProductID: "prod1", Quantity: 3},
	}
	receipt, err := engine.Settle(ctx, "cust1", "merch1", cart, 0.1, 0.1)
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}

	// The duplicate lines fold into one receipt item for the full quantity.
	if len(receipt.Items) != 1 || receipt.Items[0].Quantity != 5 {
		t.Errorf("receipt items = %+v, want one line of 5", receipt.Items)
	}
	if receipt.OriginalTotal != 50 || receipt.FinalTotal != 45 {
		t.Errorf("receipt totals = %v / %v, want 50 / 45", receipt.OriginalTotal, receipt.FinalTotal)
	}

	stock, _ := db.InventoryByOwner(ctx, "merch1")
	if stock[0].Quantity != 0 {
		t.Errorf("stock = %d, want 0", stock[0].Quantity)
	}
}

func TestSettle_InsufficientFunds(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	ctx := context.Background()

	// Drain the buyer below the discounted total.
	if err := db.UpsertAccount(ctx, domain.Account{ID: "cust1", Name: "Asha", Balance: 40, NegotiationLimit: 0.1}); err != nil {
		t.Fatal(err)
	}
	engine := New(db, DefaultConfig())

	_, err := engine.Settle(ctx, "cust1", "merch1", []domain.CartLine{{ProductID: "prod1", Quantity: 5}}, 0.1, 0.1)

	var fundsErr *domain.FundsError
	if !errors.As(err, &fundsErr) {
		t.Fatalf("Settle() error = %v, want FundsError", err)
	}
	if fundsErr.Required != 45 || fundsErr.Available != 40 {
		t.Errorf("FundsError = %+v", fundsErr)
	}
}

func TestSettle_OwnershipMismatch(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	ctx := context.Background()

	other := domain.InventoryItem{ProductID: "prod-foreign", OwnerID: "merch2", ProductName: "Rug", UnitPrice: 45, Quantity: 2}
	if err := db.UpsertInventory(ctx, other); err != nil {
		t.Fatal(err)
	}
	engine := New(db, DefaultConfig())

	_, err := engine.Settle(ctx, "cust1", "merch1", []domain.CartLine{{ProductID: "prod-foreign", Quantity: 1}}, 0.1, 0.1)

	var ownErr *domain.OwnershipError
	if !errors.As(err, &ownErr) {
		t.Fatalf("Settle() error = %v, want OwnershipError", err)
	}
	if ownErr.OwnerID != "merch2" || ownErr.WantOwner != "merch1" {
		t.Errorf("OwnershipError = %+v", ownErr)
	}
}

func TestSettle_UnknownProduct(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	engine := New(db, DefaultConfig())

	_, err := engine.Settle(context.Background(), "cust1", "merch1", []domain.CartLine{{ProductID: "prod-nope", Quantity: 1}}, 0.1, 0.1)
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("Settle() error = %v, want ErrProductNotFound", err)
	}
}

func TestSettle_UnknownBuyer(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	engine := New(db, DefaultConfig())

	_, err := engine.Settle(context.Background(), "ghost", "merch1", []domain.CartLine{{ProductID: "prod1", Quantity: 1}}, 0.1, 0.1)
	if !errors.Is(err, domain.ErrActorNotFound) {
		t.Fatalf("Settle() error = %v, want ErrActorNotFound", err)
	}
}

func TestSettle_NonPositiveQuantity(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	engine := New(db, DefaultConfig())

	_, err := engine.Settle(context.Background(), "cust1", "merch1", []domain.CartLine{{ProductID: "prod1", Quantity: 0}}, 0.1, 0.1)

	var qtyErr *domain.QuantityError
	if !errors.As(err, &qtyErr) {
		t.Fatalf("Settle() error = %v, want QuantityError", err)
	}
	if qtyErr.ProductID != "prod1" || qtyErr.Quantity != 0 {
		t.Errorf("QuantityError = %+v", qtyErr)
	}
}

// ─── Conflict Handling ──────────────────────────────────────────────────────

func TestSettle_RetriesOnConflict(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	store := &conflictStore{TradeStore: db, conflicts: 2}
	engine := New(store, Config{MaxRetries: 3})

	receipt, err := engine.Settle(context.Background(), "cust1", "merch1", []domain.CartLine{{ProductID: "prod1", Quantity: 5}}, 0.1, 0.1)
	if err != nil {
		t.Fatalf("Settle() error: %v", err)
	}
	if store.commits != 3 {
		t.Errorf("commit attempts = %d, want 3", store.commits)
	}
	// The retried attempt re-derived the same totals from fresh reads.
	if receipt.OriginalTotal != 50 || receipt.FinalTotal != 45 {
		t.Errorf("receipt totals = %v / %v, want 50 / 45", receipt.OriginalTotal, receipt.FinalTotal)
	}
}

func TestSettle_ConflictRetryExhausted(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 5)
	store := &conflictStore{TradeStore: db, conflicts: 100}
	engine := New(store, Config{MaxRetries: 2})
	ctx := context.Background()

	_, err := engine.Settle(ctx, "cust1", "merch1", []domain.CartLine{{ProductID: "prod1", Quantity: 5}}, 0.1, 0.1)
	if !errors.Is(err, domain.ErrConflictRetryExhausted) {
		t.Fatalf("Settle() error = %v, want ErrConflictRetryExhausted", err)
	}
	if store.commits != 3 {
		t.Errorf("commit attempts = %d, want 3 (initial + 2 retries)", store.commits)
	}

	buyer, _ := db.GetAccount(ctx, "cust1")
	if buyer.Balance != 100 {
		t.Errorf("buyer balance = %v, want 100 after exhausted retries", buyer.Balance)
	}
}

func TestSettle_ConcurrentLastUnit(t *testing.T) {
	db := newTestStore(t)
	seedMarket(t, db, 1)
	ctx := context.Background()

	second := domain.Account{ID: "cust2", Name: "Ravi", Balance: 100, NegotiationLimit: 0.1}
	if err := db.UpsertAccount(ctx, second); err != nil {
		t.Fatal(err)
	}
	engine := New(db, DefaultConfig())

	cart := []domain.CartLine{{ProductID: "prod1", Quantity: 1}}
	results := make(chan error, 2)
	for _, buyer := range []string{"cust1", "cust2"} {
		go func(id string) {
			_, err := engine.Settle(ctx, id, "merch1", cart, 0.1, 0.1)
			results <- err
		}(buyer)
	}

	var failures, successes int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			successes++
			continue
		}
		failures++
		var stockErr *domain.StockError
		if !errors.As(err, &stockErr) && !errors.Is(err, domain.ErrConflictRetryExhausted) {
			t.Errorf("unexpected loser error: %v", err)
		}
	}

	if successes != 1 || failures != 1 {
		t.Fatalf("successes = %d, failures = %d, want exactly one winner", successes, failures)
	}

	// The single unit moved exactly once and never went negative.
	stock, _ := db.InventoryByOwner(ctx, "merch1")
	if stock[0].Quantity != 0 {
		t.Errorf("stock = %d, want 0", stock[0].Quantity)
	}
	seller, _ := db.GetAccount(ctx, "merch1")
	if seller.Balance != 509 {
		t.Errorf("seller balance = %v, want 509 (one 9.00 sale)", seller.Balance)
	}
}
