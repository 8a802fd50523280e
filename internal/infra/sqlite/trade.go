package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/haggle-network/haggle/internal/domain"
)

// ─── Account Operations ─────────────────────────────────────────────────────

// GetAccount returns an account or domain.ErrActorNotFound.
func (db *DB) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	a := &domain.Account{}
	err := db.db.QueryRowContext(ctx, `
		SELECT id, name, balance, negotiation_limit, version
		FROM accounts WHERE id = ?
	`, id).Scan(&a.ID, &a.Name, &a.Balance, &a.NegotiationLimit, &a.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", domain.ErrActorNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading account %s: %w", id, err)
	}
	return a, nil
}

// UpsertAccount inserts or replaces an account. Used by seeding and tests;
// settlement never creates accounts.
func (db *DB) UpsertAccount(ctx context.Context, a domain.Account) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, balance, negotiation_limit, version, updated_at)
		VALUES (?, ?, ?, ?, 1, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			name              = excluded.name,
			balance           = excluded.balance,
			negotiation_limit = excluded.negotiation_limit,
			version           = version + 1,
			updated_at        = datetime('now')
	`, a.ID, a.Name, a.Balance, a.NegotiationLimit)
	return err
}

// ─── Inventory Operations ───────────────────────────────────────────────────

// InventoryByOwner returns all stock held by one owner.
func (db *DB) InventoryByOwner(ctx context.Context, ownerID string) ([]domain.InventoryItem, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT product_id, owner_id, product_name, unit_price, quantity, version
		FROM inventory WHERE owner_id = ? ORDER BY product_id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing inventory for %s: %w", ownerID, err)
	}
	defer rows.Close()

	var items []domain.InventoryItem
	for rows.Next() {
		var it domain.InventoryItem
		if err := rows.Scan(&it.ProductID, &it.OwnerID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.Version); err != nil {
			return nil, fmt.Errorf("scanning inventory row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpsertInventory inserts or replaces an inventory record. Seeding/tests only.
func (db *DB) UpsertInventory(ctx context.Context, it domain.InventoryItem) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO inventory (product_id, owner_id, product_name, unit_price, quantity, version, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, datetime('now'))
		ON CONFLICT(product_id, owner_id) DO UPDATE SET
			product_name = excluded.product_name,
			unit_price   = excluded.unit_price,
			quantity     = excluded.quantity,
			version      = version + 1,
			updated_at   = datetime('now')
	`, it.ProductID, it.OwnerID, it.ProductName, it.UnitPrice, it.Quantity)
	return err
}

// ─── Trade Snapshot / Commit ────────────────────────────────────────────────

// ReadTradeSet reads the buyer, the seller, and every referenced inventory
// record in one transaction. For each product the seller's row is preferred;
// a row under a different owner is still returned so the engine can report
// the ownership mismatch. Missing products are absent from Items.
func (db *DB) ReadTradeSet(ctx context.Context, buyerID, sellerID string, productIDs []string) (*domain.TradeSnapshot, error) {
	tx, err := db.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("beginning snapshot read: %w", err)
	}
	defer tx.Rollback()

	readAccount := func(id string) (*domain.Account, error) {
		a := &domain.Account{}
		err := tx.QueryRowContext(ctx, `
			SELECT id, name, balance, negotiation_limit, version
			FROM accounts WHERE id = ?
		`, id).Scan(&a.ID, &a.Name, &a.Balance, &a.NegotiationLimit, &a.Version)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading account %s: %w", id, err)
		}
		return a, nil
	}

	snap := &domain.TradeSnapshot{Items: make(map[string]*domain.InventoryItem, len(productIDs))}
	if snap.Buyer, err = readAccount(buyerID); err != nil {
		return nil, err
	}
	if snap.Seller, err = readAccount(sellerID); err != nil {
		return nil, err
	}

	for _, pid := range productIDs {
		if _, done := snap.Items[pid]; done {
			continue
		}
		it := &domain.InventoryItem{}
		err := tx.QueryRowContext(ctx, `
			SELECT product_id, owner_id, product_name, unit_price, quantity, version
			FROM inventory WHERE product_id = ?
			ORDER BY CASE WHEN owner_id = ? THEN 0 ELSE 1 END
			LIMIT 1
		`, pid, sellerID).Scan(&it.ProductID, &it.OwnerID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.Version)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading product %s: %w", pid, err)
		}
		snap.Items[pid] = it
	}

	return snap, tx.Commit()
}

// CommitTrade applies the write set iff every snapshot record still carries
// the version it was read with. Any mismatch rolls the whole transaction
// back and reports domain.ErrConflict. The buyer-side inventory increment is
// a pure upsert; the buyer's stock row is not part of the validated read set.
func (db *DB) CommitTrade(ctx context.Context, snap *domain.TradeSnapshot, writes domain.TradeWrites) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning commit: %w", err)
	}
	defer tx.Rollback()

	guard := func(res sql.Result, what string) error {
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking %s update: %w", what, err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s", domain.ErrConflict, what)
		}
		return nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = ?, version = version + 1, updated_at = datetime('now')
		WHERE id = ? AND version = ?
	`, writes.BuyerBalance, snap.Buyer.ID, snap.Buyer.Version)
	if err != nil {
		return fmt.Errorf("updating buyer balance: %w", err)
	}
	if err := guard(res, "buyer "+snap.Buyer.ID); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE accounts SET balance = ?, version = version + 1, updated_at = datetime('now')
		WHERE id = ? AND version = ?
	`, writes.SellerBalance, snap.Seller.ID, snap.Seller.Version)
	if err != nil {
		return fmt.Errorf("updating seller balance: %w", err)
	}
	if err := guard(res, "seller "+snap.Seller.ID); err != nil {
		return err
	}

	for pid, qty := range writes.StockDeltas {
		record, ok := snap.Items[pid]
		if !ok {
			return fmt.Errorf("write set references unread product %s", pid)
		}

		res, err = tx.ExecContext(ctx, `
			UPDATE inventory SET quantity = quantity - ?, version = version + 1, updated_at = datetime('now')
			WHERE product_id = ? AND owner_id = ? AND version = ?
		`, qty, pid, record.OwnerID, record.Version)
		if err != nil {
			return fmt.Errorf("decrementing stock for %s: %w", pid, err)
		}
		if err := guard(res, "product "+pid); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO inventory (product_id, owner_id, product_name, unit_price, quantity, version, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, datetime('now'))
			ON CONFLICT(product_id, owner_id) DO UPDATE SET
				quantity   = quantity + excluded.quantity,
				version    = version + 1,
				updated_at = datetime('now')
		`, pid, snap.Buyer.ID, record.ProductName, record.UnitPrice, qty)
		if err != nil {
			return fmt.Errorf("crediting buyer stock for %s: %w", pid, err)
		}
	}

	if writes.Receipt != nil {
		itemsJSON, err := json.Marshal(writes.Receipt.Items)
		if err != nil {
			return fmt.Errorf("encoding receipt items: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO receipts (transaction_id, buyer_name, merchant_name, items_json,
				original_total, negotiated_discount, final_total, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, writes.Receipt.TransactionID, writes.Receipt.BuyerName, writes.Receipt.MerchantName,
			string(itemsJSON), writes.Receipt.OriginalTotal, writes.Receipt.NegotiatedDiscount,
			writes.Receipt.FinalTotal, writes.Receipt.Timestamp.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("persisting receipt: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing trade: %w", err)
	}
	return nil
}

// GetReceipt returns a persisted receipt by transaction id, or nil when the
// id is unknown.
func (db *DB) GetReceipt(ctx context.Context, transactionID string) (*domain.Receipt, error) {
	r := &domain.Receipt{}
	var itemsJSON, createdAt string
	err := db.db.QueryRowContext(ctx, `
		SELECT transaction_id, buyer_name, merchant_name, items_json,
			original_total, negotiated_discount, final_total, created_at
		FROM receipts WHERE transaction_id = ?
	`, transactionID).Scan(&r.TransactionID, &r.BuyerName, &r.MerchantName, &itemsJSON,
		&r.OriginalTotal, &r.NegotiatedDiscount, &r.FinalTotal, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading receipt %s: %w", transactionID, err)
	}
	if err := json.Unmarshal([]byte(itemsJSON), &r.Items); err != nil {
		return nil, fmt.Errorf("decoding receipt items: %w", err)
	}
	r.Timestamp, _ = time.Parse(time.RFC3339Nano, createdAt)
	return r, nil
}

// ─── Session Archive ────────────────────────────────────────────────────────

// SaveSession archives a terminal negotiation session.
func (db *DB) SaveSession(ctx context.Context, s *domain.NegotiationSession) error {
	historyJSON, err := json.Marshal(s.History)
	if err != nil {
		return fmt.Errorf("encoding session history: %w", err)
	}
	_, err = db.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (id, buyer_id, seller_id, product_id, state,
			agreed_price, turn_count, history_json, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.BuyerID, s.SellerID, s.ProductID, string(s.State),
		s.AgreedPrice, s.TurnIndex, string(historyJSON), s.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("persisting session %s: %w", s.ID, err)
	}
	return nil
}

// GetSession returns an archived session, or nil when the id is unknown.
func (db *DB) GetSession(ctx context.Context, id string) (*domain.NegotiationSession, error) {
	s := &domain.NegotiationSession{}
	var state, historyJSON, startedAt string
	err := db.db.QueryRowContext(ctx, `
		SELECT id, buyer_id, seller_id, product_id, state, agreed_price, turn_count, history_json, started_at
		FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.BuyerID, &s.SellerID, &s.ProductID, &state, &s.AgreedPrice, &s.TurnIndex, &historyJSON, &startedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", id, err)
	}
	s.State = domain.SessionState(state)
	if err := json.Unmarshal([]byte(historyJSON), &s.History); err != nil {
		return nil, fmt.Errorf("decoding session history: %w", err)
	}
	s.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	return s, nil
}
