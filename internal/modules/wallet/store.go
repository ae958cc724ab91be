// README: Wallet store backed by PostgreSQL; balance mutations are single atomic statements.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dot/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// GetOrCreate returns the user's wallet, creating an empty one on first
// access. Safe under concurrent callers: the insert is idempotent.
func (s *Store) GetOrCreate(ctx context.Context, userID types.ID) (*Wallet, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO wallets (id, user_id, balance, currency, updated_at)
		VALUES ($1, $2, 0, $3, NOW())
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.New().String(), string(userID), types.DefaultCurrency,
	)
	if err != nil {
		return nil, err
	}
	return s.getByUser(ctx, userID)
}

func (s *Store) getByUser(ctx context.Context, userID types.ID) (*Wallet, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, balance, currency, updated_at
		FROM wallets
		WHERE user_id = $1`, string(userID),
	)
	var w Wallet
	if err := row.Scan(&w.ID, &w.UserID, &w.Balance.Amount, &w.Balance.Currency, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

// Credit increments the balance and appends a ledger entry in one database
// transaction. Used for both top-ups and refunds.
func (s *Store) Credit(ctx context.Context, userID types.ID, amount types.Money, txType TransactionType, description string, orderID, adminID *types.ID) (*Transaction, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var walletID string
	err = tx.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE user_id = $2
		RETURNING id`,
		amount.Amount, string(userID),
	).Scan(&walletID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	entry, err := insertTransaction(ctx, tx, walletID, txType, amount, description, orderID, adminID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// Debit decrements the balance only if it stays non-negative, appending the
// DEDUCTION entry in the same database transaction. The conditional update is
// the per-wallet serialization point: of two concurrent debits racing for the
// last sufficient balance, exactly one matches the WHERE clause.
func (s *Store) Debit(ctx context.Context, userID types.ID, amount types.Money, description string, orderID *types.ID) (*Transaction, bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	var walletID string
	err = tx.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = NOW()
		WHERE user_id = $2 AND balance >= $1
		RETURNING id`,
		amount.Amount, string(userID),
	).Scan(&walletID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Wallet missing or balance short: either way the debit is declined.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	entry, err := insertTransaction(ctx, tx, walletID, TxDeduction, amount, description, orderID, nil)
	if err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return entry, true, nil
}

func insertTransaction(ctx context.Context, tx pgx.Tx, walletID string, txType TransactionType, amount types.Money, description string, orderID, adminID *types.ID) (*Transaction, error) {
	entry := &Transaction{
		ID:          types.ID(uuid.New().String()),
		WalletID:    types.ID(walletID),
		Type:        txType,
		Amount:      amount,
		Description: description,
		OrderID:     orderID,
		AdminID:     adminID,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount, currency, description, order_id, admin_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(entry.ID), walletID, string(txType),
		amount.Amount, amount.Currency,
		description, idPtr(orderID), idPtr(adminID), entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) ListTransactions(ctx context.Context, walletID types.ID, limit int) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, wallet_id, type, amount, currency, COALESCE(description, ''), order_id, admin_id, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		string(walletID), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		var orderID, adminID sql.NullString
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount.Amount, &t.Amount.Currency, &t.Description, &orderID, &adminID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.OrderID = nullID(orderID)
		t.AdminID = nullID(adminID)
		out = append(out, t)
	}
	return out, rows.Err()
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func nullID(v sql.NullString) *types.ID {
	if !v.Valid {
		return nil
	}
	id := types.ID(v.String)
	return &id
}
