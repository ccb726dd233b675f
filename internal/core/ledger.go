package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// LedgerPoster posts a book entry to a book of accounts. Posting an
// idempotency key twice for the same store returns ErrDuplicateEntry.
type LedgerPoster interface {
	Post(ctx context.Context, entry BookEntry) error
}

// Ledger stores book entries in PostgreSQL.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

func (l *Ledger) Post(ctx context.Context, entry BookEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("book entry validation failed: %w", err)
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var entryID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO book_entries (store_id, book, transaction_id, idempotency_key, entry_date, description, category, source_file, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (store_id, idempotency_key) DO NOTHING
		RETURNING id
	`, entry.StoreID, string(entry.Book), entry.TransactionID, entry.IdempotencyKey, entry.EntryDate,
		entry.Description, entry.Category, entry.SourceFile).Scan(&entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: idempotency key %s already exists for store %s", ErrDuplicateEntry, entry.IdempotencyKey, entry.StoreID)
		}
		return fmt.Errorf("failed to insert book entry: %w", err)
	}

	for _, line := range entry.Lines {
		debit, credit := "0.00", "0.00"
		if line.IsDebit {
			debit = line.Amount.StringFixed(2)
		} else {
			credit = line.Amount.StringFixed(2)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO book_lines (entry_id, account, debit, credit)
			VALUES ($1, $2, $3, $4)
		`, entryID, line.Account, debit, credit)
		if err != nil {
			return fmt.Errorf("failed to insert book line: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// BalanceReader reports account balances per book for a store.
type BalanceReader interface {
	GetBalances(ctx context.Context, storeID string) ([]AccountBalance, error)
}

// AccountBalance is the debit-minus-credit total of one account in one book.
type AccountBalance struct {
	Book    Book            `json:"book"`
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// GetBalances sums debits minus credits per book and account for a store.
func (l *Ledger) GetBalances(ctx context.Context, storeID string) ([]AccountBalance, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT e.book, bl.account, COALESCE(SUM(bl.debit), 0) - COALESCE(SUM(bl.credit), 0) AS balance
		FROM book_lines bl
		JOIN book_entries e ON e.id = bl.entry_id
		WHERE e.store_id = $1
		GROUP BY e.book, bl.account
		ORDER BY e.book, bl.account
	`, storeID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var balances []AccountBalance
	for rows.Next() {
		var (
			b    AccountBalance
			book string
		)
		if err := rows.Scan(&book, &b.Account, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		b.Book = Book(book)
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
