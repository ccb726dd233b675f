package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Book is a book of accounts.
type Book string

const (
	BookGeneralJournal    Book = "general_journal"
	BookCashReceipts      Book = "cash_receipts"
	BookCashDisbursements Book = "cash_disbursements"
)

// Valid reports whether b is a known book.
func (b Book) Valid() bool {
	switch b {
	case BookGeneralJournal, BookCashReceipts, BookCashDisbursements:
		return true
	}
	return false
}

const (
	AccountCash     = "Cash"
	AccountSuspense = "Suspense"
)

// BookLine is a single debit or credit of a book entry.
type BookLine struct {
	Account string          `json:"account"`
	IsDebit bool            `json:"isDebit"`
	Amount  decimal.Decimal `json:"amount"`
}

// BookEntry is one transaction posted to one book.
type BookEntry struct {
	Book           Book       `json:"book"`
	StoreID        string     `json:"storeId"`
	TransactionID  string     `json:"transactionId"`
	IdempotencyKey string     `json:"idempotencyKey"`
	EntryDate      string     `json:"entryDate"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	SourceFile     string     `json:"sourceFile,omitempty"`
	Lines          []BookLine `json:"lines"`
}

// Validate enforces double entry: at least two lines, positive amounts and
// debits equal to credits.
func (e BookEntry) Validate() error {
	if !e.Book.Valid() {
		return fmt.Errorf("%w: unknown book %q", ErrValidation, e.Book)
	}
	if e.IdempotencyKey == "" {
		return fmt.Errorf("%w: book entry must carry an idempotency key", ErrValidation)
	}
	if _, err := time.Parse(time.DateOnly, e.EntryDate); err != nil {
		return fmt.Errorf("%w: invalid entry date: %v", ErrValidation, err)
	}
	if len(e.Lines) < 2 {
		return fmt.Errorf("%w: book entry must have at least 2 lines", ErrValidation)
	}

	debits, credits := decimal.Zero, decimal.Zero
	for _, line := range e.Lines {
		if strings.TrimSpace(line.Account) == "" {
			return fmt.Errorf("%w: book line has no account", ErrValidation)
		}
		if !line.Amount.IsPositive() {
			return fmt.Errorf("%w: line amount must be positive, got %s", ErrValidation, line.Amount)
		}
		if line.IsDebit {
			debits = debits.Add(line.Amount)
		} else {
			credits = credits.Add(line.Amount)
		}
	}
	if !debits.Equal(credits) {
		return fmt.Errorf("%w: entry is unbalanced: debits %s, credits %s",
			ErrValidation, debits.StringFixed(2), credits.StringFixed(2))
	}
	return nil
}

// BuildBookEntries expands a transaction into one entry per book it posts
// to. Income debits Cash and credits the category; expense debits the
// category and credits Cash; anything else is parked against Suspense.
func BuildBookEntries(tx Transaction, storeID string, today time.Time) ([]BookEntry, error) {
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	class := Classify(tx)
	date := today.Format(time.DateOnly)
	if d, err := time.Parse(time.DateOnly, strings.TrimSpace(tx.Date)); err == nil {
		date = d.Format(time.DateOnly)
	}
	amount := tx.Amount.Round(2)

	var debit, credit string
	switch class {
	case ClassIncome:
		debit, credit = AccountCash, tx.AICategory
	case ClassExpense:
		debit, credit = tx.AICategory, AccountCash
	default:
		debit, credit = tx.AICategory, AccountSuspense
	}

	books := BooksFor(class)
	entries := make([]BookEntry, 0, len(books))
	for _, book := range books {
		e := BookEntry{
			Book:           book,
			StoreID:        storeID,
			TransactionID:  tx.ID,
			IdempotencyKey: tx.ID + ":" + string(book),
			EntryDate:      date,
			Description:    tx.Description,
			Category:       tx.AICategory,
			SourceFile:     tx.SourceFile,
			Lines: []BookLine{
				{Account: debit, IsDebit: true, Amount: amount},
				{Account: credit, IsDebit: false, Amount: amount},
			},
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
