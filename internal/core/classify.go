package core

import "strings"

// Classification decides which books a transaction posts to.
type Classification string

const (
	ClassIncome  Classification = "income"
	ClassExpense Classification = "expense"
	ClassOther   Classification = "other"
)

var incomeCategories = map[string]bool{
	"sales revenue":   true,
	"service income":  true,
	"other income":    true,
	"interest income": true,
}

var expenseCategories = map[string]bool{
	"operating expenses":    true,
	"cost of goods sold":    true,
	"shipping & delivery":   true,
	"utilities":             true,
	"transportation":        true,
	"meals & entertainment": true,
	"office supplies":       true,
	"advertising":           true,
	"professional fees":     true,
	"bank charges":          true,
	"salaries & wages":      true,
	"rent":                  true,
}

var (
	incomeKeywords  = []string{"income", "revenue", "sale", "sales", "received", "deposit", "collection", "refund received"}
	expenseKeywords = []string{"expense", "paid", "purchase", "bill", "fee", "payment to", "invoice", "withdrawal"}
)

// Classify labels a transaction income, expense or other. The category is
// checked first, then the description.
func Classify(tx Transaction) Classification {
	cat := strings.ToLower(strings.TrimSpace(tx.AICategory))
	switch {
	case incomeCategories[cat]:
		return ClassIncome
	case expenseCategories[cat]:
		return ClassExpense
	}
	desc := " " + strings.ToLower(tx.Description) + " "
	if containsWord(desc, incomeKeywords) {
		return ClassIncome
	}
	if containsWord(desc, expenseKeywords) {
		return ClassExpense
	}
	return ClassOther
}

func containsWord(padded string, words []string) bool {
	for _, w := range words {
		if strings.Contains(padded, " "+w+" ") {
			return true
		}
	}
	return false
}

// BooksFor lists the books a classified transaction posts to. The General
// Journal is always included; receipts and disbursements are exclusive.
func BooksFor(c Classification) []Book {
	switch c {
	case ClassIncome:
		return []Book{BookGeneralJournal, BookCashReceipts}
	case ClassExpense:
		return []Book{BookGeneralJournal, BookCashDisbursements}
	}
	return []Book{BookGeneralJournal}
}

// PrimaryBook is the book shown next to a transaction in the review list.
func PrimaryBook(c Classification) Book {
	books := BooksFor(c)
	return books[len(books)-1]
}
