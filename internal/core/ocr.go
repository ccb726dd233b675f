package core

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// MaxParsedTransactions bounds the output of one parse call.
	MaxParsedTransactions = 50
	// FallbackCategory is used when no category hint matches.
	FallbackCategory = "Operating Expenses"
	// AutoBookConfidence is the confidence at which a transaction is booked without review.
	AutoBookConfidence = 0.8

	canonicalConfidence = 0.95
	hintedConfidence    = 0.85
	fallbackConfidence  = 0.6
)

// OCRDocument is the processed output of one uploaded file.
type OCRDocument struct {
	Text       string          `json:"text"`
	Structured map[string]any  `json:"structured,omitempty"`
	Canonical  CanonicalFields `json:"canonical"`
}

// CanonicalFields are the normalized fields the OCR backend extracted.
type CanonicalFields struct {
	GrandTotal *decimal.Decimal `json:"grandTotal,omitempty"`
	Merchant   string           `json:"merchant,omitempty"`
	Date       string           `json:"date,omitempty"`
}

// Transaction is a candidate bookkeeping transaction derived from OCR.
type Transaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	AICategory  string          `json:"aiCategory"`
	Confidence  float64         `json:"confidence"`
	SourceFile  string          `json:"sourceFile"`
	Book        Book            `json:"book"`
	AutoBook    bool            `json:"autoBook"`
	Date        string          `json:"date,omitempty"`
}

// Validate checks a (possibly seller-edited) transaction before transfer.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: transaction id is required", ErrValidation)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: transaction %s amount must be positive", ErrValidation, t.ID)
	}
	if strings.TrimSpace(t.AICategory) == "" {
		return fmt.Errorf("%w: transaction %s has no category", ErrValidation, t.ID)
	}
	return nil
}

type categoryHint struct {
	category string
	pattern  *regexp.Regexp
}

// categoryHints is matched in order; the first hit wins.
var categoryHints = []categoryHint{
	hint("Sales Revenue", "sales", "sale", "payment received", "customer payment", "order payment"),
	hint("Cost of Goods Sold", "inventory", "stock", "supplier", "wholesale", "merchandise", "raw materials"),
	hint("Shipping & Delivery", "shipping", "delivery", "courier", "lbc", "j&t", "jnt", "lalamove", "ninja van"),
	hint("Utilities", "electricity", "electric", "meralco", "water", "maynilad", "manila water", "internet", "pldt", "converge", "globe", "smart"),
	hint("Transportation", "grab", "taxi", "fuel", "gasoline", "diesel", "toll", "parking", "angkas"),
	hint("Meals & Entertainment", "restaurant", "food", "meal", "meals", "coffee", "jollibee", "mcdonald's", "starbucks"),
	hint("Office Supplies", "paper", "ink", "printer", "stationery", "supplies", "toner"),
	hint("Advertising", "advertising", "ads", "marketing", "boost", "promotion"),
	hint("Professional Fees", "legal", "accounting", "consultant", "consultancy", "notary"),
	hint("Bank Charges", "bank fee", "service charge", "transfer fee", "instapay", "pesonet"),
	hint("Salaries & Wages", "salary", "salaries", "payroll", "wages"),
}

func hint(category string, keywords ...string) categoryHint {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return categoryHint{
		category: category,
		pattern:  regexp.MustCompile(`(?i)(?:^|[^\pL\pN])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\pL\pN])`),
	}
}

// CategorizeDescription returns the first hinted category for text, or the fallback.
func CategorizeDescription(text string) (string, bool) {
	for _, h := range categoryHints {
		if h.pattern.MatchString(text) {
			return h.category, true
		}
	}
	return FallbackCategory, false
}

var (
	prefixedAmountRe = regexp.MustCompile(`(?i)(?:₱|\bphp|\bp)\s?(\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)\b`)
	bareAmountRe     = regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+\.\d{2}|\d+\.\d{2})\b`)
	metadataRe       = regexp.MustCompile(`(?i)\b(?:order\s*(?:id|no\.?|number|#)|invoice\s*(?:no\.?|number|#)|ref(?:erence)?\s*(?:no\.?|number|#)|receipt\s*(?:no\.?|number|#)|transaction\s*(?:id|no\.?)|tracking|tin|sub\s*-?\s*total|grand\s*total|total|vat|change|cash\s*tendered|amount\s*due|balance)\b`)
	dateLineRe       = regexp.MustCompile(`(?i)^(?:date|dated|time|issued)\b`)
	letterRe         = regexp.MustCompile(`\pL{2,}`)
	labelTrimSet     = " \t:-–|*•₱"
)

// ParseTransactions turns OCR documents into candidate transactions.
//
// Documents are processed in filename order. A positive canonical grand
// total yields one transaction for the document; otherwise every line with
// a currency amount that is not a metadata line yields one, described by
// its inline label or the closest preceding label line. Output stops at
// MaxParsedTransactions.
func ParseTransactions(docs map[string]OCRDocument) []Transaction {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Transaction
	for _, name := range names {
		if len(out) >= MaxParsedTransactions {
			break
		}
		doc := docs[name]
		if gt := doc.Canonical.GrandTotal; gt != nil && gt.IsPositive() {
			out = append(out, canonicalTransaction(name, doc))
			continue
		}
		out = append(out, scanLines(name, doc, MaxParsedTransactions-len(out))...)
	}
	return out
}

func canonicalTransaction(file string, doc OCRDocument) Transaction {
	desc := strings.TrimSpace(doc.Canonical.Merchant)
	if desc == "" {
		desc = structuredString(doc.Structured, "merchant", "vendor", "store", "seller")
	}
	if desc == "" {
		desc = firstLabel(doc.Text)
	}
	if desc == "" {
		desc = documentTitle(file)
	}
	category, hinted := CategorizeDescription(desc)
	if !hinted {
		category, _ = CategorizeDescription(doc.Text)
	}
	return newTransaction(file, desc, *doc.Canonical.GrandTotal, category, canonicalConfidence, doc.Canonical.Date)
}

func scanLines(file string, doc OCRDocument, limit int) []Transaction {
	var (
		out       []Transaction
		lastLabel string
	)
	for _, raw := range strings.Split(doc.Text, "\n") {
		if len(out) >= limit {
			break
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if metadataRe.MatchString(line) || dateLineRe.MatchString(line) {
			continue
		}
		amount, start, ok := findAmount(line)
		if !ok {
			if letterRe.MatchString(line) {
				lastLabel = line
			}
			continue
		}

		desc := strings.Trim(line[:start], labelTrimSet)
		if !letterRe.MatchString(desc) {
			desc = lastLabel
		}
		if desc == "" {
			desc = documentTitle(file)
		}
		lastLabel = ""

		category, hinted := CategorizeDescription(desc)
		confidence := fallbackConfidence
		if hinted {
			confidence = hintedConfidence
		}
		out = append(out, newTransaction(file, desc, amount, category, confidence, doc.Canonical.Date))
	}
	return out
}

// findAmount returns the last currency amount on the line and the byte
// offset where it starts. Prefixed amounts win over bare decimals. Digits
// that are one segment of a dotted number such as 03.15.2024 are skipped.
func findAmount(line string) (decimal.Decimal, int, bool) {
	for _, re := range []*regexp.Regexp{prefixedAmountRe, bareAmountRe} {
		matches := re.FindAllStringSubmatchIndex(line, -1)
		for i := len(matches) - 1; i >= 0; i-- {
			m := matches[i]
			if dottedSegment(line, m[2], m[3]) {
				continue
			}
			digits := strings.ReplaceAll(line[m[2]:m[3]], ",", "")
			amount, err := decimal.NewFromString(digits)
			if err != nil || !amount.IsPositive() {
				continue
			}
			return amount, m[0], true
		}
	}
	return decimal.Zero, 0, false
}

func dottedSegment(line string, start, end int) bool {
	if start >= 2 && line[start-1] == '.' && isDigit(line[start-2]) {
		return true
	}
	return end+1 < len(line) && line[end] == '.' && isDigit(line[end+1])
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func newTransaction(file, desc string, amount decimal.Decimal, category string, confidence float64, date string) Transaction {
	tx := Transaction{
		ID:          uuid.NewString(),
		Description: desc,
		Amount:      amount,
		AICategory:  category,
		Confidence:  confidence,
		SourceFile:  file,
		AutoBook:    confidence >= AutoBookConfidence,
		Date:        date,
	}
	tx.Book = PrimaryBook(Classify(tx))
	return tx
}

func firstLabel(text string) string {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || metadataRe.MatchString(line) || dateLineRe.MatchString(line) {
			continue
		}
		if _, _, ok := findAmount(line); ok {
			continue
		}
		if letterRe.MatchString(line) {
			return line
		}
	}
	return ""
}

func structuredString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func documentTitle(file string) string {
	base := path.Base(strings.ReplaceAll(file, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Categories lists every category the parser can assign, fallback last.
func Categories() []string {
	out := make([]string, 0, len(categoryHints)+1)
	for _, h := range categoryHints {
		out = append(out, h.category)
	}
	return append(out, FallbackCategory)
}
