package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// DocumentProcessor runs OCR on one uploaded file.
type DocumentProcessor interface {
	ProcessDocument(ctx context.Context, storeID, filename string, content []byte) (OCRDocument, error)
}

// UsageReporter forwards usage counters to the backend.
type UsageReporter interface {
	ReportUsage(ctx context.Context, storeID string, delta StatsDelta) error
}

// CategorySuggestion is an AI opinion on a transaction's category.
type CategorySuggestion struct {
	Category   string  `json:"category" jsonschema_description:"One of the allowed categories, spelled exactly as given"`
	Confidence float64 `json:"confidence" jsonschema_description:"Confidence between 0.0 and 1.0"`
	Reasoning  string  `json:"reasoning" jsonschema_description:"One sentence explaining the choice"`
}

// CategorySuggester proposes a category for a transaction.
type CategorySuggester interface {
	SuggestCategory(ctx context.Context, tx Transaction, allowed []string) (CategorySuggestion, error)
}

// UploadFile is one file of an upload run.
type UploadFile struct {
	Name    string
	Content []byte
}

// UploadProgress is emitted before and after each file of an upload run.
type UploadProgress struct {
	File   string `json:"file"`
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	UploadProcessing = "processing"
	UploadDone       = "done"
	UploadFailed     = "failed"
)

// ParseResult is the outcome of a parse or upload run.
type ParseResult struct {
	Transactions []Transaction   `json:"transactions"`
	FailedFiles  []string        `json:"failedFiles,omitempty"`
	Stats        BookkeeperStats `json:"stats"`
}

// BookkeepingServiceDeps wires the bookkeeping collaborators. Suggester,
// Usage and Balances are optional.
type BookkeepingServiceDeps struct {
	Processor DocumentProcessor
	Suggester CategorySuggester
	Usage     UsageReporter
	Stats     StatsStore
	Balances  BalanceReader
	Worker    *TransferWorker
	Logger    *zap.Logger
}

// BookkeepingService turns uploaded receipts into book entries.
type BookkeepingService struct {
	processor DocumentProcessor
	suggester CategorySuggester
	usage     UsageReporter
	stats     StatsStore
	balances  BalanceReader
	worker    *TransferWorker
	logger    *zap.Logger
}

func NewBookkeepingService(deps BookkeepingServiceDeps) (*BookkeepingService, error) {
	if deps.Stats == nil {
		return nil, errors.New("bookkeeping service: stats store is required")
	}
	if deps.Worker == nil {
		return nil, errors.New("bookkeeping service: transfer worker is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookkeepingService{
		processor: deps.Processor,
		suggester: deps.Suggester,
		usage:     deps.Usage,
		stats:     deps.Stats,
		balances:  deps.Balances,
		worker:    deps.Worker,
		logger:    logger,
	}, nil
}

// Parse converts already-processed OCR documents into transactions.
func (s *BookkeepingService) Parse(ctx context.Context, storeID string, docs map[string]OCRDocument) (ParseResult, error) {
	if len(docs) == 0 {
		return ParseResult{}, fmt.Errorf("%w: no documents to parse", ErrValidation)
	}
	txs := ParseTransactions(docs)
	txs = s.refine(ctx, txs)
	return s.finishRun(ctx, storeID, len(docs), txs), nil
}

// ProcessUploads sends files to OCR one at a time and parses the results.
// A failing file is reported and skipped; the run fails only when no file
// could be processed.
func (s *BookkeepingService) ProcessUploads(ctx context.Context, storeID string, files []UploadFile, progress func(UploadProgress)) (ParseResult, error) {
	if s.processor == nil {
		return ParseResult{}, fmt.Errorf("%w: document processing is not configured", ErrUnavailable)
	}
	if len(files) == 0 {
		return ParseResult{}, fmt.Errorf("%w: no files uploaded", ErrValidation)
	}
	emit := func(p UploadProgress) {
		if progress != nil {
			progress(p)
		}
	}

	docs := make(map[string]OCRDocument, len(files))
	var failed []string
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return ParseResult{}, err
		}
		name := uniqueName(docs, f.Name, i)
		emit(UploadProgress{File: name, Index: i + 1, Total: len(files), Status: UploadProcessing})

		doc, err := s.processor.ProcessDocument(ctx, storeID, f.Name, f.Content)
		if err != nil {
			s.logger.Warn("document processing failed",
				zap.String("store_id", storeID),
				zap.String("file", f.Name),
				zap.Error(err),
			)
			failed = append(failed, f.Name)
			emit(UploadProgress{File: name, Index: i + 1, Total: len(files), Status: UploadFailed, Error: err.Error()})
			continue
		}
		docs[name] = doc
		emit(UploadProgress{File: name, Index: i + 1, Total: len(files), Status: UploadDone})
	}
	if len(docs) == 0 {
		return ParseResult{FailedFiles: failed}, fmt.Errorf("%w: no document could be processed", ErrUnavailable)
	}

	txs := ParseTransactions(docs)
	txs = s.refine(ctx, txs)
	res := s.finishRun(ctx, storeID, len(docs), txs)
	res.FailedFiles = failed
	return res, nil
}

// Transfer posts reviewed transactions to their books.
func (s *BookkeepingService) Transfer(ctx context.Context, storeID string, txs []Transaction, progress func(TransferProgress)) (TransferReport, error) {
	if len(txs) == 0 {
		return TransferReport{}, fmt.Errorf("%w: no transactions to transfer", ErrValidation)
	}
	return s.worker.Transfer(ctx, storeID, txs, progress)
}

// Stats returns the accumulated usage of a store.
func (s *BookkeepingService) Stats(ctx context.Context, storeID string) (BookkeeperStats, error) {
	return s.stats.Load(ctx, storeID)
}

// Balances returns the store's account balances. Only the PostgreSQL ledger
// keeps them; with the backend poster this returns ErrUnavailable.
func (s *BookkeepingService) Balances(ctx context.Context, storeID string) ([]AccountBalance, error) {
	if s.balances == nil {
		return nil, fmt.Errorf("%w: book balances need the database ledger", ErrUnavailable)
	}
	if strings.TrimSpace(storeID) == "" {
		return nil, fmt.Errorf("%w: store id is required", ErrValidation)
	}
	return s.balances.GetBalances(ctx, storeID)
}

// refine asks the suggester about transactions left in the fallback
// category. Any failure keeps the heuristic result.
func (s *BookkeepingService) refine(ctx context.Context, txs []Transaction) []Transaction {
	if s.suggester == nil {
		return txs
	}
	allowed := Categories()
	for i := range txs {
		if txs[i].AICategory != FallbackCategory {
			continue
		}
		sug, err := s.suggester.SuggestCategory(ctx, txs[i], allowed)
		if err != nil {
			s.logger.Warn("category suggestion failed", zap.String("transaction_id", txs[i].ID), zap.Error(err))
			continue
		}
		category, ok := matchCategory(allowed, sug.Category)
		if !ok {
			s.logger.Debug("category suggestion not allowed", zap.String("category", sug.Category))
			continue
		}
		txs[i].AICategory = category
		if sug.Confidence > 0 && sug.Confidence <= 1 {
			txs[i].Confidence = sug.Confidence
		}
		txs[i].AutoBook = txs[i].Confidence >= AutoBookConfidence
		txs[i].Book = PrimaryBook(Classify(txs[i]))
	}
	return txs
}

func (s *BookkeepingService) finishRun(ctx context.Context, storeID string, docs int, txs []Transaction) ParseResult {
	delta := StatsDelta{Docs: docs, Transactions: len(txs)}
	res := ParseResult{Transactions: txs}
	stats, err := s.stats.Accumulate(ctx, storeID, delta)
	if err != nil {
		s.logger.Warn("stats accumulation failed", zap.String("store_id", storeID), zap.Error(err))
	} else {
		res.Stats = stats
	}
	if s.usage != nil {
		if err := s.usage.ReportUsage(ctx, storeID, delta); err != nil {
			s.logger.Warn("usage report failed", zap.String("store_id", storeID), zap.Error(err))
		}
	}
	return res
}

func matchCategory(allowed []string, category string) (string, bool) {
	category = strings.TrimSpace(category)
	for _, c := range allowed {
		if strings.EqualFold(c, category) {
			return c, true
		}
	}
	return "", false
}

func uniqueName(docs map[string]OCRDocument, name string, i int) string {
	if name == "" {
		name = fmt.Sprintf("file-%d", i+1)
	}
	if _, taken := docs[name]; !taken {
		return name
	}
	return fmt.Sprintf("%s (%d)", name, i+1)
}
