package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TransferProgress is emitted after every book entry the worker handles.
type TransferProgress struct {
	Done          int    `json:"done"`
	Total         int    `json:"total"`
	TransactionID string `json:"transactionId"`
	Book          Book   `json:"book"`
	Skipped       bool   `json:"skipped,omitempty"`
}

// TransferFailure names the entry that stopped a transfer.
type TransferFailure struct {
	TransactionID string `json:"transactionId"`
	Book          Book   `json:"book"`
	Error         string `json:"error"`
}

// TransferReport is the partial or complete result of a transfer.
type TransferReport struct {
	Total        int              `json:"total"`
	Posted       int              `json:"posted"`
	Skipped      int              `json:"skipped"`
	Transactions []string         `json:"transactions"`
	Failed       *TransferFailure `json:"failed,omitempty"`
}

// TransferWorker posts transactions to their books one entry at a time. At
// most one transfer runs per worker; a second caller waits for the first.
type TransferWorker struct {
	poster LedgerPoster
	logger *zap.Logger
	now    func() time.Time
	slot   chan struct{}
}

func NewTransferWorker(poster LedgerPoster, logger *zap.Logger) *TransferWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferWorker{
		poster: poster,
		logger: logger,
		now:    time.Now,
		slot:   make(chan struct{}, 1),
	}
}

// Transfer posts every transaction in order. Entries already posted are
// skipped. The first post error stops the loop; the report then holds the
// progress made so far and the returned error wraps ErrTransferAborted.
func (w *TransferWorker) Transfer(ctx context.Context, storeID string, txs []Transaction, progress func(TransferProgress)) (TransferReport, error) {
	var report TransferReport

	today := w.now()
	plan := make([][]BookEntry, 0, len(txs))
	for _, tx := range txs {
		entries, err := BuildBookEntries(tx, storeID, today)
		if err != nil {
			return report, err
		}
		plan = append(plan, entries)
		report.Total += len(entries)
	}

	select {
	case w.slot <- struct{}{}:
	case <-ctx.Done():
		return report, ctx.Err()
	}
	defer func() { <-w.slot }()

	done := 0
	for i, entries := range plan {
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return report, fmt.Errorf("%w: %w", ErrTransferAborted, err)
			}

			skipped := false
			if err := w.poster.Post(ctx, entry); err != nil {
				if !errors.Is(err, ErrDuplicateEntry) {
					w.logger.Error("transfer aborted",
						zap.String("store_id", storeID),
						zap.String("transaction_id", entry.TransactionID),
						zap.String("book", string(entry.Book)),
						zap.Int("done", done),
						zap.Int("total", report.Total),
						zap.Error(err),
					)
					report.Failed = &TransferFailure{
						TransactionID: entry.TransactionID,
						Book:          entry.Book,
						Error:         err.Error(),
					}
					return report, fmt.Errorf("%w: %w", ErrTransferAborted, err)
				}
				skipped = true
				report.Skipped++
			} else {
				report.Posted++
			}

			done++
			if progress != nil {
				progress(TransferProgress{
					Done:          done,
					Total:         report.Total,
					TransactionID: entry.TransactionID,
					Book:          entry.Book,
					Skipped:       skipped,
				})
			}
		}
		report.Transactions = append(report.Transactions, txs[i].ID)
	}

	w.logger.Info("transfer complete",
		zap.String("store_id", storeID),
		zap.Int("posted", report.Posted),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}
