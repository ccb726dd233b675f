package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StatsKey is the storage key prefix of bookkeeper usage stats.
const StatsKey = "aiBookkeeperStats"

// BookkeeperStats are cumulative usage counters of the AI bookkeeper.
type BookkeeperStats struct {
	Processed        int             `json:"processed"`
	DocsCount        int             `json:"docsCount"`
	TxCount          int             `json:"txCount"`
	TimeSavedMinutes int             `json:"timeSavedMinutes"`
	CostSavings      decimal.Decimal `json:"costSavings"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// StatsDelta is the usage of one processing run.
type StatsDelta struct {
	Docs         int `json:"docs"`
	Transactions int `json:"transactions"`
}

// SavingsModel converts usage into time and money saved.
type SavingsModel struct {
	MinutesPerDoc int
	MinutesPerTx  int
	HourlyRate    decimal.Decimal
}

// DefaultSavingsModel assumes 5 minutes per document, 2 per transaction and
// a ₱150 hourly bookkeeping rate.
func DefaultSavingsModel() SavingsModel {
	return SavingsModel{MinutesPerDoc: 5, MinutesPerTx: 2, HourlyRate: decimal.NewFromInt(150)}
}

// Apply adds one run to the stats.
func (m SavingsModel) Apply(s BookkeeperStats, d StatsDelta, now time.Time) BookkeeperStats {
	minutes := d.Docs*m.MinutesPerDoc + d.Transactions*m.MinutesPerTx
	s.Processed++
	s.DocsCount += d.Docs
	s.TxCount += d.Transactions
	s.TimeSavedMinutes += minutes
	s.CostSavings = s.CostSavings.Add(m.HourlyRate.Mul(decimal.NewFromInt(int64(minutes))).Div(decimal.NewFromInt(60))).Round(2)
	s.UpdatedAt = now.UTC()
	return s
}

// StatsStore persists stats per store.
type StatsStore interface {
	Load(ctx context.Context, storeID string) (BookkeeperStats, error)
	Accumulate(ctx context.Context, storeID string, delta StatsDelta) (BookkeeperStats, error)
}
