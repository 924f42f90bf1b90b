// Package warehouse reads historical chain data from the analytical
// warehouse: hourly gas prices for the forecast pillar and wallet activity,
// funding and cohort aggregates for the behavior pillar.
package warehouse

import (
	"context"
	"time"

	"github.com/chainops/launchgate/internal/domain"
)

// WalletFeature is the per-wallet Sybil clustering input: who funded the
// wallet first, and when it was created.
type WalletFeature struct {
	Address       string
	FundingSource string
	CreatedAt     time.Time
}

// CohortRow is one weekly signup cohort with retained wallet counts at
// day 1, 7 and 30, aggregated warehouse-side.
type CohortRow struct {
	Week  time.Time
	Size  uint64
	Day1  uint64
	Day7  uint64
	Day30 uint64
}

// Store is the analytical warehouse contract. All calls are bounded by the
// caller's context.
type Store interface {
	// HourlyGasPrices returns the average gas price in gwei per hour over
	// [from, to), ordered by hour ascending.
	HourlyGasPrices(ctx context.Context, from, to time.Time) (domain.HourlyGasSeries, error)
	// ActivityHistogram counts the wallets' transactions per UTC hour-of-day
	// over [from, to).
	ActivityHistogram(ctx context.Context, wallets []string, from, to time.Time) ([24]int64, error)
	// WalletFeatures returns funding source and creation time per wallet.
	WalletFeatures(ctx context.Context, wallets []string) ([]WalletFeature, error)
	// CohortActivity aggregates weekly signup cohorts with day-1/7/30
	// retention counts, oldest cohort first.
	CohortActivity(ctx context.Context, wallets []string) ([]CohortRow, error)
}
