// Package behavior derives campaign-timing signals from wallet activity:
// the peak-activity hour, Sybil clusters of wallets sharing a funding source
// with near-simultaneous creation, and weekly cohort retention.
package behavior

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainops/launchgate/internal/domain"
	"github.com/chainops/launchgate/internal/warehouse"
)

// Analyzer is the capability interface the pipeline consumes. An empty
// wallet list is a valid "skip this pillar" input: implementations return
// (nil, nil), not an error that aborts the run.
type Analyzer interface {
	Analyze(ctx context.Context, wallets []string, campaignStart time.Time) (*domain.UserBehaviorArtifact, error)
}

// Config holds the analyzer knobs: activity lookback and the density
// clustering parameters.
type Config struct {
	LookbackDays int     `yaml:"lookback_days"`
	Eps          float64 `yaml:"eps"`
	MinPts       int     `yaml:"min_pts"`
}

func DefaultConfig() Config {
	return Config{LookbackDays: 90, Eps: 0.5, MinPts: 3}
}

// WarehouseAnalyzer implements Analyzer over the analytical warehouse.
type WarehouseAnalyzer struct {
	store warehouse.Store
	cfg   Config
}

func NewWarehouseAnalyzer(store warehouse.Store, cfg Config) *WarehouseAnalyzer {
	return &WarehouseAnalyzer{store: store, cfg: cfg}
}

var _ Analyzer = (*WarehouseAnalyzer)(nil)

// Analyze builds the behavior artifact for one campaign start date. The
// peak hour is the modal hour of the lookback activity histogram; ties
// break to the earliest hour.
func (a *WarehouseAnalyzer) Analyze(ctx context.Context, wallets []string, campaignStart time.Time) (*domain.UserBehaviorArtifact, error) {
	normalized := domain.NormalizeAddresses(wallets)
	if len(normalized) == 0 {
		log.Info().Msg("no wallets supplied, behavior pillar skipped")
		return nil, nil
	}

	from := campaignStart.AddDate(0, 0, -a.cfg.LookbackDays)
	hist, err := a.store.ActivityHistogram(ctx, normalized, from, campaignStart)
	if err != nil {
		return nil, err
	}

	peak, total := -1, int64(0)
	var peakCount int64
	for h, n := range hist {
		total += n
		if n > peakCount {
			peakCount = n
			peak = h
		}
	}
	if total == 0 {
		return nil, &domain.InsufficientDataError{
			Pillar: domain.PillarBehavior, Have: 0, Need: 1,
		}
	}

	features, err := a.store.WalletFeatures(ctx, normalized)
	if err != nil {
		return nil, err
	}
	clusters := clusterSybils(features, a.cfg.Eps, a.cfg.MinPts)

	rows, err := a.store.CohortActivity(ctx, normalized)
	if err != nil {
		return nil, err
	}
	cohorts := make([]domain.CohortRetention, 0, len(rows))
	for _, r := range rows {
		c := domain.CohortRetention{CohortWeek: r.Week, Size: int(r.Size)}
		if r.Size > 0 {
			c.Day1 = float64(r.Day1) / float64(r.Size)
			c.Day7 = float64(r.Day7) / float64(r.Size)
			c.Day30 = float64(r.Day30) / float64(r.Size)
		}
		cohorts = append(cohorts, c)
	}

	log.Info().
		Int("wallets", len(normalized)).
		Int("peak_hour_utc", peak).
		Int("sybil_clusters", len(clusters)).
		Msg("behavior analysis complete")

	return &domain.UserBehaviorArtifact{
		CampaignStart:   campaignStart.UTC(),
		PeakHourUTC:     peak,
		HourlyActivity:  hist,
		SybilClusters:   clusters,
		Cohorts:         cohorts,
		WalletsAnalyzed: len(normalized),
		GeneratedAt:     time.Now().UTC(),
	}, nil
}
