// Package pipeline orchestrates one decision run: consult the artifact
// cache per pillar, invoke the analyzers on misses, reconcile the results
// and persist the rendered report. Pillar failures degrade that pillar only;
// the run always ends with a recommendation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/chainops/launchgate/internal/behavior"
	"github.com/chainops/launchgate/internal/cache"
	"github.com/chainops/launchgate/internal/domain"
	"github.com/chainops/launchgate/internal/gas"
	"github.com/chainops/launchgate/internal/journal"
	"github.com/chainops/launchgate/internal/reconcile"
	"github.com/chainops/launchgate/internal/risk"
	"github.com/chainops/launchgate/internal/telemetry"
	"github.com/chainops/launchgate/internal/warehouse"
)

// RunConfig identifies one campaign run.
type RunConfig struct {
	Campaign      string
	Contract      string
	Wallets       []string
	CampaignStart time.Time
	OutDir        string
}

// Result bundles the recommendation with the artifacts that produced it.
type Result struct {
	Recommendation domain.Recommendation
	Risk           *domain.RiskArtifact
	Forecast       *domain.ForecastArtifact
	Behavior       *domain.UserBehaviorArtifact
	ReportDir      string
}

// Runner wires the pillars together. The journal is optional (nil disables
// it); everything else is required.
type Runner struct {
	store      cache.Store
	wh         warehouse.Store
	scorer     risk.Scorer
	analyzer   behavior.Analyzer
	forecaster *gas.Forecaster
	reconciler *reconcile.Reconciler
	journal    journal.Repo
	metrics    *telemetry.Metrics
	gasCfg     gas.Config
}

type Deps struct {
	Store      cache.Store
	Warehouse  warehouse.Store
	Scorer     risk.Scorer
	Analyzer   behavior.Analyzer
	Forecaster *gas.Forecaster
	Reconciler *reconcile.Reconciler
	Journal    journal.Repo
	Metrics    *telemetry.Metrics
	GasConfig  gas.Config
}

func NewRunner(d Deps) *Runner {
	return &Runner{
		store:      d.Store,
		wh:         d.Warehouse,
		scorer:     d.Scorer,
		analyzer:   d.Analyzer,
		forecaster: d.Forecaster,
		reconciler: d.Reconciler,
		journal:    d.Journal,
		metrics:    d.Metrics,
		gasCfg:     d.GasConfig,
	}
}

// Run executes the three pillars sequentially (they are independent;
// sequential keeps the logs deterministic), reconciles and persists the
// report. The returned error covers report persistence only: pillar
// failures are degradations inside the recommendation, not run failures.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) (*Result, error) {
	runID := uuid.NewString()
	asOf := time.Now().UTC()
	r.metrics.ActiveRuns.Inc()
	defer r.metrics.ActiveRuns.Dec()

	log.Info().
		Str("run_id", runID).
		Str("campaign", cfg.Campaign).
		Str("contract", domain.NormalizeAddress(cfg.Contract)).
		Msg("decision run started")

	var degradations []string

	riskArt := r.riskPillar(ctx, cfg, &degradations)
	forecast := r.gasPillar(ctx, cfg, asOf, &degradations)
	behaviorArt := r.behaviorPillar(ctx, cfg, &degradations)

	rec := r.reconciler.Decide(reconcile.Inputs{
		RunID:        runID,
		Campaign:     cfg.Campaign,
		Risk:         riskArt,
		Forecast:     forecast,
		Behavior:     behaviorArt,
		Degradations: degradations,
	})
	r.metrics.RunsTotal.Inc()

	res := &Result{
		Recommendation: rec,
		Risk:           riskArt,
		Forecast:       forecast,
		Behavior:       behaviorArt,
	}

	if cfg.OutDir != "" {
		dir, err := writeReport(cfg.OutDir, asOf, res)
		if err != nil {
			return res, fmt.Errorf("write report: %w", err)
		}
		res.ReportDir = dir
	}

	if r.journal != nil {
		entry := journal.FromRecommendation(rec, domain.NormalizeAddress(cfg.Contract), forecast, riskArt)
		if err := r.journal.Record(ctx, entry); err != nil {
			log.Warn().Err(err).Msg("decision journal unavailable, run not recorded")
		}
	}

	log.Info().
		Str("run_id", runID).
		Str("action", string(rec.Action)).
		Int("launch_hour_utc", rec.LaunchHourUTC).
		Msg("decision run complete")
	return res, nil
}

// riskPillar returns the risk artifact or nil, appending any degradations.
func (r *Runner) riskPillar(ctx context.Context, cfg RunConfig, degradations *[]string) *domain.RiskArtifact {
	start := time.Now()
	key := cache.RiskKey(cfg.Contract)

	if art, ok := r.cacheGetRisk(key, degradations); ok {
		r.metrics.PillarDuration.WithLabelValues(domain.PillarRisk, "cache_hit").Observe(time.Since(start).Seconds())
		return art
	}

	art, err := r.scorer.Score(ctx, cfg.Contract)
	if err != nil {
		r.metrics.PillarDuration.WithLabelValues(domain.PillarRisk, "failed").Observe(time.Since(start).Seconds())
		*degradations = append(*degradations, fmt.Sprintf("risk pillar failed: %v", err))
		log.Error().Err(err).Msg("risk pillar failed")
		return nil
	}
	r.cachePut(domain.PillarRisk, func() error { return r.store.PutRisk(key, art) }, degradations)
	r.metrics.PillarDuration.WithLabelValues(domain.PillarRisk, "ok").Observe(time.Since(start).Seconds())
	return art
}

// gasPillar produces the forecast artifact or nil. Fit failures downgrade
// the pillar; partial artifacts are never cached.
func (r *Runner) gasPillar(ctx context.Context, cfg RunConfig, asOf time.Time, degradations *[]string) *domain.ForecastArtifact {
	start := time.Now()
	key := cache.ForecastKey(cfg.Campaign, r.gasCfg.HorizonHours, asOf)

	if art, ok := r.cacheGetForecast(key, degradations); ok {
		r.metrics.PillarDuration.WithLabelValues(domain.PillarGas, "cache_hit").Observe(time.Since(start).Seconds())
		return art
	}

	from := asOf.Add(-time.Duration(r.gasCfg.LookbackHours) * time.Hour)
	series, err := r.wh.HourlyGasPrices(ctx, from, asOf)
	if err != nil {
		r.metrics.PillarDuration.WithLabelValues(domain.PillarGas, "failed").Observe(time.Since(start).Seconds())
		*degradations = append(*degradations, fmt.Sprintf("gas pillar failed: warehouse fetch: %v", err))
		log.Error().Err(err).Msg("gas series fetch failed")
		return nil
	}

	art, err := r.forecaster.Run(cfg.Campaign, series, asOf)
	if err != nil {
		r.metrics.PillarDuration.WithLabelValues(domain.PillarGas, "failed").Observe(time.Since(start).Seconds())
		r.metrics.FitOutcomes.WithLabelValues(fitOutcome(err)).Inc()
		*degradations = append(*degradations, fmt.Sprintf("gas pillar failed: %v", err))
		log.Error().Err(err).Msg("gas forecast failed")
		return nil
	}
	r.metrics.FitOutcomes.WithLabelValues("fitted").Inc()
	r.metrics.Verdicts.WithLabelValues(string(art.Verdict)).Inc()
	r.cachePut(domain.PillarGas, func() error { return r.store.PutForecast(key, art) }, degradations)
	r.metrics.PillarDuration.WithLabelValues(domain.PillarGas, "ok").Observe(time.Since(start).Seconds())
	return art
}

func (r *Runner) behaviorPillar(ctx context.Context, cfg RunConfig, degradations *[]string) *domain.UserBehaviorArtifact {
	if len(cfg.Wallets) == 0 {
		*degradations = append(*degradations, "no wallet list supplied, behavior pillar skipped")
		log.Info().Msg("behavior pillar skipped, no wallet list")
		return nil
	}

	start := time.Now()
	key := cache.BehaviorKey(cfg.CampaignStart)

	if art, ok := r.cacheGetBehavior(key, degradations); ok {
		r.metrics.PillarDuration.WithLabelValues(domain.PillarBehavior, "cache_hit").Observe(time.Since(start).Seconds())
		return art
	}

	art, err := r.analyzer.Analyze(ctx, cfg.Wallets, cfg.CampaignStart)
	if err != nil {
		r.metrics.PillarDuration.WithLabelValues(domain.PillarBehavior, "failed").Observe(time.Since(start).Seconds())
		*degradations = append(*degradations, fmt.Sprintf("behavior pillar failed: %v", err))
		log.Error().Err(err).Msg("behavior pillar failed")
		return nil
	}
	if art == nil {
		*degradations = append(*degradations, "behavior pillar produced no artifact (empty wallet list after normalization)")
		return nil
	}
	r.cachePut(domain.PillarBehavior, func() error { return r.store.PutBehavior(key, art) }, degradations)
	r.metrics.PillarDuration.WithLabelValues(domain.PillarBehavior, "ok").Observe(time.Since(start).Seconds())
	return art
}

func (r *Runner) cacheGetRisk(key cache.Key, degradations *[]string) (*domain.RiskArtifact, bool) {
	art, ok, err := r.store.GetRisk(key)
	r.noteCacheRead(domain.PillarRisk, key, ok, err, degradations)
	return art, ok
}

func (r *Runner) cacheGetForecast(key cache.Key, degradations *[]string) (*domain.ForecastArtifact, bool) {
	art, ok, err := r.store.GetForecast(key)
	r.noteCacheRead(domain.PillarGas, key, ok, err, degradations)
	return art, ok
}

func (r *Runner) cacheGetBehavior(key cache.Key, degradations *[]string) (*domain.UserBehaviorArtifact, bool) {
	art, ok, err := r.store.GetBehavior(key)
	r.noteCacheRead(domain.PillarBehavior, key, ok, err, degradations)
	return art, ok
}

// noteCacheRead tracks hit/miss/degradation metrics and discloses cache
// degradations; an unreadable cache is treated as a miss, never a failure.
func (r *Runner) noteCacheRead(pillar string, key cache.Key, ok bool, err error, degradations *[]string) {
	switch {
	case err != nil:
		r.metrics.CacheErrors.WithLabelValues(pillar).Inc()
		*degradations = append(*degradations, fmt.Sprintf("artifact cache unavailable for %s, recomputed", pillar))
		log.Warn().Err(err).Str("key", key.String()).Msg("cache degraded, treating as miss")
	case ok:
		r.metrics.CacheHits.WithLabelValues(pillar).Inc()
		log.Debug().Str("key", key.String()).Msg("cache hit")
	default:
		r.metrics.CacheMisses.WithLabelValues(pillar).Inc()
	}
}

// cachePut writes an artifact after a fully successful analysis unit. A
// write failure is a logged degradation, not a run failure.
func (r *Runner) cachePut(pillar string, put func() error, degradations *[]string) {
	if err := put(); err != nil {
		r.metrics.CacheErrors.WithLabelValues(pillar).Inc()
		*degradations = append(*degradations, fmt.Sprintf("artifact cache write failed for %s", pillar))
		log.Warn().Err(err).Str("pillar", pillar).Msg("cache write failed")
	}
}

func fitOutcome(err error) string {
	var (
		ide *domain.InsufficientDataError
		dqe *domain.DataQualityError
		mfe *domain.ModelFitError
	)
	switch {
	case errors.As(err, &ide):
		return "insufficient_data"
	case errors.As(err, &dqe):
		return "data_quality"
	case errors.As(err, &mfe):
		return "fit_error"
	default:
		return "error"
	}
}
