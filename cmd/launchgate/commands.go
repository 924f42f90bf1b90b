package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chainops/launchgate/internal/cache"
	"github.com/chainops/launchgate/internal/config"
	"github.com/chainops/launchgate/internal/domain"
	"github.com/chainops/launchgate/internal/reconcile"
)

func appFromFlags(cmd *cobra.Command) (*app, error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	a, err := buildApp(ctx, flagString(cmd.Flags(), "config"), flagString(cmd.Flags(), "policy"))
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(a, cmd); err != nil {
		return nil, err
	}
	return a, nil
}

// applyOverrides lets per-command flags shadow the config file for one
// invocation. Unset flags leave the config untouched.
func applyOverrides(a *app, cmd *cobra.Command) error {
	if v := flagString(cmd.Flags(), "campaign"); v != "" {
		a.cfg.Campaign.Name = v
	}
	if v := flagString(cmd.Flags(), "contract"); v != "" {
		a.cfg.Campaign.Contract = v
	}
	if v := flagString(cmd.Flags(), "wallets"); v != "" {
		wallets, err := config.LoadWallets(v)
		if err != nil {
			return err
		}
		a.wallets = wallets
	}
	if v := flagString(cmd.Flags(), "start"); v != "" {
		start, err := time.Parse("2006-01-02", v)
		if err != nil {
			return fmt.Errorf("--start must be YYYY-MM-DD: %w", err)
		}
		a.start = start
	}
	if v := flagString(cmd.Flags(), "addr"); v != "" {
		a.cfg.Server.Addr = v
	}
	return nil
}

func flagString(flags *pflag.FlagSet, name string) string {
	v, _ := flags.GetString(name)
	return v
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runFull executes the complete pipeline: all pillars, reconciliation,
// report and metrics snapshot.
func runFull(cmd *cobra.Command, args []string) error {
	a, err := appFromFlags(cmd)
	if err != nil {
		return err
	}

	res, err := a.runner.Run(cmd.Context(), a.runConfig())
	if err != nil {
		return err
	}
	a.metrics.LogSnapshot()

	if res.ReportDir != "" {
		log.Info().Str("dir", res.ReportDir).Msg("report written")
	}
	return printJSON(res.Recommendation)
}

func runForecast(cmd *cobra.Command, args []string) error {
	a, err := appFromFlags(cmd)
	if err != nil {
		return err
	}

	asOf := time.Now().UTC()
	gasCfg := a.cfg.ForecasterConfig()
	from := asOf.Add(-time.Duration(gasCfg.LookbackHours) * time.Hour)
	series, err := a.wh.HourlyGasPrices(cmd.Context(), from, asOf)
	if err != nil {
		return fmt.Errorf("fetch gas series: %w", err)
	}

	art, err := a.forecaster.Run(a.cfg.Campaign.Name, series, asOf)
	if err != nil {
		return err
	}
	if err := a.store.PutForecast(cache.ForecastKey(a.cfg.Campaign.Name, gasCfg.HorizonHours, asOf), art); err != nil {
		log.Warn().Err(err).Msg("forecast artifact not cached")
	}
	return printJSON(art)
}

func runRisk(cmd *cobra.Command, args []string) error {
	a, err := appFromFlags(cmd)
	if err != nil {
		return err
	}

	art, err := a.scorer.Score(cmd.Context(), a.cfg.Campaign.Contract)
	if err != nil {
		return err
	}
	if err := a.store.PutRisk(cache.RiskKey(a.cfg.Campaign.Contract), art); err != nil {
		log.Warn().Err(err).Msg("risk artifact not cached")
	}
	return printJSON(art)
}

func runBehavior(cmd *cobra.Command, args []string) error {
	a, err := appFromFlags(cmd)
	if err != nil {
		return err
	}
	art, err := behaviorArtifact(cmd.Context(), a)
	if err != nil {
		return err
	}
	return printJSON(art)
}

// behaviorArtifact runs the behavior pillar once and caches the result. The
// analyzer returns a nil artifact when every configured wallet normalizes
// away (blank lines, bare 0x prefixes); that is a usable-input error here,
// never a value handed to the cache.
func behaviorArtifact(ctx context.Context, a *app) (*domain.UserBehaviorArtifact, error) {
	if len(a.wallets) == 0 {
		return nil, fmt.Errorf("no wallet list configured (campaign.wallets_file)")
	}

	art, err := a.analyzer.Analyze(ctx, a.wallets, a.start)
	if err != nil {
		return nil, err
	}
	if art == nil {
		return nil, fmt.Errorf("wallet list contains no valid addresses")
	}
	if err := a.store.PutBehavior(cache.BehaviorKey(a.start), art); err != nil {
		log.Warn().Err(err).Msg("behavior artifact not cached")
	}
	return art, nil
}

// runDecide reconciles whatever the cache already holds for today. Missing
// pillars surface as degradations instead of being recomputed.
func runDecide(cmd *cobra.Command, args []string) error {
	a, err := appFromFlags(cmd)
	if err != nil {
		return err
	}

	asOf := time.Now().UTC()
	gasCfg := a.cfg.ForecasterConfig()
	var degradations []string

	riskArt := cachedRisk(a, cache.RiskKey(a.cfg.Campaign.Contract), &degradations)
	forecast := cachedForecast(a, cache.ForecastKey(a.cfg.Campaign.Name, gasCfg.HorizonHours, asOf), &degradations)
	behaviorArt := cachedBehavior(a, cache.BehaviorKey(a.start), &degradations)

	rec := a.reconciler.Decide(reconcile.Inputs{
		RunID:        uuid.NewString(),
		Campaign:     a.cfg.Campaign.Name,
		Risk:         riskArt,
		Forecast:     forecast,
		Behavior:     behaviorArt,
		Degradations: degradations,
	})
	return printJSON(rec)
}

func cachedRisk(a *app, key cache.Key, degradations *[]string) *domain.RiskArtifact {
	art, ok, err := a.store.GetRisk(key)
	noteCached(domain.PillarRisk, ok, err, degradations)
	return art
}

func cachedForecast(a *app, key cache.Key, degradations *[]string) *domain.ForecastArtifact {
	art, ok, err := a.store.GetForecast(key)
	noteCached(domain.PillarGas, ok, err, degradations)
	return art
}

func cachedBehavior(a *app, key cache.Key, degradations *[]string) *domain.UserBehaviorArtifact {
	art, ok, err := a.store.GetBehavior(key)
	noteCached(domain.PillarBehavior, ok, err, degradations)
	return art
}

func noteCached(pillar string, ok bool, err error, degradations *[]string) {
	switch {
	case err != nil:
		*degradations = append(*degradations, fmt.Sprintf("artifact cache unavailable for %s", pillar))
	case !ok:
		*degradations = append(*degradations, fmt.Sprintf("no cached %s artifact, pillar excluded", pillar))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := appFromFlags(cmd)
	if err != nil {
		return err
	}

	srv := a.newServer()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
