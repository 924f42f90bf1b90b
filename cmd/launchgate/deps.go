package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainops/launchgate/internal/behavior"
	"github.com/chainops/launchgate/internal/cache"
	"github.com/chainops/launchgate/internal/cache/hot"
	"github.com/chainops/launchgate/internal/config"
	"github.com/chainops/launchgate/internal/explorer"
	"github.com/chainops/launchgate/internal/gas"
	"github.com/chainops/launchgate/internal/journal"
	"github.com/chainops/launchgate/internal/pipeline"
	"github.com/chainops/launchgate/internal/reconcile"
	"github.com/chainops/launchgate/internal/risk"
	"github.com/chainops/launchgate/internal/telemetry"
	"github.com/chainops/launchgate/internal/warehouse"
	"github.com/chainops/launchgate/internal/web"
)

// app holds the wired engine shared by all subcommands.
type app struct {
	cfg        *config.EngineConfig
	store      cache.Store
	metrics    *telemetry.Metrics
	wh         warehouse.Store
	scorer     risk.Scorer
	analyzer   behavior.Analyzer
	forecaster *gas.Forecaster
	reconciler *reconcile.Reconciler
	runner     *pipeline.Runner
	wallets    []string
	start      time.Time
}

// buildApp wires the full engine from the config files. An empty policy
// path selects the built-in standard profile.
func buildApp(ctx context.Context, configPath, policyPath string) (*app, error) {
	cfg, err := config.LoadEngineConfig(configPath)
	if err != nil {
		return nil, err
	}

	policy := config.GetDefaultPolicyConfig()
	if policyPath != "" {
		policy, err = config.LoadPolicyConfig(policyPath)
		if err != nil {
			return nil, err
		}
	}
	profile, err := policy.GetActiveProfile()
	if err != nil {
		return nil, err
	}
	if problems := profile.ValidateProfile(); len(problems) > 0 {
		return nil, fmt.Errorf("policy profile '%s' invalid: %s", profile.Name, strings.Join(problems, "; "))
	}

	var store cache.Store
	fileStore, err := cache.NewFileStore(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("open artifact cache: %w", err)
	}
	store = fileStore
	if cfg.Cache.RedisAddr != "" {
		hotCfg := hot.DefaultConfig()
		hotCfg.Addr = cfg.Cache.RedisAddr
		hotCfg.TTL = time.Duration(cfg.Cache.TTLSecs) * time.Second
		store = hot.NewTiered(hotCfg, fileStore)
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("redis hot cache tier enabled")
	}

	wh, err := warehouse.NewClickHouseStore(ctx, cfg.Warehouse.DSN, time.Duration(cfg.Warehouse.TimeoutMS)*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("connect warehouse: %w", err)
	}

	exCfg := explorer.DefaultConfig()
	exCfg.BaseURL = cfg.Explorer.BaseURL
	exCfg.APIKey = cfg.Explorer.APIKey
	exCfg.RPS = float64(cfg.Explorer.RPS)
	exCfg.DailyBudget = int64(cfg.Explorer.DailyBudget)
	scorer := risk.NewExplorerScorer(explorer.NewClient(exCfg))

	var repo journal.Repo
	if cfg.Journal.Enabled {
		repo, err = journal.NewPostgresRepo(cfg.Journal.DSN, 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("connect decision journal: %w", err)
		}
	}

	gasCfg := cfg.ForecasterConfig()
	forecaster, err := gas.NewForecaster(gasCfg)
	if err != nil {
		return nil, err
	}

	wallets, err := config.LoadWallets(cfg.Campaign.WalletsFile)
	if err != nil {
		return nil, err
	}

	start := time.Now().UTC().Add(24 * time.Hour)
	if cfg.Campaign.StartDate != "" {
		start, err = time.Parse("2006-01-02", cfg.Campaign.StartDate)
		if err != nil {
			return nil, fmt.Errorf("campaign.start_date must be YYYY-MM-DD: %w", err)
		}
	}

	metrics := telemetry.NewMetrics()
	analyzer := behavior.NewWarehouseAnalyzer(wh, cfg.AnalyzerConfig())
	reconciler := reconcile.New(profile.ReconcilerConfig())

	runner := pipeline.NewRunner(pipeline.Deps{
		Store:      store,
		Warehouse:  wh,
		Scorer:     scorer,
		Analyzer:   analyzer,
		Forecaster: forecaster,
		Reconciler: reconciler,
		Journal:    repo,
		Metrics:    metrics,
		GasConfig:  gasCfg,
	})

	return &app{
		cfg:        cfg,
		store:      store,
		metrics:    metrics,
		wh:         wh,
		scorer:     scorer,
		analyzer:   analyzer,
		forecaster: forecaster,
		reconciler: reconciler,
		runner:     runner,
		wallets:    wallets,
		start:      start,
	}, nil
}

func (a *app) runConfig() pipeline.RunConfig {
	return pipeline.RunConfig{
		Campaign:      a.cfg.Campaign.Name,
		Contract:      a.cfg.Campaign.Contract,
		Wallets:       a.wallets,
		CampaignStart: a.start,
		OutDir:        a.cfg.OutDir,
	}
}

func (a *app) newServer() *web.Server {
	srvCfg := web.DefaultServerConfig()
	srvCfg.Addr = a.cfg.Server.Addr
	return web.NewServer(srvCfg, a.cfg.OutDir, a.cfg.Cache.Dir, a.metrics)
}
