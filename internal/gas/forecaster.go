package gas

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainops/launchgate/internal/domain"
)

// Forecaster runs the full gas pillar: validate, split, select order on the
// training portion, backtest against the held-out tail, derive the verdict,
// refit on the full series and forecast the horizon. Pure in-memory
// computation; the caller owns fetching the series and caching the artifact.
type Forecaster struct {
	cfg Config
}

func NewForecaster(cfg Config) (*Forecaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("forecaster config: %w", err)
	}
	return &Forecaster{cfg: cfg}, nil
}

// Run produces the forecast artifact for one (campaign, horizon, as-of) key.
// Errors follow the pillar taxonomy: InsufficientDataError and
// DataQualityError for input problems, ModelFitError for numerical failure.
// The caller must fall back to "no forecast available" on error, never
// fabricate a zero-confidence forecast.
func (f *Forecaster) Run(campaign string, series domain.HourlyGasSeries, asOf time.Time) (*domain.ForecastArtifact, error) {
	clean, err := validateSeries(series, f.cfg)
	if err != nil {
		return nil, fmt.Errorf("validate series: %w", err)
	}
	prices := clean.Prices()

	holdout := f.cfg.HoldoutPoints
	trainLen := len(prices) - holdout
	if trainLen < f.cfg.MinPoints-holdout {
		return nil, &domain.InsufficientDataError{
			Pillar: domain.PillarGas, Have: trainLen, Need: f.cfg.MinPoints - holdout,
		}
	}
	train, held := prices[:trainLen], prices[trainLen:]

	model, err := selectOrder(train)
	if err != nil {
		return nil, fmt.Errorf("order selection: %w", err)
	}
	log.Debug().
		Str("campaign", campaign).
		Str("order", model.order.String()).
		Float64("aic", model.aic).
		Msg("order selected on training window")

	heldPred, _, _ := model.forecast(holdout)
	bt := backtestMetrics(held, heldPred)
	bt.TrainPoints = trainLen
	bt.AIC = model.aic
	bt.BIC = model.bic
	bt.LogLikelihood = model.logLik
	bt.Order = model.order

	verdict, reason := deriveVerdict(bt)
	log.Info().
		Str("campaign", campaign).
		Float64("mape", bt.MAPE).
		Float64("r2", bt.R2).
		Str("verdict", string(verdict)).
		Msg("backtest complete")

	// Refit the selected order over the full series for the horizon forecast.
	full, err := fitAR(prices, model.order)
	if err != nil {
		return nil, fmt.Errorf("refit on full series: %w", err)
	}
	pred, lower, upper := full.forecast(f.cfg.HorizonHours)

	lastHour := clean[len(clean)-1].Hour
	points := make([]domain.ForecastPoint, f.cfg.HorizonHours)
	for i := range points {
		points[i] = domain.ForecastPoint{
			Hour:      lastHour.Add(time.Duration(i+1) * time.Hour),
			Predicted: pred[i],
			Lower:     lower[i],
			Upper:     upper[i],
		}
	}

	return &domain.ForecastArtifact{
		Campaign:      campaign,
		HorizonHours:  f.cfg.HorizonHours,
		AsOf:          asOf.UTC(),
		GeneratedAt:   time.Now().UTC(),
		Points:        points,
		BestWindow:    bestWindow(points, f.cfg.WindowHours),
		Backtest:      bt,
		Verdict:       verdict,
		VerdictReason: reason,
	}, nil
}
