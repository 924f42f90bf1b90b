package domain

import (
	"fmt"
	"time"
)

// Pillar names used for cache directories, error attribution and metrics labels.
const (
	PillarRisk     = "risk"
	PillarGas      = "gas"
	PillarBehavior = "behavior"
)

// ReliabilityVerdict gates whether a forecast may influence the final
// recommendation. It is always attached to a forecast artifact, never omitted.
type ReliabilityVerdict string

const (
	VerdictReliable         ReliabilityVerdict = "reliable"
	VerdictUnreliable       ReliabilityVerdict = "unreliable"
	VerdictInsufficientData ReliabilityVerdict = "insufficient_data"
)

// GasPoint is one observed hour of average gas price in gwei.
type GasPoint struct {
	Hour  time.Time `json:"hour"`
	Price float64   `json:"price"`
}

// HourlyGasSeries is an ordered sequence of hourly observations with strictly
// increasing timestamps. Gaps are detected during validation, never
// interpolated. The series is immutable once fetched.
type HourlyGasSeries []GasPoint

// Prices returns the price column in series order.
func (s HourlyGasSeries) Prices() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Price
	}
	return out
}

// ModelOrder identifies the selected (p,d,q) order of the fitted model.
type ModelOrder struct {
	P int `json:"p"`
	D int `json:"d"`
	Q int `json:"q"`
}

func (o ModelOrder) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// BacktestResult holds accuracy metrics computed against held-out
// observations. MAPE is expressed in percent and is always >= 0. R2 may be
// negative, meaning the model underperforms a naive mean predictor; that is a
// valid state, not an error.
type BacktestResult struct {
	MAE           float64    `json:"mae"`
	RMSE          float64    `json:"rmse"`
	MAPE          float64    `json:"mape"`
	R2            float64    `json:"r2"`
	AIC           float64    `json:"aic"`
	BIC           float64    `json:"bic"`
	LogLikelihood float64    `json:"log_likelihood"`
	TrainPoints   int        `json:"train_points"`
	HoldoutPoints int        `json:"holdout_points"`
	// HoldoutNonZero counts held-out actuals usable for MAPE. Zero means
	// MAPE is undefined and the verdict must be insufficient-data, never an
	// infinite or NaN metric.
	HoldoutNonZero int        `json:"holdout_non_zero"`
	Order          ModelOrder `json:"order"`
}

// ForecastPoint is one predicted hour with confidence bounds.
type ForecastPoint struct {
	Hour      time.Time `json:"hour"`
	Predicted float64   `json:"predicted"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}

// LaunchWindow is the contiguous low-cost range inside a forecast horizon.
type LaunchWindow struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Hours    int       `json:"hours"`
	AvgPrice float64   `json:"avg_price"`
}

// StartHour returns the UTC hour-of-day at which the window opens.
func (w LaunchWindow) StartHour() int {
	return w.Start.UTC().Hour()
}

// HourSet returns the set of UTC hours-of-day the window covers.
func (w LaunchWindow) HourSet() map[int]bool {
	hours := make(map[int]bool, w.Hours)
	for i := 0; i < w.Hours; i++ {
		hours[w.Start.UTC().Add(time.Duration(i)*time.Hour).Hour()] = true
	}
	return hours
}

// ForecastArtifact is the gas pillar output: per-hour predictions with
// confidence bounds, the optimal low-cost window, the backtest metrics and
// the reliability verdict. Keyed by (campaign, horizon, as-of date) and
// immutable after creation; a later run with a new as-of date supersedes it.
type ForecastArtifact struct {
	Campaign      string             `json:"campaign"`
	HorizonHours  int                `json:"horizon_hours"`
	AsOf          time.Time          `json:"as_of"`
	GeneratedAt   time.Time          `json:"generated_at"`
	Points        []ForecastPoint    `json:"points"`
	BestWindow    LaunchWindow       `json:"best_window"`
	Backtest      BacktestResult     `json:"backtest"`
	Verdict       ReliabilityVerdict `json:"verdict"`
	VerdictReason string             `json:"verdict_reason,omitempty"`
}

// Combined-score weights, fixed: a risky dependency graph outweighs
// internal code findings.
const (
	InternalWeight   = 0.4
	DependencyWeight = 0.6
)

// RiskArtifact is the risk pillar output. Address is stored normalized
// (0x prefix stripped, lower-cased). Combined score uses fixed weights:
// 0.4 internal, 0.6 dependency. Cached indefinitely.
type RiskArtifact struct {
	Address         string    `json:"address"`
	InternalScore   float64   `json:"internal_score"`
	DependencyScore float64   `json:"dependency_score"`
	CombinedScore   float64   `json:"combined_score"`
	SourceVerified  bool      `json:"source_verified"`
	Findings        []string  `json:"findings"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// SybilCluster is a group of wallets sharing a funding source with
// near-simultaneous creation times.
type SybilCluster struct {
	ID            int      `json:"id"`
	FundingSource string   `json:"funding_source"`
	Wallets       []string `json:"wallets"`
}

// CohortRetention is one weekly signup cohort with retained fractions at
// day 1, 7 and 30.
type CohortRetention struct {
	CohortWeek time.Time `json:"cohort_week"`
	Size       int       `json:"size"`
	Day1       float64   `json:"day1"`
	Day7       float64   `json:"day7"`
	Day30      float64   `json:"day30"`
}

// UserBehaviorArtifact is the behavior pillar output, keyed by campaign
// start date. PeakHourUTC is the modal activity hour in 0-23 UTC.
type UserBehaviorArtifact struct {
	CampaignStart   time.Time         `json:"campaign_start"`
	PeakHourUTC     int               `json:"peak_hour_utc"`
	HourlyActivity  [24]int64         `json:"hourly_activity"`
	SybilClusters   []SybilCluster    `json:"sybil_clusters"`
	Cohorts         []CohortRetention `json:"cohorts"`
	WalletsAnalyzed int               `json:"wallets_analyzed"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// Action is the terminal go/no-go call of a run.
type Action string

const (
	ActionProceed          Action = "proceed"
	ActionProceedCaution   Action = "proceed_with_caution"
	ActionDoNotProceed     Action = "do_not_proceed"
	ActionInsufficientData Action = "insufficient_data"
)

// Confidence level attached to a timing recommendation.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
	ConfidenceNone   = "none"
)

// Recommendation is the terminal output of a reconciliation: the selected
// launch hour, the action, and a rationale naming every artifact that was
// trusted, excluded or degraded. LaunchHourUTC is -1 when no hour could be
// recommended. Not cached by the pillars; the pipeline persists a rendered
// report instead.
type Recommendation struct {
	RunID         string    `json:"run_id"`
	Campaign      string    `json:"campaign"`
	Action        Action    `json:"action"`
	LaunchHourUTC int       `json:"launch_hour_utc"`
	Confidence    string    `json:"confidence"`
	TradeOff      bool      `json:"trade_off"`
	Rationale     []string  `json:"rationale"`
	Summary       string    `json:"summary"`
	GeneratedAt   time.Time `json:"generated_at"`
}
