package reconcile

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chainops/launchgate/internal/domain"
)

func rationaleText(rec domain.Recommendation) string {
	return strings.Join(rec.Rationale, "\n")
}

// reliableForecast builds a 48h forecast with a clear diurnal cycle: cheap
// 02:00-05:00 UTC, expensive mid-afternoon.
func reliableForecast() *domain.ForecastArtifact {
	start := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	points := make([]domain.ForecastPoint, 48)
	for i := range points {
		hour := start.Add(time.Duration(i) * time.Hour)
		price := 30 - 12*math.Cos(2*math.Pi*float64(hour.Hour()-4)/24)
		points[i] = domain.ForecastPoint{Hour: hour, Predicted: price, Lower: price - 3, Upper: price + 3}
	}
	return &domain.ForecastArtifact{
		Campaign:     "genesis-drop",
		HorizonHours: 48,
		Points:       points,
		BestWindow: domain.LaunchWindow{
			Start:    start.Add(2 * time.Hour),
			End:      start.Add(5 * time.Hour),
			Hours:    4,
			AvgPrice: 19.0,
		},
		Backtest:      domain.BacktestResult{MAPE: 6.2, R2: 0.91, HoldoutNonZero: 48},
		Verdict:       domain.VerdictReliable,
		VerdictReason: "MAPE 6.2% within threshold, R² 0.91",
	}
}

func behavior(peak int) *domain.UserBehaviorArtifact {
	return &domain.UserBehaviorArtifact{PeakHourUTC: peak, WalletsAnalyzed: 450}
}

func lowRisk() *domain.RiskArtifact {
	return &domain.RiskArtifact{Address: "abc", CombinedScore: 20, SourceVerified: true}
}

func TestRiskShortCircuitOverridesFavorablePillars(t *testing.T) {
	r := New(DefaultConfig())

	rec := r.Decide(Inputs{
		Campaign: "genesis-drop",
		Risk: &domain.RiskArtifact{
			Address:       "abc",
			CombinedScore: 82.5,
			Findings:      []string{"delegatecall usage", "external dependency: @unaudited"},
		},
		Forecast: reliableForecast(),
		Behavior: behavior(19),
	})

	assert.Equal(t, domain.ActionDoNotProceed, rec.Action)
	assert.Equal(t, -1, rec.LaunchHourUTC, "a blocked launch carries no hour")
	assert.Contains(t, rationaleText(rec), "exceeds high-risk threshold")
	assert.Contains(t, rationaleText(rec), "delegatecall usage", "risk findings must be echoed")
}

func TestUnreliableForecastCitesOnlyPeakHour(t *testing.T) {
	r := New(DefaultConfig())
	fc := reliableForecast()
	fc.Verdict = domain.VerdictUnreliable
	fc.VerdictReason = "MAPE 115.8% exceeds 100% threshold"

	rec := r.Decide(Inputs{
		Campaign: "genesis-drop",
		Risk:     lowRisk(),
		Forecast: fc,
		Behavior: behavior(19),
	})

	assert.Equal(t, domain.ActionProceed, rec.Action)
	assert.Equal(t, 19, rec.LaunchHourUTC)
	assert.False(t, rec.TradeOff)
	text := rationaleText(rec)
	assert.Contains(t, text, "gas-cost pillar excluded")
	assert.Contains(t, text, "MAPE 115.8% exceeds 100% threshold",
		"the rationale must name the specific failed metric")
}

func TestAbsentForecastFallsBackToPeakHour(t *testing.T) {
	r := New(DefaultConfig())

	rec := r.Decide(Inputs{
		Risk:     lowRisk(),
		Behavior: behavior(14),
	})

	assert.Equal(t, 14, rec.LaunchHourUTC)
	assert.Contains(t, rationaleText(rec), "no forecast available")
}

func TestDisjointWindowsProduceTradeOff(t *testing.T) {
	r := New(DefaultConfig())

	// Cheapest forecast hour is 04:00; peak activity 19:00 — nine hours
	// apart on the circle, well beyond the 3h tolerance.
	rec := r.Decide(Inputs{
		Campaign: "genesis-drop",
		Risk:     lowRisk(),
		Forecast: reliableForecast(),
		Behavior: behavior(19),
	})

	assert.Equal(t, domain.ActionProceed, rec.Action)
	assert.True(t, rec.TradeOff, "disjoint windows must yield an explicit trade-off, not a plain match")
	assert.Equal(t, 19, rec.LaunchHourUTC, "the compromise weights peak activity higher")
	assert.Equal(t, domain.ConfidenceMedium, rec.Confidence)

	text := rationaleText(rec)
	assert.Contains(t, text, "peak-activity hour 19:00", "both options must be named")
	assert.Contains(t, text, "04:00", "both options must be named")
	assert.Contains(t, strings.ToLower(text+rec.Summary), "gas", "the incremental gas cost must be stated")
}

func TestCoincidingWindowsRecommendCommonHour(t *testing.T) {
	r := New(DefaultConfig())

	rec := r.Decide(Inputs{
		Risk:     lowRisk(),
		Forecast: reliableForecast(),
		Behavior: behavior(3), // inside the 02:00-05:00 cheap window
	})

	assert.False(t, rec.TradeOff)
	assert.Equal(t, 3, rec.LaunchHourUTC)
	assert.Equal(t, domain.ConfidenceHigh, rec.Confidence)
	assert.Contains(t, rationaleText(rec), "coincide within")
}

func TestMissingBehaviorUsesGasOnlyExplicitly(t *testing.T) {
	r := New(DefaultConfig())

	rec := r.Decide(Inputs{
		Risk:     lowRisk(),
		Forecast: reliableForecast(),
	})

	assert.Equal(t, 4, rec.LaunchHourUTC, "cheapest forecast hour")
	assert.Contains(t, rationaleText(rec), "user-behavior pillar unavailable",
		"the fallback must be disclosed, never silent")
}

func TestNothingAvailableIsInsufficientData(t *testing.T) {
	r := New(DefaultConfig())

	rec := r.Decide(Inputs{Risk: lowRisk()})

	assert.Equal(t, domain.ActionInsufficientData, rec.Action)
	assert.Equal(t, -1, rec.LaunchHourUTC, "never a silent hardcoded hour")
	assert.Contains(t, rationaleText(rec), "insufficient data for timing recommendation")
}

func TestCautionBandEchoesFindings(t *testing.T) {
	r := New(DefaultConfig())

	rec := r.Decide(Inputs{
		Risk: &domain.RiskArtifact{
			Address:       "abc",
			CombinedScore: 55,
			Findings:      []string{"source not verified, neutral internal score 50/100 applied"},
		},
		Behavior: behavior(19),
	})

	assert.Equal(t, domain.ActionProceedCaution, rec.Action)
	assert.Contains(t, rationaleText(rec), "caution band")
	assert.Contains(t, rationaleText(rec), "neutral internal score")
}

func TestDegradationsSurfaceInRationale(t *testing.T) {
	r := New(DefaultConfig())

	rec := r.Decide(Inputs{
		Risk:         lowRisk(),
		Behavior:     behavior(19),
		Degradations: []string{"artifact cache unavailable for gas, recomputed"},
	})

	assert.Contains(t, rationaleText(rec), "artifact cache unavailable for gas, recomputed")
}

func TestCircularHourDistance(t *testing.T) {
	assert.Equal(t, 0, circularHours(5, 5))
	assert.Equal(t, 9, circularHours(4, 19))
	assert.Equal(t, 2, circularHours(23, 1), "distance wraps around midnight")
	assert.Equal(t, 12, circularHours(0, 12))
}
