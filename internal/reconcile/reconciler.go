// Package reconcile applies the reliability-gated decision policy: the risk
// short-circuit first, then the trade-off between the cost-optimal gas
// window and the engagement-optimal peak hour, degrading explicitly when a
// pillar is absent or its forecast cannot be trusted. The reconciler only
// reads artifacts; it never writes to the cache.
package reconcile

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chainops/launchgate/internal/domain"
)

// Config holds the policy thresholds.
type Config struct {
	// HighRiskThreshold short-circuits to do-not-proceed when the combined
	// risk score exceeds it.
	HighRiskThreshold float64 `yaml:"high_risk_threshold"`
	// CautionThreshold downgrades proceed to proceed-with-caution.
	CautionThreshold float64 `yaml:"caution_threshold"`
	// ToleranceHours is the maximum circular distance between the cheap-gas
	// hour and the peak-activity hour before the two are declared disjoint.
	ToleranceHours int `yaml:"tolerance_hours"`
}

func DefaultConfig() Config {
	return Config{HighRiskThreshold: 75, CautionThreshold: 40, ToleranceHours: 3}
}

type Reconciler struct {
	cfg Config
}

func New(cfg Config) *Reconciler {
	return &Reconciler{cfg: cfg}
}

// Inputs carries the three pillar artifacts plus any degradations the
// pipeline collected while producing them. Forecast and Behavior may be nil;
// that is a valid state, not an error.
type Inputs struct {
	RunID    string
	Campaign string
	Risk     *domain.RiskArtifact
	Forecast *domain.ForecastArtifact
	Behavior *domain.UserBehaviorArtifact
	// Degradations are disclosures accumulated upstream (cache bypassed,
	// pillar failed, default applied). Every entry lands in the rationale.
	Degradations []string
}

// Decide produces the single reconciled recommendation. It always returns
// something: the worst case is an explicit insufficient-data verdict, never
// a crash and never a silent hardcoded hour.
func (r *Reconciler) Decide(in Inputs) domain.Recommendation {
	rec := domain.Recommendation{
		RunID:         in.RunID,
		Campaign:      in.Campaign,
		LaunchHourUTC: -1,
		Confidence:    domain.ConfidenceNone,
		GeneratedAt:   time.Now().UTC(),
	}
	rec.Rationale = append(rec.Rationale, in.Degradations...)

	// Risk short-circuit is evaluated first, regardless of the other pillars.
	if in.Risk != nil && in.Risk.CombinedScore > r.cfg.HighRiskThreshold {
		rec.Action = domain.ActionDoNotProceed
		rec.Rationale = append(rec.Rationale, fmt.Sprintf(
			"combined risk score %.1f exceeds high-risk threshold %.1f, launch blocked before timing analysis",
			in.Risk.CombinedScore, r.cfg.HighRiskThreshold))
		rec.Rationale = append(rec.Rationale, in.Risk.Findings...)
		rec.Summary = fmt.Sprintf("Do not proceed: contract risk %.1f/100 is above the %.1f block threshold.",
			in.Risk.CombinedScore, r.cfg.HighRiskThreshold)
		log.Warn().Str("campaign", in.Campaign).Float64("risk", in.Risk.CombinedScore).Msg("risk short-circuit engaged")
		return rec
	}

	action := r.riskBand(in.Risk, &rec)
	gasTrusted := in.Forecast != nil && in.Forecast.Verdict == domain.VerdictReliable

	switch {
	case gasTrusted && in.Behavior != nil:
		r.tradeOff(in, action, &rec)
	case in.Behavior != nil:
		r.behaviorOnly(in, action, &rec)
	case gasTrusted:
		// Explicit fallback branch: behavior data missing but the forecast
		// passed its reliability gate, so timing rests on gas cost alone.
		log.Warn().Str("campaign", in.Campaign).Msg("behavior pillar unavailable, timing from gas forecast only")
		hour := cheapestHour(in.Forecast)
		rec.Action = action
		rec.LaunchHourUTC = hour
		rec.Confidence = domain.ConfidenceMedium
		rec.Rationale = append(rec.Rationale,
			"user-behavior pillar unavailable, timing based solely on the gas forecast",
			fmt.Sprintf("optimal low-cost window %02d:00-%02d:00 UTC averages %.2f gwei",
				in.Forecast.BestWindow.StartHour(),
				(in.Forecast.BestWindow.StartHour()+in.Forecast.BestWindow.Hours)%24,
				in.Forecast.BestWindow.AvgPrice))
		rec.Summary = fmt.Sprintf("%s: launch at %02d:00 UTC, the cheapest forecast hour; no user-activity signal was available.",
			actionLabel(rec.Action), hour)
	default:
		log.Warn().Str("campaign", in.Campaign).Msg("no timing pillar available")
		rec.Action = domain.ActionInsufficientData
		rec.Rationale = append(rec.Rationale,
			"neither a trusted gas forecast nor user-behavior data is available",
			"insufficient data for timing recommendation")
		rec.Summary = "Insufficient data for a timing recommendation: no pillar produced a usable signal."
	}
	return rec
}

// riskBand records the medium-risk disclosure and returns the base action.
func (r *Reconciler) riskBand(risk *domain.RiskArtifact, rec *domain.Recommendation) domain.Action {
	if risk == nil {
		rec.Rationale = append(rec.Rationale, "risk pillar unavailable, no score to gate on")
		return domain.ActionProceedCaution
	}
	if risk.CombinedScore > r.cfg.CautionThreshold {
		rec.Rationale = append(rec.Rationale, fmt.Sprintf(
			"combined risk score %.1f is in the caution band (%.1f, %.1f]",
			risk.CombinedScore, r.cfg.CautionThreshold, r.cfg.HighRiskThreshold))
		rec.Rationale = append(rec.Rationale, risk.Findings...)
		return domain.ActionProceedCaution
	}
	rec.Rationale = append(rec.Rationale, fmt.Sprintf("combined risk score %.1f is below the caution threshold %.1f",
		risk.CombinedScore, r.cfg.CautionThreshold))
	return domain.ActionProceed
}

// tradeOff reconciles a trusted forecast against the peak-activity hour.
func (r *Reconciler) tradeOff(in Inputs, action domain.Action, rec *domain.Recommendation) {
	gasHour := cheapestHour(in.Forecast)
	peakHour := in.Behavior.PeakHourUTC
	dist := circularHours(gasHour, peakHour)

	rec.Action = action
	rec.Rationale = append(rec.Rationale, fmt.Sprintf(
		"gas forecast trusted (%s)", in.Forecast.VerdictReason))

	if dist > r.cfg.ToleranceHours {
		// Disjoint windows: engagement compounds campaign ROI while gas is
		// a one-time deployment expense, so the peak hour wins the
		// compromise, with the incremental cost stated explicitly.
		rec.TradeOff = true
		rec.LaunchHourUTC = peakHour
		rec.Confidence = domain.ConfidenceMedium
		peakPrice := priceAtHour(in.Forecast, peakHour)
		rec.Rationale = append(rec.Rationale,
			fmt.Sprintf("cost-optimal hour %02d:00 UTC (window mean %.2f gwei) and peak-activity hour %02d:00 UTC are %d hours apart, beyond the %d-hour tolerance",
				gasHour, in.Forecast.BestWindow.AvgPrice, peakHour, dist, r.cfg.ToleranceHours),
			fmt.Sprintf("compromise favors the peak-activity hour: user engagement compounds campaign ROI while gas is a one-time cost; launching at %02d:00 UTC costs roughly %.2f gwei versus %.2f in the cheap window",
				peakHour, peakPrice, in.Forecast.BestWindow.AvgPrice))
		rec.Summary = fmt.Sprintf("%s: launch at %02d:00 UTC for peak user activity, accepting an incremental gas cost of about %.2f gwei over the %02d:00 UTC low-cost window.",
			actionLabel(action), peakHour, peakPrice-in.Forecast.BestWindow.AvgPrice, gasHour)
		log.Info().Int("gas_hour", gasHour).Int("peak_hour", peakHour).Int("distance", dist).Msg("trade-off resolved toward peak activity")
		return
	}

	// The two pillars agree within tolerance: recommend the common hour.
	hour := gasHour
	if in.Forecast.BestWindow.HourSet()[peakHour] {
		hour = peakHour
	}
	rec.LaunchHourUTC = hour
	rec.Confidence = domain.ConfidenceHigh
	rec.Rationale = append(rec.Rationale, fmt.Sprintf(
		"cost-optimal hour %02d:00 UTC and peak-activity hour %02d:00 UTC coincide within the %d-hour tolerance",
		gasHour, peakHour, r.cfg.ToleranceHours))
	rec.Summary = fmt.Sprintf("%s: launch at %02d:00 UTC, where low gas cost and peak user activity align.",
		actionLabel(action), hour)
}

// behaviorOnly handles an unreliable or absent forecast: the gas pillar is
// excluded and the rationale names the specific metric that failed.
func (r *Reconciler) behaviorOnly(in Inputs, action domain.Action, rec *domain.Recommendation) {
	rec.Action = action
	rec.LaunchHourUTC = in.Behavior.PeakHourUTC
	rec.Confidence = domain.ConfidenceMedium

	var why string
	if in.Forecast == nil {
		why = "gas-cost pillar excluded: no forecast available"
	} else {
		why = fmt.Sprintf("gas-cost pillar excluded: forecast %s (%s)", in.Forecast.Verdict, in.Forecast.VerdictReason)
	}
	rec.Rationale = append(rec.Rationale, why,
		fmt.Sprintf("timing based solely on the peak-activity hour %02d:00 UTC from %d analyzed wallets",
			in.Behavior.PeakHourUTC, in.Behavior.WalletsAnalyzed))
	rec.Summary = fmt.Sprintf("%s: launch at %02d:00 UTC on user activity alone; the gas forecast was not trusted.",
		actionLabel(action), in.Behavior.PeakHourUTC)
	log.Info().Str("why", why).Msg("gas pillar excluded from reconciliation")
}

// cheapestHour is the UTC hour of the lowest-priced point inside the best
// window, falling back to the window start when points are missing.
func cheapestHour(fc *domain.ForecastArtifact) int {
	best := fc.BestWindow.StartHour()
	bestPrice := math.Inf(1)
	for _, p := range fc.Points {
		if p.Hour.Before(fc.BestWindow.Start) || p.Hour.After(fc.BestWindow.End) {
			continue
		}
		if p.Predicted < bestPrice {
			bestPrice = p.Predicted
			best = p.Hour.UTC().Hour()
		}
	}
	return best
}

// priceAtHour returns the first predicted price at the given UTC hour-of-day
// in the horizon, or the window mean if that hour never occurs.
func priceAtHour(fc *domain.ForecastArtifact, hour int) float64 {
	for _, p := range fc.Points {
		if p.Hour.UTC().Hour() == hour {
			return p.Predicted
		}
	}
	return fc.BestWindow.AvgPrice
}

// circularHours is the distance between two hours-of-day on the 24h circle.
func circularHours(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 12 {
		d = 24 - d
	}
	return d
}

func actionLabel(a domain.Action) string {
	switch a {
	case domain.ActionProceed:
		return "Proceed"
	case domain.ActionProceedCaution:
		return "Proceed with caution"
	case domain.ActionDoNotProceed:
		return "Do not proceed"
	default:
		return "Insufficient data"
	}
}
