package gas

import (
	"fmt"
	"math"

	"github.com/chainops/launchgate/internal/domain"
)

// backtestMetrics scores held-out forecasts against actual observations.
// MAPE skips zero actuals and HoldoutNonZero records how many were usable.
// When the actuals carry no variance, R2 is 1 for a perfect fit and 0
// otherwise, so a constant series never reads as worse-than-naive.
func backtestMetrics(actual, predicted []float64) domain.BacktestResult {
	n := len(actual)
	var sumAbs, sumSq, sumPct, sumActual float64
	nonZero := 0
	for i := 0; i < n; i++ {
		diff := actual[i] - predicted[i]
		sumAbs += math.Abs(diff)
		sumSq += diff * diff
		sumActual += actual[i]
		if actual[i] != 0 {
			sumPct += math.Abs(diff/actual[i]) * 100
			nonZero++
		}
	}

	bt := domain.BacktestResult{
		MAE:            sumAbs / float64(n),
		RMSE:           math.Sqrt(sumSq / float64(n)),
		HoldoutPoints:  n,
		HoldoutNonZero: nonZero,
	}
	if nonZero > 0 {
		bt.MAPE = sumPct / float64(nonZero)
	}

	mean := sumActual / float64(n)
	var ssTot float64
	for i := 0; i < n; i++ {
		d := actual[i] - mean
		ssTot += d * d
	}
	const eps = 1e-12
	switch {
	case ssTot > eps:
		bt.R2 = 1 - sumSq/ssTot
	case sumSq <= eps:
		bt.R2 = 1
	default:
		bt.R2 = 0
	}
	return bt
}

// Reliability thresholds. The boundary is a strict greater-than: a MAPE of
// exactly 100.0% with non-negative R2 is still reliable.
const (
	mapeThreshold = 100.0
	r2Threshold   = 0.0
)

// deriveVerdict applies the fixed reliability gate to a backtest result.
// The reason string names the specific failing metric with its value, since
// the reconciler must quote it verbatim when excluding the gas pillar.
func deriveVerdict(bt domain.BacktestResult) (domain.ReliabilityVerdict, string) {
	if bt.HoldoutNonZero == 0 {
		return domain.VerdictInsufficientData,
			"all held-out actuals are zero, MAPE undefined"
	}
	if bt.MAPE > mapeThreshold {
		return domain.VerdictUnreliable,
			fmt.Sprintf("MAPE %.1f%% exceeds 100%% threshold", bt.MAPE)
	}
	if bt.R2 < r2Threshold {
		return domain.VerdictUnreliable,
			fmt.Sprintf("R² %.2f below 0", bt.R2)
	}
	return domain.VerdictReliable,
		fmt.Sprintf("MAPE %.1f%% within threshold, R² %.2f", bt.MAPE, bt.R2)
}
