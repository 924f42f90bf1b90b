package gas

import (
	"fmt"
	"math"
	"time"

	"github.com/chainops/launchgate/internal/domain"
)

// validateSeries checks the input series against the quality gates and
// returns a scrubbed copy safe to fit on. Timestamp gaps and ordering
// violations are always fatal: the hourly grid is never interpolated.
// Invalid prices (NaN or negative) within tolerance are carried forward from
// the nearest preceding valid observation; above tolerance the series is
// rejected outright.
func validateSeries(s domain.HourlyGasSeries, cfg Config) (domain.HourlyGasSeries, error) {
	if len(s) < cfg.MinPoints {
		return nil, &domain.InsufficientDataError{
			Pillar: domain.PillarGas, Have: len(s), Need: cfg.MinPoints,
		}
	}

	invalid := 0
	maxPrice := math.Inf(-1)
	for i, p := range s {
		if i > 0 {
			prev := s[i-1].Hour
			if !p.Hour.After(prev) {
				return nil, &domain.DataQualityError{
					Pillar: domain.PillarGas,
					Reason: fmt.Sprintf("non-monotonic timestamp at %s", p.Hour.UTC().Format(time.RFC3339)),
				}
			}
			if p.Hour.Sub(prev) != time.Hour {
				return nil, &domain.DataQualityError{
					Pillar: domain.PillarGas,
					Reason: fmt.Sprintf("gap in hourly grid between %s and %s",
						prev.UTC().Format(time.RFC3339), p.Hour.UTC().Format(time.RFC3339)),
				}
			}
		}
		if math.IsNaN(p.Price) || p.Price < 0 {
			invalid++
			continue
		}
		if p.Price > maxPrice {
			maxPrice = p.Price
		}
	}

	if frac := float64(invalid) / float64(len(s)); frac > cfg.MaxInvalidFrac {
		return nil, &domain.DataQualityError{
			Pillar: domain.PillarGas,
			Reason: fmt.Sprintf("%.1f%% of points are null or negative, tolerance is %.1f%%",
				frac*100, cfg.MaxInvalidFrac*100),
		}
	}
	if invalid == len(s) || maxPrice < cfg.MinPlausibleMax {
		return nil, &domain.DataQualityError{
			Pillar: domain.PillarGas,
			Reason: fmt.Sprintf("maximum observed price %.4f gwei is below %.1f, suspected unit-conversion defect upstream",
				maxPrice, cfg.MinPlausibleMax),
		}
	}

	if invalid == 0 {
		return s, nil
	}

	out := make(domain.HourlyGasSeries, len(s))
	copy(out, s)
	lastValid := math.NaN()
	for i := range out {
		if math.IsNaN(out[i].Price) || out[i].Price < 0 {
			if math.IsNaN(lastValid) {
				// Leading invalid run: backfill from the first valid point.
				for _, q := range s {
					if !math.IsNaN(q.Price) && q.Price >= 0 {
						lastValid = q.Price
						break
					}
				}
			}
			out[i].Price = lastValid
		} else {
			lastValid = out[i].Price
		}
	}
	return out, nil
}
