package gas

import (
	"time"

	"github.com/chainops/launchgate/internal/domain"
)

// bestWindow finds the contiguous width-hour window with the lowest mean
// predicted price. Ties break to the earliest start: only a strictly lower
// mean displaces the incumbent.
func bestWindow(points []domain.ForecastPoint, width int) domain.LaunchWindow {
	if width > len(points) {
		width = len(points)
	}

	sum := 0.0
	for i := 0; i < width; i++ {
		sum += points[i].Predicted
	}
	bestStart, bestSum := 0, sum
	for i := width; i < len(points); i++ {
		sum += points[i].Predicted - points[i-width].Predicted
		if sum < bestSum {
			bestSum = sum
			bestStart = i - width + 1
		}
	}

	start := points[bestStart].Hour
	return domain.LaunchWindow{
		Start:    start,
		End:      start.Add(time.Duration(width-1) * time.Hour),
		Hours:    width,
		AvgPrice: bestSum / float64(width),
	}
}
