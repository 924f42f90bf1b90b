// Package gas fits and backtests an autoregressive forecasting model over
// hourly gas prices, derives the reliability verdict that gates whether the
// forecast may influence the launch decision, and locates the optimal
// low-cost launch window inside the forecast horizon.
package gas

import "fmt"

// Config holds the forecaster thresholds. Passed in at construction, never
// read from ambient process state.
type Config struct {
	LookbackHours  int     `yaml:"lookback_hours"`
	HorizonHours   int     `yaml:"horizon_hours"`
	WindowHours    int     `yaml:"window_hours"`
	HoldoutPoints  int     `yaml:"holdout_points"`
	MinPoints      int     `yaml:"min_points"`
	MaxInvalidFrac float64 `yaml:"max_invalid_frac"`
	// MinPlausibleMax guards against an upstream unit-conversion defect: a
	// series whose maximum never reaches this many gwei cannot be real
	// mainnet data.
	MinPlausibleMax float64 `yaml:"min_plausible_max"`
}

// DefaultConfig mirrors the production defaults: 30 days of hourly lookback,
// a 7-day horizon, a 4-hour launch window and a 48-point backtest holdout.
func DefaultConfig() Config {
	return Config{
		LookbackHours:   30 * 24,
		HorizonHours:    7 * 24,
		WindowHours:     4,
		HoldoutPoints:   48,
		MinPoints:       72,
		MaxInvalidFrac:  0.10,
		MinPlausibleMax: 1.0,
	}
}

func (c Config) Validate() error {
	if c.HorizonHours <= 0 {
		return fmt.Errorf("horizon_hours must be positive, got %d", c.HorizonHours)
	}
	if c.WindowHours < 2 || c.WindowHours > 4 {
		return fmt.Errorf("window_hours must be in [2,4], got %d", c.WindowHours)
	}
	if c.WindowHours > c.HorizonHours {
		return fmt.Errorf("window_hours %d exceeds horizon_hours %d", c.WindowHours, c.HorizonHours)
	}
	if c.HoldoutPoints < 24 || c.HoldoutPoints > 48 {
		return fmt.Errorf("holdout_points must be in [24,48], got %d", c.HoldoutPoints)
	}
	if c.MinPoints <= c.HoldoutPoints {
		return fmt.Errorf("min_points %d must exceed holdout_points %d", c.MinPoints, c.HoldoutPoints)
	}
	if c.MaxInvalidFrac < 0 || c.MaxInvalidFrac >= 1 {
		return fmt.Errorf("max_invalid_frac must be in [0,1), got %f", c.MaxInvalidFrac)
	}
	return nil
}
