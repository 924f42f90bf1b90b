package config

import (
	"github.com/chainops/launchgate/internal/behavior"
	"github.com/chainops/launchgate/internal/gas"
)

// ForecasterConfig merges the YAML overrides onto the forecaster defaults.
func (c *EngineConfig) ForecasterConfig() gas.Config {
	cfg := gas.DefaultConfig()
	if c.Gas.LookbackHours > 0 {
		cfg.LookbackHours = c.Gas.LookbackHours
	}
	if c.Gas.HorizonHours > 0 {
		cfg.HorizonHours = c.Gas.HorizonHours
	}
	if c.Gas.WindowHours > 0 {
		cfg.WindowHours = c.Gas.WindowHours
	}
	if c.Gas.HoldoutPoints > 0 {
		cfg.HoldoutPoints = c.Gas.HoldoutPoints
	}
	return cfg
}

// AnalyzerConfig merges the YAML overrides onto the behavior defaults.
func (c *EngineConfig) AnalyzerConfig() behavior.Config {
	cfg := behavior.DefaultConfig()
	if c.Behavior.LookbackDays > 0 {
		cfg.LookbackDays = c.Behavior.LookbackDays
	}
	if c.Behavior.Eps > 0 {
		cfg.Eps = c.Behavior.Eps
	}
	if c.Behavior.MinPts > 0 {
		cfg.MinPts = c.Behavior.MinPts
	}
	return cfg
}
