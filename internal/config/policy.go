package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/chainops/launchgate/internal/reconcile"
)

// PolicyConfig represents the reconciler policy configuration: named
// threshold profiles with one active at a time.
type PolicyConfig struct {
	Active   string                   `yaml:"active_profile"`
	Profiles map[string]PolicyProfile `yaml:"profiles"`
}

// PolicyProfile is one set of decision thresholds.
type PolicyProfile struct {
	Name              string  `yaml:"name"`
	Description       string  `yaml:"description"`
	HighRiskThreshold float64 `yaml:"high_risk_threshold"` // combined score that blocks a launch
	CautionThreshold  float64 `yaml:"caution_threshold"`   // combined score that downgrades to caution
	ToleranceHours    int     `yaml:"tolerance_hours"`     // max gap between gas and peak hours
}

// LoadPolicyConfig loads policy configuration from file.
func LoadPolicyConfig(configPath string) (*PolicyConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy config: %w", err)
	}

	var config PolicyConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}
	return &config, nil
}

// SavePolicyConfig saves policy configuration to file.
func SavePolicyConfig(config *PolicyConfig, configPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal policy config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write policy config: %w", err)
	}
	return nil
}

// GetActiveProfile returns the currently active policy profile.
func (pc *PolicyConfig) GetActiveProfile() (*PolicyProfile, error) {
	if pc.Active == "" {
		return nil, fmt.Errorf("no active profile set")
	}
	profile, exists := pc.Profiles[pc.Active]
	if !exists {
		return nil, fmt.Errorf("active profile '%s' not found", pc.Active)
	}
	return &profile, nil
}

// ValidateProfile validates a policy profile for consistency.
func (pp *PolicyProfile) ValidateProfile() []string {
	var errors []string

	if pp.HighRiskThreshold <= 0 || pp.HighRiskThreshold > 100 {
		errors = append(errors, fmt.Sprintf("high risk threshold %.1f outside (0, 100] range", pp.HighRiskThreshold))
	}
	if pp.CautionThreshold <= 0 || pp.CautionThreshold >= pp.HighRiskThreshold {
		errors = append(errors, fmt.Sprintf("caution threshold %.1f must sit below the high-risk threshold %.1f", pp.CautionThreshold, pp.HighRiskThreshold))
	}
	if pp.ToleranceHours < 0 || pp.ToleranceHours > 12 {
		errors = append(errors, fmt.Sprintf("tolerance %dh outside [0, 12] range", pp.ToleranceHours))
	}
	return errors
}

// ReconcilerConfig converts a profile to the reconciler's config type.
func (pp *PolicyProfile) ReconcilerConfig() reconcile.Config {
	return reconcile.Config{
		HighRiskThreshold: pp.HighRiskThreshold,
		CautionThreshold:  pp.CautionThreshold,
		ToleranceHours:    pp.ToleranceHours,
	}
}

// GetDefaultPolicyConfig returns the built-in policy profiles.
func GetDefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		Active: "standard",
		Profiles: map[string]PolicyProfile{
			"standard": {
				Name:              "Standard",
				Description:       "Default launch policy: block above 75, caution above 40, 3h timing tolerance",
				HighRiskThreshold: 75,
				CautionThreshold:  40,
				ToleranceHours:    3,
			},
			"conservative": {
				Name:              "Conservative",
				Description:       "Tighter risk gates for high-value deployments",
				HighRiskThreshold: 60,
				CautionThreshold:  30,
				ToleranceHours:    2,
			},
		},
	}
}
