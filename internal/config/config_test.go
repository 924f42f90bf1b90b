package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadEngineConfigAppliesDefaults(t *testing.T) {
	path := writeFile(t, "engine.yaml", `
campaign:
  name: genesis-drop
  contract: "0xabc0000000000000000000000000000000000001"
warehouse:
  dsn: clickhouse://default:@localhost:9000/chain
`)
	cfg, err := LoadEngineConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.OutDir)
	assert.Equal(t, "artifacts", cfg.Cache.Dir)
	assert.Equal(t, "https://api.etherscan.io/api", cfg.Explorer.BaseURL)
	assert.Equal(t, 4, cfg.Explorer.RPS)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadEngineConfigRejectsMissingCampaign(t *testing.T) {
	path := writeFile(t, "engine.yaml", `
warehouse:
  dsn: clickhouse://default:@localhost:9000/chain
`)
	_, err := LoadEngineConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "campaign.name")
}

func TestLoadEngineConfigRejectsJournalWithoutDSN(t *testing.T) {
	path := writeFile(t, "engine.yaml", `
campaign:
  name: genesis-drop
  contract: "0xabc"
warehouse:
  dsn: clickhouse://default:@localhost:9000/chain
journal:
  enabled: true
`)
	_, err := LoadEngineConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal.dsn")
}

func TestForecasterConfigOverrides(t *testing.T) {
	cfg := &EngineConfig{Gas: GasConfig{HorizonHours: 72, WindowHours: 2}}
	fc := cfg.ForecasterConfig()
	assert.Equal(t, 72, fc.HorizonHours)
	assert.Equal(t, 2, fc.WindowHours)
	assert.Equal(t, 720, fc.LookbackHours, "unset fields keep defaults")
}

func TestLoadWallets(t *testing.T) {
	path := writeFile(t, "wallets.txt", `
# campaign allowlist
0xAbC0000000000000000000000000000000000001

0xdef0000000000000000000000000000000000002
`)
	wallets, err := LoadWallets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"0xAbC0000000000000000000000000000000000001",
		"0xdef0000000000000000000000000000000000002",
	}, wallets)

	empty, err := LoadWallets("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPolicyConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	def := GetDefaultPolicyConfig()
	require.NoError(t, SavePolicyConfig(def, path))

	loaded, err := LoadPolicyConfig(path)
	require.NoError(t, err)

	profile, err := loaded.GetActiveProfile()
	require.NoError(t, err)
	assert.Equal(t, "Standard", profile.Name)
	assert.Empty(t, profile.ValidateProfile())

	rc := profile.ReconcilerConfig()
	assert.Equal(t, 75.0, rc.HighRiskThreshold)
	assert.Equal(t, 3, rc.ToleranceHours)
}

func TestPolicyProfileValidation(t *testing.T) {
	bad := PolicyProfile{Name: "bad", HighRiskThreshold: 120, CautionThreshold: 130, ToleranceHours: 20}
	errs := bad.ValidateProfile()
	assert.Len(t, errs, 3)
}

func TestGetActiveProfileMissing(t *testing.T) {
	pc := &PolicyConfig{Active: "nope", Profiles: map[string]PolicyProfile{}}
	_, err := pc.GetActiveProfile()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}
