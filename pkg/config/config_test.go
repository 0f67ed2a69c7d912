package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("SOE_PORT", "")
	t.Setenv("SOE_DATABASE_URL", "")
	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL, "no database configured should mean in-memory stores, not a default postgres URL")
}

func TestLoad_ReadsEnvOverrides(t *testing.T) {
	t.Setenv("SOE_PORT", "9090")
	t.Setenv("SOE_RATE_LIMIT_RPS", "50")
	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, float64(50), cfg.RateLimitRPS)
}

func TestLoadProfileCatalog_ReadsYAMLFiles(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "profile_base_space.yaml", `
profile_id: base.space
profile_type: BASE
parent_profile_ids: []
default_packs: [NASA_POLYMERICS]
override_mode: STRICT
conflict_policy: ERROR
state: approved
version: 1.0.0
`)
	writeFile(t, dir, "industry_space.yaml", `
industry_id: space
default_packs: [NASA_POLYMERICS]
risk_posture: high
traceability_depth: 3
evidence_retention: 10y
`)
	writeFile(t, dir, "bundle_acme_program.yaml", `
bundle_id: acme-program
profile_ids: [base.space]
program_id: acme-sat-1
`)

	cat, err := LoadProfileCatalog(dir)
	require.NoError(t, err)

	p, ok := cat.GetProfile("base.space")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", p.Version)

	ind, ok := cat.GetIndustry("space")
	require.True(t, ok)
	assert.Equal(t, "high", ind.RiskPosture)

	b, ok := cat.GetBundle("acme-program")
	require.True(t, ok)
	assert.Equal(t, []string{"base.space"}, b.ProfileIDs)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
